// Package approval implements the approval lifecycle for side-effecting
// actions. A Request starts PENDING, is approved, rejected or lazily expired,
// and an approved request is executed at most once by a category Executor.
// The ledger sub-package persists requests and serialises their mutations.
package approval
