// Package idgen generates plan, step and approval request identifiers.
// Callers treat them as opaque strings.
package idgen
