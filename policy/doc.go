// Package policy provides optional declarative rules that decide approval
// requests automatically, for example auto-approving file operations while
// leaving payments to a human.
package policy
