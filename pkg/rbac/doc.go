// Package rbac defines the community role hierarchy, the static
// role-to-permission matrix, and the authorization guard consulted by every
// mutating operation.
//
// Roles form a strict hierarchy (owner > admin > manager > developer tiers)
// where each level's permission set is a superset of the levels below. The
// matrix in types.go is the single source of truth: no other package may
// hardcode role comparisons to gate an operation.
package rbac
