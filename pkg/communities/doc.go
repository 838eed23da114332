// Package communities implements the community membership lifecycle: create,
// join, leave, role changes, invites, and cascading deletion.
//
// The lifecycle service is the only writer of the communities,
// community_members, and community_invites tables. Every operation runs in a
// single database transaction and re-validates its invariants against the
// transaction's view using row locks, so concurrent mutations against the
// same community cannot violate the last-admin or sole-owner rules:
//
//   - a community row exists only while at least one membership references it
//   - the owner leaving cascades deletion of the whole community
//   - the last admin can neither leave nor be demoted
//
// Failed operations roll back with zero side effects and return a tagged
// apperrors value (NotFound / Forbidden / Conflict / Validation).
package communities
