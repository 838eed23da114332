package rbac

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/huddlehq/huddle/pkg/apperrors"
)

// Authorize allows the operation when every required permission is in the
// role's set. It has no side effects and is consulted on every mutating path
// before any write.
func Authorize(role Role, required ...Permission) error {
	for _, p := range required {
		if !HasPermission(role, p) {
			return apperrors.Forbiddenf("role %q does not grant %q", role, p)
		}
	}
	return nil
}

// AuthorizeMember is the absent-aware form: a nil role means the actor holds
// no membership in the target community.
func AuthorizeMember(role *Role, required ...Permission) error {
	if role == nil {
		return apperrors.Forbiddenf("not a member of this community")
	}
	return Authorize(*role, required...)
}

// RoleResolver looks up the actor's role in a community. Implemented by the
// communities service; absent membership returns ok=false.
type RoleResolver interface {
	GetMembershipRole(userID, communityID int64) (Role, bool, error)
}

// Guard resolves an actor's role and authorizes in one step. It keeps a small
// in-process TTL cache of role lookups so hot authorization paths avoid a
// storage round trip per request.
type Guard struct {
	resolver RoleResolver
	cache    *expirable.LRU[guardKey, Role]
}

type guardKey struct {
	userID      int64
	communityID int64
}

// DefaultCacheTTL bounds how long a cached role can lag behind a
// membership mutation that bypassed Invalidate.
const DefaultCacheTTL = 30 * time.Second

// NewGuard creates a Guard. cacheTTL <= 0 disables caching.
func NewGuard(resolver RoleResolver, cacheSize int, cacheTTL time.Duration) *Guard {
	g := &Guard{resolver: resolver}
	if cacheTTL > 0 {
		g.cache = expirable.NewLRU[guardKey, Role](cacheSize, nil, cacheTTL)
	}
	return g
}

// Require resolves the actor's role in the community and checks the required
// permissions. Non-members are denied with the same error shape as
// insufficient roles.
func (g *Guard) Require(userID, communityID int64, required ...Permission) (Role, error) {
	key := guardKey{userID: userID, communityID: communityID}
	if g.cache != nil {
		if role, ok := g.cache.Get(key); ok {
			return role, AuthorizeMember(&role, required...)
		}
	}

	role, ok, err := g.resolver.GetMembershipRole(userID, communityID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", AuthorizeMember(nil, required...)
	}

	if g.cache != nil {
		g.cache.Add(key, role)
	}
	return role, AuthorizeMember(&role, required...)
}

// Invalidate drops a cached role after a membership mutation. Safe to call
// on a nil Guard so transports can invalidate unconditionally.
func (g *Guard) Invalidate(userID, communityID int64) {
	if g == nil || g.cache == nil {
		return
	}
	g.cache.Remove(guardKey{userID: userID, communityID: communityID})
}
