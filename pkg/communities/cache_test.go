package communities

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlehq/huddle/pkg/auth"
	"github.com/huddlehq/huddle/pkg/rbac"
)

// countingService wraps a scripted Service and counts delegated reads so
// tests can tell a cache hit from a pass-through.
type countingService struct {
	Service

	community *Community
	role      rbac.Role
	member    bool
	outcome   LeaveOutcome

	getCommunityCalls int
	getRoleCalls      int
}

func (s *countingService) GetCommunity(id int64) (*Community, error) {
	s.getCommunityCalls++
	return s.community, nil
}

func (s *countingService) GetMembershipRole(userID, communityID int64) (rbac.Role, bool, error) {
	s.getRoleCalls++
	return s.role, s.member, nil
}

func (s *countingService) Join(actor auth.Actor, communityID int64, inviteToken string) (*Membership, error) {
	return &Membership{CommunityID: communityID, UserID: actor.UserID, Role: rbac.RoleViewer}, nil
}

func (s *countingService) Leave(actor auth.Actor, communityID int64) (LeaveOutcome, error) {
	return s.outcome, nil
}

func (s *countingService) UpdateMemberRole(actor auth.Actor, communityID, targetUserID int64, newRole rbac.Role) error {
	return nil
}

func newTestCache(t *testing.T, svc Service) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache, err := NewRedisCache(svc, mr.Addr(), "")
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache, mr
}

func TestCacheGetCommunity(t *testing.T) {
	svc := &countingService{community: &Community{ID: 10, Name: "gophers"}}
	cache, mr := newTestCache(t, svc)

	community, err := cache.GetCommunity(10)
	require.NoError(t, err)
	assert.Equal(t, "gophers", community.Name)
	assert.Equal(t, 1, svc.getCommunityCalls)
	assert.True(t, mr.Exists("community:10"))

	// Second read is served from Redis.
	community, err = cache.GetCommunity(10)
	require.NoError(t, err)
	assert.Equal(t, "gophers", community.Name)
	assert.Equal(t, 1, svc.getCommunityCalls)
}

func TestCacheGetMembershipRole(t *testing.T) {
	t.Run("caches a present role", func(t *testing.T) {
		svc := &countingService{role: rbac.RoleAdmin, member: true}
		cache, _ := newTestCache(t, svc)

		role, ok, err := cache.GetMembershipRole(2, 10)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, rbac.RoleAdmin, role)

		role, ok, err = cache.GetMembershipRole(2, 10)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, rbac.RoleAdmin, role)
		assert.Equal(t, 1, svc.getRoleCalls)
	})

	t.Run("caches an absent membership", func(t *testing.T) {
		svc := &countingService{}
		cache, mr := newTestCache(t, svc)

		_, ok, err := cache.GetMembershipRole(2, 10)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := mr.Get("member_role:10:2")
		require.NoError(t, err)
		assert.Equal(t, "absent", got)

		_, ok, err = cache.GetMembershipRole(2, 10)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 1, svc.getRoleCalls)
	})

	t.Run("cached role expires", func(t *testing.T) {
		svc := &countingService{role: rbac.RoleManager, member: true}
		cache, mr := newTestCache(t, svc)

		_, _, err := cache.GetMembershipRole(2, 10)
		require.NoError(t, err)

		mr.FastForward(6 * time.Minute)

		_, _, err = cache.GetMembershipRole(2, 10)
		require.NoError(t, err)
		assert.Equal(t, 2, svc.getRoleCalls)
	})
}

type countingCounter struct {
	n int
}

func (c *countingCounter) Inc() { c.n++ }

func TestCacheHitMissCounters(t *testing.T) {
	svc := &countingService{
		community: &Community{ID: 10, Name: "gophers"},
		role:      rbac.RoleViewer,
		member:    true,
	}
	cache, _ := newTestCache(t, svc)

	var communityHits, communityMisses, roleHits, roleMisses countingCounter
	cache.InstrumentWith(CacheMetrics{
		CommunityHits:   &communityHits,
		CommunityMisses: &communityMisses,
		RoleHits:        &roleHits,
		RoleMisses:      &roleMisses,
	})

	_, err := cache.GetCommunity(10)
	require.NoError(t, err)
	_, err = cache.GetCommunity(10)
	require.NoError(t, err)
	assert.Equal(t, 1, communityMisses.n)
	assert.Equal(t, 1, communityHits.n)

	_, _, err = cache.GetMembershipRole(2, 10)
	require.NoError(t, err)
	_, _, err = cache.GetMembershipRole(2, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, roleMisses.n)
	assert.Equal(t, 1, roleHits.n)
}

func TestCacheWithoutCountersDoesNotPanic(t *testing.T) {
	svc := &countingService{community: &Community{ID: 10}}
	cache, _ := newTestCache(t, svc)

	_, err := cache.GetCommunity(10)
	assert.NoError(t, err)
}

func TestCacheInvalidation(t *testing.T) {
	actor := auth.Actor{UserID: 2}

	t.Run("join drops the cached absent sentinel", func(t *testing.T) {
		svc := &countingService{}
		cache, mr := newTestCache(t, svc)

		_, _, err := cache.GetMembershipRole(2, 10)
		require.NoError(t, err)
		require.True(t, mr.Exists("member_role:10:2"))

		_, err = cache.Join(actor, 10, "")
		require.NoError(t, err)
		assert.False(t, mr.Exists("member_role:10:2"))
	})

	t.Run("leave drops the role key", func(t *testing.T) {
		svc := &countingService{role: rbac.RoleManager, member: true, outcome: OutcomeLeft}
		cache, mr := newTestCache(t, svc)

		_, _, err := cache.GetMembershipRole(2, 10)
		require.NoError(t, err)

		_, err = cache.Leave(actor, 10)
		require.NoError(t, err)
		assert.False(t, mr.Exists("member_role:10:2"))
	})

	t.Run("cascading leave drops the community key too", func(t *testing.T) {
		svc := &countingService{
			community: &Community{ID: 10, Name: "gophers"},
			role:      rbac.RoleOwner, member: true,
			outcome: OutcomeCommunityDeleted,
		}
		cache, mr := newTestCache(t, svc)

		_, err := cache.GetCommunity(10)
		require.NoError(t, err)
		require.True(t, mr.Exists("community:10"))

		_, err = cache.Leave(actor, 10)
		require.NoError(t, err)
		assert.False(t, mr.Exists("community:10"))
		assert.False(t, mr.Exists("member_role:10:2"))
	})

	t.Run("role change drops the target's key", func(t *testing.T) {
		svc := &countingService{role: rbac.RoleDeveloperI, member: true}
		cache, mr := newTestCache(t, svc)

		_, _, err := cache.GetMembershipRole(3, 10)
		require.NoError(t, err)
		require.True(t, mr.Exists("member_role:10:3"))

		err = cache.UpdateMemberRole(auth.Actor{UserID: 1}, 10, 3, rbac.RoleManager)
		require.NoError(t, err)
		assert.False(t, mr.Exists("member_role:10:3"))
	})
}
