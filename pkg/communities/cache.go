package communities

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/huddlehq/huddle/pkg/auth"
	"github.com/huddlehq/huddle/pkg/rbac"
)

// RedisCache is a read-through caching layer over a Service. Community and
// membership-role lookups are cached; every lifecycle mutation invalidates
// the affected keys before delegating, so a cache outage degrades to plain
// database reads rather than stale authorization decisions.
type RedisCache struct {
	svc   Service
	redis *redis.Client

	communityTTL time.Duration
	roleTTL      time.Duration

	counters CacheMetrics
}

// CacheCounter receives hit and miss events. prometheus.Counter satisfies it.
type CacheCounter interface {
	Inc()
}

// CacheMetrics collects the counters fed by the cached read paths. Nil
// fields are skipped.
type CacheMetrics struct {
	CommunityHits   CacheCounter
	CommunityMisses CacheCounter
	RoleHits        CacheCounter
	RoleMisses      CacheCounter
}

// InstrumentWith attaches hit and miss counters to the cached read paths.
func (c *RedisCache) InstrumentWith(m CacheMetrics) {
	c.counters = m
}

func bump(counter CacheCounter) {
	if counter != nil {
		counter.Inc()
	}
}

// NewRedisCache creates the caching layer and verifies the connection.
func NewRedisCache(svc Service, redisAddr, password string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: password,
		DB:       0,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		svc:          svc,
		redis:        client,
		communityTTL: 15 * time.Minute,
		roleTTL:      5 * time.Minute,
	}, nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.redis.Close()
}

// Client exposes the underlying Redis client for health probes.
func (c *RedisCache) Client() *redis.Client {
	return c.redis
}

func communityKey(id int64) string {
	return fmt.Sprintf("community:%d", id)
}

func roleKey(userID, communityID int64) string {
	return fmt.Sprintf("member_role:%d:%d", communityID, userID)
}

// GetCommunity gets a community with caching.
func (c *RedisCache) GetCommunity(id int64) (*Community, error) {
	ctx := context.Background()
	key := communityKey(id)

	if cached, err := c.redis.Get(ctx, key).Result(); err == nil {
		community := &Community{}
		if err := json.Unmarshal([]byte(cached), community); err == nil {
			bump(c.counters.CommunityHits)
			return community, nil
		}
	}
	bump(c.counters.CommunityMisses)

	community, err := c.svc.GetCommunity(id)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(community); err == nil {
		c.redis.Set(ctx, key, data, c.communityTTL)
	}
	return community, nil
}

// GetMembershipRole resolves a role with caching. Absent memberships are
// cached too, under a sentinel value, so repeated denials stay cheap.
func (c *RedisCache) GetMembershipRole(userID, communityID int64) (rbac.Role, bool, error) {
	ctx := context.Background()
	key := roleKey(userID, communityID)

	if cached, err := c.redis.Get(ctx, key).Result(); err == nil {
		bump(c.counters.RoleHits)
		if cached == "absent" {
			return "", false, nil
		}
		return rbac.Role(cached), true, nil
	}
	bump(c.counters.RoleMisses)

	role, ok, err := c.svc.GetMembershipRole(userID, communityID)
	if err != nil {
		return "", false, err
	}
	if ok {
		c.redis.Set(ctx, key, string(role), c.roleTTL)
	} else {
		c.redis.Set(ctx, key, "absent", c.roleTTL)
	}
	return role, ok, nil
}

// CreateCommunity delegates and primes nothing; the creator's role key is
// invalidated in case an "absent" sentinel was cached.
func (c *RedisCache) CreateCommunity(actor auth.Actor, req CreateCommunityRequest) (*Community, error) {
	community, err := c.svc.CreateCommunity(actor, req)
	if err != nil {
		return nil, err
	}
	c.redis.Del(context.Background(), roleKey(actor.UserID, community.ID))
	return community, nil
}

// UpdateCommunity delegates and invalidates the community key.
func (c *RedisCache) UpdateCommunity(actor auth.Actor, id int64, req UpdateCommunityRequest) (*Community, error) {
	community, err := c.svc.UpdateCommunity(actor, id, req)
	if err != nil {
		return nil, err
	}
	c.redis.Del(context.Background(), communityKey(id))
	return community, nil
}

// DeleteCommunity delegates and drops the community key. Role keys for its
// members expire on their own TTL; the rows backing them are gone, so a
// stale positive can only grant reads against an absent community, which
// resolve to NotFound.
func (c *RedisCache) DeleteCommunity(actor auth.Actor, id int64) error {
	if err := c.svc.DeleteCommunity(actor, id); err != nil {
		return err
	}
	ctx := context.Background()
	c.redis.Del(ctx, communityKey(id))
	c.redis.Del(ctx, roleKey(actor.UserID, id))
	return nil
}

// Join delegates and invalidates the joiner's role key.
func (c *RedisCache) Join(actor auth.Actor, communityID int64, inviteToken string) (*Membership, error) {
	membership, err := c.svc.Join(actor, communityID, inviteToken)
	if err != nil {
		return nil, err
	}
	c.redis.Del(context.Background(), roleKey(actor.UserID, communityID))
	return membership, nil
}

// Leave delegates and invalidates the leaver's role key, plus the community
// key when the departure cascaded into deletion.
func (c *RedisCache) Leave(actor auth.Actor, communityID int64) (LeaveOutcome, error) {
	outcome, err := c.svc.Leave(actor, communityID)
	if err != nil {
		return "", err
	}
	ctx := context.Background()
	c.redis.Del(ctx, roleKey(actor.UserID, communityID))
	if outcome == OutcomeCommunityDeleted {
		c.redis.Del(ctx, communityKey(communityID))
	}
	return outcome, nil
}

// UpdateMemberRole delegates and invalidates the target's role key.
func (c *RedisCache) UpdateMemberRole(actor auth.Actor, communityID, targetUserID int64, newRole rbac.Role) error {
	if err := c.svc.UpdateMemberRole(actor, communityID, targetUserID, newRole); err != nil {
		return err
	}
	c.redis.Del(context.Background(), roleKey(targetUserID, communityID))
	return nil
}

// ListCommunities is not cached; membership-filtered listings change often
// and are cheap.
func (c *RedisCache) ListCommunities(userID int64) ([]*Community, error) {
	return c.svc.ListCommunities(userID)
}

// ListMembers is not cached.
func (c *RedisCache) ListMembers(communityID int64) ([]*Membership, error) {
	return c.svc.ListMembers(communityID)
}

// IssueInvite delegates; invites are never cached.
func (c *RedisCache) IssueInvite(actor auth.Actor, communityID int64) (*Invite, error) {
	return c.svc.IssueInvite(actor, communityID)
}

// ListInvites delegates.
func (c *RedisCache) ListInvites(actor auth.Actor, communityID int64) ([]*Invite, error) {
	return c.svc.ListInvites(actor, communityID)
}

// RevokeInvite delegates.
func (c *RedisCache) RevokeInvite(actor auth.Actor, communityID, inviteID int64) error {
	return c.svc.RevokeInvite(actor, communityID, inviteID)
}

// CleanupExpiredInvites delegates.
func (c *RedisCache) CleanupExpiredInvites() (int64, error) {
	return c.svc.CleanupExpiredInvites()
}

var _ Service = (*RedisCache)(nil)
