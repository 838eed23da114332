package communities

import (
	"time"
	"unicode/utf8"

	"github.com/huddlehq/huddle/pkg/auth"
	"github.com/huddlehq/huddle/pkg/rbac"
)

// Validation bounds for community fields.
const (
	NameMinLen        = 3
	NameMaxLen        = 50
	DescriptionMinLen = 10
	DescriptionMaxLen = 500
)

// InviteTTL is how long an invite token stays valid.
const InviteTTL = 7 * 24 * time.Hour

// Community is the top-level tenant entity containing projects and tasks.
type Community struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsPrivate   bool      `json:"is_private"`
	CreatorID   int64     `json:"creator_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Membership grants a user standing in a community. Unique per
// (community, user) pair; a user holds exactly one role per community.
type Membership struct {
	ID          int64     `json:"id"`
	CommunityID int64     `json:"community_id"`
	UserID      int64     `json:"user_id"`
	Role        rbac.Role `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Invite is an opaque, time-limited token permitting Join into a private
// community. Never mutated after creation.
type Invite struct {
	ID          int64     `json:"id"`
	CommunityID int64     `json:"community_id"`
	Token       string    `json:"token,omitempty"`
	IssuedBy    int64     `json:"issued_by"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	ShareURL    string    `json:"share_url,omitempty"`
}

// LeaveOutcome distinguishes a plain departure from one that cascaded into
// community deletion.
type LeaveOutcome string

const (
	OutcomeLeft             LeaveOutcome = "left"
	OutcomeCommunityDeleted LeaveOutcome = "community_deleted"
)

// CreateCommunityRequest carries the fields for creating a community.
type CreateCommunityRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
}

// UpdateCommunityRequest carries partial updates to a community's settings.
type UpdateCommunityRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsPrivate   *bool   `json:"is_private,omitempty"`
}

// Service defines the community membership lifecycle. It is the exclusive
// owner of the invariant-preserving mutation path for communities,
// memberships, and invites.
type Service interface {
	// Community lifecycle
	CreateCommunity(actor auth.Actor, req CreateCommunityRequest) (*Community, error)
	GetCommunity(id int64) (*Community, error)
	ListCommunities(userID int64) ([]*Community, error)
	UpdateCommunity(actor auth.Actor, id int64, req UpdateCommunityRequest) (*Community, error)
	DeleteCommunity(actor auth.Actor, id int64) error

	// Membership lifecycle
	Join(actor auth.Actor, communityID int64, inviteToken string) (*Membership, error)
	Leave(actor auth.Actor, communityID int64) (LeaveOutcome, error)
	UpdateMemberRole(actor auth.Actor, communityID, targetUserID int64, newRole rbac.Role) error
	ListMembers(communityID int64) ([]*Membership, error)
	GetMembershipRole(userID, communityID int64) (rbac.Role, bool, error)

	// Invites
	IssueInvite(actor auth.Actor, communityID int64) (*Invite, error)
	ListInvites(actor auth.Actor, communityID int64) ([]*Invite, error)
	RevokeInvite(actor auth.Actor, communityID, inviteID int64) error
	CleanupExpiredInvites() (int64, error)
}

// validateName checks community name length bounds. Bounds are counted in
// runes, not bytes, so multibyte names are not penalized.
func validateName(name string) error {
	if n := utf8.RuneCountInString(name); n < NameMinLen || n > NameMaxLen {
		return errNameBounds
	}
	return nil
}

// validateDescription checks community description length bounds in runes.
func validateDescription(desc string) error {
	if n := utf8.RuneCountInString(desc); n < DescriptionMinLen || n > DescriptionMaxLen {
		return errDescriptionBounds
	}
	return nil
}
