package communities

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/huddlehq/huddle/pkg/apperrors"
	"github.com/huddlehq/huddle/pkg/auth"
	"github.com/huddlehq/huddle/pkg/rbac"
)

// inviteTokenBytes sizes the random token at 256 bits, well past the point
// where collisions or guessing are a practical concern.
const inviteTokenBytes = 32

const uniqueViolation = "23505"

// IssueInvite generates an opaque join token for a community with a 7-day
// expiry and returns it with a shareable link. Requires invite:manage
// (admin or owner).
func (s *PostgresService) IssueInvite(actor auth.Actor, communityID int64) (*Invite, error) {
	if _, err := s.GetCommunity(communityID); err != nil {
		return nil, err
	}
	role, ok, err := s.GetMembershipRole(actor.UserID, communityID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.Forbiddenf("not a member of this community")
	}
	if err := rbac.Authorize(role, rbac.PermissionManageInvites); err != nil {
		return nil, err
	}

	// A collision on the token's unique index is negligible at this entropy.
	// Regenerate once if it happens anyway; a second collision means
	// something is broken and we fail hard.
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		token, err := generateInviteToken()
		if err != nil {
			return nil, err
		}

		invite := &Invite{
			CommunityID: communityID,
			Token:       token,
			IssuedBy:    actor.UserID,
			ExpiresAt:   time.Now().Add(InviteTTL),
		}
		err = s.db.QueryRow(`
			INSERT INTO community_invites (community_id, token, issued_by, expires_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`, communityID, token, actor.UserID, invite.ExpiresAt).
			Scan(&invite.ID, &invite.CreatedAt)
		if err == nil {
			invite.ShareURL = fmt.Sprintf("%s/invites/%s", s.baseURL, token)
			return invite, nil
		}

		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			lastErr = err
			continue
		}
		return nil, fmt.Errorf("failed to create invite: %w", err)
	}
	return nil, fmt.Errorf("invite token collision persisted after regeneration: %w", lastErr)
}

// ListInvites lists a community's invites, newest first. Requires
// invite:manage since tokens are sensitive.
func (s *PostgresService) ListInvites(actor auth.Actor, communityID int64) ([]*Invite, error) {
	role, ok, err := s.GetMembershipRole(actor.UserID, communityID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.Forbiddenf("not a member of this community")
	}
	if err := rbac.Authorize(role, rbac.PermissionManageInvites); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT id, community_id, token, issued_by, created_at, expires_at
		FROM community_invites
		WHERE community_id = $1
		ORDER BY created_at DESC
	`, communityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	var invites []*Invite
	for rows.Next() {
		invite := &Invite{}
		if err := rows.Scan(
			&invite.ID, &invite.CommunityID, &invite.Token,
			&invite.IssuedBy, &invite.CreatedAt, &invite.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		invite.ShareURL = fmt.Sprintf("%s/invites/%s", s.baseURL, invite.Token)
		invites = append(invites, invite)
	}
	return invites, rows.Err()
}

// RevokeInvite deletes an invite before its natural expiry. Requires
// invite:manage.
func (s *PostgresService) RevokeInvite(actor auth.Actor, communityID, inviteID int64) error {
	role, ok, err := s.GetMembershipRole(actor.UserID, communityID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Forbiddenf("not a member of this community")
	}
	if err := rbac.Authorize(role, rbac.PermissionManageInvites); err != nil {
		return err
	}

	result, err := s.db.Exec(`
		DELETE FROM community_invites WHERE id = $1 AND community_id = $2
	`, inviteID, communityID)
	if err != nil {
		return fmt.Errorf("failed to revoke invite: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return apperrors.NotFoundf("invite not found")
	}
	return nil
}

// CleanupExpiredInvites removes invites past their expiry and reports how
// many were deleted. Invoked by the scheduled cleanup worker.
func (s *PostgresService) CleanupExpiredInvites() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM community_invites WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired invites: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

func generateInviteToken() (string, error) {
	b := make([]byte, inviteTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate invite token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
