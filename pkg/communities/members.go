package communities

import (
	"database/sql"
	"fmt"

	"github.com/huddlehq/huddle/pkg/apperrors"
	"github.com/huddlehq/huddle/pkg/auth"
	"github.com/huddlehq/huddle/pkg/rbac"
)

// Join transitions the actor from non-member to member at the lowest tier.
// Private communities require a valid, unexpired invite token bound to that
// community. Joining twice yields Conflict.
func (s *PostgresService) Join(actor auth.Actor, communityID int64, inviteToken string) (*Membership, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	community, err := lockCommunity(tx, communityID)
	if err != nil {
		return nil, err
	}

	if community.IsPrivate {
		if inviteToken == "" {
			return nil, apperrors.Forbiddenf("an invite is required to join this community")
		}
		if err := checkInvite(tx, communityID, inviteToken); err != nil {
			return nil, err
		}
	}

	membership := &Membership{
		CommunityID: communityID,
		UserID:      actor.UserID,
		Role:        rbac.RoleViewer,
	}
	err = tx.QueryRow(`
		INSERT INTO community_members (community_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (community_id, user_id) DO NOTHING
		RETURNING id, joined_at
	`, communityID, actor.UserID, rbac.RoleViewer).
		Scan(&membership.ID, &membership.JoinedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.Conflictf("already a member of this community")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return membership, nil
}

// checkInvite validates an invite token against the community inside the
// transaction. Unknown tokens are reported the same way as tokens for other
// communities so the response does not leak token existence.
func checkInvite(tx *sql.Tx, communityID int64, token string) error {
	var expired bool
	err := tx.QueryRow(`
		SELECT expires_at < NOW() FROM community_invites
		WHERE community_id = $1 AND token = $2
	`, communityID, token).Scan(&expired)
	if err == sql.ErrNoRows {
		return apperrors.Forbiddenf("invalid invite token")
	}
	if err != nil {
		return fmt.Errorf("failed to check invite: %w", err)
	}
	if expired {
		return apperrors.Forbiddenf("invite token has expired")
	}
	return nil
}

// Leave removes the actor's membership. The owner leaving deletes the whole
// community; the last admin may not leave; any other departure that empties
// the community triggers orphan cleanup, all inside one transaction.
func (s *PostgresService) Leave(actor auth.Actor, communityID int64) (LeaveOutcome, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var membershipID int64
	var role rbac.Role
	err = tx.QueryRow(`
		SELECT id, role FROM community_members
		WHERE community_id = $1 AND user_id = $2
		FOR UPDATE
	`, communityID, actor.UserID).Scan(&membershipID, &role)
	if err == sql.ErrNoRows {
		return "", apperrors.NotFoundf("membership not found")
	}
	if err != nil {
		return "", fmt.Errorf("failed to lock membership: %w", err)
	}

	if role == rbac.RoleOwner {
		if err := cascadeDelete(tx, communityID); err != nil {
			return "", err
		}
		if err := tx.Commit(); err != nil {
			return "", fmt.Errorf("failed to commit: %w", err)
		}
		return OutcomeCommunityDeleted, nil
	}

	if role == rbac.RoleAdmin {
		adminCount, err := lockAdminRows(tx, communityID)
		if err != nil {
			return "", err
		}
		if adminCount <= 1 {
			return "", apperrors.Conflictf("cannot leave as the last admin")
		}
	}

	if _, err := tx.Exec(`DELETE FROM community_members WHERE id = $1`, membershipID); err != nil {
		return "", fmt.Errorf("failed to delete membership: %w", err)
	}

	// Orphan cleanup runs after the deletion, against the transaction's view.
	var remaining int64
	err = tx.QueryRow(`
		SELECT COUNT(*) FROM community_members WHERE community_id = $1
	`, communityID).Scan(&remaining)
	if err != nil {
		return "", fmt.Errorf("failed to count remaining members: %w", err)
	}

	outcome := OutcomeLeft
	if remaining == 0 {
		if err := cascadeDelete(tx, communityID); err != nil {
			return "", err
		}
		outcome = OutcomeCommunityDeleted
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return outcome, nil
}

// UpdateMemberRole changes a member's role. Requires member:change_role
// (admin or owner). Owner demotion and ownership transfer are rejected
// outright; demoting the last admin is a conflict.
func (s *PostgresService) UpdateMemberRole(actor auth.Actor, communityID, targetUserID int64, newRole rbac.Role) error {
	if !newRole.Valid() {
		return apperrors.Validationf("unknown role %q", newRole)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	actorRole, err := lockMembershipRole(tx, communityID, actor.UserID)
	if err != nil {
		return err
	}
	if err := rbac.AuthorizeMember(actorRole, rbac.PermissionChangeRole); err != nil {
		return err
	}

	// Ownership is not assignable through role changes. Transferring it is a
	// distinct operation this system deliberately does not offer.
	if newRole == rbac.RoleOwner {
		return apperrors.Forbiddenf("ownership transfer is not supported")
	}

	var targetMembershipID int64
	var targetRole rbac.Role
	err = tx.QueryRow(`
		SELECT id, role FROM community_members
		WHERE community_id = $1 AND user_id = $2
		FOR UPDATE
	`, communityID, targetUserID).Scan(&targetMembershipID, &targetRole)
	if err == sql.ErrNoRows {
		return apperrors.NotFoundf("membership not found")
	}
	if err != nil {
		return fmt.Errorf("failed to lock target membership: %w", err)
	}

	if targetRole == rbac.RoleOwner {
		return apperrors.Forbiddenf("cannot change the community owner's role")
	}
	if targetRole == newRole {
		return tx.Commit()
	}

	if targetRole == rbac.RoleAdmin && newRole != rbac.RoleAdmin {
		adminCount, err := lockAdminRows(tx, communityID)
		if err != nil {
			return err
		}
		if adminCount <= 1 {
			return apperrors.Conflictf("cannot demote the last admin")
		}
	}

	if _, err := tx.Exec(`UPDATE community_members SET role = $1 WHERE id = $2`, newRole, targetMembershipID); err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// lockAdminRows row-locks every admin membership of the community and
// returns how many there are. Locking the rows serializes concurrent
// departures and demotions so two transactions cannot both observe a safe
// admin count.
func lockAdminRows(tx *sql.Tx, communityID int64) (int, error) {
	rows, err := tx.Query(`
		SELECT id FROM community_members
		WHERE community_id = $1 AND role = $2
		FOR UPDATE
	`, communityID, rbac.RoleAdmin)
	if err != nil {
		return 0, fmt.Errorf("failed to lock admin rows: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		count++
	}
	return count, rows.Err()
}

// ListMembers lists a community's memberships in join order.
func (s *PostgresService) ListMembers(communityID int64) ([]*Membership, error) {
	rows, err := s.db.Query(`
		SELECT id, community_id, user_id, role, joined_at
		FROM community_members
		WHERE community_id = $1
		ORDER BY joined_at ASC
	`, communityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Membership
	for rows.Next() {
		m := &Membership{}
		if err := rows.Scan(&m.ID, &m.CommunityID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// GetMembershipRole returns the user's role in a community, or ok=false when
// the user holds no membership. Consumed by the projects and tasks services
// to gate their own operations.
func (s *PostgresService) GetMembershipRole(userID, communityID int64) (rbac.Role, bool, error) {
	var role rbac.Role
	err := s.db.QueryRow(`
		SELECT role FROM community_members
		WHERE community_id = $1 AND user_id = $2
	`, communityID, userID).Scan(&role)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get membership role: %w", err)
	}
	return role, true, nil
}
