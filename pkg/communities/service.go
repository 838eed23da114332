package communities

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/huddlehq/huddle/pkg/apperrors"
	"github.com/huddlehq/huddle/pkg/auth"
	"github.com/huddlehq/huddle/pkg/rbac"
)

var (
	errNameBounds        = apperrors.Validationf("name must be between %d and %d characters", NameMinLen, NameMaxLen)
	errDescriptionBounds = apperrors.Validationf("description must be between %d and %d characters", DescriptionMinLen, DescriptionMaxLen)
)

// PostgresService implements Service using PostgreSQL.
type PostgresService struct {
	db      *sql.DB
	baseURL string
}

// NewPostgresService creates a new PostgresService. baseURL is the externally
// reachable address embedded in invite share links.
func NewPostgresService(db *sql.DB, baseURL string) *PostgresService {
	return &PostgresService{db: db, baseURL: strings.TrimRight(baseURL, "/")}
}

// CreateCommunity creates a community and its first membership (the creator
// as owner) in one transaction. Any authenticated user may create one.
func (s *PostgresService) CreateCommunity(actor auth.Actor, req CreateCommunityRequest) (*Community, error) {
	if err := validateName(req.Name); err != nil {
		return nil, err
	}
	if err := validateDescription(req.Description); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	community := &Community{
		Name:        req.Name,
		Description: req.Description,
		IsPrivate:   req.IsPrivate,
		CreatorID:   actor.UserID,
	}
	err = tx.QueryRow(`
		INSERT INTO communities (name, description, is_private, creator_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, req.Name, req.Description, req.IsPrivate, actor.UserID).
		Scan(&community.ID, &community.CreatedAt, &community.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create community: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO community_members (community_id, user_id, role)
		VALUES ($1, $2, $3)
	`, community.ID, actor.UserID, rbac.RoleOwner)
	if err != nil {
		return nil, fmt.Errorf("failed to create owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return community, nil
}

// GetCommunity retrieves a community by ID.
func (s *PostgresService) GetCommunity(id int64) (*Community, error) {
	community := &Community{}
	err := s.db.QueryRow(`
		SELECT id, name, description, is_private, creator_id, created_at, updated_at
		FROM communities
		WHERE id = $1
	`, id).Scan(
		&community.ID, &community.Name, &community.Description, &community.IsPrivate,
		&community.CreatorID, &community.CreatedAt, &community.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundf("community not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get community: %w", err)
	}
	return community, nil
}

// ListCommunities lists communities the user is a member of. Read path:
// membership existence is the filter, no permission check.
func (s *PostgresService) ListCommunities(userID int64) ([]*Community, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.name, c.description, c.is_private, c.creator_id, c.created_at, c.updated_at
		FROM communities c
		JOIN community_members cm ON c.id = cm.community_id
		WHERE cm.user_id = $1
		ORDER BY c.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list communities: %w", err)
	}
	defer rows.Close()

	var out []*Community
	for rows.Next() {
		community := &Community{}
		if err := rows.Scan(
			&community.ID, &community.Name, &community.Description, &community.IsPrivate,
			&community.CreatorID, &community.CreatedAt, &community.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan community: %w", err)
		}
		out = append(out, community)
	}
	return out, rows.Err()
}

// UpdateCommunity applies partial updates to name, description, or
// visibility. Requires the community:edit permission.
func (s *PostgresService) UpdateCommunity(actor auth.Actor, id int64, req UpdateCommunityRequest) (*Community, error) {
	if req.Name != nil {
		if err := validateName(*req.Name); err != nil {
			return nil, err
		}
	}
	if req.Description != nil {
		if err := validateDescription(*req.Description); err != nil {
			return nil, err
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := lockCommunity(tx, id); err != nil {
		return nil, err
	}
	actorRole, err := lockMembershipRole(tx, id, actor.UserID)
	if err != nil {
		return nil, err
	}
	if err := rbac.AuthorizeMember(actorRole, rbac.PermissionEditCommunity); err != nil {
		return nil, err
	}

	setClauses := []string{"updated_at = NOW()"}
	args := []interface{}{}
	argPos := 1
	if req.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argPos))
		args = append(args, *req.Name)
		argPos++
	}
	if req.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", argPos))
		args = append(args, *req.Description)
		argPos++
	}
	if req.IsPrivate != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_private = $%d", argPos))
		args = append(args, *req.IsPrivate)
		argPos++
	}

	args = append(args, id)
	community := &Community{}
	query := fmt.Sprintf(`
		UPDATE communities SET %s WHERE id = $%d
		RETURNING id, name, description, is_private, creator_id, created_at, updated_at
	`, strings.Join(setClauses, ", "), argPos)
	err = tx.QueryRow(query, args...).Scan(
		&community.ID, &community.Name, &community.Description, &community.IsPrivate,
		&community.CreatorID, &community.CreatedAt, &community.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update community: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return community, nil
}

// DeleteCommunity cascade-deletes a community and all dependent rows.
// Requires the community:delete permission (admin or owner). Deleting an
// already-deleted ID yields NotFound, not a silent success.
func (s *PostgresService) DeleteCommunity(actor auth.Actor, id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := lockCommunity(tx, id); err != nil {
		return err
	}
	actorRole, err := lockMembershipRole(tx, id, actor.UserID)
	if err != nil {
		return err
	}
	if err := rbac.AuthorizeMember(actorRole, rbac.PermissionDeleteCommunity); err != nil {
		return err
	}

	if err := cascadeDelete(tx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// lockCommunity loads and row-locks a community inside the transaction.
func lockCommunity(tx *sql.Tx, id int64) (*Community, error) {
	community := &Community{}
	err := tx.QueryRow(`
		SELECT id, name, description, is_private, creator_id, created_at, updated_at
		FROM communities
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(
		&community.ID, &community.Name, &community.Description, &community.IsPrivate,
		&community.CreatorID, &community.CreatedAt, &community.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundf("community not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock community: %w", err)
	}
	return community, nil
}

// lockMembershipRole loads and row-locks the actor's membership. A missing
// membership returns (nil, nil) so callers can feed it to the guard.
func lockMembershipRole(tx *sql.Tx, communityID, userID int64) (*rbac.Role, error) {
	var role rbac.Role
	err := tx.QueryRow(`
		SELECT role FROM community_members
		WHERE community_id = $1 AND user_id = $2
		FOR UPDATE
	`, communityID, userID).Scan(&role)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock membership: %w", err)
	}
	return &role, nil
}

// cascadeDelete removes every row belonging to a community. Each delete is
// issued explicitly; no foreign-key cascade is assumed.
func cascadeDelete(tx *sql.Tx, communityID int64) error {
	statements := []string{
		`DELETE FROM tasks WHERE community_id = $1`,
		`DELETE FROM projects WHERE community_id = $1`,
		`DELETE FROM community_invites WHERE community_id = $1`,
		`DELETE FROM community_members WHERE community_id = $1`,
		`DELETE FROM communities WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt, communityID); err != nil {
			return fmt.Errorf("failed to cascade delete community: %w", err)
		}
	}
	return nil
}
