package projects

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/huddlehq/huddle/pkg/apperrors"
	"github.com/huddlehq/huddle/pkg/auth"
	"github.com/huddlehq/huddle/pkg/rbac"
)

// Service defines project operations.
type Service interface {
	CreateProject(actor auth.Actor, communityID int64, req CreateProjectRequest) (*Project, error)
	GetProject(actor auth.Actor, communityID, projectID int64) (*Project, error)
	ListProjects(actor auth.Actor, communityID int64) ([]*Project, error)
	UpdateProject(actor auth.Actor, communityID, projectID int64, req UpdateProjectRequest) (*Project, error)
	DeleteProject(actor auth.Actor, communityID, projectID int64) error
}

// PostgresService implements Service using PostgreSQL.
type PostgresService struct {
	db    *sql.DB
	guard *rbac.Guard
}

// NewPostgresService creates a new PostgresService.
func NewPostgresService(db *sql.DB, guard *rbac.Guard) *PostgresService {
	return &PostgresService{db: db, guard: guard}
}

// CreateProject creates a project. Requires project:create (manager+).
func (s *PostgresService) CreateProject(actor auth.Actor, communityID int64, req CreateProjectRequest) (*Project, error) {
	if req.Name == "" {
		return nil, apperrors.Validationf("name is required")
	}
	if _, err := s.guard.Require(actor.UserID, communityID, rbac.PermissionCreateProject); err != nil {
		return nil, err
	}

	project := &Project{
		CommunityID: communityID,
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   actor.UserID,
	}
	err := s.db.QueryRow(`
		INSERT INTO projects (community_id, name, description, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, communityID, req.Name, req.Description, actor.UserID).
		Scan(&project.ID, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return project, nil
}

// GetProject retrieves a project. Membership is the only requirement.
func (s *PostgresService) GetProject(actor auth.Actor, communityID, projectID int64) (*Project, error) {
	if _, err := s.guard.Require(actor.UserID, communityID, rbac.PermissionViewOnly); err != nil {
		return nil, err
	}
	return s.getProject(communityID, projectID)
}

func (s *PostgresService) getProject(communityID, projectID int64) (*Project, error) {
	project := &Project{}
	err := s.db.QueryRow(`
		SELECT id, community_id, name, description, created_by, created_at, updated_at
		FROM projects
		WHERE id = $1 AND community_id = $2
	`, projectID, communityID).Scan(
		&project.ID, &project.CommunityID, &project.Name, &project.Description,
		&project.CreatedBy, &project.CreatedAt, &project.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundf("project not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

// ListProjects lists a community's projects for a member.
func (s *PostgresService) ListProjects(actor auth.Actor, communityID int64) ([]*Project, error) {
	if _, err := s.guard.Require(actor.UserID, communityID, rbac.PermissionViewOnly); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT id, community_id, name, description, created_by, created_at, updated_at
		FROM projects
		WHERE community_id = $1
		ORDER BY created_at DESC
	`, communityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		project := &Project{}
		if err := rows.Scan(
			&project.ID, &project.CommunityID, &project.Name, &project.Description,
			&project.CreatedBy, &project.CreatedAt, &project.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// UpdateProject applies partial updates. Requires project:edit (manager+).
func (s *PostgresService) UpdateProject(actor auth.Actor, communityID, projectID int64, req UpdateProjectRequest) (*Project, error) {
	if req.Name != nil && *req.Name == "" {
		return nil, apperrors.Validationf("name cannot be empty")
	}
	if _, err := s.guard.Require(actor.UserID, communityID, rbac.PermissionEditProject); err != nil {
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

	args = append(args, projectID, communityID)
	query := fmt.Sprintf(`
		UPDATE projects SET %s WHERE id = $%d AND community_id = $%d
		RETURNING id, community_id, name, description, created_by, created_at, updated_at
	`, strings.Join(setClauses, ", "), argPos, argPos+1)

	project := &Project{}
	err := s.db.QueryRow(query, args...).Scan(
		&project.ID, &project.CommunityID, &project.Name, &project.Description,
		&project.CreatedBy, &project.CreatedAt, &project.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundf("project not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return project, nil
}

// DeleteProject deletes a project and its tasks. Requires project:delete
// (manager+).
func (s *PostgresService) DeleteProject(actor auth.Actor, communityID, projectID int64) error {
	if _, err := s.guard.Require(actor.UserID, communityID, rbac.PermissionDeleteProject); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM tasks WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to delete project tasks: %w", err)
	}
	result, err := tx.Exec(`DELETE FROM projects WHERE id = $1 AND community_id = $2`, projectID, communityID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return apperrors.NotFoundf("project not found")
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
