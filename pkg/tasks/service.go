package tasks

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/huddlehq/huddle/pkg/apperrors"
	"github.com/huddlehq/huddle/pkg/auth"
	"github.com/huddlehq/huddle/pkg/rbac"
)

// Service defines task operations.
type Service interface {
	CreateTask(actor auth.Actor, communityID, projectID int64, req CreateTaskRequest) (*Task, error)
	GetTask(actor auth.Actor, communityID, taskID int64) (*Task, error)
	ListTasks(actor auth.Actor, communityID, projectID int64) ([]*Task, error)
	UpdateTask(actor auth.Actor, communityID, taskID int64, req UpdateTaskRequest) (*Task, error)
	DeleteTask(actor auth.Actor, communityID, taskID int64) error
	AssignTask(actor auth.Actor, communityID, taskID, assigneeID int64) (*Task, error)
	UnassignTask(actor auth.Actor, communityID, taskID int64) (*Task, error)
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

const taskColumns = `id, project_id, community_id, title, description, status, assignee_id, created_by, created_at, updated_at`

func scanTask(row interface{ Scan(...interface{}) error }) (*Task, error) {
	task := &Task{}
	err := row.Scan(
		&task.ID, &task.ProjectID, &task.CommunityID, &task.Title, &task.Description,
		&task.Status, &task.AssigneeID, &task.CreatedBy, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// CreateTask creates a task in a project. Requires task:create
// (developer I+). The project must belong to the community.
func (s *PostgresService) CreateTask(actor auth.Actor, communityID, projectID int64, req CreateTaskRequest) (*Task, error) {
	if req.Title == "" {
		return nil, apperrors.Validationf("title is required")
	}
	if _, err := s.guard.Require(actor.UserID, communityID, rbac.PermissionCreateTask); err != nil {
		return nil, err
	}

	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM projects WHERE id = $1 AND community_id = $2)
	`, projectID, communityID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check project: %w", err)
	}
	if !exists {
		return nil, apperrors.NotFoundf("project not found")
	}

	row := s.db.QueryRow(`
		INSERT INTO tasks (project_id, community_id, title, description, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+taskColumns+`
	`, projectID, communityID, req.Title, req.Description, StatusTodo, actor.UserID)
	task, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

// GetTask retrieves a task. Membership is the only requirement.
func (s *PostgresService) GetTask(actor auth.Actor, communityID, taskID int64) (*Task, error) {
	if _, err := s.guard.Require(actor.UserID, communityID, rbac.PermissionViewOnly); err != nil {
		return nil, err
	}

	row := s.db.QueryRow(`
		SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND community_id = $2
	`, taskID, communityID)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundf("task not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// ListTasks lists a project's tasks for a member.
func (s *PostgresService) ListTasks(actor auth.Actor, communityID, projectID int64) ([]*Task, error) {
	if _, err := s.guard.Require(actor.UserID, communityID, rbac.PermissionViewOnly); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT `+taskColumns+` FROM tasks
		WHERE project_id = $1 AND community_id = $2
		ORDER BY created_at DESC
	`, projectID, communityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// UpdateTask applies partial updates. Requires task:edit (developer I+).
func (s *PostgresService) UpdateTask(actor auth.Actor, communityID, taskID int64, req UpdateTaskRequest) (*Task, error) {
	if req.Title != nil && *req.Title == "" {
		return nil, apperrors.Validationf("title cannot be empty")
	}
	if req.Status != nil && !req.Status.Valid() {
		return nil, apperrors.Validationf("invalid status %q", *req.Status)
	}
	if _, err := s.guard.Require(actor.UserID, communityID, rbac.PermissionEditTask); err != nil {
		return nil, err
	}

	setClauses := []string{"updated_at = NOW()"}
	args := []interface{}{}
	argPos := 1
	if req.Title != nil {
		setClauses = append(setClauses, fmt.Sprintf("title = $%d", argPos))
		args = append(args, *req.Title)
		argPos++
	}
	if req.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", argPos))
		args = append(args, *req.Description)
		argPos++
	}
	if req.Status != nil {
		setClauses = append(setClauses, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}

	args = append(args, taskID, communityID)
	query := fmt.Sprintf(`
		UPDATE tasks SET %s WHERE id = $%d AND community_id = $%d
		RETURNING %s
	`, strings.Join(setClauses, ", "), argPos, argPos+1, taskColumns)

	task, err := scanTask(s.db.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundf("task not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

// DeleteTask deletes a task. Requires task:delete (developer II+).
func (s *PostgresService) DeleteTask(actor auth.Actor, communityID, taskID int64) error {
	if _, err := s.guard.Require(actor.UserID, communityID, rbac.PermissionDeleteTask); err != nil {
		return err
	}

	result, err := s.db.Exec(`DELETE FROM tasks WHERE id = $1 AND community_id = $2`, taskID, communityID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return apperrors.NotFoundf("task not found")
	}
	return nil
}

// AssignTask assigns a task to a community member. Requires task:assign
// (developer III+). Assigning to a non-member is a conflict.
func (s *PostgresService) AssignTask(actor auth.Actor, communityID, taskID, assigneeID int64) (*Task, error) {
	if _, err := s.guard.Require(actor.UserID, communityID, rbac.PermissionAssignTask); err != nil {
		return nil, err
	}

	var isMember bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM community_members WHERE community_id = $1 AND user_id = $2)
	`, communityID, assigneeID).Scan(&isMember)
	if err != nil {
		return nil, fmt.Errorf("failed to check assignee membership: %w", err)
	}
	if !isMember {
		return nil, apperrors.Conflictf("assignee is not a member of this community")
	}

	return s.setAssignee(communityID, taskID, &assigneeID)
}

// UnassignTask clears a task's assignee. Requires task:assign.
func (s *PostgresService) UnassignTask(actor auth.Actor, communityID, taskID int64) (*Task, error) {
	if _, err := s.guard.Require(actor.UserID, communityID, rbac.PermissionAssignTask); err != nil {
		return nil, err
	}
	return s.setAssignee(communityID, taskID, nil)
}

func (s *PostgresService) setAssignee(communityID, taskID int64, assigneeID *int64) (*Task, error) {
	row := s.db.QueryRow(`
		UPDATE tasks SET assignee_id = $1, updated_at = NOW()
		WHERE id = $2 AND community_id = $3
		RETURNING `+taskColumns+`
	`, assigneeID, taskID, communityID)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundf("task not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to assign task: %w", err)
	}
	return task, nil
}
