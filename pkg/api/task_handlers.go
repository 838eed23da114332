package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/huddlehq/huddle/pkg/contextkeys"
	"github.com/huddlehq/huddle/pkg/httputil"
	"github.com/huddlehq/huddle/pkg/tasks"
)

// TaskHandlers handles task-related HTTP requests
type TaskHandlers struct {
	svc tasks.Service
}

// NewTaskHandlers creates a new TaskHandlers
func NewTaskHandlers(svc tasks.Service) *TaskHandlers {
	return &TaskHandlers{svc: svc}
}

// RegisterRoutes registers task routes
func (h *TaskHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/communities/{community_id}/projects/{project_id}/tasks", h.CreateTask).Methods("POST")
	router.HandleFunc("/communities/{community_id}/projects/{project_id}/tasks", h.ListTasks).Methods("GET")
	router.HandleFunc("/communities/{community_id}/tasks/{task_id}", h.GetTask).Methods("GET")
	router.HandleFunc("/communities/{community_id}/tasks/{task_id}", h.UpdateTask).Methods("PATCH")
	router.HandleFunc("/communities/{community_id}/tasks/{task_id}", h.DeleteTask).Methods("DELETE")
	router.HandleFunc("/communities/{community_id}/tasks/{task_id}/assignee", h.AssignTask).Methods("PUT")
	router.HandleFunc("/communities/{community_id}/tasks/{task_id}/assignee", h.UnassignTask).Methods("DELETE")
}

// CreateTask creates a task in a project
func (h *TaskHandlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextkeys.ActorFrom(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	communityID, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
	if !ok {
		return
	}
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "project_id")
	if !ok {
		return
	}

	var req tasks.CreateTaskRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	task, err := h.svc.CreateTask(actor, communityID, projectID, req)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, task)
}

// ListTasks lists a project's tasks
func (h *TaskHandlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextkeys.ActorFrom(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	communityID, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
	if !ok {
		return
	}
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "project_id")
	if !ok {
		return
	}

	result, err := h.svc.ListTasks(actor, communityID, projectID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// GetTask retrieves a task
func (h *TaskHandlers) GetTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextkeys.ActorFrom(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	communityID, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
	if !ok {
		return
	}
	taskID, ok := httputil.ParsePathInt64OrError(w, r, "task_id")
	if !ok {
		return
	}

	task, err := h.svc.GetTask(actor, communityID, taskID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, task)
}

// UpdateTask applies partial updates to a task
func (h *TaskHandlers) UpdateTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextkeys.ActorFrom(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	communityID, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
	if !ok {
		return
	}
	taskID, ok := httputil.ParsePathInt64OrError(w, r, "task_id")
	if !ok {
		return
	}

	var req tasks.UpdateTaskRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	task, err := h.svc.UpdateTask(actor, communityID, taskID, req)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, task)
}

// DeleteTask deletes a task
func (h *TaskHandlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextkeys.ActorFrom(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	communityID, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
	if !ok {
		return
	}
	taskID, ok := httputil.ParsePathInt64OrError(w, r, "task_id")
	if !ok {
		return
	}

	if err := h.svc.DeleteTask(actor, communityID, taskID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

type assignRequest struct {
	AssigneeID int64 `json:"assignee_id"`
}

// AssignTask assigns a task to a community member
func (h *TaskHandlers) AssignTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextkeys.ActorFrom(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	communityID, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
	if !ok {
		return
	}
	taskID, ok := httputil.ParsePathInt64OrError(w, r, "task_id")
	if !ok {
		return
	}

	var req assignRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.AssigneeID == 0 {
		httputil.WriteBadRequest(w, "assignee_id is required")
		return
	}

	task, err := h.svc.AssignTask(actor, communityID, taskID, req.AssigneeID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, task)
}

// UnassignTask clears a task's assignee
func (h *TaskHandlers) UnassignTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextkeys.ActorFrom(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	communityID, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
	if !ok {
		return
	}
	taskID, ok := httputil.ParsePathInt64OrError(w, r, "task_id")
	if !ok {
		return
	}

	task, err := h.svc.UnassignTask(actor, communityID, taskID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, task)
}
