package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/huddlehq/huddle/pkg/contextkeys"
	"github.com/huddlehq/huddle/pkg/httputil"
	"github.com/huddlehq/huddle/pkg/projects"
)

// ProjectHandlers handles project-related HTTP requests
type ProjectHandlers struct {
	svc projects.Service
}

// NewProjectHandlers creates a new ProjectHandlers
func NewProjectHandlers(svc projects.Service) *ProjectHandlers {
	return &ProjectHandlers{svc: svc}
}

// RegisterRoutes registers project routes
func (h *ProjectHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/communities/{community_id}/projects", h.CreateProject).Methods("POST")
	router.HandleFunc("/communities/{community_id}/projects", h.ListProjects).Methods("GET")
	router.HandleFunc("/communities/{community_id}/projects/{project_id}", h.GetProject).Methods("GET")
	router.HandleFunc("/communities/{community_id}/projects/{project_id}", h.UpdateProject).Methods("PATCH")
	router.HandleFunc("/communities/{community_id}/projects/{project_id}", h.DeleteProject).Methods("DELETE")
}

// CreateProject creates a project in a community
func (h *ProjectHandlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextkeys.ActorFrom(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	communityID, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
	if !ok {
		return
	}

	var req projects.CreateProjectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	project, err := h.svc.CreateProject(actor, communityID, req)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, project)
}

// ListProjects lists a community's projects
func (h *ProjectHandlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextkeys.ActorFrom(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	communityID, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
	if !ok {
		return
	}

	result, err := h.svc.ListProjects(actor, communityID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// GetProject retrieves a project
func (h *ProjectHandlers) GetProject(w http.ResponseWriter, r *http.Request) {
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

	project, err := h.svc.GetProject(actor, communityID, projectID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, project)
}

// UpdateProject applies partial updates to a project
func (h *ProjectHandlers) UpdateProject(w http.ResponseWriter, r *http.Request) {
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

	var req projects.UpdateProjectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	project, err := h.svc.UpdateProject(actor, communityID, projectID, req)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, project)
}

// DeleteProject deletes a project and its tasks
func (h *ProjectHandlers) DeleteProject(w http.ResponseWriter, r *http.Request) {
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

	if err := h.svc.DeleteProject(actor, communityID, projectID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
