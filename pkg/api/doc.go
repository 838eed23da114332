// Package api exposes the HTTP surface. Handlers are thin adapters: they
// authenticate via the actor in the request context, parse path and body
// input with pkg/httputil, delegate to a domain service, and map errors
// through httputil.WriteDomainError. No authorization decisions live here;
// the domain services own the permission checks.
//
// Routes are grouped per domain in handler structs with a RegisterRoutes
// method, all mounted by NewServer:
//
//	POST   /communities
//	GET    /communities
//	GET    /communities/{community_id}
//	PATCH  /communities/{community_id}
//	DELETE /communities/{community_id}
//	GET    /communities/{community_id}/members
//	POST   /communities/{community_id}/members
//	DELETE /communities/{community_id}/members/me
//	PUT    /communities/{community_id}/members/{user_id}/role
//	POST   /communities/{community_id}/invites
//	GET    /communities/{community_id}/invites
//	DELETE /communities/{community_id}/invites/{invite_id}
//	POST   /communities/{community_id}/projects
//	GET    /communities/{community_id}/projects
//	GET    /communities/{community_id}/projects/{project_id}
//	PATCH  /communities/{community_id}/projects/{project_id}
//	DELETE /communities/{community_id}/projects/{project_id}
//	POST   /communities/{community_id}/projects/{project_id}/tasks
//	GET    /communities/{community_id}/projects/{project_id}/tasks
//	GET    /communities/{community_id}/tasks/{task_id}
//	PATCH  /communities/{community_id}/tasks/{task_id}
//	DELETE /communities/{community_id}/tasks/{task_id}
//	PUT    /communities/{community_id}/tasks/{task_id}/assignee
//	DELETE /communities/{community_id}/tasks/{task_id}/assignee
package api
