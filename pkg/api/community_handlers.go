package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/huddlehq/huddle/pkg/apperrors"
	"github.com/huddlehq/huddle/pkg/auth"
	"github.com/huddlehq/huddle/pkg/communities"
	"github.com/huddlehq/huddle/pkg/contextkeys"
	"github.com/huddlehq/huddle/pkg/httputil"
	"github.com/huddlehq/huddle/pkg/observability"
	"github.com/huddlehq/huddle/pkg/rbac"
)

// CommunityHandlers handles community, membership, and invite HTTP requests
type CommunityHandlers struct {
	svc     communities.Service
	guard   *rbac.Guard
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewCommunityHandlers creates a new CommunityHandlers. guard and metrics
// may be nil; membership mutations invalidate guard entries so permission
// checks never see a role the mutation just removed.
func NewCommunityHandlers(svc communities.Service, guard *rbac.Guard, metrics *observability.Metrics, logger *observability.Logger) *CommunityHandlers {
	return &CommunityHandlers{svc: svc, guard: guard, metrics: metrics, logger: logger}
}

// RegisterRoutes registers community routes
func (h *CommunityHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/communities", h.CreateCommunity).Methods("POST")
	router.HandleFunc("/communities", h.ListCommunities).Methods("GET")
	router.HandleFunc("/communities/{community_id}", h.GetCommunity).Methods("GET")
	router.HandleFunc("/communities/{community_id}", h.UpdateCommunity).Methods("PATCH")
	router.HandleFunc("/communities/{community_id}", h.DeleteCommunity).Methods("DELETE")

	// Membership
	router.HandleFunc("/communities/{community_id}/members", h.ListMembers).Methods("GET")
	router.HandleFunc("/communities/{community_id}/members", h.Join).Methods("POST")
	router.HandleFunc("/communities/{community_id}/members/me", h.Leave).Methods("DELETE")
	router.HandleFunc("/communities/{community_id}/members/{user_id}/role", h.UpdateMemberRole).Methods("PUT")

	// Invites
	router.HandleFunc("/communities/{community_id}/invites", h.IssueInvite).Methods("POST")
	router.HandleFunc("/communities/{community_id}/invites", h.ListInvites).Methods("GET")
	router.HandleFunc("/communities/{community_id}/invites/{invite_id}", h.RevokeInvite).Methods("DELETE")
}

// CreateCommunity creates a community with the caller as its owner
func (h *CommunityHandlers) CreateCommunity(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextkeys.ActorFrom(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req communities.CreateCommunityRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	community, err := h.svc.CreateCommunity(actor, req)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.CommunitiesCreatedTotal.Inc()
	}
	h.logger.FromContext(r.Context()).WithField("community_id", community.ID).Info("community created")
	httputil.WriteCreated(w, community)
}

// ListCommunities lists the caller's communities
func (h *CommunityHandlers) ListCommunities(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextkeys.ActorFrom(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	result, err := h.svc.ListCommunities(actor.UserID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// requireVisible hides private communities from non-members. It returns
// NotFound rather than Forbidden so outsiders cannot confirm that a given
// community ID exists.
func (h *CommunityHandlers) requireVisible(actor auth.Actor, community *communities.Community) error {
	if !community.IsPrivate {
		return nil
	}
	_, member, err := h.svc.GetMembershipRole(actor.UserID, community.ID)
	if err != nil {
		return err
	}
	if !member {
		return apperrors.NotFoundf("community not found")
	}
	return nil
}

// GetCommunity retrieves a community by ID. Private communities are only
// visible to their members.
func (h *CommunityHandlers) GetCommunity(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextkeys.ActorFrom(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
	if !ok {
		return
	}

	community, err := h.svc.GetCommunity(id)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if err := h.requireVisible(actor, community); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, community)
}

// UpdateCommunity applies partial updates to a community's settings
func (h *CommunityHandlers) UpdateCommunity(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextkeys.ActorFrom(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
	if !ok {
		return
	}

	var req communities.UpdateCommunityRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	community, err := h.svc.UpdateCommunity(actor, id, req)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, community)
}

// DeleteCommunity deletes a community and everything in it
func (h *CommunityHandlers) DeleteCommunity(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextkeys.ActorFrom(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
	if !ok {
		return
	}

	if err := h.svc.DeleteCommunity(actor, id); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	h.guard.Invalidate(actor.UserID, id)
	if h.metrics != nil {
		h.metrics.CommunitiesDeletedTotal.WithLabelValues("delete").Inc()
	}
	h.logger.FromContext(r.Context()).WithField("community_id", id).Info("community deleted")
	httputil.WriteNoContent(w)
}

type joinRequest struct {
	InviteToken string `json:"invite_token,omitempty"`
}

// Join adds the caller to a community. Private communities require a
// valid invite token in the body.
func (h *CommunityHandlers) Join(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextkeys.ActorFrom(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
	if !ok {
		return
	}

	var req joinRequest
	if r.ContentLength > 0 && !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	membership, err := h.svc.Join(actor, id, req.InviteToken)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	h.guard.Invalidate(actor.UserID, id)
	if h.metrics != nil {
		h.metrics.MembershipEventsTotal.WithLabelValues("join").Inc()
	}
	httputil.WriteCreated(w, membership)
}

type leaveResponse struct {
	Outcome communities.LeaveOutcome `json:"outcome"`
}

// Leave removes the caller from a community. The response reports whether
// the departure cascaded into community deletion.
func (h *CommunityHandlers) Leave(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextkeys.ActorFrom(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
	if !ok {
		return
	}

	outcome, err := h.svc.Leave(actor, id)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	h.guard.Invalidate(actor.UserID, id)
	if h.metrics != nil {
		h.metrics.MembershipEventsTotal.WithLabelValues("leave").Inc()
		if outcome == communities.OutcomeCommunityDeleted {
			h.metrics.CommunitiesDeletedTotal.WithLabelValues("leave_cascade").Inc()
		}
	}
	h.logger.FromContext(r.Context()).
		WithField("community_id", id).
		WithField("outcome", string(outcome)).
		Info("member left community")
	httputil.WriteSuccess(w, leaveResponse{Outcome: outcome})
}

// ListMembers lists a community's memberships. Private rosters are only
// visible to members.
func (h *CommunityHandlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextkeys.ActorFrom(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
	if !ok {
		return
	}

	community, err := h.svc.GetCommunity(id)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if err := h.requireVisible(actor, community); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	members, err := h.svc.ListMembers(id)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, members)
}

type updateRoleRequest struct {
	Role rbac.Role `json:"role"`
}

// UpdateMemberRole promotes or demotes a member
func (h *CommunityHandlers) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextkeys.ActorFrom(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	communityID, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	var req updateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.svc.UpdateMemberRole(actor, communityID, userID, req.Role); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	h.guard.Invalidate(userID, communityID)
	if h.metrics != nil {
		h.metrics.RoleChangesTotal.WithLabelValues(string(req.Role)).Inc()
	}
	h.logger.FromContext(r.Context()).
		WithField("community_id", communityID).
		WithField("target_user_id", userID).
		WithField("new_role", string(req.Role)).
		Info("member role changed")
	httputil.WriteNoContent(w)
}

// IssueInvite creates a new invite token for a community
func (h *CommunityHandlers) IssueInvite(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextkeys.ActorFrom(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
	if !ok {
		return
	}

	invite, err := h.svc.IssueInvite(actor, id)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.InvitesIssuedTotal.Inc()
	}
	httputil.WriteCreated(w, invite)
}

// ListInvites lists a community's invites
func (h *CommunityHandlers) ListInvites(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextkeys.ActorFrom(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
	if !ok {
		return
	}

	invites, err := h.svc.ListInvites(actor, id)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, invites)
}

// RevokeInvite deletes an invite before its expiry
func (h *CommunityHandlers) RevokeInvite(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextkeys.ActorFrom(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	communityID, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
	if !ok {
		return
	}
	inviteID, ok := httputil.ParsePathInt64OrError(w, r, "invite_id")
	if !ok {
		return
	}

	if err := h.svc.RevokeInvite(actor, communityID, inviteID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
