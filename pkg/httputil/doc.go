// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helper functions for JSON encoding/decoding, error
// responses, and parameter parsing shared by every API handler.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteSuccess(w, community)
//	httputil.WriteCreated(w, resource)
//
// Error responses:
//
//	httputil.WriteBadRequest(w, "Invalid input")
//	httputil.WriteUnauthorized(w, "Token expired")
//
// Domain errors carry their own kind and map to a status in one call:
//
//	if err := svc.Join(actor, communityID, token); err != nil {
//		httputil.WriteDomainError(w, err)
//		return
//	}
//
// # Request Parsing
//
// JSON parsing:
//
//	var req CreateCommunityRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
// Path parameters:
//
//	communityID, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
//
// # Related Packages
//
//   - pkg/middleware: Authentication and request-ID middleware
//   - pkg/apperrors: The domain error kinds WriteDomainError maps
package httputil
