// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helper functions for JSON envelopes, RFC 7807 problem
// responses, request parsing with struct-tag validation, and the common HTTP
// middleware (request IDs, request logging, panic recovery, CORS).
//
// # Response Helpers
//
// Envelopes:
//
//	httputil.WriteData(w, user)        // {"data": {...}}
//	httputil.WriteCreated(w, service)  // 201 {"data": {...}}
//	httputil.WriteJSON(w, http.StatusOK, page) // {"data": [...], "meta": {...}}
//
// Errors are never written with a hand-picked status. Return an
// *apperrors.Error and let WriteProblem map it:
//
//	if err != nil {
//		httputil.WriteProblem(w, r, err)
//		return
//	}
//
// # Request Parsing
//
// JSON parsing validates `validate:"..."` struct tags and reports failures as
// 422 with per-field errors:
//
//	var req CreateUserRequest
//	if err := httputil.ParseJSON(r, &req); err != nil {
//		httputil.WriteProblem(w, r, err)
//		return
//	}
//
// Path and query parameters:
//
//	id, err := httputil.ParsePathUUID(r, "id")
//	page, err := httputil.ParsePagination(r)
package httputil
