package httputil

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"github.com/platinummonkey/appr/pkg/apperrors"
	"github.com/platinummonkey/appr/pkg/observability"
)

// ProblemTypeBase prefixes every problem "type" URI
const ProblemTypeBase = "https://appr.example.com/errors/"

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// DataResponse is the single-item envelope
type DataResponse struct {
	Data interface{} `json:"data"`
}

// PageMeta describes one page of a list
type PageMeta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
}

// NewPageMeta computes total_pages as ceil(total/per_page)
func NewPageMeta(total, page, perPage int) PageMeta {
	totalPages := 0
	if perPage > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(perPage)))
	}
	return PageMeta{Total: total, Page: page, PerPage: perPage, TotalPages: totalPages}
}

// WriteData writes {"data": v} with 200 OK
func WriteData(w http.ResponseWriter, v interface{}) error {
	return WriteJSON(w, http.StatusOK, DataResponse{Data: v})
}

// WriteCreated writes {"data": v} with 201 Created
func WriteCreated(w http.ResponseWriter, v interface{}) error {
	return WriteJSON(w, http.StatusCreated, DataResponse{Data: v})
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteMessage writes {"message": msg} with the given status
func WriteMessage(w http.ResponseWriter, status int, message string) error {
	return WriteJSON(w, status, map[string]string{"message": message})
}

// Problem is an RFC 7807 problem details body
type Problem struct {
	Type     string                 `json:"type"`
	Title    string                 `json:"title"`
	Status   int                    `json:"status"`
	Detail   string                 `json:"detail,omitempty"`
	Instance string                 `json:"instance,omitempty"`
	Errors   []apperrors.FieldError `json:"errors,omitempty"`
}

// NewProblem maps an error onto its problem body. Errors that are not
// *apperrors.Error become a generic 500 so internals never leak.
func NewProblem(r *http.Request, err error) Problem {
	appErr, ok := apperrors.As(err)
	if !ok {
		return Problem{
			Type:     ProblemTypeBase + "internal",
			Title:    "Internal Server Error",
			Status:   http.StatusInternalServerError,
			Detail:   "An unexpected error occurred.",
			Instance: r.URL.Path,
		}
	}

	status := appErr.Kind.Status()
	problem := Problem{
		Type:     fmt.Sprintf("%shttp-%d", ProblemTypeBase, status),
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   appErr.Detail,
		Instance: r.URL.Path,
	}
	switch appErr.Kind {
	case apperrors.KindValidation:
		problem.Type = ProblemTypeBase + "validation"
		problem.Title = "Validation Error"
		problem.Errors = appErr.Fields
	case apperrors.KindInternal:
		problem.Type = ProblemTypeBase + "internal"
	}
	return problem
}

// WriteProblem renders err as application/problem+json. 5xx errors are logged.
func WriteProblem(w http.ResponseWriter, r *http.Request, err error) {
	problem := NewProblem(r, err)

	if problem.Status >= http.StatusInternalServerError {
		observability.FromContext(r.Context()).
			WithError(err).
			WithField("path", r.URL.Path).
			Error("request failed")
	}
	if problem.Status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)
	json.NewEncoder(w).Encode(problem)
}
