package models

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Problem is an RFC 7807 error body, served as application/problem+json.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`

	// RetryAfter is sent as the Retry-After header, in seconds, when positive.
	RetryAfter int `json:"-"`
}

// FieldError is a validation failure on a single request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ProblemBaseURL prefixes every problem type URI.
const ProblemBaseURL = "https://breezyd.dev/problems/"

const (
	ProblemTypeValidation      = ProblemBaseURL + "validation-error"
	ProblemTypeUnauthorized    = ProblemBaseURL + "unauthorized"
	ProblemTypeForbidden       = ProblemBaseURL + "forbidden"
	ProblemTypeNotFound        = ProblemBaseURL + "not-found"
	ProblemTypeConflict        = ProblemBaseURL + "conflict"
	ProblemTypeMediaType       = ProblemBaseURL + "unsupported-media-type"
	ProblemTypeTooManyRequests = ProblemBaseURL + "too-many-requests"
	ProblemTypeInternal        = ProblemBaseURL + "internal-error"
	ProblemTypeUpstream        = ProblemBaseURL + "upstream-unavailable"
	ProblemTypeUnavailable     = ProblemBaseURL + "service-unavailable"
)

type problemKind struct {
	typ   string
	title string
}

var problemCatalog = map[int]problemKind{
	http.StatusBadRequest:           {ProblemTypeValidation, "Validation error"},
	http.StatusUnauthorized:         {ProblemTypeUnauthorized, "Unauthorized"},
	http.StatusForbidden:            {ProblemTypeForbidden, "Forbidden"},
	http.StatusNotFound:             {ProblemTypeNotFound, "Not found"},
	http.StatusConflict:             {ProblemTypeConflict, "Conflict"},
	http.StatusUnsupportedMediaType: {ProblemTypeMediaType, "Unsupported media type"},
	http.StatusTooManyRequests:      {ProblemTypeTooManyRequests, "Too many requests"},
	http.StatusInternalServerError:  {ProblemTypeInternal, "Internal server error"},
	http.StatusServiceUnavailable:   {ProblemTypeUnavailable, "Service unavailable"},
}

// NewStatusProblem builds the catalogued problem for status. Statuses
// outside the catalog get type about:blank and the standard status text.
func NewStatusProblem(status int, traceID, detail string) *Problem {
	kind, ok := problemCatalog[status]
	if !ok {
		kind = problemKind{typ: "about:blank", title: http.StatusText(status)}
	}
	return &Problem{
		Type:    kind.typ,
		Title:   kind.title,
		Status:  status,
		Detail:  detail,
		TraceID: traceID,
	}
}

// NewBadRequest returns a 400 carrying per-field validation errors.
func NewBadRequest(traceID, detail string, errs []FieldError) *Problem {
	p := NewStatusProblem(http.StatusBadRequest, traceID, detail)
	p.Errors = errs
	return p
}

// NewUpstreamUnavailable returns a 503 for requests that failed because no
// weather source could answer them.
func NewUpstreamUnavailable(traceID, detail string, retryAfter int) *Problem {
	p := NewStatusProblem(http.StatusServiceUnavailable, traceID, detail)
	p.Type = ProblemTypeUpstream
	p.Title = "Upstream unavailable"
	p.RetryAfter = retryAfter
	return p
}

// Write sends p with its status code.
func (p *Problem) Write(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		h.Set("X-Request-Id", p.TraceID)
	}
	if p.RetryAfter > 0 {
		h.Set("Retry-After", strconv.Itoa(p.RetryAfter))
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
