package httpresult

import (
	"net/http"

	"httpmediator/pkg/result"
)

// ProblemContentType is the media type of problem details bodies.
const ProblemContentType = "application/problem+json"

// Problem is the problem details body written for error results. Code and
// TraceID are extension members.
type Problem struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title,omitempty"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	Code     string `json:"code,omitempty"`
	TraceID  string `json:"traceId,omitempty"`
}

// NewProblem builds the wire form of e. The cause of e is never included.
func NewProblem(e result.Error, status int, instance string) Problem {
	return Problem{
		Type:     "about:blank",
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   e.Message,
		Instance: instance,
		Code:     e.Code,
	}
}

// ToError converts p back into an Error, falling back to the title or status
// text when detail is empty.
func (p Problem) ToError() result.Error {
	msg := p.Detail
	if msg == "" {
		msg = p.Title
	}
	if msg == "" {
		msg = http.StatusText(p.Status)
	}
	if msg == "" {
		msg = "request failed"
	}
	code := p.Code
	if code == "" {
		code = result.CodeHTTP
	}
	return result.NewError(code, msg)
}
