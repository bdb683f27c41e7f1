package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hyperengineering/wortschatz/internal/backup"
	"github.com/hyperengineering/wortschatz/internal/store"
	"github.com/hyperengineering/wortschatz/internal/validation"
)

const problemBaseURI = "https://wortschatz.dev/errors/"

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

type problemType struct {
	typeURI string
	title   string
}

// problemTypes maps HTTP status codes to RFC 7807 type URIs and titles.
var problemTypes = map[int]problemType{
	http.StatusUnauthorized:          {problemBaseURI + "unauthorized", "Unauthorized"},
	http.StatusBadRequest:            {problemBaseURI + "bad-request", "Bad Request"},
	http.StatusNotFound:              {problemBaseURI + "not-found", "Not Found"},
	http.StatusInternalServerError:   {problemBaseURI + "internal-error", "Internal Server Error"},
	http.StatusUnprocessableEntity:   {problemBaseURI + "validation-error", "Validation Error"},
	http.StatusServiceUnavailable:    {problemBaseURI + "service-unavailable", "Service Unavailable"},
	http.StatusConflict:              {problemBaseURI + "conflict", "Conflict"},
	http.StatusRequestEntityTooLarge: {problemBaseURI + "payload-too-large", "Payload Too Large"},
	http.StatusTooManyRequests:       {problemBaseURI + "rate-limit", "Too Many Requests"},
}

func lookupProblemType(status int) problemType {
	if pt, ok := problemTypes[status]; ok {
		return pt
	}
	return problemType{typeURI: problemBaseURI + "unknown", title: http.StatusText(status)}
}

// WriteProblem writes an RFC 7807 Problem Details response.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	pt := lookupProblemType(status)
	writeProblemJSON(w, status, Problem{
		Type:     pt.typeURI,
		Title:    pt.title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	})
}

// ProblemWithErrors extends Problem with validation error details.
type ProblemWithErrors struct {
	Problem
	Errors []validation.ValidationError `json:"errors,omitempty"`
}

// WriteProblemWithErrors writes a 422 Problem Details response with field errors.
func WriteProblemWithErrors(w http.ResponseWriter, r *http.Request, detail string, errs []validation.ValidationError) {
	pt := problemTypes[http.StatusUnprocessableEntity]
	writeProblemJSON(w, http.StatusUnprocessableEntity, ProblemWithErrors{
		Problem: Problem{
			Type:     pt.typeURI,
			Title:    pt.title,
			Status:   http.StatusUnprocessableEntity,
			Detail:   detail,
			Instance: r.URL.Path,
		},
		Errors: errs,
	})
}

func writeProblemJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode problem response", "component", "api", "error", err)
	}
}

// WriteProblemConflict writes a 409 Conflict problem response.
func WriteProblemConflict(w http.ResponseWriter, r *http.Request, detail string) {
	WriteProblem(w, r, http.StatusConflict, detail)
}

// MapStoreError converts domain errors to Problem Details responses.
func MapStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		WriteProblem(w, r, http.StatusNotFound, "Resource not found")
	case errors.Is(err, store.ErrDuplicateEntry):
		WriteProblemConflict(w, r, "Vocabulary entry already exists in this lesson")
	case errors.Is(err, store.ErrLessonLimit):
		WriteProblemConflict(w, r, "No lesson numbers left to allocate")
	case errors.Is(err, backup.ErrInvalidSnapshot):
		WriteProblem(w, r, http.StatusUnprocessableEntity, "Invalid backup snapshot")
	default:
		// Never expose internal error details to client
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}
