package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/wortschatz/internal/validation"
)

// lessonContextKey is the context key for the validated lesson slug.
type lessonContextKey struct{}

// WithLesson returns a new context with the lesson slug attached.
func WithLesson(ctx context.Context, slug string) context.Context {
	return context.WithValue(ctx, lessonContextKey{}, slug)
}

// LessonFromContext extracts the lesson slug from the context.
func LessonFromContext(ctx context.Context) (string, bool) {
	slug, ok := ctx.Value(lessonContextKey{}).(string)
	if !ok || slug == "" {
		return "", false
	}
	return slug, true
}

// MustLessonFromContext extracts the lesson slug or panics.
// Use only when LessonMiddleware guarantees presence.
func MustLessonFromContext(ctx context.Context) string {
	slug, ok := LessonFromContext(ctx)
	if !ok {
		panic("lesson not in context: middleware misconfiguration")
	}
	return slug
}

// LessonMiddleware validates the {lesson} URL parameter and stores it in
// the request context. Malformed slugs get 400.
func LessonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "lesson")
		if verr := validation.ValidateLessonSlug("lesson", slug); verr != nil {
			WriteProblem(w, r, http.StatusBadRequest, "Invalid lesson: "+verr.Message)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithLesson(r.Context(), slug)))
	})
}
