package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/wortschatz/internal/backup"
	"github.com/hyperengineering/wortschatz/internal/bootstrap"
	"github.com/hyperengineering/wortschatz/internal/snapshot"
	"github.com/hyperengineering/wortschatz/internal/store"
	"github.com/hyperengineering/wortschatz/internal/types"
	"github.com/hyperengineering/wortschatz/internal/validation"
)

const (
	// maxEntryBody caps single-entry JSON bodies.
	maxEntryBody = 64 << 10
	// maxUploadBody caps lesson uploads and snapshot imports.
	maxUploadBody = 32 << 20
)

// BackupScheduler is the part of the backup worker the handlers use.
type BackupScheduler interface {
	Submit(reason string)
	LastBackup() *time.Time
	BackupNow(ctx context.Context) (*backup.Result, error)
}

// Initializer re-runs database initialization on demand.
type Initializer interface {
	EnsureInitialized(ctx context.Context) (*bootstrap.Outcome, error)
}

// Exporter builds an in-memory snapshot of the store.
type Exporter interface {
	Build(ctx context.Context, snapType types.SnapshotType) (*types.BackupSnapshot, error)
}

// Importer applies a parsed snapshot to the store.
type Importer interface {
	Apply(ctx context.Context, snap *types.BackupSnapshot) (*backup.RestoreResult, error)
}

// Deps holds everything a Handler needs.
type Deps struct {
	Store       store.Store
	Exporter    Exporter
	Importer    Importer
	Backups     BackupScheduler
	Initializer Initializer
	Uploader    snapshot.Uploader
	AdminKey    string
	Version     string
}

// Handler implements the API handlers
type Handler struct {
	store       store.Store
	exporter    Exporter
	importer    Importer
	backups     BackupScheduler
	initializer Initializer
	uploader    snapshot.Uploader
	adminKey    string
	version     string
}

// NewHandler creates a new Handler. A nil Uploader behaves as unconfigured
// snapshot storage.
func NewHandler(d Deps) *Handler {
	uploader := d.Uploader
	if uploader == nil {
		uploader = &snapshot.NoopUploader{}
	}
	return &Handler{
		store:       d.Store,
		exporter:    d.Exporter,
		importer:    d.Importer,
		backups:     d.Backups,
		initializer: d.Initializer,
		uploader:    uploader,
		adminKey:    d.AdminKey,
		version:     d.Version,
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		slog.Error("health check failed", "component", "api", "action", "health", "error", err)
		WriteProblem(w, r, http.StatusServiceUnavailable, "Store unavailable")
		return
	}

	resp := types.HealthResponse{
		Status:          "healthy",
		Version:         h.version,
		VocabularyCount: stats.VocabularyCount,
		LessonCount:     stats.LessonCount,
		LastBackup:      h.backups.LastBackup(),
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListLessons handles GET /api/v1/lessons
func (h *Handler) ListLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := h.store.ListLessons(r.Context())
	if err != nil {
		slog.Error("list lessons failed", "component", "api", "action", "list_lessons", "error", err)
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lessons)
}

// CreateLesson handles POST /api/v1/lessons.
//
// The body is either JSON {title, description, pairs} or a multipart form
// with a "file" part holding a JSON pairs array plus optional "title" and
// "description" fields. Invalid pairs are reported and skipped; a lesson is
// only allocated when at least one pair is valid.
func (h *Handler) CreateLesson(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)

	req, err := decodeLessonRequest(r)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}

	valid, rejected := validation.CleanPairs(req.Pairs)
	if len(valid) == 0 {
		WriteProblemWithErrors(w, r, "Lesson contains no valid vocabulary pairs", rejected)
		return
	}

	ctx := r.Context()
	slug, err := h.store.NextLessonSlug(ctx)
	if err != nil {
		slog.Warn("lesson slug allocation failed", "component", "api", "action", "create_lesson", "error", err)
		MapStoreError(w, r, err)
		return
	}

	inserted := 0
	for _, p := range valid {
		ok, err := h.store.InsertOrIgnore(ctx, slug, p)
		if err != nil {
			slog.Error("lesson insert failed", "component", "api", "action", "create_lesson", "lesson", slug, "error", err)
			MapStoreError(w, r, err)
			return
		}
		if ok {
			inserted++
		}
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = types.DefaultLessonTitle(slug)
	}
	lesson := types.Lesson{
		Slug:        slug,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		EntryCount:  inserted,
	}
	if err := h.store.UpsertLesson(ctx, lesson); err != nil {
		slog.Error("lesson upsert failed", "component", "api", "action", "create_lesson", "lesson", slug, "error", err)
		MapStoreError(w, r, err)
		return
	}

	h.backups.Submit("create_lesson")

	created, err := h.store.GetLesson(ctx, slug)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	errs := make([]string, 0, len(rejected))
	for _, e := range rejected {
		errs = append(errs, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}

	writeJSON(w, http.StatusCreated, types.CreateLessonResponse{
		Lesson:   *created,
		Inserted: inserted,
		Skipped:  len(req.Pairs) - inserted,
		Errors:   errs,
	})
}

// ListVocab handles GET /api/v1/vocab/{lesson}
func (h *Handler) ListVocab(w http.ResponseWriter, r *http.Request) {
	lesson := MustLessonFromContext(r.Context())

	entries, err := h.store.ListEntries(r.Context(), lesson)
	if err != nil {
		slog.Error("list vocabulary failed", "component", "api", "action", "list_vocab", "lesson", lesson, "error", err)
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// CreateVocab handles POST /api/v1/vocab/{lesson}. Unlike bulk paths, an
// existing identical entry is a 409.
func (h *Handler) CreateVocab(w http.ResponseWriter, r *http.Request) {
	lesson := MustLessonFromContext(r.Context())

	pair, ok := decodePair(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	entry, err := h.store.InsertOrFail(ctx, lesson, pair)
	if err != nil {
		if !errors.Is(err, store.ErrDuplicateEntry) {
			slog.Error("create entry failed", "component", "api", "action", "create_vocab", "lesson", lesson, "error", err)
		}
		MapStoreError(w, r, err)
		return
	}

	if err := h.store.EnsureLesson(ctx, lesson); err != nil {
		// The entry is stored; a missing lesson row only affects listings.
		slog.Warn("ensure lesson failed", "component", "api", "action", "create_vocab", "lesson", lesson, "error", err)
	}

	h.backups.Submit("create_vocab")
	writeJSON(w, http.StatusCreated, entry)
}

// UpdateVocab handles PUT /api/v1/vocab/{lesson}/{id}
func (h *Handler) UpdateVocab(w http.ResponseWriter, r *http.Request) {
	lesson := MustLessonFromContext(r.Context())

	id, ok := entryID(w, r)
	if !ok {
		return
	}
	pair, ok := decodePair(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if !h.entryInLesson(w, r, lesson, id) {
		return
	}

	entry, err := h.store.UpdateEntry(ctx, id, pair)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrDuplicateEntry) {
			slog.Error("update entry failed", "component", "api", "action", "update_vocab", "id", id, "error", err)
		}
		MapStoreError(w, r, err)
		return
	}

	h.backups.Submit("update_vocab")
	writeJSON(w, http.StatusOK, entry)
}

// DeleteVocab handles DELETE /api/v1/vocab/{lesson}/{id}
func (h *Handler) DeleteVocab(w http.ResponseWriter, r *http.Request) {
	lesson := MustLessonFromContext(r.Context())

	id, ok := entryID(w, r)
	if !ok {
		return
	}
	if !h.entryInLesson(w, r, lesson, id) {
		return
	}

	if err := h.store.DeleteEntry(r.Context(), id); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Error("delete entry failed", "component", "api", "action", "delete_vocab", "id", id, "error", err)
		}
		MapStoreError(w, r, err)
		return
	}

	slog.Info("entry deleted", "component", "api", "action", "delete_vocab", "lesson", lesson, "id", id)
	h.backups.Submit("delete_vocab")
	w.WriteHeader(http.StatusNoContent)
}

// entryInLesson writes a 404 unless entry id exists under lesson.
func (h *Handler) entryInLesson(w http.ResponseWriter, r *http.Request, lesson string, id int64) bool {
	entry, err := h.store.GetEntry(r.Context(), id)
	if err != nil {
		MapStoreError(w, r, err)
		return false
	}
	if entry.Lesson != lesson {
		WriteProblem(w, r, http.StatusNotFound, "Resource not found")
		return false
	}
	return true
}

func entryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid entry id: %q", raw))
		return 0, false
	}
	return id, true
}

// decodePair reads and validates a single-entry body.
func decodePair(w http.ResponseWriter, r *http.Request) (types.Pair, bool) {
	var req types.CreateEntryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEntryBody)).Decode(&req); err != nil {
		writeBodyError(w, r, err)
		return types.Pair{}, false
	}

	pair := validation.NormalizePair(types.Pair{SourceText: req.SourceText, TargetText: req.TargetText})
	if errs := validation.ValidatePair(-1, pair); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return types.Pair{}, false
	}
	return pair, true
}

// decodeLessonRequest reads a JSON or multipart lesson upload.
func decodeLessonRequest(r *http.Request) (*types.CreateLessonRequest, error) {
	if !isMultipart(r) {
		var req types.CreateLessonRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	data, err := readFormFile(r, "file")
	if err != nil {
		return nil, err
	}
	req := &types.CreateLessonRequest{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
	}
	if err := json.Unmarshal(data, &req.Pairs); err != nil {
		return nil, fmt.Errorf("file: %w", err)
	}
	return req, nil
}

// readBody returns the raw request body, or the named file part of a
// multipart form.
func readBody(r *http.Request, field string) ([]byte, error) {
	if isMultipart(r) {
		return readFormFile(r, field)
	}
	return io.ReadAll(r.Body)
}

func readFormFile(r *http.Request, field string) ([]byte, error) {
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		return nil, err
	}
	f, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("missing %q file part: %w", field, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// writeBodyError maps body read and decode failures to 413 or 400.
func writeBodyError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		WriteProblem(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %s", err.Error()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "component", "api", "error", err)
	}
}
