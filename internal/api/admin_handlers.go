package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/oklog/ulid/v2"

	"github.com/hyperengineering/wortschatz/internal/backup"
	"github.com/hyperengineering/wortschatz/internal/bootstrap"
	"github.com/hyperengineering/wortschatz/internal/snapshot"
	"github.com/hyperengineering/wortschatz/internal/types"
)

// Export handles GET|POST /api/v1/admin/export.
// Streams a manual snapshot as a file download.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	snap, err := h.exporter.Build(r.Context(), types.SnapshotManual)
	if err != nil {
		slog.Error("export failed", "component", "api", "action", "export", "error", err)
		MapStoreError(w, r, err)
		return
	}

	filename := fmt.Sprintf("wortschatz-export-%s.json", ulid.Make().String())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	writeJSON(w, http.StatusOK, snap)

	slog.Info("export served",
		"component", "api",
		"action", "export",
		"filename", filename,
		"lessons", snap.Stats.LessonsCount,
		"vocabulary", snap.Stats.VocabularyCount,
	)
}

// Import handles POST /api/v1/admin/import.
// Accepts a raw snapshot body or a multipart "file" part and restores it
// with insert-or-ignore semantics.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)

	data, err := readBody(r, "file")
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	if len(data) == 0 {
		WriteProblem(w, r, http.StatusBadRequest, "Request body is empty")
		return
	}

	snap, err := backup.ParseSnapshot(data)
	if err != nil {
		slog.Warn("import rejected", "component", "api", "action", "import", "error", err)
		MapStoreError(w, r, err)
		return
	}

	result, err := h.importer.Apply(r.Context(), snap)
	if err != nil {
		slog.Error("import failed", "component", "api", "action", "import", "error", err)
		MapStoreError(w, r, err)
		return
	}

	slog.Info("snapshot imported",
		"component", "api",
		"action", "import",
		"lessons", result.LessonsRestored,
		"inserted", result.VocabularyInserted,
		"skipped", result.VocabularySkipped,
	)

	h.backups.Submit("import")
	writeJSON(w, http.StatusOK, types.ImportResponse{
		LessonsRestored:    result.LessonsRestored,
		VocabularyInserted: result.VocabularyInserted,
		VocabularySkipped:  result.VocabularySkipped,
	})
}

// Backup handles POST /api/v1/admin/backup.
// Writes the auto-backup synchronously.
func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	result, err := h.backups.BackupNow(r.Context())
	if err != nil {
		slog.Error("manual backup failed", "component", "api", "action", "backup", "error", err)
		WriteProblem(w, r, http.StatusInternalServerError, "Backup failed")
		return
	}

	writeJSON(w, http.StatusOK, types.BackupResponse{
		Path:      result.Path,
		WrittenAt: result.WrittenAt,
		Stats:     result.Stats,
	})
}

// BackupURL handles GET /api/v1/admin/backup/url.
// Returns a pre-signed download URL for the mirrored auto-backup.
func (h *Handler) BackupURL(w http.ResponseWriter, r *http.Request) {
	url, expiresAt, err := h.uploader.PresignedURL(r.Context())
	if err != nil {
		if errors.Is(err, snapshot.ErrNotConfigured) {
			WriteProblem(w, r, http.StatusNotFound, "Snapshot storage is not configured")
			return
		}
		slog.Error("presign failed", "component", "api", "action", "backup_url", "error", err)
		WriteProblem(w, r, http.StatusServiceUnavailable, "Snapshot storage unavailable")
		return
	}

	writeJSON(w, http.StatusOK, types.BackupURLResponse{URL: url, ExpiresAt: expiresAt})
}

// Reinit handles POST /api/v1/admin/reinit.
// Re-runs initialization; a no-op on a populated database.
func (h *Handler) Reinit(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.initializer.EnsureInitialized(r.Context())
	if err != nil {
		slog.Error("reinit failed", "component", "api", "action", "reinit", "error", err)
		WriteProblem(w, r, http.StatusInternalServerError, "Initialization failed")
		return
	}

	if outcome.Source != bootstrap.SourceAlreadyPopulated {
		h.backups.Submit("reinit")
	}
	writeJSON(w, http.StatusOK, outcome)
}
