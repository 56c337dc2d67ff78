package handler

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/sakif/study-tracker/internal/apperror"
	"github.com/sakif/study-tracker/internal/service"
)

// ProgressHandler covers completion tracking: per-list toggles and topic
// completion for custom lists, plus the batch save/load endpoints for the
// builtin checklists and the one-shot localStorage migration.
type ProgressHandler struct {
	progressSvc *service.ProgressService
	logger      *slog.Logger
}

// NewProgressHandler creates a ProgressHandler.
func NewProgressHandler(progressSvc *service.ProgressService, logger *slog.Logger) *ProgressHandler {
	return &ProgressHandler{progressSvc: progressSvc, logger: logger}
}

// HandleToggle flips the completion flag on a topic or a single resource.
//
// HTTP: POST /api/progress/toggle
// Body: {"listId": "...", "topicId": "...", "resourceId": "..."}
//
// resourceId is optional; omitted means the topic row itself is toggled.
func (h *ProgressHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	ident, ok := mustIdentity(w, r)
	if !ok {
		return
	}

	var req struct {
		ListID     string `json:"listId"`
		TopicID    string `json:"topicId"`
		ResourceID string `json:"resourceId"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if _, err := uuid.Parse(req.ListID); err != nil {
		writeError(w, apperror.ValidationFailed("listId", "listId must be a valid UUID"))
		return
	}
	if _, err := uuid.Parse(req.TopicID); err != nil {
		writeError(w, apperror.ValidationFailed("topicId", "topicId must be a valid UUID"))
		return
	}
	if req.ResourceID != "" {
		if _, err := uuid.Parse(req.ResourceID); err != nil {
			writeError(w, apperror.ValidationFailed("resourceId", "resourceId must be a valid UUID"))
			return
		}
	}

	progress, err := h.progressSvc.Toggle(r.Context(), ident.UserID, req.ListID, req.TopicID, req.ResourceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// HandleCompleteTopic marks a topic and all its resources completed.
//
// HTTP: POST /api/progress/complete-topic
// Body: {"listId": "...", "topicId": "..."}
func (h *ProgressHandler) HandleCompleteTopic(w http.ResponseWriter, r *http.Request) {
	ident, ok := mustIdentity(w, r)
	if !ok {
		return
	}

	var req struct {
		ListID  string `json:"listId"`
		TopicID string `json:"topicId"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if _, err := uuid.Parse(req.ListID); err != nil {
		writeError(w, apperror.ValidationFailed("listId", "listId must be a valid UUID"))
		return
	}
	if _, err := uuid.Parse(req.TopicID); err != nil {
		writeError(w, apperror.ValidationFailed("topicId", "topicId must be a valid UUID"))
		return
	}

	if err := h.progressSvc.CompleteTopic(r.Context(), ident.UserID, req.ListID, req.TopicID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "topic completed"})
}

// HandleListProgress returns the user's progress rows for one custom list.
//
// HTTP: GET /api/progress/lists/{listID}
func (h *ProgressHandler) HandleListProgress(w http.ResponseWriter, r *http.Request) {
	ident, ok := mustIdentity(w, r)
	if !ok {
		return
	}
	listID, err := pathUUID(r, "listID")
	if err != nil {
		writeError(w, err)
		return
	}

	rows, err := h.progressSvc.ListProgress(r.Context(), ident.UserID, listID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleLoadBuiltin returns the user's entire builtin-checklist state in one
// response, keyed type → checklist id → item key.
//
// HTTP: GET /api/builtin-progress
func (h *ProgressHandler) HandleLoadBuiltin(w http.ResponseWriter, r *http.Request) {
	ident, ok := mustIdentity(w, r)
	if !ok {
		return
	}

	state, err := h.progressSvc.LoadBuiltin(r.Context(), ident.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// HandleSaveBuiltin batch-saves builtin checklist state. Each submitted
// checklist's item map is authoritative: items missing from it are treated
// as un-completed and deleted from storage.
//
// HTTP: POST /api/builtin-progress/batch
// Body: {"checklists": [{"checklistType": "...", "checklistId": "...", "items": {"key": true}}]}
func (h *ProgressHandler) HandleSaveBuiltin(w http.ResponseWriter, r *http.Request) {
	ident, ok := mustIdentity(w, r)
	if !ok {
		return
	}

	var req struct {
		Checklists []service.ChecklistPayload `json:"checklists"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	inserted, deleted, skipped, err := h.progressSvc.ApplyBatch(r.Context(), ident.UserID, req.Checklists)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"inserted": inserted,
		"deleted":  deleted,
		"skipped":  skipped,
	})
}

// HandleMigrateLocal imports builtin progress accumulated in the browser
// before the user had an account. Works exactly once per account; a second
// call gets a 409.
//
// HTTP: POST /api/builtin-progress/migrate
// Body: {"progress": {type: {checklistId: {itemKey: true}}}}
func (h *ProgressHandler) HandleMigrateLocal(w http.ResponseWriter, r *http.Request) {
	ident, ok := mustIdentity(w, r)
	if !ok {
		return
	}

	var req struct {
		Progress service.BuiltinMap `json:"progress"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Progress) == 0 {
		writeError(w, apperror.ValidationFailed("progress", "progress data is required"))
		return
	}

	imported, skipped, err := h.progressSvc.MigrateLocal(r.Context(), ident.UserID, req.Progress)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"imported": imported,
		"skipped":  skipped,
	})
}
