package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/study-tracker/internal/auth"
	"github.com/sakif/study-tracker/internal/model"
	"github.com/sakif/study-tracker/internal/repository"
	"github.com/sakif/study-tracker/internal/service"
)

// PublicHandler covers the shared-list catalog: browsing, viewing, rating,
// lineage, and copying.
//
// Browse, view, and lineage sit behind OptionalAuth — anonymous visitors
// can window-shop the catalog. Rating and copying need an account.
type PublicHandler struct {
	publicSvc *service.PublicService
	logger    *slog.Logger
}

// NewPublicHandler creates a PublicHandler.
func NewPublicHandler(publicSvc *service.PublicService, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{publicSvc: publicSvc, logger: logger}
}

// viewerID returns the user ID when a valid token accompanied the request,
// or "" for anonymous visitors.
func viewerID(r *http.Request) string {
	if ident, ok := auth.IdentityFromContext(r.Context()); ok {
		return ident.UserID
	}
	return ""
}

// HandleSearch pages through the public catalog.
//
// HTTP: GET /api/public-lists?q=dsa&sort=rating&limit=20&offset=0
//
// sort is one of recent (default), rating, popular.
func (h *PublicHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := repository.PublicListOptions{
		Query: q.Get("q"),
		Sort:  q.Get("sort"),
	}
	if raw := q.Get("limit"); raw != "" {
		opts.Limit, _ = strconv.Atoi(raw)
	}
	if raw := q.Get("offset"); raw != "" {
		opts.Offset, _ = strconv.Atoi(raw)
	}

	lists, total, err := h.publicSvc.Search(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	if lists == nil {
		lists = []model.PublicList{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lists": lists,
		"total": total,
	})
}

// HandleGetTree returns a public list's full tree. Owners can also fetch
// their own private lists through this route.
//
// HTTP: GET /api/public-lists/{listID}
func (h *PublicHandler) HandleGetTree(w http.ResponseWriter, r *http.Request) {
	listID, err := pathUUID(r, "listID")
	if err != nil {
		writeError(w, err)
		return
	}

	tree, err := h.publicSvc.GetTree(r.Context(), listID, viewerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

// HandleRate records a 1–5 rating. Re-rating replaces the previous value
// rather than stacking a second vote.
//
// HTTP: POST /api/public-lists/{listID}/rate
// Body: {"rating": 4}
// Auth: Required
func (h *PublicHandler) HandleRate(w http.ResponseWriter, r *http.Request) {
	ident, ok := mustIdentity(w, r)
	if !ok {
		return
	}
	listID, err := pathUUID(r, "listID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Rating int `json:"rating"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.publicSvc.Rate(r.Context(), listID, ident.UserID, req.Rating); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "rating recorded"})
}

// HandleLineage returns the copy ancestry of a list, oldest first, ending
// with the requested list itself.
//
// HTTP: GET /api/public-lists/{listID}/lineage
func (h *PublicHandler) HandleLineage(w http.ResponseWriter, r *http.Request) {
	listID, err := pathUUID(r, "listID")
	if err != nil {
		writeError(w, err)
		return
	}

	chain, err := h.publicSvc.Lineage(r.Context(), listID, viewerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lineage": chain})
}

// HandleCopy deep-copies a public list into the caller's account. The copy
// is private, titled "<original> (Copy)", and records where it came from.
//
// HTTP: POST /api/public-lists/{listID}/copy
// Auth: Required
func (h *PublicHandler) HandleCopy(w http.ResponseWriter, r *http.Request) {
	ident, ok := mustIdentity(w, r)
	if !ok {
		return
	}
	listID, err := pathUUID(r, "listID")
	if err != nil {
		writeError(w, err)
		return
	}

	copied, err := h.publicSvc.Copy(r.Context(), listID, ident.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, copied)
}
