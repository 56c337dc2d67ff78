package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/study-tracker/internal/auth"
	"github.com/sakif/study-tracker/internal/repository"
	"github.com/sakif/study-tracker/internal/service"
)

// ListHandler covers the list-level operations: create, list-all, fetch the
// nested tree, partial update, and delete. Section/topic/resource routes
// live in TreeHandler.
type ListHandler struct {
	listSvc *service.ListService
	logger  *slog.Logger
}

// NewListHandler creates a ListHandler.
func NewListHandler(listSvc *service.ListService, logger *slog.Logger) *ListHandler {
	return &ListHandler{listSvc: listSvc, logger: logger}
}

// mustIdentity reads the identity set by the auth middleware. All handlers
// in this package sit behind RequireAuth unless noted otherwise, so a
// missing identity is a wiring bug, answered with a plain 401.
func mustIdentity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "authentication required",
		})
		return nil, false
	}
	return ident, true
}

// HandleCreate creates an empty private list.
//
// HTTP: POST /api/custom-lists
// Body: {"title": "...", "description": "...", "icon": "..."}
func (h *ListHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ident, ok := mustIdentity(w, r)
	if !ok {
		return
	}

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	list, err := h.listSvc.CreateList(r.Context(), ident.UserID, req.Title, req.Description, req.Icon)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, list)
}

// HandleList returns every list the user owns (flat, no trees).
//
// HTTP: GET /api/custom-lists
func (h *ListHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ident, ok := mustIdentity(w, r)
	if !ok {
		return
	}

	lists, err := h.listSvc.Lists(r.Context(), ident.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

// HandleGetTree returns one list with sections, topics, subtopics, and
// resources fully nested.
//
// HTTP: GET /api/custom-lists/{listID}
func (h *ListHandler) HandleGetTree(w http.ResponseWriter, r *http.Request) {
	ident, ok := mustIdentity(w, r)
	if !ok {
		return
	}
	listID, err := pathUUID(r, "listID")
	if err != nil {
		writeError(w, err)
		return
	}

	tree, err := h.listSvc.GetTree(r.Context(), ident.UserID, listID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

// HandleUpdate partially updates a list. Omitted fields stay unchanged —
// that's why the request fields are pointers.
//
// HTTP: PATCH /api/custom-lists/{listID}
// Body: any of {"title", "description", "icon", "isPublic"}
func (h *ListHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
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
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Icon        *string `json:"icon"`
		IsPublic    *bool   `json:"isPublic"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	list, err := h.listSvc.UpdateList(r.Context(), ident.UserID, listID, repository.ListUpdate{
		Title:       req.Title,
		Description: req.Description,
		Icon:        req.Icon,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleDelete removes a list and everything under it.
//
// HTTP: DELETE /api/custom-lists/{listID}
func (h *ListHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ident, ok := mustIdentity(w, r)
	if !ok {
		return
	}
	listID, err := pathUUID(r, "listID")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.listSvc.DeleteList(r.Context(), ident.UserID, listID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "list deleted"})
}
