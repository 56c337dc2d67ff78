package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/study-tracker/internal/repository"
	"github.com/sakif/study-tracker/internal/service"
)

// TreeHandler covers everything below the list level: sections, topics,
// subtopics, and resources, plus their reorder endpoints.
//
// Ownership is never checked here. Every service call carries the user's ID
// and the repository joins it into the query, so operating on someone
// else's node comes back as a 404 — same as an id that doesn't exist.
type TreeHandler struct {
	listSvc *service.ListService
	logger  *slog.Logger
}

// NewTreeHandler creates a TreeHandler.
func NewTreeHandler(listSvc *service.ListService, logger *slog.Logger) *TreeHandler {
	return &TreeHandler{listSvc: listSvc, logger: logger}
}

// reorderRequest is shared by all three reorder endpoints.
type reorderRequest struct {
	OrderIndex int `json:"orderIndex"`
}

// --- Sections ---

// HandleCreateSection adds a section to a list.
//
// HTTP: POST /api/custom-lists/{listID}/sections
// Body: {"title": "...", "icon": "...", "orderIndex": 2}
//
// orderIndex is optional; omitted means append after the last sibling.
func (h *TreeHandler) HandleCreateSection(w http.ResponseWriter, r *http.Request) {
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
		Title      string `json:"title"`
		Icon       string `json:"icon"`
		OrderIndex *int   `json:"orderIndex"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	section, err := h.listSvc.CreateSection(r.Context(), ident.UserID, listID, req.Title, req.Icon, req.OrderIndex)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, section)
}

// HandleUpdateSection partially updates a section.
//
// HTTP: PATCH /api/sections/{sectionID}
func (h *TreeHandler) HandleUpdateSection(w http.ResponseWriter, r *http.Request) {
	ident, ok := mustIdentity(w, r)
	if !ok {
		return
	}
	sectionID, err := pathUUID(r, "sectionID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Title *string `json:"title"`
		Icon  *string `json:"icon"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	section, err := h.listSvc.UpdateSection(r.Context(), ident.UserID, sectionID, repository.SectionUpdate{
		Title: req.Title,
		Icon:  req.Icon,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, section)
}

// HandleDeleteSection removes a section and its topics and resources.
//
// HTTP: DELETE /api/sections/{sectionID}
func (h *TreeHandler) HandleDeleteSection(w http.ResponseWriter, r *http.Request) {
	ident, ok := mustIdentity(w, r)
	if !ok {
		return
	}
	sectionID, err := pathUUID(r, "sectionID")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.listSvc.DeleteSection(r.Context(), ident.UserID, sectionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "section deleted"})
}

// HandleReorderSection sets a section's exact order index.
//
// HTTP: PUT /api/sections/{sectionID}/reorder
// Body: {"orderIndex": 3}
func (h *TreeHandler) HandleReorderSection(w http.ResponseWriter, r *http.Request) {
	ident, ok := mustIdentity(w, r)
	if !ok {
		return
	}
	sectionID, err := pathUUID(r, "sectionID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req reorderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.listSvc.ReorderSection(r.Context(), ident.UserID, sectionID, req.OrderIndex); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "section reordered"})
}

// --- Topics ---

// HandleCreateTopic adds a topic to a section, or a subtopic when
// parentTopicId is set. Subtopics cannot themselves have children; the
// repository rejects a parent that already has one.
//
// HTTP: POST /api/sections/{sectionID}/topics
// Body: {"title": "...", "parentTopicId": "...", "orderIndex": 0}
func (h *TreeHandler) HandleCreateTopic(w http.ResponseWriter, r *http.Request) {
	ident, ok := mustIdentity(w, r)
	if !ok {
		return
	}
	sectionID, err := pathUUID(r, "sectionID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Title         string `json:"title"`
		ParentTopicID string `json:"parentTopicId"`
		OrderIndex    *int   `json:"orderIndex"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	topic, err := h.listSvc.CreateTopic(r.Context(), ident.UserID, sectionID, req.ParentTopicID, req.Title, req.OrderIndex)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, topic)
}

// HandleUpdateTopic partially updates a topic.
//
// HTTP: PATCH /api/topics/{topicID}
func (h *TreeHandler) HandleUpdateTopic(w http.ResponseWriter, r *http.Request) {
	ident, ok := mustIdentity(w, r)
	if !ok {
		return
	}
	topicID, err := pathUUID(r, "topicID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Title *string `json:"title"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	topic, err := h.listSvc.UpdateTopic(r.Context(), ident.UserID, topicID, repository.TopicUpdate{
		Title: req.Title,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, topic)
}

// HandleDeleteTopic removes a topic, its subtopics, and their resources.
//
// HTTP: DELETE /api/topics/{topicID}
func (h *TreeHandler) HandleDeleteTopic(w http.ResponseWriter, r *http.Request) {
	ident, ok := mustIdentity(w, r)
	if !ok {
		return
	}
	topicID, err := pathUUID(r, "topicID")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.listSvc.DeleteTopic(r.Context(), ident.UserID, topicID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "topic deleted"})
}

// HandleReorderTopic sets a topic's exact order index.
//
// HTTP: PUT /api/topics/{topicID}/reorder
func (h *TreeHandler) HandleReorderTopic(w http.ResponseWriter, r *http.Request) {
	ident, ok := mustIdentity(w, r)
	if !ok {
		return
	}
	topicID, err := pathUUID(r, "topicID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req reorderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.listSvc.ReorderTopic(r.Context(), ident.UserID, topicID, req.OrderIndex); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "topic reordered"})
}

// --- Resources ---

// HandleCreateResource adds a learning resource to a topic. The platform
// field is optional; when omitted it's detected from the URL host.
//
// HTTP: POST /api/topics/{topicID}/resources
// Body: {"type": "video", "title": "...", "url": "...", "platform": "...", "orderIndex": 0}
func (h *TreeHandler) HandleCreateResource(w http.ResponseWriter, r *http.Request) {
	ident, ok := mustIdentity(w, r)
	if !ok {
		return
	}
	topicID, err := pathUUID(r, "topicID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Type       string `json:"type"`
		Title      string `json:"title"`
		URL        string `json:"url"`
		Platform   string `json:"platform"`
		OrderIndex *int   `json:"orderIndex"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	resource, err := h.listSvc.CreateResource(r.Context(), ident.UserID, topicID,
		req.Type, req.Title, req.URL, req.Platform, req.OrderIndex)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resource)
}

// HandleUpdateResource partially updates a resource.
//
// HTTP: PATCH /api/resources/{resourceID}
func (h *TreeHandler) HandleUpdateResource(w http.ResponseWriter, r *http.Request) {
	ident, ok := mustIdentity(w, r)
	if !ok {
		return
	}
	resourceID, err := pathUUID(r, "resourceID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Type     *string `json:"type"`
		Title    *string `json:"title"`
		URL      *string `json:"url"`
		Platform *string `json:"platform"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	resource, err := h.listSvc.UpdateResource(r.Context(), ident.UserID, resourceID, repository.ResourceUpdate{
		Type:     req.Type,
		Title:    req.Title,
		URL:      req.URL,
		Platform: req.Platform,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resource)
}

// HandleDeleteResource removes a resource.
//
// HTTP: DELETE /api/resources/{resourceID}
func (h *TreeHandler) HandleDeleteResource(w http.ResponseWriter, r *http.Request) {
	ident, ok := mustIdentity(w, r)
	if !ok {
		return
	}
	resourceID, err := pathUUID(r, "resourceID")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.listSvc.DeleteResource(r.Context(), ident.UserID, resourceID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "resource deleted"})
}

// HandleReorderResource sets a resource's exact order index.
//
// HTTP: PUT /api/resources/{resourceID}/reorder
func (h *TreeHandler) HandleReorderResource(w http.ResponseWriter, r *http.Request) {
	ident, ok := mustIdentity(w, r)
	if !ok {
		return
	}
	resourceID, err := pathUUID(r, "resourceID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req reorderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.listSvc.ReorderResource(r.Context(), ident.UserID, resourceID, req.OrderIndex); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "resource reordered"})
}
