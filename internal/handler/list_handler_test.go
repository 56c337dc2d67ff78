package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ====== LIST CRUD TESTS ======

func TestListCRUD(t *testing.T) {
	e := newEnv(t)
	token, _ := signupUser(t, e)

	// Create
	rec := e.do(t, http.MethodPost, "/api/custom-lists", token, map[string]string{
		"title":       "DSA Roadmap",
		"description": "everything in order",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	var list struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		IsPublic bool   `json:"isPublic"`
	}
	decode(t, rec, &list)
	assert.Equal(t, "DSA Roadmap", list.Title)
	assert.False(t, list.IsPublic, "new lists start private")

	// List
	rec = e.do(t, http.MethodGet, "/api/custom-lists", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var lists []struct {
		ID string `json:"id"`
	}
	decode(t, rec, &lists)
	assert.Len(t, lists, 1)

	// Partial update: title only, visibility untouched
	rec = e.do(t, http.MethodPatch, "/api/custom-lists/"+list.ID, token,
		map[string]string{"title": "DSA Roadmap v2"})
	assert.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &list)
	assert.Equal(t, "DSA Roadmap v2", list.Title)
	assert.False(t, list.IsPublic)

	// Delete, then the tree is gone
	rec = e.do(t, http.MethodDelete, "/api/custom-lists/"+list.ID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodGet, "/api/custom-lists/"+list.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListPathValidation(t *testing.T) {
	e := newEnv(t)
	token, _ := signupUser(t, e)

	// Not a UUID: rejected before any query runs
	rec := e.do(t, http.MethodGet, "/api/custom-lists/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Error string `json:"error"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "validation_error", body.Error)

	// Valid UUID that doesn't exist
	rec = e.do(t, http.MethodGet, "/api/custom-lists/2f6e94cc-33a5-4e2a-b1c1-111111111111", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOwnershipIsolation(t *testing.T) {
	e := newEnv(t)
	ownerToken, _ := signupUser(t, e)
	strangerToken, _ := signupUser(t, e)
	f := buildTree(t, e, ownerToken)

	// Another user's list reads as not-found, never forbidden
	rec := e.do(t, http.MethodGet, "/api/custom-lists/"+f.listID, strangerToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPatch, "/api/custom-lists/"+f.listID, strangerToken,
		map[string]string{"title": "hijacked"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodDelete, "/api/sections/"+f.sectionID, strangerToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The owner still sees the original title
	rec = e.do(t, http.MethodGet, "/api/custom-lists/"+f.listID, ownerToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var tree struct {
		Title string `json:"title"`
	}
	decode(t, rec, &tree)
	assert.Equal(t, "DSA Roadmap", tree.Title)
}

// ====== TREE ENDPOINT TESTS ======

func TestTreeAssemblyOverHTTP(t *testing.T) {
	e := newEnv(t)
	token, _ := signupUser(t, e)
	f := buildTree(t, e, token)

	// Add a subtopic under the existing topic
	rec := e.do(t, http.MethodPost, "/api/sections/"+f.sectionID+"/topics", token,
		map[string]string{
			"title":         "Sliding Window",
			"parentTopicId": f.topicID,
		})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/api/custom-lists/"+f.listID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var tree struct {
		Sections []struct {
			ID     string `json:"id"`
			Topics []struct {
				ID        string `json:"id"`
				Resources []struct {
					ID       string `json:"id"`
					Platform string `json:"platform"`
				} `json:"resources"`
				Subtopics []struct {
					Title string `json:"title"`
				} `json:"subtopics"`
			} `json:"topics"`
		} `json:"sections"`
	}
	decode(t, rec, &tree)

	assert.Len(t, tree.Sections, 1)
	assert.Len(t, tree.Sections[0].Topics, 1, "subtopics must nest, not float as siblings")
	topic := tree.Sections[0].Topics[0]
	assert.Equal(t, f.topicID, topic.ID)
	assert.Len(t, topic.Resources, 1)
	assert.Equal(t, "youtube", topic.Resources[0].Platform, "platform detected from the URL")
	assert.Len(t, topic.Subtopics, 1)
	assert.Equal(t, "Sliding Window", topic.Subtopics[0].Title)
}

func TestReorderSection(t *testing.T) {
	e := newEnv(t)
	token, _ := signupUser(t, e)
	f := buildTree(t, e, token)

	rec := e.do(t, http.MethodPut, "/api/sections/"+f.sectionID+"/reorder", token,
		map[string]int{"orderIndex": 5})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Negative index is rejected
	rec = e.do(t, http.MethodPut, "/api/sections/"+f.sectionID+"/reorder", token,
		map[string]int{"orderIndex": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateResource_RejectsUnknownType(t *testing.T) {
	e := newEnv(t)
	token, _ := signupUser(t, e)
	f := buildTree(t, e, token)

	rec := e.do(t, http.MethodPost, "/api/topics/"+f.topicID+"/resources", token,
		map[string]string{
			"type":  "podcast",
			"title": "not a thing",
		})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteTopic_RemovesResources(t *testing.T) {
	e := newEnv(t)
	token, _ := signupUser(t, e)
	f := buildTree(t, e, token)

	rec := e.do(t, http.MethodDelete, "/api/topics/"+f.topicID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPatch, "/api/resources/"+f.resourceID, token,
		map[string]string{"title": "orphan"})
	assert.Equal(t, http.StatusNotFound, rec.Code, "cascade should have removed the resource")
}
