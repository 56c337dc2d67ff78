package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/study-tracker/internal/model"
)

// ====== CUSTOM LIST PROGRESS TESTS ======

func TestToggleProgress(t *testing.T) {
	e := newEnv(t)
	token, _ := signupUser(t, e)
	f := buildTree(t, e, token)

	body := map[string]string{"listId": f.listID, "topicId": f.topicID}

	rec := e.do(t, http.MethodPost, "/api/progress/toggle", token, body)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var p struct {
		Completed bool `json:"completed"`
	}
	decode(t, rec, &p)
	assert.True(t, p.Completed, "first toggle marks completed")

	rec = e.do(t, http.MethodPost, "/api/progress/toggle", token, body)
	assert.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &p)
	assert.False(t, p.Completed, "second toggle flips back")

	// Bad ids never reach the database
	rec = e.do(t, http.MethodPost, "/api/progress/toggle", token,
		map[string]string{"listId": f.listID, "topicId": "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompleteTopicCascade(t *testing.T) {
	e := newEnv(t)
	token, _ := signupUser(t, e)
	f := buildTree(t, e, token)

	rec := e.do(t, http.MethodPost, "/api/progress/complete-topic", token,
		map[string]string{"listId": f.listID, "topicId": f.topicID})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/api/progress/lists/"+f.listID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var rows []struct {
		ResourceID string `json:"resourceId"`
		Completed  bool   `json:"completed"`
	}
	decode(t, rec, &rows)
	assert.Len(t, rows, 2, "topic row plus one cascaded resource row")
	for _, row := range rows {
		assert.True(t, row.Completed)
	}
}

// ====== BUILTIN CHECKLIST TESTS ======

func TestBuiltinSaveAndLoad(t *testing.T) {
	e := newEnv(t)
	token, _ := signupUser(t, e)

	save := map[string]any{
		"checklists": []map[string]any{{
			"checklistType": model.ChecklistLanguageDSA,
			"checklistId":   "cpp",
			"items":         map[string]bool{"arrays": true, "strings": true},
		}},
	}
	rec := e.do(t, http.MethodPost, "/api/builtin-progress/batch", token, save)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var counts struct {
		Inserted int `json:"inserted"`
		Deleted  int `json:"deleted"`
		Skipped  int `json:"skipped"`
	}
	decode(t, rec, &counts)
	assert.Equal(t, 2, counts.Inserted)
	assert.Equal(t, 0, counts.Deleted)

	// Resubmit with one item dropped: the submitted map is authoritative
	save["checklists"] = []map[string]any{{
		"checklistType": model.ChecklistLanguageDSA,
		"checklistId":   "cpp",
		"items":         map[string]bool{"arrays": true},
	}}
	rec = e.do(t, http.MethodPost, "/api/builtin-progress/batch", token, save)
	assert.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &counts)
	assert.Equal(t, 0, counts.Inserted)
	assert.Equal(t, 1, counts.Deleted)

	// Load reflects the final state
	rec = e.do(t, http.MethodGet, "/api/builtin-progress", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var state map[string]map[string]map[string]bool
	decode(t, rec, &state)
	assert.True(t, state[model.ChecklistLanguageDSA]["cpp"]["arrays"])
	assert.NotContains(t, state[model.ChecklistLanguageDSA]["cpp"], "strings")
}

func TestBuiltinSave_SkipsMalformedEntries(t *testing.T) {
	e := newEnv(t)
	token, _ := signupUser(t, e)

	rec := e.do(t, http.MethodPost, "/api/builtin-progress/batch", token, map[string]any{
		"checklists": []map[string]any{
			{"checklistType": "bogus", "checklistId": "x", "items": map[string]bool{"a": true}},
			{"checklistType": model.ChecklistDSATopics, "checklistId": "graphs", "items": map[string]bool{"bfs": true}},
		},
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	var counts struct {
		Inserted int `json:"inserted"`
		Skipped  int `json:"skipped"`
	}
	decode(t, rec, &counts)
	assert.Equal(t, 1, counts.Inserted)
	assert.Equal(t, 1, counts.Skipped)
}

func TestMigrateLocal_OncePerAccount(t *testing.T) {
	e := newEnv(t)
	token, _ := signupUser(t, e)

	payload := map[string]any{
		"progress": map[string]any{
			model.ChecklistLanguageDSA: map[string]any{
				"cpp": map[string]bool{"arrays": true, "trees": true},
			},
		},
	}

	rec := e.do(t, http.MethodPost, "/api/builtin-progress/migrate", token, payload)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var counts struct {
		Imported int `json:"imported"`
	}
	decode(t, rec, &counts)
	assert.Equal(t, 2, counts.Imported)

	// Second attempt conflicts
	rec = e.do(t, http.MethodPost, "/api/builtin-progress/migrate", token, payload)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Empty payload is a validation error, not a silent no-op
	rec = e.do(t, http.MethodPost, "/api/builtin-progress/migrate", token,
		map[string]any{"progress": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
