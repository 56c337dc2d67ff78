package model

import "time"

// Progress is a completion flag on a custom list item.
//
// A row is keyed by (user, list, topic, resource). Topic-level progress has
// an empty ResourceID — the repository stores '' rather than NULL so the
// uniqueness constraint works without NULL-coalescing tricks.
type Progress struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	ListID      string    `json:"listId"`
	TopicID     string    `json:"topicId"`
	ResourceID  string    `json:"resourceId,omitempty"`
	Completed   bool      `json:"completed"`
	CompletedAt time.Time `json:"completedAt"`
}

// Builtin checklist types. These identify the predefined (non-user-authored)
// checklists shipped with the frontend; progress against them is keyed by
// (type, checklist id, item key).
const (
	ChecklistLanguageDSA = "language_dsa"
	ChecklistLanguageDev = "language_dev"
	ChecklistDSATopics   = "dsa_topics"
	ChecklistExamination = "examination"
)

// ValidChecklistType reports whether t names a builtin checklist type.
func ValidChecklistType(t string) bool {
	switch t {
	case ChecklistLanguageDSA, ChecklistLanguageDev, ChecklistDSATopics, ChecklistExamination:
		return true
	}
	return false
}

// BuiltinProgress is a completion flag on a builtin checklist item.
// Uniqueness on (user, type, checklist, item); writes are upserts.
type BuiltinProgress struct {
	ID            string `json:"id"`
	UserID        string `json:"userId"`
	ChecklistType string `json:"checklistType"`
	ChecklistID   string `json:"checklistId"`
	ItemKey       string `json:"itemKey"`
	Completed     bool   `json:"completed"`
}

// Rating is one user's 1–5 rating of a public list. One row per
// (list, user); re-rating updates in place. The owning list's
// rating_count/rating_sum are kept in sync by database triggers.
type Rating struct {
	ID     string `json:"id"`
	ListID string `json:"listId"`
	UserID string `json:"userId"`
	Rating int    `json:"rating"`
}
