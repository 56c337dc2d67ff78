package model

import (
	"math"
	"time"
)

// List is a user-authored checklist: the root of a three-level tree of
// sections → topics (with one level of subtopics) → resources.
//
// RatingCount and RatingSum are a denormalized aggregate over list_ratings,
// maintained by database triggers so every read path sees them without a
// join. OriginalListID, when set, points at the list this one was copied
// from, forming the copy lineage chain.
type List struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Icon           string    `json:"icon"`
	IsPublic       bool      `json:"isPublic"`
	RatingCount    int       `json:"ratingCount"`
	RatingSum      int       `json:"-"`
	CopyCount      int       `json:"copyCount"`
	OriginalListID string    `json:"originalListId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// AverageRating returns the mean rating rounded to one decimal place,
// or 0 when the list has never been rated.
func (l *List) AverageRating() float64 {
	if l.RatingCount == 0 {
		return 0
	}
	avg := float64(l.RatingSum) / float64(l.RatingCount)
	return math.Round(avg*10) / 10
}

// Section groups topics inside a list. OrderIndex controls sibling display
// order; it is dense on creation but gaps are tolerated after deletes.
type Section struct {
	ID         string `json:"id"`
	ListID     string `json:"listId"`
	Title      string `json:"title"`
	Icon       string `json:"icon"`
	OrderIndex int    `json:"orderIndex"`
}

// Topic lives inside a section. A topic with a non-empty ParentTopicID is a
// subtopic; nesting stops there — a subtopic can never parent another topic.
type Topic struct {
	ID            string `json:"id"`
	SectionID     string `json:"sectionId"`
	ParentTopicID string `json:"parentTopicId,omitempty"`
	Title         string `json:"title"`
	OrderIndex    int    `json:"orderIndex"`
}

// Resource types. Anything else is rejected at validation time.
const (
	ResourceVideo    = "video"
	ResourceNote     = "note"
	ResourceLink     = "link"
	ResourcePractice = "practice"
)

// ValidResourceType reports whether t is one of the four resource kinds.
func ValidResourceType(t string) bool {
	switch t {
	case ResourceVideo, ResourceNote, ResourceLink, ResourcePractice:
		return true
	}
	return false
}

// Resource is a leaf of the tree: a link to learning material attached to a
// topic. Platform is detected from the URL host when the caller doesn't
// supply one.
type Resource struct {
	ID         string `json:"id"`
	TopicID    string `json:"topicId"`
	Type       string `json:"type"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Platform   string `json:"platform"`
	OrderIndex int    `json:"orderIndex"`
}

// ListTree is a fully assembled list: the list row plus its nested
// sections, topics, subtopics, and resources. Built by the repository from
// flat per-level queries joined in memory.
type ListTree struct {
	List
	Sections []SectionTree `json:"sections"`
}

// SectionTree is a section with its top-level topics.
type SectionTree struct {
	Section
	Topics []TopicTree `json:"topics"`
}

// TopicTree is a topic with its resources and, for top-level topics, its
// subtopics. Subtopic entries always have an empty Subtopics slice.
type TopicTree struct {
	Topic
	Resources []Resource  `json:"resources"`
	Subtopics []TopicTree `json:"subtopics,omitempty"`
}

// PublicList is a list as it appears in the public catalog: the row itself
// plus the owner's username and the computed average rating.
type PublicList struct {
	List
	OwnerUsername string  `json:"ownerUsername"`
	Rating        float64 `json:"rating"`
}
