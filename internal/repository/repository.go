// Package repository declares the storage interfaces the service layer
// depends on. The sqlite subpackage provides the real implementation;
// service tests substitute in-memory mocks.
package repository

import (
	"context"
	"time"

	"github.com/sakif/study-tracker/internal/model"
)

// UserRepository persists accounts and their verification/reset state.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByLogin looks a user up by email or username — whichever matches.
	GetByLogin(ctx context.Context, login string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// Taken reports whether the email or the username is already in use.
	Taken(ctx context.Context, email, username string) (emailTaken, usernameTaken bool, err error)
	// SetOTP stores a fresh code with its expiry and resets the attempt counter.
	SetOTP(ctx context.Context, userID, code string, expiresAt time.Time) error
	// BumpOTPAttempts increments the wrong-code counter and returns the new value.
	BumpOTPAttempts(ctx context.Context, userID string) (int, error)
	// MarkVerified sets the verified flag and clears all OTP state.
	MarkVerified(ctx context.Context, userID string) error
	// SetResetToken stores the token digest and expiry for the forgot-password flow.
	SetResetToken(ctx context.Context, userID, digest string, expiresAt time.Time) error
	// GetByResetDigest finds the user holding a reset token with this
	// digest; the caller checks expiry against ResetExpires.
	GetByResetDigest(ctx context.Context, digest string) (*model.User, error)
	// ReplacePassword swaps the password hash and clears the reset token in one statement.
	ReplacePassword(ctx context.Context, userID, passwordHash string) error
	MarkLocalMigrated(ctx context.Context, userID string) error
}

// ListUpdate carries coalesce-update semantics: nil means "leave unchanged".
type ListUpdate struct {
	Title       *string
	Description *string
	Icon        *string
	IsPublic    *bool
}

type SectionUpdate struct {
	Title *string
	Icon  *string
}

type TopicUpdate struct {
	Title *string
}

type ResourceUpdate struct {
	Type     *string
	Title    *string
	URL      *string
	Platform *string
}

// ListRepository persists the list → section → topic → resource tree.
//
// Every mutation takes the acting user's ID and is scoped to rows that user
// owns (via the list's user_id); a non-owned or missing row surfaces as
// ErrNotFound so callers can't distinguish "not yours" from "doesn't exist".
type ListRepository interface {
	CreateList(ctx context.Context, list *model.List) error
	GetList(ctx context.Context, id string) (*model.List, error)
	ListsByOwner(ctx context.Context, userID string) ([]model.List, error)
	UpdateList(ctx context.Context, id, userID string, upd ListUpdate) (*model.List, error)
	DeleteList(ctx context.Context, id, userID string) error

	// GetTree assembles the full nested tree for a list.
	GetTree(ctx context.Context, listID string) (*model.ListTree, error)

	CreateSection(ctx context.Context, userID string, section *model.Section) error
	UpdateSection(ctx context.Context, id, userID string, upd SectionUpdate) (*model.Section, error)
	DeleteSection(ctx context.Context, id, userID string) error
	ReorderSection(ctx context.Context, id, userID string, orderIndex int) error

	CreateTopic(ctx context.Context, userID string, topic *model.Topic) error
	UpdateTopic(ctx context.Context, id, userID string, upd TopicUpdate) (*model.Topic, error)
	DeleteTopic(ctx context.Context, id, userID string) error
	ReorderTopic(ctx context.Context, id, userID string, orderIndex int) error
	GetTopic(ctx context.Context, id string) (*model.Topic, error)

	CreateResource(ctx context.Context, userID string, resource *model.Resource) error
	UpdateResource(ctx context.Context, id, userID string, upd ResourceUpdate) (*model.Resource, error)
	DeleteResource(ctx context.Context, id, userID string) error
	ReorderResource(ctx context.Context, id, userID string, orderIndex int) error

	// CopyList deep-copies a list's entire tree into newOwner's account in
	// one transaction and bumps the source's copy_count. The new list is
	// private and points back at the source through original_list_id.
	CopyList(ctx context.Context, sourceID, newOwnerID string) (*model.List, error)
}

// Public catalog sort modes.
const (
	SortRecent  = "recent"
	SortRating  = "rating"
	SortPopular = "popular"
)

// PublicListOptions filters and pages the public catalog.
type PublicListOptions struct {
	Query  string // case-insensitive substring over title + description
	Sort   string // SortRecent, SortRating, or SortPopular
	Limit  int
	Offset int
}

// PublicRepository serves the shared-list catalog and ratings.
type PublicRepository interface {
	// SearchPublic returns one page of public lists plus the total match count.
	SearchPublic(ctx context.Context, opts PublicListOptions) ([]model.PublicList, int, error)
	// UpsertRating writes a user's 1–5 rating; a second rating by the same
	// user replaces the first. Aggregates are trigger-maintained.
	UpsertRating(ctx context.Context, rating *model.Rating) error
}

// BuiltinDiff is one checklist's worth of changes to apply: item keys that
// became completed and item keys that are no longer completed.
type BuiltinDiff struct {
	ChecklistType string
	ChecklistID   string
	Insert        []string
	Delete        []string
}

// ProgressRepository persists completion state for both custom lists and
// builtin checklists.
type ProgressRepository interface {
	ListProgress(ctx context.Context, userID, listID string) ([]model.Progress, error)
	// GetProgress returns nil (no error) when no row exists yet.
	GetProgress(ctx context.Context, userID, listID, topicID, resourceID string) (*model.Progress, error)
	UpsertProgress(ctx context.Context, p *model.Progress) error
	// TopicResourceIDs lists the resource ids under a topic, for the
	// complete-topic cascade.
	TopicResourceIDs(ctx context.Context, topicID string) ([]string, error)

	// LoadBuiltin returns every completed builtin row for the user.
	LoadBuiltin(ctx context.Context, userID string) ([]model.BuiltinProgress, error)
	// BuiltinItems returns the set of completed item keys for one checklist.
	BuiltinItems(ctx context.Context, userID, checklistType, checklistID string) (map[string]bool, error)
	// ApplyBuiltinDiffs applies all diffs in a single transaction and
	// returns total inserted and deleted row counts.
	ApplyBuiltinDiffs(ctx context.Context, userID string, diffs []BuiltinDiff) (inserted, deleted int, err error)
}
