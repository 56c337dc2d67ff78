package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/study-tracker/internal/apperror"
	"github.com/sakif/study-tracker/internal/model"
	"github.com/sakif/study-tracker/internal/repository"
)

// ChecklistPayload is one builtin checklist's submitted state: item key →
// completed. Items absent from the map count as not-completed — the
// submitted map is authoritative for the whole checklist.
type ChecklistPayload struct {
	ChecklistType string          `json:"checklistType"`
	ChecklistID   string          `json:"checklistId"`
	Items         map[string]bool `json:"items"`
}

// BuiltinMap is the load-all response shape:
// checklist_type → checklist_id → item_key → true (completed rows only).
type BuiltinMap map[string]map[string]map[string]bool

// ProgressService handles completion tracking for custom lists and builtin
// checklists.
type ProgressService struct {
	progress repository.ProgressRepository
	lists    repository.ListRepository
	users    repository.UserRepository
	logger   *slog.Logger
}

// NewProgressService creates a ProgressService.
func NewProgressService(
	progress repository.ProgressRepository,
	lists repository.ListRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *ProgressService {
	return &ProgressService{
		progress: progress,
		lists:    lists,
		users:    users,
		logger:   logger,
	}
}

// Toggle flips the completion flag on a topic or resource. A row that has
// never been toggled counts as not-completed, so the first toggle creates
// it as completed. Toggling twice lands back where it started.
func (s *ProgressService) Toggle(ctx context.Context, userID, listID, topicID, resourceID string) (*model.Progress, error) {
	if topicID == "" {
		return nil, apperror.ValidationFailed("topicId", "topic id is required")
	}

	existing, err := s.progress.GetProgress(ctx, userID, listID, topicID, resourceID)
	if err != nil {
		return nil, fmt.Errorf("reading progress: %w", err)
	}

	p := &model.Progress{
		UserID:     userID,
		ListID:     listID,
		TopicID:    topicID,
		ResourceID: resourceID,
		Completed:  true,
	}
	if existing != nil {
		p.ID = existing.ID
		p.Completed = !existing.Completed
	}
	p.CompletedAt = time.Now().UTC()

	if err := s.progress.UpsertProgress(ctx, p); err != nil {
		return nil, fmt.Errorf("toggling progress: %w", err)
	}
	return p, nil
}

// CompleteTopic marks a topic completed and cascades completion to every
// resource under it.
func (s *ProgressService) CompleteTopic(ctx context.Context, userID, listID, topicID string) error {
	if topicID == "" {
		return apperror.ValidationFailed("topicId", "topic id is required")
	}

	// Toggle tolerates unknown ids (the row is the state), but a cascade
	// over a topic that doesn't exist is a client bug worth surfacing.
	if _, err := s.lists.GetTopic(ctx, topicID); err != nil {
		return err
	}

	now := time.Now().UTC()
	topicRow := &model.Progress{
		UserID:      userID,
		ListID:      listID,
		TopicID:     topicID,
		Completed:   true,
		CompletedAt: now,
	}
	if err := s.progress.UpsertProgress(ctx, topicRow); err != nil {
		return fmt.Errorf("completing topic: %w", err)
	}

	resourceIDs, err := s.progress.TopicResourceIDs(ctx, topicID)
	if err != nil {
		return fmt.Errorf("listing topic resources: %w", err)
	}
	for _, rid := range resourceIDs {
		row := &model.Progress{
			UserID:      userID,
			ListID:      listID,
			TopicID:     topicID,
			ResourceID:  rid,
			Completed:   true,
			CompletedAt: now,
		}
		if err := s.progress.UpsertProgress(ctx, row); err != nil {
			return fmt.Errorf("cascading completion to resource %s: %w", rid, err)
		}
	}

	s.logger.Info("topic completed",
		slog.String("userID", userID),
		slog.String("topicID", topicID),
		slog.Int("resources", len(resourceIDs)),
	)
	return nil
}

// ListProgress returns the user's progress rows for one list.
func (s *ProgressService) ListProgress(ctx context.Context, userID, listID string) ([]model.Progress, error) {
	return s.progress.ListProgress(ctx, userID, listID)
}

// LoadBuiltin returns all completed builtin items as a nested map — one
// round-trip for the whole progress state the frontend needs at boot.
func (s *ProgressService) LoadBuiltin(ctx context.Context, userID string) (BuiltinMap, error) {
	rows, err := s.progress.LoadBuiltin(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading builtin progress: %w", err)
	}

	result := BuiltinMap{}
	for _, row := range rows {
		byID, ok := result[row.ChecklistType]
		if !ok {
			byID = map[string]map[string]bool{}
			result[row.ChecklistType] = byID
		}
		items, ok := byID[row.ChecklistID]
		if !ok {
			items = map[string]bool{}
			byID[row.ChecklistID] = items
		}
		items[row.ItemKey] = true
	}
	return result, nil
}

// diffChecklist computes the changes needed to make the stored state match
// the submitted state: items newly true are inserted, stored items the
// submission no longer marks true are deleted, unchanged items are
// untouched.
func diffChecklist(current map[string]bool, payload ChecklistPayload) repository.BuiltinDiff {
	diff := repository.BuiltinDiff{
		ChecklistType: payload.ChecklistType,
		ChecklistID:   payload.ChecklistID,
	}
	for key, completed := range payload.Items {
		if key == "" || !completed {
			continue
		}
		if !current[key] {
			diff.Insert = append(diff.Insert, key)
		}
	}
	for key := range current {
		if !payload.Items[key] {
			diff.Delete = append(diff.Delete, key)
		}
	}
	return diff
}

// ApplyBatch diffs one or more submitted checklists against the stored
// state and applies all resulting inserts and deletes in a single
// transaction. Malformed entries (unknown type, missing id) are logged and
// skipped rather than failing the whole batch.
func (s *ProgressService) ApplyBatch(ctx context.Context, userID string, payloads []ChecklistPayload) (inserted, deleted, skipped int, err error) {
	if len(payloads) == 0 {
		return 0, 0, 0, apperror.ValidationFailed("checklists", "at least one checklist is required")
	}

	var diffs []repository.BuiltinDiff
	for _, payload := range payloads {
		if !model.ValidChecklistType(payload.ChecklistType) || payload.ChecklistID == "" {
			s.logger.Warn("skipping malformed checklist entry",
				slog.String("userID", userID),
				slog.String("type", payload.ChecklistType),
				slog.String("id", payload.ChecklistID),
			)
			skipped++
			continue
		}

		current, err := s.progress.BuiltinItems(ctx, userID, payload.ChecklistType, payload.ChecklistID)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("loading current items: %w", err)
		}
		diffs = append(diffs, diffChecklist(current, payload))
	}

	if len(diffs) == 0 {
		if skipped > 0 {
			return 0, 0, skipped, nil
		}
		return 0, 0, 0, nil
	}

	inserted, deleted, err = s.progress.ApplyBuiltinDiffs(ctx, userID, diffs)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("applying progress batch: %w", err)
	}

	s.logger.Info("builtin progress batch applied",
		slog.String("userID", userID),
		slog.Int("inserted", inserted),
		slog.Int("deleted", deleted),
		slog.Int("skipped", skipped),
	)
	return inserted, deleted, skipped, nil
}

// MigrateLocal imports progress a user accumulated in localStorage before
// registering. It runs at most once per account: the migrated flag is set
// only after processing, and a second call is rejected outright.
func (s *ProgressService) MigrateLocal(ctx context.Context, userID string, data BuiltinMap) (imported, skipped int, err error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	if user.LocalMigrated {
		return 0, 0, apperror.Conflict("local progress has already been migrated")
	}

	var diffs []repository.BuiltinDiff
	for checklistType, byID := range data {
		if !model.ValidChecklistType(checklistType) {
			for _, items := range byID {
				skipped += len(items)
			}
			s.logger.Warn("skipping unknown checklist type in migration",
				slog.String("userID", userID),
				slog.String("type", checklistType),
			)
			continue
		}
		for checklistID, items := range byID {
			if checklistID == "" {
				skipped += len(items)
				continue
			}
			diff := repository.BuiltinDiff{
				ChecklistType: checklistType,
				ChecklistID:   checklistID,
			}
			for key, completed := range items {
				if key == "" || !completed {
					skipped++
					continue
				}
				diff.Insert = append(diff.Insert, key)
			}
			if len(diff.Insert) > 0 {
				diffs = append(diffs, diff)
			}
		}
	}

	if len(diffs) > 0 {
		imported, _, err = s.progress.ApplyBuiltinDiffs(ctx, userID, diffs)
		if err != nil {
			return 0, 0, fmt.Errorf("importing local progress: %w", err)
		}
	}

	if err := s.users.MarkLocalMigrated(ctx, userID); err != nil {
		return imported, skipped, fmt.Errorf("marking migration done: %w", err)
	}

	s.logger.Info("local progress migrated",
		slog.String("userID", userID),
		slog.Int("imported", imported),
		slog.Int("skipped", skipped),
	)
	return imported, skipped, nil
}
