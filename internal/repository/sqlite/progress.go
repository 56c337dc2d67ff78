package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sakif/study-tracker/internal/model"
	"github.com/sakif/study-tracker/internal/repository"
)

// compile-time check that *DB implements repository.ProgressRepository
var _ repository.ProgressRepository = (*DB)(nil)

// ListProgress returns every progress row the user has on a list.
func (db *DB) ListProgress(ctx context.Context, userID, listID string) ([]model.Progress, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, list_id, topic_id, resource_id, completed, completed_at
		 FROM custom_progress
		 WHERE user_id = ? AND list_id = ?`, userID, listID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying progress for list %s: %w", listID, err)
	}
	defer rows.Close()

	progress := []model.Progress{}
	for rows.Next() {
		var p model.Progress
		if err := rows.Scan(&p.ID, &p.UserID, &p.ListID, &p.TopicID, &p.ResourceID,
			&p.Completed, &p.CompletedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning progress row: %w", err)
		}
		progress = append(progress, p)
	}
	return progress, rows.Err()
}

// GetProgress fetches one progress row, or nil when the item has never been
// toggled (callers treat that as not-completed).
func (db *DB) GetProgress(ctx context.Context, userID, listID, topicID, resourceID string) (*model.Progress, error) {
	var p model.Progress
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, list_id, topic_id, resource_id, completed, completed_at
		 FROM custom_progress
		 WHERE user_id = ? AND list_id = ? AND topic_id = ? AND resource_id = ?`,
		userID, listID, topicID, resourceID,
	).Scan(&p.ID, &p.UserID, &p.ListID, &p.TopicID, &p.ResourceID, &p.Completed, &p.CompletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: getting progress row: %w", err)
	}
	return &p, nil
}

// UpsertProgress writes a completion flag, creating the row on first toggle.
func (db *DB) UpsertProgress(ctx context.Context, p *model.Progress) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CompletedAt.IsZero() {
		p.CompletedAt = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO custom_progress (id, user_id, list_id, topic_id, resource_id, completed, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, list_id, topic_id, resource_id)
		 DO UPDATE SET completed = excluded.completed, completed_at = excluded.completed_at`,
		p.ID, p.UserID, p.ListID, p.TopicID, p.ResourceID, p.Completed, p.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting progress: %w", err)
	}
	return nil
}

// TopicResourceIDs lists the resource ids under a topic, for the
// complete-topic cascade.
func (db *DB) TopicResourceIDs(ctx context.Context, topicID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id FROM custom_resources WHERE topic_id = ?`, topicID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying resources of topic %s: %w", topicID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning resource id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LoadBuiltin returns every completed builtin checklist row for the user.
// Not-completed rows are omitted — the frontend treats absence as false.
func (db *DB) LoadBuiltin(ctx context.Context, userID string) ([]model.BuiltinProgress, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, checklist_type, checklist_id, item_key, completed
		 FROM builtin_progress
		 WHERE user_id = ? AND completed = 1`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading builtin progress: %w", err)
	}
	defer rows.Close()

	var progress []model.BuiltinProgress
	for rows.Next() {
		var p model.BuiltinProgress
		if err := rows.Scan(&p.ID, &p.UserID, &p.ChecklistType, &p.ChecklistID,
			&p.ItemKey, &p.Completed); err != nil {
			return nil, fmt.Errorf("sqlite: scanning builtin row: %w", err)
		}
		progress = append(progress, p)
	}
	return progress, rows.Err()
}

// BuiltinItems returns the set of completed item keys for one checklist.
func (db *DB) BuiltinItems(ctx context.Context, userID, checklistType, checklistID string) (map[string]bool, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT item_key FROM builtin_progress
		 WHERE user_id = ? AND checklist_type = ? AND checklist_id = ? AND completed = 1`,
		userID, checklistType, checklistID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying builtin items: %w", err)
	}
	defer rows.Close()

	items := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("sqlite: scanning item key: %w", err)
		}
		items[key] = true
	}
	return items, rows.Err()
}

// ApplyBuiltinDiffs applies every diff inside a single transaction, so a
// batch either lands whole or not at all.
func (db *DB) ApplyBuiltinDiffs(ctx context.Context, userID string, diffs []repository.BuiltinDiff) (int, int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("sqlite: beginning batch transaction: %w", err)
	}
	defer tx.Rollback()

	var inserted, deleted int
	for _, diff := range diffs {
		for _, key := range diff.Insert {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO builtin_progress (id, user_id, checklist_type, checklist_id, item_key, completed)
				 VALUES (?, ?, ?, ?, ?, 1)
				 ON CONFLICT (user_id, checklist_type, checklist_id, item_key)
				 DO UPDATE SET completed = 1`,
				uuid.NewString(), userID, diff.ChecklistType, diff.ChecklistID, key,
			)
			if err != nil {
				return 0, 0, fmt.Errorf("sqlite: inserting builtin item %q: %w", key, err)
			}
			inserted++
		}

		for _, key := range diff.Delete {
			res, err := tx.ExecContext(ctx,
				`DELETE FROM builtin_progress
				 WHERE user_id = ? AND checklist_type = ? AND checklist_id = ? AND item_key = ?`,
				userID, diff.ChecklistType, diff.ChecklistID, key,
			)
			if err != nil {
				return 0, 0, fmt.Errorf("sqlite: deleting builtin item %q: %w", key, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return 0, 0, fmt.Errorf("sqlite: reading rows affected: %w", err)
			}
			deleted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("sqlite: committing batch: %w", err)
	}
	return inserted, deleted, nil
}
