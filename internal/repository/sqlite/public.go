package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sakif/study-tracker/internal/model"
	"github.com/sakif/study-tracker/internal/repository"
)

// compile-time check that *DB implements repository.PublicRepository
var _ repository.PublicRepository = (*DB)(nil)

// SearchPublic returns one page of the public catalog plus the total match
// count (for pagination UI).
//
// Sort modes:
//   - recent:  newest first
//   - rating:  average rating desc, newest first among ties; the average is
//     rating_sum/rating_count, with unrated lists at 0
//   - popular: copy_count desc, newest first among ties
func (db *DB) SearchPublic(ctx context.Context, opts repository.PublicListOptions) ([]model.PublicList, int, error) {
	where := `l.is_public = 1`
	args := []any{}

	if q := strings.TrimSpace(opts.Query); q != "" {
		where += ` AND (LOWER(l.title) LIKE ? OR LOWER(l.description) LIKE ?)`
		pattern := "%" + strings.ToLower(q) + "%"
		args = append(args, pattern, pattern)
	}

	var total int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM custom_lists l WHERE `+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting public lists: %w", err)
	}

	var orderBy string
	switch opts.Sort {
	case repository.SortRating:
		// MAX(rating_count, 1) avoids division by zero; unrated lists have
		// rating_sum = 0 so they land at the bottom either way.
		orderBy = `CAST(l.rating_sum AS REAL) / MAX(l.rating_count, 1) DESC, l.created_at DESC`
	case repository.SortPopular:
		orderBy = `l.copy_count DESC, l.created_at DESC`
	default:
		orderBy = `l.created_at DESC`
	}

	args = append(args, opts.Limit, opts.Offset)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT l.id, l.user_id, l.title, l.description, l.icon, l.is_public,
			l.rating_count, l.rating_sum, l.copy_count, l.original_list_id,
			l.created_at, l.updated_at, u.username
		 FROM custom_lists l
		 JOIN users u ON l.user_id = u.id
		 WHERE `+where+`
		 ORDER BY `+orderBy+`
		 LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: searching public lists: %w", err)
	}
	defer rows.Close()

	results := []model.PublicList{}
	for rows.Next() {
		var pl model.PublicList
		var original sql.NullString
		err := rows.Scan(
			&pl.ID, &pl.UserID, &pl.Title, &pl.Description, &pl.Icon, &pl.IsPublic,
			&pl.RatingCount, &pl.RatingSum, &pl.CopyCount, &original,
			&pl.CreatedAt, &pl.UpdatedAt, &pl.OwnerUsername,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning public list row: %w", err)
		}
		pl.OriginalListID = original.String
		pl.Rating = pl.AverageRating()
		results = append(results, pl)
	}
	return results, total, rows.Err()
}

// UpsertRating writes a user's rating of a list; re-rating replaces the
// previous value in place. The rating aggregate on custom_lists moves via
// the triggers created in migrate() — never here.
func (db *DB) UpsertRating(ctx context.Context, rating *model.Rating) error {
	if rating.ID == "" {
		rating.ID = uuid.NewString()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO list_ratings (id, list_id, user_id, rating)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (list_id, user_id) DO UPDATE SET rating = excluded.rating`,
		rating.ID, rating.ListID, rating.UserID, rating.Rating,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting rating for list %s: %w", rating.ListID, err)
	}
	return nil
}
