package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sakif/study-tracker/internal/apperror"
	"github.com/sakif/study-tracker/internal/model"
	"github.com/sakif/study-tracker/internal/repository"
)

// compile-time check that *DB implements repository.ListRepository
var _ repository.ListRepository = (*DB)(nil)

const listColumns = `id, user_id, title, description, icon, is_public,
	rating_count, rating_sum, copy_count, original_list_id, created_at, updated_at`

func scanList(scan func(...any) error) (*model.List, error) {
	var l model.List
	var original sql.NullString

	err := scan(
		&l.ID, &l.UserID, &l.Title, &l.Description, &l.Icon, &l.IsPublic,
		&l.RatingCount, &l.RatingSum, &l.CopyCount, &original,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.OriginalListID = original.String
	return &l, nil
}

// nullable turns an empty string into NULL for optional foreign keys.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// CreateList inserts a new list owned by list.UserID.
func (db *DB) CreateList(ctx context.Context, list *model.List) error {
	list.ID = uuid.NewString()
	now := time.Now().UTC()
	list.CreatedAt = now
	list.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO custom_lists (id, user_id, title, description, icon, is_public,
			original_list_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		list.ID, list.UserID, list.Title, list.Description, list.Icon, list.IsPublic,
		nullable(list.OriginalListID), list.CreatedAt, list.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting list %q: %w", list.Title, err)
	}
	return nil
}

// GetList retrieves a list by ID regardless of owner. Visibility rules
// (public vs owned) are the service layer's call.
func (db *DB) GetList(ctx context.Context, id string) (*model.List, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+listColumns+` FROM custom_lists WHERE id = ?`, id)

	l, err := scanList(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("list", id)
		}
		return nil, fmt.Errorf("sqlite: getting list %s: %w", id, err)
	}
	return l, nil
}

// ListsByOwner returns all lists owned by a user, newest first.
func (db *DB) ListsByOwner(ctx context.Context, userID string) ([]model.List, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+listColumns+` FROM custom_lists
		 WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing lists for user %s: %w", userID, err)
	}
	defer rows.Close()

	lists := []model.List{}
	for rows.Next() {
		l, err := scanList(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning list row: %w", err)
		}
		lists = append(lists, *l)
	}
	return lists, rows.Err()
}

// UpdateList applies a coalesce-update: nil fields keep their current
// value. Scoped to the owner; a non-owned id comes back as not found.
func (db *DB) UpdateList(ctx context.Context, id, userID string, upd repository.ListUpdate) (*model.List, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE custom_lists
		 SET title       = COALESCE(?, title),
		     description = COALESCE(?, description),
		     icon        = COALESCE(?, icon),
		     is_public   = COALESCE(?, is_public),
		     updated_at  = ?
		 WHERE id = ? AND user_id = ?`,
		upd.Title, upd.Description, upd.Icon, upd.IsPublic,
		time.Now().UTC(), id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating list %s: %w", id, err)
	}
	if err := requireRow(res, "list", id); err != nil {
		return nil, err
	}
	return db.GetList(ctx, id)
}

// DeleteList removes a list; sections, topics, resources, progress, and
// ratings go with it via ON DELETE CASCADE.
func (db *DB) DeleteList(ctx context.Context, id, userID string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM custom_lists WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting list %s: %w", id, err)
	}
	return requireRow(res, "list", id)
}

// GetTree assembles the full nested tree for a list.
//
// Three flat queries — sections, topics, resources — joined in memory by
// foreign key. Cheaper and far simpler than a recursive SQL query at this
// depth, and the per-level ORDER BY keeps siblings in display order.
func (db *DB) GetTree(ctx context.Context, listID string) (*model.ListTree, error) {
	list, err := db.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}

	sections, err := db.sectionsOf(ctx, listID)
	if err != nil {
		return nil, err
	}
	topics, err := db.topicsOf(ctx, listID)
	if err != nil {
		return nil, err
	}
	resources, err := db.resourcesOf(ctx, listID)
	if err != nil {
		return nil, err
	}

	resByTopic := make(map[string][]model.Resource)
	for _, r := range resources {
		resByTopic[r.TopicID] = append(resByTopic[r.TopicID], r)
	}

	// Top-level topics first, keyed by id so subtopics can find their parent.
	nodeByID := make(map[string]*model.TopicTree)
	topBySection := make(map[string][]*model.TopicTree)
	for i := range topics {
		t := topics[i]
		if t.ParentTopicID != "" {
			continue
		}
		node := &model.TopicTree{Topic: t, Resources: orEmpty(resByTopic[t.ID])}
		nodeByID[t.ID] = node
		topBySection[t.SectionID] = append(topBySection[t.SectionID], node)
	}
	for _, t := range topics {
		if t.ParentTopicID == "" {
			continue
		}
		parent, ok := nodeByID[t.ParentTopicID]
		if !ok {
			// Orphaned subtopic; skip rather than fail the whole read.
			continue
		}
		parent.Subtopics = append(parent.Subtopics, model.TopicTree{
			Topic:     t,
			Resources: orEmpty(resByTopic[t.ID]),
		})
	}

	tree := &model.ListTree{List: *list, Sections: []model.SectionTree{}}
	for _, s := range sections {
		st := model.SectionTree{Section: s, Topics: []model.TopicTree{}}
		for _, node := range topBySection[s.ID] {
			st.Topics = append(st.Topics, *node)
		}
		tree.Sections = append(tree.Sections, st)
	}
	return tree, nil
}

func orEmpty(rs []model.Resource) []model.Resource {
	if rs == nil {
		return []model.Resource{}
	}
	return rs
}

func (db *DB) sectionsOf(ctx context.Context, listID string) ([]model.Section, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, list_id, title, icon, order_index
		 FROM custom_sections WHERE list_id = ?
		 ORDER BY order_index, id`, listID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying sections of list %s: %w", listID, err)
	}
	defer rows.Close()

	var sections []model.Section
	for rows.Next() {
		var s model.Section
		if err := rows.Scan(&s.ID, &s.ListID, &s.Title, &s.Icon, &s.OrderIndex); err != nil {
			return nil, fmt.Errorf("sqlite: scanning section row: %w", err)
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

func (db *DB) topicsOf(ctx context.Context, listID string) ([]model.Topic, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT t.id, t.section_id, t.parent_topic_id, t.title, t.order_index
		 FROM custom_topics t
		 JOIN custom_sections s ON t.section_id = s.id
		 WHERE s.list_id = ?
		 ORDER BY t.order_index, t.id`, listID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying topics of list %s: %w", listID, err)
	}
	defer rows.Close()

	var topics []model.Topic
	for rows.Next() {
		var t model.Topic
		var parent sql.NullString
		if err := rows.Scan(&t.ID, &t.SectionID, &parent, &t.Title, &t.OrderIndex); err != nil {
			return nil, fmt.Errorf("sqlite: scanning topic row: %w", err)
		}
		t.ParentTopicID = parent.String
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

func (db *DB) resourcesOf(ctx context.Context, listID string) ([]model.Resource, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT r.id, r.topic_id, r.type, r.title, r.url, r.platform, r.order_index
		 FROM custom_resources r
		 JOIN custom_topics t ON r.topic_id = t.id
		 JOIN custom_sections s ON t.section_id = s.id
		 WHERE s.list_id = ?
		 ORDER BY r.order_index, r.id`, listID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying resources of list %s: %w", listID, err)
	}
	defer rows.Close()

	var resources []model.Resource
	for rows.Next() {
		var r model.Resource
		if err := rows.Scan(&r.ID, &r.TopicID, &r.Type, &r.Title, &r.URL, &r.Platform, &r.OrderIndex); err != nil {
			return nil, fmt.Errorf("sqlite: scanning resource row: %w", err)
		}
		resources = append(resources, r)
	}
	return resources, rows.Err()
}

// ownsList verifies the list belongs to userID. Mutations on child rows go
// through this first so a foreign list id reads as "not found".
func (db *DB) ownsList(ctx context.Context, listID, userID string) error {
	var owner string
	err := db.conn.QueryRowContext(ctx,
		`SELECT user_id FROM custom_lists WHERE id = ?`, listID).Scan(&owner)
	if err != nil {
		if err == sql.ErrNoRows {
			return apperror.NotFound("list", listID)
		}
		return fmt.Errorf("sqlite: checking list owner: %w", err)
	}
	if owner != userID {
		return apperror.NotFound("list", listID)
	}
	return nil
}

// CreateSection inserts a section into a list the user owns. A negative
// OrderIndex means "append": max existing + 1 within the list.
func (db *DB) CreateSection(ctx context.Context, userID string, section *model.Section) error {
	if err := db.ownsList(ctx, section.ListID, userID); err != nil {
		return err
	}

	if section.OrderIndex < 0 {
		err := db.conn.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(order_index) + 1, 0) FROM custom_sections WHERE list_id = ?`,
			section.ListID).Scan(&section.OrderIndex)
		if err != nil {
			return fmt.Errorf("sqlite: next section order: %w", err)
		}
	}

	section.ID = uuid.NewString()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO custom_sections (id, list_id, title, icon, order_index)
		 VALUES (?, ?, ?, ?, ?)`,
		section.ID, section.ListID, section.Title, section.Icon, section.OrderIndex,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting section %q: %w", section.Title, err)
	}
	return nil
}

// sectionOwnedBy is the WHERE fragment scoping a section to a list owner.
const sectionOwnedBy = `id = ? AND list_id IN (SELECT id FROM custom_lists WHERE user_id = ?)`

func (db *DB) UpdateSection(ctx context.Context, id, userID string, upd repository.SectionUpdate) (*model.Section, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE custom_sections
		 SET title = COALESCE(?, title), icon = COALESCE(?, icon)
		 WHERE `+sectionOwnedBy,
		upd.Title, upd.Icon, id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating section %s: %w", id, err)
	}
	if err := requireRow(res, "section", id); err != nil {
		return nil, err
	}

	var s model.Section
	err = db.conn.QueryRowContext(ctx,
		`SELECT id, list_id, title, icon, order_index FROM custom_sections WHERE id = ?`, id,
	).Scan(&s.ID, &s.ListID, &s.Title, &s.Icon, &s.OrderIndex)
	if err != nil {
		return nil, fmt.Errorf("sqlite: re-reading section %s: %w", id, err)
	}
	return &s, nil
}

func (db *DB) DeleteSection(ctx context.Context, id, userID string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM custom_sections WHERE `+sectionOwnedBy, id, userID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting section %s: %w", id, err)
	}
	return requireRow(res, "section", id)
}

// ReorderSection sets the exact order_index given. Siblings are left
// untouched — a full reordering is the caller's responsibility.
func (db *DB) ReorderSection(ctx context.Context, id, userID string, orderIndex int) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE custom_sections SET order_index = ? WHERE `+sectionOwnedBy,
		orderIndex, id, userID)
	if err != nil {
		return fmt.Errorf("sqlite: reordering section %s: %w", id, err)
	}
	return requireRow(res, "section", id)
}

// topicOwnedBy scopes a topic to a list owner through its section.
const topicOwnedBy = `id = ? AND section_id IN (
	SELECT s.id FROM custom_sections s
	JOIN custom_lists l ON s.list_id = l.id
	WHERE l.user_id = ?)`

// CreateTopic inserts a topic (or subtopic) into a section the user owns.
//
// Subtopic rules enforced here: the parent must exist, sit in the same
// section, and itself be top-level — nesting stops at one level. A negative
// OrderIndex appends among the topic's actual siblings (same section AND
// same parent).
func (db *DB) CreateTopic(ctx context.Context, userID string, topic *model.Topic) error {
	var owner string
	err := db.conn.QueryRowContext(ctx,
		`SELECT l.user_id FROM custom_sections s
		 JOIN custom_lists l ON s.list_id = l.id
		 WHERE s.id = ?`, topic.SectionID).Scan(&owner)
	if err != nil {
		if err == sql.ErrNoRows {
			return apperror.NotFound("section", topic.SectionID)
		}
		return fmt.Errorf("sqlite: checking section owner: %w", err)
	}
	if owner != userID {
		return apperror.NotFound("section", topic.SectionID)
	}

	if topic.ParentTopicID != "" {
		var parentSection string
		var parentParent sql.NullString
		err := db.conn.QueryRowContext(ctx,
			`SELECT section_id, parent_topic_id FROM custom_topics WHERE id = ?`,
			topic.ParentTopicID).Scan(&parentSection, &parentParent)
		if err != nil {
			if err == sql.ErrNoRows {
				return apperror.NotFound("topic", topic.ParentTopicID)
			}
			return fmt.Errorf("sqlite: checking parent topic: %w", err)
		}
		if parentSection != topic.SectionID {
			return apperror.ValidationFailed("parentTopicId", "parent topic is in a different section")
		}
		if parentParent.Valid && parentParent.String != "" {
			return apperror.ValidationFailed("parentTopicId", "subtopics cannot have their own subtopics")
		}
	}

	if topic.OrderIndex < 0 {
		err := db.conn.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(order_index) + 1, 0) FROM custom_topics
			 WHERE section_id = ? AND COALESCE(parent_topic_id, '') = ?`,
			topic.SectionID, topic.ParentTopicID).Scan(&topic.OrderIndex)
		if err != nil {
			return fmt.Errorf("sqlite: next topic order: %w", err)
		}
	}

	topic.ID = uuid.NewString()
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO custom_topics (id, section_id, parent_topic_id, title, order_index)
		 VALUES (?, ?, ?, ?, ?)`,
		topic.ID, topic.SectionID, nullable(topic.ParentTopicID), topic.Title, topic.OrderIndex,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting topic %q: %w", topic.Title, err)
	}
	return nil
}

func (db *DB) UpdateTopic(ctx context.Context, id, userID string, upd repository.TopicUpdate) (*model.Topic, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE custom_topics SET title = COALESCE(?, title) WHERE `+topicOwnedBy,
		upd.Title, id, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating topic %s: %w", id, err)
	}
	if err := requireRow(res, "topic", id); err != nil {
		return nil, err
	}

	var t model.Topic
	var parent sql.NullString
	err = db.conn.QueryRowContext(ctx,
		`SELECT id, section_id, parent_topic_id, title, order_index
		 FROM custom_topics WHERE id = ?`, id,
	).Scan(&t.ID, &t.SectionID, &parent, &t.Title, &t.OrderIndex)
	if err != nil {
		return nil, fmt.Errorf("sqlite: re-reading topic %s: %w", id, err)
	}
	t.ParentTopicID = parent.String
	return &t, nil
}

// GetTopic retrieves a topic by ID regardless of owner.
func (db *DB) GetTopic(ctx context.Context, id string) (*model.Topic, error) {
	var t model.Topic
	var parent sql.NullString
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, section_id, parent_topic_id, title, order_index
		 FROM custom_topics WHERE id = ?`, id,
	).Scan(&t.ID, &t.SectionID, &parent, &t.Title, &t.OrderIndex)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("topic", id)
		}
		return nil, fmt.Errorf("sqlite: getting topic %s: %w", id, err)
	}
	t.ParentTopicID = parent.String
	return &t, nil
}

func (db *DB) DeleteTopic(ctx context.Context, id, userID string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM custom_topics WHERE `+topicOwnedBy, id, userID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting topic %s: %w", id, err)
	}
	return requireRow(res, "topic", id)
}

func (db *DB) ReorderTopic(ctx context.Context, id, userID string, orderIndex int) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE custom_topics SET order_index = ? WHERE `+topicOwnedBy,
		orderIndex, id, userID)
	if err != nil {
		return fmt.Errorf("sqlite: reordering topic %s: %w", id, err)
	}
	return requireRow(res, "topic", id)
}

// resourceOwnedBy scopes a resource to a list owner through topic → section.
const resourceOwnedBy = `id = ? AND topic_id IN (
	SELECT t.id FROM custom_topics t
	JOIN custom_sections s ON t.section_id = s.id
	JOIN custom_lists l ON s.list_id = l.id
	WHERE l.user_id = ?)`

// CreateResource inserts a resource into a topic the user owns. A negative
// OrderIndex appends within the topic.
func (db *DB) CreateResource(ctx context.Context, userID string, resource *model.Resource) error {
	var owner string
	err := db.conn.QueryRowContext(ctx,
		`SELECT l.user_id FROM custom_topics t
		 JOIN custom_sections s ON t.section_id = s.id
		 JOIN custom_lists l ON s.list_id = l.id
		 WHERE t.id = ?`, resource.TopicID).Scan(&owner)
	if err != nil {
		if err == sql.ErrNoRows {
			return apperror.NotFound("topic", resource.TopicID)
		}
		return fmt.Errorf("sqlite: checking topic owner: %w", err)
	}
	if owner != userID {
		return apperror.NotFound("topic", resource.TopicID)
	}

	if resource.OrderIndex < 0 {
		err := db.conn.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(order_index) + 1, 0) FROM custom_resources WHERE topic_id = ?`,
			resource.TopicID).Scan(&resource.OrderIndex)
		if err != nil {
			return fmt.Errorf("sqlite: next resource order: %w", err)
		}
	}

	resource.ID = uuid.NewString()
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO custom_resources (id, topic_id, type, title, url, platform, order_index)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		resource.ID, resource.TopicID, resource.Type, resource.Title,
		resource.URL, resource.Platform, resource.OrderIndex,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting resource %q: %w", resource.Title, err)
	}
	return nil
}

func (db *DB) UpdateResource(ctx context.Context, id, userID string, upd repository.ResourceUpdate) (*model.Resource, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE custom_resources
		 SET type     = COALESCE(?, type),
		     title    = COALESCE(?, title),
		     url      = COALESCE(?, url),
		     platform = COALESCE(?, platform)
		 WHERE `+resourceOwnedBy,
		upd.Type, upd.Title, upd.URL, upd.Platform, id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating resource %s: %w", id, err)
	}
	if err := requireRow(res, "resource", id); err != nil {
		return nil, err
	}

	var r model.Resource
	err = db.conn.QueryRowContext(ctx,
		`SELECT id, topic_id, type, title, url, platform, order_index
		 FROM custom_resources WHERE id = ?`, id,
	).Scan(&r.ID, &r.TopicID, &r.Type, &r.Title, &r.URL, &r.Platform, &r.OrderIndex)
	if err != nil {
		return nil, fmt.Errorf("sqlite: re-reading resource %s: %w", id, err)
	}
	return &r, nil
}

func (db *DB) DeleteResource(ctx context.Context, id, userID string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM custom_resources WHERE `+resourceOwnedBy, id, userID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting resource %s: %w", id, err)
	}
	return requireRow(res, "resource", id)
}

func (db *DB) ReorderResource(ctx context.Context, id, userID string, orderIndex int) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE custom_resources SET order_index = ? WHERE `+resourceOwnedBy,
		orderIndex, id, userID)
	if err != nil {
		return fmt.Errorf("sqlite: reordering resource %s: %w", id, err)
	}
	return requireRow(res, "resource", id)
}

// CopyList deep-copies a list's entire tree into newOwnerID's account.
//
// The whole operation runs in one transaction: the new list row (private,
// titled "<title> (Copy)", original_list_id pointing at the source), every
// section, every topic — parents before subtopics so the id remapping can
// resolve — every resource, and the source's copy_count bump. Any failure
// rolls all of it back; no partial copy can remain.
func (db *DB) CopyList(ctx context.Context, sourceID, newOwnerID string) (*model.List, error) {
	source, err := db.GetList(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	sections, err := db.sectionsOf(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	topics, err := db.topicsOf(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	resources, err := db.resourcesOf(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning copy transaction: %w", err)
	}
	// Rollback after a successful Commit is a no-op, so this covers every
	// early-return path.
	defer tx.Rollback()

	newListID := uuid.NewString()
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO custom_lists (id, user_id, title, description, icon, is_public,
			original_list_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		newListID, newOwnerID, source.Title+" (Copy)", source.Description, source.Icon,
		sourceID, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: copying list row: %w", err)
	}

	sectionIDs := make(map[string]string, len(sections))
	for _, s := range sections {
		newID := uuid.NewString()
		sectionIDs[s.ID] = newID
		_, err = tx.ExecContext(ctx,
			`INSERT INTO custom_sections (id, list_id, title, icon, order_index)
			 VALUES (?, ?, ?, ?, ?)`,
			newID, newListID, s.Title, s.Icon, s.OrderIndex,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite: copying section %s: %w", s.ID, err)
		}
	}

	// Two passes over topics: parents first so subtopics can remap their
	// parent_topic_id.
	topicIDs := make(map[string]string, len(topics))
	for _, pass := range []bool{false, true} {
		for _, t := range topics {
			if (t.ParentTopicID != "") != pass {
				continue
			}
			newID := uuid.NewString()
			topicIDs[t.ID] = newID

			var parent any
			if t.ParentTopicID != "" {
				mapped, ok := topicIDs[t.ParentTopicID]
				if !ok {
					return nil, fmt.Errorf("sqlite: subtopic %s references unknown parent %s", t.ID, t.ParentTopicID)
				}
				parent = mapped
			}

			_, err = tx.ExecContext(ctx,
				`INSERT INTO custom_topics (id, section_id, parent_topic_id, title, order_index)
				 VALUES (?, ?, ?, ?, ?)`,
				newID, sectionIDs[t.SectionID], parent, t.Title, t.OrderIndex,
			)
			if err != nil {
				return nil, fmt.Errorf("sqlite: copying topic %s: %w", t.ID, err)
			}
		}
	}

	for _, r := range resources {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO custom_resources (id, topic_id, type, title, url, platform, order_index)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), topicIDs[r.TopicID], r.Type, r.Title, r.URL, r.Platform, r.OrderIndex,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite: copying resource %s: %w", r.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE custom_lists SET copy_count = copy_count + 1 WHERE id = ?`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: bumping copy count of %s: %w", sourceID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing copy of %s: %w", sourceID, err)
	}

	return db.GetList(ctx, newListID)
}
