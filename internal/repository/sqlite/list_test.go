package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/study-tracker/internal/apperror"
	"github.com/sakif/study-tracker/internal/model"
	"github.com/sakif/study-tracker/internal/repository"
)

// TESTING WITH IN-MEMORY SQLITE:
// Using ":memory:" creates a fresh database that exists only during the test.
// Fast (no disk I/O), isolated (each test gets its own database), and clean
// (destroyed when the connection closes). Migrations and triggers run for
// real, so these tests cover the actual schema.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, email, username string) *model.User {
	t.Helper()
	user := &model.User{
		Email:        email,
		Username:     username,
		PasswordHash: "$2a$04$fakehashfakehashfakehash",
	}
	if err := db.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func createTestList(t *testing.T, db *DB, userID, title string) *model.List {
	t.Helper()
	list := &model.List{UserID: userID, Title: title}
	if err := db.CreateList(context.Background(), list); err != nil {
		t.Fatalf("failed to create test list: %v", err)
	}
	return list
}

func createTestSection(t *testing.T, db *DB, userID, listID, title string) *model.Section {
	t.Helper()
	section := &model.Section{ListID: listID, Title: title, OrderIndex: -1}
	if err := db.CreateSection(context.Background(), userID, section); err != nil {
		t.Fatalf("failed to create test section: %v", err)
	}
	return section
}

func createTestTopic(t *testing.T, db *DB, userID, sectionID, parentID, title string) *model.Topic {
	t.Helper()
	topic := &model.Topic{SectionID: sectionID, ParentTopicID: parentID, Title: title, OrderIndex: -1}
	if err := db.CreateTopic(context.Background(), userID, topic); err != nil {
		t.Fatalf("failed to create test topic: %v", err)
	}
	return topic
}

func createTestResource(t *testing.T, db *DB, userID, topicID, title string) *model.Resource {
	t.Helper()
	resource := &model.Resource{
		TopicID:    topicID,
		Type:       model.ResourceVideo,
		Title:      title,
		URL:        "https://youtube.com/watch?v=x",
		Platform:   "youtube",
		OrderIndex: -1,
	}
	if err := db.CreateResource(context.Background(), userID, resource); err != nil {
		t.Fatalf("failed to create test resource: %v", err)
	}
	return resource
}

// =========================================================================
// LIST CRUD
// =========================================================================

func TestCreateList(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com", "alice")

	list := &model.List{UserID: user.ID, Title: "My DSA Plan"}
	if err := db.CreateList(context.Background(), list); err != nil {
		t.Fatalf("CreateList() error = %v", err)
	}
	if list.ID == "" {
		t.Error("CreateList() did not set list.ID")
	}
	if list.CreatedAt.IsZero() {
		t.Error("CreateList() did not set CreatedAt")
	}

	found, err := db.GetList(context.Background(), list.ID)
	if err != nil {
		t.Fatalf("GetList() error = %v", err)
	}
	if found.Title != "My DSA Plan" {
		t.Errorf("Title = %q, want %q", found.Title, "My DSA Plan")
	}
	if found.IsPublic {
		t.Error("new lists should be private")
	}
}

func TestGetList_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetList(context.Background(), "nonexistent-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetList() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateList_CoalesceSemantics(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com", "alice")
	list := createTestList(t, db, user.ID, "Original")

	// Only update the title — description and is_public must survive
	title := "Renamed"
	updated, err := db.UpdateList(context.Background(), list.ID, user.ID,
		repository.ListUpdate{Title: &title})
	if err != nil {
		t.Fatalf("UpdateList() error = %v", err)
	}
	if updated.Title != "Renamed" {
		t.Errorf("Title = %q, want %q", updated.Title, "Renamed")
	}
	if updated.IsPublic {
		t.Error("IsPublic should be unchanged by a title-only update")
	}

	// Flip visibility without touching the title
	public := true
	updated, err = db.UpdateList(context.Background(), list.ID, user.ID,
		repository.ListUpdate{IsPublic: &public})
	if err != nil {
		t.Fatalf("UpdateList() error = %v", err)
	}
	if updated.Title != "Renamed" {
		t.Errorf("Title after visibility update = %q, want %q", updated.Title, "Renamed")
	}
	if !updated.IsPublic {
		t.Error("IsPublic = false, want true")
	}
}

func TestUpdateList_WrongOwner(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "a@example.com", "alice")
	mallory := createTestUser(t, db, "m@example.com", "mallory")
	list := createTestList(t, db, alice.ID, "Alice's list")

	title := "hijacked"
	_, err := db.UpdateList(context.Background(), list.ID, mallory.ID,
		repository.ListUpdate{Title: &title})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateList() by non-owner: error = %v, want ErrNotFound", err)
	}

	// Verify nothing changed
	found, _ := db.GetList(context.Background(), list.ID)
	if found.Title != "Alice's list" {
		t.Errorf("Title = %q after failed update, want unchanged", found.Title)
	}
}

func TestDeleteList_CascadesToChildren(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com", "alice")
	list := createTestList(t, db, user.ID, "doomed")
	section := createTestSection(t, db, user.ID, list.ID, "s1")
	topic := createTestTopic(t, db, user.ID, section.ID, "", "t1")
	createTestResource(t, db, user.ID, topic.ID, "r1")

	if err := db.DeleteList(context.Background(), list.ID, user.ID); err != nil {
		t.Fatalf("DeleteList() error = %v", err)
	}

	// Children must be gone too (ON DELETE CASCADE)
	if _, err := db.GetTopic(context.Background(), topic.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("topic should be cascade-deleted, got err = %v", err)
	}
}

// =========================================================================
// ORDER INDEX ASSIGNMENT
// =========================================================================

func TestCreateSection_AppendsOrderIndex(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com", "alice")
	list := createTestList(t, db, user.ID, "ordered")

	s1 := createTestSection(t, db, user.ID, list.ID, "first")
	s2 := createTestSection(t, db, user.ID, list.ID, "second")
	s3 := createTestSection(t, db, user.ID, list.ID, "third")

	if s1.OrderIndex != 0 || s2.OrderIndex != 1 || s3.OrderIndex != 2 {
		t.Errorf("order indexes = %d, %d, %d, want 0, 1, 2",
			s1.OrderIndex, s2.OrderIndex, s3.OrderIndex)
	}
}

func TestCreateSection_ExplicitOrderIndex(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com", "alice")
	list := createTestList(t, db, user.ID, "ordered")

	section := &model.Section{ListID: list.ID, Title: "pinned", OrderIndex: 7}
	if err := db.CreateSection(context.Background(), user.ID, section); err != nil {
		t.Fatalf("CreateSection() error = %v", err)
	}
	if section.OrderIndex != 7 {
		t.Errorf("OrderIndex = %d, want 7", section.OrderIndex)
	}
}

func TestReorderSection_SetsExactIndex(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com", "alice")
	list := createTestList(t, db, user.ID, "ordered")
	s1 := createTestSection(t, db, user.ID, list.ID, "first")
	s2 := createTestSection(t, db, user.ID, list.ID, "second")

	if err := db.ReorderSection(context.Background(), s1.ID, user.ID, 5); err != nil {
		t.Fatalf("ReorderSection() error = %v", err)
	}

	tree, err := db.GetTree(context.Background(), list.ID)
	if err != nil {
		t.Fatalf("GetTree() error = %v", err)
	}
	// s2 (index 1) now sorts before s1 (index 5)
	if tree.Sections[0].ID != s2.ID {
		t.Errorf("first section = %s, want %s", tree.Sections[0].ID, s2.ID)
	}
	if tree.Sections[1].OrderIndex != 5 {
		t.Errorf("moved section OrderIndex = %d, want 5", tree.Sections[1].OrderIndex)
	}
}

// =========================================================================
// SUBTOPIC NESTING RULES
// =========================================================================

func TestCreateTopic_Subtopic(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com", "alice")
	list := createTestList(t, db, user.ID, "l")
	section := createTestSection(t, db, user.ID, list.ID, "s")
	parent := createTestTopic(t, db, user.ID, section.ID, "", "arrays")

	sub := createTestTopic(t, db, user.ID, section.ID, parent.ID, "two pointers")
	if sub.ParentTopicID != parent.ID {
		t.Errorf("ParentTopicID = %q, want %q", sub.ParentTopicID, parent.ID)
	}
}

func TestCreateTopic_RejectsNestedSubtopic(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com", "alice")
	list := createTestList(t, db, user.ID, "l")
	section := createTestSection(t, db, user.ID, list.ID, "s")
	parent := createTestTopic(t, db, user.ID, section.ID, "", "arrays")
	sub := createTestTopic(t, db, user.ID, section.ID, parent.ID, "two pointers")

	// A subtopic cannot parent another topic
	grandchild := &model.Topic{SectionID: section.ID, ParentTopicID: sub.ID, Title: "too deep", OrderIndex: -1}
	err := db.CreateTopic(context.Background(), user.ID, grandchild)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("CreateTopic() nested subtopic: error = %v, want ErrValidation", err)
	}
}

func TestCreateTopic_RejectsParentInOtherSection(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com", "alice")
	list := createTestList(t, db, user.ID, "l")
	s1 := createTestSection(t, db, user.ID, list.ID, "s1")
	s2 := createTestSection(t, db, user.ID, list.ID, "s2")
	parent := createTestTopic(t, db, user.ID, s1.ID, "", "in s1")

	topic := &model.Topic{SectionID: s2.ID, ParentTopicID: parent.ID, Title: "crossed", OrderIndex: -1}
	err := db.CreateTopic(context.Background(), user.ID, topic)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("CreateTopic() cross-section parent: error = %v, want ErrValidation", err)
	}
}

func TestCreateTopic_SubtopicOrderIsIndependent(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com", "alice")
	list := createTestList(t, db, user.ID, "l")
	section := createTestSection(t, db, user.ID, list.ID, "s")
	parent := createTestTopic(t, db, user.ID, section.ID, "", "t0")
	createTestTopic(t, db, user.ID, section.ID, "", "t1")

	// First subtopic of parent starts at 0 even though the section already
	// has two top-level topics
	sub := createTestTopic(t, db, user.ID, section.ID, parent.ID, "sub0")
	if sub.OrderIndex != 0 {
		t.Errorf("first subtopic OrderIndex = %d, want 0", sub.OrderIndex)
	}
}

// =========================================================================
// TREE ASSEMBLY
// =========================================================================

func TestGetTree(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com", "alice")
	list := createTestList(t, db, user.ID, "full tree")
	s1 := createTestSection(t, db, user.ID, list.ID, "basics")
	s2 := createTestSection(t, db, user.ID, list.ID, "advanced")
	t1 := createTestTopic(t, db, user.ID, s1.ID, "", "arrays")
	sub := createTestTopic(t, db, user.ID, s1.ID, t1.ID, "sliding window")
	createTestTopic(t, db, user.ID, s2.ID, "", "graphs")
	r1 := createTestResource(t, db, user.ID, t1.ID, "intro video")
	createTestResource(t, db, user.ID, sub.ID, "practice set")

	tree, err := db.GetTree(context.Background(), list.ID)
	if err != nil {
		t.Fatalf("GetTree() error = %v", err)
	}

	if len(tree.Sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(tree.Sections))
	}
	basics := tree.Sections[0]
	if basics.Title != "basics" {
		t.Fatalf("first section = %q, want %q (order_index sort)", basics.Title, "basics")
	}
	if len(basics.Topics) != 1 {
		t.Fatalf("basics has %d top-level topics, want 1 (subtopic must nest, not float)", len(basics.Topics))
	}

	arrays := basics.Topics[0]
	if len(arrays.Resources) != 1 || arrays.Resources[0].ID != r1.ID {
		t.Errorf("arrays resources = %v, want [%s]", arrays.Resources, r1.ID)
	}
	if len(arrays.Subtopics) != 1 {
		t.Fatalf("arrays has %d subtopics, want 1", len(arrays.Subtopics))
	}
	if arrays.Subtopics[0].Title != "sliding window" {
		t.Errorf("subtopic = %q, want %q", arrays.Subtopics[0].Title, "sliding window")
	}
	if len(arrays.Subtopics[0].Resources) != 1 {
		t.Errorf("subtopic has %d resources, want 1", len(arrays.Subtopics[0].Resources))
	}
}

func TestGetTree_EmptyList(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com", "alice")
	list := createTestList(t, db, user.ID, "empty")

	tree, err := db.GetTree(context.Background(), list.ID)
	if err != nil {
		t.Fatalf("GetTree() error = %v", err)
	}
	if tree.Sections == nil {
		t.Error("Sections should be an empty slice, not nil (JSON: [] not null)")
	}
	if len(tree.Sections) != 0 {
		t.Errorf("got %d sections, want 0", len(tree.Sections))
	}
}

// =========================================================================
// DEEP COPY
// =========================================================================

func TestCopyList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "a@example.com", "alice")
	bob := createTestUser(t, db, "b@example.com", "bob")

	source := createTestList(t, db, alice.ID, "Alice's Roadmap")
	section := createTestSection(t, db, alice.ID, source.ID, "week 1")
	topic := createTestTopic(t, db, alice.ID, section.ID, "", "recursion")
	sub := createTestTopic(t, db, alice.ID, section.ID, topic.ID, "backtracking")
	createTestResource(t, db, alice.ID, topic.ID, "lecture")
	createTestResource(t, db, alice.ID, sub.ID, "problems")

	copied, err := db.CopyList(ctx, source.ID, bob.ID)
	if err != nil {
		t.Fatalf("CopyList() error = %v", err)
	}

	if copied.UserID != bob.ID {
		t.Errorf("copy owner = %s, want %s", copied.UserID, bob.ID)
	}
	if copied.Title != "Alice's Roadmap (Copy)" {
		t.Errorf("copy title = %q, want %q", copied.Title, "Alice's Roadmap (Copy)")
	}
	if copied.IsPublic {
		t.Error("copies must start private")
	}
	if copied.OriginalListID != source.ID {
		t.Errorf("OriginalListID = %q, want %q", copied.OriginalListID, source.ID)
	}

	// Source copy_count bumped
	src, _ := db.GetList(ctx, source.ID)
	if src.CopyCount != 1 {
		t.Errorf("source CopyCount = %d, want 1", src.CopyCount)
	}

	// Full structure carried over with fresh IDs
	tree, err := db.GetTree(ctx, copied.ID)
	if err != nil {
		t.Fatalf("GetTree() of copy: %v", err)
	}
	if len(tree.Sections) != 1 {
		t.Fatalf("copy has %d sections, want 1", len(tree.Sections))
	}
	copiedSection := tree.Sections[0]
	if copiedSection.ID == section.ID {
		t.Error("copied section kept the source's ID")
	}
	if len(copiedSection.Topics) != 1 {
		t.Fatalf("copy has %d topics, want 1", len(copiedSection.Topics))
	}
	copiedTopic := copiedSection.Topics[0]
	if len(copiedTopic.Resources) != 1 {
		t.Errorf("copied topic has %d resources, want 1", len(copiedTopic.Resources))
	}
	if len(copiedTopic.Subtopics) != 1 {
		t.Fatalf("copied topic has %d subtopics, want 1", len(copiedTopic.Subtopics))
	}
	if copiedTopic.Subtopics[0].ParentTopicID != copiedTopic.ID {
		t.Error("copied subtopic must point at the copied parent, not the source's")
	}
	if len(copiedTopic.Subtopics[0].Resources) != 1 {
		t.Errorf("copied subtopic has %d resources, want 1", len(copiedTopic.Subtopics[0].Resources))
	}
}

func TestCopyList_TwiceBumpsCountTwice(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "a@example.com", "alice")
	bob := createTestUser(t, db, "b@example.com", "bob")
	source := createTestList(t, db, alice.ID, "popular")

	if _, err := db.CopyList(ctx, source.ID, bob.ID); err != nil {
		t.Fatalf("first CopyList() error = %v", err)
	}
	if _, err := db.CopyList(ctx, source.ID, bob.ID); err != nil {
		t.Fatalf("second CopyList() error = %v", err)
	}

	src, _ := db.GetList(ctx, source.ID)
	if src.CopyCount != 2 {
		t.Errorf("CopyCount = %d, want 2", src.CopyCount)
	}
}

func TestCopyList_FailureLeavesNoPartialCopy(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "a@example.com", "alice")
	bob := createTestUser(t, db, "b@example.com", "bob")

	source := createTestList(t, db, alice.ID, "broken")
	section := createTestSection(t, db, alice.ID, source.ID, "week 1")
	createTestTopic(t, db, alice.ID, section.ID, "", "sorting")

	// Seed a subtopic whose parent lives in a different list, bypassing the
	// service-level checks with raw SQL. The copy cannot remap the parent id
	// and fails after the new list and section rows are already inserted —
	// exactly the mid-transaction failure the rollback must undo.
	other := createTestList(t, db, alice.ID, "other")
	otherSection := createTestSection(t, db, alice.ID, other.ID, "elsewhere")
	foreignParent := createTestTopic(t, db, alice.ID, otherSection.ID, "", "foreign")
	if _, err := db.conn.ExecContext(ctx,
		`INSERT INTO custom_topics (id, section_id, parent_topic_id, title, order_index)
		 VALUES ('dangling-sub', ?, ?, 'dangling', 0)`,
		section.ID, foreignParent.ID,
	); err != nil {
		t.Fatalf("seeding dangling subtopic: %v", err)
	}

	if _, err := db.CopyList(ctx, source.ID, bob.ID); err == nil {
		t.Fatal("CopyList() with an unmappable subtopic parent should fail")
	}

	// No half-built copy may survive the rollback.
	lists, err := db.ListsByOwner(ctx, bob.ID)
	if err != nil {
		t.Fatalf("ListsByOwner() error = %v", err)
	}
	if len(lists) != 0 {
		t.Errorf("recipient owns %d lists after failed copy, want 0", len(lists))
	}
	src, _ := db.GetList(ctx, source.ID)
	if src.CopyCount != 0 {
		t.Errorf("source CopyCount = %d after failed copy, want 0", src.CopyCount)
	}
}

func TestCopyList_SourceNotFound(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com", "alice")

	_, err := db.CopyList(context.Background(), "nonexistent-id", user.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("CopyList() error = %v, want ErrNotFound", err)
	}
}
