package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/sakif/study-tracker/internal/apperror"
	"github.com/sakif/study-tracker/internal/model"
	"github.com/sakif/study-tracker/internal/repository"
)

// Validation limits for the list tree.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MaxURLLength         = 2000
)

// ListService handles the list → section → topic → resource tree.
//
// Every operation takes the acting user's ID; ownership enforcement lives
// in the repository queries, so a foreign id is indistinguishable from a
// missing one.
type ListService struct {
	lists  repository.ListRepository
	logger *slog.Logger
}

// NewListService creates a ListService.
func NewListService(lists repository.ListRepository, logger *slog.Logger) *ListService {
	return &ListService{lists: lists, logger: logger}
}

func validTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperror.ValidationFailed("title", "title is required")
	}
	if len(title) > MaxTitleLength {
		return "", apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	return title, nil
}

// CreateList creates an empty private list.
func (s *ListService) CreateList(ctx context.Context, userID, title, description, icon string) (*model.List, error) {
	title, err := validTitle(title)
	if err != nil {
		return nil, err
	}
	if len(description) > MaxDescriptionLength {
		return nil, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}

	list := &model.List{
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(description),
		Icon:        strings.TrimSpace(icon),
	}
	if err := s.lists.CreateList(ctx, list); err != nil {
		return nil, fmt.Errorf("creating list: %w", err)
	}

	s.logger.Info("list created",
		slog.String("listID", list.ID),
		slog.String("userID", userID),
	)
	return list, nil
}

// Lists returns all lists the user owns.
func (s *ListService) Lists(ctx context.Context, userID string) ([]model.List, error) {
	lists, err := s.lists.ListsByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing lists: %w", err)
	}
	return lists, nil
}

// GetTree returns the fully nested tree of a list the user owns.
func (s *ListService) GetTree(ctx context.Context, userID, listID string) (*model.ListTree, error) {
	list, err := s.lists.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if list.UserID != userID {
		return nil, apperror.NotFound("list", listID)
	}
	return s.lists.GetTree(ctx, listID)
}

// UpdateList applies a partial update; nil fields stay unchanged.
func (s *ListService) UpdateList(ctx context.Context, userID, listID string, upd repository.ListUpdate) (*model.List, error) {
	if upd.Title != nil {
		title, err := validTitle(*upd.Title)
		if err != nil {
			return nil, err
		}
		upd.Title = &title
	}
	if upd.Description != nil && len(*upd.Description) > MaxDescriptionLength {
		return nil, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}
	return s.lists.UpdateList(ctx, listID, userID, upd)
}

// DeleteList removes a list and its whole tree.
func (s *ListService) DeleteList(ctx context.Context, userID, listID string) error {
	if err := s.lists.DeleteList(ctx, listID, userID); err != nil {
		return err
	}
	s.logger.Info("list deleted", slog.String("listID", listID), slog.String("userID", userID))
	return nil
}

// CreateSection adds a section to a list. orderIndex nil means append.
func (s *ListService) CreateSection(ctx context.Context, userID, listID, title, icon string, orderIndex *int) (*model.Section, error) {
	title, err := validTitle(title)
	if err != nil {
		return nil, err
	}

	section := &model.Section{
		ListID:     listID,
		Title:      title,
		Icon:       strings.TrimSpace(icon),
		OrderIndex: -1, // repository assigns max+1
	}
	if orderIndex != nil {
		section.OrderIndex = *orderIndex
	}
	if err := s.lists.CreateSection(ctx, userID, section); err != nil {
		return nil, err
	}
	return section, nil
}

func (s *ListService) UpdateSection(ctx context.Context, userID, sectionID string, upd repository.SectionUpdate) (*model.Section, error) {
	if upd.Title != nil {
		title, err := validTitle(*upd.Title)
		if err != nil {
			return nil, err
		}
		upd.Title = &title
	}
	return s.lists.UpdateSection(ctx, sectionID, userID, upd)
}

func (s *ListService) DeleteSection(ctx context.Context, userID, sectionID string) error {
	return s.lists.DeleteSection(ctx, sectionID, userID)
}

// ReorderSection sets the exact order index given; siblings are not
// renumbered. A client doing a drag-and-drop reorder emits one call per
// moved row.
func (s *ListService) ReorderSection(ctx context.Context, userID, sectionID string, orderIndex int) error {
	if orderIndex < 0 {
		return apperror.ValidationFailed("orderIndex", "order index must not be negative")
	}
	return s.lists.ReorderSection(ctx, sectionID, userID, orderIndex)
}

// CreateTopic adds a topic, or a subtopic when parentTopicID is non-empty.
func (s *ListService) CreateTopic(ctx context.Context, userID, sectionID, parentTopicID, title string, orderIndex *int) (*model.Topic, error) {
	title, err := validTitle(title)
	if err != nil {
		return nil, err
	}

	topic := &model.Topic{
		SectionID:     sectionID,
		ParentTopicID: strings.TrimSpace(parentTopicID),
		Title:         title,
		OrderIndex:    -1,
	}
	if orderIndex != nil {
		topic.OrderIndex = *orderIndex
	}
	if err := s.lists.CreateTopic(ctx, userID, topic); err != nil {
		return nil, err
	}
	return topic, nil
}

func (s *ListService) UpdateTopic(ctx context.Context, userID, topicID string, upd repository.TopicUpdate) (*model.Topic, error) {
	if upd.Title != nil {
		title, err := validTitle(*upd.Title)
		if err != nil {
			return nil, err
		}
		upd.Title = &title
	}
	return s.lists.UpdateTopic(ctx, topicID, userID, upd)
}

func (s *ListService) DeleteTopic(ctx context.Context, userID, topicID string) error {
	return s.lists.DeleteTopic(ctx, topicID, userID)
}

func (s *ListService) ReorderTopic(ctx context.Context, userID, topicID string, orderIndex int) error {
	if orderIndex < 0 {
		return apperror.ValidationFailed("orderIndex", "order index must not be negative")
	}
	return s.lists.ReorderTopic(ctx, topicID, userID, orderIndex)
}

// CreateResource adds a resource to a topic. The platform is detected from
// the URL host unless the caller supplies one.
func (s *ListService) CreateResource(ctx context.Context, userID, topicID, resourceType, title, rawURL, platform string, orderIndex *int) (*model.Resource, error) {
	title, err := validTitle(title)
	if err != nil {
		return nil, err
	}
	if !model.ValidResourceType(resourceType) {
		return nil, apperror.ValidationFailed("type", "type must be one of: video, note, link, practice")
	}
	rawURL = strings.TrimSpace(rawURL)
	if len(rawURL) > MaxURLLength {
		return nil, apperror.ValidationFailed("url",
			fmt.Sprintf("url must be %d characters or less", MaxURLLength))
	}

	platform = strings.TrimSpace(platform)
	if platform == "" {
		platform = DetectPlatform(rawURL)
	}

	resource := &model.Resource{
		TopicID:    topicID,
		Type:       resourceType,
		Title:      title,
		URL:        rawURL,
		Platform:   platform,
		OrderIndex: -1,
	}
	if orderIndex != nil {
		resource.OrderIndex = *orderIndex
	}
	if err := s.lists.CreateResource(ctx, userID, resource); err != nil {
		return nil, err
	}
	return resource, nil
}

func (s *ListService) UpdateResource(ctx context.Context, userID, resourceID string, upd repository.ResourceUpdate) (*model.Resource, error) {
	if upd.Title != nil {
		title, err := validTitle(*upd.Title)
		if err != nil {
			return nil, err
		}
		upd.Title = &title
	}
	if upd.Type != nil && !model.ValidResourceType(*upd.Type) {
		return nil, apperror.ValidationFailed("type", "type must be one of: video, note, link, practice")
	}
	// A new URL without an explicit platform re-runs detection.
	if upd.URL != nil && upd.Platform == nil {
		platform := DetectPlatform(*upd.URL)
		upd.Platform = &platform
	}
	return s.lists.UpdateResource(ctx, resourceID, userID, upd)
}

func (s *ListService) DeleteResource(ctx context.Context, userID, resourceID string) error {
	return s.lists.DeleteResource(ctx, resourceID, userID)
}

func (s *ListService) ReorderResource(ctx context.Context, userID, resourceID string, orderIndex int) error {
	if orderIndex < 0 {
		return apperror.ValidationFailed("orderIndex", "order index must not be negative")
	}
	return s.lists.ReorderResource(ctx, resourceID, userID, orderIndex)
}

// knownPlatforms maps URL hosts (www. stripped) to display names.
var knownPlatforms = map[string]string{
	"youtube.com":        "youtube",
	"youtu.be":           "youtube",
	"leetcode.com":       "leetcode",
	"geeksforgeeks.org":  "geeksforgeeks",
	"codeforces.com":     "codeforces",
	"hackerrank.com":     "hackerrank",
	"codechef.com":       "codechef",
	"udemy.com":          "udemy",
	"coursera.org":       "coursera",
	"github.com":         "github",
	"medium.com":         "medium",
	"dev.to":             "devto",
	"freecodecamp.org":   "freecodecamp",
	"interviewbit.com":   "interviewbit",
}

// DetectPlatform guesses the platform from a resource URL's host.
// Unknown hosts fall back to the bare host; unparseable URLs to "".
func DetectPlatform(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	if name, ok := knownPlatforms[host]; ok {
		return name
	}
	return host
}
