package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/study-tracker/internal/apperror"
	"github.com/sakif/study-tracker/internal/model"
	"github.com/sakif/study-tracker/internal/repository"
)

// Catalog pagination bounds.
const (
	DefaultCatalogLimit = 20
	MaxCatalogLimit     = 50
)

// maxLineageDepth bounds the ancestry walk. Copy chains are a handful of
// links in practice; anything deeper means corrupt or cyclic data.
const maxLineageDepth = 50

// PublicService handles the shared-list catalog: search, rating, lineage,
// and copying.
type PublicService struct {
	public repository.PublicRepository
	lists  repository.ListRepository
	logger *slog.Logger
}

// NewPublicService creates a PublicService.
func NewPublicService(
	public repository.PublicRepository,
	lists repository.ListRepository,
	logger *slog.Logger,
) *PublicService {
	return &PublicService{public: public, lists: lists, logger: logger}
}

// Search pages through public lists. Unknown sort modes fall back to
// recent; the limit is clamped to a sane range.
func (s *PublicService) Search(ctx context.Context, opts repository.PublicListOptions) ([]model.PublicList, int, error) {
	switch opts.Sort {
	case repository.SortRecent, repository.SortRating, repository.SortPopular:
	case "":
		opts.Sort = repository.SortRecent
	default:
		return nil, 0, apperror.ValidationFailed("sort", "sort must be one of: recent, rating, popular")
	}

	if opts.Limit <= 0 {
		opts.Limit = DefaultCatalogLimit
	}
	if opts.Limit > MaxCatalogLimit {
		opts.Limit = MaxCatalogLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	return s.public.SearchPublic(ctx, opts)
}

// visibleList fetches a list that viewerID is allowed to see: any public
// list, or the viewer's own private one. Everything else reads as not
// found — the existence of private lists is not disclosed.
func (s *PublicService) visibleList(ctx context.Context, listID, viewerID string) (*model.List, error) {
	list, err := s.lists.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if !list.IsPublic && list.UserID != viewerID {
		return nil, apperror.NotFound("list", listID)
	}
	return list, nil
}

// GetTree returns the full tree of a public list (or the viewer's own).
func (s *PublicService) GetTree(ctx context.Context, listID, viewerID string) (*model.ListTree, error) {
	if _, err := s.visibleList(ctx, listID, viewerID); err != nil {
		return nil, err
	}
	return s.lists.GetTree(ctx, listID)
}

// Rate records a 1–5 rating of a public list. One rating per user per
// list; rating again replaces the old value. Owners can't rate their own
// work.
func (s *PublicService) Rate(ctx context.Context, listID, userID string, rating int) error {
	if rating < 1 || rating > 5 {
		return apperror.ValidationFailed("rating", "rating must be between 1 and 5")
	}

	list, err := s.lists.GetList(ctx, listID)
	if err != nil {
		return err
	}
	if !list.IsPublic {
		return apperror.NotFound("list", listID)
	}
	if list.UserID == userID {
		return apperror.ValidationFailed("rating", "you cannot rate your own list")
	}

	if err := s.public.UpsertRating(ctx, &model.Rating{
		ListID: listID,
		UserID: userID,
		Rating: rating,
	}); err != nil {
		return fmt.Errorf("rating list: %w", err)
	}

	s.logger.Info("list rated",
		slog.String("listID", listID),
		slog.String("userID", userID),
		slog.Int("rating", rating),
	)
	return nil
}

// Lineage returns the copy ancestry of a list, ordered from the original
// creator's list down to the requested one.
//
// The walk follows original_list_id with a visited set and a depth cap, so
// a cyclic or absurdly long chain terminates instead of looping forever.
// A dangling ancestor reference simply ends the chain.
func (s *PublicService) Lineage(ctx context.Context, listID, viewerID string) ([]model.List, error) {
	list, err := s.visibleList(ctx, listID, viewerID)
	if err != nil {
		return nil, err
	}

	chain := []model.List{*list}
	visited := map[string]bool{list.ID: true}

	current := list
	for depth := 0; current.OriginalListID != "" && depth < maxLineageDepth; depth++ {
		if visited[current.OriginalListID] {
			s.logger.Warn("cycle detected in list lineage",
				slog.String("listID", listID),
				slog.String("repeated", current.OriginalListID),
			)
			break
		}

		ancestor, err := s.lists.GetList(ctx, current.OriginalListID)
		if err != nil {
			// The ancestor was deleted; the chain just ends here.
			break
		}

		visited[ancestor.ID] = true
		chain = append([]model.List{*ancestor}, chain...)
		current = ancestor
	}

	return chain, nil
}

// Copy deep-copies a public list's whole tree into the requester's account
// as a new private list pointing back at the source. The repository runs
// the copy in one transaction — it either lands complete or not at all.
func (s *PublicService) Copy(ctx context.Context, listID, userID string) (*model.List, error) {
	list, err := s.lists.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if !list.IsPublic {
		return nil, apperror.NotFound("list", listID)
	}
	if list.UserID == userID {
		return nil, apperror.ValidationFailed("listId", "you already own this list")
	}

	copied, err := s.lists.CopyList(ctx, listID, userID)
	if err != nil {
		return nil, fmt.Errorf("copying list %s: %w", listID, err)
	}

	s.logger.Info("list copied",
		slog.String("sourceID", listID),
		slog.String("newID", copied.ID),
		slog.String("userID", userID),
	)
	return copied, nil
}
