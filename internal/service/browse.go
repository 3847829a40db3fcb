package service

import (
	"context"
	"log/slog"

	"github.com/veilapp/veil-server/internal/domain"
	domainerrors "github.com/veilapp/veil-server/internal/errors"
	"github.com/veilapp/veil-server/internal/store"
)

// BrowseService serves the filtered library views. Every query filters
// against the caller's materialized exclusion set in the store, so a
// browse request never pays for graph traversal.
type BrowseService struct {
	store  store.Store
	logger *slog.Logger
}

// NewBrowseService creates a browse service.
func NewBrowseService(st store.Store, logger *slog.Logger) *BrowseService {
	return &BrowseService{store: st, logger: logger}
}

// ListScenes returns the scenes the user is allowed to see in one
// instance, ordered by title.
func (s *BrowseService) ListScenes(ctx context.Context, userID, instanceID string) ([]*domain.Scene, error) {
	if err := s.checkBrowseArgs(ctx, userID, instanceID); err != nil {
		return nil, err
	}
	return s.store.ListVisibleScenes(ctx, userID, instanceID)
}

// ListGalleries returns the galleries the user is allowed to see in one
// instance, ordered by title.
func (s *BrowseService) ListGalleries(ctx context.Context, userID, instanceID string) ([]*domain.Gallery, error) {
	if err := s.checkBrowseArgs(ctx, userID, instanceID); err != nil {
		return nil, err
	}
	return s.store.ListVisibleGalleries(ctx, userID, instanceID)
}

func (s *BrowseService) checkBrowseArgs(ctx context.Context, userID, instanceID string) error {
	if userID == "" {
		return domainerrors.Validation("user id is required")
	}
	if instanceID == "" {
		return domainerrors.Validation("instance id is required")
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return err
	}
	if _, err := s.store.GetInstance(ctx, instanceID); err != nil {
		return err
	}
	return nil
}
