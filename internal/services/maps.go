package services

import (
	"context"
	"strings"

	"github.com/rgadsdon/mapveto/internal/errors"
	"github.com/rgadsdon/mapveto/internal/logger"
	"github.com/rgadsdon/mapveto/internal/models"
	"github.com/rgadsdon/mapveto/internal/repository"
)

// MapService handles master map pool business logic
type MapService struct {
	log  logger.Logger
	repo repository.MapRepository
}

// NewMapService creates a new MapService
func NewMapService(log logger.Logger, repo repository.MapRepository) *MapService {
	return &MapService{log: log, repo: repo}
}

// ListMaps returns the active master maps
func (s *MapService) ListMaps(ctx context.Context) ([]models.Map, error) {
	return s.repo.ListMaps(ctx)
}

// ListAllMaps returns every master map, including deactivated ones
func (s *MapService) ListAllMaps(ctx context.Context) ([]models.Map, error) {
	return s.repo.ListAllMaps(ctx)
}

// GetMap returns a master map by ID
func (s *MapService) GetMap(ctx context.Context, id int64) (*models.Map, error) {
	return s.repo.GetMap(ctx, id)
}

// CreateMap adds a map to the master pool
func (s *MapService) CreateMap(ctx context.Context, name, imageURL string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.Validation("map name is required")
	}
	id, err := s.repo.CreateMap(ctx, name, imageURL)
	if err != nil {
		return 0, err
	}
	s.log.Info("Map created", "id", id, "name", name)
	return id, nil
}

// UpdateMap edits a master map. Existing session snapshots keep the
// values they were created with.
func (s *MapService) UpdateMap(ctx context.Context, id int64, name, imageURL string, active bool) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.Validation("map name is required")
	}
	if _, err := s.repo.GetMap(ctx, id); err != nil {
		return err
	}
	return s.repo.UpdateMap(ctx, id, name, imageURL, active)
}

// DeleteMap deactivates a master map so it cannot join new pools
func (s *MapService) DeleteMap(ctx context.Context, id int64) error {
	if _, err := s.repo.GetMap(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteMap(ctx, id)
}
