package services

import (
	"context"
	"net/url"
	"strings"

	"github.com/rgadsdon/mapveto/internal/errors"
	"github.com/rgadsdon/mapveto/internal/logger"
	"github.com/rgadsdon/mapveto/internal/repository"
)

// Setting keys understood by the server
const (
	SettingBaseURL = "base_url"
)

// SettingsService handles server settings business logic
type SettingsService struct {
	log  logger.Logger
	repo repository.SettingsRepository
}

// NewSettingsService creates a new SettingsService
func NewSettingsService(log logger.Logger, repo repository.SettingsRepository) *SettingsService {
	return &SettingsService{log: log, repo: repo}
}

// GetSetting returns a setting value, empty when unset
func (s *SettingsService) GetSetting(ctx context.Context, key string) (string, error) {
	value, err := s.repo.GetSetting(ctx, key)
	if err == repository.ErrNotFound {
		return "", nil
	}
	return value, err
}

// SetSetting validates and stores a setting
func (s *SettingsService) SetSetting(ctx context.Context, key, value string) error {
	switch key {
	case SettingBaseURL:
		value = strings.TrimRight(strings.TrimSpace(value), "/")
		if value != "" {
			u, err := url.Parse(value)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return errors.Validation("base URL must be absolute")
			}
		}
	default:
		return errors.Validationf("unknown setting %q", key)
	}
	if err := s.repo.SetSetting(ctx, key, value); err != nil {
		return err
	}
	s.log.Info("Setting updated", "key", key)
	return nil
}

// Stats returns aggregate counters for the admin dashboard
func (s *SettingsService) Stats(ctx context.Context) (map[string]interface{}, error) {
	return s.repo.GetStats(ctx)
}
