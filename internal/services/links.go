package services

import (
	"context"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/rgadsdon/mapveto/internal/errors"
	"github.com/rgadsdon/mapveto/internal/logger"
	"github.com/rgadsdon/mapveto/internal/repository"
)

// qrSize is the pixel edge of generated join QR codes
const qrSize = 256

// LinkService builds player join links and QR codes from the
// configured base URL, so organizers can hand devices a session with
// one scan.
type LinkService struct {
	log  logger.Logger
	repo repository.FullRepository
}

// NewLinkService creates a new LinkService
func NewLinkService(log logger.Logger, repo repository.FullRepository) *LinkService {
	return &LinkService{log: log, repo: repo}
}

// PlayerJoinURL returns the join link for a player slot
func (s *LinkService) PlayerJoinURL(ctx context.Context, playerID int64) (string, error) {
	player, err := s.repo.GetSessionPlayer(ctx, playerID)
	if err != nil {
		return "", err
	}
	if player.Token == "" {
		return "", ErrPreconditionFailed
	}
	base, err := s.repo.GetSetting(ctx, SettingBaseURL)
	if err == repository.ErrNotFound {
		base = ""
	} else if err != nil {
		return "", err
	}
	if base == "" {
		return "", errors.Validation("base URL is not configured")
	}
	return fmt.Sprintf("%s/play/%s", strings.TrimRight(base, "/"), player.Token), nil
}

// QRImage renders a player's join link as a PNG QR code
func (s *LinkService) QRImage(ctx context.Context, playerID int64) ([]byte, error) {
	url, err := s.PlayerJoinURL(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(url, qrcode.Medium, qrSize)
}
