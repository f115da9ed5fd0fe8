package notification

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/varoOP/crimedb/internal/domain"
)

// Service fans notifications out to every configured channel
type Service struct {
	discord *DiscordService
}

// NewService creates a new notification service. With no webhook configured
// it sends nothing.
func NewService(log zerolog.Logger, webhookURL string) domain.NotificationService {
	var discord *DiscordService
	if webhookURL != "" {
		discord = NewDiscordService(log, webhookURL)
	}

	return &Service{
		discord: discord,
	}
}

func (s *Service) SendBackfillComplete(ctx context.Context, summary domain.BackfillSummary) error {
	if s.discord != nil {
		if err := s.discord.SendBackfillComplete(ctx, summary); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) SendBackfillError(ctx context.Context, locationKey string, err error) error {
	if s.discord != nil {
		if err := s.discord.SendBackfillError(ctx, locationKey, err); err != nil {
			return err
		}
	}
	return nil
}
