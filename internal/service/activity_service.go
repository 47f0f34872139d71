package service

import (
	"context"
	"encoding/json"
	"fmt"

	"rmtracer/internal/database"
	"rmtracer/internal/domain"
	"rmtracer/internal/events"
	"rmtracer/internal/models"

	"github.com/rs/zerolog"
)

// ActivityService appends and lists audit entries.
type ActivityService struct {
	db       *database.DB
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewActivityService(db *database.DB, eventBus domain.EventPublisher, logger *zerolog.Logger) *ActivityService {
	return &ActivityService{db: db, eventBus: eventBus, logger: logger}
}

func (s *ActivityService) LogActivity(ctx context.Context, userID, aksi, noRM string, details map[string]interface{}) error {
	entry := &models.ActivityLog{
		UserID: userID,
		Aksi:   aksi,
		NoRM:   noRM,
	}
	if len(details) > 0 {
		raw, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to marshal activity details: %w", err)
		}
		entry.Details = string(raw)
	}

	if err := s.db.AppendActivityLog(ctx, entry); err != nil {
		return err
	}

	if s.eventBus != nil {
		if err := s.eventBus.PublishJSON(events.EventActivityLogged, map[string]interface{}{
			"id":    entry.ID,
			"aksi":  aksi,
			"no_rm": noRM,
		}); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to publish activity event")
		}
	}
	return nil
}

func (s *ActivityService) ListActivity(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityLog, int64, error) {
	return s.db.ListActivityLogs(ctx, filter)
}
