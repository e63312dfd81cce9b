package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/recipe-api-be/internal/models"
	"github.com/rs/zerolog/log"
)

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(ctx context.Context, userID, eventType, message string) error
	GetRecentEvents(ctx context.Context, userID string, limit int) ([]models.Event, error)
	PruneEvents(ctx context.Context, olderThan time.Time) (int64, error)
}

// Notifier receives every recorded event, e.g. to push it to live clients.
type Notifier interface {
	Publish(userID string, event models.Event)
}

// EventService provides business logic for event management.
type EventService struct {
	db       *sql.DB
	notifier Notifier
	now      func() time.Time
}

// NewEventService creates a new EventService. notifier may be nil.
func NewEventService(db *sql.DB, notifier Notifier) *EventService {
	return &EventService{db: db, notifier: notifier, now: time.Now}
}

// CreateEvent logs a new event to the database and forwards it to the
// notifier. Failures are logged and returned; callers treat events as
// best effort.
func (s *EventService) CreateEvent(ctx context.Context, userID, eventType, message string) error {
	event := models.Event{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      eventType,
		Message:   message,
		CreatedAt: s.now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (id, user_id, type, message, created_at) VALUES (?, ?, ?, ?, ?)",
		event.ID, event.UserID, event.Type, event.Message, formatTime(event.CreatedAt))
	if err != nil {
		log.Error().Err(err).Str("type", eventType).Str("user_id", userID).Msg("Failed to record event")
		return err
	}

	if s.notifier != nil {
		s.notifier.Publish(userID, event)
	}
	return nil
}

// GetRecentEvents retrieves the user's most recent events, newest first.
func (s *EventService) GetRecentEvents(ctx context.Context, userID string, limit int) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, type, message, created_at FROM events WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?",
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var event models.Event
		var createdAt string
		if err := rows.Scan(&event.ID, &event.UserID, &event.Type, &event.Message, &createdAt); err != nil {
			return nil, err
		}
		if event.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// PruneEvents deletes events recorded before olderThan.
func (s *EventService) PruneEvents(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE created_at < ?", formatTime(olderThan))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
