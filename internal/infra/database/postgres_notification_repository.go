// internal/infra/database/postgres_notification_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"subscription_notifier/internal/domain/notification"
)

var ErrNotificationNotFound = fmt.Errorf("notification not found")

const notificationColumns = `id, user_id, type, related_id, milestone, title, message,
       is_sent, scheduled_for, sent_at, created_at`

type PostgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

// CreateIfAbsent relies on the notifications_milestone_key unique index. ON CONFLICT
// makes concurrent runs race-free; a conflicting insert returns no row.
func (r *PostgresNotificationRepository) CreateIfAbsent(ctx context.Context, ev *notification.Event) (bool, error) {
	query := `INSERT INTO notifications (user_id, type, related_id, milestone, title, message, is_sent, scheduled_for)
               VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
               ON CONFLICT (user_id, type, related_id, milestone) DO NOTHING
               RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		ev.UserID, string(ev.Type), ev.RelatedID, ev.Milestone, ev.Title, ev.Message, ev.ScheduledFor,
	).Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("error creating notification: %w", err)
	}
	ev.IsSent = false
	return true, nil
}

func (r *PostgresNotificationRepository) GetByID(ctx context.Context, id int64) (*notification.Event, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	ev, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("error getting notification by ID: %w", err)
	}
	return ev, nil
}

func (r *PostgresNotificationRepository) ListPending(ctx context.Context, now time.Time) ([]*notification.Event, error) {
	query := `SELECT ` + notificationColumns + `
               FROM notifications
               WHERE is_sent = FALSE AND (scheduled_for IS NULL OR scheduled_for <= $1)
               ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("error listing pending notifications: %w", err)
	}
	defer rows.Close()

	var events []*notification.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning notification row: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}
	return events, nil
}

func (r *PostgresNotificationRepository) CountPending(ctx context.Context, now time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM notifications
               WHERE is_sent = FALSE AND (scheduled_for IS NULL OR scheduled_for <= $1)`
	var count int
	if err := r.db.QueryRowContext(ctx, query, now.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting pending notifications: %w", err)
	}
	return count, nil
}

// MarkSent only touches unsent rows, so a concurrent dispatcher cannot overwrite sent_at.
func (r *PostgresNotificationRepository) MarkSent(ctx context.Context, id int64, sentAt time.Time) error {
	query := `UPDATE notifications SET is_sent = TRUE, sent_at = $2 WHERE id = $1 AND is_sent = FALSE`
	result, err := r.db.ExecContext(ctx, query, id, sentAt.UTC())
	if err != nil {
		return fmt.Errorf("error marking notification %d as sent: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking affected rows for notification %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func scanEvent(row rowScanner) (*notification.Event, error) {
	ev := &notification.Event{}
	var typ string
	err := row.Scan(&ev.ID, &ev.UserID, &typ, &ev.RelatedID, &ev.Milestone, &ev.Title, &ev.Message,
		&ev.IsSent, &ev.ScheduledFor, &ev.SentAt, &ev.CreatedAt)
	if err != nil {
		return nil, err
	}
	if ev.Type, err = notification.ParseType(typ); err != nil {
		return nil, err
	}
	return ev, nil
}
