// Package sqlite provides a SQLite-backed store for subscriptions, email addresses
// and notification events. It serves local runs and tests; production uses PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"subscription_notifier/internal/domain/email"
	"subscription_notifier/internal/domain/notification"
	"subscription_notifier/internal/domain/subscription"
	"subscription_notifier/internal/infra/migrate"
	"subscription_notifier/internal/infra/sqlite/migrations"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

var (
	ErrSubscriptionNotFound = subscription.ErrNotFound
	ErrNotificationNotFound = errors.New("notification not found")
)

// Store persists notifier state in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullMillis(t sql.NullTime) sql.NullInt64 {
	if !t.Valid {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(t.Time), Valid: true}
}

func nullTime(v sql.NullInt64) sql.NullTime {
	if !v.Valid {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: fromMillis(v.Int64), Valid: true}
}

// Open opens a SQLite store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time; concurrent workers queue on the pool instead of hitting SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := migrate.Up(sqlDB, migrate.SQLite, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: func() time.Time { return time.Now().UTC() }}, nil
}

// SubscriptionRepository reads subscriptions from the store.
type SubscriptionRepository struct {
	db *sql.DB
}

// NotificationRepository persists notification events in the store.
type NotificationRepository struct {
	db  *sql.DB
	now func() time.Time
}

// EmailRepository resolves delivery addresses from the store.
type EmailRepository struct {
	db *sql.DB
}

func (s *Store) Subscriptions() *SubscriptionRepository {
	return &SubscriptionRepository{db: s.sqlDB}
}

func (s *Store) Notifications() *NotificationRepository {
	return &NotificationRepository{db: s.sqlDB, now: s.now}
}

func (s *Store) Emails() *EmailRepository {
	return &EmailRepository{db: s.sqlDB}
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateTool inserts a tool and returns its id.
func (s *Store) CreateTool(ctx context.Context, name string) (int64, error) {
	res, err := s.sqlDB.ExecContext(ctx, `INSERT INTO tools (name, created_at) VALUES (?, ?)`, name, toMillis(s.now()))
	if err != nil {
		return 0, fmt.Errorf("insert tool: %w", err)
	}
	return res.LastInsertId()
}

// CreateSubscription inserts sub and fills its ID.
func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	res, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO subscriptions (user_id, tool_id, status, billing_cycle, renewal_date, trial_end_date, cost, currency, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.UserID, sub.ToolID, string(sub.Status), string(sub.BillingCycle),
		nullMillis(sub.RenewalDate), nullMillis(sub.TrialEndDate), sub.Cost, sub.Currency, toMillis(s.now()),
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	sub.ID, err = res.LastInsertId()
	return err
}

// AddEmail registers an address for a user.
func (s *Store) AddEmail(ctx context.Context, a *email.Address) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO emails (user_id, address, is_primary, created_at) VALUES (?, ?, ?, ?)`,
		a.UserID, a.Address, a.IsPrimary, toMillis(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert email: %w", err)
	}
	a.ID, err = res.LastInsertId()
	return err
}

const subscriptionSelect = `
SELECT s.id, s.user_id, s.tool_id, COALESCE(t.name, ''), s.status, s.billing_cycle,
       s.renewal_date, s.trial_end_date, s.cost, s.currency
FROM subscriptions s LEFT JOIN tools t ON t.id = s.tool_id`

// GetByID returns one subscription with its tool name.
func (r *SubscriptionRepository) GetByID(ctx context.Context, id int64) (*subscription.Subscription, error) {
	sub, err := scanSubscription(r.db.QueryRowContext(ctx, subscriptionSelect+` WHERE s.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

// ListTrialsEndingBetween returns trial subscriptions whose trial ends in [from, to).
func (r *SubscriptionRepository) ListTrialsEndingBetween(ctx context.Context, from, to time.Time) ([]*subscription.Subscription, error) {
	return r.listSubscriptions(ctx, subscriptionSelect+`
WHERE s.status = 'trial' AND s.trial_end_date >= ? AND s.trial_end_date < ?
ORDER BY s.id`, toMillis(from), toMillis(to))
}

// ListRenewable returns active, recurring subscriptions anchored before anchorBefore.
func (r *SubscriptionRepository) ListRenewable(ctx context.Context, anchorBefore time.Time) ([]*subscription.Subscription, error) {
	return r.listSubscriptions(ctx, subscriptionSelect+`
WHERE s.status = 'active' AND s.renewal_date IS NOT NULL
  AND s.billing_cycle <> 'one-time' AND s.renewal_date < ?
ORDER BY s.id`, toMillis(anchorBefore))
}

func (r *SubscriptionRepository) listSubscriptions(ctx context.Context, query string, args ...any) ([]*subscription.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*subscription.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return subs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*subscription.Subscription, error) {
	var (
		sub            subscription.Subscription
		status, cycle  string
		renewal, trial sql.NullInt64
	)
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.ToolID, &sub.ToolName, &status, &cycle,
		&renewal, &trial, &sub.Cost, &sub.Currency); err != nil {
		return nil, err
	}
	sub.Status = subscription.Status(status)
	sub.BillingCycle = subscription.BillingCycle(cycle)
	sub.RenewalDate = nullTime(renewal)
	sub.TrialEndDate = nullTime(trial)
	return &sub, nil
}

// FindDeliveryAddress returns the user's primary address, falling back to the oldest one.
func (r *EmailRepository) FindDeliveryAddress(ctx context.Context, userID int64) (*email.Address, error) {
	var (
		a         email.Address
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx, `
SELECT id, user_id, address, is_primary, created_at FROM emails
WHERE user_id = ?
ORDER BY is_primary DESC, created_at ASC, id ASC
LIMIT 1`, userID).Scan(&a.ID, &a.UserID, &a.Address, &a.IsPrimary, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, email.ErrAddressNotFound
		}
		return nil, fmt.Errorf("find email address: %w", err)
	}
	a.CreatedAt = fromMillis(createdAt)
	return &a, nil
}

// CreateIfAbsent inserts ev unless its milestone key already exists.
func (r *NotificationRepository) CreateIfAbsent(ctx context.Context, ev *notification.Event) (bool, error) {
	createdAt := r.now()
	res, err := r.db.ExecContext(ctx, `
INSERT INTO notifications (user_id, type, related_id, milestone, title, message, is_sent, scheduled_for, created_at)
VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
ON CONFLICT (user_id, type, related_id, milestone) DO NOTHING`,
		ev.UserID, string(ev.Type), ev.RelatedID, ev.Milestone, ev.Title, ev.Message,
		nullMillis(ev.ScheduledFor), toMillis(createdAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert notification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert notification rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("insert notification id: %w", err)
	}
	ev.ID = id
	ev.IsSent = false
	ev.CreatedAt = fromMillis(toMillis(createdAt))
	return true, nil
}

const notificationSelect = `
SELECT id, user_id, type, related_id, milestone, title, message, is_sent, scheduled_for, sent_at, created_at
FROM notifications`

const pendingFilter = ` WHERE is_sent = 0 AND (scheduled_for IS NULL OR scheduled_for <= ?)`

// GetByID returns one notification event.
func (r *NotificationRepository) GetByID(ctx context.Context, id int64) (*notification.Event, error) {
	ev, err := scanEvent(r.db.QueryRowContext(ctx, notificationSelect+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return ev, nil
}

// ListPending returns due, unsent events oldest first.
func (r *NotificationRepository) ListPending(ctx context.Context, now time.Time) ([]*notification.Event, error) {
	rows, err := r.db.QueryContext(ctx, notificationSelect+pendingFilter+` ORDER BY created_at ASC, id ASC`, toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("list pending notifications: %w", err)
	}
	defer rows.Close()

	var events []*notification.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return events, nil
}

// CountPending counts due, unsent events.
func (r *NotificationRepository) CountPending(ctx context.Context, now time.Time) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications`+pendingFilter, toMillis(now)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending notifications: %w", err)
	}
	return count, nil
}

// MarkSent flips an unsent event to sent.
func (r *NotificationRepository) MarkSent(ctx context.Context, id int64, sentAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_sent = 1, sent_at = ? WHERE id = ? AND is_sent = 0`,
		toMillis(sentAt), id,
	)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification sent rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func scanEvent(row rowScanner) (*notification.Event, error) {
	var (
		ev                   notification.Event
		typ                  string
		scheduledFor, sentAt sql.NullInt64
		createdAt            int64
	)
	if err := row.Scan(&ev.ID, &ev.UserID, &typ, &ev.RelatedID, &ev.Milestone, &ev.Title, &ev.Message,
		&ev.IsSent, &scheduledFor, &sentAt, &createdAt); err != nil {
		return nil, err
	}
	t, err := notification.ParseType(typ)
	if err != nil {
		return nil, err
	}
	ev.Type = t
	ev.ScheduledFor = nullTime(scheduledFor)
	ev.SentAt = nullTime(sentAt)
	ev.CreatedAt = fromMillis(createdAt)
	return &ev, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

var (
	_ subscription.Repository = (*SubscriptionRepository)(nil)
	_ notification.Repository = (*NotificationRepository)(nil)
	_ email.Repository        = (*EmailRepository)(nil)
)
