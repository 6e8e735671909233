package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"subscription_notifier/internal/domain/subscription"
)

var ErrSubscriptionNotFound = subscription.ErrNotFound

const subscriptionColumns = `s.id, s.user_id, s.tool_id, COALESCE(t.name, ''), s.status, s.billing_cycle,
       s.renewal_date, s.trial_end_date, s.cost, s.currency`

type PostgresSubscriptionRepository struct {
	db *sql.DB
}

func NewPostgresSubscriptionRepository(db *sql.DB) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{db: db}
}

func (r *PostgresSubscriptionRepository) GetByID(ctx context.Context, id int64) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
               FROM subscriptions s LEFT JOIN tools t ON t.id = s.tool_id
               WHERE s.id = $1`
	sub, err := scanSubscription(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("error getting subscription by ID: %w", err)
	}
	return sub, nil
}

// ListTrialsEndingBetween returns trial subscriptions whose trial ends in [from, to).
func (r *PostgresSubscriptionRepository) ListTrialsEndingBetween(ctx context.Context, from, to time.Time) ([]*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
               FROM subscriptions s LEFT JOIN tools t ON t.id = s.tool_id
               WHERE s.status = 'trial' AND s.trial_end_date >= $1 AND s.trial_end_date < $2
               ORDER BY s.id`
	return r.list(ctx, query, from.UTC(), to.UTC())
}

// ListRenewable returns active, recurring subscriptions anchored before anchorBefore.
// Anchors are immutable; callers roll them forward with the calendar helpers.
func (r *PostgresSubscriptionRepository) ListRenewable(ctx context.Context, anchorBefore time.Time) ([]*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
               FROM subscriptions s LEFT JOIN tools t ON t.id = s.tool_id
               WHERE s.status = 'active' AND s.renewal_date IS NOT NULL
                 AND s.billing_cycle <> 'one-time' AND s.renewal_date < $1
               ORDER BY s.id`
	return r.list(ctx, query, anchorBefore.UTC())
}

func (r *PostgresSubscriptionRepository) list(ctx context.Context, query string, args ...any) ([]*subscription.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*subscription.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning subscription row: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscription rows: %w", err)
	}
	return subs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*subscription.Subscription, error) {
	s := &subscription.Subscription{}
	var status, cycle string
	err := row.Scan(&s.ID, &s.UserID, &s.ToolID, &s.ToolName, &status, &cycle,
		&s.RenewalDate, &s.TrialEndDate, &s.Cost, &s.Currency)
	if err != nil {
		return nil, err
	}
	s.Status = subscription.Status(status)
	s.BillingCycle = subscription.BillingCycle(cycle)
	if s.RenewalDate.Valid {
		s.RenewalDate.Time = s.RenewalDate.Time.UTC()
	}
	if s.TrialEndDate.Valid {
		s.TrialEndDate.Time = s.TrialEndDate.Time.UTC()
	}
	return s, nil
}
