package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"subscription_notifier/internal/domain/email"
)

type PostgresEmailRepository struct {
	db *sql.DB
}

func NewPostgresEmailRepository(db *sql.DB) *PostgresEmailRepository {
	return &PostgresEmailRepository{db: db}
}

func (r *PostgresEmailRepository) FindDeliveryAddress(ctx context.Context, userID int64) (*email.Address, error) {
	query := `SELECT id, user_id, address, is_primary, created_at
               FROM emails WHERE user_id = $1
               ORDER BY is_primary DESC, created_at ASC, id ASC
               LIMIT 1`
	a := &email.Address{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&a.ID, &a.UserID, &a.Address, &a.IsPrimary, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, email.ErrAddressNotFound
		}
		return nil, fmt.Errorf("error finding email address for user %d: %w", userID, err)
	}
	return a, nil
}
