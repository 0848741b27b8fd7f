package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Identity resolves a seller's payout destination.
type Identity struct {
	Pool *pgxpool.Pool
}

func NewIdentity(pool *pgxpool.Pool) *Identity {
	return &Identity{Pool: pool}
}

// PayoutEmail returns the user's payout address, or "" when none is configured.
func (i *Identity) PayoutEmail(ctx context.Context, userID string) (string, error) {
	row := i.Pool.QueryRow(ctx, `SELECT payout_email FROM users WHERE user_id=$1`, userID)
	var email string
	if err := row.Scan(&email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return email, nil
}
