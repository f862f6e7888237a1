package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/parley/internal/admin"
)

// WarningRepository persists room warnings. It implements admin.WarningStore.
type WarningRepository struct {
	db *pgxpool.Pool
}

// NewWarningRepository creates a WarningRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewWarningRepository(db *pgxpool.Pool) *WarningRepository {
	return &WarningRepository{db: db}
}

// Add records w and returns the member's warning count in the room after it.
// The insert and the count run in one transaction.
func (r *WarningRepository) Add(ctx context.Context, w admin.Warning) (int, error) {
	member := admin.NormalizeName(w.User)
	var n int
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO warnings (room_id, member, reason, issued_by, issued_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			w.Room, member, w.Reason, w.IssuedBy, w.IssuedAt,
		); err != nil {
			return fmt.Errorf("inserting warning: %w", err)
		}
		return tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM warnings WHERE room_id = $1 AND member = $2`,
			w.Room, member,
		).Scan(&n)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Count returns the member's warning count in the room.
func (r *WarningRepository) Count(ctx context.Context, room, user string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM warnings WHERE room_id = $1 AND member = $2`,
		room, admin.NormalizeName(user),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting warnings: %w", err)
	}
	return n, nil
}

// Pardon deletes the member's warnings in the room and returns how many were removed.
func (r *WarningRepository) Pardon(ctx context.Context, room, user string) (int, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM warnings WHERE room_id = $1 AND member = $2`,
		room, admin.NormalizeName(user),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting warnings: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
