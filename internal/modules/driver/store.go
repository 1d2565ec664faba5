// README: Driver store: eligibility, capacity counting, first-available selection.
package driver

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rewear/internal/types"
)

var (
	ErrNotDriver     = errors.New("user has no driver application")
	ErrNoneAvailable = errors.New("no available drivers")
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// GetForUpdate locks the driver's application row so concurrent capacity
// checks for the same driver serialize instead of racing check-then-act.
func (s *Store) GetForUpdate(ctx context.Context, tx pgx.Tx, userID types.ID) (*Application, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, user_id, status, vehicle, license_no, reviewed_at, created_at
		FROM driver_applications
		WHERE user_id = $1
		FOR UPDATE`, string(userID))

	var a Application
	err := row.Scan(&a.ID, &a.UserID, &a.Status, &a.Vehicle, &a.LicenseNo,
		&a.ReviewedAt, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotDriver
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CountActive returns the driver's deliveries currently in {assigned, in_transit}.
// Call after GetForUpdate so the count cannot move under the caller.
func (s *Store) CountActive(ctx context.Context, tx pgx.Tx, driverID types.ID) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM deliveries
		WHERE driver_id = $1 AND status IN ('assigned', 'in_transit')`,
		string(driverID)).Scan(&n)
	return n, err
}

// FirstAvailable picks the earliest-approved driver with zero active
// deliveries. SKIP LOCKED keeps concurrent auto-assignments from both
// choosing the same driver.
func (s *Store) FirstAvailable(ctx context.Context, tx pgx.Tx) (types.ID, error) {
	var id types.ID
	err := tx.QueryRow(ctx, `
		SELECT da.user_id
		FROM driver_applications da
		WHERE da.status = 'approved'
		  AND NOT EXISTS (
			SELECT 1 FROM deliveries d
			WHERE d.driver_id = da.user_id AND d.status IN ('assigned', 'in_transit')
		  )
		ORDER BY da.created_at
		LIMIT 1
		FOR UPDATE OF da SKIP LOCKED`).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNoneAvailable
	}
	if err != nil {
		return "", err
	}
	return id, nil
}
