// README: Address store. Address CRUD lives elsewhere; the core only needs
// ownership checks and coordinates.
package address

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rewear/internal/types"
)

var ErrNotFound = errors.New("address not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Address, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, label, street, city, lat, lng, created_at
		FROM addresses WHERE id = $1`, string(id))

	var a Address
	err := row.Scan(&a.ID, &a.UserID, &a.Label, &a.Street, &a.City,
		&a.Point.Lat, &a.Point.Lng, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
