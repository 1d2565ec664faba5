// README: Donation store: claim lookups and the charity roster for broadcasts.
package donation

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"rewear/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// HasClaim reports whether the charity already holds any order on the item,
// cancelled or not. The partial unique index on (buyer_id, item_id) is the
// race backstop; this check gives the friendly error on the common path.
func (s *Store) HasClaim(ctx context.Context, charityID, itemID types.ID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM orders
			WHERE buyer_id = $1 AND item_id = $2 AND is_donation
		)`, string(charityID), string(itemID)).Scan(&exists)
	return exists, err
}

// OtherCharities lists every charity account except the one given, for the
// claimed-batch broadcast.
func (s *Store) OtherCharities(ctx context.Context, exclude types.ID) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id FROM users WHERE role = 'charity' AND id <> $1`, string(exclude))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ID
	for rows.Next() {
		var id types.ID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
