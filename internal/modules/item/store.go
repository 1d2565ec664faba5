// README: Item store backed by PostgreSQL.
package item

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rewear/internal/types"
)

var ErrNotFound = errors.New("item not found")

const itemColumns = `
	id, seller_id, pickup_address_id, title, category, condition, size, gender,
	price_cents, is_donation, donation_quantity, donation_quantity_available,
	status, views, sold_at, created_at, deleted_at`

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Item, error) {
	row := s.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, string(id))
	return scanItem(row)
}

// GetForUpdate locks the item row for the duration of the transaction so
// concurrent purchase/claim attempts serialize on it.
func (s *Store) GetForUpdate(ctx context.Context, tx pgx.Tx, id types.ID) (*Item, error) {
	row := tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1 FOR UPDATE`, string(id))
	return scanItem(row)
}

// MarkPending flips a for-sale item off the marketplace while its order is open.
func (s *Store) MarkPending(ctx context.Context, tx pgx.Tx, id types.ID, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE items SET status = 'pending', sold_at = $2 WHERE id = $1`,
		string(id), now)
	return err
}

// MarkDonated claims a whole donation batch for one order.
func (s *Store) MarkDonated(ctx context.Context, tx pgx.Tx, id types.ID, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE items
		SET status = 'donated', sold_at = $2, donation_quantity_available = 0
		WHERE id = $1`,
		string(id), now)
	return err
}

func (s *Store) MarkSold(ctx context.Context, tx pgx.Tx, id types.ID, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE items SET status = 'sold', sold_at = $2 WHERE id = $1`,
		string(id), now)
	return err
}

// Release puts an item back on the marketplace after a cancellation: status
// available, sold_at cleared, donation quantity restored.
func (s *Store) Release(ctx context.Context, tx pgx.Tx, id types.ID) error {
	_, err := tx.Exec(ctx, `
		UPDATE items
		SET status = 'available', sold_at = NULL,
		    donation_quantity_available = donation_quantity
		WHERE id = $1`,
		string(id))
	return err
}

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	var price, donationQty, donationAvail *int64
	var soldAt, deletedAt *time.Time

	err := row.Scan(
		&it.ID, &it.SellerID, &it.PickupAddressID, &it.Title, &it.Category,
		&it.Condition, &it.Size, &it.Gender,
		&price, &it.IsDonation, &donationQty, &donationAvail,
		&it.Status, &it.Views, &soldAt, &it.CreatedAt, &deletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if price != nil {
		m := types.USD(*price)
		it.Price = &m
	}
	if donationQty != nil {
		n := int(*donationQty)
		it.DonationQuantity = &n
	}
	if donationAvail != nil {
		n := int(*donationAvail)
		it.DonationQuantityAvailable = &n
	}
	it.SoldAt = soldAt
	it.DeletedAt = deletedAt
	return &it, nil
}
