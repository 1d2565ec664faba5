// README: Order store backed by PostgreSQL, including day-scoped order numbers.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rewear/internal/types"
)

const orderColumns = `
	id, order_number, buyer_id, seller_id, item_id, delivery_address_id,
	is_donation, item_price_cents, delivery_fee_cents, total_cents,
	status, payment_method, payment_status, cancel_reason,
	confirmed_at, cancelled_at, completed_at,
	distributed_at, distribution_notes, people_helped,
	created_at, updated_at`

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// NextOrderNumber allocates the next sequence for the day via an upsert on
// the counter table. The counter row stays locked until the caller's
// transaction commits, so concurrent creates serialize and never reuse a
// number, cancelled orders included.
func (s *Store) NextOrderNumber(ctx context.Context, tx pgx.Tx, day time.Time) (string, error) {
	var seq int
	err := tx.QueryRow(ctx, `
		INSERT INTO order_day_counters (day, last_seq)
		VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET last_seq = order_day_counters.last_seq + 1
		RETURNING last_seq`, day.Format("2006-01-02")).Scan(&seq)
	if err != nil {
		return "", err
	}
	return FormatOrderNumber(day, seq), nil
}

func (s *Store) Create(ctx context.Context, tx pgx.Tx, o *Order) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO orders (
			id, order_number, buyer_id, seller_id, item_id, delivery_address_id,
			is_donation, item_price_cents, delivery_fee_cents, total_cents,
			status, payment_method, payment_status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14, $14
		)`,
		string(o.ID), o.OrderNumber, string(o.BuyerID), string(o.SellerID),
		string(o.ItemID), string(o.DeliveryAddressID),
		o.IsDonation, o.ItemPrice.Cents, o.DeliveryFee.Cents, o.Total.Cents,
		string(o.Status), o.PaymentMethod, string(o.PaymentStatus), o.CreatedAt,
	)
	return err
}

// SetDeliveryFee records the authoritative fee once the delivery has been
// priced inside the same transaction.
func (s *Store) SetDeliveryFee(ctx context.Context, tx pgx.Tx, id types.ID, fee, total types.Money) error {
	_, err := tx.Exec(ctx, `
		UPDATE orders SET delivery_fee_cents = $2, total_cents = $3 WHERE id = $1`,
		string(id), fee.Cents, total.Cents)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, string(id))
	return scanOrder(row)
}

func (s *Store) GetForUpdate(ctx context.Context, tx pgx.Tx, id types.ID) (*Order, error) {
	row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, string(id))
	return scanOrder(row)
}

func (s *Store) ListByBuyer(ctx context.Context, buyerID types.ID, limit, offset int) ([]*Order, error) {
	return s.list(ctx, `buyer_id`, buyerID, limit, offset)
}

func (s *Store) ListBySeller(ctx context.Context, sellerID types.ID, limit, offset int) ([]*Order, error) {
	return s.list(ctx, `seller_id`, sellerID, limit, offset)
}

func (s *Store) list(ctx context.Context, column string, id types.ID, limit, offset int) ([]*Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE `+column+` = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, string(id), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) MarkConfirmed(ctx context.Context, tx pgx.Tx, id types.ID, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE orders SET status = 'confirmed', confirmed_at = $2, updated_at = $2
		WHERE id = $1`, string(id), now)
	return err
}

func (s *Store) MarkCancelled(ctx context.Context, tx pgx.Tx, id types.ID, reason string, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE orders SET status = 'cancelled', cancel_reason = $2, cancelled_at = $3, updated_at = $3
		WHERE id = $1`, string(id), reason, now)
	return err
}

// MarkDistributed annotates a completed donation order. Guarded by the caller;
// single-use is enforced with the distributed_at IS NULL predicate so two
// concurrent calls cannot both win.
func (s *Store) MarkDistributed(ctx context.Context, tx pgx.Tx, id types.ID, peopleHelped int, notes string, now time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET distributed_at = $2, people_helped = $3, distribution_notes = $4, updated_at = $2
		WHERE id = $1 AND distributed_at IS NULL`,
		string(id), now, peopleHelped, notes)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var cancelReason, distributionNotes *string
	var peopleHelped *int

	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.BuyerID, &o.SellerID, &o.ItemID, &o.DeliveryAddressID,
		&o.IsDonation, &o.ItemPrice.Cents, &o.DeliveryFee.Cents, &o.Total.Cents,
		&o.Status, &o.PaymentMethod, &o.PaymentStatus, &cancelReason,
		&o.ConfirmedAt, &o.CancelledAt, &o.CompletedAt,
		&o.DistributedAt, &distributionNotes, &peopleHelped,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.CancelReason = cancelReason
	o.DistributionNotes = distributionNotes
	o.PeopleHelped = peopleHelped
	return &o, nil
}
