// README: Delivery store backed by PostgreSQL, including the order-status
// sync writes that keep the aggregate roots consistent inside one transaction.
package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rewear/internal/types"
)

const deliveryColumns = `
	id, order_id, driver_id, pickup_address_id, delivery_address_id,
	pickup_lat, pickup_lng, delivery_lat, delivery_lng,
	distance_km, fallback_distance,
	delivery_fee_cents, driver_earning_cents, platform_fee_cents,
	status, notes, cancel_reason, superseded_by,
	assigned_at, picked_up_at, delivered_at, cancelled_at, created_at, updated_at`

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, tx pgx.Tx, d *Delivery) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO deliveries (
			id, order_id, driver_id, pickup_address_id, delivery_address_id,
			pickup_lat, pickup_lng, delivery_lat, delivery_lng,
			distance_km, fallback_distance,
			delivery_fee_cents, driver_earning_cents, platform_fee_cents,
			status, notes, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11,
			$12, $13, $14,
			$15, $16, $17, $17
		)`,
		string(d.ID), string(d.OrderID), idPtr(d.DriverID),
		string(d.PickupAddressID), string(d.DeliveryAddressID),
		d.Pickup.Lat, d.Pickup.Lng, d.Dropoff.Lat, d.Dropoff.Lng,
		d.DistanceKm, d.FallbackDistance,
		d.Fee.Cents, d.DriverEarning.Cents, d.PlatformFee.Cents,
		string(d.Status), d.Notes, d.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Delivery, error) {
	row := s.db.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, string(id))
	return scanDelivery(row)
}

func (s *Store) GetForUpdate(ctx context.Context, tx pgx.Tx, id types.ID) (*Delivery, error) {
	row := tx.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1 FOR UPDATE`, string(id))
	return scanDelivery(row)
}

// ActiveByOrderForUpdate locks the single non-cancelled delivery of an order.
func (s *Store) ActiveByOrderForUpdate(ctx context.Context, tx pgx.Tx, orderID types.ID) (*Delivery, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+deliveryColumns+` FROM deliveries
		WHERE order_id = $1 AND status <> 'cancelled'
		FOR UPDATE`, string(orderID))
	return scanDelivery(row)
}

func (s *Store) ListByDriver(ctx context.Context, driverID types.ID, limit, offset int) ([]*Delivery, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+deliveryColumns+` FROM deliveries
		WHERE driver_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, string(driverID), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) MarkAssigned(ctx context.Context, tx pgx.Tx, id, driverID types.ID, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE deliveries
		SET driver_id = $2, status = 'assigned', assigned_at = $3, updated_at = $3
		WHERE id = $1`,
		string(id), string(driverID), now)
	return err
}

func (s *Store) MarkInTransit(ctx context.Context, tx pgx.Tx, id types.ID, notes string, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE deliveries
		SET status = 'in_transit', picked_up_at = $3, notes = $2, updated_at = $3
		WHERE id = $1`,
		string(id), notes, now)
	return err
}

func (s *Store) MarkDelivered(ctx context.Context, tx pgx.Tx, id types.ID, notes string, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE deliveries
		SET status = 'delivered', delivered_at = $3, notes = $2, updated_at = $3
		WHERE id = $1`,
		string(id), notes, now)
	return err
}

func (s *Store) MarkCancelled(ctx context.Context, tx pgx.Tx, id types.ID, reason string, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE deliveries
		SET status = 'cancelled', cancel_reason = $2, cancelled_at = $3, updated_at = $3
		WHERE id = $1`,
		string(id), reason, now)
	return err
}

// SetSupersededBy links a cancelled delivery to its replacement. The weak
// reference keeps the audit trail navigable without reusing primary keys.
func (s *Store) SetSupersededBy(ctx context.Context, tx pgx.Tx, id, replacementID types.ID) error {
	_, err := tx.Exec(ctx, `UPDATE deliveries SET superseded_by = $2 WHERE id = $1`,
		string(id), string(replacementID))
	return err
}

func (s *Store) AppendEvent(ctx context.Context, tx pgx.Tx, e *Event) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO delivery_events (delivery_id, from_status, to_status, actor_type, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.DeliveryID), string(e.FromStatus), string(e.ToStatus),
		e.ActorType, idPtr(e.ActorID), e.CreatedAt)
	return err
}

// InsertEarning credits the driver's share on completion. Ledger only; COD
// cash settlement happens outside the system.
func (s *Store) InsertEarning(ctx context.Context, tx pgx.Tx, driverID, deliveryID types.ID, amount types.Money) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO driver_earnings (driver_id, delivery_id, amount_cents)
		VALUES ($1, $2, $3)`,
		string(driverID), string(deliveryID), amount.Cents)
	return err
}

// orderRef is the slice of the parent order the delivery transitions need.
type orderRef struct {
	BuyerID    types.ID
	SellerID   types.ID
	ItemID     types.ID
	Status     string
	IsDonation bool
}

func (s *Store) orderRef(ctx context.Context, tx pgx.Tx, orderID types.ID) (orderRef, error) {
	var ref orderRef
	err := tx.QueryRow(ctx, `
		SELECT buyer_id, seller_id, item_id, status, is_donation FROM orders WHERE id = $1`,
		string(orderID)).Scan(&ref.BuyerID, &ref.SellerID, &ref.ItemID, &ref.Status, &ref.IsDonation)
	return ref, err
}

func (s *Store) setOrderInDelivery(ctx context.Context, tx pgx.Tx, orderID types.ID, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE orders SET status = 'in_delivery', updated_at = $2 WHERE id = $1`,
		string(orderID), now)
	return err
}

func (s *Store) setOrderCompleted(ctx context.Context, tx pgx.Tx, orderID types.ID, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = 'completed', payment_status = 'paid', completed_at = $2, updated_at = $2
		WHERE id = $1`,
		string(orderID), now)
	return err
}

// setOrderReopened puts the parent order back to pending after a delivery
// cancellation so it can be reconfirmed and reassigned.
func (s *Store) setOrderReopened(ctx context.Context, tx pgx.Tx, orderID types.ID, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE orders SET status = 'pending', confirmed_at = NULL, updated_at = $2 WHERE id = $1`,
		string(orderID), now)
	return err
}

func scanDelivery(row pgx.Row) (*Delivery, error) {
	var d Delivery
	var driverID, supersededBy, cancelReason *string

	err := row.Scan(
		&d.ID, &d.OrderID, &driverID, &d.PickupAddressID, &d.DeliveryAddressID,
		&d.Pickup.Lat, &d.Pickup.Lng, &d.Dropoff.Lat, &d.Dropoff.Lng,
		&d.DistanceKm, &d.FallbackDistance,
		&d.Fee.Cents, &d.DriverEarning.Cents, &d.PlatformFee.Cents,
		&d.Status, &d.Notes, &cancelReason, &supersededBy,
		&d.AssignedAt, &d.PickedUpAt, &d.DeliveredAt, &d.CancelledAt,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if driverID != nil {
		id := types.ID(*driverID)
		d.DriverID = &id
	}
	if supersededBy != nil {
		id := types.ID(*supersededBy)
		d.SupersededBy = &id
	}
	d.CancelReason = cancelReason
	return &d, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
