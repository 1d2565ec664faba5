// README: Order lifecycle: atomic creation with delivery materialization and
// item claim, seller confirmation with best-effort driver assignment, and
// buyer cancellation that releases the item.
package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rewear/internal/modules/address"
	"rewear/internal/modules/delivery"
	"rewear/internal/modules/item"
	"rewear/internal/notify"
	"rewear/internal/types"
)

var (
	ErrNotFound        = errors.New("order not found")
	ErrInvalidState    = errors.New("invalid order state for this operation")
	ErrForbidden       = errors.New("actor not allowed to act on this order")
	ErrOwnItem         = errors.New("cannot order your own item")
	ErrItemUnavailable = errors.New("item is not available")
	ErrAddressNotOwned = errors.New("delivery address does not belong to the buyer")
)

// Deliveries is the slice of the delivery lifecycle the order manager drives.
// *delivery.Service satisfies it; tests substitute a stub.
type Deliveries interface {
	CreateForOrder(ctx context.Context, tx pgx.Tx, spec delivery.CreateSpec) (*delivery.Delivery, error)
	CancelForOrder(ctx context.Context, tx pgx.Tx, orderID types.ID, reason string, actor types.Actor) error
	AutoAssign(ctx context.Context, orderID types.ID) (*delivery.Delivery, error)
}

type Service struct {
	db         *pgxpool.Pool
	store      *Store
	items      *item.Store
	addresses  *address.Store
	deliveries Deliveries
	notifier   notify.Notifier
}

func NewService(db *pgxpool.Pool, store *Store, items *item.Store, addresses *address.Store,
	deliveries Deliveries, notifier notify.Notifier) *Service {
	return &Service{
		db:         db,
		store:      store,
		items:      items,
		addresses:  addresses,
		deliveries: deliveries,
		notifier:   notifier,
	}
}

type CreateCommand struct {
	Actor             types.Actor
	ItemID            types.ID
	DeliveryAddressID types.ID
	// QuotedFee is the fee the client saw; informational only, the
	// authoritative fee is recomputed inside the transaction.
	QuotedFee types.Money
	// Donation marks a charity claim: price and delivery fee are forced to
	// zero and the item transitions straight to donated.
	Donation bool
}

// Create places an order. One transaction covers the order row, the priced
// delivery, the item claim and the order number allocation; any failure rolls
// the whole thing back.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Order, error) {
	var out *Order
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		it, err := s.items.GetForUpdate(ctx, tx, cmd.ItemID)
		if err != nil {
			return err
		}
		if it.Deleted() {
			return item.ErrNotFound
		}
		if it.Status != item.StatusAvailable {
			return ErrItemUnavailable
		}
		if it.SellerID == cmd.Actor.ID {
			return ErrOwnItem
		}
		if it.IsDonation != cmd.Donation {
			return ErrItemUnavailable
		}

		dropAddr, err := s.addresses.Get(ctx, cmd.DeliveryAddressID)
		if err != nil {
			return err
		}
		if dropAddr.UserID != cmd.Actor.ID {
			return ErrAddressNotOwned
		}
		pickupAddr, err := s.addresses.Get(ctx, it.PickupAddressID)
		if err != nil {
			return err
		}

		now := time.Now()
		number, err := s.store.NextOrderNumber(ctx, tx, now)
		if err != nil {
			return fmt.Errorf("allocate order number: %w", err)
		}

		var price types.Money
		if !cmd.Donation && it.Price != nil {
			price = *it.Price
		}

		o := &Order{
			ID:                types.NewID(),
			OrderNumber:       number,
			BuyerID:           cmd.Actor.ID,
			SellerID:          it.SellerID,
			ItemID:            it.ID,
			DeliveryAddressID: dropAddr.ID,
			IsDonation:        cmd.Donation,
			ItemPrice:         price,
			Status:            StatusPending,
			PaymentMethod:     "cod",
			PaymentStatus:     PaymentPending,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := s.store.Create(ctx, tx, o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		d, err := s.deliveries.CreateForOrder(ctx, tx, delivery.CreateSpec{
			OrderID:           o.ID,
			PickupAddressID:   pickupAddr.ID,
			DeliveryAddressID: dropAddr.ID,
			Pickup:            pickupAddr.Point,
			Dropoff:           dropAddr.Point,
			FreeDelivery:      cmd.Donation,
		})
		if err != nil {
			return err
		}
		o.DeliveryFee = d.Fee
		o.Total = price.Add(d.Fee)
		if err := s.store.SetDeliveryFee(ctx, tx, o.ID, o.DeliveryFee, o.Total); err != nil {
			return err
		}

		// Donation batches skip seller confirmation and transition at once.
		if cmd.Donation {
			err = s.items.MarkDonated(ctx, tx, it.ID, now)
		} else {
			err = s.items.MarkPending(ctx, tx, it.ID, now)
		}
		if err != nil {
			return err
		}

		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	notify.Fire(ctx, s.notifier, notify.Event{
		Type:      notify.EventOrderPlaced,
		Recipient: out.BuyerID,
		OrderID:   out.ID,
		ItemID:    out.ItemID,
		Message:   fmt.Sprintf("order %s placed", out.OrderNumber),
	})
	notify.Fire(ctx, s.notifier, notify.Event{
		Type:      notify.EventOrderPlaced,
		Recipient: out.SellerID,
		OrderID:   out.ID,
		ItemID:    out.ItemID,
		Message:   fmt.Sprintf("your item received order %s", out.OrderNumber),
	})
	return out, nil
}

type ConfirmCommand struct {
	OrderID types.ID
	Actor   types.Actor
}

// Confirm is the seller accepting a pending order. Auto driver assignment is
// attempted afterwards, best effort: no available driver leaves the delivery
// pending and the order confirmed.
func (s *Service) Confirm(ctx context.Context, cmd ConfirmCommand) (*Order, error) {
	var out *Order
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		o, err := s.store.GetForUpdate(ctx, tx, cmd.OrderID)
		if err != nil {
			return err
		}
		if o.SellerID != cmd.Actor.ID {
			return ErrForbidden
		}
		if !CanTransition(o.Status, StatusConfirmed) {
			return ErrInvalidState
		}

		now := time.Now()
		if err := s.store.MarkConfirmed(ctx, tx, o.ID, now); err != nil {
			return err
		}
		o.Status = StatusConfirmed
		o.ConfirmedAt = &now
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.deliveries.AutoAssign(ctx, out.ID); err != nil {
		log.Printf("order %s: auto assign: %v", out.OrderNumber, err)
	}

	notify.Fire(ctx, s.notifier, notify.Event{
		Type:      notify.EventOrderConfirmed,
		Recipient: out.BuyerID,
		OrderID:   out.ID,
		Message:   fmt.Sprintf("order %s confirmed by the seller", out.OrderNumber),
	})
	return out, nil
}

type CancelCommand struct {
	OrderID types.ID
	Reason  string
	Actor   types.Actor
}

// Cancel aborts a pending or confirmed order. The item returns to the
// marketplace and the attached delivery is cancelled in the same transaction.
// Once the driver has picked the item up the order is in_delivery and can no
// longer be cancelled.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Order, error) {
	var out *Order
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		o, err := s.store.GetForUpdate(ctx, tx, cmd.OrderID)
		if err != nil {
			return err
		}
		if o.BuyerID != cmd.Actor.ID {
			return ErrForbidden
		}
		if !CanTransition(o.Status, StatusCancelled) {
			return ErrInvalidState
		}

		if err := s.deliveries.CancelForOrder(ctx, tx, o.ID, cmd.Reason, cmd.Actor); err != nil {
			return err
		}
		if err := s.items.Release(ctx, tx, o.ItemID); err != nil {
			return err
		}

		now := time.Now()
		if err := s.store.MarkCancelled(ctx, tx, o.ID, cmd.Reason, now); err != nil {
			return err
		}
		o.Status = StatusCancelled
		o.CancelReason = &cmd.Reason
		o.CancelledAt = &now
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	notify.Fire(ctx, s.notifier, notify.Event{
		Type:      notify.EventOrderCancelled,
		Recipient: out.SellerID,
		OrderID:   out.ID,
		ItemID:    out.ItemID,
		Message:   fmt.Sprintf("order %s was cancelled: %s", out.OrderNumber, cmd.Reason),
	})
	return out, nil
}

// Get returns the order if the actor is its buyer, its seller, or an admin.
func (s *Service) Get(ctx context.Context, id types.ID, actor types.Actor) (*Order, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.ID != o.BuyerID && actor.ID != o.SellerID {
		return nil, ErrForbidden
	}
	return o, nil
}

func (s *Service) ListMine(ctx context.Context, actor types.Actor, limit, offset int) ([]*Order, error) {
	limit, offset = clampPage(limit, offset)
	return s.store.ListByBuyer(ctx, actor.ID, limit, offset)
}

func (s *Service) ListAsSeller(ctx context.Context, actor types.Actor, limit, offset int) ([]*Order, error) {
	limit, offset = clampPage(limit, offset)
	return s.store.ListBySeller(ctx, actor.ID, limit, offset)
}

func (s *Service) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
