// README: Delivery lifecycle: creation with a priced route, driver assignment,
// pickup, completion, cancellation with replacement. Every transition runs in
// one transaction together with the order/item writes it implies.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rewear/internal/maps"
	"rewear/internal/modules/driver"
	"rewear/internal/modules/item"
	"rewear/internal/modules/pricing"
	"rewear/internal/notify"
	"rewear/internal/types"
)

var (
	ErrNotFound          = errors.New("delivery not found")
	ErrInvalidState      = errors.New("invalid delivery state for this operation")
	ErrForbidden         = errors.New("actor not allowed to act on this delivery")
	ErrAlreadyPickedUp   = errors.New("delivery already picked up")
	ErrDriverNotApproved = errors.New("driver application not approved")
	ErrDriverAtCapacity  = errors.New("driver at concurrent delivery capacity")
)

// MaxActiveDeliveries caps how many deliveries a driver may carry at once.
const MaxActiveDeliveries = 3

// Router computes the driving route a delivery is priced on.
type Router interface {
	ComputeRoute(ctx context.Context, origin, dest types.Point) (maps.Route, error)
}

// DriverSelector picks a driver for auto-assignment. Implementations run
// inside the assignment transaction and must lock what they return.
type DriverSelector interface {
	Pick(ctx context.Context, tx pgx.Tx) (types.ID, error)
}

// FirstAvailableSelector assigns the longest-waiting approved driver with no
// active deliveries.
type FirstAvailableSelector struct {
	Drivers *driver.Store
}

func (s FirstAvailableSelector) Pick(ctx context.Context, tx pgx.Tx) (types.ID, error) {
	return s.Drivers.FirstAvailable(ctx, tx)
}

type Service struct {
	db       *pgxpool.Pool
	store    *Store
	drivers  *driver.Store
	items    *item.Store
	selector DriverSelector
	router   Router
	notifier notify.Notifier
}

func NewService(db *pgxpool.Pool, store *Store, drivers *driver.Store, items *item.Store,
	selector DriverSelector, router Router, notifier notify.Notifier) *Service {
	return &Service{
		db:       db,
		store:    store,
		drivers:  drivers,
		items:    items,
		selector: selector,
		router:   router,
		notifier: notifier,
	}
}

// CreateSpec describes the delivery a new order needs.
type CreateSpec struct {
	OrderID           types.ID
	PickupAddressID   types.ID
	DeliveryAddressID types.ID
	Pickup            types.Point
	Dropoff           types.Point
	FreeDelivery      bool
}

// CreateForOrder prices a route and inserts a pending delivery inside the
// caller's transaction. Coordinate validation errors surface to the caller;
// provider outages do not, the route degrades to the haversine estimate.
func (s *Service) CreateForOrder(ctx context.Context, tx pgx.Tx, spec CreateSpec) (*Delivery, error) {
	route, err := s.router.ComputeRoute(ctx, spec.Pickup, spec.Dropoff)
	if err != nil {
		return nil, err
	}
	quote := pricing.QuoteRoute(route)

	now := time.Now()
	d := &Delivery{
		ID:                types.NewID(),
		OrderID:           spec.OrderID,
		PickupAddressID:   spec.PickupAddressID,
		DeliveryAddressID: spec.DeliveryAddressID,
		Pickup:            spec.Pickup,
		Dropoff:           spec.Dropoff,
		DistanceKm:        quote.DistanceKm,
		FallbackDistance:  quote.Fallback,
		Fee:               quote.Fee,
		DriverEarning:     quote.DriverEarning,
		PlatformFee:       quote.PlatformFee,
		Status:            StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if spec.FreeDelivery {
		d.Fee = types.USD(0)
		d.DriverEarning = types.USD(0)
		d.PlatformFee = types.USD(0)
	}

	if err := s.store.Create(ctx, tx, d); err != nil {
		return nil, fmt.Errorf("create delivery: %w", err)
	}
	if err := s.store.AppendEvent(ctx, tx, &Event{
		DeliveryID: d.ID,
		FromStatus: StatusNone,
		ToStatus:   StatusPending,
		ActorType:  "system",
		CreatedAt:  now,
	}); err != nil {
		return nil, err
	}
	return d, nil
}

type AssignCommand struct {
	DeliveryID types.ID
	DriverID   *types.ID // nil means auto-select
	Actor      types.Actor
}

// AssignDriver moves a pending delivery to assigned. Manual assignment checks
// the named driver's approval and capacity under a row lock; auto assignment
// delegates to the selector.
func (s *Service) AssignDriver(ctx context.Context, cmd AssignCommand) (*Delivery, error) {
	if !cmd.Actor.IsAdmin() {
		return nil, ErrForbidden
	}

	var out *Delivery
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		d, err := s.store.GetForUpdate(ctx, tx, cmd.DeliveryID)
		if err != nil {
			return err
		}
		if !CanTransition(d.Status, StatusAssigned) {
			return ErrInvalidState
		}

		var driverID types.ID
		if cmd.DriverID != nil {
			app, err := s.drivers.GetForUpdate(ctx, tx, *cmd.DriverID)
			if err != nil {
				return err
			}
			if !app.Approved() {
				return ErrDriverNotApproved
			}
			active, err := s.drivers.CountActive(ctx, tx, *cmd.DriverID)
			if err != nil {
				return err
			}
			if active >= MaxActiveDeliveries {
				return ErrDriverAtCapacity
			}
			driverID = *cmd.DriverID
		} else {
			driverID, err = s.selector.Pick(ctx, tx)
			if err != nil {
				return err
			}
		}

		now := time.Now()
		if err := s.store.MarkAssigned(ctx, tx, d.ID, driverID, now); err != nil {
			return err
		}
		if err := s.store.AppendEvent(ctx, tx, &Event{
			DeliveryID: d.ID,
			FromStatus: d.Status,
			ToStatus:   StatusAssigned,
			ActorType:  "admin",
			ActorID:    &cmd.Actor.ID,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		d.Status = StatusAssigned
		d.DriverID = &driverID
		d.AssignedAt = &now
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	notify.Fire(ctx, s.notifier, notify.Event{
		Type:       notify.EventDeliveryAssigned,
		Recipient:  *out.DriverID,
		DeliveryID: out.ID,
		OrderID:    out.OrderID,
		Message:    "a delivery has been assigned to you",
	})
	return out, nil
}

// AutoAssign tries to assign a driver to the order's pending delivery.
// Best effort: called right after order confirmation, and no-available-driver
// leaves the delivery pending for a later manual assignment.
func (s *Service) AutoAssign(ctx context.Context, orderID types.ID) (*Delivery, error) {
	var out *Delivery
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		d, err := s.store.ActiveByOrderForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if d.Status != StatusPending {
			return ErrInvalidState
		}
		driverID, err := s.selector.Pick(ctx, tx)
		if err != nil {
			return err
		}

		now := time.Now()
		if err := s.store.MarkAssigned(ctx, tx, d.ID, driverID, now); err != nil {
			return err
		}
		if err := s.store.AppendEvent(ctx, tx, &Event{
			DeliveryID: d.ID,
			FromStatus: StatusPending,
			ToStatus:   StatusAssigned,
			ActorType:  "system",
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		d.Status = StatusAssigned
		d.DriverID = &driverID
		d.AssignedAt = &now
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	notify.Fire(ctx, s.notifier, notify.Event{
		Type:       notify.EventDeliveryAssigned,
		Recipient:  *out.DriverID,
		DeliveryID: out.ID,
		OrderID:    out.OrderID,
		Message:    "a delivery has been assigned to you",
	})
	return out, nil
}

type PickupCommand struct {
	DeliveryID types.ID
	Notes      string
	Actor      types.Actor
}

// Pickup is the driver confirming possession of the item. It flips the
// delivery to in_transit and the parent order to in_delivery atomically.
func (s *Service) Pickup(ctx context.Context, cmd PickupCommand) (*Delivery, error) {
	var out *Delivery
	var ref orderRef
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		d, err := s.store.GetForUpdate(ctx, tx, cmd.DeliveryID)
		if err != nil {
			return err
		}
		if d.DriverID == nil || *d.DriverID != cmd.Actor.ID {
			return ErrForbidden
		}
		if !CanTransition(d.Status, StatusInTransit) {
			return ErrInvalidState
		}

		ref, err = s.store.orderRef(ctx, tx, d.OrderID)
		if err != nil {
			return err
		}

		now := time.Now()
		notes := mergeNotes(d.Notes, cmd.Notes)
		if err := s.store.MarkInTransit(ctx, tx, d.ID, notes, now); err != nil {
			return err
		}
		if err := s.store.setOrderInDelivery(ctx, tx, d.OrderID, now); err != nil {
			return err
		}
		if err := s.store.AppendEvent(ctx, tx, &Event{
			DeliveryID: d.ID,
			FromStatus: d.Status,
			ToStatus:   StatusInTransit,
			ActorType:  "driver",
			ActorID:    &cmd.Actor.ID,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		d.Status = StatusInTransit
		d.Notes = notes
		d.PickedUpAt = &now
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	notify.Fire(ctx, s.notifier, notify.Event{
		Type:       notify.EventDeliveryPickedUp,
		Recipient:  ref.BuyerID,
		DeliveryID: out.ID,
		OrderID:    out.OrderID,
		Message:    "your order has been picked up and is on its way",
	})
	notify.Fire(ctx, s.notifier, notify.Event{
		Type:       notify.EventDeliveryPickedUp,
		Recipient:  ref.SellerID,
		DeliveryID: out.ID,
		OrderID:    out.OrderID,
		Message:    "the driver has picked up your item",
	})
	return out, nil
}

type DeliverCommand struct {
	DeliveryID types.ID
	Notes      string
	Actor      types.Actor
}

// Deliver completes the delivery: order becomes completed and paid, the item
// is final-sold, and the driver's earning is credited, all in one transaction.
func (s *Service) Deliver(ctx context.Context, cmd DeliverCommand) (*Delivery, error) {
	var out *Delivery
	var ref orderRef
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		d, err := s.store.GetForUpdate(ctx, tx, cmd.DeliveryID)
		if err != nil {
			return err
		}
		if d.DriverID == nil || *d.DriverID != cmd.Actor.ID {
			return ErrForbidden
		}
		if !CanTransition(d.Status, StatusDelivered) {
			return ErrInvalidState
		}

		ref, err = s.store.orderRef(ctx, tx, d.OrderID)
		if err != nil {
			return err
		}

		now := time.Now()
		notes := mergeNotes(d.Notes, cmd.Notes)
		if err := s.store.MarkDelivered(ctx, tx, d.ID, notes, now); err != nil {
			return err
		}
		if err := s.store.setOrderCompleted(ctx, tx, d.OrderID, now); err != nil {
			return err
		}
		// donated items keep their donated status; only sales flip to sold
		if !ref.IsDonation {
			if err := s.items.MarkSold(ctx, tx, ref.ItemID, now); err != nil {
				return err
			}
		}
		if d.DriverEarning.Cents > 0 {
			if err := s.store.InsertEarning(ctx, tx, *d.DriverID, d.ID, d.DriverEarning); err != nil {
				return err
			}
		}
		if err := s.store.AppendEvent(ctx, tx, &Event{
			DeliveryID: d.ID,
			FromStatus: d.Status,
			ToStatus:   StatusDelivered,
			ActorType:  "driver",
			ActorID:    &cmd.Actor.ID,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		d.Status = StatusDelivered
		d.Notes = notes
		d.DeliveredAt = &now
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	notify.Fire(ctx, s.notifier, notify.Event{
		Type:       notify.EventDeliveryDelivered,
		Recipient:  ref.BuyerID,
		DeliveryID: out.ID,
		OrderID:    out.OrderID,
		Message:    "your order has been delivered",
	})
	notify.Fire(ctx, s.notifier, notify.Event{
		Type:       notify.EventDeliveryDelivered,
		Recipient:  ref.SellerID,
		DeliveryID: out.ID,
		OrderID:    out.OrderID,
		Message:    "your item has been delivered to the buyer",
	})
	return out, nil
}

type CancelCommand struct {
	DeliveryID types.ID
	Reason     string
	Actor      types.Actor
}

// Cancel aborts a delivery before pickup. The parent order reopens, the item
// returns to the marketplace, and a fresh pending delivery replaces the
// cancelled one so assignment can start over.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Delivery, error) {
	var out *Delivery
	var ref orderRef
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		d, err := s.store.GetForUpdate(ctx, tx, cmd.DeliveryID)
		if err != nil {
			return err
		}
		ref, err = s.store.orderRef(ctx, tx, d.OrderID)
		if err != nil {
			return err
		}
		if !canCancel(cmd.Actor, d, ref) {
			return ErrForbidden
		}
		if d.PickedUpAt != nil {
			return ErrAlreadyPickedUp
		}
		if !CanTransition(d.Status, StatusCancelled) {
			return ErrInvalidState
		}

		now := time.Now()
		if err := s.store.MarkCancelled(ctx, tx, d.ID, cmd.Reason, now); err != nil {
			return err
		}
		if err := s.store.setOrderReopened(ctx, tx, d.OrderID, now); err != nil {
			return err
		}
		// pickup never happened, so the item safely re-enters the marketplace
		if err := s.items.Release(ctx, tx, ref.ItemID); err != nil {
			return err
		}

		replacement := &Delivery{
			ID:                types.NewID(),
			OrderID:           d.OrderID,
			PickupAddressID:   d.PickupAddressID,
			DeliveryAddressID: d.DeliveryAddressID,
			Pickup:            d.Pickup,
			Dropoff:           d.Dropoff,
			DistanceKm:        d.DistanceKm,
			FallbackDistance:  d.FallbackDistance,
			Fee:               d.Fee,
			DriverEarning:     d.DriverEarning,
			PlatformFee:       d.PlatformFee,
			Status:            StatusPending,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := s.store.Create(ctx, tx, replacement); err != nil {
			return err
		}
		if err := s.store.SetSupersededBy(ctx, tx, d.ID, replacement.ID); err != nil {
			return err
		}
		if err := s.store.AppendEvent(ctx, tx, &Event{
			DeliveryID: d.ID,
			FromStatus: d.Status,
			ToStatus:   StatusCancelled,
			ActorType:  actorType(cmd.Actor, d, ref),
			ActorID:    &cmd.Actor.ID,
			CreatedAt:  now,
		}); err != nil {
			return err
		}
		if err := s.store.AppendEvent(ctx, tx, &Event{
			DeliveryID: replacement.ID,
			FromStatus: StatusNone,
			ToStatus:   StatusPending,
			ActorType:  "system",
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		d.Status = StatusCancelled
		d.CancelReason = &cmd.Reason
		d.CancelledAt = &now
		d.SupersededBy = &replacement.ID
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	notify.Fire(ctx, s.notifier, notify.Event{
		Type:       notify.EventDeliveryCancelled,
		Recipient:  ref.BuyerID,
		DeliveryID: out.ID,
		OrderID:    out.OrderID,
		Message:    "the delivery for your order was cancelled and will be reassigned",
	})
	return out, nil
}

// CancelForOrder cancels the order's active delivery inside the caller's
// transaction when the order itself is being cancelled. No replacement is
// spawned. A missing active delivery is not an error.
func (s *Service) CancelForOrder(ctx context.Context, tx pgx.Tx, orderID types.ID, reason string, actor types.Actor) error {
	d, err := s.store.ActiveByOrderForUpdate(ctx, tx, orderID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if d.PickedUpAt != nil {
		return ErrAlreadyPickedUp
	}
	if !CanTransition(d.Status, StatusCancelled) {
		return ErrInvalidState
	}

	now := time.Now()
	if err := s.store.MarkCancelled(ctx, tx, d.ID, reason, now); err != nil {
		return err
	}
	return s.store.AppendEvent(ctx, tx, &Event{
		DeliveryID: d.ID,
		FromStatus: d.Status,
		ToStatus:   StatusCancelled,
		ActorType:  "buyer",
		ActorID:    &actor.ID,
		CreatedAt:  now,
	})
}

// Get returns the delivery if the actor is a party to it: assigned driver,
// order buyer or seller, or an admin.
func (s *Service) Get(ctx context.Context, id types.ID, actor types.Actor) (*Delivery, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		return d, nil
	}
	if d.DriverID != nil && *d.DriverID == actor.ID {
		return d, nil
	}
	var buyerID, sellerID types.ID
	err = s.db.QueryRow(ctx, `SELECT buyer_id, seller_id FROM orders WHERE id = $1`,
		string(d.OrderID)).Scan(&buyerID, &sellerID)
	if err != nil {
		return nil, err
	}
	if actor.ID != buyerID && actor.ID != sellerID {
		return nil, ErrForbidden
	}
	return d, nil
}

func (s *Service) ListByDriver(ctx context.Context, actor types.Actor, limit, offset int) ([]*Delivery, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListByDriver(ctx, actor.ID, limit, offset)
}

// Quote prices a route without persisting anything.
func (s *Service) Quote(ctx context.Context, origin, dest types.Point) (pricing.Quote, error) {
	route, err := s.router.ComputeRoute(ctx, origin, dest)
	if err != nil {
		return pricing.Quote{}, err
	}
	return pricing.QuoteRoute(route), nil
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

func canCancel(actor types.Actor, d *Delivery, ref orderRef) bool {
	if actor.IsAdmin() {
		return true
	}
	if d.DriverID != nil && *d.DriverID == actor.ID {
		return true
	}
	return actor.ID == ref.BuyerID
}

func actorType(actor types.Actor, d *Delivery, ref orderRef) string {
	switch {
	case actor.IsAdmin():
		return "admin"
	case d.DriverID != nil && *d.DriverID == actor.ID:
		return "driver"
	case actor.ID == ref.BuyerID:
		return "buyer"
	default:
		return "system"
	}
}

func mergeNotes(existing, added string) string {
	if added == "" {
		return existing
	}
	if existing == "" {
		return added
	}
	return existing + "\n" + added
}
