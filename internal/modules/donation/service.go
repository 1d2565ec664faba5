// README: Donation workflow on top of the order lifecycle: zero-price claims
// with duplicate suppression, race-loser broadcast, distribution annotation.
package donation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"rewear/internal/modules/item"
	"rewear/internal/modules/order"
	"rewear/internal/notify"
	"rewear/internal/types"
)

var (
	ErrNotCharity         = errors.New("actor is not a charity")
	ErrNotDonation        = errors.New("item is not a donation batch")
	ErrAlreadyClaimed     = errors.New("charity already claimed this item")
	ErrNotEligible        = errors.New("donation order is not completed yet")
	ErrAlreadyDistributed = errors.New("donation already marked as distributed")
)

type Service struct {
	db       *pgxpool.Pool
	store    *Store
	items    *item.Store
	orders   *order.Service
	orderSt  *order.Store
	notifier notify.Notifier
}

func NewService(db *pgxpool.Pool, store *Store, items *item.Store,
	orders *order.Service, orderStore *order.Store, notifier notify.Notifier) *Service {
	return &Service{
		db:       db,
		store:    store,
		items:    items,
		orders:   orders,
		orderSt:  orderStore,
		notifier: notifier,
	}
}

type AcceptCommand struct {
	ItemID            types.ID
	DeliveryAddressID types.ID
	Actor             types.Actor
}

// Accept claims a donation batch for a charity: a zero-price, free-delivery
// order through the regular lifecycle. After the claim commits, every other
// charity is told the batch is gone.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) (*order.Order, error) {
	if !cmd.Actor.Is(types.RoleCharity) {
		return nil, ErrNotCharity
	}

	it, err := s.items.Get(ctx, cmd.ItemID)
	if err != nil {
		return nil, err
	}
	if !it.IsDonation {
		return nil, ErrNotDonation
	}
	claimed, err := s.store.HasClaim(ctx, cmd.Actor.ID, cmd.ItemID)
	if err != nil {
		return nil, err
	}
	if claimed {
		return nil, ErrAlreadyClaimed
	}

	o, err := s.orders.Create(ctx, order.CreateCommand{
		Actor:             cmd.Actor,
		ItemID:            cmd.ItemID,
		DeliveryAddressID: cmd.DeliveryAddressID,
		Donation:          true,
	})
	if err != nil {
		// two claims by the same charity can slip past HasClaim concurrently;
		// the unique index catches the loser
		if isDuplicateClaim(err) {
			return nil, ErrAlreadyClaimed
		}
		return nil, err
	}

	s.broadcastClaimed(ctx, cmd.Actor.ID, it)

	notify.Fire(ctx, s.notifier, notify.Event{
		Type:      notify.EventDonationAccepted,
		Recipient: it.SellerID,
		OrderID:   o.ID,
		ItemID:    it.ID,
		Message:   fmt.Sprintf("your donation %q was accepted by a charity", it.Title),
	})
	return o, nil
}

func isDuplicateClaim(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == "23505" &&
		pgErr.ConstraintName == "uq_orders_donation_claim"
}

// broadcastClaimed tells the losing charities the batch is no longer
// available. Best effort and concurrent; a failed send is logged and the rest
// still go out.
func (s *Service) broadcastClaimed(ctx context.Context, winner types.ID, it *item.Item) {
	if s.notifier == nil {
		return
	}
	others, err := s.store.OtherCharities(ctx, winner)
	if err != nil {
		log.Printf("donation %s: list charities: %v", it.ID, err)
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, charityID := range others {
		g.Go(func() error {
			notify.Fire(ctx, s.notifier, notify.Event{
				Type:      notify.EventDonationUnavailable,
				Recipient: charityID,
				ItemID:    it.ID,
				Message:   fmt.Sprintf("donation %q has been claimed by another charity", it.Title),
			})
			return nil
		})
	}
	_ = g.Wait()
}

type DistributeCommand struct {
	OrderID      types.ID
	PeopleHelped int
	Notes        string
	Actor        types.Actor
}

// MarkDistributed is the charity's terminal annotation on a completed
// donation order. Single use: a second call fails instead of overwriting the
// first report.
func (s *Service) MarkDistributed(ctx context.Context, cmd DistributeCommand) (*order.Order, error) {
	if !cmd.Actor.Is(types.RoleCharity) {
		return nil, ErrNotCharity
	}
	if cmd.PeopleHelped <= 0 {
		return nil, fmt.Errorf("%w: people_helped must be positive", ErrNotEligible)
	}

	var out *order.Order
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		o, err := s.orderSt.GetForUpdate(ctx, tx, cmd.OrderID)
		if err != nil {
			return err
		}
		if o.BuyerID != cmd.Actor.ID {
			return order.ErrForbidden
		}
		if !o.IsDonation {
			return ErrNotDonation
		}
		if o.Status != order.StatusCompleted {
			return ErrNotEligible
		}

		now := time.Now()
		updated, err := s.orderSt.MarkDistributed(ctx, tx, o.ID, cmd.PeopleHelped, cmd.Notes, now)
		if err != nil {
			return err
		}
		if !updated {
			return ErrAlreadyDistributed
		}

		o.DistributedAt = &now
		o.PeopleHelped = &cmd.PeopleHelped
		o.DistributionNotes = &cmd.Notes
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	notify.Fire(ctx, s.notifier, notify.Event{
		Type:      notify.EventDonationDistributed,
		Recipient: out.SellerID,
		OrderID:   out.ID,
		ItemID:    out.ItemID,
		Message:   fmt.Sprintf("your donation reached %d people", cmd.PeopleHelped),
	})
	return out, nil
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
