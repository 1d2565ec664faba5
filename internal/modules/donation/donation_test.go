// README: Donation workflow tests (claims, duplicate suppression, distribution).
package donation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"rewear/internal/infra"
	"rewear/internal/maps"
	"rewear/internal/modules/address"
	"rewear/internal/modules/delivery"
	"rewear/internal/modules/driver"
	"rewear/internal/modules/item"
	"rewear/internal/modules/order"
	"rewear/internal/types"
)

type stubRouter struct{}

func (stubRouter) ComputeRoute(context.Context, types.Point, types.Point) (maps.Route, error) {
	return maps.Route{DistanceKm: 10, DurationMin: 18}, nil
}

type fixture struct {
	db       *pgxpool.Pool
	svc      *Service
	delivSvc *delivery.Service
	donor    types.Actor
	charity  types.Actor
	charity2 types.Actor
	driver   types.Actor
	itemID   types.ID
	dropAddr types.ID
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)

	drivers := driver.NewStore(db)
	items := item.NewStore(db)
	addresses := address.NewStore(db)
	delivSvc := delivery.NewService(db, delivery.NewStore(db), drivers, items,
		delivery.FirstAvailableSelector{Drivers: drivers}, stubRouter{}, nil)
	orderStore := order.NewStore(db)
	orders := order.NewService(db, orderStore, items, addresses, delivSvc, nil)
	svc := NewService(db, NewStore(db), items, orders, orderStore, nil)

	f := &fixture{
		db:       db,
		svc:      svc,
		delivSvc: delivSvc,
		donor:    types.Actor{ID: types.NewID(), Role: types.RoleUser},
		charity:  types.Actor{ID: types.NewID(), Role: types.RoleCharity},
		charity2: types.Actor{ID: types.NewID(), Role: types.RoleCharity},
		driver:   types.Actor{ID: types.NewID(), Role: types.RoleDriver},
	}

	mustExec(t, db, `INSERT INTO users (id, name, email, role) VALUES
		($1, 'donor', $1 || '@test', 'user'),
		($2, 'charity one', $2 || '@test', 'charity'),
		($3, 'charity two', $3 || '@test', 'charity'),
		($4, 'driver', $4 || '@test', 'driver')`,
		string(f.donor.ID), string(f.charity.ID), string(f.charity2.ID), string(f.driver.ID))

	pickup := types.NewID()
	f.dropAddr = types.NewID()
	mustExec(t, db, `INSERT INTO addresses (id, user_id, street, city, lat, lng) VALUES
		($1, $2, '1 Donor St', 'Springfield', 40.70, -74.00),
		($3, $4, '2 Charity Ave', 'Springfield', 40.78, -73.97)`,
		string(pickup), string(f.donor.ID), string(f.dropAddr), string(f.charity.ID))

	f.itemID = types.NewID()
	mustExec(t, db, `INSERT INTO items
		(id, seller_id, pickup_address_id, title, category, condition,
		 is_donation, donation_quantity, donation_quantity_available, status)
		VALUES ($1, $2, $3, 'winter coats', 'outerwear', 'good', TRUE, 20, 20, 'available')`,
		string(f.itemID), string(f.donor.ID), string(pickup))

	mustExec(t, db, `INSERT INTO driver_applications (id, user_id, status, reviewed_at)
		VALUES ($1, $2, 'approved', NOW())`, string(types.NewID()), string(f.driver.ID))

	return f
}

func (f *fixture) accept(t *testing.T) *order.Order {
	t.Helper()
	o, err := f.svc.Accept(context.Background(), AcceptCommand{
		ItemID: f.itemID, DeliveryAddressID: f.dropAddr, Actor: f.charity,
	})
	if err != nil {
		t.Fatalf("accept donation: %v", err)
	}
	return o
}

// completeDelivery drives the claimed order through confirm/pickup/deliver so
// distribution becomes legal.
func (f *fixture) completeDelivery(t *testing.T, o *order.Order) {
	t.Helper()
	ctx := context.Background()

	var deliveryID string
	if err := f.db.QueryRow(ctx, `SELECT id FROM deliveries WHERE order_id = $1 AND status <> 'cancelled'`,
		string(o.ID)).Scan(&deliveryID); err != nil {
		t.Fatalf("query delivery: %v", err)
	}
	// donations have no seller confirmation step; push the order along directly
	mustExec(t, f.db, `UPDATE orders SET status = 'confirmed', confirmed_at = NOW() WHERE id = $1`, string(o.ID))
	if _, err := f.delivSvc.AssignDriver(ctx, delivery.AssignCommand{
		DeliveryID: types.ID(deliveryID), DriverID: &f.driver.ID,
		Actor: types.Actor{ID: types.NewID(), Role: types.RoleAdmin},
	}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.delivSvc.Pickup(ctx, delivery.PickupCommand{DeliveryID: types.ID(deliveryID), Actor: f.driver}); err != nil {
		t.Fatalf("pickup: %v", err)
	}
	if _, err := f.delivSvc.Deliver(ctx, delivery.DeliverCommand{DeliveryID: types.ID(deliveryID), Actor: f.driver}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
}

func TestAccept_ZeroPriceOrder(t *testing.T) {
	f := setupFixture(t)
	o := f.accept(t)

	if !o.IsDonation {
		t.Fatal("order not flagged as donation")
	}
	if o.ItemPrice.Cents != 0 || o.DeliveryFee.Cents != 0 || o.Total.Cents != 0 {
		t.Fatalf("money = %d/%d/%d, want all zero", o.ItemPrice.Cents, o.DeliveryFee.Cents, o.Total.Cents)
	}

	var itemStatus string
	var avail int
	if err := f.db.QueryRow(context.Background(),
		`SELECT status, donation_quantity_available FROM items WHERE id = $1`,
		string(f.itemID)).Scan(&itemStatus, &avail); err != nil {
		t.Fatalf("query item: %v", err)
	}
	if itemStatus != "donated" || avail != 0 {
		t.Fatalf("item = %s/%d, want donated/0", itemStatus, avail)
	}
}

func TestAccept_NonCharityRejected(t *testing.T) {
	f := setupFixture(t)

	_, err := f.svc.Accept(context.Background(), AcceptCommand{
		ItemID: f.itemID, DeliveryAddressID: f.dropAddr, Actor: f.donor,
	})
	if !errors.Is(err, ErrNotCharity) {
		t.Fatalf("expected ErrNotCharity, got %v", err)
	}
}

func TestAccept_RegularItemRejected(t *testing.T) {
	f := setupFixture(t)

	regular := types.NewID()
	pickup := types.NewID()
	mustExec(t, f.db, `INSERT INTO addresses (id, user_id, street, city, lat, lng)
		VALUES ($1, $2, 'x', 'x', 40.71, -74.01)`, string(pickup), string(f.donor.ID))
	mustExec(t, f.db, `INSERT INTO items
		(id, seller_id, pickup_address_id, title, category, condition, price_cents, status)
		VALUES ($1, $2, $3, 'shirt', 'tops', 'good', 500, 'available')`,
		string(regular), string(f.donor.ID), string(pickup))

	_, err := f.svc.Accept(context.Background(), AcceptCommand{
		ItemID: regular, DeliveryAddressID: f.dropAddr, Actor: f.charity,
	})
	if !errors.Is(err, ErrNotDonation) {
		t.Fatalf("expected ErrNotDonation, got %v", err)
	}
}

func TestAccept_DuplicateClaimBlocked(t *testing.T) {
	f := setupFixture(t)
	f.accept(t)

	_, err := f.svc.Accept(context.Background(), AcceptCommand{
		ItemID: f.itemID, DeliveryAddressID: f.dropAddr, Actor: f.charity,
	})
	if !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
}

func TestIsDuplicateClaim(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"claim index violation", &pgconn.PgError{Code: "23505", ConstraintName: "uq_orders_donation_claim"}, true},
		{"wrapped claim violation", fmt.Errorf("create order: %w",
			&pgconn.PgError{Code: "23505", ConstraintName: "uq_orders_donation_claim"}), true},
		{"other unique index", &pgconn.PgError{Code: "23505", ConstraintName: "uq_orders_active_item"}, false},
		{"other pg error", &pgconn.PgError{Code: "23503", ConstraintName: "uq_orders_donation_claim"}, false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDuplicateClaim(tt.err); got != tt.want {
				t.Fatalf("isDuplicateClaim = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccept_SecondCharityLosesRace(t *testing.T) {
	f := setupFixture(t)
	f.accept(t)

	addr2 := types.NewID()
	mustExec(t, f.db, `INSERT INTO addresses (id, user_id, street, city, lat, lng)
		VALUES ($1, $2, '3 Charity Blvd', 'Springfield', 40.80, -73.95)`,
		string(addr2), string(f.charity2.ID))

	_, err := f.svc.Accept(context.Background(), AcceptCommand{
		ItemID: f.itemID, DeliveryAddressID: addr2, Actor: f.charity2,
	})
	if !errors.Is(err, order.ErrItemUnavailable) {
		t.Fatalf("expected ErrItemUnavailable, got %v", err)
	}
}

func TestMarkDistributed_SingleUse(t *testing.T) {
	f := setupFixture(t)
	o := f.accept(t)
	f.completeDelivery(t, o)
	ctx := context.Background()

	got, err := f.svc.MarkDistributed(ctx, DistributeCommand{
		OrderID: o.ID, PeopleHelped: 17, Notes: "winter drive", Actor: f.charity,
	})
	if err != nil {
		t.Fatalf("mark distributed: %v", err)
	}
	if got.DistributedAt == nil || got.PeopleHelped == nil || *got.PeopleHelped != 17 {
		t.Fatalf("annotation missing: %v / %v", got.DistributedAt, got.PeopleHelped)
	}

	_, err = f.svc.MarkDistributed(ctx, DistributeCommand{
		OrderID: o.ID, PeopleHelped: 99, Notes: "overwrite attempt", Actor: f.charity,
	})
	if !errors.Is(err, ErrAlreadyDistributed) {
		t.Fatalf("expected ErrAlreadyDistributed, got %v", err)
	}

	var people int
	if err := f.db.QueryRow(ctx, `SELECT people_helped FROM orders WHERE id = $1`,
		string(o.ID)).Scan(&people); err != nil {
		t.Fatalf("query order: %v", err)
	}
	if people != 17 {
		t.Fatalf("people_helped = %d, want the first report to stand", people)
	}
}

func TestMarkDistributed_RequiresCompletedOrder(t *testing.T) {
	f := setupFixture(t)
	o := f.accept(t)

	_, err := f.svc.MarkDistributed(context.Background(), DistributeCommand{
		OrderID: o.ID, PeopleHelped: 5, Actor: f.charity,
	})
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
}

func TestMarkDistributed_OnlyClaimingCharity(t *testing.T) {
	f := setupFixture(t)
	o := f.accept(t)
	f.completeDelivery(t, o)

	_, err := f.svc.MarkDistributed(context.Background(), DistributeCommand{
		OrderID: o.ID, PeopleHelped: 5, Actor: f.charity2,
	})
	if !errors.Is(err, order.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func mustExec(t *testing.T, db *pgxpool.Pool, sql string, args ...any) {
	t.Helper()
	if _, err := db.Exec(context.Background(), sql, args...); err != nil {
		t.Fatalf("exec %q: %v", sql[:40], err)
	}
}

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("REWEAR_TEST_DSN")
	if dsn == "" {
		t.Skip("REWEAR_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	if err := infra.Migrate(dsn, filepath.Join(repoRoot(t), "migrations")); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := db.Exec(ctx, `TRUNCATE TABLE driver_earnings, delivery_events, deliveries,
		driver_applications, order_day_counters, orders, items, addresses, users CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return db
}

func repoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found above test dir")
		}
		dir = parent
	}
}
