package lifecycle

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"scrapPickup/internal/errs"
	"scrapPickup/internal/loyalty"
	"scrapPickup/internal/testutil"
	"scrapPickup/models"
	"scrapPickup/repository"
)

type fixture struct {
	svc     *Service
	loyalty *loyalty.Service
	orders  *repository.OrderRepository
}

func newFixture(t *testing.T, d *sqlx.DB) *fixture {
	t.Helper()
	orders := repository.NewOrderRepository(d)
	loy := loyalty.NewService(d, repository.NewLoyaltyRepository(d), repository.NewAddressRepository(d), orders, nil)
	return &fixture{svc: NewService(orders, loy, nil), loyalty: loy, orders: orders}
}

func validInput() models.NewOrderInput {
	return models.NewOrderInput{
		PickupAddress:  " 42 Recycling Rd ",
		ScrapType:      "e-waste",
		Weight:         testutil.Float(10),
		EstimatedPrice: testutil.Float(150),
		CustomerName:   "Asha",
	}
}

var admin = Actor{UserID: "admin-1", Admin: true}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t, testutil.OpenInMemoryDB(t, "lifecycle_create"))
	ctx := context.Background()

	o, err := f.svc.Create(ctx, "u1", validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !regexp.MustCompile(`^ORD[0-9]{13}[0-9A-F]{6}$`).MatchString(o.OrderID) {
		t.Fatalf("unexpected order id %q", o.OrderID)
	}
	if o.Status != models.OrderStatusPending || o.ScrapType != models.ScrapEWaste || o.PickupAddress != "42 Recycling Rd" {
		t.Fatalf("unexpected order: %+v", o)
	}
	if o.PaymentMethod != models.PaymentMethodCash || o.OrderedAt.IsZero() {
		t.Fatalf("defaults not applied: %+v", o)
	}
	stored, err := f.svc.Get(ctx, o.OrderID, "u1")
	if err != nil || stored.CustomerName == nil || *stored.CustomerName != "Asha" {
		t.Fatalf("get: %v %+v", err, stored)
	}
}

func TestCreateValidationPersistsNothing(t *testing.T) {
	f := newFixture(t, testutil.OpenInMemoryDB(t, "lifecycle_create_invalid"))
	ctx := context.Background()

	cases := map[string]func(*models.NewOrderInput){
		"missing address": func(in *models.NewOrderInput) { in.PickupAddress = "  " },
		"unknown scrap":   func(in *models.NewOrderInput) { in.ScrapType = "Wood" },
		"zero weight":     func(in *models.NewOrderInput) { in.Weight = testutil.Float(0) },
		"missing weight":  func(in *models.NewOrderInput) { in.Weight = nil },
		"negative price":  func(in *models.NewOrderInput) { in.EstimatedPrice = testutil.Float(-1) },
		"missing price":   func(in *models.NewOrderInput) { in.EstimatedPrice = nil },
		"bad latitude":    func(in *models.NewOrderInput) { in.PickupLat, in.PickupLng = testutil.Float(120), testutil.Float(0) },
		"half coordinate": func(in *models.NewOrderInput) { in.PickupLng = testutil.Float(10) },
		"bad image url":   func(in *models.NewOrderInput) { in.ImageURLs = []string{"not a url"} },
		"bad payment":     func(in *models.NewOrderInput) { in.PaymentMethod = "Cheque" },
	}
	for name, mutate := range cases {
		in := validInput()
		mutate(&in)
		if _, err := f.svc.Create(ctx, "u1", in); !errors.Is(err, errs.ErrValidation) {
			t.Errorf("%s: err = %v, want validation", name, err)
		}
	}
	list, err := f.svc.List(ctx, "u1", "")
	if err != nil || len(list) != 0 {
		t.Fatalf("invalid orders persisted: %v %d", err, len(list))
	}
	// Zero estimated price is allowed.
	in := validInput()
	in.EstimatedPrice = testutil.Float(0)
	if _, err := f.svc.Create(ctx, "u1", in); err != nil {
		t.Fatalf("zero estimate rejected: %v", err)
	}
}

func TestCreateRetriesOnIDCollision(t *testing.T) {
	f := newFixture(t, testutil.OpenInMemoryDB(t, "lifecycle_collision"))
	ctx := context.Background()
	ids := []string{"ORDFIXED", "ORDFIXED", "ORDFRESH"}
	calls := 0
	f.svc.newID = func(_ time.Time) string {
		id := ids[calls]
		calls++
		return id
	}
	if _, err := f.svc.Create(ctx, "u1", validInput()); err != nil {
		t.Fatalf("first create: %v", err)
	}
	o, err := f.svc.Create(ctx, "u1", validInput())
	if err != nil {
		t.Fatalf("second create should retry: %v", err)
	}
	if o.OrderID != "ORDFRESH" || calls != 3 {
		t.Fatalf("id=%s calls=%d", o.OrderID, calls)
	}

	f.svc.newID = func(_ time.Time) string { return "ORDFIXED" }
	if _, err := f.svc.Create(ctx, "u1", validInput()); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("exhausted retries: %v", err)
	}
}

func TestHappyPathCompletesAndAccrues(t *testing.T) {
	f := newFixture(t, testutil.OpenInMemoryDB(t, "lifecycle_happy"))
	ctx := context.Background()

	o, err := f.svc.Create(ctx, "u1", validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	res, err := f.svc.Transition(ctx, o.OrderID, models.OrderStatusAccepted, admin, TransitionExtra{
		DriverName:  testutil.String("Ravi"),
		DriverPhone: testutil.String("+91 99999"),
	})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if res.Order.Status != models.OrderStatusAccepted || res.Order.AcceptedAt == nil || res.Order.DriverName == nil {
		t.Fatalf("accept not recorded: %+v", res.Order)
	}
	res, err = f.svc.Transition(ctx, o.OrderID, models.OrderStatusInTransit, admin, TransitionExtra{})
	if err != nil || res.Order.PickupAt == nil {
		t.Fatalf("in transit: %v %+v", err, res)
	}
	res, err = f.svc.Transition(ctx, o.OrderID, models.OrderStatusCompleted, admin, TransitionExtra{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Order.CompletedAt == nil || res.Order.FinalPrice != nil || res.AccrualErr != nil {
		t.Fatalf("unexpected completion: %+v", res)
	}
	if res.Loyalty == nil || res.Loyalty.TotalOrders != 1 || res.Loyalty.TotalEarnings != 150 {
		t.Fatalf("accrual should use the estimate: %+v", res.Loyalty)
	}

	// Completed is terminal.
	for _, target := range models.OrderStatuses {
		if _, err := f.svc.Transition(ctx, o.OrderID, target, admin, TransitionExtra{}); !errors.Is(err, errs.ErrInvalidTransition) {
			t.Fatalf("Completed -> %s: err = %v", target, err)
		}
	}
}

func TestFinalPriceIsAuthoritative(t *testing.T) {
	f := newFixture(t, testutil.OpenInMemoryDB(t, "lifecycle_final_price"))
	ctx := context.Background()
	o, _ := f.svc.Create(ctx, "u1", validInput())
	owner := Actor{UserID: "u1"}
	f.svc.Transition(ctx, o.OrderID, models.OrderStatusAccepted, owner, TransitionExtra{})

	if _, err := f.svc.Transition(ctx, o.OrderID, models.OrderStatusInTransit, owner, TransitionExtra{FinalPrice: testutil.Float(1)}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("final price outside completion: %v", err)
	}
	f.svc.Transition(ctx, o.OrderID, models.OrderStatusInTransit, owner, TransitionExtra{})
	if _, err := f.svc.Transition(ctx, o.OrderID, models.OrderStatusCompleted, owner, TransitionExtra{FinalPrice: testutil.Float(-5)}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("negative final price: %v", err)
	}
	res, err := f.svc.Transition(ctx, o.OrderID, models.OrderStatusCompleted, owner, TransitionExtra{FinalPrice: testutil.Float(175)})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Order.FinalPrice == nil || *res.Order.FinalPrice != 175 || res.Loyalty.TotalEarnings != 175 {
		t.Fatalf("final price not used: %+v %+v", res.Order, res.Loyalty)
	}
}

func TestIllegalTransitionsLeaveOrderUnchanged(t *testing.T) {
	f := newFixture(t, testutil.OpenInMemoryDB(t, "lifecycle_illegal"))
	ctx := context.Background()
	o, _ := f.svc.Create(ctx, "u1", validInput())

	for _, target := range []models.OrderStatus{models.OrderStatusPending, models.OrderStatusInTransit, models.OrderStatusCompleted} {
		if _, err := f.svc.Transition(ctx, o.OrderID, target, admin, TransitionExtra{}); !errors.Is(err, errs.ErrInvalidTransition) {
			t.Fatalf("Pending -> %s: err = %v", target, err)
		}
	}
	got, _ := f.svc.GetAny(ctx, o.OrderID)
	if got.Status != models.OrderStatusPending || got.AcceptedAt != nil || got.CompletedAt != nil {
		t.Fatalf("order changed by rejected transitions: %+v", got)
	}
	if _, err := f.svc.Transition(ctx, o.OrderID, "Lost", admin, TransitionExtra{}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("unknown target: %v", err)
	}
}

func TestCancelRules(t *testing.T) {
	f := newFixture(t, testutil.OpenInMemoryDB(t, "lifecycle_cancel"))
	ctx := context.Background()

	pending, _ := f.svc.Create(ctx, "u1", validInput())
	got, err := f.svc.Cancel(ctx, pending.OrderID, "u1", "")
	if err != nil {
		t.Fatalf("cancel pending: %v", err)
	}
	if got.Status != models.OrderStatusCancelled || got.CancelledAt == nil || got.CancellationReason == nil || *got.CancellationReason != DefaultCancellationReason {
		t.Fatalf("unexpected cancelled order: %+v", got)
	}

	accepted, _ := f.svc.Create(ctx, "u1", validInput())
	f.svc.Transition(ctx, accepted.OrderID, models.OrderStatusAccepted, admin, TransitionExtra{})
	got, err = f.svc.Cancel(ctx, accepted.OrderID, "u1", "changed my mind")
	if err != nil || *got.CancellationReason != "changed my mind" {
		t.Fatalf("cancel accepted: %v %+v", err, got)
	}

	moving, _ := f.svc.Create(ctx, "u1", validInput())
	f.svc.Transition(ctx, moving.OrderID, models.OrderStatusAccepted, admin, TransitionExtra{})
	f.svc.Transition(ctx, moving.OrderID, models.OrderStatusInTransit, admin, TransitionExtra{})
	if _, err := f.svc.Cancel(ctx, moving.OrderID, "u1", ""); !errors.Is(err, errs.ErrInvalidTransition) {
		t.Fatalf("cancel in transit: %v", err)
	}

	if _, err := f.svc.Cancel(ctx, pending.OrderID, "u2", ""); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("foreign cancel should be NotFound: %v", err)
	}
}

func TestOwnershipScoping(t *testing.T) {
	f := newFixture(t, testutil.OpenInMemoryDB(t, "lifecycle_owner"))
	ctx := context.Background()
	o, _ := f.svc.Create(ctx, "owner", validInput())

	if _, err := f.svc.Get(ctx, o.OrderID, "intruder"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("foreign get: %v", err)
	}
	if _, err := f.svc.Transition(ctx, o.OrderID, models.OrderStatusAccepted, Actor{UserID: "intruder"}, TransitionExtra{}); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("foreign transition: %v", err)
	}
	// Owners may not record driver details.
	res, err := f.svc.Transition(ctx, o.OrderID, models.OrderStatusAccepted, Actor{UserID: "owner"}, TransitionExtra{DriverName: testutil.String("me")})
	if err != nil || res.Order.DriverName != nil {
		t.Fatalf("owner accept: %v %+v", err, res)
	}
	if list, _ := f.svc.List(ctx, "intruder", ""); len(list) != 0 {
		t.Fatalf("foreign orders listed")
	}
	if _, err := f.svc.List(ctx, "owner", "Shipped"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("unknown status filter: %v", err)
	}
	list, err := f.svc.List(ctx, "owner", "accepted")
	if err != nil || len(list) != 1 {
		t.Fatalf("status filter: %v %d", err, len(list))
	}
}

type failingAccruer struct{}

func (failingAccruer) Accrue(context.Context, string) (*models.LoyaltyProgress, error) {
	return nil, errs.Dependency("storage unavailable", errors.New("disk full"))
}

func TestAccrualFailureIsPartialSuccess(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "lifecycle_accrual_failure")
	orders := repository.NewOrderRepository(d)
	svc := NewService(orders, failingAccruer{}, nil)
	ctx := context.Background()

	o, _ := svc.Create(ctx, "u1", validInput())
	svc.Transition(ctx, o.OrderID, models.OrderStatusAccepted, admin, TransitionExtra{})
	svc.Transition(ctx, o.OrderID, models.OrderStatusInTransit, admin, TransitionExtra{})
	res, err := svc.Transition(ctx, o.OrderID, models.OrderStatusCompleted, admin, TransitionExtra{})
	if err != nil {
		t.Fatalf("completion must stand: %v", err)
	}
	if res.AccrualErr == nil || !errs.Retryable(res.AccrualErr) {
		t.Fatalf("accrual failure not reported: %+v", res)
	}
	got, _ := svc.GetAny(ctx, o.OrderID)
	if got.Status != models.OrderStatusCompleted {
		t.Fatalf("completion rolled back: %+v", got)
	}
}

func TestRacingTransitionsHaveOneWinner(t *testing.T) {
	f := newFixture(t, testutil.OpenFileDB(t))
	ctx := context.Background()

	for round := 0; round < 10; round++ {
		o, err := f.svc.Create(ctx, "u1", validInput())
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		var wg sync.WaitGroup
		results := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, results[0] = f.svc.Cancel(ctx, o.OrderID, "u1", "")
		}()
		go func() {
			defer wg.Done()
			_, results[1] = f.svc.Transition(ctx, o.OrderID, models.OrderStatusAccepted, admin, TransitionExtra{})
		}()
		wg.Wait()

		wins := 0
		for _, err := range results {
			switch {
			case err == nil:
				wins++
			case errors.Is(err, errs.ErrInvalidTransition), errors.Is(err, errs.ErrConflict):
			default:
				t.Fatalf("unexpected loser error: %v", err)
			}
		}
		got, _ := f.svc.GetAny(ctx, o.OrderID)
		// Cancel after accept is legal, so both may succeed in sequence.
		if wins == 0 || (wins == 2 && got.Status != models.OrderStatusCancelled) {
			t.Fatalf("round %d: wins=%d status=%s", round, wins, got.Status)
		}
		if wins == 1 && got.Status == models.OrderStatusPending {
			t.Fatalf("round %d: winner did not persist", round)
		}
	}
}

func TestRacingCompletionsAccrueOnce(t *testing.T) {
	f := newFixture(t, testutil.OpenFileDB(t))
	ctx := context.Background()
	o, _ := f.svc.Create(ctx, "u1", validInput())
	f.svc.Transition(ctx, o.OrderID, models.OrderStatusAccepted, admin, TransitionExtra{})
	f.svc.Transition(ctx, o.OrderID, models.OrderStatusInTransit, admin, TransitionExtra{})

	const racers = 4
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Transition(ctx, o.OrderID, models.OrderStatusCompleted, admin, TransitionExtra{}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("wins = %d, want 1", wins)
	}
	p, _ := f.loyalty.Get(ctx, "u1")
	if p.TotalOrders != 1 {
		t.Fatalf("completion accrued %d times", p.TotalOrders)
	}
}

// rederiveFirst re-derives the owner's record between the completion commit
// and the accrual.
type rederiveFirst struct {
	loyalty *loyalty.Service
	uid     string
}

func (r rederiveFirst) Accrue(ctx context.Context, orderID string) (*models.LoyaltyProgress, error) {
	if _, err := r.loyalty.Rederive(ctx, r.uid); err != nil {
		return nil, err
	}
	return r.loyalty.Accrue(ctx, orderID)
}

func TestRederiveBeforeAccrualCountsOnce(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "lifecycle_rederive_first")
	orders := repository.NewOrderRepository(d)
	loy := loyalty.NewService(d, repository.NewLoyaltyRepository(d), repository.NewAddressRepository(d), orders, nil)
	svc := NewService(orders, rederiveFirst{loyalty: loy, uid: "u1"}, nil)
	ctx := context.Background()

	o, _ := svc.Create(ctx, "u1", validInput())
	svc.Transition(ctx, o.OrderID, models.OrderStatusAccepted, admin, TransitionExtra{})
	svc.Transition(ctx, o.OrderID, models.OrderStatusInTransit, admin, TransitionExtra{})
	res, err := svc.Transition(ctx, o.OrderID, models.OrderStatusCompleted, admin, TransitionExtra{})
	if err != nil || res.AccrualErr != nil {
		t.Fatalf("complete: %v %+v", err, res)
	}
	if res.Loyalty.TotalOrders != 1 || res.Loyalty.TotalEarnings != 150 {
		t.Fatalf("order counted twice: %+v", res.Loyalty)
	}
}

// stallingLedger runs during once, inside the re-derivation transaction.
type stallingLedger struct {
	*repository.OrderRepository
	once   sync.Once
	during func()
}

func (l *stallingLedger) ClaimAccrualsTx(ctx context.Context, tx *sqlx.Tx, userID string) (int64, error) {
	if l.during != nil {
		l.once.Do(l.during)
	}
	return l.OrderRepository.ClaimAccrualsTx(ctx, tx, userID)
}

func TestCompletionDuringRederiveIsNotLost(t *testing.T) {
	d := testutil.OpenFileDB(t)
	orders := repository.NewOrderRepository(d)
	ledger := &stallingLedger{OrderRepository: orders}
	loy := loyalty.NewService(d, repository.NewLoyaltyRepository(d), repository.NewAddressRepository(d), ledger, nil)
	svc := NewService(orders, loy, nil)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 2; i++ {
		o, err := svc.Create(ctx, "u1", validInput())
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		svc.Transition(ctx, o.OrderID, models.OrderStatusAccepted, admin, TransitionExtra{})
		svc.Transition(ctx, o.OrderID, models.OrderStatusInTransit, admin, TransitionExtra{})
		ids = append(ids, o.OrderID)
	}
	if _, err := svc.Transition(ctx, ids[0], models.OrderStatusCompleted, admin, TransitionExtra{}); err != nil {
		t.Fatalf("complete first: %v", err)
	}

	done := make(chan *TransitionResult, 1)
	errCh := make(chan error, 1)
	ledger.during = func() {
		go func() {
			res, err := svc.Transition(ctx, ids[1], models.OrderStatusCompleted, admin, TransitionExtra{})
			errCh <- err
			done <- res
		}()
		time.Sleep(50 * time.Millisecond)
	}
	if _, err := loy.Rederive(ctx, "u1"); err != nil {
		t.Fatalf("rederive: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("complete second: %v", err)
	}
	if res := <-done; res.AccrualErr != nil {
		t.Fatalf("accrual failed: %v", res.AccrualErr)
	}

	p, _ := loy.Get(ctx, "u1")
	if p.TotalOrders != 2 || p.TotalEarnings != 300 {
		t.Fatalf("2 completed, record says %+v", p)
	}
}

func TestUpdatePayment(t *testing.T) {
	f := newFixture(t, testutil.OpenInMemoryDB(t, "lifecycle_payment"))
	ctx := context.Background()
	o, _ := f.svc.Create(ctx, "u1", validInput())

	got, err := f.svc.UpdatePayment(ctx, o.OrderID, PaymentUpdate{PaymentStatus: "paid", PaymentMethod: "bank transfer"})
	if err != nil {
		t.Fatalf("update payment: %v", err)
	}
	if got.PaymentStatus != models.PaymentStatusPaid || got.PaymentMethod != models.PaymentMethodBankTransfer {
		t.Fatalf("payment not stored: %+v", got)
	}
	if _, err := f.svc.UpdatePayment(ctx, o.OrderID, PaymentUpdate{PaymentStatus: "Refunded"}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("unknown payment status: %v", err)
	}
	if _, err := f.svc.UpdatePayment(ctx, o.OrderID, PaymentUpdate{}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("empty update: %v", err)
	}
	if _, err := f.svc.UpdatePayment(ctx, "ORDmissing", PaymentUpdate{PaymentStatus: "Paid"}); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("missing order: %v", err)
	}
}
