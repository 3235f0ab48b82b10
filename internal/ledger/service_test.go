package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/wishlane/wishlane-backend/internal/hub"
	"github.com/wishlane/wishlane-backend/pkg/config"
	"github.com/wishlane/wishlane-backend/pkg/db/models"
	"github.com/wishlane/wishlane-backend/pkg/enums"
	pkgerrors "github.com/wishlane/wishlane-backend/pkg/errors"
	"github.com/wishlane/wishlane-backend/pkg/logger"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []hub.Event
}

func (p *capturePublisher) Publish(_ context.Context, event hub.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePublisher) kinds() []enums.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]enums.EventKind, 0, len(p.events))
	for _, ev := range p.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:ledger_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Wishlist{},
		&models.Gift{},
		&models.Reservation{},
		&models.Contribution{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fixture struct {
	svc       Service
	db        *gorm.DB
	publisher *capturePublisher
	ownerID   uuid.UUID
	wishlist  uuid.UUID
}

func newFixture(t *testing.T, cfg config.ReservationsConfig) *fixture {
	t.Helper()
	if cfg.LockWait == 0 {
		cfg.LockWait = 2 * time.Second
	}

	db := newTestDB(t)
	publisher := &capturePublisher{}
	svc, err := NewService(ServiceParams{
		DB:        db,
		Repo:      NewRepository(db),
		Publisher: publisher,
		Logger:    logger.New(logger.Options{ServiceName: "ledger-test"}),
		Config:    cfg,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ownerID := uuid.New()
	wishlistID := uuid.New()
	if err := db.Create(&models.User{
		ID:           ownerID,
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		Name:         "Owner",
	}).Error; err != nil {
		t.Fatalf("seed owner: %v", err)
	}
	if err := db.Create(&models.Wishlist{
		ID:      wishlistID,
		OwnerID: ownerID,
		Slug:    "birthday-" + uuid.NewString()[:8],
		Title:   "Birthday",
	}).Error; err != nil {
		t.Fatalf("seed wishlist: %v", err)
	}

	return &fixture{svc: svc, db: db, publisher: publisher, ownerID: ownerID, wishlist: wishlistID}
}

func (f *fixture) addGift(t *testing.T, splittable bool, price int64) uuid.UUID {
	t.Helper()
	gift := &models.Gift{
		ID:         uuid.New(),
		WishlistID: f.wishlist,
		Title:      "Gift",
		Price:      decimal.NewFromInt(price),
		Splittable: splittable,
		Status:     enums.GiftStatusOpen,
		Collected:  decimal.Zero,
	}
	if err := f.db.Create(gift).Error; err != nil {
		t.Fatalf("seed gift: %v", err)
	}
	return gift.ID
}

func (f *fixture) loadGift(t *testing.T, giftID uuid.UUID) models.Gift {
	t.Helper()
	var gift models.Gift
	if err := f.db.First(&gift, "id = ?", giftID).Error; err != nil {
		t.Fatalf("load gift: %v", err)
	}
	return gift
}

func userActor(name string) Actor {
	id := uuid.New()
	return Actor{UserID: &id, Name: name}
}

func TestReserveRaceExactlyOneWinner(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ReservationsConfig{})
	giftID := f.addGift(t, false, 50)
	ctx := context.Background()

	const actors = 8
	var wg sync.WaitGroup
	results := make([]error, actors)
	for i := 0; i < actors; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, results[n] = f.svc.Reserve(ctx, giftID, userActor("actor"))
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		default:
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeAlreadyReserved {
				t.Fatalf("unexpected error: %v", err)
			}
			conflicts++
		}
	}
	if wins != 1 || conflicts != actors-1 {
		t.Fatalf("expected 1 winner and %d conflicts, got %d/%d", actors-1, wins, conflicts)
	}

	var count int64
	if err := f.db.Model(&models.Reservation{}).Where("gift_id = ?", giftID).Count(&count).Error; err != nil {
		t.Fatalf("count reservations: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one reservation row, got %d", count)
	}
	if gift := f.loadGift(t, giftID); gift.Status != enums.GiftStatusReserved {
		t.Fatalf("expected gift reserved, got %s", gift.Status)
	}
}

func TestConcurrentContributionsNeverExceedPrice(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ReservationsConfig{})
	giftID := f.addGift(t, true, 100)
	ctx := context.Background()

	// Six contributions of 30 sum to 180; at most three can land.
	const contributors = 6
	var wg sync.WaitGroup
	results := make([]error, contributors)
	for i := 0; i < contributors; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, results[n] = f.svc.Contribute(ctx, giftID, userActor("actor"), decimal.NewFromInt(30))
		}(i)
	}
	wg.Wait()

	var accepted, rejected int
	for _, err := range results {
		if err == nil {
			accepted++
			continue
		}
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeWouldExceedPrice {
			t.Fatalf("unexpected error: %v", err)
		}
		rejected++
	}
	if accepted != 3 || rejected != contributors-3 {
		t.Fatalf("expected 3 accepted, got %d accepted / %d rejected", accepted, rejected)
	}

	gift := f.loadGift(t, giftID)
	if !gift.Collected.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("expected collected=90, got %s", gift.Collected)
	}
	if gift.Collected.GreaterThan(gift.Price) {
		t.Fatalf("collected exceeds price: %s > %s", gift.Collected, gift.Price)
	}
}

func TestConcurrentContributionPublishOrderIsMonotone(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ReservationsConfig{LockWait: 5 * time.Second})
	giftID := f.addGift(t, true, 10000)
	ctx := context.Background()

	// Many small contributions racing on one gift. Events must leave
	// the ledger in commit order, so the collected totals they carry
	// must grow strictly.
	const workers = 16
	const perWorker = 5
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, err := f.svc.Contribute(ctx, giftID, userActor("actor"), decimal.NewFromInt(1)); err != nil {
					t.Errorf("contribute: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	f.publisher.mu.Lock()
	events := append([]hub.Event(nil), f.publisher.events...)
	f.publisher.mu.Unlock()

	prev := decimal.Zero
	var seen int
	for _, ev := range events {
		if ev.Kind != enums.EventGiftContributed {
			continue
		}
		payload, ok := ev.Payload.(map[string]any)
		if !ok {
			t.Fatalf("unexpected payload shape: %#v", ev.Payload)
		}
		raw, ok := payload["collected"].(string)
		if !ok {
			t.Fatalf("missing collected in payload: %#v", payload)
		}
		collected, err := decimal.NewFromString(raw)
		if err != nil {
			t.Fatalf("parse collected %q: %v", raw, err)
		}
		if !collected.GreaterThan(prev) {
			t.Fatalf("publish order inverted: collected %s after %s", collected, prev)
		}
		prev = collected
		seen++
	}
	if seen != workers*perWorker {
		t.Fatalf("expected %d contributed events, got %d", workers*perWorker, seen)
	}
}

func TestFundingCompletion(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ReservationsConfig{})
	giftID := f.addGift(t, true, 100)
	ctx := context.Background()

	first, err := f.svc.Contribute(ctx, giftID, userActor("a"), decimal.NewFromInt(40))
	if err != nil {
		t.Fatalf("first contribution: %v", err)
	}
	if first.Funded {
		t.Fatalf("gift should not be funded at 40/100")
	}

	second, err := f.svc.Contribute(ctx, giftID, userActor("b"), decimal.NewFromInt(60))
	if err != nil {
		t.Fatalf("second contribution: %v", err)
	}
	if !second.Funded || !second.Collected.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected funded at 100, got %+v", second)
	}
	if gift := f.loadGift(t, giftID); gift.Status != enums.GiftStatusFunded {
		t.Fatalf("expected funded status, got %s", gift.Status)
	}

	_, err = f.svc.Contribute(ctx, giftID, userActor("c"), decimal.NewFromInt(1))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeWouldExceedPrice {
		t.Fatalf("expected WOULD_EXCEED_PRICE, got %v", err)
	}

	// gift-funded follows gift-contributed in the same batch.
	kinds := f.publisher.kinds()
	var sawContributed, sawFunded bool
	for _, kind := range kinds {
		if kind == enums.EventGiftContributed {
			sawContributed = true
		}
		if kind == enums.EventGiftFunded {
			if !sawContributed {
				t.Fatalf("gift-funded emitted before gift-contributed: %v", kinds)
			}
			sawFunded = true
		}
	}
	if !sawFunded {
		t.Fatalf("expected gift-funded event, got %v", kinds)
	}
}

func TestCancelReservationIdempotentFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ReservationsConfig{})
	giftID := f.addGift(t, false, 50)
	ctx := context.Background()
	actor := userActor("a")

	for i := 0; i < 2; i++ {
		err := f.svc.CancelReservation(ctx, giftID, actor)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotReserved {
			t.Fatalf("attempt %d: expected NOT_RESERVED, got %v", i+1, err)
		}
	}
}

func TestCancelPolicy(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ReservationsConfig{OwnerCancel: true})
	giftID := f.addGift(t, false, 50)
	ctx := context.Background()

	reserver := userActor("reserver")
	if _, err := f.svc.Reserve(ctx, giftID, reserver); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	// A third party may not cancel.
	err := f.svc.CancelReservation(ctx, giftID, userActor("stranger"))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected FORBIDDEN for stranger, got %v", err)
	}

	// The wishlist owner may, because OwnerCancel is on.
	owner := Actor{UserID: &f.ownerID, Name: "Owner"}
	if err := f.svc.CancelReservation(ctx, giftID, owner); err != nil {
		t.Fatalf("owner cancel: %v", err)
	}
	if gift := f.loadGift(t, giftID); gift.Status != enums.GiftStatusOpen {
		t.Fatalf("expected gift reopened, got %s", gift.Status)
	}
}

func TestAnonymousPolicy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	closed := newFixture(t, config.ReservationsConfig{})
	giftID := closed.addGift(t, false, 50)
	_, err := closed.svc.Reserve(ctx, giftID, Actor{GuestToken: "tok", Name: "Guest"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected UNAUTHORIZED when anonymous disabled, got %v", err)
	}

	open := newFixture(t, config.ReservationsConfig{AllowAnonymous: true})
	giftID = open.addGift(t, false, 50)
	res, err := open.svc.Reserve(ctx, giftID, Actor{GuestToken: "tok", Name: "Guest"})
	if err != nil {
		t.Fatalf("anonymous reserve: %v", err)
	}
	if res.GuestToken == nil || *res.GuestToken != "tok" {
		t.Fatalf("guest token not recorded")
	}

	// Only the same guest token may cancel.
	err = open.svc.CancelReservation(ctx, giftID, Actor{GuestToken: "other"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected FORBIDDEN for other guest, got %v", err)
	}
	if err := open.svc.CancelReservation(ctx, giftID, Actor{GuestToken: "tok"}); err != nil {
		t.Fatalf("guest cancel: %v", err)
	}
}

func TestKindMismatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ReservationsConfig{})
	ctx := context.Background()

	splittable := f.addGift(t, true, 100)
	_, err := f.svc.Reserve(ctx, splittable, userActor("a"))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotReservable {
		t.Fatalf("expected NOT_RESERVABLE, got %v", err)
	}

	plain := f.addGift(t, false, 100)
	_, err = f.svc.Contribute(ctx, plain, userActor("a"), decimal.NewFromInt(10))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotContributable {
		t.Fatalf("expected NOT_CONTRIBUTABLE, got %v", err)
	}

	_, err = f.svc.Contribute(ctx, splittable, userActor("a"), decimal.Zero)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR for zero amount, got %v", err)
	}
}

func TestWithdrawRevertsFundedState(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ReservationsConfig{})
	giftID := f.addGift(t, true, 100)
	ctx := context.Background()

	alice := userActor("alice")
	bob := userActor("bob")
	if _, err := f.svc.Contribute(ctx, giftID, alice, decimal.NewFromInt(40)); err != nil {
		t.Fatalf("contribute 40: %v", err)
	}
	result, err := f.svc.Contribute(ctx, giftID, bob, decimal.NewFromInt(60))
	if err != nil {
		t.Fatalf("contribute 60: %v", err)
	}

	// Alice may not withdraw Bob's contribution.
	err = f.svc.WithdrawContribution(ctx, giftID, result.Contribution.ID, alice)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}

	if err := f.svc.WithdrawContribution(ctx, giftID, result.Contribution.ID, bob); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	gift := f.loadGift(t, giftID)
	if !gift.Collected.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected collected=40 after withdraw, got %s", gift.Collected)
	}
	if gift.Status != enums.GiftStatusOpen {
		t.Fatalf("expected funded state reverted, got %s", gift.Status)
	}

	var sawUnfunded bool
	for _, kind := range f.publisher.kinds() {
		if kind == enums.EventGiftUnfunded {
			sawUnfunded = true
		}
	}
	if !sawUnfunded {
		t.Fatalf("expected gift-unfunded event")
	}
}

func TestRemoveGiftReleasesState(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ReservationsConfig{})
	giftID := f.addGift(t, false, 50)
	ctx := context.Background()

	if _, err := f.svc.Reserve(ctx, giftID, userActor("a")); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := f.svc.RemoveGift(ctx, giftID); err != nil {
		t.Fatalf("remove gift: %v", err)
	}

	var reservations, gifts int64
	if err := f.db.Model(&models.Reservation{}).Where("gift_id = ?", giftID).Count(&reservations).Error; err != nil {
		t.Fatalf("count reservations: %v", err)
	}
	if err := f.db.Model(&models.Gift{}).Where("id = ?", giftID).Count(&gifts).Error; err != nil {
		t.Fatalf("count gifts: %v", err)
	}
	if reservations != 0 || gifts != 0 {
		t.Fatalf("expected gift state released, got %d reservations, %d gifts", reservations, gifts)
	}

	kinds := f.publisher.kinds()
	if kinds[len(kinds)-1] != enums.EventGiftRemoved {
		t.Fatalf("expected gift-removed last, got %v", kinds)
	}

	if err := f.svc.RemoveGift(ctx, giftID); err == nil {
		t.Fatal("expected NOT_FOUND on second removal")
	}
}

func TestBusyWhenLockHeldPastWait(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ReservationsConfig{LockWait: 30 * time.Millisecond})
	giftID := f.addGift(t, false, 50)
	ctx := context.Background()

	impl := f.svc.(*service)
	release, err := impl.locks.Acquire(ctx, giftID.String())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	_, err = f.svc.Reserve(ctx, giftID, userActor("a"))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeBusy {
		t.Fatalf("expected BUSY, got %v", err)
	}
	if !pkgerrors.MetadataFor(typed.Code()).Retryable {
		t.Fatalf("busy should be retryable")
	}
}

func TestGiftNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ReservationsConfig{})
	ctx := context.Background()

	_, err := f.svc.Reserve(ctx, uuid.New(), userActor("a"))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
