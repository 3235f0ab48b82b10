package gifts

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
	"github.com/wishlane/wishlane-backend/internal/ledger"
	"github.com/wishlane/wishlane-backend/internal/wishlists"
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

type fixture struct {
	svc       Service
	db        *gorm.DB
	publisher *capturePublisher
	ownerID   uuid.UUID
	wishlist  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := "file:gifts_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.User{},
		&models.Wishlist{},
		&models.Gift{},
		&models.Reservation{},
		&models.Contribution{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	publisher := &capturePublisher{}
	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		DB:        conn,
		Repo:      ledger.NewRepository(conn),
		Publisher: publisher,
		Logger:    logger.New(logger.Options{ServiceName: "gifts-test"}),
		Config:    config.ReservationsConfig{LockWait: 2 * time.Second},
	})
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(conn),
		Wishlists: wishlists.NewRepository(conn),
		Ledger:    ledgerSvc,
		Publisher: publisher,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ownerID := uuid.New()
	if err := conn.Create(&models.User{ID: ownerID, Email: "owner@example.com", Name: "Olya", IsActive: true}).Error; err != nil {
		t.Fatalf("seed owner: %v", err)
	}
	wishlistID := uuid.New()
	if err := conn.Create(&models.Wishlist{
		ID:       wishlistID,
		OwnerID:  ownerID,
		Slug:     "birthday-" + uuid.NewString()[:8],
		Title:    "Birthday",
		IsPublic: true,
	}).Error; err != nil {
		t.Fatalf("seed wishlist: %v", err)
	}

	return &fixture{svc: svc, db: conn, publisher: publisher, ownerID: ownerID, wishlist: wishlistID}
}

func (f *fixture) seedUser(t *testing.T, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := f.db.Create(&models.User{
		ID:       id,
		Email:    name + "-" + uuid.NewString()[:8] + "@example.com",
		Name:     name,
		IsActive: true,
	}).Error
	if err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return id
}

func codeOf(t *testing.T, err error) pkgerrors.Code {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected ledger error, got %v", err)
	}
	return typed.Code()
}

func TestCreateGiftPublishesEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	dto, err := f.svc.Create(ctx, f.ownerID, f.wishlist, CreateGiftInput{
		Title: "Coffee grinder",
		Price: decimal.NewFromInt(120),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if dto.Status != enums.GiftStatusOpen || !dto.Collected.IsZero() {
		t.Fatalf("expected fresh open gift, got status=%s collected=%s", dto.Status, dto.Collected)
	}
	if dto.Progress != 0 {
		t.Fatalf("expected zero progress, got %d", dto.Progress)
	}

	kinds := f.publisher.kinds()
	if len(kinds) != 1 || kinds[0] != enums.EventGiftAdded {
		t.Fatalf("expected single gift-added event, got %v", kinds)
	}
}

func TestCreateGiftValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.ownerID, f.wishlist, CreateGiftInput{Price: decimal.NewFromInt(10)})
	if codeOf(t, err) != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION for empty title, got %v", err)
	}
	_, err = f.svc.Create(ctx, f.ownerID, f.wishlist, CreateGiftInput{Title: "Gift", Price: decimal.Zero})
	if codeOf(t, err) != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION for zero price, got %v", err)
	}
	_, err = f.svc.Create(ctx, f.seedUser(t, "Stranger"), f.wishlist, CreateGiftInput{Title: "Gift", Price: decimal.NewFromInt(10)})
	if codeOf(t, err) != pkgerrors.CodeForbidden {
		t.Fatalf("expected FORBIDDEN for non-owner, got %v", err)
	}
}

func TestUpdatePriceKeepsReservation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	dto, err := f.svc.Create(ctx, f.ownerID, f.wishlist, CreateGiftInput{
		Title: "Headphones",
		Price: decimal.NewFromInt(200),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	bobID := f.seedUser(t, "Bob")
	ledgerSvc := f.svc.(*service).ledger
	if _, err := ledgerSvc.Reserve(ctx, dto.ID, ledger.Actor{UserID: &bobID, Name: "Bob"}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	newPrice := decimal.NewFromInt(180)
	updated, err := f.svc.Update(ctx, f.ownerID, dto.ID, UpdateGiftInput{Price: &newPrice})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != enums.GiftStatusReserved {
		t.Fatalf("price edit must not release the reservation, got status %s", updated.Status)
	}
	if !updated.Price.Equal(newPrice) {
		t.Fatalf("expected price 180, got %s", updated.Price)
	}

	kinds := f.publisher.kinds()
	if kinds[len(kinds)-1] != enums.EventGiftUpdated {
		t.Fatalf("expected trailing gift-updated event, got %v", kinds)
	}
}

func TestUpdatePriceCutBelowCollectedFlipsToFunded(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	dto, err := f.svc.Create(ctx, f.ownerID, f.wishlist, CreateGiftInput{
		Title:      "Espresso machine",
		Price:      decimal.NewFromInt(300),
		Splittable: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	anyaID := f.seedUser(t, "Anya")
	ledgerSvc := f.svc.(*service).ledger
	if _, err := ledgerSvc.Contribute(ctx, dto.ID, ledger.Actor{UserID: &anyaID, Name: "Anya"}, decimal.NewFromInt(120)); err != nil {
		t.Fatalf("contribute: %v", err)
	}

	// Cutting the goal below what is already collected completes the gift.
	newPrice := decimal.NewFromInt(100)
	updated, err := f.svc.Update(ctx, f.ownerID, dto.ID, UpdateGiftInput{Price: &newPrice})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != enums.GiftStatusFunded {
		t.Fatalf("expected funded after the cut, got %s", updated.Status)
	}

	kinds := f.publisher.kinds()
	if kinds[len(kinds)-1] != enums.EventGiftFunded {
		t.Fatalf("expected trailing gift-funded event, got %v", kinds)
	}

	// Raising the goal back above collected reopens it.
	raised := decimal.NewFromInt(400)
	updated, err = f.svc.Update(ctx, f.ownerID, dto.ID, UpdateGiftInput{Price: &raised})
	if err != nil {
		t.Fatalf("raise: %v", err)
	}
	if updated.Status != enums.GiftStatusOpen {
		t.Fatalf("expected open after the raise, got %s", updated.Status)
	}

	kinds = f.publisher.kinds()
	if kinds[len(kinds)-1] != enums.EventGiftUnfunded {
		t.Fatalf("expected trailing gift-unfunded event, got %v", kinds)
	}
}

func TestOwnerViewMasksActors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	solo, err := f.svc.Create(ctx, f.ownerID, f.wishlist, CreateGiftInput{
		Title: "Book",
		Price: decimal.NewFromInt(30),
	})
	if err != nil {
		t.Fatalf("create solo gift: %v", err)
	}
	pooled, err := f.svc.Create(ctx, f.ownerID, f.wishlist, CreateGiftInput{
		Title:      "Bicycle",
		Price:      decimal.NewFromInt(500),
		Splittable: true,
	})
	if err != nil {
		t.Fatalf("create pooled gift: %v", err)
	}

	bobID := f.seedUser(t, "Bob")
	ledgerSvc := f.svc.(*service).ledger
	if _, err := ledgerSvc.Reserve(ctx, solo.ID, ledger.Actor{UserID: &bobID, Name: "Bob"}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := ledgerSvc.Contribute(ctx, pooled.ID, ledger.Actor{UserID: &bobID, Name: "Bob"}, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("contribute: %v", err)
	}

	visitorID := f.seedUser(t, "Vera")
	visitorView, err := f.svc.ListByWishlist(ctx, f.wishlist, &visitorID)
	if err != nil {
		t.Fatalf("visitor list: %v", err)
	}
	byTitle := map[string]GiftDTO{}
	for _, g := range visitorView {
		byTitle[g.Title] = g
	}
	if byTitle["Book"].ReservedBy == nil || byTitle["Book"].ReservedBy.Name != "Bob" {
		t.Fatalf("visitor should see the reserver, got %+v", byTitle["Book"].ReservedBy)
	}
	if len(byTitle["Bicycle"].Contributors) != 1 || byTitle["Bicycle"].Contributors[0].Name != "Bob" {
		t.Fatalf("visitor should see contributors, got %+v", byTitle["Bicycle"].Contributors)
	}
	if !byTitle["Bicycle"].HasContributions {
		t.Fatalf("visitor should see has_contributions")
	}
	if byTitle["Bicycle"].Progress != 20 {
		t.Fatalf("expected 20%% progress, got %d", byTitle["Bicycle"].Progress)
	}

	ownerView, err := f.svc.ListByWishlist(ctx, f.wishlist, &f.ownerID)
	if err != nil {
		t.Fatalf("owner list: %v", err)
	}
	byTitle = map[string]GiftDTO{}
	for _, g := range ownerView {
		byTitle[g.Title] = g
	}
	if byTitle["Book"].ReservedBy != nil {
		t.Fatalf("owner must not see the reserver")
	}
	if byTitle["Book"].Status != enums.GiftStatusReserved {
		t.Fatalf("owner still sees reserved status, got %s", byTitle["Book"].Status)
	}
	if len(byTitle["Bicycle"].Contributors) != 0 || byTitle["Bicycle"].HasContributions {
		t.Fatalf("owner must not see contributors, got %+v", byTitle["Bicycle"])
	}
}

func TestPrivateWishlistGiftsHiddenFromVisitors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	if err := f.db.Model(&models.Wishlist{}).Where("id = ?", f.wishlist).Update("is_public", false).Error; err != nil {
		t.Fatalf("make private: %v", err)
	}
	if _, err := f.svc.Create(ctx, f.ownerID, f.wishlist, CreateGiftInput{Title: "Gift", Price: decimal.NewFromInt(10)}); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := f.svc.ListByWishlist(ctx, f.wishlist, nil)
	if codeOf(t, err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND for anonymous visitor, got %v", err)
	}

	gifts, err := f.svc.ListByWishlist(ctx, f.wishlist, &f.ownerID)
	if err != nil {
		t.Fatalf("owner list: %v", err)
	}
	if len(gifts) != 1 {
		t.Fatalf("expected owner to see 1 gift, got %d", len(gifts))
	}
}

func TestDeleteGiftGoesThroughLedger(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	dto, err := f.svc.Create(ctx, f.ownerID, f.wishlist, CreateGiftInput{
		Title: "Lamp",
		Price: decimal.NewFromInt(45),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	bobID := f.seedUser(t, "Bob")
	ledgerSvc := f.svc.(*service).ledger
	if _, err := ledgerSvc.Reserve(ctx, dto.ID, ledger.Actor{UserID: &bobID, Name: "Bob"}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := f.svc.Delete(ctx, f.seedUser(t, "Stranger"), dto.ID); codeOf(t, err) != pkgerrors.CodeForbidden {
		t.Fatalf("expected FORBIDDEN for stranger, got %v", err)
	}
	if err := f.svc.Delete(ctx, f.ownerID, dto.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var count int64
	if err := f.db.Model(&models.Reservation{}).Where("gift_id = ?", dto.ID).Count(&count).Error; err != nil {
		t.Fatalf("count reservations: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected released reservation, found %d rows", count)
	}

	kinds := f.publisher.kinds()
	if kinds[len(kinds)-1] != enums.EventGiftRemoved {
		t.Fatalf("expected trailing gift-removed event, got %v", kinds)
	}

	_, err = f.svc.Get(ctx, dto.ID, nil)
	if codeOf(t, err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND after delete, got %v", err)
	}
}
