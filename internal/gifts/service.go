package gifts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wishlane/wishlane-backend/internal/hub"
	"github.com/wishlane/wishlane-backend/internal/ledger"
	"github.com/wishlane/wishlane-backend/pkg/db/models"
	"github.com/wishlane/wishlane-backend/pkg/enums"
	pkgerrors "github.com/wishlane/wishlane-backend/pkg/errors"
)

// Service covers owner-side gift management and the aggregated read
// path. Reservation and contribution mutations live in the ledger;
// this service only orchestrates around them.
type Service interface {
	Create(ctx context.Context, ownerID, wishlistID uuid.UUID, input CreateGiftInput) (*GiftDTO, error)
	Update(ctx context.Context, ownerID, giftID uuid.UUID, input UpdateGiftInput) (*GiftDTO, error)
	Delete(ctx context.Context, ownerID, giftID uuid.UUID) error
	Get(ctx context.Context, giftID uuid.UUID, viewerID *uuid.UUID) (*GiftDTO, error)
	ListByWishlist(ctx context.Context, wishlistID uuid.UUID, viewerID *uuid.UUID) ([]GiftDTO, error)
}

type wishlistSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Wishlist, error)
}

type service struct {
	repo      *Repository
	wishlists wishlistSource
	ledger    ledger.Service
	publisher ledger.Publisher
}

// ServiceParams collects the gift service dependencies.
type ServiceParams struct {
	Repo      *Repository
	Wishlists wishlistSource
	Ledger    ledger.Service
	Publisher ledger.Publisher
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gifts repository required")
	}
	if params.Wishlists == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "wishlist source required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger service required")
	}
	if params.Publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "event publisher required")
	}
	return &service{
		repo:      params.Repo,
		wishlists: params.Wishlists,
		ledger:    params.Ledger,
		publisher: params.Publisher,
	}, nil
}

func (s *service) Create(ctx context.Context, ownerID, wishlistID uuid.UUID, input CreateGiftInput) (*GiftDTO, error) {
	if input.Title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gift title is required")
	}
	if !input.Price.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gift price must be positive")
	}
	if _, err := s.requireOwnedWishlist(ctx, ownerID, wishlistID); err != nil {
		return nil, err
	}

	gift := &models.Gift{
		ID:         uuid.New(),
		WishlistID: wishlistID,
		Title:      input.Title,
		URL:        input.URL,
		ImageURL:   input.ImageURL,
		Price:      input.Price,
		Splittable: input.Splittable,
		Status:     enums.GiftStatusOpen,
		Collected:  decimal.Zero,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, gift); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create gift")
	}

	dto := FromModel(gift, nil, nil, false)
	s.publisher.Publish(ctx, hub.NewEvent(enums.EventGiftAdded, gift.ID, wishlistID, dto))
	return dto, nil
}

func (s *service) Update(ctx context.Context, ownerID, giftID uuid.UUID, input UpdateGiftInput) (*GiftDTO, error) {
	gift, err := s.requireOwnedGift(ctx, ownerID, giftID)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if input.Title != nil {
		if *input.Title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "gift title cannot be empty")
		}
		changes["title"] = *input.Title
	}
	if input.URL != nil {
		changes["url"] = *input.URL
	}
	if input.ImageURL != nil {
		changes["image_url"] = *input.ImageURL
	}
	var statusFlip *enums.GiftStatus
	if input.Price != nil {
		if !input.Price.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "gift price must be positive")
		}
		changes["price"] = *input.Price
		// Collected is never clawed back, so a price edit on a
		// splittable gift re-evaluates funded against the new goal.
		if gift.Splittable {
			switch {
			case gift.Status == enums.GiftStatusOpen && !gift.Collected.LessThan(*input.Price):
				funded := enums.GiftStatusFunded
				statusFlip = &funded
			case gift.Status == enums.GiftStatusFunded && gift.Collected.LessThan(*input.Price):
				open := enums.GiftStatusOpen
				statusFlip = &open
			}
		}
	}
	if statusFlip != nil {
		changes["status"] = *statusFlip
	}
	if len(changes) > 0 {
		changes["updated_at"] = time.Now().UTC()
		if err := s.repo.Update(ctx, giftID, changes); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update gift")
		}
	}

	updated, err := s.aggregate(ctx, giftID, false)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, hub.NewEvent(enums.EventGiftUpdated, giftID, gift.WishlistID, updated))
	if statusFlip != nil {
		kind := enums.EventGiftFunded
		if *statusFlip == enums.GiftStatusOpen {
			kind = enums.EventGiftUnfunded
		}
		s.publisher.Publish(ctx, hub.NewEvent(kind, giftID, gift.WishlistID, map[string]any{
			"collected": gift.Collected.String(),
		}))
	}
	return updated, nil
}

// Delete removes a gift through the ledger so any reservation and
// contributions are released under the gift's lock. The ledger emits
// the gift-removed event.
func (s *service) Delete(ctx context.Context, ownerID, giftID uuid.UUID) error {
	if _, err := s.requireOwnedGift(ctx, ownerID, giftID); err != nil {
		return err
	}
	return s.ledger.RemoveGift(ctx, giftID)
}

func (s *service) Get(ctx context.Context, giftID uuid.UUID, viewerID *uuid.UUID) (*GiftDTO, error) {
	gift, err := s.repo.GetByID(ctx, giftID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load gift")
	}
	if gift == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "gift not found")
	}
	forOwner, err := s.viewerOwns(ctx, viewerID, gift.WishlistID)
	if err != nil {
		return nil, err
	}
	return s.aggregateGift(ctx, gift, forOwner)
}

func (s *service) ListByWishlist(ctx context.Context, wishlistID uuid.UUID, viewerID *uuid.UUID) ([]GiftDTO, error) {
	wishlist, err := s.wishlists.GetByID(ctx, wishlistID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wishlist")
	}
	if wishlist == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wishlist not found")
	}
	forOwner := viewerID != nil && *viewerID == wishlist.OwnerID
	if !wishlist.IsPublic && !forOwner {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wishlist not found")
	}

	gifts, err := s.repo.ListByWishlist(ctx, wishlistID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list gifts")
	}

	giftIDs := make([]uuid.UUID, 0, len(gifts))
	for _, g := range gifts {
		giftIDs = append(giftIDs, g.ID)
	}
	var contributions []models.Contribution
	var names map[uuid.UUID]string
	if !forOwner {
		contributions, err = s.repo.ListContributions(ctx, giftIDs)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list contributions")
		}
		names, err = s.repo.UserNames(ctx, actorIDs(gifts, contributions))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve names")
		}
	}

	byGift := make(map[uuid.UUID][]models.Contribution, len(gifts))
	for _, c := range contributions {
		byGift[c.GiftID] = append(byGift[c.GiftID], c)
	}

	out := make([]GiftDTO, 0, len(gifts))
	for i := range gifts {
		out = append(out, *FromModel(&gifts[i], byGift[gifts[i].ID], names, forOwner))
	}
	return out, nil
}

func (s *service) aggregate(ctx context.Context, giftID uuid.UUID, forOwner bool) (*GiftDTO, error) {
	gift, err := s.repo.GetByID(ctx, giftID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load gift")
	}
	if gift == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "gift not found")
	}
	return s.aggregateGift(ctx, gift, forOwner)
}

func (s *service) aggregateGift(ctx context.Context, gift *models.Gift, forOwner bool) (*GiftDTO, error) {
	if forOwner {
		return FromModel(gift, nil, nil, true), nil
	}
	contributions, err := s.repo.ListContributions(ctx, []uuid.UUID{gift.ID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list contributions")
	}
	names, err := s.repo.UserNames(ctx, actorIDs([]models.Gift{*gift}, contributions))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve names")
	}
	return FromModel(gift, contributions, names, false), nil
}

func (s *service) requireOwnedGift(ctx context.Context, ownerID, giftID uuid.UUID) (*models.Gift, error) {
	gift, err := s.repo.GetByID(ctx, giftID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load gift")
	}
	if gift == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "gift not found")
	}
	if _, err := s.requireOwnedWishlist(ctx, ownerID, gift.WishlistID); err != nil {
		return nil, err
	}
	return gift, nil
}

func (s *service) requireOwnedWishlist(ctx context.Context, ownerID, wishlistID uuid.UUID) (*models.Wishlist, error) {
	wishlist, err := s.wishlists.GetByID(ctx, wishlistID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wishlist")
	}
	if wishlist == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wishlist not found")
	}
	if wishlist.OwnerID != ownerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the wishlist owner may manage its gifts")
	}
	return wishlist, nil
}

func (s *service) viewerOwns(ctx context.Context, viewerID *uuid.UUID, wishlistID uuid.UUID) (bool, error) {
	if viewerID == nil {
		return false, nil
	}
	wishlist, err := s.wishlists.GetByID(ctx, wishlistID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wishlist")
	}
	if wishlist == nil {
		return false, nil
	}
	return wishlist.OwnerID == *viewerID, nil
}

func actorIDs(gifts []models.Gift, contributions []models.Contribution) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{}
	var ids []uuid.UUID
	add := func(id *uuid.UUID) {
		if id == nil {
			return
		}
		if _, ok := seen[*id]; ok {
			return
		}
		seen[*id] = struct{}{}
		ids = append(ids, *id)
	}
	for i := range gifts {
		if gifts[i].Reservation != nil {
			add(gifts[i].Reservation.UserID)
		}
	}
	for i := range contributions {
		add(contributions[i].UserID)
	}
	return ids
}
