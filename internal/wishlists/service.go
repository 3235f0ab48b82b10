package wishlists

import (
	"context"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/wishlane/wishlane-backend/pkg/errors"
	"github.com/wishlane/wishlane-backend/pkg/db/models"
	"github.com/wishlane/wishlane-backend/pkg/pagination"
)

// Service exposes business rules for wishlist management. Gift-level
// state is owned by the ledger; this service only manages the
// collection records.
type Service interface {
	Create(ctx context.Context, ownerID uuid.UUID, input CreateWishlistInput) (*WishlistDTO, error)
	GetBySlug(ctx context.Context, slug string, viewerID *uuid.UUID) (*WishlistDTO, error)
	GetByID(ctx context.Context, id uuid.UUID) (*WishlistDTO, error)
	ListMine(ctx context.Context, ownerID uuid.UUID, params pagination.Params) (*WishlistPageDTO, error)
	Update(ctx context.Context, ownerID, id uuid.UUID, input UpdateWishlistInput) (*WishlistDTO, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) ([]uuid.UUID, error)
}

type service struct {
	repo *Repository
}

// NewService builds a wishlist service with the required dependencies.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "wishlist repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, ownerID uuid.UUID, input CreateWishlistInput) (*WishlistDTO, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}

	isPublic := true
	if input.IsPublic != nil {
		isPublic = *input.IsPublic
	}

	wishlist := &models.Wishlist{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Slug:        uniqueSlug(title),
		Title:       title,
		Description: input.Description,
		EventDate:   input.EventDate,
		IsPublic:    isPublic,
	}
	if err := s.repo.Create(ctx, wishlist); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wishlist")
	}
	return FromModel(wishlist), nil
}

func (s *service) GetBySlug(ctx context.Context, slug string, viewerID *uuid.UUID) (*WishlistDTO, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug required")
	}
	wishlist, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wishlist")
	}
	if wishlist == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wishlist not found")
	}
	if !wishlist.IsPublic && (viewerID == nil || *viewerID != wishlist.OwnerID) {
		// Private lists are invisible to everyone but the owner.
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wishlist not found")
	}
	return FromModel(wishlist), nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*WishlistDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wishlist id required")
	}
	wishlist, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wishlist")
	}
	if wishlist == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wishlist not found")
	}
	return FromModel(wishlist), nil
}

func (s *service) ListMine(ctx context.Context, ownerID uuid.UUID, params pagination.Params) (*WishlistPageDTO, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.repo.ListByOwner(ctx, ownerID, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wishlists")
	}

	page := &WishlistPageDTO{Items: make([]WishlistDTO, 0, len(rows))}
	for i := range rows {
		page.Items = append(page.Items, *FromModel(&rows[i]))
	}
	if next != nil {
		page.Cursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

func (s *service) Update(ctx context.Context, ownerID, id uuid.UUID, input UpdateWishlistInput) (*WishlistDTO, error) {
	wishlist, err := s.requireOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title cannot be empty")
		}
		changes["title"] = title
	}
	if input.Description != nil {
		changes["description"] = *input.Description
	}
	if input.EventDate != nil {
		changes["event_date"] = *input.EventDate
	}
	if input.IsPublic != nil {
		changes["is_public"] = *input.IsPublic
	}

	if err := s.repo.Update(ctx, wishlist.ID, changes); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update wishlist")
	}
	updated, err := s.repo.GetByID(ctx, wishlist.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload wishlist")
	}
	return FromModel(updated), nil
}

// Delete removes the wishlist and returns the ids of the gifts that
// went with it so the caller can release their ledger state.
func (s *service) Delete(ctx context.Context, ownerID, id uuid.UUID) ([]uuid.UUID, error) {
	wishlist, err := s.requireOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	giftIDs, err := s.repo.ListGiftIDs(ctx, wishlist.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wishlist gifts")
	}
	if err := s.repo.Delete(ctx, wishlist.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete wishlist")
	}
	return giftIDs, nil
}

func (s *service) requireOwned(ctx context.Context, ownerID, id uuid.UUID) (*models.Wishlist, error) {
	if ownerID == uuid.Nil || id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id and wishlist id required")
	}
	wishlist, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wishlist")
	}
	if wishlist == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wishlist not found")
	}
	if wishlist.OwnerID != ownerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not the wishlist owner")
	}
	return wishlist, nil
}
