package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wishlane/wishlane-backend/pkg/db/models"
	"github.com/wishlane/wishlane-backend/pkg/enums"
)

// Repository manages persistence for gift ledger state.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetGift(ctx context.Context, giftID uuid.UUID) (*models.Gift, error)
	GetWishlistOwner(ctx context.Context, wishlistID uuid.UUID) (uuid.UUID, error)
	GetReservation(ctx context.Context, giftID uuid.UUID) (*models.Reservation, error)
	CreateReservation(ctx context.Context, res *models.Reservation) error
	DeleteReservation(ctx context.Context, reservationID uuid.UUID) error
	GetContribution(ctx context.Context, giftID, contributionID uuid.UUID) (*models.Contribution, error)
	CreateContribution(ctx context.Context, c *models.Contribution) error
	DeleteContribution(ctx context.Context, contributionID uuid.UUID) error
	ListContributions(ctx context.Context, giftID uuid.UUID) ([]models.Contribution, error)
	SetGiftLedgerState(ctx context.Context, giftID uuid.UUID, status enums.GiftStatus, collected decimal.Decimal) error
	DeleteGiftState(ctx context.Context, giftID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetGift(ctx context.Context, giftID uuid.UUID) (*models.Gift, error) {
	var gift models.Gift
	err := r.db.WithContext(ctx).First(&gift, "id = ?", giftID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &gift, nil
}

func (r *repository) GetWishlistOwner(ctx context.Context, wishlistID uuid.UUID) (uuid.UUID, error) {
	var wishlist models.Wishlist
	err := r.db.WithContext(ctx).Select("owner_id").First(&wishlist, "id = ?", wishlistID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, err
	}
	return wishlist.OwnerID, nil
}

func (r *repository) GetReservation(ctx context.Context, giftID uuid.UUID) (*models.Reservation, error) {
	var res models.Reservation
	err := r.db.WithContext(ctx).First(&res, "gift_id = ?", giftID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *repository) CreateReservation(ctx context.Context, res *models.Reservation) error {
	return r.db.WithContext(ctx).Create(res).Error
}

func (r *repository) DeleteReservation(ctx context.Context, reservationID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Reservation{}, "id = ?", reservationID).Error
}

func (r *repository) GetContribution(ctx context.Context, giftID, contributionID uuid.UUID) (*models.Contribution, error) {
	var c models.Contribution
	err := r.db.WithContext(ctx).First(&c, "id = ? AND gift_id = ?", contributionID, giftID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) CreateContribution(ctx context.Context, c *models.Contribution) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *repository) DeleteContribution(ctx context.Context, contributionID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Contribution{}, "id = ?", contributionID).Error
}

func (r *repository) ListContributions(ctx context.Context, giftID uuid.UUID) ([]models.Contribution, error) {
	var contributions []models.Contribution
	if err := r.db.WithContext(ctx).
		Where("gift_id = ?", giftID).
		Order("created_at ASC").
		Find(&contributions).Error; err != nil {
		return nil, err
	}
	return contributions, nil
}

func (r *repository) SetGiftLedgerState(ctx context.Context, giftID uuid.UUID, status enums.GiftStatus, collected decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Gift{}).
		Where("id = ?", giftID).
		Updates(map[string]any{
			"status":    status,
			"collected": collected,
		}).Error
}

func (r *repository) DeleteGiftState(ctx context.Context, giftID uuid.UUID) error {
	if err := r.db.WithContext(ctx).Delete(&models.Reservation{}, "gift_id = ?", giftID).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Delete(&models.Contribution{}, "gift_id = ?", giftID).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(&models.Gift{}, "id = ?", giftID).Error
}
