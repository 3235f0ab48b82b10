package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wishlane/wishlane-backend/internal/hub"
	"github.com/wishlane/wishlane-backend/internal/ledger/keylock"
	"github.com/wishlane/wishlane-backend/pkg/config"
	"github.com/wishlane/wishlane-backend/pkg/db/models"
	"github.com/wishlane/wishlane-backend/pkg/enums"
	pkgerrors "github.com/wishlane/wishlane-backend/pkg/errors"
	"github.com/wishlane/wishlane-backend/pkg/logger"
	"github.com/wishlane/wishlane-backend/pkg/metrics"
)

// Service owns the authoritative reservation and contribution state of
// gifts. All mutations run inside a per-gift critical section and a
// database transaction; readers never observe a state that violates
// the single-reservation or total-within-price invariants. Events are
// published after commit but before the gift lock is released, so the
// per-gift publish order matches the commit order.
type Service interface {
	Reserve(ctx context.Context, giftID uuid.UUID, actor Actor) (*models.Reservation, error)
	CancelReservation(ctx context.Context, giftID uuid.UUID, actor Actor) error
	Contribute(ctx context.Context, giftID uuid.UUID, actor Actor, amount decimal.Decimal) (*ContributionResult, error)
	WithdrawContribution(ctx context.Context, giftID, contributionID uuid.UUID, actor Actor) error
	RemoveGift(ctx context.Context, giftID uuid.UUID) error
}

type service struct {
	db        *gorm.DB
	repo      Repository
	locks     *keylock.KeyedLock
	publisher Publisher
	metrics   *metrics.LedgerMetrics
	logg      *logger.Logger
	cfg       config.ReservationsConfig
}

// ServiceParams collects the ledger service dependencies.
type ServiceParams struct {
	DB        *gorm.DB
	Repo      Repository
	Publisher Publisher
	Metrics   *metrics.LedgerMetrics
	Logger    *logger.Logger
	Config    config.ReservationsConfig
}

// NewService wires the gift ledger. Metrics may be nil.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger database required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger repository required")
	}
	if params.Publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger publisher required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger logger required")
	}
	if params.Config.LockWait <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger lock wait must be positive")
	}
	return &service{
		db:        params.DB,
		repo:      params.Repo,
		locks:     keylock.New(),
		publisher: params.Publisher,
		metrics:   params.Metrics,
		logg:      params.Logger,
		cfg:       params.Config,
	}, nil
}

func (s *service) Reserve(ctx context.Context, giftID uuid.UUID, actor Actor) (*models.Reservation, error) {
	if giftID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gift id required")
	}
	if err := s.authorizeActor(actor); err != nil {
		return nil, err
	}

	start := time.Now()
	var reservation *models.Reservation
	var wishlistID uuid.UUID

	err := s.withGiftLock(ctx, giftID, func() error {
		txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			gift, err := repo.GetGift(ctx, giftID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load gift")
			}
			if gift == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "gift not found")
			}
			if gift.Splittable {
				s.metrics.IncRejection("reserve", "not_reservable")
				return pkgerrors.New(pkgerrors.CodeNotReservable, "splittable gifts are funded via contributions")
			}
			if gift.Status != enums.GiftStatusOpen {
				s.metrics.IncRejection("reserve", "already_reserved")
				return pkgerrors.New(pkgerrors.CodeAlreadyReserved, "gift is already reserved")
			}

			res := &models.Reservation{
				ID:        uuid.New(),
				GiftID:    giftID,
				UserID:    actor.UserID,
				CreatedAt: time.Now().UTC(),
			}
			if actor.IsAnonymous() {
				token := actor.GuestToken
				res.GuestToken = &token
				res.GuestName = actor.displayName()
			}
			if err := repo.CreateReservation(ctx, res); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservation")
			}
			if err := repo.SetGiftLedgerState(ctx, giftID, enums.GiftStatusReserved, gift.Collected); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update gift status")
			}

			reservation = res
			wishlistID = gift.WishlistID
			return nil
		})
		if txErr != nil {
			return txErr
		}

		// Publish before the gift lock is released so subscribers see
		// events in commit order.
		s.publisher.Publish(ctx, hub.NewEvent(enums.EventGiftReserved, giftID, wishlistID, map[string]any{
			"reserved_by": actor.Name,
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveOp("reserve", time.Since(start))
	return reservation, nil
}

func (s *service) CancelReservation(ctx context.Context, giftID uuid.UUID, actor Actor) error {
	if giftID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "gift id required")
	}
	if err := s.authorizeActor(actor); err != nil {
		return err
	}

	start := time.Now()
	var wishlistID uuid.UUID

	err := s.withGiftLock(ctx, giftID, func() error {
		txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			gift, err := repo.GetGift(ctx, giftID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load gift")
			}
			if gift == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "gift not found")
			}

			res, err := repo.GetReservation(ctx, giftID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
			}
			if res == nil {
				s.metrics.IncRejection("cancel", "not_reserved")
				return pkgerrors.New(pkgerrors.CodeNotReserved, "gift has no active reservation")
			}

			if !actor.ownsReservation(res) {
				allowed := false
				if s.cfg.OwnerCancel && actor.UserID != nil {
					owner, err := repo.GetWishlistOwner(ctx, gift.WishlistID)
					if err != nil {
						return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wishlist owner")
					}
					allowed = owner == *actor.UserID
				}
				if !allowed {
					s.metrics.IncRejection("cancel", "not_owner")
					return pkgerrors.New(pkgerrors.CodeForbidden, "only the reserver may cancel")
				}
			}

			if err := repo.DeleteReservation(ctx, res.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete reservation")
			}
			if err := repo.SetGiftLedgerState(ctx, giftID, enums.GiftStatusOpen, gift.Collected); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update gift status")
			}

			wishlistID = gift.WishlistID
			return nil
		})
		if txErr != nil {
			return txErr
		}

		s.publisher.Publish(ctx, hub.NewEvent(enums.EventGiftUnreserved, giftID, wishlistID, nil))
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.ObserveOp("cancel", time.Since(start))
	return nil
}

func (s *service) Contribute(ctx context.Context, giftID uuid.UUID, actor Actor, amount decimal.Decimal) (*ContributionResult, error) {
	if giftID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gift id required")
	}
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if err := s.authorizeActor(actor); err != nil {
		return nil, err
	}

	start := time.Now()
	var result *ContributionResult
	var wishlistID uuid.UUID

	err := s.withGiftLock(ctx, giftID, func() error {
		txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			gift, err := repo.GetGift(ctx, giftID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load gift")
			}
			if gift == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "gift not found")
			}
			if !gift.Splittable {
				s.metrics.IncRejection("contribute", "not_contributable")
				return pkgerrors.New(pkgerrors.CodeNotContributable, "gift is reserved outright, not funded")
			}

			remaining := gift.Remaining()
			if amount.GreaterThan(remaining) {
				s.metrics.IncRejection("contribute", "would_exceed_price")
				return pkgerrors.New(pkgerrors.CodeWouldExceedPrice, "amount exceeds the remaining goal").
					WithDetails(map[string]any{"remaining": remaining.String()})
			}

			contribution := &models.Contribution{
				ID:        uuid.New(),
				GiftID:    giftID,
				UserID:    actor.UserID,
				Amount:    amount,
				CreatedAt: time.Now().UTC(),
			}
			if actor.IsAnonymous() {
				token := actor.GuestToken
				contribution.GuestToken = &token
				contribution.GuestName = actor.displayName()
			}
			if err := repo.CreateContribution(ctx, contribution); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create contribution")
			}

			collected := gift.Collected.Add(amount)
			funded := collected.Equal(gift.Price)
			status := gift.Status
			if funded {
				status = enums.GiftStatusFunded
			}
			if err := repo.SetGiftLedgerState(ctx, giftID, status, collected); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update gift total")
			}

			result = &ContributionResult{
				Contribution: contribution,
				Collected:    collected,
				Remaining:    gift.Price.Sub(collected),
				Funded:       funded,
			}
			wishlistID = gift.WishlistID
			return nil
		})
		if txErr != nil {
			return txErr
		}

		payload := map[string]any{
			"amount":         amount.String(),
			"collected":      result.Collected.String(),
			"remaining":      result.Remaining.String(),
			"contributed_by": actor.Name,
		}
		s.publisher.Publish(ctx, hub.NewEvent(enums.EventGiftContributed, giftID, wishlistID, payload))
		if result.Funded {
			s.metrics.IncGiftFunded()
			s.publisher.Publish(ctx, hub.NewEvent(enums.EventGiftFunded, giftID, wishlistID, map[string]any{
				"collected": result.Collected.String(),
			}))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveOp("contribute", time.Since(start))
	return result, nil
}

func (s *service) WithdrawContribution(ctx context.Context, giftID, contributionID uuid.UUID, actor Actor) error {
	if giftID == uuid.Nil || contributionID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "gift id and contribution id required")
	}
	if err := s.authorizeActor(actor); err != nil {
		return err
	}

	start := time.Now()
	var wishlistID uuid.UUID
	var collected decimal.Decimal
	var unfunded bool

	err := s.withGiftLock(ctx, giftID, func() error {
		txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			gift, err := repo.GetGift(ctx, giftID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load gift")
			}
			if gift == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "gift not found")
			}

			contribution, err := repo.GetContribution(ctx, giftID, contributionID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contribution")
			}
			if contribution == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "contribution not found")
			}
			if !actor.ownsContribution(contribution) {
				s.metrics.IncRejection("withdraw", "not_owner")
				return pkgerrors.New(pkgerrors.CodeForbidden, "only the contributor may withdraw")
			}

			if err := repo.DeleteContribution(ctx, contributionID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete contribution")
			}

			collected = gift.Collected.Sub(contribution.Amount)
			if collected.IsNegative() {
				collected = decimal.Zero
			}
			status := gift.Status
			if gift.Status == enums.GiftStatusFunded && collected.LessThan(gift.Price) {
				status = enums.GiftStatusOpen
				unfunded = true
			}
			if err := repo.SetGiftLedgerState(ctx, giftID, status, collected); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update gift total")
			}

			wishlistID = gift.WishlistID
			return nil
		})
		if txErr != nil {
			return txErr
		}

		s.publisher.Publish(ctx, hub.NewEvent(enums.EventGiftContributed, giftID, wishlistID, map[string]any{
			"collected": collected.String(),
			"withdrawn": true,
		}))
		if unfunded {
			s.publisher.Publish(ctx, hub.NewEvent(enums.EventGiftUnfunded, giftID, wishlistID, map[string]any{
				"collected": collected.String(),
			}))
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.ObserveOp("withdraw", time.Since(start))
	return nil
}

func (s *service) RemoveGift(ctx context.Context, giftID uuid.UUID) error {
	if giftID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "gift id required")
	}

	start := time.Now()
	var wishlistID uuid.UUID

	err := s.withGiftLock(ctx, giftID, func() error {
		txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			gift, err := repo.GetGift(ctx, giftID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load gift")
			}
			if gift == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "gift not found")
			}
			if err := repo.DeleteGiftState(ctx, giftID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete gift state")
			}
			wishlistID = gift.WishlistID
			return nil
		})
		if txErr != nil {
			return txErr
		}

		s.publisher.Publish(ctx, hub.NewEvent(enums.EventGiftRemoved, giftID, wishlistID, nil))
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.ObserveOp("remove", time.Since(start))
	return nil
}

// withGiftLock runs fn inside the gift's critical section, waiting at
// most the configured bound before failing with a retryable busy error.
func (s *service) withGiftLock(ctx context.Context, giftID uuid.UUID, fn func() error) error {
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.LockWait)
	defer cancel()

	err := s.locks.WithLock(waitCtx, giftID.String(), fn)
	if errors.Is(err, keylock.ErrWaitTimeout) {
		s.metrics.IncLockTimeout()
		s.logg.Warn(s.logg.WithGiftID(ctx, giftID.String()), "gift lock wait timed out")
		return pkgerrors.New(pkgerrors.CodeBusy, "gift is busy")
	}
	return err
}

func (s *service) authorizeActor(actor Actor) error {
	if !actor.IsAnonymous() {
		return nil
	}
	if !s.cfg.AllowAnonymous {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if actor.GuestToken == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "guest token required")
	}
	return nil
}
