package stats

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wishlane/wishlane-backend/pkg/config"
	"github.com/wishlane/wishlane-backend/pkg/db/models"
	pkgerrors "github.com/wishlane/wishlane-backend/pkg/errors"
	"github.com/wishlane/wishlane-backend/pkg/logger"
)

const (
	cacheKey        = "stats:landing"
	recentScanLimit = 10
	maxContributors = 5
)

// ContributorSummary is one recent contributor on the landing page.
// Only the display name leaks; amounts and gifts stay private.
type ContributorSummary struct {
	Name string `json:"name"`
}

// LandingStats is the public summary shown on the landing page.
type LandingStats struct {
	TotalCollected     decimal.Decimal      `json:"total_collected"`
	TotalGoal          decimal.Decimal      `json:"total_goal"`
	RecentContributors []ContributorSummary `json:"recent_contributors"`
}

type cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Service computes the landing page summary.
type Service interface {
	Landing(ctx context.Context) (*LandingStats, error)
}

type service struct {
	db    *gorm.DB
	cache cache
	logg  *logger.Logger
	ttl   time.Duration
}

// ServiceParams collects the stats service dependencies. Cache may be
// nil, in which case every request hits the database.
type ServiceParams struct {
	DB     *gorm.DB
	Cache  cache
	Logger *logger.Logger
	Config config.StatsConfig
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stats database required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stats logger required")
	}
	return &service{
		db:    params.DB,
		cache: params.Cache,
		logg:  params.Logger,
		ttl:   params.Config.CacheTTL,
	}, nil
}

func (s *service) Landing(ctx context.Context) (*LandingStats, error) {
	if cached := s.fromCache(ctx); cached != nil {
		return cached, nil
	}

	stats, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}
	s.store(ctx, stats)
	return stats, nil
}

func (s *service) compute(ctx context.Context) (*LandingStats, error) {
	stats := &LandingStats{
		TotalCollected:     decimal.Zero,
		TotalGoal:          decimal.Zero,
		RecentContributors: []ContributorSummary{},
	}

	var collected decimal.NullDecimal
	err := s.db.WithContext(ctx).
		Model(&models.Contribution{}).
		Select("SUM(amount)").
		Scan(&collected).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum contributions")
	}
	if collected.Valid {
		stats.TotalCollected = collected.Decimal
	}

	var goal decimal.NullDecimal
	err = s.db.WithContext(ctx).
		Model(&models.Gift{}).
		Select("SUM(price)").
		Scan(&goal).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum goals")
	}
	if goal.Valid {
		stats.TotalGoal = goal.Decimal
	}

	contributors, err := s.recentContributors(ctx)
	if err != nil {
		return nil, err
	}
	stats.RecentContributors = contributors
	return stats, nil
}

// recentContributors scans the newest contributions and keeps the first
// few distinct actors.
func (s *service) recentContributors(ctx context.Context) ([]ContributorSummary, error) {
	var recent []models.Contribution
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(recentScanLimit).
		Find(&recent).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recent contributions")
	}

	userIDs := make([]uuid.UUID, 0, len(recent))
	seenUsers := map[uuid.UUID]struct{}{}
	for _, c := range recent {
		if c.UserID == nil {
			continue
		}
		if _, ok := seenUsers[*c.UserID]; ok {
			continue
		}
		seenUsers[*c.UserID] = struct{}{}
		userIDs = append(userIDs, *c.UserID)
	}

	names := map[uuid.UUID]string{}
	if len(userIDs) > 0 {
		var users []models.User
		err := s.db.WithContext(ctx).
			Select("id", "name").
			Where("id IN ?", userIDs).
			Find(&users).Error
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve contributor names")
		}
		for _, u := range users {
			names[u.ID] = u.Name
		}
	}

	out := []ContributorSummary{}
	seen := map[string]struct{}{}
	for _, c := range recent {
		name := "Guest"
		switch {
		case c.UserID != nil:
			if n := names[*c.UserID]; n != "" {
				name = n
			}
		case c.GuestName != nil && *c.GuestName != "":
			name = *c.GuestName
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, ContributorSummary{Name: name})
		if len(out) >= maxContributors {
			break
		}
	}
	return out, nil
}

func (s *service) fromCache(ctx context.Context) *LandingStats {
	if s.cache == nil || s.ttl <= 0 {
		return nil
	}
	raw, err := s.cache.Get(ctx, cacheKey)
	if err != nil || raw == "" {
		return nil
	}
	var stats LandingStats
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "discarding malformed stats cache entry")
		return nil
	}
	return &stats
}

func (s *service) store(ctx context.Context, stats *LandingStats) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey, string(raw), s.ttl); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "failed to cache landing stats")
	}
}
