package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/commission-service/internal/config"
	"github.com/spec-kit/commission-service/internal/domain"
	"github.com/spec-kit/commission-service/internal/events"
	"github.com/spec-kit/commission-service/internal/repository"
	apperrors "github.com/spec-kit/commission-service/pkg/util/errorutil"
)

// StatsCache stores computed monthly stats per principal. Invalidate bumps the
// principal's generation; Set must drop writes computed under an older one.
type StatsCache interface {
	Get(ctx context.Context, key string) ([]domain.MonthlyStat, bool, error)
	Generation(ctx context.Context, trackingKey string) (int64, error)
	Set(ctx context.Context, trackingKey, key string, generation int64, stats []domain.MonthlyStat, ttl time.Duration) error
	Invalidate(ctx context.Context, trackingKey string) error
}

// StatsService computes monthly commission statistics for agents and closers.
type StatsService struct {
	store  repository.Store
	cache  StatsCache
	cfg    config.StatsConfig
	logger *zap.Logger
	now    Clock
}

// NewStatsService constructs the service. A nil cache disables caching.
func NewStatsService(deps Dependencies, cache StatsCache, cfg config.StatsConfig, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{
		store:  deps.Store,
		cache:  cache,
		cfg:    cfg,
		logger: logger,
		now:    deps.clock(),
	}
}

// MonthlyStats returns one entry per calendar month for the last months
// months including the current one, most recent first. Zero selects the
// configured default.
func (s *StatsService) MonthlyStats(ctx context.Context, actor domain.Actor, kind domain.PrincipalKind, id string, months int) ([]domain.MonthlyStat, error) {
	if err := authorizeStats(actor, kind, id); err != nil {
		return nil, err
	}
	if months == 0 {
		months = s.cfg.DefaultMonths
	}
	if months < 1 || months > s.cfg.MaxMonths {
		return nil, apperrors.NewValidationError("months out of range", map[string]any{
			"months": months,
			"min":    1,
			"max":    s.cfg.MaxMonths,
		})
	}

	repos := s.store.Repos()
	filter := domain.SaleFilter{}
	switch kind {
	case domain.PrincipalAgent:
		if _, err := repos.Agents.GetByID(ctx, id); err != nil {
			return nil, lookupError(err, "agent", id)
		}
		filter.AgentID = &id
	case domain.PrincipalCloser:
		if _, err := repos.Closers.GetByID(ctx, id); err != nil {
			return nil, lookupError(err, "closer", id)
		}
		filter.CloserID = &id
	}

	now := s.now()
	key := statsKey(kind, id, months, now)
	if stats, ok := s.cached(ctx, key); ok {
		return stats, nil
	}

	tracking := trackingKey(kind, id)
	generation, cacheable := s.generation(ctx, tracking)

	from := domain.MonthWindow(now, months)
	filter.From = &from
	sales, err := repos.Sales.ListAll(ctx, filter)
	if err != nil {
		return nil, storeError(err)
	}
	stats := domain.BuildMonthlyStats(kind, sales, now, months)
	if cacheable {
		s.remember(ctx, tracking, key, generation, stats)
	}
	return stats, nil
}

// HandleEvent drops cached stats for every principal the event touches.
func (s *StatsService) HandleEvent(ctx context.Context, event events.Event) error {
	if s.cache == nil {
		return nil
	}
	if event.Principals.AgentID != "" {
		if err := s.cache.Invalidate(ctx, trackingKey(domain.PrincipalAgent, event.Principals.AgentID)); err != nil {
			return err
		}
	}
	if event.Principals.CloserID != nil {
		if err := s.cache.Invalidate(ctx, trackingKey(domain.PrincipalCloser, *event.Principals.CloserID)); err != nil {
			return err
		}
	}
	return nil
}

func (s *StatsService) cached(ctx context.Context, key string) ([]domain.MonthlyStat, bool) {
	if s.cache == nil || s.cfg.CacheTTL() == 0 {
		return nil, false
	}
	stats, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("stats cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return stats, ok
}

// generation must be read before the sales query so an invalidation racing
// the computation makes the later Set a no-op.
func (s *StatsService) generation(ctx context.Context, tracking string) (int64, bool) {
	if s.cache == nil || s.cfg.CacheTTL() == 0 {
		return 0, false
	}
	generation, err := s.cache.Generation(ctx, tracking)
	if err != nil {
		s.logger.Warn("stats cache generation read failed", zap.String("key", tracking), zap.Error(err))
		return 0, false
	}
	return generation, true
}

func (s *StatsService) remember(ctx context.Context, tracking, key string, generation int64, stats []domain.MonthlyStat) {
	if err := s.cache.Set(ctx, tracking, key, generation, stats, s.cfg.CacheTTL()); err != nil {
		s.logger.Warn("stats cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func authorizeStats(actor domain.Actor, kind domain.PrincipalKind, id string) error {
	switch kind {
	case domain.PrincipalAgent:
		if actor.IsAdmin() || actor.IsAgent(id) {
			return nil
		}
	case domain.PrincipalCloser:
		if actor.IsAdmin() || actor.IsCloser(id) {
			return nil
		}
	default:
		return apperrors.NewValidationError("unknown principal kind", map[string]any{"kind": string(kind)})
	}
	return apperrors.NewForbidden("stats are visible to admins and their owner only")
}

func trackingKey(kind domain.PrincipalKind, id string) string {
	return fmt.Sprintf("stats:keys:%s:%s", kind, id)
}

// statsKey includes the current month so entries roll over at month end.
func statsKey(kind domain.PrincipalKind, id string, months int, now time.Time) string {
	return fmt.Sprintf("stats:%s:%s:%d:%s", kind, id, months, domain.MonthKey(now))
}
