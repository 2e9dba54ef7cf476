package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"giveaway/internal/models"
)

// DiscardListSource supplies the raw lines of the discard list. A missing
// list is not an error: it yields no lines.
type DiscardListSource interface {
	ReadLines() ([]string, error)
}

// Options selects what goes into the pool.
type Options struct {
	Channel        string
	Sources        models.SourceSet
	ExtraTickets   bool
	DropModerators bool
	MaxPages       int
}

// GiveawayService builds the ticket pool for a channel and draws from it.
type GiveawayService struct {
	mu        sync.RWMutex
	opts      Options
	collector *Collector
	discard   DiscardListSource
	engine    *DrawEngine
	observer  Observer
	tracer    trace.Tracer

	pool     models.Pool
	prepared bool
	results  []*models.DrawResult
}

// NewGiveawayService creates and initializes a new GiveawayService.
func NewGiveawayService(opts Options, client PlatformClient, discard DiscardListSource, engine *DrawEngine, observer Observer) *GiveawayService {
	if observer == nil {
		observer = nopObserver{}
	}
	return &GiveawayService{
		opts:      opts,
		collector: NewCollector(client, opts.MaxPages, observer),
		discard:   discard,
		engine:    engine,
		observer:  observer,
		tracer:    otel.Tracer("giveaway/services"),
	}
}

// needsChatters reports whether the viewers/moderators lists are required:
// as a source, for extra tickets, or to know whom to drop.
func (s *GiveawayService) needsChatters() bool {
	return s.opts.Sources.Has(models.Viewers) || s.opts.Sources.Has(models.Moderators) ||
		s.opts.ExtraTickets || s.opts.DropModerators
}

// Prepare collects every source, builds the pool and applies the exclusion
// rules. On any collaborator error the previous pool is kept and the error
// is returned.
func (s *GiveawayService) Prepare(ctx context.Context) (models.Pool, error) {
	ctx, span := s.tracer.Start(ctx, "GiveawayService.Prepare",
		trace.WithAttributes(attribute.String("giveaway.channel", s.opts.Channel)))
	defer span.End()

	pool, err := s.prepare(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("giveaway.pool_size", len(pool)))

	s.mu.Lock()
	s.pool = pool
	s.prepared = true
	s.mu.Unlock()

	return pool.Clone(), nil
}

func (s *GiveawayService) prepare(ctx context.Context) (models.Pool, error) {
	collected, err := s.collector.Collect(ctx, s.opts.Channel, s.opts.Sources, s.needsChatters())
	if err != nil {
		return nil, err
	}

	pool := BuildPool(s.opts.Sources, collected, s.opts.ExtraTickets)
	s.observer.ObservePool("built", len(pool))

	lines, err := s.discard.ReadLines()
	if err != nil {
		return nil, fmt.Errorf("read discard list: %w", err)
	}
	discard := DiscardSet(lines)
	for d, near := range TypoHints(pool, discard) {
		logger.Warningf("Discarded name %s matches no ticket; did you mean %v?", d, near)
	}

	moderators := models.NewTicketSet(NormalizeAll(collected[models.Moderators])...)
	pool = Filter(pool, discard, moderators, s.opts.DropModerators)
	s.observer.ObservePool("filtered", len(pool))

	logger.Infof("Tickets: %s", formatCounts(pool))
	return pool, nil
}

// Pool returns a copy of the current pool.
func (s *GiveawayService) Pool() models.Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool.Clone()
}

// Draw selects a winner from the current pool and records the result. It
// fails with models.ErrPoolNotBuilt until Prepare has succeeded once.
func (s *GiveawayService) Draw() (*models.DrawResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.prepared {
		return nil, models.ErrPoolNotBuilt
	}
	winner, err := s.engine.DrawOne(s.pool)
	if err != nil {
		return nil, err
	}
	s.observer.ObserveDraw("single")

	result := &models.DrawResult{
		ID:       uuid.NewString(),
		Channel:  s.opts.Channel,
		Winner:   winner,
		Tickets:  s.pool.Counts()[winner],
		PoolSize: len(s.pool),
		At:       time.Now().UTC(),
	}
	s.results = append(s.results, result)
	return result, nil
}

// Distribution resamples the current pool trials times.
func (s *GiveawayService) Distribution(trials int) (models.DistributionReport, error) {
	s.mu.RLock()
	pool, prepared := s.pool.Clone(), s.prepared
	s.mu.RUnlock()
	if !prepared {
		return models.DistributionReport{}, models.ErrPoolNotBuilt
	}
	dist, err := s.engine.DrawDistribution(pool, trials)
	if err != nil {
		return models.DistributionReport{}, err
	}
	s.observer.ObserveDraw("distribution")
	return models.NewDistributionReport(pool, dist, trials), nil
}

// Results returns the draws made so far, oldest first.
func (s *GiveawayService) Results() []*models.DrawResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.DrawResult, len(s.results))
	copy(out, s.results)
	return out
}

// ClearResults forgets every recorded draw.
func (s *GiveawayService) ClearResults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = nil
	logger.Infof("Cleared draw results for %s", s.opts.Channel)
}

// Channel returns the channel this service draws for.
func (s *GiveawayService) Channel() string { return s.opts.Channel }

func formatCounts(pool models.Pool) string {
	counts := pool.Counts()
	keys := make([]string, 0, len(counts))
	for t := range counts {
		keys = append(keys, string(t))
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[models.Ticket(k)]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
