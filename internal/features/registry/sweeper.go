package registry

import (
	"context"
	"sync"
	"time"

	"spectra-bot-backend/internal/common/logger"
	"spectra-bot-backend/internal/common/metrics"
)

// Handler completes one claimed entity. Errors are logged and counted; the
// sweep moves on to the next entity regardless.
type Handler func(ctx context.Context, entity *TimedEntity) error

// Sweeper runs one recurring timer for one entity kind. Claimed entities
// are processed sequentially inside the tick, so ticks for a kind never
// overlap: a slow handler delays the next tick instead of racing it.
type Sweeper struct {
	kind         Kind
	interval     time.Duration
	entityBudget time.Duration
	store        *Store
	handle       Handler
	metrics      *metrics.SweepMetrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSweeper(kind Kind, interval, entityBudget time.Duration, store *Store, handle Handler, m *metrics.SweepMetrics) *Sweeper {
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		kind:         kind,
		interval:     interval,
		entityBudget: entityBudget,
		store:        store,
		handle:       handle,
		metrics:      m,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (s *Sweeper) Start() {
	logger.Info().
		Str("kind", string(s.kind)).
		Dur("interval", s.interval).
		Msg("Starting sweeper")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Tick(time.Now())
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	logger.Info().Str("kind", string(s.kind)).Msg("Stopping sweeper")
	s.cancel()
	s.wg.Wait()
	logger.Info().Str("kind", string(s.kind)).Msg("Sweeper stopped")
}

// Tick claims every due entity and hands each to the handler with a bounded
// per-entity budget. Exposed so shutdown hooks and tests can run a sweep
// without the timer.
func (s *Sweeper) Tick(now time.Time) {
	claimed := s.store.ClaimExpired(s.kind, now)
	if len(claimed) == 0 {
		return
	}

	start := time.Now()
	s.metrics.AddClaimed(string(s.kind), len(claimed))
	logger.Debug().
		Str("kind", string(s.kind)).
		Int("claimed", len(claimed)).
		Msg("Sweep tick claimed expired entities")

	for _, entity := range claimed {
		ctx, cancel := context.WithTimeout(s.ctx, s.entityBudget)
		err := s.handle(ctx, entity)
		cancel()
		if err != nil {
			s.metrics.IncFailure(string(s.kind))
			logger.Error().
				Err(err).
				Str("kind", string(s.kind)).
				Str("id", entity.ID).
				Msg("Failed to complete expired entity")
		}
	}

	s.metrics.ObserveDuration(string(s.kind), time.Since(start))
}
