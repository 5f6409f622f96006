package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/luiscanel/service-desk/internal/domain"
	"github.com/luiscanel/service-desk/internal/observability"
	"github.com/luiscanel/service-desk/internal/service"
)

// OpenTicketLister pages unresolved tickets.
type OpenTicketLister interface {
	ListOpen(ctx context.Context, afterID string, limit int) ([]domain.Ticket, error)
}

// TicketChecker evaluates one ticket and raises its breaches.
type TicketChecker interface {
	CheckTicket(ctx context.Context, ticket *domain.Ticket) (*service.TicketSlaReport, error)
}

// SweeperConfig tunes the breach sweep.
type SweeperConfig struct {
	Interval    time.Duration
	Concurrency int
	BatchSize   int
}

// SlaSweeper periodically evaluates every open ticket so breaches are raised
// even when nobody asks for a ticket's status.
type SlaSweeper struct {
	tickets OpenTicketLister
	checker TicketChecker
	metrics *observability.Metrics
	logger  *zap.Logger
	cfg     SweeperConfig
}

// NewSlaSweeper builds a sweeper. Zero values in cfg fall back to defaults.
func NewSlaSweeper(tickets OpenTicketLister, checker TicketChecker, metrics *observability.Metrics, logger *zap.Logger, cfg SweeperConfig) *SlaSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	return &SlaSweeper{
		tickets: tickets,
		checker: checker,
		metrics: metrics,
		logger:  logger.Named("sla_sweeper"),
		cfg:     cfg,
	}
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
func (s *SlaSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("sla sweeper started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("concurrency", s.cfg.Concurrency))
	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("sla sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			s.logger.Info("sla sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce evaluates every open ticket once. Per-ticket failures are logged and
// counted; only listing failures and cancellation abort the pass.
func (s *SlaSweeper) RunOnce(ctx context.Context) (stats observability.SweepStats, err error) {
	stats.StartedAt = time.Now().UTC()
	var evaluated, breaches, failures atomic.Int64

	defer func() {
		stats.Duration = time.Since(stats.StartedAt)
		stats.Evaluated = int(evaluated.Load())
		stats.Breaches = int(breaches.Load())
		stats.Failures = int(failures.Load())
		s.metrics.RecordSweep(stats)
	}()

	afterID := ""
	for {
		if err = ctx.Err(); err != nil {
			return stats, err
		}
		var page []domain.Ticket
		page, err = s.tickets.ListOpen(ctx, afterID, s.cfg.BatchSize)
		if err != nil {
			return stats, fmt.Errorf("list open tickets after %q: %w", afterID, err)
		}

		var g errgroup.Group
		g.SetLimit(s.cfg.Concurrency)
		for i := range page {
			ticket := &page[i]
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				report, err := s.checker.CheckTicket(ctx, ticket)
				if report != nil {
					evaluated.Add(1)
					breaches.Add(int64(len(report.Breaches)))
				}
				if err != nil {
					failures.Add(1)
					s.logger.Warn("sla check failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
				}
				return nil
			})
		}
		_ = g.Wait()

		if len(page) < s.cfg.BatchSize {
			break
		}
		afterID = page[len(page)-1].ID
	}

	s.logger.Info("sla sweep finished",
		zap.Int64("evaluated", evaluated.Load()),
		zap.Int64("breaches", breaches.Load()),
		zap.Int64("failures", failures.Load()))
	return stats, nil
}
