package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-countdown/internal/repository"
	"github.com/spec-kit/sla-countdown/internal/service"
)

// SnapshotPoller periodically refreshes the authoritative SLA values of every
// watched ticket so that the engine never has to fetch anything itself.
type SnapshotPoller struct {
	countdowns *service.CountdownService
	snapshots  repository.SLASnapshotRepository
	interval   time.Duration
	batchSize  int
	logger     *zap.Logger
}

// NewSnapshotPoller constructs the poller.
func NewSnapshotPoller(countdowns *service.CountdownService, snapshots repository.SLASnapshotRepository, interval time.Duration, batchSize int, logger *zap.Logger) *SnapshotPoller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return &SnapshotPoller{
		countdowns: countdowns,
		snapshots:  snapshots,
		interval:   interval,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// Run polls until ctx is cancelled. It returns early when no snapshot store
// is configured.
func (p *SnapshotPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			applied, err := p.PollOnce(ctx)
			if errors.Is(err, repository.ErrNoPool) {
				p.logger.Warn("sla snapshot poller disabled", zap.Error(err))
				return
			}
			if err != nil {
				p.logger.Error("sla snapshot poll failed", zap.Error(err))
				continue
			}
			p.logger.Debug("sla snapshots refreshed", zap.Int("applied", applied))
		}
	}
}

// PollOnce refreshes all watched tickets and returns how many snapshots were applied.
func (p *SnapshotPoller) PollOnce(ctx context.Context) (int, error) {
	if p.snapshots == nil {
		return 0, repository.ErrNoPool
	}
	ids := p.countdowns.TrackedTickets()
	applied := 0
	for start := 0; start < len(ids); start += p.batchSize {
		end := start + p.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		snaps, err := p.snapshots.ListByTicketIDs(ctx, ids[start:end])
		if err != nil {
			return applied, err
		}
		for _, snap := range snaps {
			ok, err := p.countdowns.ApplySnapshot(ctx, snap, service.SourcePoll)
			if err != nil {
				p.logger.Warn("apply polled snapshot", zap.String("ticket_id", snap.TicketID), zap.Error(err))
				continue
			}
			if ok {
				applied++
			}
		}
	}
	return applied, nil
}
