package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-countdown/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// Group runs background workers and waits for them on shutdown.
type Group struct {
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewGroup creates an empty worker group.
func NewGroup(logger *zap.Logger) *Group {
	return &Group{logger: logger}
}

// Go starts fn in its own goroutine. A returned error is logged.
func (g *Group) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := fn(ctx); err != nil {
			g.logger.Error("worker stopped", zap.String("worker", name), zap.Error(err))
			return
		}
		g.logger.Debug("worker stopped", zap.String("worker", name))
	}()
}

// Wait blocks until every worker returned.
func (g *Group) Wait() {
	g.wg.Wait()
}
