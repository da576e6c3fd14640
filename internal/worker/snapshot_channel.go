package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-countdown/internal/api/dto"
	"github.com/spec-kit/sla-countdown/internal/domain"
	"github.com/spec-kit/sla-countdown/internal/persistence"
	"github.com/spec-kit/sla-countdown/internal/service"
)

// RedisSnapshotPublisher broadcasts snapshots on a redis pub/sub channel.
type RedisSnapshotPublisher struct {
	redis   *persistence.Redis
	channel string
}

// NewRedisSnapshotPublisher returns nil when redis is not configured, so the
// countdown service falls back to local application.
func NewRedisSnapshotPublisher(redis *persistence.Redis, channel string) *RedisSnapshotPublisher {
	if redis == nil || redis.Client == nil || channel == "" {
		return nil
	}
	return &RedisSnapshotPublisher{redis: redis, channel: channel}
}

// PublishSnapshot implements service.SnapshotPublisher.
func (p *RedisSnapshotPublisher) PublishSnapshot(ctx context.Context, snap domain.SLASnapshot) error {
	if p == nil {
		return persistence.ErrRedisNotConfigured
	}
	payload, err := json.Marshal(dto.NewSLASnapshotMessage(snap))
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return p.redis.Publish(ctx, p.channel, payload)
}

// SnapshotApplier receives decoded snapshots.
type SnapshotApplier interface {
	ApplySnapshot(ctx context.Context, snap domain.SLASnapshot, source string) (bool, error)
}

// SnapshotSubscriber applies snapshots broadcast by any replica.
type SnapshotSubscriber struct {
	redis   *persistence.Redis
	channel string
	applier SnapshotApplier
	logger  *zap.Logger
}

// NewSnapshotSubscriber constructs the subscriber.
func NewSnapshotSubscriber(redis *persistence.Redis, channel string, applier SnapshotApplier, logger *zap.Logger) *SnapshotSubscriber {
	return &SnapshotSubscriber{redis: redis, channel: channel, applier: applier, logger: logger}
}

// Run consumes the channel until ctx is cancelled.
func (s *SnapshotSubscriber) Run(ctx context.Context) error {
	sub, err := s.redis.Subscribe(ctx, s.channel)
	if err != nil {
		if errors.Is(err, persistence.ErrRedisNotConfigured) {
			s.logger.Warn("snapshot subscriber disabled", zap.Error(err))
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	defer sub.Close()
	s.logger.Info("listening for sla snapshots", zap.String("channel", s.channel))

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if err := s.Handle(ctx, []byte(msg.Payload)); err != nil {
				s.logger.Warn("skipping sla snapshot message", zap.Error(err))
			}
		}
	}
}

// Handle decodes and applies one broadcast payload.
func (s *SnapshotSubscriber) Handle(ctx context.Context, payload []byte) error {
	var msg dto.SLASnapshotMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if msg.TicketID == "" {
		return errors.New("snapshot without ticket_id")
	}
	_, err := s.applier.ApplySnapshot(ctx, msg.ToDomain(), service.SourceBroadcast)
	return err
}
