package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-countdown/internal/api/dto"
	"github.com/spec-kit/sla-countdown/internal/auth"
	"github.com/spec-kit/sla-countdown/internal/countdown"
	"github.com/spec-kit/sla-countdown/internal/service"
	apperrors "github.com/spec-kit/sla-countdown/pkg/util/errorutil"
)

const (
	streamBuffer           = 8
	defaultStreamHeartbeat = 15 * time.Second
)

// CountdownHandler serves live SLA countdowns to dashboard viewers.
type CountdownHandler struct {
	service   *service.CountdownService
	logger    *zap.Logger
	heartbeat time.Duration
}

// NewCountdownHandler constructs handler.
func NewCountdownHandler(countdownService *service.CountdownService, logger *zap.Logger) *CountdownHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CountdownHandler{service: countdownService, logger: logger, heartbeat: defaultStreamHeartbeat}
}

// Current GET /tickets/:id/sla.
func (h *CountdownHandler) Current(c *fiber.Ctx) error {
	status, live, err := h.service.Current(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCountdownStatusResponse(status, live)})
}

// PushSnapshot POST /tickets/:id/sla/snapshot.
func (h *CountdownHandler) PushSnapshot(c *fiber.Ctx) error {
	var req dto.SLASnapshotMessage
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticketID := c.Params("id")
	if req.TicketID != "" && req.TicketID != ticketID {
		return apperrors.NewValidationError("ticket_id does not match path", map[string]any{"ticket_id": req.TicketID})
	}
	req.TicketID = ticketID

	if err := h.service.PushSnapshot(c.UserContext(), req.ToDomain()); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"ticket_id": ticketID, "accepted": true}})
}

// Stream GET /tickets/:id/sla/stream.
//
// Sends a server-sent "tick" event per scheduler tick and a single "expired"
// event when the engine latches the ticket's deadline. A slow client loses
// ticks rather than holding up the scheduler.
func (h *CountdownHandler) Stream(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("principal required")
	}
	viewerID := principal.SubjectID + "/" + uuid.NewString()

	updates := make(chan countdown.Breakdown, streamBuffer)
	expired := make(chan struct{}, 1)
	handle, err := h.service.Watch(c.UserContext(), c.Params("id"), viewerID, func(b countdown.Breakdown) {
		select {
		case updates <- b:
		default:
		}
	}, func(string) {
		select {
		case expired <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ticketID := handle.ItemID()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer h.service.Unwatch(context.Background(), handle, viewerID)
		if err := h.pump(w, ticketID, updates, expired); err != nil {
			h.logger.Debug("sla stream closed", zap.String("ticket_id", ticketID), zap.String("viewer", viewerID), zap.Error(err))
		}
	})
	return nil
}

// pump writes updates until the client goes away or updates is closed. An
// expiry signal that is already pending is written ahead of the next tick.
func (h *CountdownHandler) pump(w *bufio.Writer, ticketID string, updates <-chan countdown.Breakdown, expired <-chan struct{}) error {
	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	writeExpired := func() error {
		return writeEvent(w, "expired", fiber.Map{"ticket_id": ticketID})
	}
	for {
		select {
		case <-expired:
			if err := writeExpired(); err != nil {
				return err
			}
		case b, ok := <-updates:
			if !ok {
				return nil
			}
			select {
			case <-expired:
				if err := writeExpired(); err != nil {
					return err
				}
			default:
			}
			if err := writeEvent(w, "tick", dto.NewBreakdownResponse(b)); err != nil {
				return err
			}
		case <-heartbeat.C:
			if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return err
			}
		}
	}
}

func writeEvent(w *bufio.Writer, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	return w.Flush()
}
