package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/sla-countdown/internal/config"
)

func TestNewLogger_levels_and_mode(t *testing.T) {
	logger, err := NewLogger(config.AppConfig{Name: "svc", Env: "production"}, config.LoggerConfig{Level: "WARN"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	assert.NotPanics(t, func() { logger.DPanic("tracked item without observers") })

	dev, err := NewLogger(config.AppConfig{Name: "svc", Env: "development"}, config.LoggerConfig{Level: "bogus"})
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zapcore.InfoLevel))
	assert.Panics(t, func() { dev.DPanic("tracked item without observers") })
}

func TestMetrics_nil_safe(t *testing.T) {
	var m *Metrics
	m.RecordTick(1)
	m.RecordResync()
	m.RecordExpiration()
	m.RecordRegistration()
	m.RecordUnregistration()
	m.RecordRequest("/", "GET", 200, 0)
	m.RecordError("/", "GET", "X")
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	metrics := NewMetrics()

	app := fiber.New()
	app.Use(RequestLogger(zap.New(core), metrics))
	app.Get("/tickets/:id/sla", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/tickets/T1/sla", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "/tickets/T1/sla", entries[0].ContextMap()["path"])
	assert.EqualValues(t, 204, entries[0].ContextMap()["status"])
	assert.Len(t, metrics.Snapshot().Requests, 1)
}
