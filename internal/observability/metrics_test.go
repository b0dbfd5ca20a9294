package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/a", "GET", 200, 2*time.Millisecond)
	m.RecordRequest("/a", "GET", 200, 4*time.Millisecond)
	m.RecordError("/a", "GET", "NOT_FOUND")
	m.RecordTransition("PENDING", "RESOLVED")

	snap := m.Snapshot()

	assert.Equal(t, int64(2), snap.Requests["/a|GET|200"])
	assert.Equal(t, int64(3000), snap.AvgLatency["/a|GET|200"])
	assert.Equal(t, int64(1), snap.Errors["/a|GET|NOT_FOUND"])
	assert.Equal(t, int64(1), snap.Transitions["PENDING->RESOLVED"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/a", "GET", 200, time.Millisecond)
	m.RecordTransition("PENDING", "RESOLVED")
	assert.Empty(t, m.Snapshot().Requests)
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	metrics := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), metrics))
	app.Get("/items/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	resp, err := app.Test(httptest.NewRequest("GET", "/items/7", nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
	assert.Equal(t, int64(1), metrics.Snapshot().Requests["/items/:id|GET|204"])
}
