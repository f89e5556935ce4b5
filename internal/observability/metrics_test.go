package observability

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordBadgeAward("CLOUD_MEMBER", "RULE_ENGINE")
	m.RecordBadgeAward("CLOUD_MEMBER", "RULE_ENGINE")
	m.RecordBadgeRevocation("CLOUD_MEMBER")
	m.RecordRecompute("ok")
	m.RecordDelivery("webhook", "failed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.badgeAwards.WithLabelValues("CLOUD_MEMBER", "RULE_ENGINE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.badgeRevocations.WithLabelValues("CLOUD_MEMBER")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recomputes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("webhook", "failed")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/x", "GET", 200, time.Millisecond)
		m.RecordError("/x", "GET", "NOT_FOUND")
		m.RecordRecompute("error")
		m.RecordFactCommand("applied")
	})
}

func TestRequestLoggerRecordsRouteAndEchoesRequestID(t *testing.T) {
	m := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), m))
	app.Get("/users/:id/badges", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest("GET", "/users/u1/badges", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "req-1", resp.Header.Get(RequestIDHeader))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/users/:id/badges", "200")))

	body := httptest.NewRecorder()
	m.Handler().ServeHTTP(body, httptest.NewRequest("GET", "/metrics", nil))
	raw, err := io.ReadAll(body.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "reputation_http_requests_total")
}
