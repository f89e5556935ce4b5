package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/reputation-service/internal/config"
	"github.com/spec-kit/reputation-service/internal/events"
	"github.com/spec-kit/reputation-service/internal/observability"
)

func TestNotificationServiceDeliversWithRetry(t *testing.T) {
	var hits atomic.Int32
	received := make(chan events.Event, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var e events.Event
		if err := json.Unmarshal(body, &e); err == nil {
			assert.Equal(t, e.ID, r.Header.Get("X-Event-ID"))
			received <- e
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	dispatcher := events.NewInMemoryDispatcher()
	svc := NewNotificationService(dispatcher, zap.NewNop(), observability.NewMetrics(), config.NotificationConfig{
		WebhookURL:     server.URL,
		MaxAttempts:    3,
		BaseDelayMs:    1,
		QueueSize:      4,
		TimeoutSeconds: 2,
	})
	svc.RegisterHandlers()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	event := events.NewEvent(events.EventBadgeRevoked, "u1", time.Now(), events.BadgeRevokedPayload{Badge: "CLOUD_MEMBER"})
	require.NoError(t, dispatcher.Publish(ctx, event))

	select {
	case got := <-received:
		assert.Equal(t, event.ID, got.ID)
		assert.Equal(t, events.EventBadgeRevoked, got.Type)
		assert.Equal(t, "u1", got.UserID)
	case <-time.After(5 * time.Second):
		t.Fatal("webhook was not called")
	}
	assert.Equal(t, int32(2), hits.Load())

	cancel()
	assert.NoError(t, <-done)
}

func TestNotificationServiceGivesUpOnClientErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	svc := NewNotificationService(nil, zap.NewNop(), nil, config.NotificationConfig{
		WebhookURL:     server.URL,
		MaxAttempts:    5,
		BaseDelayMs:    1,
		QueueSize:      1,
		TimeoutSeconds: 2,
	})
	svc.deliver(context.Background(), events.NewEvent(events.EventTrustScoreChanged, "u1", time.Now(), events.TrustScoreChangedPayload{Score: 10}))
	assert.Equal(t, int32(1), hits.Load())
}

func TestNotificationServiceDropsWhenQueueFull(t *testing.T) {
	svc := NewNotificationService(nil, zap.NewNop(), nil, config.NotificationConfig{
		WebhookURL: "http://127.0.0.1:1/hook",
		QueueSize:  1,
	})
	ctx := context.Background()
	e := events.NewEvent(events.EventTrustScoreChanged, "u1", time.Now(), nil)
	require.NoError(t, svc.enqueue(ctx, e))
	require.NoError(t, svc.enqueue(ctx, e))
	assert.Len(t, svc.queue, 1)
}

func TestNotificationServiceWithoutWebhookOnlyLogs(t *testing.T) {
	svc := NewNotificationService(nil, zap.NewNop(), nil, config.NotificationConfig{QueueSize: 2})
	require.NoError(t, svc.enqueue(context.Background(), events.NewEvent(events.EventBadgeAwarded, "u1", time.Now(), nil)))
	assert.Empty(t, svc.queue)
}
