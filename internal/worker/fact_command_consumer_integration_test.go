//go:build integration

package worker

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"

	"github.com/spec-kit/reputation-service/internal/config"
	"github.com/spec-kit/reputation-service/internal/domain"
	"github.com/spec-kit/reputation-service/internal/repository"
	"github.com/spec-kit/reputation-service/internal/service"
)

func TestFactCommandConsumerAppliesAndDeadLetters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })
	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	store := repository.NewMemoryStore()
	svc := service.NewReputationService(store, nil, nil, zap.NewNop())
	_, err = svc.CreateUser(ctx, service.CreateUserInput{ID: "u1", Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	cfg := config.CommandsConfig{
		Stream:           "test:fact-commands",
		Group:            "test",
		Consumer:         "c1",
		BatchSize:        10,
		BlockSeconds:     1,
		ClaimIdleSeconds: 30,
	}
	processor := NewCommandProcessor(svc, repository.NewRedisIdempotencyStore(client), time.Hour, nil, zap.NewNop())
	consumer := NewFactCommandConsumer(client, processor, cfg, nil, zap.NewNop())
	publisher := NewFactCommandPublisher(client, cfg.Stream)

	join := FactCommand{UserID: "u1", FactDelta: domain.FactDelta{Fact: domain.FactCloudMembership, Subject: "c1", Flag: boolPtr(true)}}
	for i := 0; i < 2; i++ {
		_, err = publisher.Publish(ctx, join)
		require.NoError(t, err)
	}
	_, err = publisher.Publish(ctx, FactCommand{UserID: "u1", FactDelta: domain.FactDelta{Fact: "NOT_A_FACT"}})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	require.Eventually(t, func() bool {
		n, err := client.XLen(ctx, cfg.Stream+deadLetterSuffix).Result()
		return err == nil && n == 1
	}, 10*time.Second, 50*time.Millisecond)

	require.Eventually(t, func() bool {
		pending, err := client.XPending(ctx, cfg.Stream, cfg.Group).Result()
		return err == nil && pending.Count == 0
	}, 10*time.Second, 50*time.Millisecond)

	rep, err := svc.Reputation(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 20, rep.TrustScore)
	assert.Equal(t, []string{domain.BadgeCloudMember}, rep.Badges)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
