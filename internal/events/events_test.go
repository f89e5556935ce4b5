package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/reputation-service/internal/domain"
)

func TestDispatcherRunsEveryHandler(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string
	boom := errors.New("boom")
	d.Subscribe(EventBadgeAwarded, func(context.Context, Event) error {
		calls = append(calls, "first")
		return boom
	})
	d.Subscribe(EventBadgeAwarded, func(context.Context, Event) error {
		calls = append(calls, "second")
		return nil
	})

	err := d.Publish(context.Background(), NewEvent(EventBadgeAwarded, "u1", time.Now(), nil))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first", "second"}, calls)

	assert.NoError(t, d.Publish(context.Background(), NewEvent(EventBadgeRevoked, "u1", time.Now(), nil)))
}

func TestChangeEvents(t *testing.T) {
	at := time.Now()
	change := domain.ReputationChange{
		UserID:        "u1",
		PreviousScore: 10,
		Score:         30,
		Awarded:       []domain.Badge{{Name: domain.BadgeCloudMember, Slug: "cloud-member", Kind: domain.BadgeMirrored}},
		Revoked:       []string{domain.BadgePlusMember},
	}
	evts := ChangeEvents(change, at)
	require.Len(t, evts, 3)
	assert.Equal(t, EventTrustScoreChanged, evts[0].Type)
	assert.Equal(t, TrustScoreChangedPayload{PreviousScore: 10, Score: 30}, evts[0].Payload)
	assert.Equal(t, EventBadgeAwarded, evts[1].Type)
	assert.Equal(t, EventBadgeRevoked, evts[2].Type)

	assert.Empty(t, ChangeEvents(domain.ReputationChange{UserID: "u1", PreviousScore: 5, Score: 5}, at))
}
