package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/spec-kit/reputation-service/internal/config"
	"github.com/spec-kit/reputation-service/internal/domain"
	"github.com/spec-kit/reputation-service/internal/events"
	"github.com/spec-kit/reputation-service/internal/service/mocks"
	apperrors "github.com/spec-kit/reputation-service/pkg/util/errorutil"
	"github.com/spec-kit/reputation-service/pkg/util/retry"
)

//go:generate mockgen -source=referral_service.go -destination=mocks/connects_mocks.go -package=mocks ConnectsGranter

type fakeGranter struct {
	mu       sync.Mutex
	calls    int
	failures int
	grants   []string
}

func (g *fakeGranter) GrantConnects(_ context.Context, userID string, _ int, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.failures > 0 {
		g.failures--
		return errors.New("billing unavailable")
	}
	g.grants = append(g.grants, userID+"|"+key)
	return nil
}

func newReferralFixture(t *testing.T, granter ConnectsGranter) (*ReferralService, *fixture) {
	t.Helper()
	f := newFixture(t)
	for _, id := range []string{"alice", "bob"} {
		f.createUser(t, id)
	}
	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.Subscribe(events.EventReferralCompleted, f.events.record)
	svc := NewReferralService(f.store, granter, dispatcher, f.metrics, zap.NewNop(), config.ReferralConfig{
		ConnectsReward: 10,
		MaxAttempts:    3,
	})
	svc.baseDelay = time.Millisecond
	svc.now = f.clock.Now
	return svc, f
}

func TestCreateReferral(t *testing.T) {
	ctx := context.Background()
	svc, _ := newReferralFixture(t, &fakeGranter{})

	ref, err := svc.CreateReferral(ctx, "alice", "alice")
	require.NoError(t, err)
	assert.Nil(t, ref, "self referrals are ignored")

	ref, err = svc.CreateReferral(ctx, "alice", "bob")
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, domain.ReferralPending, ref.Status)
	assert.Equal(t, testNow, ref.CreatedAt)

	_, err = svc.CreateReferral(ctx, "alice", "bob")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))

	_, err = svc.CreateReferral(ctx, "alice", "ghost")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	_, err = svc.CreateReferral(ctx, "", "bob")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestCompleteReferralGrantsOnce(t *testing.T) {
	ctx := context.Background()
	granter := &fakeGranter{}
	svc, f := newReferralFixture(t, granter)
	ref, err := svc.CreateReferral(ctx, "alice", "bob")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var completed atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := svc.CompleteReferral(ctx, ref.ID)
			assert.NoError(t, err)
			if got != nil && got.Status == domain.ReferralCompleted {
				completed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), completed.Load())
	assert.Equal(t, []string{"alice|referral:" + ref.ID}, granter.grants)
	require.Len(t, f.events.events, 1)
	payload, ok := f.events.events[0].Payload.(events.ReferralCompletedPayload)
	require.True(t, ok)
	assert.True(t, payload.Granted)
	assert.Equal(t, 10, payload.Connects)
	assert.Equal(t, "alice", f.events.events[0].UserID)

	_, err = svc.CompleteReferral(ctx, "missing")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestCompleteReferralRetriesGrant(t *testing.T) {
	ctx := context.Background()
	granter := &fakeGranter{failures: 2}
	svc, _ := newReferralFixture(t, granter)
	ref, err := svc.CreateReferral(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = svc.CompleteReferral(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, granter.calls)
	assert.Len(t, granter.grants, 1)
}

func TestCompleteReferralSurvivesGrantFailure(t *testing.T) {
	ctx := context.Background()
	granter := &fakeGranter{failures: 100}
	svc, f := newReferralFixture(t, granter)
	ref, err := svc.CreateReferral(ctx, "alice", "bob")
	require.NoError(t, err)

	got, err := svc.CompleteReferral(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReferralCompleted, got.Status)
	assert.Equal(t, 3, granter.calls)

	require.Len(t, f.events.events, 1)
	payload := f.events.events[0].Payload.(events.ReferralCompletedPayload)
	assert.False(t, payload.Granted)

	_, err = svc.CompleteReferral(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, granter.calls, "a completed referral is never granted again")
}

func TestCompleteReferralPassesIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	granter := mocks.NewMockConnectsGranter(ctrl)
	svc, _ := newReferralFixture(t, granter)
	ref, err := svc.CreateReferral(ctx, "alice", "bob")
	require.NoError(t, err)

	gomock.InOrder(
		granter.EXPECT().
			GrantConnects(gomock.Any(), "alice", 10, "referral:"+ref.ID).
			Return(errors.New("timeout")),
		granter.EXPECT().
			GrantConnects(gomock.Any(), "alice", 10, "referral:"+ref.ID).
			Return(retry.Permanent(errors.New("account closed"))),
	)

	got, err := svc.CompleteReferral(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReferralCompleted, got.Status)
}
