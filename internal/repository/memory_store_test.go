package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/reputation-service/internal/domain"
	apperrors "github.com/spec-kit/reputation-service/pkg/util/errorutil"
)

func seedUser(t *testing.T, s *MemoryStore, id string) {
	t.Helper()
	require.NoError(t, s.CreateUser(context.Background(), &domain.User{ID: id, Name: "Ada", Email: id + "@example.com"}, nil))
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedUser(t, s, "u1")

	user, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Name)
	assert.Equal(t, 0, user.TrustScore)
	assert.Empty(t, user.Badges)

	facts, err := s.GetFacts(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.TierBasic, facts.SubscriptionTier)
	assert.Equal(t, domain.BackgroundCheckUnstarted, facts.BackgroundCheckStatus)

	err = s.CreateUser(ctx, &domain.User{ID: "u1"}, nil)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))

	_, err = s.GetUser(ctx, "missing")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestMemoryStoreWithinUserTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedUser(t, s, "u1")
	boom := errors.New("boom")

	err := s.WithinUserTx(ctx, "u1", func(tx UserTx) error {
		f, err := tx.Facts(ctx)
		require.NoError(t, err)
		f.IdentityVerified = true
		require.NoError(t, tx.SaveFacts(ctx, f))
		require.NoError(t, tx.SaveTrustScore(ctx, 40))
		_, _, err = tx.Ledger().AwardIfAbsent(ctx, "u1", domain.BadgeAward{
			Name: domain.BadgeIdentityVerified, Kind: domain.BadgeMonotonic, Origin: domain.OriginRuleEngine,
		}, time.Now())
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	user, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, user.TrustScore)
	assert.Empty(t, user.Badges)
	facts, err := s.GetFacts(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, facts.IdentityVerified)
	badges, err := s.ListBadges(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, badges)
}

func TestMemoryStoreWithinUserTxUnknownUser(t *testing.T) {
	called := false
	err := NewMemoryStore().WithinUserTx(context.Background(), "ghost", func(UserTx) error {
		called = true
		return nil
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
	assert.False(t, called)
}

func TestMemoryStoreSnapshot(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedUser(t, s, "u1")
	require.NoError(t, s.WithinUserTx(ctx, "u1", func(tx UserTx) error {
		f, err := tx.Facts(ctx)
		if err != nil {
			return err
		}
		f.IdentityVerified = true
		if err := tx.SaveFacts(ctx, f); err != nil {
			return err
		}
		if err := tx.SaveTrustScore(ctx, 40); err != nil {
			return err
		}
		_, _, err = tx.Ledger().AwardIfAbsent(ctx, "u1", domain.BadgeAward{
			Name: domain.BadgeIdentityVerified, Kind: domain.BadgeMonotonic, Origin: domain.OriginRuleEngine,
		}, time.Now())
		return err
	}))

	user, facts, badges, err := s.Snapshot(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 40, user.TrustScore)
	assert.True(t, facts.IdentityVerified)
	assert.Equal(t, []string{domain.BadgeIdentityVerified}, domain.BadgeNames(badges))

	facts.IdentityVerified = false
	again, err := s.GetFacts(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, again.IdentityVerified, "snapshots are copies")

	_, _, _, err = s.Snapshot(ctx, "ghost")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestLedgerKeepsLegacyMirrorInStep(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedUser(t, s, "u1")
	now := time.Now()

	err := s.WithinUserTx(ctx, "u1", func(tx UserTx) error {
		ledger := tx.Ledger()
		_, inserted, err := ledger.AwardIfAbsent(ctx, "u1", domain.BadgeAward{
			Name: domain.BadgeCloudMember, Kind: domain.BadgeMirrored, Origin: domain.OriginRuleEngine,
		}, now)
		require.NoError(t, err)
		assert.True(t, inserted)

		_, inserted, err = ledger.AwardIfAbsent(ctx, "u1", domain.BadgeAward{
			Name: domain.BadgeCloudMember, Kind: domain.BadgeMirrored, Origin: domain.OriginRuleEngine,
		}, now.Add(time.Second))
		require.NoError(t, err)
		assert.False(t, inserted)

		_, _, err = ledger.AwardIfAbsent(ctx, "u1", domain.BadgeAward{
			Name: domain.BadgeIdentityVerified, Kind: domain.BadgeMonotonic, Origin: domain.OriginRuleEngine,
		}, now)
		return err
	})
	require.NoError(t, err)

	user, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{domain.BadgeCloudMember, domain.BadgeIdentityVerified}, user.Badges)

	err = s.WithinUserTx(ctx, "u1", func(tx UserTx) error {
		revoked, err := tx.Ledger().RevokeIfPresentAndMirrored(ctx, "u1", domain.BadgeIdentityVerified)
		require.NoError(t, err)
		assert.False(t, revoked, "monotonic badges are never revoked")

		revoked, err = tx.Ledger().RevokeIfPresentAndMirrored(ctx, "u1", domain.BadgeCloudMember)
		require.NoError(t, err)
		assert.True(t, revoked)
		return nil
	})
	require.NoError(t, err)

	user, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{domain.BadgeIdentityVerified}, user.Badges)
	badges, err := s.ListBadges(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{domain.BadgeIdentityVerified}, domain.BadgeNames(badges))
}

func TestConcurrentAwardsCreateOneRow(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedUser(t, s, "u1")

	var inserted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithinUserTx(ctx, "u1", func(tx UserTx) error {
				_, ok, err := tx.Ledger().AwardIfAbsent(ctx, "u1", domain.BadgeAward{
					Name: "GO_FUNDAMENTALS", Kind: domain.BadgeMonotonic, Origin: domain.OriginManualGrant,
				}, time.Now())
				if ok {
					inserted.Add(1)
				}
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), inserted.Load())
	badges, err := s.ListBadges(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, badges, 1)
	user, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"GO_FUNDAMENTALS"}, user.Badges)
}

func TestListBadgesOrdersByAwardTimeThenName(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedUser(t, s, "u1")
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.WithinUserTx(ctx, "u1", func(tx UserTx) error {
		for _, a := range []struct {
			name string
			at   time.Time
		}{{"ZETA", t0}, {"ALPHA", t0}, {"EARLY", t0.Add(-time.Hour)}} {
			if _, _, err := tx.Ledger().AwardIfAbsent(ctx, "u1", domain.BadgeAward{
				Name: a.name, Kind: domain.BadgeMonotonic, Origin: domain.OriginManualGrant,
			}, a.at); err != nil {
				return err
			}
		}
		return nil
	}))

	badges, err := s.ListBadges(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"EARLY", "ALPHA", "ZETA"}, domain.BadgeNames(badges))
	assert.Equal(t, "early", badges[0].Slug)
}

func TestMemoryReferrals(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore().Referrals()

	ref := &domain.Referral{ReferrerID: "a", RefereeID: "b"}
	require.NoError(t, repo.Create(ctx, ref))
	assert.NotEmpty(t, ref.ID)
	assert.Equal(t, domain.ReferralPending, ref.Status)

	err := repo.Create(ctx, &domain.Referral{ReferrerID: "c", RefereeID: "b"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.MarkCompleted(ctx, ref.ID, time.Now())
			assert.NoError(t, err)
			if ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())

	got, err := repo.GetByID(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReferralCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	_, err = repo.MarkCompleted(ctx, "missing", time.Now())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryIdempotencyStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, ok, err := s.LastApplied(ctx, "u1|CLOUD_MEMBERSHIP|c1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.MarkApplied(ctx, "u1|CLOUD_MEMBERSHIP|c1", "k1", time.Hour))
	key, ok, err := s.LastApplied(ctx, "u1|CLOUD_MEMBERSHIP|c1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "k1", key)

	now = now.Add(2 * time.Hour)
	_, ok, err = s.LastApplied(ctx, "u1|CLOUD_MEMBERSHIP|c1")
	require.NoError(t, err)
	assert.False(t, ok)
}
