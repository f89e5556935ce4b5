package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/reputation-service/internal/domain"
	"github.com/spec-kit/reputation-service/internal/repository"
	"github.com/spec-kit/reputation-service/internal/service"
	apperrors "github.com/spec-kit/reputation-service/pkg/util/errorutil"
)

func newProcessor(t *testing.T) (*CommandProcessor, *service.ReputationService) {
	t.Helper()
	store := repository.NewMemoryStore()
	svc := service.NewReputationService(store, nil, nil, zap.NewNop())
	_, err := svc.CreateUser(context.Background(), service.CreateUserInput{ID: "u1", Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	return NewCommandProcessor(svc, repository.NewMemoryIdempotencyStore(), time.Hour, nil, zap.NewNop()), svc
}

func TestDecodeFactCommand(t *testing.T) {
	cmd, err := DecodeFactCommand(`{"userId":"u1","fact":"CLOUD_MEMBERSHIP","subject":"c1","flag":true}`)
	require.NoError(t, err)
	assert.Equal(t, "u1", cmd.UserID)
	assert.Equal(t, domain.FactCloudMembership, cmd.Fact)
	require.NotNil(t, cmd.Flag)
	assert.True(t, *cmd.Flag)

	_, err = DecodeFactCommand(`{not json`)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
	_, err = DecodeFactCommand(`{"fact":"EMAIL_VERIFIED"}`)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestProcessorSkipsRedeliveries(t *testing.T) {
	ctx := context.Background()
	p, svc := newProcessor(t)
	join := FactCommand{UserID: "u1", FactDelta: domain.FactDelta{Fact: domain.FactCloudMembership, Subject: "c1", Flag: boolPtr(true)}}
	leave := FactCommand{UserID: "u1", FactDelta: domain.FactDelta{Fact: domain.FactCloudMembership, Subject: "c1", Flag: boolPtr(false)}}

	applied, err := p.Process(ctx, join)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = p.Process(ctx, join)
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = p.Process(ctx, leave)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = p.Process(ctx, join)
	require.NoError(t, err)
	assert.True(t, applied, "re-joining after a leave is a new assertion")

	rep, err := svc.Reputation(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 20, rep.TrustScore)
	assert.Equal(t, []string{domain.BadgeCloudMember}, rep.Badges)
}

func TestProcessorScopesKeysPerSubject(t *testing.T) {
	ctx := context.Background()
	p, svc := newProcessor(t)

	for _, cloud := range []string{"c1", "c2", "c1"} {
		_, err := p.Process(ctx, FactCommand{UserID: "u1", FactDelta: domain.FactDelta{Fact: domain.FactCloudMembership, Subject: cloud, Flag: boolPtr(true)}})
		require.NoError(t, err)
	}
	view, err := svc.Reputation(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, view.Facts.CloudMemberships)
}

func TestProcessorRejectsInvalidCommands(t *testing.T) {
	ctx := context.Background()
	p, _ := newProcessor(t)

	_, err := p.Process(ctx, FactCommand{UserID: "u1", FactDelta: domain.FactDelta{Fact: domain.FactJobSuccessScore, Value: intPtr(140)}})
	assert.True(t, apperrors.IsPermanent(err))

	_, err = p.Process(ctx, FactCommand{UserID: "ghost", FactDelta: domain.FactDelta{Fact: domain.FactEmailVerified}})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	// A failed apply must not mark the slot, so a later valid delivery still applies.
	applied, err := p.Process(ctx, FactCommand{UserID: "u1", FactDelta: domain.FactDelta{Fact: domain.FactEmailVerified}})
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestProcessorGrantsBadges(t *testing.T) {
	ctx := context.Background()
	p, svc := newProcessor(t)

	for i := 0; i < 2; i++ {
		applied, err := p.Process(ctx, FactCommand{UserID: "u1", BadgeName: "Go Fundamentals", Reason: "academy"})
		require.NoError(t, err)
		assert.True(t, applied)
	}
	badges, err := svc.ListBadges(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"GO_FUNDAMENTALS"}, domain.BadgeNames(badges))
}

type unmarkableStore struct {
	repository.IdempotencyStore
}

func (unmarkableStore) MarkApplied(context.Context, string, string, time.Duration) error {
	return errors.New("redis unavailable")
}

func TestProcessorCertificationRedeliveryAddsOnce(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	svc := service.NewReputationService(store, nil, nil, zap.NewNop())
	_, err := svc.CreateUser(ctx, service.CreateUserInput{ID: "u1", Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	p := NewCommandProcessor(svc, unmarkableStore{repository.NewMemoryIdempotencyStore()}, time.Hour, nil, zap.NewNop())

	cmd := FactCommand{UserID: "u1", FactDelta: domain.FactDelta{
		Fact:          domain.FactCertificationAdded,
		Certification: &domain.CertificationInput{Title: "CKA", Issuer: "CNCF"},
	}}
	for i := 0; i < 2; i++ {
		applied, err := p.Process(ctx, cmd)
		require.NoError(t, err)
		assert.True(t, applied)
	}
	assert.Empty(t, cmd.Certification.ID, "the caller's command is left untouched")

	facts, err := store.GetFacts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, facts.Certifications, 1)
	assert.Equal(t, domain.CertificationPending, facts.Certifications[0].Status)

	other := FactCommand{UserID: "u1", FactDelta: domain.FactDelta{
		Fact:          domain.FactCertificationAdded,
		Certification: &domain.CertificationInput{Title: "CKAD", Issuer: "CNCF"},
	}}
	_, err = p.Process(ctx, other)
	require.NoError(t, err)
	facts, err = store.GetFacts(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, facts.Certifications, 2)
}

func boolPtr(v bool) *bool { return &v }

func intPtr(v int) *int { return &v }
