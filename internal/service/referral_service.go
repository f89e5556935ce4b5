package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/reputation-service/internal/config"
	"github.com/spec-kit/reputation-service/internal/domain"
	"github.com/spec-kit/reputation-service/internal/events"
	"github.com/spec-kit/reputation-service/internal/observability"
	"github.com/spec-kit/reputation-service/internal/repository"
	apperrors "github.com/spec-kit/reputation-service/pkg/util/errorutil"
	"github.com/spec-kit/reputation-service/pkg/util/retry"
)

const connectsRetryBaseDelay = 250 * time.Millisecond

// ConnectsGranter credits connects to a user in the billing collaborator.
// Implementations must treat idempotencyKey as a dedupe key.
type ConnectsGranter interface {
	GrantConnects(ctx context.Context, userID string, amount int, idempotencyKey string) error
}

// ReferralService creates and completes referrals.
type ReferralService struct {
	store      repository.Store
	granter    ConnectsGranter
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        config.ReferralConfig
	baseDelay  time.Duration
	now        func() time.Time
}

// NewReferralService wires the service.
func NewReferralService(store repository.Store, granter ConnectsGranter, dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger, cfg config.ReferralConfig) *ReferralService {
	return &ReferralService{
		store:      store,
		granter:    granter,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
		baseDelay:  connectsRetryBaseDelay,
		now:        time.Now,
	}
}

// CreateReferral records that referrerID brought in refereeID. A user
// referring themselves is ignored and yields a nil referral.
func (s *ReferralService) CreateReferral(ctx context.Context, referrerID, refereeID string) (*domain.Referral, error) {
	referrerID = strings.TrimSpace(referrerID)
	refereeID = strings.TrimSpace(refereeID)
	if referrerID == "" || refereeID == "" {
		return nil, apperrors.NewValidationError("referrerId and refereeId are required", nil)
	}
	if referrerID == refereeID {
		s.logger.Info("self referral ignored", zap.String("user_id", referrerID))
		return nil, nil
	}
	for _, id := range []string{referrerID, refereeID} {
		if _, err := s.store.GetUser(ctx, id); err != nil {
			return nil, err
		}
	}

	referral := &domain.Referral{
		ReferrerID: referrerID,
		RefereeID:  refereeID,
		Status:     domain.ReferralPending,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.Referrals().Create(ctx, referral); err != nil {
		return nil, err
	}
	s.logger.Info("referral created",
		zap.String("referral_id", referral.ID),
		zap.String("referrer_id", referrerID),
		zap.String("referee_id", refereeID))
	return referral, nil
}

// CompleteReferral moves a referral from PENDING to COMPLETED. Only the call
// that wins the transition grants connects; repeats return the stored
// referral unchanged. A failed grant is logged and does not undo completion.
func (s *ReferralService) CompleteReferral(ctx context.Context, referralID string) (*domain.Referral, error) {
	repo := s.store.Referrals()
	now := s.now().UTC()
	won, err := repo.MarkCompleted(ctx, referralID, now)
	if err != nil {
		return nil, err
	}
	referral, err := repo.GetByID(ctx, referralID)
	if err != nil {
		return nil, err
	}
	if !won {
		return referral, nil
	}

	granted := s.grant(context.WithoutCancel(ctx), referral)
	if s.dispatcher != nil {
		event := events.NewEvent(events.EventReferralCompleted, referral.ReferrerID, now, events.ReferralCompletedPayload{
			ReferralID: referral.ID,
			RefereeID:  referral.RefereeID,
			Connects:   s.cfg.ConnectsReward,
			Granted:    granted,
		})
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			s.logger.Warn("event handler failed", zap.String("referral_id", referral.ID), zap.Error(err))
		}
	}
	return referral, nil
}

func (s *ReferralService) grant(ctx context.Context, referral *domain.Referral) bool {
	if s.granter == nil || s.cfg.ConnectsReward <= 0 {
		return false
	}
	key := "referral:" + referral.ID
	err := retry.Do(ctx, s.cfg.MaxAttempts, s.baseDelay, func(ctx context.Context) error {
		return s.granter.GrantConnects(ctx, referral.ReferrerID, s.cfg.ConnectsReward, key)
	})
	if err != nil {
		s.metrics.RecordDelivery("connects", "failed")
		s.logger.Error("connects grant failed",
			zap.String("referral_id", referral.ID),
			zap.String("user_id", referral.ReferrerID),
			zap.Int("connects", s.cfg.ConnectsReward),
			zap.Error(err))
		return false
	}
	s.metrics.RecordDelivery("connects", "ok")
	s.logger.Info("connects granted",
		zap.String("referral_id", referral.ID),
		zap.String("user_id", referral.ReferrerID),
		zap.Int("connects", s.cfg.ConnectsReward))
	return true
}
