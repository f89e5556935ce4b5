package service

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/spec-kit/reputation-service/internal/domain"
	"github.com/spec-kit/reputation-service/internal/events"
	"github.com/spec-kit/reputation-service/internal/observability"
	"github.com/spec-kit/reputation-service/internal/repository"
	"github.com/spec-kit/reputation-service/internal/scoring"
	apperrors "github.com/spec-kit/reputation-service/pkg/util/errorutil"
)

// ReputationService owns every write to a user's facts, trust score and
// badge ledger. Each mutation runs in one per-user transaction; events are
// published only after it commits.
type ReputationService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewReputationService wires the service.
func NewReputationService(store repository.Store, dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger) *ReputationService {
	return &ReputationService{
		store:      store,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock replaces the time source used for award timestamps and account age.
func (s *ReputationService) WithClock(now func() time.Time) *ReputationService {
	s.now = now
	return s
}

// CreateUserInput holds new account data.
type CreateUserInput struct {
	ID        string
	Name      string
	Email     string
	CreatedAt *time.Time
}

// CreateUser registers an account with default facts.
func (s *ReputationService) CreateUser(ctx context.Context, input CreateUserInput) (*domain.Reputation, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(strings.ToLower(input.Email))
	details := map[string]any{}
	if name == "" {
		details["name"] = "required"
	}
	if _, err := mail.ParseAddress(email); err != nil {
		details["email"] = "invalid"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid user", details)
	}

	createdAt := s.now().UTC()
	if input.CreatedAt != nil {
		createdAt = input.CreatedAt.UTC()
	}
	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = uuid.NewString()
	}

	user := &domain.User{ID: id, Name: name, Email: email, CreatedAt: createdAt, Badges: []string{}}
	if err := s.store.CreateUser(ctx, user, domain.NewFacts(id, createdAt)); err != nil {
		return nil, err
	}
	s.logger.Info("user created", zap.String("user_id", id))
	return &domain.Reputation{UserID: id, Badges: []string{}, BadgeRecords: []domain.Badge{}}, nil
}

// RecomputeAndSync recomputes the score and badges from the stored facts.
func (s *ReputationService) RecomputeAndSync(ctx context.Context, userID string) (*domain.Reputation, error) {
	return s.mutate(ctx, userID, nil)
}

// ApplyFact validates delta, applies it and recomputes, all in one
// transaction. An invalid delta is rejected before anything is touched.
func (s *ReputationService) ApplyFact(ctx context.Context, userID string, delta domain.FactDelta) (*domain.Reputation, error) {
	normalized, err := delta.Normalize()
	if err != nil {
		return nil, err
	}
	if normalized.Fact == domain.FactCertificationAdded && normalized.Certification.ID == "" {
		normalized.Certification.ID = uuid.NewString()
	}
	return s.mutate(ctx, userID, func(f *domain.Facts, now time.Time) (bool, error) {
		return normalized.Apply(f, now)
	})
}

type factMutation func(f *domain.Facts, now time.Time) (bool, error)

func (s *ReputationService) mutate(ctx context.Context, userID string, apply factMutation) (*domain.Reputation, error) {
	ctx, span := observability.StartSpan(ctx, "reputation.Recompute", observability.UserID(userID))
	now := s.now().UTC()
	var (
		rep    *domain.Reputation
		change domain.ReputationChange
	)
	err := s.store.WithinUserTx(ctx, userID, func(tx repository.UserTx) error {
		facts, err := tx.Facts(ctx)
		if err != nil {
			return err
		}
		if apply != nil {
			changed, err := apply(facts, now)
			if err != nil {
				return err
			}
			if changed {
				if err := tx.SaveFacts(ctx, facts); err != nil {
					return err
				}
			}
		}
		change, rep, err = s.sync(ctx, tx, facts, now)
		return err
	})
	if err != nil {
		if apperrors.IsPermanent(err) {
			s.metrics.RecordRecompute("rejected")
		} else {
			s.metrics.RecordRecompute("error")
		}
		observability.EndSpan(span, err)
		return nil, err
	}
	s.metrics.RecordRecompute("ok")
	span.SetAttributes(
		attribute.Int("reputation.score", change.Score),
		attribute.Int("reputation.awarded", len(change.Awarded)),
		attribute.Int("reputation.revoked", len(change.Revoked)),
	)
	observability.EndSpan(span, nil)
	s.publish(ctx, change, now)
	return rep, nil
}

// sync runs the recompute steps on a locked user: persist score, award
// missing eligible badges, revoke mirrored badges that lost eligibility.
// Monotonic badges are never touched.
func (s *ReputationService) sync(ctx context.Context, tx repository.UserTx, facts *domain.Facts, now time.Time) (domain.ReputationChange, *domain.Reputation, error) {
	user := tx.User()
	change := domain.ReputationChange{UserID: user.ID, PreviousScore: user.TrustScore}

	score := scoring.Score(facts)
	change.Score = score
	if score != user.TrustScore {
		if err := tx.SaveTrustScore(ctx, score); err != nil {
			return change, nil, err
		}
	}

	ledger := tx.Ledger()
	current, err := ledger.List(ctx, user.ID)
	if err != nil {
		return change, nil, err
	}
	held := make(map[string]domain.Badge, len(current))
	for _, b := range current {
		held[b.Name] = b
	}

	eligible := scoring.EligibleBadges(facts, score, now)
	eligibleSet := make(map[string]bool, len(eligible))
	for _, e := range eligible {
		eligibleSet[e.Name] = true
		if _, ok := held[e.Name]; ok {
			continue
		}
		badge, inserted, err := ledger.AwardIfAbsent(ctx, user.ID, domain.BadgeAward{
			Name:   e.Name,
			Kind:   e.Kind,
			Origin: domain.OriginRuleEngine,
			Metadata: map[string]any{
				"score": score,
			},
		}, now)
		if err != nil {
			return change, nil, err
		}
		if inserted {
			change.Awarded = append(change.Awarded, *badge)
		}
	}

	for _, b := range current {
		if b.Kind != domain.BadgeMirrored || eligibleSet[b.Name] {
			continue
		}
		revoked, err := ledger.RevokeIfPresentAndMirrored(ctx, user.ID, b.Name)
		if err != nil {
			return change, nil, err
		}
		if revoked {
			change.Revoked = append(change.Revoked, b.Name)
		}
	}

	badges := current
	if len(change.Awarded) > 0 || len(change.Revoked) > 0 {
		if badges, err = ledger.List(ctx, user.ID); err != nil {
			return change, nil, err
		}
	}
	return change, newReputation(user.ID, score, badges), nil
}

// GrantBadgeDirectly adds a badge on behalf of a collaborator without running
// the rules. Grants are additive and never revoked by later recomputes.
func (s *ReputationService) GrantBadgeDirectly(ctx context.Context, userID, badgeName, reason string) (*domain.Reputation, error) {
	name, err := domain.NormalizeBadgeName(badgeName)
	if err != nil {
		return nil, err
	}
	if scoring.IsMirrored(name) {
		return nil, apperrors.NewInvalidFact("badge tracks a fact and cannot be granted directly", map[string]any{"badgeName": name})
	}

	metadata := map[string]any{}
	if reason = strings.TrimSpace(reason); reason != "" {
		metadata["reason"] = reason
	}

	ctx, span := observability.StartSpan(ctx, "reputation.GrantBadge",
		observability.UserID(userID), attribute.String("badge.name", name))
	now := s.now().UTC()
	var (
		rep    *domain.Reputation
		change domain.ReputationChange
	)
	err = s.store.WithinUserTx(ctx, userID, func(tx repository.UserTx) error {
		user := tx.User()
		change = domain.ReputationChange{UserID: user.ID, PreviousScore: user.TrustScore, Score: user.TrustScore}
		ledger := tx.Ledger()
		badge, inserted, err := ledger.AwardIfAbsent(ctx, user.ID, domain.BadgeAward{
			Name:     name,
			Kind:     domain.BadgeMonotonic,
			Origin:   domain.OriginManualGrant,
			Metadata: metadata,
		}, now)
		if err != nil {
			return err
		}
		if inserted {
			change.Awarded = append(change.Awarded, *badge)
		}
		badges, err := ledger.List(ctx, user.ID)
		if err != nil {
			return err
		}
		rep = newReputation(user.ID, user.TrustScore, badges)
		return nil
	})
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, change, now)
	return rep, nil
}

// ReputationView is the read projection with drift detection.
type ReputationView struct {
	domain.Reputation
	Breakdown scoring.Result
	// Consistent is false when the stored score or rule badges differ from a
	// fresh evaluation of the stored facts.
	Consistent bool
	Facts      *domain.Facts
}

// Reputation returns the stored projection together with a fresh evaluation.
func (s *ReputationService) Reputation(ctx context.Context, userID string) (*ReputationView, error) {
	user, facts, badges, err := s.store.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := scoring.Explain(facts)
	return &ReputationView{
		Reputation: *newReputation(user.ID, user.TrustScore, badges),
		Breakdown:  result,
		Consistent: user.TrustScore == result.Score && badgesInSync(badges, scoring.EligibleBadges(facts, result.Score, s.now().UTC())),
		Facts:      facts,
	}, nil
}

// ListBadges returns the ledger for userID.
func (s *ReputationService) ListBadges(ctx context.Context, userID string) ([]domain.Badge, error) {
	return s.store.ListBadges(ctx, userID)
}

func (s *ReputationService) publish(ctx context.Context, change domain.ReputationChange, at time.Time) {
	for _, b := range change.Awarded {
		s.metrics.RecordBadgeAward(b.Name, string(b.Origin))
	}
	for _, name := range change.Revoked {
		s.metrics.RecordBadgeRevocation(name)
	}
	if s.dispatcher == nil {
		return
	}
	for _, event := range events.ChangeEvents(change, at) {
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			s.logger.Warn("event handler failed",
				zap.String("user_id", change.UserID),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		}
	}
}

func newReputation(userID string, score int, badges []domain.Badge) *domain.Reputation {
	if badges == nil {
		badges = []domain.Badge{}
	}
	return &domain.Reputation{
		UserID:       userID,
		TrustScore:   score,
		Badges:       domain.BadgeNames(badges),
		BadgeRecords: badges,
	}
}

// badgesInSync reports whether every eligible badge is held and no held
// mirrored badge has lost eligibility.
func badgesInSync(held []domain.Badge, eligible []scoring.EligibleBadge) bool {
	heldSet := make(map[string]domain.Badge, len(held))
	for _, b := range held {
		heldSet[b.Name] = b
	}
	eligibleSet := make(map[string]bool, len(eligible))
	for _, e := range eligible {
		eligibleSet[e.Name] = true
		if _, ok := heldSet[e.Name]; !ok {
			return false
		}
	}
	for _, b := range held {
		if b.Kind == domain.BadgeMirrored && !eligibleSet[b.Name] {
			return false
		}
	}
	return true
}

// GetUser returns the stored user projection.
func (s *ReputationService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.store.GetUser(ctx, userID)
}
