package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/reputation-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTrustScoreChanged EventType = "trust_score_changed"
	EventBadgeAwarded      EventType = "badge_awarded"
	EventBadgeRevoked      EventType = "badge_revoked"
	EventReferralCompleted EventType = "referral_completed"
)

// Event represents a committed reputation change.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewEvent stamps an event with a fresh id.
func NewEvent(eventType EventType, userID string, at time.Time, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: at,
		Payload:   payload,
	}
}

// TrustScoreChangedPayload payload.
type TrustScoreChangedPayload struct {
	PreviousScore int `json:"previous_score"`
	Score         int `json:"score"`
}

// BadgeAwardedPayload payload.
type BadgeAwardedPayload struct {
	Badge     string             `json:"badge"`
	Slug      string             `json:"slug"`
	Kind      domain.BadgeKind   `json:"kind"`
	Origin    domain.BadgeOrigin `json:"origin"`
	AwardedAt time.Time          `json:"awarded_at"`
}

// BadgeRevokedPayload payload.
type BadgeRevokedPayload struct {
	Badge string `json:"badge"`
}

// ReferralCompletedPayload payload.
type ReferralCompletedPayload struct {
	ReferralID string `json:"referral_id"`
	RefereeID  string `json:"referee_id"`
	Connects   int    `json:"connects"`
	Granted    bool   `json:"granted"`
}

// ChangeEvents expands a committed recompute into its events, score first.
func ChangeEvents(change domain.ReputationChange, at time.Time) []Event {
	var out []Event
	if change.ScoreChanged() {
		out = append(out, NewEvent(EventTrustScoreChanged, change.UserID, at, TrustScoreChangedPayload{
			PreviousScore: change.PreviousScore,
			Score:         change.Score,
		}))
	}
	for _, b := range change.Awarded {
		out = append(out, NewEvent(EventBadgeAwarded, change.UserID, at, BadgeAwardedPayload{
			Badge:     b.Name,
			Slug:      b.Slug,
			Kind:      b.Kind,
			Origin:    b.Origin,
			AwardedAt: b.AwardedAt,
		}))
	}
	for _, name := range change.Revoked {
		out = append(out, NewEvent(EventBadgeRevoked, change.UserID, at, BadgeRevokedPayload{Badge: name}))
	}
	return out
}
