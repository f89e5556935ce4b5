package dto

import (
	"time"

	"github.com/spec-kit/reputation-service/internal/domain"
	"github.com/spec-kit/reputation-service/internal/scoring"
	"github.com/spec-kit/reputation-service/internal/service"
)

// BadgeResponse is one ledger row.
type BadgeResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Slug      string         `json:"slug"`
	AwardedAt time.Time      `json:"awardedAt"`
	Origin    string         `json:"origin"`
	Kind      string         `json:"kind"`
	Metadata  map[string]any `json:"metadata"`
}

// ReputationResponse is returned by every mutating user endpoint.
type ReputationResponse struct {
	UserID       string          `json:"userId"`
	TrustScore   int             `json:"trustScore"`
	Badges       []string        `json:"badges"`
	BadgeRecords []BadgeResponse `json:"badgeRecords"`
}

// CertificationResponse describes a stored certification.
type CertificationResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Issuer    string    `json:"issuer"`
	IssuerRef string    `json:"issuerRef,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FactsResponse exposes the facts behind a score.
type FactsResponse struct {
	IdentityVerified      bool                    `json:"identityVerified"`
	PaymentVerified       bool                    `json:"paymentVerified"`
	EmailVerified         bool                    `json:"emailVerified"`
	Certifications        []CertificationResponse `json:"certifications"`
	BackgroundCheckStatus string                  `json:"backgroundCheckStatus"`
	TaxVerifiedStatus     string                  `json:"taxVerifiedStatus"`
	InsuranceActive       bool                    `json:"insuranceActive"`
	CloudMemberships      []string                `json:"cloudMemberships"`
	SubscriptionTier      string                  `json:"subscriptionTier"`
	AccountCreatedAt      time.Time               `json:"accountCreatedAt"`
	JobSuccessScore       int                     `json:"jobSuccessScore"`
	CompletionPercentage  int                     `json:"completionPercentage"`
}

// ReputationViewResponse is returned by GET /users/:id/reputation.
type ReputationViewResponse struct {
	ReputationResponse
	Consistent bool           `json:"consistent"`
	Breakdown  scoring.Result `json:"breakdown"`
	Facts      FactsResponse  `json:"facts"`
}

// CertificationAddedResponse is returned by POST /users/:id/certifications.
type CertificationAddedResponse struct {
	ReputationResponse
	Certification CertificationResponse `json:"certification"`
}

// ReferralResponse describes a referral.
type ReferralResponse struct {
	ID          string     `json:"id"`
	ReferrerID  string     `json:"referrerId"`
	RefereeID   string     `json:"refereeId"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// NewBadgeResponses maps ledger rows. The result is never nil.
func NewBadgeResponses(badges []domain.Badge) []BadgeResponse {
	out := make([]BadgeResponse, 0, len(badges))
	for _, b := range badges {
		metadata := b.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		out = append(out, BadgeResponse{
			ID:        b.ID,
			Name:      b.Name,
			Slug:      b.Slug,
			AwardedAt: b.AwardedAt,
			Origin:    string(b.Origin),
			Kind:      string(b.Kind),
			Metadata:  metadata,
		})
	}
	return out
}

// NewReputationResponse maps a projection.
func NewReputationResponse(rep *domain.Reputation) ReputationResponse {
	badges := rep.Badges
	if badges == nil {
		badges = []string{}
	}
	return ReputationResponse{
		UserID:       rep.UserID,
		TrustScore:   rep.TrustScore,
		Badges:       badges,
		BadgeRecords: NewBadgeResponses(rep.BadgeRecords),
	}
}

// NewCertificationResponse maps a certification.
func NewCertificationResponse(c domain.Certification) CertificationResponse {
	return CertificationResponse{
		ID:        c.ID,
		Title:     c.Title,
		Issuer:    c.Issuer,
		IssuerRef: c.IssuerRef,
		Status:    string(c.Status),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// NewReputationViewResponse maps the read projection.
func NewReputationViewResponse(view *service.ReputationView) ReputationViewResponse {
	f := view.Facts
	certs := make([]CertificationResponse, 0, len(f.Certifications))
	for _, c := range f.Certifications {
		certs = append(certs, NewCertificationResponse(c))
	}
	clouds := f.CloudMemberships
	if clouds == nil {
		clouds = []string{}
	}
	return ReputationViewResponse{
		ReputationResponse: NewReputationResponse(&view.Reputation),
		Consistent:         view.Consistent,
		Breakdown:          view.Breakdown,
		Facts: FactsResponse{
			IdentityVerified:      f.IdentityVerified,
			PaymentVerified:       f.PaymentVerified,
			EmailVerified:         f.EmailVerified,
			Certifications:        certs,
			BackgroundCheckStatus: string(f.BackgroundCheckStatus),
			TaxVerifiedStatus:     string(f.TaxVerifiedStatus),
			InsuranceActive:       f.InsuranceActive,
			CloudMemberships:      clouds,
			SubscriptionTier:      string(f.SubscriptionTier),
			AccountCreatedAt:      f.AccountCreatedAt,
			JobSuccessScore:       f.JobSuccessScore,
			CompletionPercentage:  f.CompletionPercentage,
		},
	}
}

// NewReferralResponse maps a referral.
func NewReferralResponse(r *domain.Referral) ReferralResponse {
	return ReferralResponse{
		ID:          r.ID,
		ReferrerID:  r.ReferrerID,
		RefereeID:   r.RefereeID,
		Status:      string(r.Status),
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt,
	}
}
