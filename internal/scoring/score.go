// Package scoring derives the trust score and rule-based badges from a user's
// facts. Everything here is pure: no I/O, no clock reads, no shared state.
package scoring

import "github.com/spec-kit/reputation-service/internal/domain"

// MaxScore is the cap applied after summing contributions.
const MaxScore = 100

// Contribution points per fact.
const (
	PointsIdentity         = 40
	PointsPayment          = 20
	PointsEmail            = 10
	PointsPerCertification = 10
	MaxCertificationPoints = 30
	PointsBackgroundCheck  = 25
	PointsTaxVerified      = 15
	PointsInsurance        = 10
	PointsCloudMembership  = 20
)

// Breakdown lists the points each fact contributed before capping.
type Breakdown struct {
	Identity        int `json:"identity"`
	Payment         int `json:"payment"`
	Email           int `json:"email"`
	Certifications  int `json:"certifications"`
	BackgroundCheck int `json:"backgroundCheck"`
	Tax             int `json:"tax"`
	Insurance       int `json:"insurance"`
	CloudMembership int `json:"cloudMembership"`
}

// Raw returns the uncapped sum.
func (b Breakdown) Raw() int {
	return b.Identity + b.Payment + b.Email + b.Certifications +
		b.BackgroundCheck + b.Tax + b.Insurance + b.CloudMembership
}

// Score returns the capped trust score for facts.
func Score(f *domain.Facts) int {
	return Explain(f).Score
}

// Result is a score together with its breakdown.
type Result struct {
	Score     int       `json:"score"`
	Raw       int       `json:"raw"`
	Breakdown Breakdown `json:"breakdown"`
}

// Explain computes the score and the per-fact contributions.
func Explain(f *domain.Facts) Result {
	var b Breakdown
	if f == nil {
		return Result{}
	}
	if f.IdentityVerified {
		b.Identity = PointsIdentity
	}
	if f.PaymentVerified {
		b.Payment = PointsPayment
	}
	if f.EmailVerified {
		b.Email = PointsEmail
	}
	b.Certifications = min(MaxCertificationPoints, f.VerifiedCertificationCount()*PointsPerCertification)
	if f.BackgroundCheckStatus == domain.BackgroundCheckCompleted {
		b.BackgroundCheck = PointsBackgroundCheck
	}
	if f.TaxVerifiedStatus == domain.TaxVerified {
		b.Tax = PointsTaxVerified
	}
	if f.InsuranceActive {
		b.Insurance = PointsInsurance
	}
	if f.IsCloudMember() {
		b.CloudMembership = PointsCloudMembership
	}

	raw := b.Raw()
	return Result{
		Score:     max(0, min(MaxScore, raw)),
		Raw:       raw,
		Breakdown: b,
	}
}
