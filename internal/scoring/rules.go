package scoring

import (
	"time"

	"github.com/spec-kit/reputation-service/internal/domain"
)

// Thresholds used by the achievement rules.
const (
	TopRatedMinJobSuccess     = 90
	EliteMinScore             = 80
	RisingTalentMaxAccountAge = 180 * 24 * time.Hour
	RisingTalentMinCompletion = 80
)

// Input is the consistent snapshot a rule is evaluated against.
type Input struct {
	Facts *domain.Facts
	Score int
	AsOf  time.Time
	// Eligible holds names already found eligible earlier in the table.
	Eligible map[string]bool
}

// Rule is one entry of the badge table.
type Rule struct {
	Badge     string
	Kind      domain.BadgeKind
	Condition func(in Input) bool
}

// Rules is evaluated top to bottom. Order matters: TOP_RATED precedes
// RISING_TALENT, which is suppressed when TOP_RATED holds.
var Rules = []Rule{
	{domain.BadgeIdentityVerified, domain.BadgeMonotonic, func(in Input) bool {
		return in.Facts.IdentityVerified
	}},
	{domain.BadgePaymentVerified, domain.BadgeMonotonic, func(in Input) bool {
		return in.Facts.PaymentVerified
	}},
	{domain.BadgeSkillVerified, domain.BadgeMonotonic, func(in Input) bool {
		return in.Facts.VerifiedCertificationCount() > 0
	}},
	{domain.BadgeSafeToWork, domain.BadgeMonotonic, func(in Input) bool {
		return in.Facts.BackgroundCheckStatus == domain.BackgroundCheckCompleted
	}},
	{domain.BadgeTaxVerified, domain.BadgeMonotonic, func(in Input) bool {
		return in.Facts.TaxVerifiedStatus == domain.TaxVerified
	}},
	{domain.BadgeInsuredPro, domain.BadgeMonotonic, func(in Input) bool {
		return in.Facts.InsuranceActive
	}},
	{domain.BadgeTopRated, domain.BadgeMonotonic, func(in Input) bool {
		return in.Facts.JobSuccessScore >= TopRatedMinJobSuccess &&
			in.Facts.IdentityVerified &&
			in.Score > EliteMinScore
	}},
	{domain.BadgeRisingTalent, domain.BadgeMonotonic, func(in Input) bool {
		return !in.Eligible[domain.BadgeTopRated] &&
			in.Facts.AccountAge(in.AsOf) < RisingTalentMaxAccountAge &&
			in.Facts.CompletionPercentage >= RisingTalentMinCompletion &&
			in.Score > EliteMinScore
	}},
	{domain.BadgeCloudMember, domain.BadgeMirrored, func(in Input) bool {
		return in.Facts.IsCloudMember()
	}},
	{domain.BadgePlusMember, domain.BadgeMirrored, func(in Input) bool {
		return in.Facts.SubscriptionTier == domain.TierPlus
	}},
}

// EligibleBadge is a badge the facts currently qualify for.
type EligibleBadge struct {
	Name string
	Kind domain.BadgeKind
}

// EligibleBadges evaluates the rule table against one facts snapshot.
func EligibleBadges(f *domain.Facts, score int, asOf time.Time) []EligibleBadge {
	in := Input{Facts: f, Score: score, AsOf: asOf, Eligible: make(map[string]bool, len(Rules))}
	out := make([]EligibleBadge, 0, len(Rules))
	for _, rule := range Rules {
		if rule.Condition(in) {
			in.Eligible[rule.Badge] = true
			out = append(out, EligibleBadge{Name: rule.Badge, Kind: rule.Kind})
		}
	}
	return out
}

// RuleKind returns the kind of a rule-derived badge.
func RuleKind(name string) (domain.BadgeKind, bool) {
	for _, rule := range Rules {
		if rule.Badge == name {
			return rule.Kind, true
		}
	}
	return "", false
}

// IsMirrored reports whether name is a rule badge that tracks a revocable fact.
func IsMirrored(name string) bool {
	kind, ok := RuleKind(name)
	return ok && kind == domain.BadgeMirrored
}
