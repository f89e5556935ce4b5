package domain

import (
	"regexp"
	"strings"
	"time"

	apperrors "github.com/spec-kit/reputation-service/pkg/util/errorutil"
)

// Rule-derived badge names.
const (
	BadgeIdentityVerified = "IDENTITY_VERIFIED"
	BadgePaymentVerified  = "PAYMENT_VERIFIED"
	BadgeSkillVerified    = "SKILL_VERIFIED"
	BadgeSafeToWork       = "SAFE_TO_WORK"
	BadgeTaxVerified      = "TAX_VERIFIED"
	BadgeInsuredPro       = "INSURED_PRO"
	BadgeTopRated         = "TOP_RATED"
	BadgeRisingTalent     = "RISING_TALENT"
	BadgeCloudMember      = "CLOUD_MEMBER"
	BadgePlusMember       = "PLUS_MEMBER"
)

// BadgeKind decides whether the rules engine may ever remove a badge.
type BadgeKind string

const (
	// BadgeMonotonic badges are achievements and are never revoked.
	BadgeMonotonic BadgeKind = "MONOTONIC"
	// BadgeMirrored badges track a revocable fact and are removed with it.
	BadgeMirrored BadgeKind = "MIRRORED"
)

// BadgeOrigin records which path awarded a badge.
type BadgeOrigin string

const (
	OriginRuleEngine  BadgeOrigin = "RULE_ENGINE"
	OriginManualGrant BadgeOrigin = "MANUAL_GRANT"
)

// Badge is one awarded ledger row. At most one exists per (UserID, Name).
type Badge struct {
	ID        string
	UserID    string
	Name      string
	Slug      string
	AwardedAt time.Time
	Metadata  map[string]any
	Origin    BadgeOrigin
	Kind      BadgeKind
}

// BadgeAward is a request to add a badge if absent.
type BadgeAward struct {
	Name     string
	Kind     BadgeKind
	Origin   BadgeOrigin
	Metadata map[string]any
}

var badgeNamePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{1,63}$`)

// NormalizeBadgeName canonicalises free-form names from collaborators,
// e.g. "Go Fundamentals" becomes GO_FUNDAMENTALS.
func NormalizeBadgeName(raw string) (string, error) {
	name := strings.ToUpper(strings.TrimSpace(raw))
	name = strings.NewReplacer(" ", "_", "-", "_").Replace(name)
	if !badgeNamePattern.MatchString(name) {
		return "", apperrors.NewInvalidFact("invalid badge name", map[string]any{"badgeName": raw})
	}
	return name, nil
}

// BadgeSlug returns the URL-friendly form of a badge name.
func BadgeSlug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "_", "-")
}

// BadgeNames returns the names of badges in order.
func BadgeNames(badges []Badge) []string {
	names := make([]string, 0, len(badges))
	for _, b := range badges {
		names = append(names, b.Name)
	}
	return names
}
