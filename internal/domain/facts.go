package domain

import (
	"slices"
	"strings"
	"time"
)

// CertificationStatus tracks the review lifecycle of a certification.
type CertificationStatus string

const (
	CertificationPending  CertificationStatus = "PENDING"
	CertificationVerified CertificationStatus = "VERIFIED"
	CertificationRejected CertificationStatus = "REJECTED"
)

// IsTerminal reports whether no further transition is allowed.
func (s CertificationStatus) IsTerminal() bool {
	return s == CertificationVerified || s == CertificationRejected
}

// BackgroundCheckStatus only moves forward.
type BackgroundCheckStatus string

const (
	BackgroundCheckUnstarted BackgroundCheckStatus = "UNSTARTED"
	BackgroundCheckPending   BackgroundCheckStatus = "PENDING"
	BackgroundCheckCompleted BackgroundCheckStatus = "COMPLETED"
)

func (s BackgroundCheckStatus) rank() int {
	switch s {
	case BackgroundCheckPending:
		return 1
	case BackgroundCheckCompleted:
		return 2
	default:
		return 0
	}
}

// TaxStatus records tax compliance.
type TaxStatus string

const (
	TaxUnverified TaxStatus = "UNVERIFIED"
	TaxVerified   TaxStatus = "VERIFIED"
)

// SubscriptionTier is the user's current plan.
type SubscriptionTier string

const (
	TierBasic      SubscriptionTier = "BASIC"
	TierPlus       SubscriptionTier = "PLUS"
	TierEnterprise SubscriptionTier = "ENTERPRISE"
)

// Certification is a skill credential asserted by the certifications service.
type Certification struct {
	ID        string
	Title     string
	Issuer    string
	IssuerRef string
	Status    CertificationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Facts is the complete set of verification facts for one user. It is the only
// source of truth for the trust score and rule-derived badges.
type Facts struct {
	UserID                string
	IdentityVerified      bool
	PaymentVerified       bool
	EmailVerified         bool
	Certifications        []Certification
	BackgroundCheckStatus BackgroundCheckStatus
	TaxVerifiedStatus     TaxStatus
	InsuranceActive       bool
	// CloudMemberships is a sorted set of cloud IDs.
	CloudMemberships     []string
	SubscriptionTier     SubscriptionTier
	AccountCreatedAt     time.Time
	JobSuccessScore      int
	CompletionPercentage int
	UpdatedAt            time.Time
}

// NewFacts returns the default facts of a freshly created account.
func NewFacts(userID string, createdAt time.Time) *Facts {
	return &Facts{
		UserID:                userID,
		BackgroundCheckStatus: BackgroundCheckUnstarted,
		TaxVerifiedStatus:     TaxUnverified,
		SubscriptionTier:      TierBasic,
		AccountCreatedAt:      createdAt,
		UpdatedAt:             createdAt,
	}
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (f *Facts) Clone() *Facts {
	if f == nil {
		return nil
	}
	out := *f
	out.Certifications = slices.Clone(f.Certifications)
	out.CloudMemberships = slices.Clone(f.CloudMemberships)
	return &out
}

// VerifiedCertificationCount counts certifications in VERIFIED status.
func (f *Facts) VerifiedCertificationCount() int {
	count := 0
	for _, cert := range f.Certifications {
		if cert.Status == CertificationVerified {
			count++
		}
	}
	return count
}

// IsCloudMember reports whether the user belongs to at least one talent cloud.
func (f *Facts) IsCloudMember() bool {
	return len(f.CloudMemberships) > 0
}

// AccountAge returns the account age at asOf.
func (f *Facts) AccountAge(asOf time.Time) time.Duration {
	if f.AccountCreatedAt.IsZero() || asOf.Before(f.AccountCreatedAt) {
		return 0
	}
	return asOf.Sub(f.AccountCreatedAt)
}

// Certification returns the certification with id.
func (f *Facts) Certification(id string) (*Certification, bool) {
	for i := range f.Certifications {
		if f.Certifications[i].ID == id {
			return &f.Certifications[i], true
		}
	}
	return nil, false
}

// CertificationByIssuerRef finds a certification by its issuer-side reference.
// An empty reference never matches.
func (f *Facts) CertificationByIssuerRef(issuer, issuerRef string) (*Certification, bool) {
	if strings.TrimSpace(issuerRef) == "" {
		return nil, false
	}
	for i := range f.Certifications {
		c := &f.Certifications[i]
		if strings.EqualFold(c.Issuer, issuer) && c.IssuerRef == issuerRef {
			return c, true
		}
	}
	return nil, false
}

func (f *Facts) joinCloud(cloudID string) bool {
	idx, found := slices.BinarySearch(f.CloudMemberships, cloudID)
	if found {
		return false
	}
	f.CloudMemberships = slices.Insert(f.CloudMemberships, idx, cloudID)
	return true
}

func (f *Facts) leaveCloud(cloudID string) bool {
	idx, found := slices.BinarySearch(f.CloudMemberships, cloudID)
	if !found {
		return false
	}
	f.CloudMemberships = slices.Delete(f.CloudMemberships, idx, idx+1)
	return true
}
