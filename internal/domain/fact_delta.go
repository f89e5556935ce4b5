package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/spec-kit/reputation-service/pkg/util/errorutil"
)

// FactKind enumerates the facts collaborators can assert or retract.
type FactKind string

const (
	FactIdentityVerified     FactKind = "IDENTITY_VERIFIED"
	FactPaymentVerified      FactKind = "PAYMENT_VERIFIED"
	FactEmailVerified        FactKind = "EMAIL_VERIFIED"
	FactCertificationAdded   FactKind = "CERTIFICATION_ADDED"
	FactCertificationStatus  FactKind = "CERTIFICATION_STATUS"
	FactBackgroundCheck      FactKind = "BACKGROUND_CHECK"
	FactTaxStatus            FactKind = "TAX_STATUS"
	FactInsuranceActive      FactKind = "INSURANCE_ACTIVE"
	FactCloudMembership      FactKind = "CLOUD_MEMBERSHIP"
	FactSubscriptionTier     FactKind = "SUBSCRIPTION_TIER"
	FactJobSuccessScore      FactKind = "JOB_SUCCESS_SCORE"
	FactCompletionPercentage FactKind = "COMPLETION_PERCENTAGE"
)

// CertificationInput describes a newly asserted certification.
type CertificationInput struct {
	ID        string `json:"id,omitempty"`
	Title     string `json:"title"`
	Issuer    string `json:"issuer"`
	IssuerRef string `json:"issuerRef,omitempty"`
}

// FactDelta is a single fact assertion or retraction. Which fields are used
// depends on Fact:
//
//	IDENTITY/PAYMENT/EMAIL_VERIFIED, INSURANCE_ACTIVE   Flag
//	CLOUD_MEMBERSHIP                                    Subject (cloud id), Flag
//	CERTIFICATION_ADDED                                 Certification
//	CERTIFICATION_STATUS                                Subject (certification id), Status
//	BACKGROUND_CHECK, TAX_STATUS, SUBSCRIPTION_TIER     Status
//	JOB_SUCCESS_SCORE, COMPLETION_PERCENTAGE            Value
type FactDelta struct {
	Fact          FactKind            `json:"fact"`
	Flag          *bool               `json:"flag,omitempty"`
	Value         *int                `json:"value,omitempty"`
	Status        string              `json:"status,omitempty"`
	Subject       string              `json:"subject,omitempty"`
	Certification *CertificationInput `json:"certification,omitempty"`
}

// Normalize validates the delta and returns its canonical form. Nothing is
// mutated when it fails.
func (d FactDelta) Normalize() (FactDelta, error) {
	d.Fact = FactKind(strings.ToUpper(strings.TrimSpace(string(d.Fact))))
	d.Status = strings.ToUpper(strings.TrimSpace(d.Status))
	d.Subject = strings.TrimSpace(d.Subject)

	switch d.Fact {
	case FactIdentityVerified, FactPaymentVerified, FactEmailVerified:
		if d.Flag == nil {
			d.Flag = boolPtr(true)
		}
		if !*d.Flag {
			return d, invalidFact(d.Fact, "verification flags cannot be retracted")
		}
	case FactInsuranceActive:
		if d.Flag == nil {
			d.Flag = boolPtr(true)
		}
	case FactCloudMembership:
		if d.Subject == "" {
			return d, invalidFact(d.Fact, "cloud id is required")
		}
		if d.Flag == nil {
			return d, invalidFact(d.Fact, "membership flag is required")
		}
	case FactCertificationAdded:
		if d.Certification == nil {
			return d, invalidFact(d.Fact, "certification is required")
		}
		cert := *d.Certification
		cert.Title = strings.TrimSpace(cert.Title)
		cert.Issuer = strings.TrimSpace(cert.Issuer)
		cert.IssuerRef = strings.TrimSpace(cert.IssuerRef)
		if cert.Title == "" || cert.Issuer == "" {
			return d, invalidFact(d.Fact, "certification title and issuer are required")
		}
		d.Certification = &cert
	case FactCertificationStatus:
		if d.Subject == "" {
			return d, invalidFact(d.Fact, "certification id is required")
		}
		status := CertificationStatus(d.Status)
		if !status.IsTerminal() {
			return d, invalidFact(d.Fact, "certification status must be VERIFIED or REJECTED")
		}
	case FactBackgroundCheck:
		switch BackgroundCheckStatus(d.Status) {
		case BackgroundCheckUnstarted, BackgroundCheckPending, BackgroundCheckCompleted:
		default:
			return d, invalidFact(d.Fact, "unknown background check status")
		}
	case FactTaxStatus:
		switch TaxStatus(d.Status) {
		case TaxUnverified, TaxVerified:
		default:
			return d, invalidFact(d.Fact, "unknown tax status")
		}
	case FactSubscriptionTier:
		tier, err := ParseSubscriptionTier(d.Status)
		if err != nil {
			return d, err
		}
		d.Status = string(tier)
	case FactJobSuccessScore, FactCompletionPercentage:
		if d.Value == nil || *d.Value < 0 || *d.Value > 100 {
			return d, invalidFact(d.Fact, "value must be between 0 and 100")
		}
	default:
		return d, apperrors.NewInvalidFact("unknown fact", map[string]any{"fact": string(d.Fact)})
	}
	return d, nil
}

// Apply mutates facts according to a normalized delta and reports whether
// anything changed. Stale forward-only transitions are ignored.
func (d FactDelta) Apply(f *Facts, now time.Time) (bool, error) {
	changed := false
	switch d.Fact {
	case FactIdentityVerified:
		changed = setBool(&f.IdentityVerified, *d.Flag)
	case FactPaymentVerified:
		changed = setBool(&f.PaymentVerified, *d.Flag)
	case FactEmailVerified:
		changed = setBool(&f.EmailVerified, *d.Flag)
	case FactInsuranceActive:
		changed = setBool(&f.InsuranceActive, *d.Flag)
	case FactCloudMembership:
		if *d.Flag {
			changed = f.joinCloud(d.Subject)
		} else {
			changed = f.leaveCloud(d.Subject)
		}
	case FactCertificationAdded:
		in := d.Certification
		if _, exists := f.CertificationByIssuerRef(in.Issuer, in.IssuerRef); exists {
			return false, nil
		}
		if in.ID == "" {
			return false, apperrors.NewValidationError("certification id must be assigned", nil)
		}
		if _, exists := f.Certification(in.ID); exists {
			return false, nil
		}
		f.Certifications = append(f.Certifications, Certification{
			ID:        in.ID,
			Title:     in.Title,
			Issuer:    in.Issuer,
			IssuerRef: in.IssuerRef,
			Status:    CertificationPending,
			CreatedAt: now,
			UpdatedAt: now,
		})
		changed = true
	case FactCertificationStatus:
		cert, ok := f.Certification(d.Subject)
		if !ok {
			return false, apperrors.NewNotFound("certification", map[string]any{"certificationId": d.Subject})
		}
		next := CertificationStatus(d.Status)
		if cert.Status == next {
			return false, nil
		}
		if cert.Status.IsTerminal() {
			return false, apperrors.NewConflict("certification already reviewed", map[string]any{
				"certificationId": cert.ID,
				"status":          string(cert.Status),
			})
		}
		cert.Status = next
		cert.UpdatedAt = now
		changed = true
	case FactBackgroundCheck:
		next := BackgroundCheckStatus(d.Status)
		if next.rank() > f.BackgroundCheckStatus.rank() {
			f.BackgroundCheckStatus = next
			changed = true
		}
	case FactTaxStatus:
		next := TaxStatus(d.Status)
		if f.TaxVerifiedStatus != next {
			f.TaxVerifiedStatus = next
			changed = true
		}
	case FactSubscriptionTier:
		next := SubscriptionTier(d.Status)
		if f.SubscriptionTier != next {
			f.SubscriptionTier = next
			changed = true
		}
	case FactJobSuccessScore:
		changed = setInt(&f.JobSuccessScore, *d.Value)
	case FactCompletionPercentage:
		changed = setInt(&f.CompletionPercentage, *d.Value)
	default:
		return false, apperrors.NewInvalidFact("unknown fact", map[string]any{"fact": string(d.Fact)})
	}
	if changed {
		f.UpdatedAt = now
	}
	return changed, nil
}

// Scope identifies which slot of the user's facts the delta writes, e.g. one
// cloud id or one certification. Deltas with the same scope overwrite each other.
func (d FactDelta) Scope() string {
	switch d.Fact {
	case FactCertificationAdded:
		if d.Certification != nil {
			return strings.ToLower(d.Certification.Issuer) + "|" + d.Certification.IssuerRef
		}
	case FactCloudMembership, FactCertificationStatus:
		return d.Subject
	}
	return ""
}

// IdempotencyKey derives the delivery key for (userID, fact, value). Retried
// deliveries of the same assertion share it.
func (d FactDelta) IdempotencyKey(userID string) string {
	var value string
	switch {
	case d.Flag != nil:
		value = strconv.FormatBool(*d.Flag)
	case d.Value != nil:
		value = strconv.Itoa(*d.Value)
	case d.Certification != nil:
		value = d.Certification.Title
	default:
		value = d.Status
	}
	sum := sha256.Sum256([]byte(userID + "|" + string(d.Fact) + "|" + d.Scope() + "|" + value))
	return hex.EncodeToString(sum[:])
}

// ParseSubscriptionTier maps a plan id onto a tier.
func ParseSubscriptionTier(planID string) (SubscriptionTier, error) {
	switch SubscriptionTier(strings.ToUpper(strings.TrimSpace(planID))) {
	case TierBasic:
		return TierBasic, nil
	case TierPlus:
		return TierPlus, nil
	case TierEnterprise:
		return TierEnterprise, nil
	}
	return "", invalidFact(FactSubscriptionTier, "unknown plan")
}

func invalidFact(fact FactKind, message string) error {
	return apperrors.NewInvalidFact(message, map[string]any{"fact": string(fact)})
}

func setBool(dst *bool, v bool) bool {
	if *dst == v {
		return false
	}
	*dst = v
	return true
}

func setInt(dst *int, v int) bool {
	if *dst == v {
		return false
	}
	*dst = v
	return true
}

func boolPtr(v bool) *bool { return &v }
