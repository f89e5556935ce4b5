package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/reputation-service/internal/domain"
	apperrors "github.com/spec-kit/reputation-service/pkg/util/errorutil"
)

// The methods below are the typed entry points collaborators call. Each one
// builds a FactDelta and goes through ApplyFact.

func flag(v bool) *bool { return &v }

func value(v int) *int { return &v }

// SetCloudMembership joins or leaves a talent cloud.
func (s *ReputationService) SetCloudMembership(ctx context.Context, userID, cloudID string, member bool) (*domain.Reputation, error) {
	return s.ApplyFact(ctx, userID, domain.FactDelta{
		Fact:    domain.FactCloudMembership,
		Subject: cloudID,
		Flag:    flag(member),
	})
}

// SubmitKYC records that identity documents were submitted. Verification
// arrives separately, so no fact changes here.
func (s *ReputationService) SubmitKYC(ctx context.Context, userID, idDocument string) (*domain.Reputation, error) {
	if strings.TrimSpace(idDocument) == "" {
		return nil, apperrors.NewValidationError("idDocument is required", nil)
	}
	user, _, badges, err := s.store.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("kyc submitted", zap.String("user_id", userID))
	return newReputation(user.ID, user.TrustScore, badges), nil
}

// VerifyKYC marks the user's identity verified.
func (s *ReputationService) VerifyKYC(ctx context.Context, userID string) (*domain.Reputation, error) {
	return s.ApplyFact(ctx, userID, domain.FactDelta{Fact: domain.FactIdentityVerified, Flag: flag(true)})
}

// VerifyPayment marks the user's payment method verified.
func (s *ReputationService) VerifyPayment(ctx context.Context, userID string) (*domain.Reputation, error) {
	return s.ApplyFact(ctx, userID, domain.FactDelta{Fact: domain.FactPaymentVerified, Flag: flag(true)})
}

// VerifyEmail marks the user's email verified.
func (s *ReputationService) VerifyEmail(ctx context.Context, userID string) (*domain.Reputation, error) {
	return s.ApplyFact(ctx, userID, domain.FactDelta{Fact: domain.FactEmailVerified, Flag: flag(true)})
}

// AddCertification records a PENDING certification and returns it. Adding
// the same issuer reference twice returns the existing certification.
func (s *ReputationService) AddCertification(ctx context.Context, userID string, input domain.CertificationInput) (*domain.Reputation, *domain.Certification, error) {
	delta, err := domain.FactDelta{Fact: domain.FactCertificationAdded, Certification: &input}.Normalize()
	if err != nil {
		return nil, nil, err
	}
	if delta.Certification.ID == "" {
		delta.Certification.ID = uuid.NewString()
	}

	var cert domain.Certification
	rep, err := s.mutate(ctx, userID, func(f *domain.Facts, now time.Time) (bool, error) {
		changed, err := delta.Apply(f, now)
		if err != nil {
			return false, err
		}
		found, ok := f.CertificationByIssuerRef(delta.Certification.Issuer, delta.Certification.IssuerRef)
		if !ok {
			found, ok = f.Certification(delta.Certification.ID)
		}
		if ok {
			cert = *found
		}
		return changed, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return rep, &cert, nil
}

// ReviewCertification moves a PENDING certification to VERIFIED or REJECTED.
func (s *ReputationService) ReviewCertification(ctx context.Context, userID, certificationID, status string) (*domain.Reputation, error) {
	return s.ApplyFact(ctx, userID, domain.FactDelta{
		Fact:    domain.FactCertificationStatus,
		Subject: certificationID,
		Status:  status,
	})
}

// InitiateBackgroundCheck moves the background check to PENDING.
func (s *ReputationService) InitiateBackgroundCheck(ctx context.Context, userID string) (*domain.Reputation, error) {
	return s.ApplyFact(ctx, userID, domain.FactDelta{
		Fact:   domain.FactBackgroundCheck,
		Status: string(domain.BackgroundCheckPending),
	})
}

// CompleteBackgroundCheck records the provider's status. Stale statuses are ignored.
func (s *ReputationService) CompleteBackgroundCheck(ctx context.Context, userID, status string) (*domain.Reputation, error) {
	return s.ApplyFact(ctx, userID, domain.FactDelta{Fact: domain.FactBackgroundCheck, Status: status})
}

// TaxForm is a submitted tax document.
type TaxForm struct {
	FormType  string
	LegalName string
	Country   string
}

var taxFormTypes = map[string]bool{"W-9": true, "W-8BEN": true, "W-8BEN-E": true}

// SubmitTaxForm validates the form and marks the user tax verified.
func (s *ReputationService) SubmitTaxForm(ctx context.Context, userID string, form TaxForm) (*domain.Reputation, error) {
	details := map[string]any{}
	formType := strings.ToUpper(strings.TrimSpace(form.FormType))
	if !taxFormTypes[formType] {
		details["formType"] = "must be one of W-9, W-8BEN, W-8BEN-E"
	}
	if strings.TrimSpace(form.LegalName) == "" {
		details["legalName"] = "required"
	}
	if len(strings.TrimSpace(form.Country)) != 2 {
		details["country"] = "must be an ISO 3166-1 alpha-2 code"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid tax form", details)
	}
	rep, err := s.ApplyFact(ctx, userID, domain.FactDelta{Fact: domain.FactTaxStatus, Status: string(domain.TaxVerified)})
	if err != nil {
		return nil, err
	}
	s.logger.Info("tax form submitted", zap.String("user_id", userID), zap.String("form_type", formType))
	return rep, nil
}

// SetSubscription changes the user's plan.
func (s *ReputationService) SetSubscription(ctx context.Context, userID, planID string) (*domain.Reputation, error) {
	return s.ApplyFact(ctx, userID, domain.FactDelta{Fact: domain.FactSubscriptionTier, Status: planID})
}

// SetInsurance records a purchased policy or its lapse.
func (s *ReputationService) SetInsurance(ctx context.Context, userID, policyID string, active bool) (*domain.Reputation, error) {
	if active && strings.TrimSpace(policyID) == "" {
		return nil, apperrors.NewValidationError("policyId is required", nil)
	}
	return s.ApplyFact(ctx, userID, domain.FactDelta{Fact: domain.FactInsuranceActive, Flag: flag(active)})
}

// SetJobSuccessScore stores the latest job success score.
func (s *ReputationService) SetJobSuccessScore(ctx context.Context, userID string, score int) (*domain.Reputation, error) {
	return s.ApplyFact(ctx, userID, domain.FactDelta{Fact: domain.FactJobSuccessScore, Value: value(score)})
}

// SetCompletionPercentage stores the profile completion percentage.
func (s *ReputationService) SetCompletionPercentage(ctx context.Context, userID string, percentage int) (*domain.Reputation, error) {
	return s.ApplyFact(ctx, userID, domain.FactDelta{Fact: domain.FactCompletionPercentage, Value: value(percentage)})
}
