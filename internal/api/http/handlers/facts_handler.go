package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/reputation-service/internal/api/dto"
	"github.com/spec-kit/reputation-service/internal/domain"
	"github.com/spec-kit/reputation-service/internal/service"
	apperrors "github.com/spec-kit/reputation-service/pkg/util/errorutil"
)

// FactsHandler accepts fact assertions from collaborating services.
type FactsHandler struct {
	reputation *service.ReputationService
}

// NewFactsHandler constructs handler.
func NewFactsHandler(reputationService *service.ReputationService) *FactsHandler {
	return &FactsHandler{reputation: reputationService}
}

func parse(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

// CloudMembership handles PATCH /users/:id/cloud-membership.
func (h *FactsHandler) CloudMembership(c *fiber.Ctx) error {
	var req dto.CloudMembershipRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if req.IsCloudMember == nil || req.CloudID == "" {
		return apperrors.NewValidationError("isCloudMember and cloudId required", nil)
	}
	return respond(c, func() (*domain.Reputation, error) {
		return h.reputation.SetCloudMembership(c.UserContext(), c.Params("id"), req.CloudID, *req.IsCloudMember)
	})
}

// SubmitKYC handles POST /users/:id/kyc.
func (h *FactsHandler) SubmitKYC(c *fiber.Ctx) error {
	var req dto.KYCRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	return respond(c, func() (*domain.Reputation, error) {
		return h.reputation.SubmitKYC(c.UserContext(), c.Params("id"), req.IDDocument)
	})
}

// VerifyKYC handles POST /users/:id/kyc/verify.
func (h *FactsHandler) VerifyKYC(c *fiber.Ctx) error {
	return respond(c, func() (*domain.Reputation, error) {
		return h.reputation.VerifyKYC(c.UserContext(), c.Params("id"))
	})
}

// VerifyPayment handles POST /users/:id/payment/verify.
func (h *FactsHandler) VerifyPayment(c *fiber.Ctx) error {
	return respond(c, func() (*domain.Reputation, error) {
		return h.reputation.VerifyPayment(c.UserContext(), c.Params("id"))
	})
}

// VerifyEmail handles POST /users/:id/email/verify.
func (h *FactsHandler) VerifyEmail(c *fiber.Ctx) error {
	return respond(c, func() (*domain.Reputation, error) {
		return h.reputation.VerifyEmail(c.UserContext(), c.Params("id"))
	})
}

// AddCertification handles POST /users/:id/certifications.
func (h *FactsHandler) AddCertification(c *fiber.Ctx) error {
	var req dto.AddCertificationRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	rep, cert, err := h.reputation.AddCertification(c.UserContext(), c.Params("id"), domain.CertificationInput{
		Title:     req.Title,
		Issuer:    req.Issuer,
		IssuerRef: req.IssuerRef,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.CertificationAddedResponse{
		ReputationResponse: dto.NewReputationResponse(rep),
		Certification:      dto.NewCertificationResponse(*cert),
	}})
}

// ReviewCertification handles POST /users/:id/certifications/:certId/verify.
func (h *FactsHandler) ReviewCertification(c *fiber.Ctx) error {
	var req dto.StatusRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	return respond(c, func() (*domain.Reputation, error) {
		return h.reputation.ReviewCertification(c.UserContext(), c.Params("id"), c.Params("certId"), req.Status)
	})
}

// InitiateBackgroundCheck handles POST /users/:id/background-check/initiate.
func (h *FactsHandler) InitiateBackgroundCheck(c *fiber.Ctx) error {
	return respond(c, func() (*domain.Reputation, error) {
		return h.reputation.InitiateBackgroundCheck(c.UserContext(), c.Params("id"))
	})
}

// CompleteBackgroundCheck handles POST /users/:id/background-check/verify.
func (h *FactsHandler) CompleteBackgroundCheck(c *fiber.Ctx) error {
	var req dto.StatusRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	return respond(c, func() (*domain.Reputation, error) {
		return h.reputation.CompleteBackgroundCheck(c.UserContext(), c.Params("id"), req.Status)
	})
}

// SubmitTaxForm handles POST /users/:id/tax-form.
func (h *FactsHandler) SubmitTaxForm(c *fiber.Ctx) error {
	var req dto.TaxFormRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	return respond(c, func() (*domain.Reputation, error) {
		return h.reputation.SubmitTaxForm(c.UserContext(), c.Params("id"), service.TaxForm{
			FormType:  req.FormType,
			LegalName: req.LegalName,
			Country:   req.Country,
		})
	})
}

// Subscription handles POST /users/:id/subscription.
func (h *FactsHandler) Subscription(c *fiber.Ctx) error {
	var req dto.SubscriptionRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	return respond(c, func() (*domain.Reputation, error) {
		return h.reputation.SetSubscription(c.UserContext(), c.Params("id"), req.PlanID)
	})
}

// Insurance handles POST /users/:id/insurance.
func (h *FactsHandler) Insurance(c *fiber.Ctx) error {
	var req dto.InsuranceRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	active := req.Active == nil || *req.Active
	return respond(c, func() (*domain.Reputation, error) {
		return h.reputation.SetInsurance(c.UserContext(), c.Params("id"), req.PolicyID, active)
	})
}

// JobSuccess handles PATCH /users/:id/job-success.
func (h *FactsHandler) JobSuccess(c *fiber.Ctx) error {
	var req dto.JobSuccessRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if req.Score == nil {
		return apperrors.NewValidationError("score required", nil)
	}
	return respond(c, func() (*domain.Reputation, error) {
		return h.reputation.SetJobSuccessScore(c.UserContext(), c.Params("id"), *req.Score)
	})
}

// ProfileCompletion handles PATCH /users/:id/profile-completion.
func (h *FactsHandler) ProfileCompletion(c *fiber.Ctx) error {
	var req dto.ProfileCompletionRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if req.Percentage == nil {
		return apperrors.NewValidationError("percentage required", nil)
	}
	return respond(c, func() (*domain.Reputation, error) {
		return h.reputation.SetCompletionPercentage(c.UserContext(), c.Params("id"), *req.Percentage)
	})
}
