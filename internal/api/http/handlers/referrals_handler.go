package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/reputation-service/internal/api/dto"
	"github.com/spec-kit/reputation-service/internal/service"
)

// ReferralsHandler exposes the referral trigger.
type ReferralsHandler struct {
	referrals *service.ReferralService
}

// NewReferralsHandler constructs handler.
func NewReferralsHandler(referralService *service.ReferralService) *ReferralsHandler {
	return &ReferralsHandler{referrals: referralService}
}

// Create handles POST /referrals. Self referrals answer 200 with null data.
func (h *ReferralsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateReferralRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	referral, err := h.referrals.CreateReferral(c.UserContext(), req.ReferrerID, req.RefereeID)
	if err != nil {
		return err
	}
	if referral == nil {
		return c.JSON(fiber.Map{"data": nil})
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewReferralResponse(referral)})
}

// Complete handles POST /referrals/:id/complete.
func (h *ReferralsHandler) Complete(c *fiber.Ctx) error {
	referral, err := h.referrals.CompleteReferral(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewReferralResponse(referral)})
}
