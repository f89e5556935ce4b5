package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/reputation-service/internal/api/dto"
	"github.com/spec-kit/reputation-service/internal/domain"
	"github.com/spec-kit/reputation-service/internal/service"
	apperrors "github.com/spec-kit/reputation-service/pkg/util/errorutil"
)

// UsersHandler exposes account and reputation read endpoints.
type UsersHandler struct {
	reputation *service.ReputationService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(reputationService *service.ReputationService) *UsersHandler {
	return &UsersHandler{reputation: reputationService}
}

// Create handles POST /users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	rep, err := h.reputation.CreateUser(c.UserContext(), service.CreateUserInput{
		ID:        req.ID,
		Name:      req.Name,
		Email:     req.Email,
		CreatedAt: req.CreatedAt,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewReputationResponse(rep)})
}

// Get handles GET /users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	user, err := h.reputation.GetUser(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// Reputation handles GET /users/:id/reputation.
func (h *UsersHandler) Reputation(c *fiber.Ctx) error {
	view, err := h.reputation.Reputation(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewReputationViewResponse(view)})
}

// Recompute handles POST /users/:id/reputation/recompute.
func (h *UsersHandler) Recompute(c *fiber.Ctx) error {
	return respond(c, func() (*domain.Reputation, error) {
		return h.reputation.RecomputeAndSync(c.UserContext(), c.Params("id"))
	})
}

// ListBadges handles GET /users/:id/badges.
func (h *UsersHandler) ListBadges(c *fiber.Ctx) error {
	badges, err := h.reputation.ListBadges(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewBadgeResponses(badges)})
}

// AwardBadge handles POST /users/:id/badges/award.
func (h *UsersHandler) AwardBadge(c *fiber.Ctx) error {
	var req dto.AwardBadgeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.BadgeName == "" {
		return apperrors.NewValidationError("badgeName required", nil)
	}
	return respond(c, func() (*domain.Reputation, error) {
		return h.reputation.GrantBadgeDirectly(c.UserContext(), c.Params("id"), req.BadgeName, req.Reason)
	})
}

func userResponse(u *domain.User) dto.UserResponse {
	badges := u.Badges
	if badges == nil {
		badges = []string{}
	}
	return dto.UserResponse{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		TrustScore: u.TrustScore,
		Badges:     badges,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// respond renders the projection returned by a mutating call.
func respond(c *fiber.Ctx, call func() (*domain.Reputation, error)) error {
	rep, err := call()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewReputationResponse(rep)})
}
