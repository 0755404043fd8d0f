package api

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rudhramentertainment/RBackend/internal/domain"
	"github.com/rudhramentertainment/RBackend/internal/utils"
)

type tokenRequest struct {
	Token    string `json:"token" validate:"required,max=4096"`
	UserID   string `json:"userId" validate:"omitempty,mongodb"`
	Platform string `json:"platform" validate:"omitempty,oneof=android ios web"`
}

func (s *server) bindToken(c *fiber.Ctx) (*tokenRequest, error) {
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, fmt.Errorf("%w: invalid request body", domain.ErrValidation)
	}
	if err := s.validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return &req, nil
}

// registerToken is public: an authenticated caller registers for itself,
// otherwise the body must name the user.
func (s *server) registerToken(c *fiber.Ctx) error {
	req, err := s.bindToken(c)
	if err != nil {
		return writeError(c, s.logger, err)
	}
	var uid primitive.ObjectID
	if id := identity(c); id != nil {
		uid = id.UserID
	} else if req.UserID != "" {
		uid, _ = primitive.ObjectIDFromHex(req.UserID)
	} else {
		return writeError(c, s.logger, fmt.Errorf("%w: userId is required", domain.ErrValidation))
	}
	if err := s.notifier.RegisterToken(c.UserContext(), uid, req.Token); err != nil {
		return writeError(c, s.logger, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"userId": uid.Hex(), "registered": true})
}

func (s *server) removeToken(c *fiber.Ctx) error {
	req, err := s.bindToken(c)
	if err != nil {
		return writeError(c, s.logger, err)
	}
	if err := s.notifier.RemoveToken(c.UserContext(), identity(c).UserID, req.Token); err != nil {
		return writeError(c, s.logger, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"removed": true})
}

func (s *server) myTokens(c *fiber.Ctx) error {
	tokens, err := s.notifier.ListTokens(c.UserContext(), identity(c).UserID)
	if err != nil {
		return writeError(c, s.logger, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"tokens": tokens})
}

func (s *server) userPresence(c *fiber.Ctx) error {
	uid, err := domain.ParseID(c.Params("id"))
	if err != nil {
		return writeError(c, s.logger, err)
	}
	if s.presence == nil {
		return utils.JSONError(c, fiber.StatusServiceUnavailable, "presence unavailable")
	}
	p, err := s.presence.GetPresence(c.UserContext(), uid.Hex())
	if err != nil {
		return writeError(c, s.logger, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, p)
}
