package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rudhramentertainment/RBackend/internal/auth"
	"github.com/rudhramentertainment/RBackend/internal/domain"
	"github.com/rudhramentertainment/RBackend/internal/utils"
)

// writeError maps domain errors to HTTP statuses. Unclassified errors are
// logged and hidden behind a generic 500.
func writeError(c *fiber.Ctx, logger *zap.SugaredLogger, err error) error {
	var fe *fiber.Error
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		return utils.JSONError(c, fiber.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrValidation):
		return utils.JSONError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return utils.JSONError(c, fiber.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrNotFound):
		return utils.JSONError(c, fiber.StatusNotFound, "not found")
	case errors.As(err, &fe):
		return utils.JSONError(c, fe.Code, fe.Message)
	}
	logger.Errorw("request failed", "method", c.Method(), "path", c.Path(), "err", err)
	return utils.JSONError(c, fiber.StatusInternalServerError, "internal server error")
}
