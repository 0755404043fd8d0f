package api

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/rudhramentertainment/RBackend/internal/domain"
	"github.com/rudhramentertainment/RBackend/internal/service"
	"github.com/rudhramentertainment/RBackend/internal/utils"
)

type pushRequest struct {
	UserIDs []string          `json:"userIds" validate:"required,min=1,dive,mongodb"`
	Title   string            `json:"title" validate:"required"`
	Body    string            `json:"body"`
	Data    map[string]string `json:"data"`
}

// pushNotification queues a push to explicit users. Privileged callers only.
func (s *server) pushNotification(c *fiber.Ctx) error {
	if !identity(c).Role.IsPrivileged() {
		return writeError(c, s.logger, domain.ErrForbidden)
	}
	var req pushRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, s.logger, fmt.Errorf("%w: invalid request body", domain.ErrValidation))
	}
	if err := s.validate.Struct(&req); err != nil {
		return writeError(c, s.logger, fmt.Errorf("%w: %v", domain.ErrValidation, err))
	}
	ids, err := service.ParseIDs(req.UserIDs)
	if err != nil {
		return writeError(c, s.logger, err)
	}
	s.notifier.PushAsync(ids, domain.Notification{Title: req.Title, Body: req.Body, Data: req.Data})
	return utils.JSONSuccess(c, fiber.StatusAccepted, fiber.Map{"queued": len(ids)})
}

func (s *server) listNotifications(c *fiber.Ctx) error {
	if s.notifications == nil {
		return utils.JSONSuccess(c, fiber.StatusOK, []*domain.NotificationRecord{})
	}
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	recs, err := s.notifications.ListForUser(c.UserContext(), identity(c).UserID, int64(limit))
	if err != nil {
		return writeError(c, s.logger, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, recs)
}
