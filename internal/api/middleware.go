package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rudhramentertainment/RBackend/internal/auth"
	"github.com/rudhramentertainment/RBackend/internal/handlers"
	"github.com/rudhramentertainment/RBackend/internal/utils"
)

func identity(c *fiber.Ctx) *auth.Identity {
	id, _ := c.Locals(handlers.LocalsIdentity).(*auth.Identity)
	return id
}

func (s *server) authenticate(c *fiber.Ctx, token string) (*auth.Identity, error) {
	ctx, cancel := context.WithTimeout(c.UserContext(), s.authTimeout)
	defer cancel()
	return s.auth.Authenticate(ctx, token)
}

// requireAuth rejects requests without a valid bearer token.
func (s *server) requireAuth(c *fiber.Ctx) error {
	id, err := s.authenticate(c, auth.BearerToken(c.Get(fiber.HeaderAuthorization)))
	if err != nil {
		return writeError(c, s.logger, err)
	}
	c.Locals(handlers.LocalsIdentity, id)
	return c.Next()
}

// optionalAuth attaches an identity when a valid token is present.
func (s *server) optionalAuth(c *fiber.Ctx) error {
	if tok := auth.BearerToken(c.Get(fiber.HeaderAuthorization)); tok != "" {
		if id, err := s.authenticate(c, tok); err == nil {
			c.Locals(handlers.LocalsIdentity, id)
		}
	}
	return c.Next()
}

// wsHandshakeToken reads the socket credential from the query, the
// Authorization header, or the subprotocol list.
func wsHandshakeToken(c *fiber.Ctx) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	if t := auth.BearerToken(c.Get(fiber.HeaderAuthorization)); t != "" {
		return t
	}
	var tok string
	for _, p := range strings.Split(c.Get("Sec-WebSocket-Protocol"), ",") {
		p = strings.TrimSpace(p)
		if p != "" && !strings.EqualFold(p, "bearer") {
			tok = p
		}
	}
	return tok
}

func (s *server) sendRateLimit(c *fiber.Ctx) error {
	if s.limiter == nil {
		return c.Next()
	}
	id := identity(c)
	if id == nil {
		return c.Next()
	}
	ok, err := s.limiter.Allow(c.UserContext(), "send:"+id.UserID.Hex())
	if err != nil {
		s.logger.Warnw("rate limiter unavailable", "err", err)
		return c.Next()
	}
	if !ok {
		return utils.JSONError(c, fiber.StatusTooManyRequests, "rate limit exceeded")
	}
	return c.Next()
}

func zapLogger(logger *zap.SugaredLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		fields := []any{
			"method", c.Method(),
			"path", c.Path(),
			"ip", c.IP(),
			"status", c.Response().StatusCode(),
			"latency", time.Since(start),
		}
		if err != nil {
			logger.Errorw("http request error", append(fields, "err", err)...)
			return err
		}
		logger.Infow("http request", fields...)
		return nil
	}
}

func zapRecover(logger *zap.SugaredLogger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("panic recovered", "panic", fmt.Sprint(r), "path", c.Path())
				err = utils.JSONError(c, fiber.StatusInternalServerError, "internal server error")
			}
		}()
		return c.Next()
	}
}
