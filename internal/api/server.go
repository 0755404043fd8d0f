package api

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/rudhramentertainment/RBackend/internal/handlers"
	"github.com/rudhramentertainment/RBackend/internal/metrics"
	"github.com/rudhramentertainment/RBackend/internal/storage"
	"github.com/rudhramentertainment/RBackend/internal/utils"
)

// Deps are the collaborators behind the HTTP surface. Presence, Limiter,
// Attachments, Notifications and WS may be nil.
type Deps struct {
	Auth          Authenticator
	Messages      Messages
	Unread        UnreadCounter
	Notifier      Notifier
	Notifications NotificationLog
	Presence      PresenceReader
	Limiter       SendLimiter
	Attachments   Attachments
	WS            func(*websocket.Conn)

	UploadsDir  string
	CORSOrigins []string
	AuthTimeout time.Duration
	BodyLimit   int
	Logger      *zap.SugaredLogger
}

type server struct {
	auth          Authenticator
	messages      Messages
	unread        UnreadCounter
	notifier      Notifier
	notifications NotificationLog
	presence      PresenceReader
	limiter       SendLimiter
	attachments   Attachments
	validate      *validator.Validate
	authTimeout   time.Duration
	logger        *zap.SugaredLogger
}

func NewServer(d Deps) *fiber.App {
	if d.AuthTimeout <= 0 {
		d.AuthTimeout = 2 * time.Second
	}
	if d.BodyLimit <= 0 {
		d.BodyLimit = 50 << 20
	}
	s := &server{
		auth:          d.Auth,
		messages:      d.Messages,
		unread:        d.Unread,
		notifier:      d.Notifier,
		notifications: d.Notifications,
		presence:      d.Presence,
		limiter:       d.Limiter,
		attachments:   d.Attachments,
		validate:      validator.New(),
		authTimeout:   d.AuthTimeout,
		logger:        d.Logger,
	}

	app := fiber.New(fiber.Config{
		BodyLimit: d.BodyLimit,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return writeError(c, s.logger, err)
		},
	})

	app.Use(zapRecover(s.logger))
	app.Use(cors.New(cors.Config{AllowOrigins: joinOrigins(d.CORSOrigins)}))
	app.Use(zapLogger(s.logger))

	app.Get("/healthz", func(c *fiber.Ctx) error { return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"status": "up"}) })
	app.Get("/metrics", metrics.Handler())
	if d.UploadsDir != "" {
		app.Static(storage.LocalPrefix, d.UploadsDir)
	}

	if d.WS != nil {
		app.Use("/ws", s.wsUpgrade)
		app.Get("/ws", websocket.New(d.WS))
	}

	v1 := app.Group("/api/v1")

	msgs := v1.Group("/messages", s.requireAuth)
	msgs.Post("/direct", s.sendRateLimit, s.sendDirect)
	msgs.Post("/group", s.sendRateLimit, s.sendGroup)
	msgs.Get("/inbox", s.inbox)
	msgs.Get("/conversation/:peerId", s.conversation)
	msgs.Get("/group", s.groupHistory)
	msgs.Get("/unread-counts", s.unreadCounts)
	msgs.Post("/read", s.markRead)
	msgs.Delete("/thread", s.deleteThread)
	msgs.Delete("/group", s.clearGroup)
	msgs.Delete("/:id", s.deleteMessage)

	users := v1.Group("/users")
	users.Post("/device-token", s.optionalAuth, s.registerToken)
	users.Delete("/device-token", s.requireAuth, s.removeToken)
	users.Get("/my-tokens", s.requireAuth, s.myTokens)
	users.Get("/:id/presence", s.requireAuth, s.userPresence)

	notes := v1.Group("/notifications", s.requireAuth)
	notes.Post("/push", s.pushNotification)
	notes.Get("/", s.listNotifications)

	return app
}

// wsUpgrade authenticates the handshake before the connection is upgraded.
func (s *server) wsUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	id, err := s.authenticate(c, wsHandshakeToken(c))
	if err != nil {
		return writeError(c, s.logger, err)
	}
	c.Locals(handlers.LocalsIdentity, id)
	return c.Next()
}

func joinOrigins(origins []string) string {
	if len(origins) == 0 {
		return "*"
	}
	out := origins[0]
	for _, o := range origins[1:] {
		out += "," + o
	}
	return out
}
