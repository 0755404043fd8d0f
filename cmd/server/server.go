package main

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/rudhramentertainment/RBackend/internal/api"
	"github.com/rudhramentertainment/RBackend/internal/auth"
	"github.com/rudhramentertainment/RBackend/internal/config"
	"github.com/rudhramentertainment/RBackend/internal/events"
	"github.com/rudhramentertainment/RBackend/internal/handlers"
	"github.com/rudhramentertainment/RBackend/internal/hub"
	"github.com/rudhramentertainment/RBackend/internal/kafka"
	"github.com/rudhramentertainment/RBackend/internal/metrics"
	"github.com/rudhramentertainment/RBackend/internal/notify"
	"github.com/rudhramentertainment/RBackend/internal/push"
	redisstore "github.com/rudhramentertainment/RBackend/internal/redis"
	"github.com/rudhramentertainment/RBackend/internal/repository"
	"github.com/rudhramentertainment/RBackend/internal/service"
	"github.com/rudhramentertainment/RBackend/internal/storage"
	"github.com/rudhramentertainment/RBackend/internal/utils"
)

// Server holds the process-wide dependencies.
type Server struct {
	Cfg    *config.Config
	Logger *zap.SugaredLogger
	App    *fiber.App
	Mongo  *mongo.Client
	Redis  *goredis.Client
	Hub    *hub.Hub
	Notify *notify.Service

	producer *kafka.Producer
	dlq      *kafka.Producer
	consumer *kafka.Consumer
	relay    *redisstore.Relay

	// runtime context for background workers
	ctx    context.Context
	cancel context.CancelFunc
}

func NewServer(parent context.Context, cfg *config.Config) (*Server, error) {
	logger, err := utils.NewLogger(cfg.App.IsDev(), cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	metrics.Init()

	ctx, cancel := context.WithCancel(parent)
	s := &Server{Cfg: cfg, Logger: logger, ctx: ctx, cancel: cancel}
	fail := func(err error) (*Server, error) {
		s.Shutdown()
		return nil, err
	}

	// MongoDB
	s.Mongo, err = repository.NewMongoClient(ctx, cfg.Mongo.URI, cfg.MongoTimeout)
	if err != nil {
		return fail(err)
	}
	db := s.Mongo.Database(cfg.Mongo.Database)
	msgRepo := repository.NewMessageRepository(db, cfg.MongoTimeout)
	userRepo := repository.NewUserRepository(db, cfg.MongoTimeout)
	noteRepo := repository.NewNotificationRepository(db, cfg.MongoTimeout)
	for name, ensure := range map[string]func(context.Context) error{
		"messages":      msgRepo.EnsureIndexes,
		"users":         userRepo.EnsureIndexes,
		"notifications": noteRepo.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			logger.Warnw("index creation failed", "collection", name, "err", err)
		}
	}

	// Redis
	s.Redis, err = redisstore.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fail(err)
	}
	presence := redisstore.NewStore(s.Redis, cfg.Redis.Prefix)
	limiter := redisstore.NewLimiter(s.Redis, cfg.Redis.Prefix, cfg.RateLimit.SendLimit, cfg.RateWindow)

	// Realtime hub, shared across instances through Redis pub/sub
	s.Hub = hub.NewHub(logger)
	s.relay = redisstore.NewRelay(s.Redis, cfg.Redis.Prefix, logger)
	s.Hub.SetRelay(s.relay)

	// Auth
	var jv *auth.JWTValidator
	if cfg.JWT.Alg == "RS256" {
		jv, err = auth.NewJWTValidatorRS256(cfg.JWT.PublicKeyPath)
	} else {
		jv, err = auth.NewJWTValidatorHS256(cfg.JWT.Secret)
	}
	if err != nil {
		return fail(err)
	}
	authn := auth.NewAuthenticator(jv, userRepo)

	// Push
	var sender push.Sender = push.NoopSender{}
	if cfg.Push.Enabled {
		fcm, err := push.NewFCMSender(ctx, cfg.Push.CredentialsFile, cfg.Push.ProjectID)
		if err != nil {
			return fail(err)
		}
		sender = push.NewBreakerSender(fcm, cfg.Push.BreakerMaxFailures, cfg.BreakerTimeout, logger)
	} else {
		logger.Warnw("push transport disabled; device pushes will be skipped")
	}
	s.Notify = notify.NewService(userRepo, sender, noteRepo, logger, cfg.PushTimeout, cfg.Push.Workers, cfg.Push.QueueSize)

	// Messaging
	opts := []service.Option{
		service.WithPusher(s.Notify),
		service.WithGroupKey(cfg.Chat.GroupKey),
		service.WithGroupPush(cfg.Push.GroupMessages),
	}
	if cfg.Kafka.Enabled() {
		s.producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicMessages)
		s.dlq = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicDLQ)
		s.consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.GroupID, logger)
		opts = append(opts, service.WithPublisher(s.producer))
	}
	messages := service.NewMessageService(msgRepo, userRepo, s.Hub, logger, opts...)
	unread := service.NewUnreadService(msgRepo, cfg.Chat.GroupKey)

	// Attachments
	var backend storage.Backend
	uploadsDir := ""
	if cfg.Storage.Driver == "s3" {
		backend, err = storage.NewS3Store(ctx, cfg.Storage.S3Region, cfg.Storage.S3Bucket, cfg.Storage.S3PublicRead)
	} else {
		var ls *storage.LocalStore
		ls, err = storage.NewLocalStore(cfg.Storage.LocalDir, cfg.Storage.PublicBaseURL)
		backend, uploadsDir = ls, cfg.Storage.LocalDir
	}
	if err != nil {
		return fail(err)
	}
	attachments := storage.NewAttachmentService(backend, cfg.Storage.MaxFiles, cfg.Storage.MaxFileBytes, logger)

	ws := handlers.NewWSHandler(s.Hub, presence, messages, handlers.WSOptions{
		GroupKey:      cfg.Chat.GroupKey,
		PingInterval:  cfg.PingInterval,
		WriteDeadline: cfg.WriteDeadline,
		MaxMsgSize:    cfg.WS.MaxMessageSizeBytes,
		SendBuffer:    cfg.WS.SendBuffer,
		InboundRPS:    cfg.WS.InboundRPS,
		PresenceTTL:   cfg.PresenceTTL,
	}, logger)

	s.App = api.NewServer(api.Deps{
		Auth:          authn,
		Messages:      messages,
		Unread:        unread,
		Notifier:      s.Notify,
		Notifications: noteRepo,
		Presence:      presence,
		Limiter:       limiter,
		Attachments:   attachments,
		WS:            ws.Serve,
		UploadsDir:    uploadsDir,
		CORSOrigins:   cfg.App.CORSOrigins,
		AuthTimeout:   cfg.AuthTimeout,
		BodyLimit:     int(cfg.Storage.MaxFileBytes)*cfg.Storage.MaxFiles + 1<<20,
		Logger:        logger,
	})
	return s, nil
}

// Start launches background workers and the HTTP listener. The returned
// channel reports a listener failure.
func (s *Server) Start() <-chan error {
	// push workers outlive ctx so Close can drain the queue
	s.Notify.Start(context.WithoutCancel(s.ctx))
	go s.relay.Run(s.ctx, s.Hub)

	if s.consumer != nil {
		h := events.NewHandler(s.Notify, s.dlq, s.Cfg.Kafka.MaxRetries, s.Cfg.Kafka.RetryBackoffMs, s.Logger)
		go s.consumer.Run(s.ctx, h.HandleEvent)
	}

	errs := make(chan error, 1)
	go func() {
		addr := ":" + s.Cfg.App.PortString()
		s.Logger.Infow("starting realtime chat service", "addr", addr, "group", s.Cfg.Chat.GroupKey)
		errs <- s.App.Listen(addr)
	}()
	return errs
}

// Shutdown stops intake first, then drains workers and closes clients.
func (s *Server) Shutdown() {
	s.Logger.Infow("shutting down")
	if s.App != nil {
		if err := s.App.ShutdownWithTimeout(s.Cfg.ShutdownTimeout); err != nil {
			s.Logger.Warnw("fiber shutdown", "err", err)
		}
	}
	if s.Hub != nil {
		s.Hub.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.consumer != nil {
		_ = s.consumer.Close()
	}
	if s.Notify != nil {
		s.Notify.Close()
	}
	for _, p := range []*kafka.Producer{s.producer, s.dlq} {
		if p != nil {
			_ = p.Close()
		}
	}
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if s.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Mongo.Disconnect(ctx)
	}
	_ = s.Logger.Sync()
}
