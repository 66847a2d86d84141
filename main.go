package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"kanban-api/activity"
	"kanban-api/ai"
	"kanban-api/api"
	"kanban-api/storage"
	"kanban-api/stream"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	if os.Getenv("LOG_FORMAT") == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.WithError(err).Warn("tracer shutdown")
		}
	}()

	var rc *redis.Client
	if cfg.RedisConn != "" {
		rc = redis.NewClient(redisOptions(cfg.RedisConn))
		defer rc.Close()
	}

	backend, closeBackend := openBackend(ctx, cfg)
	defer closeBackend()
	if rc != nil {
		backend = storage.NewCache(backend, rc, cfg.CacheTTL)
	}

	broker := stream.NewBroker()
	var pub stream.Publisher = stream.LocalPublisher{Broker: broker}
	if rc != nil {
		pub = stream.NewRedisPublisher(rc, cfg.UpdatesChannel)
		go stream.SubscribeUpdates(ctx, rc, cfg.UpdatesChannel, broker)
	}

	sink, reader := openActivity(cfg, pub)
	dispatcher := activity.NewDispatcher(sink, activity.DispatcherConfig{
		Workers: cfg.ActivityWorkers,
		Buffer:  cfg.ActivityBuffer,
		Timeout: 30 * time.Second,
		Handoff: 50 * time.Millisecond,
	})
	defer dispatcher.Close()

	var deduper api.Deduper
	if rc != nil {
		deduper = api.NewRedisDeduper(rc, cfg.DeduperTTL)
	} else {
		log.Warn("REDIS_CONNECTION_STRING not set; idempotency keys are ignored")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, api.HeaderTeamID, api.HeaderIdempotencyKey},
	}))

	api.Register(e, api.Deps{
		Store:      storage.NewGateway(backend),
		Assistant:  ai.NewAssistant(openGenerator(ctx, cfg), cfg.AIModel, cfg.AITemperature),
		Auth:       openAuth(cfg),
		Deduper:    deduper,
		Broker:     broker,
		Publisher:  pub,
		Dispatcher: dispatcher,
		Activity:   reader,
		Logger:     log.StandardLogger(),
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()
	log.WithFields(log.Fields{"port": cfg.Port, "storage": cfg.StorageDriver, "ai": cfg.AIProvider}).Info("kanban api started")

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
}

func openBackend(ctx context.Context, cfg Config) (storage.Backend, func()) {
	switch cfg.StorageDriver {
	case "tables":
		t, err := storage.NewTables(cfg.ConnString, cfg.ProjectsTable, cfg.TeamsTable, cfg.UsersTable)
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		return t, func() {}
	case "mongo":
		m, err := storage.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		return m, func() {
			if err := m.Close(context.Background()); err != nil {
				log.WithError(err).Warn("mongo disconnect")
			}
		}
	default:
		log.Warn("using in-memory storage; data is lost on restart")
		return storage.NewMemory(), func() {}
	}
}

// openActivity returns where events are sent and where feeds are read. With
// Azure storage events travel through the queue to the activity worker.
func openActivity(cfg Config, pub stream.Publisher) (activity.Sink, activity.Reader) {
	if cfg.StorageDriver == "tables" {
		q, err := activity.NewQueue(cfg.ConnString, cfg.ActivityQueue)
		if err != nil {
			log.Fatalf("activity queue: %v", err)
		}
		t, err := activity.NewTableStore(cfg.ConnString, cfg.ActivityTable)
		if err != nil {
			log.Fatalf("activity table: %v", err)
		}
		return q, t
	}
	m := activity.NewMemoryStore(func(projectID string) {
		if err := pub.Publish(context.Background(), projectID); err != nil {
			log.WithError(err).Warn("unable to publish activity update")
		}
	})
	return m, m
}

func openAuth(cfg Config) *api.Auth {
	ac := api.AuthConfig{Audience: cfg.Audience, Issuer: cfg.Issuer, KeyCacheTTL: cfg.JWKSTTL}
	if cfg.LocalSecret != "" {
		ac.LocalSecret = []byte(cfg.LocalSecret)
	} else {
		jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{RefreshInterval: time.Hour, RefreshUnknownKID: true})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		ac.JWKS = jwks
	}
	auth, err := api.NewAuth(ac)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}
	return auth
}

func openGenerator(ctx context.Context, cfg Config) ai.Generator {
	switch cfg.AIProvider {
	case "gemini":
		g, err := ai.NewGemini(ctx, cfg.AIKey)
		if err != nil {
			log.Fatalf("gemini: %v", err)
		}
		return g
	case "openai":
		return ai.NewOpenAI(cfg.AIKey, cfg.AIBaseURL, cfg.AITimeout)
	default:
		return nil
	}
}
