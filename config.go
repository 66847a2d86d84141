package main

import (
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Config is read once from the environment at startup.
type Config struct {
	Port string

	StorageDriver   string
	ConnString      string
	ProjectsTable   string
	TeamsTable      string
	UsersTable      string
	ActivityTable   string
	ActivityQueue   string
	MongoURI        string
	MongoDatabase   string
	RedisConn       string
	CacheTTL        time.Duration
	DeduperTTL      time.Duration
	UpdatesChannel  string
	ActivityWorkers int
	ActivityBuffer  int

	JWKSURL     string
	Audience    string
	Issuer      string
	LocalSecret string
	JWKSTTL     time.Duration

	AIProvider    string
	AIKey         string
	AIModel       string
	AIBaseURL     string
	AITemperature float32
	AITimeout     time.Duration
}

func loadConfig() Config {
	cfg := Config{
		Port:            envOr("PORT", "8080"),
		StorageDriver:   strings.ToLower(envOr("STORAGE_DRIVER", "tables")),
		ConnString:      os.Getenv("STORAGE_CONNECTION_STRING"),
		ProjectsTable:   envOr("PROJECTS_TABLE", "projects"),
		TeamsTable:      envOr("TEAMS_TABLE", "teams"),
		UsersTable:      envOr("USERS_TABLE", "users"),
		ActivityTable:   envOr("ACTIVITY_TABLE", "activity"),
		ActivityQueue:   envOr("ACTIVITY_QUEUE", "activity"),
		MongoURI:        os.Getenv("MONGO_URI"),
		MongoDatabase:   envOr("MONGO_DATABASE", "kanban"),
		RedisConn:       os.Getenv("REDIS_CONNECTION_STRING"),
		CacheTTL:        envDuration("CACHE_TTL", 5*time.Minute),
		DeduperTTL:      envDuration("DEDUPER_TTL", 24*time.Hour),
		UpdatesChannel:  envOr("UPDATES_CHANNEL", "kanban-updates"),
		ActivityWorkers: envInt("ACTIVITY_WORKERS", 4),
		ActivityBuffer:  envInt("ACTIVITY_BUFFER", 256),
		JWKSURL:         os.Getenv("AUTH_JWKS_URL"),
		Audience:        os.Getenv("AUTH_AUDIENCE"),
		Issuer:          os.Getenv("AUTH_ISSUER"),
		JWKSTTL:         envDuration("JWKS_CACHE_TTL", 15*time.Minute),
		AIProvider:      strings.ToLower(envOr("AI_PROVIDER", "none")),
		AIKey:           os.Getenv("AI_API_KEY"),
		AIBaseURL:       os.Getenv("AI_BASE_URL"),
		AITimeout:       envDuration("AI_TIMEOUT", 60*time.Second),
	}

	switch mode := strings.ToLower(os.Getenv("LOCAL_AUTH_MODE")); mode {
	case "":
	case "hs256":
		cfg.LocalSecret = os.Getenv("LOCAL_AUTH_SHARED_SECRET")
		if cfg.LocalSecret == "" {
			log.Fatal("LOCAL_AUTH_SHARED_SECRET must be set when LOCAL_AUTH_MODE=hs256")
		}
	default:
		log.Fatalf("unsupported LOCAL_AUTH_MODE %q", mode)
	}
	if cfg.LocalSecret == "" && cfg.JWKSURL == "" {
		log.Fatal("missing auth config: set AUTH_JWKS_URL or LOCAL_AUTH_MODE")
	}

	switch cfg.StorageDriver {
	case "tables":
		if cfg.ConnString == "" {
			log.Fatal("missing STORAGE_CONNECTION_STRING")
		}
	case "mongo":
		if cfg.MongoURI == "" {
			log.Fatal("missing MONGO_URI")
		}
	case "memory":
	default:
		log.Fatalf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	switch cfg.AIProvider {
	case "gemini":
		cfg.AIModel = envOr("AI_MODEL", "gemini-2.0-flash")
	case "openai":
		cfg.AIModel = envOr("AI_MODEL", "gpt-4o-mini")
	case "none":
	default:
		log.Fatalf("unsupported AI_PROVIDER %q", cfg.AIProvider)
	}
	if cfg.AIProvider != "none" && cfg.AIKey == "" {
		log.Fatal("missing AI_API_KEY")
	}
	temp := 0.7
	if v := os.Getenv("AI_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil || f < 0 || f > 2 {
			log.Fatalf("invalid AI_TEMPERATURE: %q", v)
		}
		temp = f
	}
	cfg.AITemperature = float32(temp)
	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Fatalf("invalid %s: must be a positive integer", key)
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return d
}

// redisOptions accepts a redis:// URL or the host:port,password=...,ssl=True
// form used by Azure Cache for Redis.
func redisOptions(conn string) *redis.Options {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "password":
			opts.Password = v
		case "ssl":
			if strings.EqualFold(v, "true") {
				opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		}
	}
	return opts
}
