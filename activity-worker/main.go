package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"kanban-api/activity"
	"kanban-api/stream"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	if os.Getenv("LOG_FORMAT") == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
	log.Info("activity worker starting")

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	queueName := os.Getenv("ACTIVITY_QUEUE")
	tableName := os.Getenv("ACTIVITY_TABLE")
	if connStr == "" || queueName == "" || tableName == "" {
		log.Fatal("missing STORAGE_CONNECTION_STRING, ACTIVITY_QUEUE or ACTIVITY_TABLE")
	}

	queue, err := activity.NewQueue(connStr, queueName)
	if err != nil {
		log.Fatalf("queue client: %v", err)
	}
	store, err := activity.NewTableStore(connStr, tableName)
	if err != nil {
		log.Fatalf("table client: %v", err)
	}

	var pub stream.Publisher
	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		opt, err := redis.ParseURL(redisConn)
		if err != nil {
			log.Fatalf("redis url: %v", err)
		}
		rc := redis.NewClient(opt)
		defer rc.Close()
		channel := os.Getenv("UPDATES_CHANNEL")
		if channel == "" {
			channel = "kanban-updates"
		}
		pub = stream.NewRedisPublisher(rc, channel)
	} else {
		log.Warn("REDIS_CONNECTION_STRING not set; activity feeds will not be pushed")
	}

	idle := time.Second
	if v, err := time.ParseDuration(os.Getenv("ACTIVITY_POLL_INTERVAL")); err == nil && v > 0 {
		idle = v
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	activity.NewConsumer(queue, store, pub, idle).Run(ctx)
	log.Info("activity worker stopped")
}
