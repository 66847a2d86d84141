package stream

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Publisher announces that a project changed.
type Publisher interface {
	Publish(ctx context.Context, projectID string) error
}

// Update is the message exchanged on the updates channel.
type Update struct {
	ProjectID string `json:"projectId"`
}

// RedisPublisher publishes updates on a redis channel so every API instance
// can wake its own subscribers.
type RedisPublisher struct {
	rc      *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher for channel.
func NewRedisPublisher(rc *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{rc: rc, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, projectID string) error {
	data, err := sonic.Marshal(Update{ProjectID: projectID})
	if err != nil {
		return err
	}
	return p.rc.Publish(ctx, p.channel, data).Err()
}

// LocalPublisher notifies an in-process broker directly. It is used when no
// redis is configured.
type LocalPublisher struct {
	Broker *Broker
}

func (p LocalPublisher) Publish(_ context.Context, projectID string) error {
	p.Broker.Notify(projectID)
	return nil
}

// SubscribeUpdates relays updates from the redis channel to broker until ctx
// is cancelled, resubscribing when the subscription drops.
func SubscribeUpdates(ctx context.Context, rc *redis.Client, channel string, broker *Broker) {
	for {
		sub := rc.Subscribe(ctx, channel)
		relay(ctx, sub.Channel(), broker)
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		log.WithField("channel", channel).Error("pubsub channel closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func relay(ctx context.Context, ch <-chan *redis.Message, broker *Broker) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var u Update
			if err := sonic.UnmarshalString(msg.Payload, &u); err != nil || u.ProjectID == "" {
				log.WithField("payload", msg.Payload).Error("unable to parse update")
				continue
			}
			broker.Notify(u.ProjectID)
		}
	}
}
