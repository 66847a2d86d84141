package activity

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"kanban-api/stream"
)

// Source yields queued messages.
type Source interface {
	Receive(ctx context.Context) (*Message, error)
	Ack(ctx context.Context, m *Message) error
}

// Consumer moves events from a Source into a Sink and announces each stored
// event so open activity feeds refresh.
type Consumer struct {
	src  Source
	sink Sink
	pub  stream.Publisher
	idle time.Duration
}

// NewConsumer creates a Consumer. pub may be nil.
func NewConsumer(src Source, sink Sink, pub stream.Publisher, idle time.Duration) *Consumer {
	if idle <= 0 {
		idle = time.Second
	}
	return &Consumer{src: src, sink: sink, pub: pub, idle: idle}
}

// Run polls until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	for ctx.Err() == nil {
		m, err := c.src.Receive(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.WithError(err).Error("receive activity message")
			}
			c.sleep(ctx)
			continue
		}
		if m == nil {
			c.sleep(ctx)
			continue
		}
		if err := c.Handle(ctx, m); err != nil {
			log.WithField("messageId", m.ID).WithError(err).Error("activity message will be retried")
		}
	}
}

func (c *Consumer) sleep(ctx context.Context) {
	t := time.NewTimer(c.idle)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Handle stores one message and acknowledges it. Undecodable messages are
// acknowledged and dropped; a failed store leaves the message for redelivery.
func (c *Consumer) Handle(ctx context.Context, m *Message) error {
	var ev Event
	if err := sonic.UnmarshalString(m.Text, &ev); err != nil || ev.ProjectID == "" {
		log.WithField("messageId", m.ID).Error("dropping malformed activity message")
		return c.src.Ack(ctx, m)
	}
	if err := c.sink.Record(ctx, ev); err != nil {
		return err
	}
	if err := c.src.Ack(ctx, m); err != nil {
		return err
	}
	if c.pub != nil {
		if err := c.pub.Publish(ctx, ev.ProjectID); err != nil {
			log.WithField("projectId", ev.ProjectID).WithError(err).Error("unable to publish activity update")
		}
	}
	return nil
}
