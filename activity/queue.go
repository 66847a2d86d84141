package activity

import (
	"context"
	"errors"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
)

// Queue carries events from the API to the activity worker.
type Queue struct {
	client *azqueue.QueueClient
}

// Message is a dequeued event awaiting acknowledgement.
type Message struct {
	ID      string
	Receipt string
	Text    string
}

// NewQueue creates a queue client from the given connection string.
func NewQueue(connStr, name string) (*Queue, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	c, err := azqueue.NewQueueClientFromConnectionString(connStr, name, &opts)
	if err != nil {
		return nil, err
	}
	return &Queue{client: c}, nil
}

// Record enqueues ev for the worker.
func (q *Queue) Record(ctx context.Context, ev Event) error {
	data, err := sonic.MarshalString(ev)
	if err != nil {
		return err
	}
	_, err = q.client.EnqueueMessage(ctx, data, nil)
	return err
}

// Receive returns the next message, or nil when the queue is empty.
func (q *Queue) Receive(ctx context.Context) (*Message, error) {
	resp, err := q.client.DequeueMessage(ctx, nil)
	if err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}
	m := resp.Messages[0]
	if m.MessageID == nil || m.PopReceipt == nil || m.MessageText == nil {
		return nil, errors.New("dequeued message without id, receipt or text")
	}
	return &Message{ID: *m.MessageID, Receipt: *m.PopReceipt, Text: *m.MessageText}, nil
}

// Ack deletes a processed message.
func (q *Queue) Ack(ctx context.Context, m *Message) error {
	_, err := q.client.DeleteMessage(ctx, m.ID, m.Receipt, nil)
	return err
}
