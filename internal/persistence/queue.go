package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var errQueueNotConfigured = errors.New("notification queue not configured")

// NotificationQueue appends JSON jobs to a Redis list consumed by the mail worker.
type NotificationQueue struct {
	client *redis.Client
	key    string
}

// NewNotificationQueue builds a queue writing to key.
func NewNotificationQueue(r *Redis, key string) *NotificationQueue {
	q := &NotificationQueue{key: key}
	if r != nil {
		q.client = r.Client
	}
	return q
}

// Enqueue pushes job to the tail of the list.
func (q *NotificationQueue) Enqueue(ctx context.Context, job any) error {
	if q == nil || q.client == nil {
		return errQueueNotConfigured
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	return q.client.RPush(ctx, q.key, payload).Err()
}

// Len returns the number of pending jobs.
func (q *NotificationQueue) Len(ctx context.Context) (int64, error) {
	if q == nil || q.client == nil {
		return 0, errQueueNotConfigured
	}
	return q.client.LLen(ctx, q.key).Result()
}

// PolicyChannel broadcasts SLA policy changes between service instances.
type PolicyChannel struct {
	client  *redis.Client
	channel string
}

// NewPolicyChannel builds a pub/sub wrapper on channel.
func NewPolicyChannel(r *Redis, channel string) *PolicyChannel {
	pc := &PolicyChannel{channel: channel}
	if r != nil {
		pc.client = r.Client
	}
	return pc
}

// PublishPolicyChange announces that policy id changed.
func (p *PolicyChannel) PublishPolicyChange(ctx context.Context, policyID string) error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Publish(ctx, p.channel, policyID).Err()
}

// Subscribe calls fn for every message until ctx is done.
func (p *PolicyChannel) Subscribe(ctx context.Context, fn func(ctx context.Context, policyID string)) error {
	if p == nil || p.client == nil {
		return errors.New("policy channel not configured")
	}
	sub := p.client.Subscribe(ctx, p.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", p.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			fn(ctx, msg.Payload)
		}
	}
}
