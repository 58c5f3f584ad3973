package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"device_triggers/internal/models"
)

type RedisOptions struct {
	// PushChannel receives every notification for the push transport.
	PushChannel string
	// EmailQueue is a list drained by the email transport.
	EmailQueue string
	// FeedLength caps the per-owner recent feed list.
	FeedLength int64
}

// RedisSink hands notifications to the push and email transports through
// Redis and keeps a short per-owner recent feed.
type RedisSink struct {
	rdb  *redis.Client
	opts RedisOptions
}

func NewRedisSink(rdb *redis.Client, opts RedisOptions) *RedisSink {
	if opts.PushChannel == "" {
		opts.PushChannel = "triggers:push"
	}
	if opts.EmailQueue == "" {
		opts.EmailQueue = "triggers:email"
	}
	if opts.FeedLength <= 0 {
		opts.FeedLength = 50
	}
	return &RedisSink{rdb: rdb, opts: opts}
}

func feedKey(owner string) string { return "triggers:feed:" + owner }

// Notify publishes on the push channel, queues an email when the method asks
// for it and prepends to the owner's feed, in one pipeline.
func (s *RedisSink) Notify(ctx context.Context, n models.Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Publish(ctx, s.opts.PushChannel, b)
		if n.Method.WantsEmail() {
			p.LPush(ctx, s.opts.EmailQueue, b)
		}
		p.LPush(ctx, feedKey(n.Owner), b)
		p.LTrim(ctx, feedKey(n.Owner), 0, s.opts.FeedLength-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis notify: %w", err)
	}
	return nil
}

// Recent returns up to limit of the owner's latest notifications, newest first.
func (s *RedisSink) Recent(ctx context.Context, owner string, limit int64) ([]models.Notification, error) {
	if limit <= 0 || limit > s.opts.FeedLength {
		limit = s.opts.FeedLength
	}
	raw, err := s.rdb.LRange(ctx, feedKey(owner), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.Notification, 0, len(raw))
	for _, r := range raw {
		var n models.Notification
		if err := json.Unmarshal([]byte(r), &n); err != nil {
			return nil, fmt.Errorf("decode feed entry: %w", err)
		}
		out = append(out, n)
	}
	return out, nil
}
