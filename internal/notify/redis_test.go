package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"device_triggers/internal/models"
)

func newRedisSink(t *testing.T, opts RedisOptions) (*RedisSink, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisSink(rdb, opts), mr, rdb
}

func TestRedisSink_InAppSkipsEmailQueue(t *testing.T) {
	sink, mr, _ := newRedisSink(t, RedisOptions{})

	if err := sink.Notify(context.Background(), sample("alice", models.NotifyInApp)); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if mr.Exists("triggers:email") {
		t.Fatalf("in_app notification queued for email")
	}
	feed, err := mr.List(feedKey("alice"))
	if err != nil || len(feed) != 1 {
		t.Fatalf("feed = %v, %v", feed, err)
	}
	var n models.Notification
	if err := json.Unmarshal([]byte(feed[0]), &n); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n.NotificationID != "n1" || !n.CurrentValue.Equal(models.Number(32)) {
		t.Fatalf("feed entry = %+v", n)
	}
}

func TestRedisSink_EmailMethodsQueue(t *testing.T) {
	tests := []struct {
		method models.NotificationMethod
		queued bool
	}{
		{models.NotifyInApp, false},
		{models.NotifyEmail, true},
		{models.NotifyBoth, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.method), func(t *testing.T) {
			sink, mr, _ := newRedisSink(t, RedisOptions{EmailQueue: "mail"})
			if err := sink.Notify(context.Background(), sample("alice", tt.method)); err != nil {
				t.Fatalf("Notify: %v", err)
			}
			if mr.Exists("mail") != tt.queued {
				t.Fatalf("queued = %v, want %v", mr.Exists("mail"), tt.queued)
			}
		})
	}
}

func TestRedisSink_PublishesOnPushChannel(t *testing.T) {
	sink, _, rdb := newRedisSink(t, RedisOptions{PushChannel: "push"})
	ctx := context.Background()

	ps := rdb.Subscribe(ctx, "push")
	defer ps.Close()
	if _, err := ps.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := sink.Notify(ctx, sample("alice", models.NotifyInApp)); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	select {
	case msg := <-ps.Channel():
		var n models.Notification
		if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if n.Owner != "alice" {
			t.Fatalf("pushed = %+v", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no push message")
	}
}

func TestRedisSink_FeedIsTrimmedAndRecentNewestFirst(t *testing.T) {
	sink, _, _ := newRedisSink(t, RedisOptions{FeedLength: 3})
	ctx := context.Background()

	for _, id := range []string{"n1", "n2", "n3", "n4", "n5"} {
		n := sample("alice", models.NotifyInApp)
		n.NotificationID = id
		if err := sink.Notify(ctx, n); err != nil {
			t.Fatalf("Notify %s: %v", id, err)
		}
	}

	got, err := sink.Recent(ctx, "alice", 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 || got[0].NotificationID != "n5" || got[2].NotificationID != "n3" {
		t.Fatalf("recent = %+v", got)
	}

	got, err = sink.Recent(ctx, "alice", 1)
	if err != nil || len(got) != 1 || got[0].NotificationID != "n5" {
		t.Fatalf("recent(1) = %+v, %v", got, err)
	}
}

func TestRedisSink_ServerDown(t *testing.T) {
	sink, mr, _ := newRedisSink(t, RedisOptions{})
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sink.Notify(ctx, sample("alice", models.NotifyInApp)); err == nil {
		t.Fatalf("expected error with redis down")
	}
}
