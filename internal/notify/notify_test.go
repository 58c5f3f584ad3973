package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"device_triggers/internal/models"
)

type stubSink struct {
	got []models.Notification
	err error
}

func (s *stubSink) Notify(_ context.Context, n models.Notification) error {
	s.got = append(s.got, n)
	return s.err
}

type stubAppender struct {
	got []models.Notification
	err error
}

func (s *stubAppender) Append(_ context.Context, n models.Notification) error {
	s.got = append(s.got, n)
	return s.err
}

func sample(owner string, method models.NotificationMethod) models.Notification {
	return models.Notification{
		NotificationID: "n1",
		Owner:          owner,
		SubscriptionID: "s1",
		DeviceID:       "D1",
		ParameterPath:  "temperature",
		CurrentValue:   models.Number(32),
		ConditionType:  models.ConditionAbove,
		ThresholdValue: models.Number(30),
		MessageClass:   models.ClassTelemetry,
		Message:        "temperature data (32.0) is above threshold (30.0)",
		Method:         method,
		Timestamp:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestFanout_DeliversToAllAndJoinsErrors(t *testing.T) {
	t.Parallel()
	a := &stubSink{err: errors.New("a down")}
	b := &stubSink{}
	c := &stubSink{err: errors.New("c down")}

	err := Fanout{a, nil, b, c}.Notify(context.Background(), sample("alice", models.NotifyInApp))
	if err == nil {
		t.Fatalf("expected joined error")
	}
	if !strings.Contains(err.Error(), "a down") || !strings.Contains(err.Error(), "c down") {
		t.Fatalf("err = %v", err)
	}
	if len(a.got) != 1 || len(b.got) != 1 || len(c.got) != 1 {
		t.Fatalf("not every sink was called: %d %d %d", len(a.got), len(b.got), len(c.got))
	}
}

func TestFanout_Empty(t *testing.T) {
	t.Parallel()
	if err := (Fanout{}).Notify(context.Background(), sample("alice", models.NotifyInApp)); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
}

func TestStoreSink(t *testing.T) {
	t.Parallel()
	app := &stubAppender{}
	if err := NewStoreSink(app).Notify(context.Background(), sample("alice", models.NotifyInApp)); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(app.got) != 1 || app.got[0].NotificationID != "n1" {
		t.Fatalf("appended = %+v", app.got)
	}

	boom := errors.New("disk full")
	err := NewStoreSink(&stubAppender{err: boom}).Notify(context.Background(), sample("alice", models.NotifyInApp))
	if !errors.Is(err, boom) {
		t.Fatalf("want wrapped disk full, got %v", err)
	}
}
