package repository

import (
	"path/filepath"
	"testing"
	"time"

	"device_triggers/internal/models"
	"device_triggers/internal/repository/db"
)

func TestSQLite_SubscriptionRoundTrip(t *testing.T) {
	conn, err := db.InitDB(filepath.Join(t.TempDir(), "triggers.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	repos := NewRepository(conn)
	subs := repos.Subscriptions

	s := models.Subscription{
		Owner:              "alice",
		SubscriptionID:     "s1",
		DeviceID:           "D1",
		ParameterPath:      "outputs.OUT1",
		ConditionType:      models.ConditionChange,
		CooldownMillis:     30000,
		Commands:           []models.Command{{Action: "out2", Value: "1", TargetDevice: "D2"}},
		NotificationMethod: models.NotifyInApp,
		Enabled:            true,
	}
	if err := subs.Create(ctx(t), s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	active, err := subs.LoadActive(ctx(t), "D1")
	if err != nil {
		t.Fatalf("LoadActive: %v", err)
	}
	if len(active) != 1 || active[0].ParameterPath != "outputs.OUT1" || len(active[0].Commands) != 1 {
		t.Fatalf("active = %+v", active)
	}
	if !active[0].LastProcessedValue.IsNull() || active[0].LastTriggeredAt != nil {
		t.Fatalf("fresh subscription carries state: %+v", active[0].State())
	}

	at := time.Date(2025, 4, 4, 4, 4, 4, 400_000_000, time.UTC)
	next := models.TriggerState{LastProcessedValue: models.Number(1), LastTriggeredAt: &at, TriggerCount: 1}
	if err := subs.CompareAndStore(ctx(t), s.Key(), active[0].State(), next); err != nil {
		t.Fatalf("CompareAndStore: %v", err)
	}

	got, err := subs.Get(ctx(t), s.Key())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TriggerCount != 1 || !got.LastProcessedValue.Equal(models.Number(1)) {
		t.Fatalf("state = %+v", got.State())
	}
	if got.LastTriggeredAt == nil || !got.LastTriggeredAt.Equal(at) {
		t.Fatalf("lastTriggeredAt = %v, want %v", got.LastTriggeredAt, at)
	}

	if err := subs.SetEnabled(ctx(t), s.Key(), false, "potential_loop"); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	active, err = subs.LoadActive(ctx(t), "D1")
	if err != nil {
		t.Fatalf("LoadActive: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("disabled subscription still active")
	}
	got, _ = subs.Get(ctx(t), s.Key())
	if got.AutoDisabledReason != "potential_loop" {
		t.Fatalf("reason = %q", got.AutoDisabledReason)
	}

	if err := subs.Delete(ctx(t), s.Key()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := subs.Get(ctx(t), s.Key()); !IsNotFound(err) {
		t.Fatalf("want not found after delete, got %v", err)
	}
}

func TestSQLite_NotificationFeed(t *testing.T) {
	conn, err := db.InitDB(filepath.Join(t.TempDir(), "triggers.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	feed := NewRepository(conn).Notifications
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"n1", "n2", "n3"} {
		n := models.Notification{
			NotificationID: id,
			Owner:          "alice",
			SubscriptionID: "s1",
			DeviceID:       "D1",
			ParameterPath:  "battery",
			CurrentValue:   models.Number(float64(10 + i)),
			ConditionType:  models.ConditionBelow,
			ThresholdValue: models.Number(20),
			MessageClass:   models.ClassTelemetry,
			Message:        "m",
			Method:         models.NotifyInApp,
			Timestamp:      base.Add(time.Duration(i) * time.Minute),
		}
		if err := feed.Append(ctx(t), n); err != nil {
			t.Fatalf("Append %s: %v", id, err)
		}
	}

	if err := feed.MarkRead(ctx(t), "alice", "n3"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	unread, err := feed.List(ctx(t), "alice", true, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(unread) != 2 || unread[0].NotificationID != "n2" || unread[1].NotificationID != "n1" {
		t.Fatalf("unread = %+v", unread)
	}
	if !unread[0].CurrentValue.Equal(models.Number(11)) {
		t.Fatalf("current value = %v", unread[0].CurrentValue)
	}

	all, err := feed.List(ctx(t), "alice", false, 1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 || all[0].NotificationID != "n3" || !all[0].Read {
		t.Fatalf("latest = %+v", all)
	}
}

func TestSQLite_AlarmsAndIOState(t *testing.T) {
	conn, err := db.InitDB(filepath.Join(t.TempDir(), "triggers.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	repos := NewRepository(conn)

	for _, a := range []models.Alarm{
		{Owner: "alice", AlarmID: "a1", DeviceID: "D1", VariableName: "temperature", Condition: models.ConditionAbove, Threshold: 30, Enabled: true, CreatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{Owner: "alice", AlarmID: "a2", DeviceID: "D1", VariableName: "battery", Condition: models.ConditionBelow, Threshold: 15, Enabled: false, CreatedAt: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)},
	} {
		if err := repos.Alarms.Create(ctx(t), a); err != nil {
			t.Fatalf("Create %s: %v", a.AlarmID, err)
		}
	}

	active, err := repos.Alarms.ListByDevice(ctx(t), "D1")
	if err != nil {
		t.Fatalf("ListByDevice: %v", err)
	}
	if len(active) != 1 || active[0].AlarmID != "a1" {
		t.Fatalf("active alarms = %+v", active)
	}

	at := time.Date(2025, 3, 3, 3, 3, 3, 0, time.UTC)
	if err := repos.Alarms.MarkTriggered(ctx(t), "alice", "a1", at); err != nil {
		t.Fatalf("MarkTriggered: %v", err)
	}
	all, err := repos.Alarms.ListByOwner(ctx(t), "alice")
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(all) != 2 || all[0].LastTriggeredAt == nil || !all[0].LastTriggeredAt.Equal(at) {
		t.Fatalf("owner alarms = %+v", all)
	}
	if err := repos.Alarms.Delete(ctx(t), "alice", "a2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repos.Alarms.Delete(ctx(t), "alice", "a2"); !IsNotFound(err) {
		t.Fatalf("second delete: want not found, got %v", err)
	}

	states, err := repos.IOStates.Load(ctx(t), "D1")
	if err != nil || len(states) != 0 {
		t.Fatalf("fresh device states = %v, %v", states, err)
	}
	if err := repos.IOStates.Store(ctx(t), "D1", map[string]int{"out1_state": 1, "in1_state": 0}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := repos.IOStates.Store(ctx(t), "D1", map[string]int{"out1_state": 0}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	states, err = repos.IOStates.Load(ctx(t), "D1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(states) != 2 || states["out1_state"] != 0 || states["in1_state"] != 0 {
		t.Fatalf("states = %v", states)
	}
}
