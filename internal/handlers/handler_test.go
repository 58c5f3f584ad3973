package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"device_triggers/internal/engine"
	"device_triggers/internal/models"
	"device_triggers/internal/service"
)

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	for k, vv := range jsonHeader() {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(&service.Service{})

	w := do(t, r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), statusOK) {
		t.Fatalf("health status=%d body=%s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "device_triggers_") {
		t.Fatalf("metrics status=%d", w.Code)
	}
}

func TestCreateSubscription(t *testing.T) {
	subs := &mockSubscriptions{}
	r := newTestRouter(&service.Service{Subscriptions: subs})

	body := `{"deviceID":"D1","parameterPath":"temperature","conditionType":"above","thresholdValue":30,
		"commands":[{"action":"out1","value":true,"targetDevice":"D2"}]}`
	w := do(t, r, http.MethodPost, "/api/v1/users/alice/subscriptions", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	got := subs.created
	if got.Owner != "alice" || got.DeviceID != "D1" || got.ConditionType != models.ConditionAbove {
		t.Fatalf("created = %+v", got)
	}
	if got.CooldownMillis != models.DefaultCooldownMillis || !got.Enabled {
		t.Fatalf("defaults not applied: cooldown=%d enabled=%v", got.CooldownMillis, got.Enabled)
	}
	if !got.ThresholdValue.Equal(models.Number(30)) {
		t.Fatalf("threshold = %v", got.ThresholdValue)
	}
	if len(got.Commands) != 1 || got.Commands[0].Value != "1" || got.Commands[0].TargetDevice != "D2" {
		t.Fatalf("commands = %+v", got.Commands)
	}
}

func TestCreateSubscription_ExplicitZeroCooldownAndDisabled(t *testing.T) {
	subs := &mockSubscriptions{}
	r := newTestRouter(&service.Service{Subscriptions: subs})

	body := `{"deviceID":"D1","parameterPath":"status","conditionType":"change","cooldownMillis":0,"enabled":false}`
	w := do(t, r, http.MethodPost, "/api/v1/users/alice/subscriptions", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if subs.created.CooldownMillis != 0 || subs.created.Enabled {
		t.Fatalf("created = %+v", subs.created)
	}
}

func TestCreateSubscription_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"malformed json", `{`, nil, http.StatusBadRequest},
		{"missing device", `{"parameterPath":"p","conditionType":"above"}`, nil, http.StatusBadRequest},
		{"service invalid", `{"deviceID":"D1","parameterPath":"p","conditionType":"above"}`, service.ErrInvalid, http.StatusBadRequest},
		{"conflict", `{"deviceID":"D1","parameterPath":"p","conditionType":"change"}`, service.ErrConflict, http.StatusConflict},
		{"internal", `{"deviceID":"D1","parameterPath":"p","conditionType":"change"}`, errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			subs := &mockSubscriptions{createErr: tt.err}
			r := newTestRouter(&service.Service{Subscriptions: subs})
			w := do(t, r, http.MethodPost, "/api/v1/users/alice/subscriptions", tt.body)
			if w.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestSubscriptionReadUpdateDelete(t *testing.T) {
	subs := &mockSubscriptions{
		getResp:  models.Subscription{Owner: "alice", SubscriptionID: "s1"},
		listResp: []models.Subscription{{Owner: "alice", SubscriptionID: "s1"}},
	}
	r := newTestRouter(&service.Service{Subscriptions: subs})

	w := do(t, r, http.MethodGet, "/api/v1/users/alice/subscriptions", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status=%d", w.Code)
	}
	var list struct {
		Count int `json:"count"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Count != 1 || subs.lastOwner != "alice" {
		t.Fatalf("list count=%d owner=%q", list.Count, subs.lastOwner)
	}

	w = do(t, r, http.MethodGet, "/api/v1/users/alice/subscriptions/s1", "")
	if w.Code != http.StatusOK || subs.lastKey.SubscriptionID != "s1" {
		t.Fatalf("get status=%d key=%v", w.Code, subs.lastKey)
	}

	w = do(t, r, http.MethodPut, "/api/v1/users/alice/subscriptions/s1",
		`{"subscriptionID":"ignored","deviceID":"D1","parameterPath":"battery","conditionType":"below","thresholdValue":"20"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", w.Code, w.Body.String())
	}
	if subs.updated.SubscriptionID != "s1" || subs.updated.ParameterPath != "battery" {
		t.Fatalf("updated = %+v", subs.updated)
	}

	w = do(t, r, http.MethodPatch, "/api/v1/users/alice/subscriptions/s1/enabled", `{"enabled":false}`)
	if w.Code != http.StatusOK || subs.enabledArg == nil || *subs.enabledArg {
		t.Fatalf("patch status=%d arg=%v", w.Code, subs.enabledArg)
	}

	w = do(t, r, http.MethodPatch, "/api/v1/users/alice/subscriptions/s1/enabled", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("patch without enabled status=%d", w.Code)
	}

	w = do(t, r, http.MethodDelete, "/api/v1/users/alice/subscriptions/s1", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", w.Code)
	}

	subs.getErr = service.ErrNotFound
	w = do(t, r, http.MethodGet, "/api/v1/users/alice/subscriptions/missing", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing status=%d", w.Code)
	}
}

func TestNotifications(t *testing.T) {
	feed := &mockNotifications{listResp: []models.Notification{{NotificationID: "n1", Owner: "alice"}}}
	r := newTestRouter(&service.Service{Notifications: feed})

	w := do(t, r, http.MethodGet, "/api/v1/users/alice/notifications?unread=true&limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if feed.lastOwner != "alice" || !feed.lastUnread || feed.lastLimit != 5 {
		t.Fatalf("args = %q %v %d", feed.lastOwner, feed.lastUnread, feed.lastLimit)
	}

	for _, q := range []string{"unread=maybe", "limit=-1", "limit=x"} {
		w = do(t, r, http.MethodGet, "/api/v1/users/alice/notifications?"+q, "")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d", q, w.Code)
		}
	}

	w = do(t, r, http.MethodPost, "/api/v1/users/alice/notifications/n1/read", "")
	if w.Code != http.StatusOK || feed.lastRead != "n1" {
		t.Fatalf("read status=%d id=%q", w.Code, feed.lastRead)
	}

	feed.readErr = service.ErrNotFound
	w = do(t, r, http.MethodPost, "/api/v1/users/alice/notifications/zz/read", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("read missing status=%d", w.Code)
	}
}

func TestIngestEvent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"normalization", &engine.NormalizationError{Err: engine.ErrNoDeviceID}, http.StatusBadRequest},
		{"load failure", &engine.RepositoryError{Op: "load_active", Err: errors.New("db down")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			ev := &mockEvents{err: tt.err, summary: models.PassSummary{DeviceID: "D1", Evaluated: 2, Triggered: 1}}
			r := newTestRouter(&service.Service{Events: ev})
			body := `{"topic":"NBtechv1/D1/data","payload":{"temperature":32}}`
			w := do(t, r, http.MethodPost, "/api/v1/events", body)
			if w.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", w.Code, tt.want, w.Body.String())
			}
			if string(ev.lastRaw) != body {
				t.Fatalf("raw body not forwarded: %s", ev.lastRaw)
			}
			if tt.want == http.StatusOK {
				var got models.PassSummary
				if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if got.Triggered != 1 || got.Evaluated != 2 {
					t.Fatalf("summary = %+v", got)
				}
			}
		})
	}
}

func TestHealthSweepEndpoint(t *testing.T) {
	hm := &mockHealth{report: service.HealthReport{Checked: 3, Disabled: []service.HealthFinding{
		{Key: models.SubscriptionKey{Owner: "alice", SubscriptionID: "s1"}, Reason: service.ReasonPotentialLoop},
	}}}
	r := newTestRouter(&service.Service{Health: hm})

	w := do(t, r, http.MethodPost, "/api/v1/health/sweep", "")
	if w.Code != http.StatusOK || hm.calls != 1 || !strings.Contains(w.Body.String(), service.ReasonPotentialLoop) {
		t.Fatalf("status=%d calls=%d body=%s", w.Code, hm.calls, w.Body.String())
	}

	hm.err = errors.New("db down")
	w = do(t, r, http.MethodPost, "/api/v1/health/sweep", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
}
