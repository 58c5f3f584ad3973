package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"device_triggers/internal/models"
	"device_triggers/internal/notify"
	"device_triggers/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func wsURL(t *testing.T, srv *httptest.Server, owner string) string {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	u.Scheme = "ws"
	u.Path = "/ws"
	if owner != "" {
		q := u.Query()
		q.Set("owner", owner)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func TestWebSocket_StreamsOwnerNotifications(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := notify.NewHub()
	h := NewHandler(&service.Service{}, hub, nil)
	srv := httptest.NewServer(h.InitRoutes())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(t, srv, "alice"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var hello wsEnvelope
	if err := conn.ReadJSON(&hello); err != nil || hello.Type != "subscribed" {
		t.Fatalf("hello = %+v, err = %v", hello, err)
	}

	// the handler subscribes before sending the hello frame
	if hub.Subscribers("alice") != 1 {
		t.Fatalf("subscribers = %d", hub.Subscribers("alice"))
	}
	_ = hub.Notify(context.Background(), models.Notification{NotificationID: "other", Owner: "bob"})
	_ = hub.Notify(context.Background(), models.Notification{NotificationID: "n1", Owner: "alice", Message: "battery data (10.0) is below threshold (20.0)"})

	var env struct {
		Type string              `json:"type"`
		Data models.Notification `json:"data"`
	}
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	if env.Type != "notification" || env.Data.NotificationID != "n1" {
		t.Fatalf("env = %+v", env)
	}
}

func TestWebSocket_UnsubscribesOnClose(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := notify.NewHub()
	h := NewHandler(&service.Service{}, hub, nil)
	srv := httptest.NewServer(h.InitRoutes())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(t, srv, "alice"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	var hello wsEnvelope
	_ = conn.ReadJSON(&hello)
	_ = conn.Close()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Subscribers("alice") == 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("subscription leaked after close")
}

func TestWebSocket_RequiresOwner(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(&service.Service{}, notify.NewHub(), nil)
	srv := httptest.NewServer(h.InitRoutes())
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(t, srv, ""), nil)
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestWebSocket_NotRoutedWithoutFeed(t *testing.T) {
	r := newTestRouter(&service.Service{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?owner=alice", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
}
