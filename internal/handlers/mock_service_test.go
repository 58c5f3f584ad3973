package handlers

import (
	"context"
	"net/http"

	"device_triggers/internal/models"
	"device_triggers/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockSubscriptions struct {
	created    models.Subscription
	updated    models.Subscription
	createErr  error
	updateErr  error
	getResp    models.Subscription
	getErr     error
	listResp   []models.Subscription
	listErr    error
	enabledArg *bool
	enabledErr error
	deleteErr  error
	lastKey    models.SubscriptionKey
	lastOwner  string
}

func (m *mockSubscriptions) Create(_ context.Context, sub models.Subscription) (models.Subscription, error) {
	m.created = sub
	if sub.SubscriptionID == "" {
		sub.SubscriptionID = "generated"
	}
	return sub, m.createErr
}

func (m *mockSubscriptions) Get(_ context.Context, key models.SubscriptionKey) (models.Subscription, error) {
	m.lastKey = key
	return m.getResp, m.getErr
}

func (m *mockSubscriptions) List(_ context.Context, owner string) ([]models.Subscription, error) {
	m.lastOwner = owner
	return m.listResp, m.listErr
}

func (m *mockSubscriptions) Update(_ context.Context, sub models.Subscription) (models.Subscription, error) {
	m.updated = sub
	return sub, m.updateErr
}

func (m *mockSubscriptions) SetEnabled(_ context.Context, key models.SubscriptionKey, enabled bool) (models.Subscription, error) {
	m.lastKey = key
	m.enabledArg = &enabled
	return models.Subscription{Owner: key.Owner, SubscriptionID: key.SubscriptionID, Enabled: enabled}, m.enabledErr
}

func (m *mockSubscriptions) Delete(_ context.Context, key models.SubscriptionKey) error {
	m.lastKey = key
	return m.deleteErr
}

type mockNotifications struct {
	listResp   []models.Notification
	listErr    error
	readErr    error
	lastOwner  string
	lastUnread bool
	lastLimit  int
	lastRead   string
}

func (m *mockNotifications) List(_ context.Context, owner string, unreadOnly bool, limit int) ([]models.Notification, error) {
	m.lastOwner, m.lastUnread, m.lastLimit = owner, unreadOnly, limit
	return m.listResp, m.listErr
}

func (m *mockNotifications) MarkRead(_ context.Context, owner, id string) error {
	m.lastOwner, m.lastRead = owner, id
	return m.readErr
}

type mockAlarms struct {
	created   models.Alarm
	createErr error
	listResp  []models.Alarm
	deleteErr error
	lastOwner string
	lastID    string
}

func (m *mockAlarms) Create(_ context.Context, a models.Alarm) (models.Alarm, error) {
	m.created = a
	if a.AlarmID == "" {
		a.AlarmID = "generated"
	}
	return a, m.createErr
}

func (m *mockAlarms) List(_ context.Context, owner string) ([]models.Alarm, error) {
	m.lastOwner = owner
	return m.listResp, nil
}

func (m *mockAlarms) Delete(_ context.Context, owner, id string) error {
	m.lastOwner, m.lastID = owner, id
	return m.deleteErr
}

type mockEvents struct {
	summary models.PassSummary
	err     error
	lastRaw []byte
}

func (m *mockEvents) HandleEnvelope(_ context.Context, raw []byte) (models.PassSummary, error) {
	m.lastRaw = raw
	return m.summary, m.err
}

func (m *mockEvents) HandleMessage(context.Context, string, []byte) (models.PassSummary, error) {
	return m.summary, m.err
}

type mockHealth struct {
	report service.HealthReport
	err    error
	calls  int
}

func (m *mockHealth) Sweep(context.Context) (service.HealthReport, error) {
	m.calls++
	return m.report, m.err
}

// ---- helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func jsonHeader() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return h
}
