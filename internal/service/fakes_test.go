package service

import (
	"context"
	"sort"
	"sync"

	"device_triggers/internal/models"
	"device_triggers/internal/repository"
)

// memSubs is an in-memory repository.Subscriptions.
type memSubs struct {
	mu       sync.Mutex
	items    map[models.SubscriptionKey]models.Subscription
	listErr  error
	setErr   map[models.SubscriptionKey]error
	stored   []models.TriggerState
	setCalls []string
}

func newMemSubs(subs ...models.Subscription) *memSubs {
	m := &memSubs{items: map[models.SubscriptionKey]models.Subscription{}, setErr: map[models.SubscriptionKey]error{}}
	for _, s := range subs {
		m.items[s.Key()] = s
	}
	return m
}

func (m *memSubs) sorted(filter func(models.Subscription) bool) []models.Subscription {
	var out []models.Subscription
	for _, s := range m.items {
		if filter(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().String() < out[j].Key().String() })
	return out
}

func (m *memSubs) LoadActive(_ context.Context, deviceID string) ([]models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(s models.Subscription) bool { return s.Enabled && s.DeviceID == deviceID }), nil
}

func (m *memSubs) CompareAndStore(_ context.Context, key models.SubscriptionKey, _, next models.TriggerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[key]
	if !ok {
		return repository.ErrNotFound
	}
	s.ApplyState(next)
	m.items[key] = s
	m.stored = append(m.stored, next)
	return nil
}

func (m *memSubs) Create(_ context.Context, s models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[s.Key()] = s
	return nil
}

func (m *memSubs) Update(_ context.Context, s models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.items[s.Key()]
	if !ok {
		return repository.ErrNotFound
	}
	s.ApplyState(cur.State())
	m.items[s.Key()] = s
	return nil
}

func (m *memSubs) Get(_ context.Context, key models.SubscriptionKey) (models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[key]
	if !ok {
		return models.Subscription{}, repository.ErrNotFound
	}
	return s, nil
}

func (m *memSubs) ListByOwner(_ context.Context, owner string) ([]models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(s models.Subscription) bool { return s.Owner == owner }), nil
}

func (m *memSubs) ListByDeviceParameter(_ context.Context, deviceID, path string) ([]models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(s models.Subscription) bool { return s.DeviceID == deviceID && s.ParameterPath == path }), nil
}

func (m *memSubs) ListEnabled(context.Context) ([]models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.sorted(func(s models.Subscription) bool { return s.Enabled }), nil
}

func (m *memSubs) SetEnabled(_ context.Context, key models.SubscriptionKey, enabled bool, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.setErr[key]; err != nil {
		return err
	}
	s, ok := m.items[key]
	if !ok {
		return repository.ErrNotFound
	}
	s.Enabled = enabled
	s.AutoDisabledReason = reason
	m.items[key] = s
	m.setCalls = append(m.setCalls, key.String()+":"+reason)
	return nil
}

func (m *memSubs) Delete(_ context.Context, key models.SubscriptionKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[key]; !ok {
		return repository.ErrNotFound
	}
	delete(m.items, key)
	return nil
}

type memFeed struct {
	listed  []int
	unread  []bool
	readErr error
	out     []models.Notification
}

func (f *memFeed) Append(context.Context, models.Notification) error { return nil }

func (f *memFeed) List(_ context.Context, _ string, unreadOnly bool, limit int) ([]models.Notification, error) {
	f.listed = append(f.listed, limit)
	f.unread = append(f.unread, unreadOnly)
	return f.out, nil
}

func (f *memFeed) MarkRead(context.Context, string, string) error { return f.readErr }
