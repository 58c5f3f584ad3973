package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"device_triggers/internal/engine"
	"device_triggers/internal/logger"
	"device_triggers/internal/metrics"
	"device_triggers/internal/models"
)

const (
	ReasonExcessiveTriggering = "excessive_triggering"
	ReasonPotentialLoop       = "potential_loop"

	DefaultHealthSchedule = "@every 5m"
	defaultSweepTimeout   = time.Minute
)

type HealthOptions struct {
	// Schedule is a cron spec or descriptor such as "@every 5m".
	Schedule string
	// MaxTriggers is the trigger count above which a subscription that also
	// fired within Window is disabled. Zero turns the check off.
	MaxTriggers int64
	Window      time.Duration
}

type HealthFinding struct {
	Key    models.SubscriptionKey `json:"key"`
	Reason string                 `json:"reason"`
}

type HealthReport struct {
	Checked  int             `json:"checked"`
	Disabled []HealthFinding `json:"disabled"`
}

type healthStore interface {
	ListEnabled(ctx context.Context) ([]models.Subscription, error)
	SetEnabled(ctx context.Context, key models.SubscriptionKey, enabled bool, reason string) error
}

// HealthMonitor periodically disables subscriptions that fire too often or
// whose commands would re-trigger them.
type HealthMonitor struct {
	store healthStore
	opts  HealthOptions
	log   *logger.Logger
	now   func() time.Time
}

func NewHealthMonitor(store healthStore, opts HealthOptions, log *logger.Logger) *HealthMonitor {
	if opts.Schedule == "" {
		opts.Schedule = DefaultHealthSchedule
	}
	if log == nil {
		log = logger.Nop()
	}
	return &HealthMonitor{store: store, opts: opts, log: log, now: time.Now}
}

// diagnose returns the reason sub should be disabled, or "".
func (m *HealthMonitor) diagnose(sub models.Subscription, now time.Time) string {
	if _, loops := engine.SelfTriggering(sub); loops {
		return ReasonPotentialLoop
	}
	if m.opts.MaxTriggers > 0 && sub.TriggerCount > m.opts.MaxTriggers &&
		sub.LastTriggeredAt != nil && now.Sub(*sub.LastTriggeredAt) <= m.opts.Window {
		return ReasonExcessiveTriggering
	}
	return ""
}

// Sweep checks every enabled subscription once. A failure to disable one
// subscription does not stop the sweep.
func (m *HealthMonitor) Sweep(ctx context.Context) (HealthReport, error) {
	subs, err := m.store.ListEnabled(ctx)
	if err != nil {
		return HealthReport{}, fmt.Errorf("list enabled subscriptions: %w", err)
	}

	now := m.now()
	report := HealthReport{Checked: len(subs), Disabled: []HealthFinding{}}
	var errs []error
	for _, sub := range subs {
		reason := m.diagnose(sub, now)
		if reason == "" {
			continue
		}
		if err := m.store.SetEnabled(ctx, sub.Key(), false, reason); err != nil {
			errs = append(errs, fmt.Errorf("disable %s: %w", sub.Key(), err))
			continue
		}
		metrics.RecordAutoDisabled(reason)
		m.log.Warnw("subscription_auto_disabled",
			"owner", sub.Owner,
			"subscription_id", sub.SubscriptionID,
			"device_id", sub.DeviceID,
			"reason", reason,
			"trigger_count", sub.TriggerCount,
		)
		report.Disabled = append(report.Disabled, HealthFinding{Key: sub.Key(), Reason: reason})
	}
	return report, errors.Join(errs...)
}

// Start schedules Sweep and stops the scheduler when ctx is done.
func (m *HealthMonitor) Start(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(m.opts.Schedule, func() {
		sctx, cancel := context.WithTimeout(ctx, defaultSweepTimeout)
		defer cancel()
		report, err := m.Sweep(sctx)
		if err != nil {
			m.log.Errorw("health_sweep_failed", "err", err)
		}
		m.log.Infow("health_sweep_done", "checked", report.Checked, "disabled", len(report.Disabled))
	})
	if err != nil {
		return fmt.Errorf("health schedule %q: %w", m.opts.Schedule, err)
	}
	c.Start()
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}
