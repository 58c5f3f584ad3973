package engine

import (
	"context"
	"errors"
	"time"

	"device_triggers/internal/logger"
	"device_triggers/internal/metrics"
	"device_triggers/internal/models"
	"device_triggers/internal/telemetry"
)

// SubscriptionStore is the engine's view of the subscription repository.
//
// CompareAndStore writes next as the trigger state of key. expected is the
// state the engine read; a backend may use it for an optimistic check, but
// is not required to. Without that check two concurrent events for the same
// subscription can both pass cooldown and change detection before either
// write lands. Events of one device arrive serially in practice, so this
// race is accepted.
type SubscriptionStore interface {
	LoadActive(ctx context.Context, deviceID string) ([]models.Subscription, error)
	CompareAndStore(ctx context.Context, key models.SubscriptionKey, expected, next models.TriggerState) error
}

// NotificationSink receives the notification of every fired trigger.
type NotificationSink interface {
	Notify(ctx context.Context, n models.Notification) error
}

// CommandPublisher delivers a command payload to a device topic.
type CommandPublisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

const (
	DefaultTopicRoot         = "NBtechv1"
	DefaultEvaluationTimeout = 10 * time.Second
)

type Options struct {
	// TopicRoot is the first segment of device topics.
	TopicRoot string
	// Timeout bounds one whole evaluation pass. Zero disables it.
	Timeout time.Duration
	Now     func() time.Time
	NewID   func() string
	// IOStates and Alarms enable the I/O flip and alarm checks that run
	// before subscription evaluation. Either may be nil.
	IOStates IOStateStore
	Alarms   AlarmStore
}

type Engine struct {
	store     SubscriptionStore
	notifier  NotificationSink
	publisher CommandPublisher
	ioStates  IOStateStore
	alarms    AlarmStore
	log       *logger.Logger

	topicRoot string
	timeout   time.Duration
	now       func() time.Time
	newID     func() string
}

// New wires an engine. notifier and publisher may be nil, in which case the
// matching side effect is skipped.
func New(store SubscriptionStore, notifier NotificationSink, publisher CommandPublisher, log *logger.Logger, opts Options) *Engine {
	if opts.TopicRoot == "" {
		opts.TopicRoot = DefaultTopicRoot
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = newNotificationID
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		ioStates:  opts.IOStates,
		alarms:    opts.Alarms,
		log:       log,
		topicRoot: opts.TopicRoot,
		timeout:   opts.Timeout,
		now:       opts.Now,
		newID:     opts.NewID,
	}
}

// TopicRoot returns the configured device topic root.
func (e *Engine) TopicRoot() string { return e.topicRoot }

// HandleEnvelope normalizes a raw JSON envelope and runs one evaluation pass.
func (e *Engine) HandleEnvelope(ctx context.Context, raw []byte) (models.PassSummary, error) {
	ev, err := NormalizeJSON(raw)
	if err != nil {
		e.rejected(err)
		return models.PassSummary{}, err
	}
	return e.Process(ctx, ev)
}

// HandleMessage runs a pass for a message received on a device topic.
func (e *Engine) HandleMessage(ctx context.Context, topic string, payload []byte) (models.PassSummary, error) {
	ev, err := Normalize(map[string]any{"topic": topic, "payload": string(payload)})
	if err != nil {
		e.rejected(err)
		return models.PassSummary{}, err
	}
	return e.Process(ctx, ev)
}

func (e *Engine) rejected(err error) {
	metrics.RecordEvent("rejected")
	e.log.Warnw("event_rejected", "err", err)
}

// Process evaluates every active subscription of the event's device, one
// after another. A failure in one subscription never stops the others.
// I/O flips and alarms are checked first; they are best-effort and never
// fail the pass. Command echoes are not evaluated at all.
func (e *Engine) Process(ctx context.Context, ev models.DeviceEvent) (models.PassSummary, error) {
	summary := models.PassSummary{DeviceID: ev.DeviceID, MessageClass: ev.MessageClass}
	metrics.RecordEvent(string(ev.MessageClass))

	if ev.MessageClass == models.ClassCommand {
		e.log.Debugw("command_echo_skipped", "device_id", ev.DeviceID, "topic", ev.Topic)
		return summary, nil
	}

	start := time.Now()
	defer func() { metrics.ObservePass(time.Since(start)) }()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	ctx, span := telemetry.StartPassSpan(ctx, ev.DeviceID, string(ev.MessageClass))

	subs, err := e.store.LoadActive(ctx, ev.DeviceID)
	now := e.now()
	if err == nil {
		summary.IOChanges = e.checkIOStates(ctx, ev, subscriptionOwners(subs), now)
	}
	summary.Alarms = e.checkAlarms(ctx, ev, now)
	if err != nil {
		rerr := &RepositoryError{Op: "load_active", Err: err}
		e.log.Errorw("load_subscriptions_failed", "device_id", ev.DeviceID, "err", err)
		telemetry.EndPassSpan(span, 0, 0, rerr)
		return summary, rerr
	}

	summary.Results = make([]models.TriggerResult, 0, len(subs))
	for _, sub := range subs {
		if !sub.Enabled || sub.DeviceID != ev.DeviceID {
			continue
		}
		summary.Evaluated++

		var res models.TriggerResult
		if ctx.Err() != nil {
			res = models.TriggerResult{Owner: sub.Owner, SubscriptionID: sub.SubscriptionID, Reason: models.ReasonDeadlineExceeded}
			e.log.Warnw("evaluation_deadline_exceeded", "subscription_id", sub.SubscriptionID, "device_id", ev.DeviceID)
		} else {
			res = e.evaluate(ctx, sub, ev)
		}

		metrics.RecordEvaluation(string(res.Reason))
		if res.Fired {
			summary.Triggered++
		}
		summary.Results = append(summary.Results, res)
	}

	telemetry.EndPassSpan(span, summary.Evaluated, summary.Triggered, nil)
	return summary, nil
}

// evaluate runs one subscription through resolve, change detection,
// condition and safeguards, then persists and dispatches.
func (e *Engine) evaluate(ctx context.Context, sub models.Subscription, ev models.DeviceEvent) (res models.TriggerResult) {
	res = models.TriggerResult{Owner: sub.Owner, SubscriptionID: sub.SubscriptionID}

	ctx, span := telemetry.StartEvaluationSpan(ctx, sub.Owner, sub.SubscriptionID, sub.ParameterPath)
	defer func() { telemetry.EndEvaluationSpan(span, string(res.Reason), res.Fired) }()

	raw, ok := ResolvePath(ev.Attributes, sub.ParameterPath)
	if !ok {
		res.Reason = models.ReasonParameterMissing
		return res
	}
	current := Canonical(raw)
	now := e.now()

	prev := sub.State()
	observed := prev
	observed.LastProcessedValue = current
	isChange := sub.ConditionType == models.ConditionChange

	// change conditions store the value before any safeguard so a rejected
	// trigger cannot repeat on the same value once the cooldown expires
	if isChange {
		if err := e.store.CompareAndStore(ctx, sub.Key(), prev, observed); err != nil {
			return e.repositoryFailure(res, sub, "store_value", err)
		}
		prev = observed
	}

	reason, batch := e.decide(sub, current, now)
	if reason != models.ReasonFired {
		if !isChange {
			if err := e.store.CompareAndStore(ctx, sub.Key(), prev, observed); err != nil {
				return e.repositoryFailure(res, sub, "store_value", err)
			}
		}
		res.Reason = reason
		return res
	}

	fired := observed
	fired.TriggerCount++
	firedAt := now
	fired.LastTriggeredAt = &firedAt
	if err := e.store.CompareAndStore(ctx, sub.Key(), prev, fired); err != nil {
		return e.repositoryFailure(res, sub, "store_trigger", err)
	}

	res.Fired = true
	res.Reason = models.ReasonFired
	e.log.Infow("subscription_fired",
		"subscription_id", sub.SubscriptionID,
		"owner", sub.Owner,
		"device_id", sub.DeviceID,
		"parameter", sub.ParameterPath,
		"value", current.String(),
		"trigger_count", fired.TriggerCount,
	)

	n, issued, err := e.dispatch(ctx, sub, ev, current, batch, now)
	res.Notification = n
	res.CommandsIssued = issued
	if err != nil {
		res.DispatchError = err.Error()
	}
	return res
}

// decide applies change detection, the condition and the safeguards. It has
// no side effects besides logging.
func (e *Engine) decide(sub models.Subscription, current models.Value, now time.Time) (models.Reason, CommandBatch) {
	// every condition is gated: a repeated in-threshold reading must not
	// fire again once the cooldown has run out
	last := Canonical(sub.LastProcessedValue)
	if !Changed(current, last, ToleranceFraction(sub.ParameterPath, sub.ToleranceFraction)) {
		return models.ReasonUnchanged, CommandBatch{}
	}

	ok, err := EvaluateCondition(sub.ConditionType, current, Canonical(sub.ThresholdValue))
	if err != nil {
		e.log.Errorw("invalid_subscription_condition", "subscription_id", sub.SubscriptionID, "err", err)
		return models.ReasonInvalidCondition, CommandBatch{}
	}
	if !ok {
		return models.ReasonConditionNotMet, CommandBatch{}
	}

	if InCooldown(sub, now) {
		e.log.Debugw("subscription_in_cooldown", "subscription_id", sub.SubscriptionID, "last_triggered_at", sub.LastTriggeredAt)
		return models.ReasonCooldown, CommandBatch{}
	}
	if c, loop := SelfTriggering(sub); loop {
		e.log.Warnw("self_trigger_loop_blocked", "subscription_id", sub.SubscriptionID, "parameter", sub.ParameterPath, "action", c.Action)
		return models.ReasonSelfTriggerLoop, CommandBatch{}
	}
	if c, coupled := CoupledCommand(sub); coupled {
		e.log.Warnw("coupled_parameter_blocked", "subscription_id", sub.SubscriptionID, "parameter", sub.ParameterPath, "action", c.Action)
		return models.ReasonCoupledParameter, CommandBatch{}
	}

	batch := ValidateCommands(sub)
	for _, derr := range batch.Dropped {
		e.log.Warnw("command_dropped", "subscription_id", sub.SubscriptionID, "err", derr)
	}
	if batch.Blocked {
		e.log.Warnw("restart_blocks_commands", "subscription_id", sub.SubscriptionID)
	}
	return models.ReasonFired, batch
}

func (e *Engine) repositoryFailure(res models.TriggerResult, sub models.Subscription, op string, err error) models.TriggerResult {
	rerr := &RepositoryError{Op: op, SubscriptionID: sub.SubscriptionID, Err: err}
	e.log.Errorw("subscription_state_write_failed", "subscription_id", sub.SubscriptionID, "err", rerr)
	if errors.Is(err, context.DeadlineExceeded) {
		res.Reason = models.ReasonDeadlineExceeded
	} else {
		res.Reason = models.ReasonRepositoryError
	}
	return res
}
