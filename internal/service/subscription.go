package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"device_triggers/internal/engine"
	"device_triggers/internal/models"
	"device_triggers/internal/repository"
)

type SubscriptionService struct {
	repo  repository.Subscriptions
	newID func() string
	now   func() time.Time
}

func NewSubscriptionService(repo repository.Subscriptions) *SubscriptionService {
	return &SubscriptionService{repo: repo, newID: uuid.NewString, now: time.Now}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// normalize validates the configurable fields of sub and fills defaults.
// Trigger state is left untouched.
func normalize(sub models.Subscription) (models.Subscription, error) {
	sub.Owner = strings.TrimSpace(sub.Owner)
	sub.DeviceID = strings.TrimSpace(sub.DeviceID)
	sub.ParameterPath = strings.TrimSpace(sub.ParameterPath)

	if sub.Owner == "" {
		return sub, invalid("owner is required")
	}
	if sub.DeviceID == "" {
		return sub, invalid("deviceID is required")
	}
	if sub.ParameterPath == "" {
		return sub, invalid("parameterPath is required")
	}
	if !sub.ConditionType.Valid() {
		return sub, invalid("unknown conditionType %q", sub.ConditionType)
	}
	if sub.NotificationMethod == "" {
		sub.NotificationMethod = models.NotifyInApp
	}
	if !sub.NotificationMethod.Valid() {
		return sub, invalid("unknown notificationMethod %q", sub.NotificationMethod)
	}

	if sub.ConditionType == models.ConditionChange {
		sub.ThresholdValue = models.Null()
	} else {
		if sub.ThresholdValue.IsNull() {
			return sub, invalid("thresholdValue is required for %s", sub.ConditionType)
		}
		sub.ThresholdValue = engine.Canonical(sub.ThresholdValue)
	}

	if sub.CooldownMillis < 0 {
		return sub, invalid("cooldownMillis must not be negative")
	}
	if f := sub.ToleranceFraction; f != nil && (*f <= 0 || *f > 1) {
		return sub, invalid("toleranceFraction must be in (0, 1]")
	}

	cmds := make([]models.Command, 0, len(sub.Commands))
	for i, c := range sub.Commands {
		c.Action = strings.ToLower(strings.TrimSpace(c.Action))
		if c.Action == "" {
			c.Action = models.ActionNone
		}
		if _, err := engine.ResolveCommand(c, sub.DeviceID); err != nil {
			return sub, invalid("commands[%d]: %v", i, err)
		}
		cmds = append(cmds, c)
	}
	if len(cmds) == 0 {
		cmds = []models.Command{{Action: models.ActionNone}}
	}
	sub.Commands = cmds
	return sub, nil
}

// checkConflict enforces a single enabled change subscription per device
// parameter across all owners.
func (s *SubscriptionService) checkConflict(ctx context.Context, sub models.Subscription) error {
	if !sub.Enabled || sub.ConditionType != models.ConditionChange {
		return nil
	}
	others, err := s.repo.ListByDeviceParameter(ctx, sub.DeviceID, sub.ParameterPath)
	if err != nil {
		return err
	}
	for _, o := range others {
		if o.Key() == sub.Key() {
			continue
		}
		if o.Enabled && o.ConditionType == models.ConditionChange {
			return fmt.Errorf("%w: %s already watches %s on %s for changes", ErrConflict, o.Key(), sub.ParameterPath, sub.DeviceID)
		}
	}
	return nil
}

// Create stores a new subscription with fresh trigger state.
func (s *SubscriptionService) Create(ctx context.Context, sub models.Subscription) (models.Subscription, error) {
	sub, err := normalize(sub)
	if err != nil {
		return models.Subscription{}, err
	}
	if sub.SubscriptionID == "" {
		sub.SubscriptionID = s.newID()
	}
	sub.ApplyState(models.TriggerState{LastProcessedValue: models.Null()})
	sub.AutoDisabledReason = ""
	now := s.now().UTC()
	sub.CreatedAt, sub.UpdatedAt = now, now

	if err := s.checkConflict(ctx, sub); err != nil {
		return models.Subscription{}, err
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return models.Subscription{}, err
	}
	return sub, nil
}

func (s *SubscriptionService) Get(ctx context.Context, key models.SubscriptionKey) (models.Subscription, error) {
	sub, err := s.repo.Get(ctx, key)
	if err != nil {
		return models.Subscription{}, notFound(err)
	}
	return sub, nil
}

func (s *SubscriptionService) List(ctx context.Context, owner string) ([]models.Subscription, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, invalid("owner is required")
	}
	return s.repo.ListByOwner(ctx, owner)
}

// Update replaces the configuration of an existing subscription. Trigger
// state survives unless the watched device, parameter or condition changes.
func (s *SubscriptionService) Update(ctx context.Context, sub models.Subscription) (models.Subscription, error) {
	current, err := s.repo.Get(ctx, sub.Key())
	if err != nil {
		return models.Subscription{}, notFound(err)
	}
	sub, err = normalize(sub)
	if err != nil {
		return models.Subscription{}, err
	}
	if err := s.checkConflict(ctx, sub); err != nil {
		return models.Subscription{}, err
	}

	reset := current.DeviceID != sub.DeviceID ||
		current.ParameterPath != sub.ParameterPath ||
		current.ConditionType != sub.ConditionType
	state := current.State()
	if reset {
		state = models.TriggerState{LastProcessedValue: models.Null()}
	}
	sub.ApplyState(state)
	sub.CreatedAt = current.CreatedAt
	sub.UpdatedAt = s.now().UTC()
	if sub.Enabled {
		sub.AutoDisabledReason = ""
	} else {
		sub.AutoDisabledReason = current.AutoDisabledReason
	}

	if err := s.repo.Update(ctx, sub); err != nil {
		return models.Subscription{}, notFound(err)
	}
	if reset {
		if err := s.repo.CompareAndStore(ctx, sub.Key(), current.State(), state); err != nil {
			return models.Subscription{}, notFound(err)
		}
	}
	return sub, nil
}

// SetEnabled toggles a subscription. Enabling clears any auto-disable reason.
func (s *SubscriptionService) SetEnabled(ctx context.Context, key models.SubscriptionKey, enabled bool) (models.Subscription, error) {
	sub, err := s.repo.Get(ctx, key)
	if err != nil {
		return models.Subscription{}, notFound(err)
	}
	sub.Enabled = enabled
	if err := s.checkConflict(ctx, sub); err != nil {
		return models.Subscription{}, err
	}
	reason := ""
	if !enabled {
		reason = sub.AutoDisabledReason
	}
	if err := s.repo.SetEnabled(ctx, key, enabled, reason); err != nil {
		return models.Subscription{}, notFound(err)
	}
	sub.AutoDisabledReason = reason
	sub.UpdatedAt = s.now().UTC()
	return sub, nil
}

func (s *SubscriptionService) Delete(ctx context.Context, key models.SubscriptionKey) error {
	return notFound(s.repo.Delete(ctx, key))
}
