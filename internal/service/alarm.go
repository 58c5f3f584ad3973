package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"device_triggers/internal/models"
	"device_triggers/internal/repository"
)

type AlarmService struct {
	repo  repository.Alarms
	newID func() string
	now   func() time.Time
}

func NewAlarmService(repo repository.Alarms) *AlarmService {
	return &AlarmService{repo: repo, newID: uuid.NewString, now: time.Now}
}

func (s *AlarmService) Create(ctx context.Context, a models.Alarm) (models.Alarm, error) {
	a.Owner = strings.TrimSpace(a.Owner)
	a.DeviceID = strings.TrimSpace(a.DeviceID)
	a.VariableName = strings.TrimSpace(a.VariableName)
	a.Condition = models.ConditionType(strings.ToLower(string(a.Condition)))

	switch {
	case a.Owner == "":
		return a, invalid("owner is required")
	case a.DeviceID == "":
		return a, invalid("deviceID is required")
	case a.VariableName == "":
		return a, invalid("variableName is required")
	case !models.ValidAlarmCondition(a.Condition):
		return a, invalid("alarm condition must be above or below, got %q", a.Condition)
	case math.IsNaN(a.Threshold) || math.IsInf(a.Threshold, 0):
		return a, invalid("threshold must be finite")
	}

	if a.AlarmID == "" {
		a.AlarmID = s.newID()
	}
	a.LastTriggeredAt = nil
	a.CreatedAt = s.now().UTC()
	if err := s.repo.Create(ctx, a); err != nil {
		return a, err
	}
	return a, nil
}

func (s *AlarmService) List(ctx context.Context, owner string) ([]models.Alarm, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, invalid("owner is required")
	}
	return s.repo.ListByOwner(ctx, owner)
}

func (s *AlarmService) Delete(ctx context.Context, owner, alarmID string) error {
	if owner == "" || alarmID == "" {
		return invalid("owner and alarm id are required")
	}
	return notFound(s.repo.Delete(ctx, owner, alarmID))
}
