package service

import (
	"context"
	"strings"

	"device_triggers/internal/models"
	"device_triggers/internal/repository"
)

const (
	defaultFeedLimit = 50
	maxFeedLimit     = 500
)

type NotificationService struct {
	repo repository.Notifications
}

func NewNotificationService(repo repository.Notifications) *NotificationService {
	return &NotificationService{repo: repo}
}

// clampLimit keeps feed pages within [1, maxFeedLimit].
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultFeedLimit
	case limit > maxFeedLimit:
		return maxFeedLimit
	default:
		return limit
	}
}

func (s *NotificationService) List(ctx context.Context, owner string, unreadOnly bool, limit int) ([]models.Notification, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, invalid("owner is required")
	}
	return s.repo.List(ctx, owner, unreadOnly, clampLimit(limit))
}

func (s *NotificationService) MarkRead(ctx context.Context, owner, notificationID string) error {
	if owner == "" || notificationID == "" {
		return invalid("owner and notification id are required")
	}
	return notFound(s.repo.MarkRead(ctx, owner, notificationID))
}
