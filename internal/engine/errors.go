package engine

import (
	"errors"
	"fmt"
)

var (
	ErrNoDeviceID       = errors.New("no device id in envelope")
	ErrNoAttributes     = errors.New("no attributes in envelope")
	ErrUnknownCondition = errors.New("unknown condition type")
)

// NormalizationError means the whole event is unusable and is skipped.
type NormalizationError struct {
	Err error
}

func (e *NormalizationError) Error() string { return "normalize event: " + e.Err.Error() }

func (e *NormalizationError) Unwrap() error { return e.Err }

// RepositoryError abandons one subscription's evaluation for the current event.
type RepositoryError struct {
	Op             string
	SubscriptionID string
	Err            error
}

func (e *RepositoryError) Error() string {
	if e.SubscriptionID == "" {
		return fmt.Sprintf("repository %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("repository %s for subscription %s: %v", e.Op, e.SubscriptionID, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// DispatchError is a failed notification or command publish. It never
// un-fires a trigger.
type DispatchError struct {
	Stage          string // "notify" or "command"
	SubscriptionID string
	Target         string
	Err            error
}

func (e *DispatchError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("dispatch %s for subscription %s: %v", e.Stage, e.SubscriptionID, e.Err)
	}
	return fmt.Sprintf("dispatch %s to %s for subscription %s: %v", e.Stage, e.Target, e.SubscriptionID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
