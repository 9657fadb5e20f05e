package reports

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidTransition indicates a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrTerminalStatus indicates an attempt to leave the completed status.
	ErrTerminalStatus = errors.New("completed request is immutable")
)

func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

// ValidateTransition checks a status change.
//
// Valid transitions:
//   - pending → {processing, completed, failed}
//   - processing → {processing, completed, failed}
//   - failed → {processing, completed, failed} (scheduler retry)
//   - completed → completed
//
// A request never returns to pending.
func ValidateTransition(from, to Status) error {
	if from.IsTerminal() {
		if from != to {
			return fmt.Errorf("%w: %s → %s", ErrTerminalStatus, from, to)
		}
		return nil
	}

	switch from {
	case StatusPending, StatusProcessing, StatusFailed:
		switch to {
		case StatusProcessing, StatusCompleted, StatusFailed:
			return nil
		}
	}
	return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
}

// Policy decides which requests the scheduler may dispatch again.
type Policy struct {
	Ceiling  int
	Cooldown time.Duration
}

func DefaultPolicy() Policy {
	return Policy{Ceiling: 100, Cooldown: time.Hour}
}

// Eligible mirrors the scheduler query: a request that is not completed, is
// below the attempts ceiling, and whose last attempt is unset or older than
// the cooldown. A processing request only goes quiet for that long when its
// poll job was lost or dead-lettered.
func (p Policy) Eligible(req ReportRequest, now time.Time) bool {
	switch req.Status {
	case StatusPending, StatusProcessing, StatusFailed:
	default:
		return false
	}
	if req.Attempts >= p.Ceiling {
		return false
	}
	return req.LastAttemptAt == nil || req.LastAttemptAt.Before(now.Add(-p.Cooldown))
}
