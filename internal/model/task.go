package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNegativeDuration = errors.New("model: negative task duration")

// Task is a user-created schedule item. The scheduling core treats it as
// an opaque interval; everything beyond identity and timing belongs to
// the caller.
type Task struct {
	ID              string
	Title           string
	StartTime       time.Time
	DurationMinutes int
	IsCompleted     bool
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("model: task id is required")
	}
	if t.StartTime.IsZero() {
		return errors.New("model: task start time is required")
	}
	if t.DurationMinutes < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeDuration, t.DurationMinutes)
	}
	return nil
}

// Window is the task's occupied span. A zero-duration task occupies a
// single instant.
func (t Task) Window() TimeWindow {
	return TimeWindow{
		Start: t.StartTime,
		End:   t.StartTime.Add(time.Duration(t.DurationMinutes) * time.Minute),
	}
}
