// Package notify covers both kinds of user feedback: transient toasts shown
// by the board and notifications delivered to other users by the backend.
package notify

import (
	"time"
)

type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Toast is one transient message.
type Toast struct {
	Level     Level
	Message   string
	ExpiresAt time.Time
}

// Notifier receives the terminal outcome of a user action.
type Notifier interface {
	Notify(level Level, message string)
}

// Toasts is a bounded queue of toasts. It is owned by the UI goroutine.
type Toasts struct {
	ttl   time.Duration
	max   int
	now   func() time.Time
	items []Toast
}

func NewToasts(ttl time.Duration, max int) *Toasts {
	if max < 1 {
		max = 1
	}
	return &Toasts{ttl: ttl, max: max, now: time.Now}
}

// Notify appends a toast, dropping the oldest when full.
func (q *Toasts) Notify(level Level, message string) {
	q.items = append(q.items, Toast{
		Level:     level,
		Message:   message,
		ExpiresAt: q.now().Add(q.ttl),
	})
	if len(q.items) > q.max {
		q.items = q.items[len(q.items)-q.max:]
	}
}

// Prune drops expired toasts and reports whether any remain.
func (q *Toasts) Prune() bool {
	now := q.now()
	kept := q.items[:0]
	for _, t := range q.items {
		if now.Before(t.ExpiresAt) {
			kept = append(kept, t)
		}
	}
	q.items = kept
	return len(q.items) > 0
}

// Active returns the toasts that have not expired, oldest first.
func (q *Toasts) Active() []Toast {
	now := q.now()
	out := make([]Toast, 0, len(q.items))
	for _, t := range q.items {
		if now.Before(t.ExpiresAt) {
			out = append(out, t)
		}
	}
	return out
}

// Recorder keeps every notification. Useful for tests and headless runs.
type Recorder struct {
	Toasts []Toast
}

func (r *Recorder) Notify(level Level, message string) {
	r.Toasts = append(r.Toasts, Toast{Level: level, Message: message})
}
