package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nissyi-gh/flowboard/internal/model"
)

var (
	ErrQueueFull   = errors.New("notification queue is full")
	ErrQueueClosed = errors.New("notification queue is closed")
)

// Sender delivers a notification to the backend.
type Sender interface {
	CreateNotification(ctx context.Context, n model.Notification) error
}

// Dispatcher sends backend notifications on worker goroutines. Delivery is
// fire-and-forget: failures are logged and never reach the acting user.
type Dispatcher struct {
	sender Sender
	logger zerolog.Logger
	queue  chan model.Notification

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(sender Sender, queueSize int, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		sender: sender,
		logger: logger,
		queue:  make(chan model.Notification, queueSize),
	}
}

// Start launches n workers.
func (d *Dispatcher) Start(n int) {
	for i := 0; i < n; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Enqueue never blocks.
func (d *Dispatcher) Enqueue(n model.Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.queue <- n:
		return nil
	default:
		d.logger.Warn().
			Str("user_id", n.UserID).
			Str("title", n.Title).
			Msg("notification dropped, queue full")
		return ErrQueueFull
	}
}

// Shutdown stops accepting notifications and waits for queued ones to be
// sent or for ctx to end.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for n := range d.queue {
		if err := d.sender.CreateNotification(context.Background(), n); err != nil {
			d.logger.Error().
				Err(err).
				Str("user_id", n.UserID).
				Str("title", n.Title).
				Msg("failed to send notification")
			continue
		}
		d.logger.Debug().
			Str("user_id", n.UserID).
			Str("type", string(n.Type)).
			Msg("sent notification")
	}
}
