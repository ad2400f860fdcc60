package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const taskQueueSize = 256

// ErrLoopStopped is returned when posting to a loop that has exited.
var ErrLoopStopped = errors.New("playback loop stopped")

// Loop is the host animation loop. A single goroutine (Run) executes both
// animation frames and posted control tasks, so a task never overlaps a
// frame and playback state needs no locks.
type Loop struct {
	interval time.Duration
	tasks    chan func()
	pending  []FrameFunc
	logger   *slog.Logger

	stopOnce sync.Once
	done     chan struct{}
}

// NewLoop creates a loop delivering frames at frameRate per second.
func NewLoop(frameRate int, logger *slog.Logger) *Loop {
	if frameRate <= 0 {
		frameRate = 60
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		interval: time.Second / time.Duration(frameRate),
		tasks:    make(chan func(), taskQueueSize),
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Interval returns the frame period.
func (l *Loop) Interval() time.Duration {
	return l.interval
}

// RequestFrame arms fn for the next frame. Only call it from the loop
// goroutine, i.e. from a frame or a posted task.
func (l *Loop) RequestFrame(fn FrameFunc) {
	l.pending = append(l.pending, fn)
}

// Post queues fn to run on the loop goroutine without waiting for it.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrLoopStopped
	default:
	}
	select {
	case l.tasks <- fn:
		return nil
	case <-l.done:
		return ErrLoopStopped
	}
}

// Do runs fn on the loop goroutine and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return fmt.Errorf("waiting for playback loop: %w", ctx.Err())
	}
}

// Run executes frames and tasks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	defer l.stopOnce.Do(func() { close(l.done) })

	l.logger.Debug("Playback loop started", "interval", l.interval)
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("Playback loop stopped")
			return nil
		case fn := <-l.tasks:
			fn()
		case now := <-ticker.C:
			frames := l.pending
			l.pending = nil
			for _, fn := range frames {
				fn(now)
			}
		}
	}
}
