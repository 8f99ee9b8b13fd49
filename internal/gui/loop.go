package gui

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var ErrLoopStopped = errors.New("render loop stopped")

// LoopMetrics receives render loop observations. Nil disables them.
type LoopMetrics interface {
	RenderQueueDepth(n int)
	RenderTaskObserve(d time.Duration)
}

// Loop is the single render context. Widgets owned by the loop may only be
// touched from tasks it runs; other goroutines hand work over with Post or Call.
type Loop struct {
	log     logrus.FieldLogger
	metrics LoopMetrics

	mu    sync.Mutex
	queue []func()
	wake  chan struct{}

	stopped  chan struct{}
	stopOnce sync.Once
}

func NewLoop(log logrus.FieldLogger, m LoopMetrics) *Loop {
	return &Loop{
		log:     log.WithField("component", "render_loop"),
		metrics: m,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
}

// Post queues fn to run on the loop. It never blocks and never drops work.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	n := len(l.queue)
	l.mu.Unlock()
	if l.metrics != nil {
		l.metrics.RenderQueueDepth(n)
	}
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Call runs fn on the loop and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-l.stopped:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending reports the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Run executes queued tasks in FIFO order until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stopOnce.Do(func() { close(l.stopped) })
	for {
		l.drain(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		n := len(l.queue)
		l.mu.Unlock()

		start := time.Now()
		l.exec(fn)
		if l.metrics != nil {
			l.metrics.RenderTaskObserve(time.Since(start))
			l.metrics.RenderQueueDepth(n)
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.WithField("panic", r).Error("render task panicked")
		}
	}()
	fn()
}
