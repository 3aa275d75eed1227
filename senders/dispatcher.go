package senders

import (
	"context"
	"fmt"
	"sync"

	"github.com/fiffu/stockwatch/config"
	"github.com/fiffu/stockwatch/lib/models"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Dispatcher owns notification delivery. Notifications are queued by the ingestor after
// persistence and delivered in order by a single goroutine; anything still queued when the
// process dies is lost.
type Dispatcher struct {
	log         *zap.Logger
	sender      Sender
	maxAttempts int

	queue    chan models.Notification
	stopped  chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewDispatcher(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, registry Registry) (*Dispatcher, error) {
	sender, ok := registry[cfg.Notify.Platform]
	if !ok {
		return nil, fmt.Errorf("no sender registered for platform %q", cfg.Notify.Platform)
	}
	d := newDispatcher(log, sender, cfg.Notify.MaxAttempts, cfg.Notify.QueueSize)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go d.Run()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Sugar().Info("Trying to stop dispatcher")
			return d.Stop(ctx)
		},
	})
	return d, nil
}

func newDispatcher(log *zap.Logger, sender Sender, maxAttempts, queueSize int) *Dispatcher {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Dispatcher{
		log:         log,
		sender:      sender,
		maxAttempts: maxAttempts,
		queue:       make(chan models.Notification, queueSize),
		stopped:     make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Enqueue blocks only while the queue is full. After Stop it drops the notification.
func (d *Dispatcher) Enqueue(n models.Notification) {
	if len(n.Messages) == 0 {
		return
	}
	select {
	case d.queue <- n:
	case <-d.stopped:
		d.log.Sugar().Warnw("Dispatcher stopped, dropping notification", "recipient", n.Recipient)
	}
}

// Run delivers queued notifications until Stop, then drains what is already queued.
func (d *Dispatcher) Run() {
	defer close(d.done)
	ctx := context.Background()

	for {
		select {
		case n := <-d.queue:
			d.Deliver(ctx, n)
		case <-d.stopped:
			for {
				select {
				case n := <-d.queue:
					d.Deliver(ctx, n)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() { close(d.stopped) })
	select {
	case <-d.done:
		d.log.Sugar().Info("Dispatcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver chunks the notification to the sender's limit and sends each chunk, retrying
// immediately on failure. It reports how many chunks were delivered.
func (d *Dispatcher) Deliver(ctx context.Context, n models.Notification) int {
	delivered := 0
	for _, chunk := range Chunk(n.Messages, d.sender.Limit()) {
		var err error
		for attempt := 1; attempt <= d.maxAttempts; attempt++ {
			if err = d.sender.Send(ctx, n.Recipient, chunk); err == nil {
				break
			}
			d.log.Sugar().Warnw("Delivery attempt failed", "recipient", n.Recipient, "attempt", attempt, "err", err)
		}
		if err != nil {
			d.log.Sugar().Errorw("Giving up on notification chunk", "recipient", n.Recipient, "attempts", d.maxAttempts, "err", err)
			continue
		}
		delivered++
	}
	return delivered
}
