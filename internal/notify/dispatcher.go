package notify

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"notebell/internal/eventbus"
	"notebell/internal/storage"
	logx "notebell/pkg/logx"
)

type DispatcherConfig struct {
	// RatePerSec caps outbound sends (token bucket, burst = rate).
	RatePerSec int
	// SendTimeout bounds one send call.
	SendTimeout time.Duration
}

// DeliveryEvent is the bus payload for notify.sent / notify.failed.
type DeliveryEvent struct {
	Channel  string
	Document string
	At       time.Time
	Error    string
}

// Dispatcher fans a fired reminder out to every configured channel.
//
// A failed send is surfaced exactly once (log + bus event + delivery
// record) and never retried; it must not delay or block later timers,
// so each Dispatch call does its own rate-limited sends inline on the
// calling (timer) goroutine.
type Dispatcher struct {
	log   logx.Logger
	bus   eventbus.Bus
	store storage.Store

	mu      sync.Mutex
	cfg     DispatcherConfig
	limiter *rate.Limiter
	senders []Sender
}

func NewDispatcher(cfg DispatcherConfig, senders []Sender, log logx.Logger, bus eventbus.Bus, store storage.Store) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	d := &Dispatcher{log: log, bus: bus, store: store, senders: senders}
	d.applyLocked(cfg)
	return d
}

func (d *Dispatcher) Apply(cfg DispatcherConfig) {
	d.mu.Lock()
	d.applyLocked(cfg)
	d.mu.Unlock()
}

func (d *Dispatcher) applyLocked(cfg DispatcherConfig) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	d.cfg = cfg
	d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// SetSenders swaps the channel set (used on config reload).
func (d *Dispatcher) SetSenders(senders []Sender) {
	d.mu.Lock()
	d.senders = senders
	d.mu.Unlock()
}

// Ready reports whether at least one delivery channel is wired up.
// Returns ErrNoSenders when dispatching would silently go nowhere.
func (d *Dispatcher) Ready() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.senders) == 0 {
		return ErrNoSenders
	}
	return nil
}

// Send implements the scheduler's Notifier contract.
func (d *Dispatcher) Send(ctx context.Context, text string, priority int) {
	d.Dispatch(ctx, Notification{Body: text, Priority: priority})
}

func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) {
	d.mu.Lock()
	senders := d.senders
	lim := d.limiter
	timeout := d.cfg.SendTimeout
	d.mu.Unlock()

	if len(senders) == 0 {
		d.log.Warn("reminder fired but no notification channels configured")
		return
	}

	for _, s := range senders {
		if err := lim.Wait(ctx); err != nil {
			return
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		err := s.Send(callCtx, n)
		cancel()

		d.record(s.Name(), n, err)
	}
}

func (d *Dispatcher) record(channel string, n Notification, err error) {
	now := time.Now()

	if err != nil {
		d.log.Error("notification send failed",
			logx.String("channel", channel),
			logx.String("doc", n.Document),
			logx.Err(err),
		)
	} else {
		d.log.Info("notification sent",
			logx.String("channel", channel),
			logx.String("doc", n.Document),
			logx.Int("priority", n.Priority),
		)
	}

	if d.bus != nil {
		typ := "notify.sent"
		ev := DeliveryEvent{Channel: channel, Document: n.Document, At: now}
		if err != nil {
			typ = "notify.failed"
			ev.Error = err.Error()
		}
		d.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: ev})
	}

	if d.store != nil {
		rec := storage.Delivery{
			At:       now,
			Channel:  channel,
			Document: n.Document,
			Body:     n.Body,
			Priority: n.Priority,
			OK:       err == nil,
		}
		if err != nil {
			rec.Error = err.Error()
		}
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if serr := d.store.AppendDelivery(sctx, rec); serr != nil {
			d.log.Debug("delivery record write failed", logx.Err(serr))
		}
		cancel()
	}
}
