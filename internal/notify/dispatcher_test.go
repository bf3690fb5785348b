package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"notebell/internal/eventbus"
	logx "notebell/pkg/logx"
)

type fakeSender struct {
	name string
	err  error

	mu    sync.Mutex
	calls []Notification
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) Send(_ context.Context, n Notification) error {
	f.mu.Lock()
	f.calls = append(f.calls, n)
	f.mu.Unlock()
	return f.err
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestDispatchFansOutToAllChannels(t *testing.T) {
	t.Parallel()
	a := &fakeSender{name: "ntfy"}
	b := &fakeSender{name: "telegram"}
	d := NewDispatcher(DispatcherConfig{RatePerSec: 100}, []Sender{a, b}, logx.Nop(), nil, nil)

	d.Dispatch(context.Background(), Notification{Body: "hello", Priority: 4})
	if a.count() != 1 || b.count() != 1 {
		t.Fatalf("calls = %d, %d; want 1, 1", a.count(), b.count())
	}
}

func TestDispatchFailureDoesNotStopOtherChannels(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	broken := &fakeSender{name: "ntfy", err: errors.New("boom")}
	healthy := &fakeSender{name: "telegram"}
	d := NewDispatcher(DispatcherConfig{RatePerSec: 100}, []Sender{broken, healthy}, logx.Nop(), bus, nil)

	d.Dispatch(context.Background(), Notification{Body: "hello"})

	if broken.count() != 1 || healthy.count() != 1 {
		t.Fatalf("calls = %d, %d; want 1, 1", broken.count(), healthy.count())
	}

	types := map[string]int{}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-events:
			types[ev.Type]++
		case <-time.After(time.Second):
			t.Fatalf("missing bus event, got %v", types)
		}
	}
	if types["notify.failed"] != 1 || types["notify.sent"] != 1 {
		t.Fatalf("event types = %v", types)
	}
}

func TestDispatchNoSendersIsSilentNoop(t *testing.T) {
	t.Parallel()
	d := NewDispatcher(DispatcherConfig{}, nil, logx.Nop(), nil, nil)
	d.Dispatch(context.Background(), Notification{Body: "hello"})
}

func TestDispatchRateLimits(t *testing.T) {
	t.Parallel()
	s := &fakeSender{name: "ntfy"}
	// 2/s with burst 2: the third send in a burst must wait ~500ms.
	d := NewDispatcher(DispatcherConfig{RatePerSec: 2}, []Sender{s}, logx.Nop(), nil, nil)

	start := time.Now()
	for i := 0; i < 3; i++ {
		d.Dispatch(context.Background(), Notification{Body: "x"})
	}
	if elapsed := time.Since(start); elapsed < 300*time.Millisecond {
		t.Fatalf("burst of 3 at 2/s finished in %v, limiter not applied", elapsed)
	}
	if s.count() != 3 {
		t.Fatalf("calls = %d, want 3", s.count())
	}
}

func TestSendAdaptsToNotifierContract(t *testing.T) {
	t.Parallel()
	s := &fakeSender{name: "ntfy"}
	d := NewDispatcher(DispatcherConfig{RatePerSec: 100}, []Sender{s}, logx.Nop(), nil, nil)

	d.Send(context.Background(), "drink water", 5)

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) != 1 || s.calls[0].Body != "drink water" || s.calls[0].Priority != 5 {
		t.Fatalf("calls = %+v", s.calls)
	}
}

func TestReadyReportsMissingChannels(t *testing.T) {
	t.Parallel()
	d := NewDispatcher(DispatcherConfig{}, nil, logx.Nop(), nil, nil)
	if err := d.Ready(); !errors.Is(err, ErrNoSenders) {
		t.Fatalf("Ready = %v, want ErrNoSenders", err)
	}

	d.SetSenders([]Sender{&fakeSender{name: "ntfy"}})
	if err := d.Ready(); err != nil {
		t.Fatalf("Ready with a sender = %v", err)
	}

	d.SetSenders(nil)
	if err := d.Ready(); !errors.Is(err, ErrNoSenders) {
		t.Fatalf("Ready after clearing = %v, want ErrNoSenders", err)
	}
}

func TestSetSendersSwapsChannelSet(t *testing.T) {
	t.Parallel()
	old := &fakeSender{name: "ntfy"}
	d := NewDispatcher(DispatcherConfig{RatePerSec: 100}, []Sender{old}, logx.Nop(), nil, nil)

	next := &fakeSender{name: "telegram"}
	d.SetSenders([]Sender{next})
	d.Dispatch(context.Background(), Notification{Body: "x"})

	if old.count() != 0 || next.count() != 1 {
		t.Fatalf("calls = %d, %d; want 0, 1", old.count(), next.count())
	}
}
