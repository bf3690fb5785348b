package app

import (
	"context"

	"notebell/internal/eventbus"
	"notebell/internal/notify"
	"notebell/internal/remind"
	logx "notebell/pkg/logx"
)

// watchEvents is the app-level consumer of the engine's event stream:
// it turns bus events into operator-facing log lines so the scheduler
// and dispatcher stay free of presentation concerns.
func (a *App) watchEvents(ctx context.Context) {
	watchEvents(ctx, a.bus, a.log.With(logx.String("comp", "events")))
}

func watchEvents(ctx context.Context, bus eventbus.Bus, log logx.Logger) {
	ch, unsub := bus.Subscribe(64)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			logEvent(log, ev)
		}
	}
}

func logEvent(log logx.Logger, ev eventbus.Event) {
	switch ev.Type {
	case "reminder.fired":
		id, _ := ev.Data.(remind.TimerID)
		log.Info("reminder fired", logx.String("doc", id.Path), logx.Int("line", id.Line))
	case "notify.sent":
		d, _ := ev.Data.(notify.DeliveryEvent)
		log.Debug("delivery confirmed", logx.String("channel", d.Channel))
	case "notify.failed":
		d, _ := ev.Data.(notify.DeliveryEvent)
		log.Warn("delivery failed", logx.String("channel", d.Channel), logx.String("reason", d.Error))
	case "vault.rescan":
		n, _ := ev.Data.(int)
		log.Debug("vault rescan completed", logx.Int("documents", n))
	case "gate.changed":
		authorized, _ := ev.Data.(bool)
		log.Info("sender authorization flipped", logx.Bool("authorized", authorized))
	default:
		log.Debug("event", logx.String("type", ev.Type))
	}
}

// gateChangeHook publishes the authorization flip on the bus before
// handing it to the controller, so observers see the transition even
// when no timers are affected by it.
func gateChangeHook(bus eventbus.Bus, ctrl *remind.Controller) func(bool) {
	return func(authorized bool) {
		bus.Publish(eventbus.Event{Type: "gate.changed", Data: authorized})
		ctrl.GateChanged(authorized)
	}
}
