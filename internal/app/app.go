// Package app wires the reminder engine together: config, logging,
// vault watching, the scheduler, the notification side, and hot reload.
package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"notebell/internal/config"
	"notebell/internal/eventbus"
	"notebell/internal/notify"
	"notebell/internal/remind"
	"notebell/internal/storage"
	"notebell/internal/vault"
	logx "notebell/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.ConfigManager

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	docs    *vault.Store
	watcher *vault.Watcher

	reg   *remind.Registry
	sched *remind.Scheduler
	ctrl  *remind.Controller

	gate *notify.Gate
	disp *notify.Dispatcher

	mu     sync.Mutex
	cur    *config.Config
	cfgCh  chan *config.Config
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logs, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// Storage (optional)
	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
		logDeliveryHistory(st, log)
	}

	docs := vault.New(cfg.Vault.Path)
	watcher := vault.NewWatcher(cfg.Vault.Path, log.With(logx.String("comp", "vault")))

	gate := notify.NewGate(mapGateRules(cfg), log.With(logx.String("comp", "gate")))

	disp := notify.NewDispatcher(
		mapDispatcherConfig(cfg),
		buildSenders(cfg, log),
		log.With(logx.String("comp", "notify")),
		bus, store,
	)

	reg := remind.NewRegistry(time.Now, log.With(logx.String("comp", "registry")))
	sched := remind.NewScheduler(
		remind.SchedulerConfig{DismissSet: cfg.DismissStatuses()},
		docs, reg, gate, disp, bus, time.Now,
		log.With(logx.String("comp", "scheduler")),
	)

	interval, err := cfg.ScanInterval()
	if err != nil {
		return nil, err
	}
	debounce, err := cfg.ScanDebounce()
	if err != nil {
		return nil, err
	}
	ctrl := remind.NewController(
		remind.ControllerConfig{RescanInterval: interval, DebounceWindow: debounce},
		sched, docs, watcher.Events(),
		log.With(logx.String("comp", "controller")),
	)
	gate.OnChange(gateChangeHook(bus, ctrl))

	if err := disp.Ready(); err != nil {
		// A configured channel that failed to construct leaves the
		// daemon silent; keep running so a config reload can recover.
		log.Warn("starting without notification channels", logx.Err(err))
	}

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logs,
		bus:     bus,
		store:   store,
		docs:    docs,
		watcher: watcher,
		reg:     reg,
		sched:   sched,
		ctrl:    ctrl,
		gate:    gate,
		disp:    disp,
		cur:     cfg,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()

	// Transactional config reload: validate before commit/publish.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return cfg.Validate()
	})
	a.cfgCh = a.cfgm.Subscribe(4)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.watcher.Run(runCtx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.ctrl.Run(runCtx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.reloadLoop(runCtx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.watchEvents(runCtx)
	}()

	a.log.Info("notebell started",
		logx.String("vault", a.docs.Root()),
		logx.Bool("authorized", a.gate.Authorized()),
	)
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
	case <-done:
	}

	a.cfgm.Unsubscribe(a.cfgCh)
	a.reg.CancelAll()
	if a.store != nil {
		_ = a.store.Close()
	}
	a.log.Info("notebell stopped")
	_ = a.logs.Close()
	return nil
}

func (a *App) reloadLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-a.cfgCh:
			if !ok {
				return
			}
			if cfg == nil {
				continue
			}
			a.applyConfig(cfg)
		}
	}
}

func (a *App) applyConfig(cfg *config.Config) {
	a.mu.Lock()
	old := a.cur
	a.cur = cfg
	a.mu.Unlock()

	changed, attrs := config.SummarizeConfigChange(old, cfg)
	if len(changed) == 0 {
		return
	}
	a.log.Info("config reloaded",
		append([]logx.Field{logx.String("sections", strings.Join(changed, ","))}, attrs...)...)

	a.logs.Apply(mapLoggingConfig(cfg))
	a.disp.Apply(mapDispatcherConfig(cfg))
	a.disp.SetSenders(buildSenders(cfg, a.log))
	if err := a.disp.Ready(); err != nil {
		a.log.Warn("config reload left no notification channels", logx.Err(err))
	}
	a.sched.Apply(remind.SchedulerConfig{DismissSet: cfg.DismissStatuses()})

	if interval, err := cfg.ScanInterval(); err == nil {
		if debounce, derr := cfg.ScanDebounce(); derr == nil {
			a.ctrl.Apply(remind.ControllerConfig{RescanInterval: interval, DebounceWindow: debounce})
		}
	}

	// Recompute last: an authorization flip cancels or rebuilds timers
	// via the controller callback, which wants the settings above in place.
	a.gate.Recompute(mapGateRules(cfg))

	if old != nil && strings.TrimSpace(old.Vault.Path) != strings.TrimSpace(cfg.Vault.Path) {
		a.log.Warn("vault.path changed; restart required to move the watcher")
	}
	if old != nil {
		oldSt, _, _ := mapStorageConfig(old)
		newSt, _, _ := mapStorageConfig(cfg)
		if oldSt != newSt {
			a.log.Warn("storage settings changed; restart required")
		}
	}
}

func buildSenders(cfg *config.Config, log logx.Logger) []notify.Sender {
	var out []notify.Sender

	if strings.TrimSpace(cfg.Ntfy.ServerURL) != "" {
		s, err := notify.NewNtfySender(notify.NtfyConfig{
			ServerURL: cfg.Ntfy.ServerURL,
			Topic:     cfg.Ntfy.Topic,
			Title:     cfg.Ntfy.Title,
			Tags:      cfg.Ntfy.Tags,
			Icon:      cfg.Ntfy.Icon,
			Auth:      cfg.Ntfy.Auth,
		})
		if err != nil {
			log.Warn("ntfy channel disabled", logx.Err(err))
		} else {
			out = append(out, s)
		}
	}

	if cfg.Telegram != nil && cfg.Telegram.Enabled {
		s, err := notify.NewTelegramSender(notify.TelegramConfig{
			Enabled: true,
			Token:   cfg.Telegram.Token,
			ChatID:  cfg.Telegram.ChatID,
		})
		if err != nil {
			log.Warn("telegram channel disabled", logx.Err(err))
		} else {
			out = append(out, s)
		}
	}

	return out
}

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapGateRules(cfg *config.Config) notify.GateRules {
	return notify.GateRules{
		Hostnames: cfg.Sender.Hostnames,
		Addresses: cfg.Sender.Addresses,
	}
}

func mapDispatcherConfig(cfg *config.Config) notify.DispatcherConfig {
	timeout, err := config.ParseDurationField("notify.send_timeout", cfg.Notify.SendTimeout)
	if err != nil {
		timeout = 0
	}
	return notify.DispatcherConfig{
		RatePerSec:  cfg.Notify.RatePerSec,
		SendTimeout: timeout,
	}
}

// logDeliveryHistory surfaces the tail of the persisted send history at
// startup, giving the operator a quick "what happened while I was away"
// line without an external reader.
func logDeliveryHistory(store storage.Store, log logx.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	recent, err := store.RecentDeliveries(ctx, 20)
	if err != nil {
		log.Warn("delivery history unreadable", logx.Err(err))
		return
	}
	if len(recent) == 0 {
		log.Info("delivery history empty")
		return
	}
	last := recent[len(recent)-1]
	log.Info("delivery history loaded",
		logx.Int("recent", len(recent)),
		logx.Time("last_at", last.At),
		logx.Bool("last_ok", last.OK),
	)
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{
		Driver:      driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, true, nil
}
