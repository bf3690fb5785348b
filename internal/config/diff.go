package config

import (
	"reflect"
	"strings"

	logx "notebell/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections and
// (2) safe structured attrs for logging (never includes secrets like the
// ntfy auth value or the telegram token).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 20)

	if strings.TrimSpace(oldCfg.Vault.Path) != strings.TrimSpace(newCfg.Vault.Path) {
		changed = append(changed, "vault")
		attrs = append(attrs, logx.String("vault.path", strings.TrimSpace(newCfg.Vault.Path)))
	}

	if oldCfg.Scan != newCfg.Scan {
		changed = append(changed, "scan")
		attrs = append(attrs,
			logx.String("scan.interval", strings.TrimSpace(newCfg.Scan.Interval)),
			logx.String("scan.debounce", strings.TrimSpace(newCfg.Scan.Debounce)),
		)
	}

	// Ntfy (never log auth)
	if strings.TrimSpace(oldCfg.Ntfy.ServerURL) != strings.TrimSpace(newCfg.Ntfy.ServerURL) ||
		strings.TrimSpace(oldCfg.Ntfy.Topic) != strings.TrimSpace(newCfg.Ntfy.Topic) ||
		oldCfg.Ntfy.Title != newCfg.Ntfy.Title ||
		oldCfg.Ntfy.Tags != newCfg.Ntfy.Tags ||
		oldCfg.Ntfy.Icon != newCfg.Ntfy.Icon ||
		(strings.TrimSpace(oldCfg.Ntfy.Auth) != "") != (strings.TrimSpace(newCfg.Ntfy.Auth) != "") {
		changed = append(changed, "ntfy")
		attrs = append(attrs,
			logx.String("ntfy.server_url", strings.TrimSpace(newCfg.Ntfy.ServerURL)),
			logx.String("ntfy.topic", strings.TrimSpace(newCfg.Ntfy.Topic)),
			logx.Bool("ntfy.auth_set", strings.TrimSpace(newCfg.Ntfy.Auth) != ""),
		)
	}

	// Telegram (never log token)
	oldTg := normalizeTelegram(oldCfg.Telegram)
	newTg := normalizeTelegram(newCfg.Telegram)
	if oldTg.Enabled != newTg.Enabled || oldTg.ChatID != newTg.ChatID ||
		(strings.TrimSpace(oldTg.Token) != "") != (strings.TrimSpace(newTg.Token) != "") {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.enabled", newTg.Enabled),
			logx.Bool("telegram.token_set", strings.TrimSpace(newTg.Token) != ""),
		)
	}

	if !reflect.DeepEqual(oldCfg.Sender, newCfg.Sender) {
		changed = append(changed, "sender")
		attrs = append(attrs,
			logx.Int("sender.hostname_rules", len(newCfg.Sender.Hostnames)),
			logx.Int("sender.address_rules", len(newCfg.Sender.Addresses)),
		)
	}

	if oldCfg.Tasks != newCfg.Tasks {
		changed = append(changed, "tasks")
		attrs = append(attrs, logx.String("tasks.dismiss_statuses", newCfg.DismissStatuses()))
	}

	if oldCfg.Notify != newCfg.Notify {
		changed = append(changed, "notify")
		attrs = append(attrs,
			logx.Int("notify.rate_per_sec", newCfg.Notify.RatePerSec),
			logx.String("notify.send_timeout", strings.TrimSpace(newCfg.Notify.SendTimeout)),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	oldSt := normalizeStorage(oldCfg.Storage)
	newSt := normalizeStorage(newCfg.Storage)
	if oldSt != newSt {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.driver", strings.TrimSpace(newSt.Driver)))
	}

	return changed, attrs
}

func normalizeTelegram(t *TelegramConfig) TelegramConfig {
	if t == nil {
		return TelegramConfig{}
	}
	return *t
}

func normalizeStorage(s *StorageConfig) StorageConfig {
	if s == nil {
		return StorageConfig{}
	}
	return *s
}
