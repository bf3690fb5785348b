package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Vault    VaultConfig     `json:"vault"`
	Scan     ScanConfig      `json:"scan,omitempty"`
	Ntfy     NtfyConfig      `json:"ntfy"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	Sender   SenderConfig    `json:"sender,omitempty"`
	Tasks    TasksConfig     `json:"tasks,omitempty"`
	Notify   NotifyConfig    `json:"notify,omitempty"`
	Logging  LoggingConfig   `json:"logging,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
}

// VaultConfig points at the watched note directory.
type VaultConfig struct {
	Path string `json:"path"`
}

// ScanConfig tunes reconciliation timing.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - interval: "15m" (periodic full-vault rescan)
//   - debounce: "2s"  (quiet period after the last edit in a burst)
type ScanConfig struct {
	Interval string `json:"interval,omitempty"`
	Debounce string `json:"debounce,omitempty"`
}

// NtfyConfig describes the primary push channel.
type NtfyConfig struct {
	ServerURL string `json:"server_url"`
	Topic     string `json:"topic"`
	Title     string `json:"title,omitempty"`
	Tags      string `json:"tags,omitempty"`
	Icon      string `json:"icon,omitempty"`
	// Auth is the full Authorization header value, e.g. "Bearer tk_...".
	Auth string `json:"auth,omitempty"`
}

// TelegramConfig enables the optional secondary channel.
type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	ChatID  int64  `json:"chat_id"`
}

// SenderConfig is the authorization allow-list. Both lists empty means
// every instance is authorized to send.
type SenderConfig struct {
	Hostnames []string `json:"hostnames,omitempty"`
	// Addresses entries are exact IPv4s, CIDRs or dotted prefixes.
	Addresses []string `json:"addresses,omitempty"`
}

// TasksConfig controls task-list handling.
type TasksConfig struct {
	// DismissStatuses lists checkbox status characters that suppress a
	// line's reminders (case-insensitive). Default: "x".
	DismissStatuses string `json:"dismiss_statuses,omitempty"`
}

// NotifyConfig tunes outbound dispatch.
type NotifyConfig struct {
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
	SendTimeout string `json:"send_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level,omitempty"`
	Console bool          `json:"console,omitempty"`
	File    LogFileConfig `json:"file,omitempty"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig enables delivery-history persistence.
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// DismissStatuses returns the effective dismiss-set.
func (c *Config) DismissStatuses() string {
	if strings.TrimSpace(c.Tasks.DismissStatuses) == "" {
		return "x"
	}
	return c.Tasks.DismissStatuses
}

// ScanInterval returns the effective periodic rescan cadence.
func (c *Config) ScanInterval() (time.Duration, error) {
	return ParseDurationOrDefault("scan.interval", c.Scan.Interval, 15*time.Minute)
}

// ScanDebounce returns the effective edit debounce window.
func (c *Config) ScanDebounce() (time.Duration, error) {
	return ParseDurationOrDefault("scan.debounce", c.Scan.Debounce, 2*time.Second)
}

// Validate rejects configs that must not be committed. Called both at
// startup and before publishing a hot reload.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Vault.Path) == "" {
		return fmt.Errorf("vault.path is required")
	}

	ntfySet := strings.TrimSpace(c.Ntfy.ServerURL) != "" || strings.TrimSpace(c.Ntfy.Topic) != ""
	if ntfySet {
		if strings.TrimSpace(c.Ntfy.ServerURL) == "" {
			return fmt.Errorf("ntfy.server_url is required when ntfy is configured")
		}
		if strings.TrimSpace(c.Ntfy.Topic) == "" {
			return fmt.Errorf("ntfy.topic is required when ntfy is configured")
		}
	}
	telegramOn := c.Telegram != nil && c.Telegram.Enabled
	if !ntfySet && !telegramOn {
		return fmt.Errorf("at least one notification channel (ntfy, telegram) must be configured")
	}
	if telegramOn {
		if strings.TrimSpace(c.Telegram.Token) == "" {
			return fmt.Errorf("telegram.token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if _, err := c.ScanInterval(); err != nil {
		return err
	}
	if _, err := c.ScanDebounce(); err != nil {
		return err
	}
	if c.Notify.RatePerSec < 0 {
		return fmt.Errorf("notify.rate_per_sec must be >= 0")
	}
	if _, err := ParseDurationField("notify.send_timeout", c.Notify.SendTimeout); err != nil {
		return err
	}

	if c.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
		case "", "none", "file", "sqlite", "sqlite3":
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}
