package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	logx "notebell/pkg/logx"
)

// fieldJSON renders structured attrs the way the logger would, so tests
// can assert on what actually ends up in the log stream.
func fieldJSON(fields ...logx.Field) string {
	var buf bytes.Buffer
	lg := zerolog.New(&buf)
	ev := lg.Info()
	for _, f := range fields {
		f(ev)
	}
	ev.Send()
	return buf.String()
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const sampleYAML = `
vault:
  path: /home/u/notes
scan:
  interval: 10m
  debounce: 500ms
ntfy:
  server_url: https://ntfy.example.com
  topic: reminders
  auth: Bearer tk_secret
sender:
  hostnames: [study-pc]
  addresses: ["10.0.0.0/24", "192.168."]
tasks:
  dismiss_statuses: "x, -"
storage:
  driver: sqlite
  path: /var/lib/notebell/history.db
`

func TestParseYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", sampleYAML)
	cfg, err := NewConfigManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Vault.Path != "/home/u/notes" {
		t.Fatalf("vault.path = %q", cfg.Vault.Path)
	}
	if cfg.Ntfy.Topic != "reminders" || cfg.Ntfy.Auth != "Bearer tk_secret" {
		t.Fatalf("ntfy = %+v", cfg.Ntfy)
	}
	if len(cfg.Sender.Addresses) != 2 || cfg.Sender.Addresses[0] != "10.0.0.0/24" {
		t.Fatalf("sender.addresses = %v", cfg.Sender.Addresses)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}

	if iv, err := cfg.ScanInterval(); err != nil || iv != 10*time.Minute {
		t.Fatalf("ScanInterval = %v, %v", iv, err)
	}
	if db, err := cfg.ScanDebounce(); err != nil || db != 500*time.Millisecond {
		t.Fatalf("ScanDebounce = %v, %v", db, err)
	}
	if cfg.DismissStatuses() != "x, -" {
		t.Fatalf("DismissStatuses = %q", cfg.DismissStatuses())
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{
  "vault": {"path": "/notes"},
  "ntfy": {"server_url": "https://ntfy.sh", "topic": "t"}
}`)
	cfg, err := NewConfigManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Vault.Path != "/notes" || cfg.Ntfy.Topic != "t" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
vault:
  path: /notes
ntfy:
  server_url: https://ntfy.sh
  topic: t
vualt_typo:
  path: /oops
`)
	if _, err := NewConfigManager(path).Parse(); err == nil {
		t.Fatal("expected unknown-field error")
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	var cfg Config
	if cfg.DismissStatuses() != "x" {
		t.Fatalf("default dismiss set = %q", cfg.DismissStatuses())
	}
	if iv, err := cfg.ScanInterval(); err != nil || iv != 15*time.Minute {
		t.Fatalf("default interval = %v, %v", iv, err)
	}
	if db, err := cfg.ScanDebounce(); err != nil || db != 2*time.Second {
		t.Fatalf("default debounce = %v, %v", db, err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	base := func() *Config {
		return &Config{
			Vault: VaultConfig{Path: "/notes"},
			Ntfy:  NtfyConfig{ServerURL: "https://ntfy.sh", Topic: "t"},
		}
	}
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing vault path", mutate: func(c *Config) { c.Vault.Path = " " }, wantErr: "vault.path"},
		{
			name: "no channel at all",
			mutate: func(c *Config) {
				c.Ntfy = NtfyConfig{}
			},
			wantErr: "notification channel",
		},
		{
			name: "ntfy half-configured",
			mutate: func(c *Config) {
				c.Ntfy.ServerURL = ""
			},
			wantErr: "ntfy.server_url",
		},
		{
			name: "telegram without token",
			mutate: func(c *Config) {
				c.Telegram = &TelegramConfig{Enabled: true, ChatID: 7}
			},
			wantErr: "telegram.token",
		},
		{
			name: "telegram without chat id",
			mutate: func(c *Config) {
				c.Telegram = &TelegramConfig{Enabled: true, Token: "tk"}
			},
			wantErr: "telegram.chat_id",
		},
		{
			name: "telegram only is enough",
			mutate: func(c *Config) {
				c.Ntfy = NtfyConfig{}
				c.Telegram = &TelegramConfig{Enabled: true, Token: "tk", ChatID: 7}
			},
		},
		{
			name:    "bad scan interval",
			mutate:  func(c *Config) { c.Scan.Interval = "soon" },
			wantErr: "scan.interval",
		},
		{
			name:    "negative rate",
			mutate:  func(c *Config) { c.Notify.RatePerSec = -1 },
			wantErr: "rate_per_sec",
		},
		{
			name:    "unknown storage driver",
			mutate:  func(c *Config) { c.Storage = &StorageConfig{Driver: "redis"} },
			wantErr: "storage.driver",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSummarizeConfigChangeHidesSecrets(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{
		Vault: VaultConfig{Path: "/notes"},
		Ntfy:  NtfyConfig{ServerURL: "https://ntfy.sh", Topic: "t"},
	}
	newCfg := &Config{
		Vault: VaultConfig{Path: "/notes"},
		Ntfy:  NtfyConfig{ServerURL: "https://ntfy.sh", Topic: "t", Auth: "Bearer tk_secret"},
	}

	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	if len(changed) != 1 || changed[0] != "ntfy" {
		t.Fatalf("changed = %v", changed)
	}
	if out := fieldJSON(attrs...); strings.Contains(out, "tk_secret") {
		t.Fatalf("secret leaked into attrs: %s", out)
	}
}

func TestSummarizeConfigChangeNoChange(t *testing.T) {
	t.Parallel()
	cfg := &Config{Vault: VaultConfig{Path: "/notes"}}
	changed, _ := SummarizeConfigChange(cfg, cfg)
	if len(changed) != 0 {
		t.Fatalf("changed = %v", changed)
	}
}
