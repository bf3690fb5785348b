package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl)
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Delivery records one attempted notification send.
// Keep it compact and schema-stable.
type Delivery struct {
	At       time.Time
	Channel  string
	Document string
	Body     string
	Priority int
	OK       bool
	Error    string
}
