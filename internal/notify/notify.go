package notify

import (
	"context"
	"errors"
)

var ErrNoSenders = errors.New("no notification channels configured")

// Notification is one outbound reminder message.
type Notification struct {
	Body     string
	Priority int // 1..5, 5 = max
	Document string
}

// Sender is one delivery channel. Send must not retry: a failure is
// returned once and surfaced by the dispatcher.
type Sender interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}
