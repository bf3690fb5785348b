// Package notify is the outbound side of the engine: the wire-level
// senders (ntfy HTTP, optional Telegram), the dispatching service that
// rate-limits and records sends, and the sender-authorization gate that
// keeps multiple instances sharing one vault from all notifying.
package notify
