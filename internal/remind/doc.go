// Package remind is the reminder scheduling engine.
//
// It owns three pieces:
//
//   - Registry: the live set of one-shot timers, indexed by a composite
//     identity (document, line, target epoch, stamp offset) and by
//     document.
//   - Scheduler: derives timers from document text (parse, dismiss,
//     prioritize, advance recurrences) and chains recurring reminders
//     when they fire.
//   - Controller: decides when the scheduler runs (startup, periodic,
//     debounced edits, authorization flips).
//
// All state is explicitly owned and clock access is injected, so every
// future-ness decision is deterministic under test.
package remind
