package storage

// Package storage provides a minimal persistence layer for delivery
// history: one record per attempted notification send.
//
// It deliberately does not persist timers. After a restart the engine
// rebuilds all reminder state from document contents.
