package ipc

import (
	"time"

	"github.com/Lemon9247/agentfox/internal/command"
)

// pendingEntry tracks one in-flight command awaiting a correlated response.
// Exactly one of result or err ever receives a value.
type pendingEntry struct {
	result chan command.Response
	err    chan error
	timer  *time.Timer
}

func newPendingEntry() *pendingEntry {
	return &pendingEntry{
		result: make(chan command.Response, 1),
		err:    make(chan error, 1),
	}
}
