// Package monitor captures OpenID protocol events and streams them to
// WebSocket clients, keeping a bounded history so a client connecting
// mid-flow still sees how the exchange got where it is.
package monitor

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one observed protocol step.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Event types emitted by the provider core.
const (
	EventAssociationNegotiated = "association_negotiated"
	EventCheckIDReceived       = "checkid_received"
	EventConfirmationRequired  = "confirmation_required"
	EventAssertionSigned       = "assertion_signed"
	EventAssertionChecked      = "assertion_checked"
	EventLogout                = "logout"
)

// Engine fans protocol events out to connected WebSocket clients and
// retains the most recent ones for replay.
type Engine struct {
	mu      sync.RWMutex
	history []Event
	limit   int
	clients map[*Client]bool
}

// NewEngine creates an engine retaining up to limit historical events.
func NewEngine(limit int) *Engine {
	if limit <= 0 {
		limit = 256
	}
	return &Engine{
		limit:   limit,
		clients: make(map[*Client]bool),
	}
}

// Emit records an event and broadcasts it. Implements the provider's
// event sink.
func (e *Engine) Emit(event string, fields map[string]any) {
	ev := Event{
		ID:        uuid.New().String(),
		Type:      event,
		Timestamp: time.Now(),
		Data:      fields,
	}

	e.mu.Lock()
	e.history = append(e.history, ev)
	if len(e.history) > e.limit {
		e.history = e.history[len(e.history)-e.limit:]
	}
	e.mu.Unlock()

	e.broadcast(ev)
}

// History returns a copy of the retained events, oldest first.
func (e *Engine) History() []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Event, len(e.history))
	copy(out, e.history)
	return out
}

func (e *Engine) registerClient(c *Client) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clients[c] = true
}

func (e *Engine) unregisterClient(c *Client) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.clients[c]; ok {
		delete(e.clients, c)
		close(c.send)
	}
}
