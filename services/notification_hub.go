// services/notification_hub.go
package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"training-arena-system/models"

	"github.com/gofiber/fiber/v2"
)

// Notifier is the per-participant push mechanism the queue and arena
// talk to. Delivery failures are logged, never fatal to session state.
type Notifier interface {
	Publish(participantID string, event models.Event)
}

// NotificationHub fans events out to SSE subscribers. A participant
// can hold several streams (multiple tabs); each gets its own buffered
// channel. A full buffer drops the event for that stream only.
type NotificationHub struct {
	mu   sync.RWMutex
	subs map[string]map[chan models.Event]bool
}

func NewNotificationHub() *NotificationHub {
	return &NotificationHub{
		subs: make(map[string]map[chan models.Event]bool),
	}
}

// Subscribe registers a stream for the participant and returns the
// event channel plus a cancel func that must be called on disconnect.
func (h *NotificationHub) Subscribe(participantID string) (chan models.Event, func()) {
	ch := make(chan models.Event, 16)

	h.mu.Lock()
	if h.subs[participantID] == nil {
		h.subs[participantID] = make(map[chan models.Event]bool)
	}
	h.subs[participantID][ch] = true
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[participantID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, participantID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every stream the participant has open.
// Non-blocking: a slow consumer loses events, the arena never waits.
func (h *NotificationHub) Publish(participantID string, event models.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set, ok := h.subs[participantID]
	if !ok || len(set) == 0 {
		return // nobody listening — fine, state is authoritative server-side
	}
	for ch := range set {
		select {
		case ch <- event:
		default:
			log.Printf("⚠️  [NOTIFY] Dropped %s event for participant %s (slow consumer)", event.Type, participantID)
		}
	}
}

// StreamEvents is the SSE endpoint for a participant's live events
// (session_start, action_result, session_end, queue_update).
func (h *NotificationHub) StreamEvents(c *fiber.Ctx) error {
	participantID := c.Locals("user_id").(string)

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	events, cancel := h.Subscribe(participantID)
	ctx := c.Context()

	// Use fasthttp stream writer (THIS replaces Flush)
	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		keepalive := time.NewTicker(15 * time.Second)
		defer keepalive.Stop()

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case ev := <-events:
				payload, err := json.Marshal(ev)
				if err != nil {
					log.Printf("SSE marshal error for participant %s: %v", participantID, err)
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-keepalive.C:
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}

			case <-ctx.Done():
				// Client closed connection
				return
			}
		}
	})

	return nil
}
