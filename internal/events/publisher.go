package events

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
)

// TransitionEvent is published on every application status change so UI
// observers can re-render. Force asks subscribers to refresh unconditionally
// even if they believe their view is current.
type TransitionEvent struct {
	ApplicationID  uuid.UUID `json:"application_id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Stage          int       `json:"stage"`
	Actor          string    `json:"actor"`
	Timestamp      time.Time `json:"timestamp"`
	Force          bool      `json:"force,omitempty"`
}

// Publisher announces transitions to interested observers. The engine does
// not depend on who is listening; implementations must never block the
// transition path.
type Publisher interface {
	PublishTransition(event TransitionEvent)
}

// broadcaster is the piece of the websocket hub the publisher needs.
type broadcaster interface {
	GetBroadcast() chan []byte
}

type hubPublisher struct {
	hub broadcaster
}

// NewHubPublisher returns a Publisher that pushes JSON-encoded transition
// events into the websocket hub's broadcast channel.
func NewHubPublisher(hub broadcaster) Publisher {
	return &hubPublisher{hub: hub}
}

func (p *hubPublisher) PublishTransition(event TransitionEvent) {
	payload, err := json.Marshal(map[string]interface{}{
		"event": "application_transition",
		"data":  event,
	})
	if err != nil {
		log.Printf("failed to encode transition event: %v", err)
		return
	}

	// Drop rather than block when no hub loop is draining the channel.
	select {
	case p.hub.GetBroadcast() <- payload:
	default:
		log.Println("transition event dropped: broadcast channel full")
	}
}

// NopPublisher discards all events. Used in tests and tooling that has no
// websocket hub.
type NopPublisher struct{}

func (NopPublisher) PublishTransition(TransitionEvent) {}
