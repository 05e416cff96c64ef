package ws

import (
	"time"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/audit"
)

// Message is the frame pushed to subscribers for every audit event.
type Message struct {
	Type      audit.EventType `json:"msg_type"`
	Data      audit.Event     `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// allTypes subscribes a client to every event type.
const allTypes audit.EventType = ""
