package domain

import (
	"time"

	"github.com/google/uuid"
)

// PresenceEvent is a journaled server notice: a join, a departure, a kick or a shutdown.
type PresenceEvent struct {
	ID      uuid.UUID
	At      time.Time
	Message ChatMessage
}
