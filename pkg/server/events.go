package server

// NotificationType identifies what a table event describes.
type NotificationType int

const (
	NotifyPlayerJoined NotificationType = iota
	NotifyPlayerLeft
	NotifyHandStarted
	NotifyActionApplied
	NotifyStreetDealt
	NotifyShowdownResult
	NotifyHandEnded
)

// String returns the notification name
func (n NotificationType) String() string {
	switch n {
	case NotifyPlayerJoined:
		return "PLAYER_JOINED"
	case NotifyPlayerLeft:
		return "PLAYER_LEFT"
	case NotifyHandStarted:
		return "HAND_STARTED"
	case NotifyActionApplied:
		return "ACTION_APPLIED"
	case NotifyStreetDealt:
		return "STREET_DEALT"
	case NotifyShowdownResult:
		return "SHOWDOWN_RESULT"
	case NotifyHandEnded:
		return "HAND_ENDED"
	default:
		return "UNKNOWN"
	}
}

// TableEvent is a table-scoped event with type and payload.
type TableEvent struct {
	Type    NotificationType
	TableID string
	Payload interface{}
}

// EventManager publishes table events to an optional channel without ever
// blocking the game path.
type EventManager struct {
	eventChannel chan<- TableEvent
}

// SetEventChannel sets the destination channel.
func (em *EventManager) SetEventChannel(ch chan<- TableEvent) {
	em.eventChannel = ch
}

// Publish sends an event if a channel is attached. Events are dropped when
// the channel is full; delivery is best-effort by design, the hand state is
// the source of truth.
func (em *EventManager) Publish(eventType NotificationType, tableID string, payload interface{}) {
	if em.eventChannel == nil {
		return
	}
	select {
	case em.eventChannel <- TableEvent{
		Type:    eventType,
		TableID: tableID,
		Payload: payload,
	}:
	default:
	}
}
