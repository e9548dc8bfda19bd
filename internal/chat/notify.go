package chat

// Event types.
const (
	EventMessage              = "message"
	EventConversationCreated  = "conversation_created"
	EventConversationSwitched = "conversation_switched"
	EventMemoryRecorded       = "memory_recorded"
)

// Event announces a state change so open pages can refresh.
type Event struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Notifier receives state change events. Notify must not block.
type Notifier interface {
	Notify(Event)
}

// NopNotifier discards events.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(Event) {}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

// Notify implements Notifier.
func (f NotifierFunc) Notify(e Event) { f(e) }
