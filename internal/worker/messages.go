package worker

// MessageKind identifies a message on the worker <-> agent bus.
type MessageKind string

const (
	// MsgSyncRequired is posted by the worker when it determines a sync
	// should occur; the agent responds with a ForceDrain.
	MsgSyncRequired MessageKind = "SYNC_REQUIRED"

	// MsgSkipWaiting asks the worker to restart its loop immediately,
	// picking up new settings.
	MsgSkipWaiting MessageKind = "SKIP_WAITING"

	// MsgCacheURLs carries an explicit URL list to pre-warm the
	// static cache.
	MsgCacheURLs MessageKind = "CACHE_URLS"
)

// Message is one typed message exchanged between the worker and the agent.
type Message struct {
	Kind MessageKind `json:"kind"`
	URLs []string    `json:"urls,omitempty"`
}

// Bus connects the background worker and the foreground agent. The two
// realms share no state beyond the persistent store; everything else crosses
// this bus asynchronously.
type Bus struct {
	toAgent  chan Message
	toWorker chan Message
}

// NewBus creates a bus with small buffers on both directions.
func NewBus() *Bus {
	return &Bus{
		toAgent:  make(chan Message, 8),
		toWorker: make(chan Message, 8),
	}
}

// PostToAgent delivers a message to the agent without blocking. Returns
// false if the agent's buffer is full and the message was dropped.
func (b *Bus) PostToAgent(msg Message) bool {
	select {
	case b.toAgent <- msg:
		return true
	default:
		return false
	}
}

// PostToWorker delivers a message to the worker without blocking.
func (b *Bus) PostToWorker(msg Message) bool {
	select {
	case b.toWorker <- msg:
		return true
	default:
		return false
	}
}

// AgentMessages is the agent's receive side.
func (b *Bus) AgentMessages() <-chan Message {
	return b.toAgent
}

// WorkerMessages is the worker's receive side.
func (b *Bus) WorkerMessages() <-chan Message {
	return b.toWorker
}
