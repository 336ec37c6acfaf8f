// Package bus carries inbound messages from the session to the webhook
// dispatcher and fans out lifecycle events to observers.
package bus

import (
	"context"
	"sync"
	"time"
)

// BusEvent is an observed event for live streaming (websocket clients).
type BusEvent struct {
	Type    string            `json:"type"` // "inbound", "state", or "qr_code"
	Inbound *CanonicalMessage `json:"inbound,omitempty"`
	State   *StateEvent       `json:"state,omitempty"`
	QRCode  *QRCodeEvent      `json:"qr_code,omitempty"`
	Time    time.Time         `json:"time"`
}

type MessageBus struct {
	inbound   chan CanonicalMessage
	observers []chan BusEvent
	obsMu     sync.RWMutex
	closeOnce sync.Once
}

func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:   make(chan CanonicalMessage, 100),
		observers: make([]chan BusEvent, 0),
	}
}

// Subscribe returns a channel that receives copies of all bus events.
func (mb *MessageBus) Subscribe() chan BusEvent {
	ch := make(chan BusEvent, 50)
	mb.obsMu.Lock()
	mb.observers = append(mb.observers, ch)
	mb.obsMu.Unlock()
	return ch
}

// Unsubscribe removes an observer channel.
func (mb *MessageBus) Unsubscribe(ch chan BusEvent) {
	mb.obsMu.Lock()
	defer mb.obsMu.Unlock()
	for i, obs := range mb.observers {
		if obs == ch {
			mb.observers = append(mb.observers[:i], mb.observers[i+1:]...)
			close(ch)
			return
		}
	}
}

func (mb *MessageBus) notifyObservers(event BusEvent) {
	mb.obsMu.RLock()
	defer mb.obsMu.RUnlock()
	for _, obs := range mb.observers {
		select {
		case obs <- event:
		default:
			// Non-blocking: skip slow observers
		}
	}
}

// PublishInbound queues a canonical message for dispatch and notifies
// observers. Queueing preserves arrival order.
func (mb *MessageBus) PublishInbound(msg CanonicalMessage) {
	mb.inbound <- msg
	mb.notifyObservers(BusEvent{
		Type:    "inbound",
		Inbound: &msg,
		Time:    time.Now(),
	})
}

// ConsumeInbound blocks until a message is available or ctx is done.
func (mb *MessageBus) ConsumeInbound(ctx context.Context) (CanonicalMessage, bool) {
	select {
	case msg, ok := <-mb.inbound:
		return msg, ok
	case <-ctx.Done():
		return CanonicalMessage{}, false
	}
}

func (mb *MessageBus) PublishState(event StateEvent) {
	mb.notifyObservers(BusEvent{
		Type:  "state",
		State: &event,
		Time:  time.Now(),
	})
}

func (mb *MessageBus) PublishQRCode(event QRCodeEvent) {
	mb.notifyObservers(BusEvent{
		Type:   "qr_code",
		QRCode: &event,
		Time:   time.Now(),
	})
}

func (mb *MessageBus) Close() {
	mb.closeOnce.Do(func() {
		close(mb.inbound)
	})
}
