package session

import (
	"context"

	"github.com/caam1406/wahook/pkg/bus"
)

// EventKind identifies a lifecycle or message event from the transport.
type EventKind int

const (
	// EventConnected means the session is open and authenticated.
	EventConnected EventKind = iota
	// EventClosed means the session closed; Reason classifies why.
	EventClosed
	// EventQRCode carries a fresh QR payload for pairing.
	EventQRCode
	// EventPairCode carries a numeric phone-pairing code.
	EventPairCode
	// EventPairTimeout means the provider exhausted its pairing attempts.
	EventPairTimeout
	// EventMessage carries one normalized inbound message.
	EventMessage
)

// Event is one item on the transport's ordered event stream.
type Event struct {
	Kind    EventKind
	Reason  CloseReason
	Detail  string
	Code    string
	Message *bus.CanonicalMessage
}

// Transport is the session transport provider as seen by the controller: an
// opaque, authenticated connection that emits an ordered event stream and
// accepts outbound sends. Exactly one transport exists at a time and the
// controller exclusively owns its creation and teardown.
type Transport interface {
	// Connect starts the session. Pairing, when needed, is driven internally
	// and surfaces as QR/pair-code events. Progress and failure after a
	// successful call arrive on Events.
	Connect(ctx context.Context) error

	// Disconnect tears the session down. Safe to call at any time; the event
	// channel is closed afterwards.
	Disconnect()

	// SendText delivers a text message and returns the transport-assigned
	// message ID.
	SendText(ctx context.Context, jid string, body string) (string, error)

	// Events is the ordered stream of lifecycle and message events.
	Events() <-chan Event

	// DeviceID identifies the authenticated device, empty when unpaired.
	DeviceID() string
}

// TransportFactory builds a fresh transport for one connection attempt. Each
// attempt re-runs the full connect procedure, credential reload included, so
// the provider re-derives whether pairing is needed.
type TransportFactory func(ctx context.Context) (Transport, error)

// CredentialPurger deletes the persisted credential bundle. Implemented by
// the credential store; split out so controller tests can fake it.
type CredentialPurger interface {
	Purge(ctx context.Context) error
}
