// Package session owns the transport session lifecycle: the connection state
// machine, reconnection policy, pairing material, and credential persistence.
package session

import "time"

// State is the connection state of the single transport session.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateQRReady      State = "qr_ready"
	StatePairing      State = "pairing"
	StateConnected    State = "connected"
	StateError        State = "error"
	StateLoggedOut    State = "logged_out"
)

func (s State) String() string {
	return string(s)
}

// IsTerminal reports whether the controller stops auto-reconnecting in this
// state. A fresh connect command is required to leave it.
func (s State) IsTerminal() bool {
	return s == StateLoggedOut
}

// CanSend reports whether outbound sends are accepted.
func (s State) CanSend() bool {
	return s == StateConnected
}

// PairingMaterial is the QR payload or numeric pairing code tied to a single
// connection attempt. At most one is current at a time.
type PairingMaterial struct {
	QR        string    `json:"qr,omitempty"`
	Code      string    `json:"code,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (p PairingMaterial) IsZero() bool {
	return p.QR == "" && p.Code == ""
}

// Status is a read-only snapshot of the controller state for the HTTP
// boundary and the send gateway.
type Status struct {
	State      State           `json:"state"`
	HasPairing bool            `json:"has_pairing"`
	Pairing    PairingMaterial `json:"-"`
	Device     string          `json:"device,omitempty"`
}
