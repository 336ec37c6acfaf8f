package session

import "time"

// CloseReason classifies why the transport session closed. Classification
// happens in the transport adapter; the policy below decides what the
// controller does about it.
type CloseReason string

const (
	// CloseLoggedOut is an unrecoverable logout (401-equivalent). Credentials
	// are purged and no reconnect is attempted.
	CloseLoggedOut CloseReason = "logged_out"
	// CloseBadSession means the stored session is corrupt. Credentials are
	// purged and a fresh pairing flow starts after a short delay.
	CloseBadSession CloseReason = "bad_session"
	// CloseTransient covers ordinary network closes and losses.
	CloseTransient CloseReason = "transient"
	// CloseRestartRequired is the transport asking for a reconnect.
	CloseRestartRequired CloseReason = "restart_required"
	// CloseReplaced means another client took over the session.
	CloseReplaced CloseReason = "replaced"
	// CloseUnknown is any reason not covered above.
	CloseUnknown CloseReason = "unknown"
)

// reconnectDecision is the policy outcome for a session close.
type reconnectDecision struct {
	purgeCredentials bool
	reconnect        bool
	delay            time.Duration
}

const (
	shortReconnectDelay   = 3 * time.Second
	defaultReconnectDelay = 5 * time.Second
	errorRetryDelay       = 5 * time.Second
	connectTimeout        = 60 * time.Second
	pairingWindow         = 60 * time.Second
)

// reconnectPolicy maps a close reason to the controller's response, in the
// fixed priority order: logout, bad session, transient, restart, replaced,
// everything else.
func reconnectPolicy(reason CloseReason) reconnectDecision {
	switch reason {
	case CloseLoggedOut:
		return reconnectDecision{purgeCredentials: true}
	case CloseBadSession:
		return reconnectDecision{purgeCredentials: true, reconnect: true, delay: shortReconnectDelay}
	case CloseTransient:
		return reconnectDecision{reconnect: true, delay: shortReconnectDelay}
	case CloseRestartRequired:
		return reconnectDecision{reconnect: true, delay: shortReconnectDelay}
	case CloseReplaced:
		return reconnectDecision{}
	default:
		return reconnectDecision{reconnect: true, delay: defaultReconnectDelay}
	}
}
