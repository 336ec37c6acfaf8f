// Package gateway validates caller-initiated send requests and forwards them
// to the transport session.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mau.fi/whatsmeow/types"

	"github.com/caam1406/wahook/pkg/logger"
	"github.com/caam1406/wahook/pkg/session"
)

var (
	// ErrSessionNotReady means the session is not in the connected state.
	ErrSessionNotReady = errors.New("session not connected")
	// ErrInvalidRequest means destination or body is missing.
	ErrInvalidRequest = errors.New("destination and body are required")
	// ErrUnsupportedKind means the requested message kind is not supported.
	ErrUnsupportedKind = errors.New("unsupported message kind")
)

// SendError wraps a transport-level send failure. The gateway never retries;
// the caller decides.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed: %v", e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// SendRequest is a caller-supplied outbound message.
type SendRequest struct {
	Destination string `json:"destination"`
	Body        string `json:"body"`
	Kind        string `json:"kind,omitempty"` // defaults to "text"
}

// SendResult reports a successful send.
type SendResult struct {
	MessageID   string `json:"message_id"`
	Destination string `json:"destination"`
}

// SessionSender is the controller surface the gateway needs.
type SessionSender interface {
	Snapshot() session.Status
	SendText(ctx context.Context, jid, body string) (string, error)
}

type Gateway struct {
	session SessionSender
}

func NewGateway(sender SessionSender) *Gateway {
	return &Gateway{session: sender}
}

// Send validates the request, resolves the destination, and forwards it to
// the transport. Validation order: session state, required fields, kind.
func (g *Gateway) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	if !g.session.Snapshot().State.CanSend() {
		return SendResult{}, ErrSessionNotReady
	}

	if strings.TrimSpace(req.Destination) == "" || req.Body == "" {
		return SendResult{}, ErrInvalidRequest
	}

	if req.Kind != "" && req.Kind != "text" {
		return SendResult{}, fmt.Errorf("%w: %q", ErrUnsupportedKind, req.Kind)
	}

	jid := ResolveDestination(req.Destination)

	messageID, err := g.session.SendText(ctx, jid, req.Body)
	if err != nil {
		if errors.Is(err, session.ErrNotConnected) {
			return SendResult{}, ErrSessionNotReady
		}
		return SendResult{}, &SendError{Err: err}
	}

	logger.DebugCF("gateway", "Message sent", map[string]interface{}{
		"to":         jid,
		"message_id": messageID,
	})

	return SendResult{MessageID: messageID, Destination: jid}, nil
}

// ResolveDestination turns a bare phone-number-like identifier into a full
// individual-chat address. Destinations that already carry a domain
// separator are used verbatim.
func ResolveDestination(destination string) string {
	if strings.Contains(destination, "@") {
		return destination
	}
	return destination + "@" + types.DefaultUserServer
}
