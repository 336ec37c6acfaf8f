package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/caam1406/wahook/pkg/session"
)

type stubSession struct {
	state    session.State
	sendID   string
	sendErr  error
	lastJID  string
	lastBody string
}

func (s *stubSession) Snapshot() session.Status {
	return session.Status{State: s.state}
}

func (s *stubSession) SendText(ctx context.Context, jid, body string) (string, error) {
	s.lastJID = jid
	s.lastBody = body
	if s.sendErr != nil {
		return "", s.sendErr
	}
	return s.sendID, nil
}

func TestSendRejectsWhenNotConnected(t *testing.T) {
	for _, state := range []session.State{
		session.StateDisconnected,
		session.StateConnecting,
		session.StateQRReady,
		session.StatePairing,
		session.StateError,
		session.StateLoggedOut,
	} {
		g := NewGateway(&stubSession{state: state})
		_, err := g.Send(context.Background(), SendRequest{Destination: "15550001111", Body: "hi"})
		if !errors.Is(err, ErrSessionNotReady) {
			t.Errorf("state %s: expected ErrSessionNotReady, got %v", state, err)
		}
	}
}

func TestSendValidatesFields(t *testing.T) {
	g := NewGateway(&stubSession{state: session.StateConnected, sendID: "MSG1"})

	tests := []struct {
		name string
		req  SendRequest
	}{
		{"missing destination", SendRequest{Body: "hi"}},
		{"blank destination", SendRequest{Destination: "   ", Body: "hi"}},
		{"missing body", SendRequest{Destination: "15550001111"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := g.Send(context.Background(), tt.req); !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestSendRejectsUnsupportedKind(t *testing.T) {
	g := NewGateway(&stubSession{state: session.StateConnected, sendID: "MSG1"})

	_, err := g.Send(context.Background(), SendRequest{Destination: "15550001111", Body: "hi", Kind: "image"})
	if !errors.Is(err, ErrUnsupportedKind) {
		t.Fatalf("expected ErrUnsupportedKind, got %v", err)
	}
}

func TestSendResolvesBareNumber(t *testing.T) {
	stub := &stubSession{state: session.StateConnected, sendID: "MSG1"}
	g := NewGateway(stub)

	res, err := g.Send(context.Background(), SendRequest{Destination: "15550001111", Body: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.lastJID != "15550001111@s.whatsapp.net" {
		t.Fatalf("bare number not resolved, got %q", stub.lastJID)
	}
	if res.MessageID != "MSG1" || res.Destination != "15550001111@s.whatsapp.net" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestSendKeepsFullAddress(t *testing.T) {
	stub := &stubSession{state: session.StateConnected, sendID: "MSG1"}
	g := NewGateway(stub)

	for _, dest := range []string{"15550001111@s.whatsapp.net", "120363041234567890@g.us"} {
		if _, err := g.Send(context.Background(), SendRequest{Destination: dest, Body: "hi", Kind: "text"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stub.lastJID != dest {
			t.Fatalf("address rewritten: sent to %q, want %q", stub.lastJID, dest)
		}
	}
}

func TestSendWrapsTransportFailure(t *testing.T) {
	boom := errors.New("socket closed")
	g := NewGateway(&stubSession{state: session.StateConnected, sendErr: boom})

	_, err := g.Send(context.Background(), SendRequest{Destination: "15550001111", Body: "hi"})
	var sendErr *SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("expected SendError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatal("wrapped error lost the cause")
	}
}

func TestSendMapsRacedDisconnect(t *testing.T) {
	// The session can drop between the state check and the send call.
	g := NewGateway(&stubSession{state: session.StateConnected, sendErr: session.ErrNotConnected})

	_, err := g.Send(context.Background(), SendRequest{Destination: "15550001111", Body: "hi"})
	if !errors.Is(err, ErrSessionNotReady) {
		t.Fatalf("expected ErrSessionNotReady, got %v", err)
	}
}
