package session

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/caam1406/wahook/pkg/config"
	"github.com/caam1406/wahook/pkg/logger"
)

// waTransport adapts a whatsmeow client to the Transport interface. It
// translates the provider's event soup into the controller's typed stream and
// drives the pairing flow for unregistered sessions.
type waTransport struct {
	client *whatsmeow.Client
	cfg    config.WhatsAppConfig

	events chan Event
	mu     sync.Mutex
	closed bool
}

// NewWhatsAppTransport builds a transport for one connection attempt. The
// device is reloaded from the credential store every time, so the provider
// re-derives whether pairing is needed.
func NewWhatsAppTransport(ctx context.Context, cfg config.WhatsAppConfig, creds *CredentialStore) (Transport, error) {
	device, err := creds.Device(ctx)
	if err != nil {
		return nil, err
	}

	client := whatsmeow.NewClient(device, waLog.Stdout("WhatsApp", "WARN", true))
	// The controller's supervisor loop owns reconnection.
	client.EnableAutoReconnect = false

	t := &waTransport{
		client: client,
		cfg:    cfg,
		events: make(chan Event, 64),
	}
	client.AddEventHandler(t.handleEvent)
	return t, nil
}

func (t *waTransport) Connect(ctx context.Context) error {
	if t.client.Store.ID != nil {
		logger.InfoCF("whatsapp", "Resuming existing session", map[string]interface{}{
			"device_id": t.client.Store.ID.String(),
		})
		return t.client.Connect()
	}

	if t.cfg.PairingMode == "code" {
		if t.cfg.PairPhone == "" {
			return fmt.Errorf("pairing_mode \"code\" requires pair_phone")
		}
		if err := t.client.Connect(); err != nil {
			return err
		}
		code, err := t.client.PairPhone(ctx, t.cfg.PairPhone, true, whatsmeow.PairClientChrome, "Chrome (Linux)")
		if err != nil {
			return fmt.Errorf("failed to request pairing code: %w", err)
		}
		t.post(Event{Kind: EventPairCode, Code: code})
		return nil
	}

	// QR flow: the channel must be claimed before connecting.
	qrChan, err := t.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to get QR channel: %w", err)
	}
	if err := t.client.Connect(); err != nil {
		return err
	}
	go t.pumpQR(qrChan)
	return nil
}

// pumpQR forwards QR channel items as typed events until the provider stops
// issuing codes.
func (t *waTransport) pumpQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case "code":
			if t.cfg.PrintQR {
				fmt.Println("\n--- Scan this QR code with WhatsApp (Linked Devices) ---")
				qrterminal.GenerateHalfBlock(item.Code, qrterminal.L, os.Stdout)
			}
			t.post(Event{Kind: EventQRCode, Code: item.Code})

		case "success", "login":
			// The Connected lifecycle event carries the transition.
			return

		case "timeout":
			t.post(Event{Kind: EventPairTimeout, Detail: "pairing attempts exhausted"})
			return

		default:
			t.post(Event{Kind: EventClosed, Reason: CloseTransient, Detail: "qr: " + item.Event})
			return
		}
	}
}

// handleEvent is the central provider event dispatcher.
func (t *waTransport) handleEvent(raw interface{}) {
	switch evt := raw.(type) {
	case *events.Message:
		if msg, ok := Normalize(evt); ok {
			t.post(Event{Kind: EventMessage, Message: &msg})
		}

	case *events.Connected:
		t.post(Event{Kind: EventConnected})

	case *events.Disconnected:
		t.post(Event{Kind: EventClosed, Reason: CloseTransient, Detail: "connection lost"})

	case *events.LoggedOut:
		t.post(Event{
			Kind:   EventClosed,
			Reason: CloseLoggedOut,
			Detail: fmt.Sprintf("logged out by server (%v)", evt.Reason),
		})

	case *events.StreamReplaced:
		t.post(Event{Kind: EventClosed, Reason: CloseReplaced, Detail: "session taken over by another client"})

	case *events.StreamError:
		t.post(Event{Kind: EventClosed, Reason: classifyStreamCode(evt.Code), Detail: "stream error " + evt.Code})

	case *events.ConnectFailure:
		reason := CloseUnknown
		if evt.Reason == events.ConnectFailureLoggedOut {
			reason = CloseLoggedOut
		}
		t.post(Event{Kind: EventClosed, Reason: reason, Detail: fmt.Sprintf("connect failure: %s", evt.Message)})

	case *events.TemporaryBan:
		t.post(Event{Kind: EventClosed, Reason: CloseUnknown, Detail: fmt.Sprintf("temporary ban: %v", evt.Code)})

	case *events.ClientOutdated:
		t.post(Event{Kind: EventClosed, Reason: CloseUnknown, Detail: "client version outdated"})

	case *events.HistorySync:
		// Only real-time messages are bridged.
	}
}

// classifyStreamCode maps provider stream error codes onto close reasons:
// 401 is a server-side logout, 440 a session conflict, 500 a corrupt
// session, 515 a post-pairing restart request.
func classifyStreamCode(code string) CloseReason {
	switch code {
	case "401":
		return CloseLoggedOut
	case "440":
		return CloseReplaced
	case "500":
		return CloseBadSession
	case "515":
		return CloseRestartRequired
	default:
		return CloseUnknown
	}
}

func (t *waTransport) post(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	select {
	case t.events <- ev:
	default:
		logger.WarnC("whatsapp", "Transport event buffer full, dropping event")
	}
}

func (t *waTransport) Disconnect() {
	t.client.Disconnect()
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.events)
	}
}

func (t *waTransport) SendText(ctx context.Context, jid string, body string) (string, error) {
	target, err := types.ParseJID(jid)
	if err != nil {
		return "", fmt.Errorf("invalid destination %q: %w", jid, err)
	}

	resp, err := t.client.SendMessage(ctx, target, &waE2E.Message{
		Conversation: proto.String(body),
	})
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (t *waTransport) Events() <-chan Event {
	return t.events
}

func (t *waTransport) DeviceID() string {
	if t.client.Store.ID == nil {
		return ""
	}
	return t.client.Store.ID.String()
}
