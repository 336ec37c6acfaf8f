package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/caam1406/wahook/pkg/bus"
	"github.com/caam1406/wahook/pkg/logger"
)

// Command is an explicit operator command for the controller.
type Command int

const (
	// CommandRestart tears the session down and reconnects, keeping
	// credentials.
	CommandRestart Command = iota
	// CommandReset tears the session down, purges credentials, and
	// reconnects into a fresh pairing flow.
	CommandReset
)

const restartDelay = 2 * time.Second

// ErrNotConnected is returned by SendText when no open session exists.
var ErrNotConnected = errors.New("session not connected")

// Controller owns the single transport session: it is the only component
// that creates or destroys transports and the only writer of the session
// state. Everything it does runs on one supervisor goroutine, so no two
// connect attempts ever overlap.
type Controller struct {
	factory TransportFactory
	creds   CredentialPurger
	msgBus  *bus.MessageBus

	commands chan Command

	// pairingWindow is how long issued pairing material stays valid.
	pairingWindow time.Duration
	// connectDeadline bounds session setup up to the point where the
	// transport is established (connected, or pairing material issued).
	connectDeadline time.Duration

	mu        sync.RWMutex
	state     State
	pairing   PairingMaterial
	device    string
	transport Transport
}

func NewController(factory TransportFactory, creds CredentialPurger, msgBus *bus.MessageBus) *Controller {
	return &Controller{
		factory:  factory,
		creds:    creds,
		msgBus:   msgBus,
		commands: make(chan Command, 4),
		state:    StateDisconnected,

		pairingWindow:   pairingWindow,
		connectDeadline: connectTimeout,
	}
}

// Snapshot returns a read-only view of the current state and pairing
// material.
func (c *Controller) Snapshot() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{
		State:      c.state,
		HasPairing: !c.pairing.IsZero(),
		Pairing:    c.pairing,
		Device:     c.device,
	}
}

// Restart requests a session restart. Credentials are retained.
func (c *Controller) Restart() {
	select {
	case c.commands <- CommandRestart:
	default:
	}
}

// Reset requests a full reset: credentials are purged and a fresh pairing
// flow starts.
func (c *Controller) Reset() {
	select {
	case c.commands <- CommandReset:
	default:
	}
}

// SendText forwards an outbound text message to the open session. It runs
// concurrently with the supervisor loop and never blocks it.
func (c *Controller) SendText(ctx context.Context, jid, body string) (string, error) {
	c.mu.RLock()
	transport := c.transport
	ready := c.state.CanSend()
	c.mu.RUnlock()

	if !ready || transport == nil {
		return "", ErrNotConnected
	}
	return transport.SendText(ctx, jid, body)
}

// Run is the supervisor loop. It drives the initial connect, processes the
// transport's ordered event stream, applies the reconnection policy, and
// serves operator commands until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	reconnect := newStoppedTimer()
	pairingExpiry := newStoppedTimer()
	connectDeadline := newStoppedTimer()

	var events <-chan Event

	connect := func() {
		c.teardown(&events)
		stopTimer(pairingExpiry)
		c.setState(StateConnecting, "")
		c.clearPairing()

		transport, err := c.factory(ctx)
		if err == nil {
			if err = transport.Connect(ctx); err != nil {
				transport.Disconnect()
			}
		}
		if err != nil {
			logger.ErrorCF("session", "Connect attempt failed", map[string]interface{}{
				"error": err.Error(),
			})
			c.setState(StateError, err.Error())
			resetTimer(reconnect, errorRetryDelay)
			return
		}

		c.mu.Lock()
		c.transport = transport
		c.mu.Unlock()
		events = transport.Events()
		resetTimer(connectDeadline, c.connectDeadline)
	}

	scheduleClose := func(reason CloseReason, detail string) {
		stopTimer(connectDeadline)
		stopTimer(pairingExpiry)
		c.clearPairing()
		c.teardown(&events)

		decision := reconnectPolicy(reason)
		if decision.purgeCredentials {
			if err := c.creds.Purge(ctx); err != nil {
				logger.ErrorCF("session", "Failed to purge credentials", map[string]interface{}{
					"error": err.Error(),
				})
			} else {
				logger.InfoC("session", "Credentials purged")
			}
		}

		if reason == CloseLoggedOut {
			c.setState(StateLoggedOut, detail)
			logger.WarnC("session", "Logged out, waiting for explicit restart")
			return
		}

		c.setState(StateDisconnected, detail)
		if decision.reconnect {
			logger.InfoCF("session", "Reconnecting", map[string]interface{}{
				"reason": string(reason),
				"delay":  decision.delay.String(),
			})
			resetTimer(reconnect, decision.delay)
		} else {
			logger.WarnCF("session", "Not reconnecting", map[string]interface{}{
				"reason": string(reason),
			})
		}
	}

	// Initial connect attempt.
	connect()

	for {
		select {
		case <-ctx.Done():
			stopTimer(reconnect)
			stopTimer(pairingExpiry)
			stopTimer(connectDeadline)
			c.teardown(&events)
			c.clearPairing()
			c.setState(StateDisconnected, "shutdown")
			return

		case cmd := <-c.commands:
			stopTimer(reconnect)
			stopTimer(connectDeadline)
			stopTimer(pairingExpiry)
			c.clearPairing()
			c.teardown(&events)
			if cmd == CommandReset {
				if err := c.creds.Purge(ctx); err != nil {
					logger.ErrorCF("session", "Failed to purge credentials on reset", map[string]interface{}{
						"error": err.Error(),
					})
				}
			}
			c.setState(StateDisconnected, "operator command")
			resetTimer(reconnect, restartDelay)

		case <-reconnect.C:
			connect()

		case <-connectDeadline.C:
			// Setup never reached an established session. Treated as a setup
			// failure: error state and a fixed retry delay.
			stopTimer(pairingExpiry)
			c.clearPairing()
			c.teardown(&events)
			c.setState(StateError, "connect timed out")
			resetTimer(reconnect, errorRetryDelay)

		case <-pairingExpiry.C:
			// Window elapsed with no scan. Material is invalid; the provider
			// may still issue a fresh code on its own.
			c.clearPairing()
			c.setState(StateConnecting, "pairing window elapsed")
			c.msgBus.PublishQRCode(bus.QRCodeEvent{Event: "timeout"})

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			switch ev.Kind {
			case EventConnected:
				stopTimer(connectDeadline)
				stopTimer(pairingExpiry)
				c.clearPairing()
				c.mu.Lock()
				if c.transport != nil {
					c.device = c.transport.DeviceID()
				}
				c.mu.Unlock()
				c.setState(StateConnected, "")
				logger.InfoCF("session", "Session connected", map[string]interface{}{
					"device_id": c.Snapshot().Device,
				})
				c.msgBus.PublishQRCode(bus.QRCodeEvent{Event: "success"})

			case EventQRCode:
				// The socket is up once pairing material arrives; from here
				// the pairing window and the provider's own timeout govern.
				stopTimer(connectDeadline)
				c.setPairing(PairingMaterial{QR: ev.Code, ExpiresAt: time.Now().Add(c.pairingWindow)})
				c.setState(StateQRReady, "")
				resetTimer(pairingExpiry, c.pairingWindow)
				c.msgBus.PublishQRCode(bus.QRCodeEvent{Event: "code", Code: ev.Code})

			case EventPairCode:
				stopTimer(connectDeadline)
				c.setPairing(PairingMaterial{Code: ev.Code, ExpiresAt: time.Now().Add(c.pairingWindow)})
				c.setState(StatePairing, "")
				resetTimer(pairingExpiry, c.pairingWindow)
				c.msgBus.PublishQRCode(bus.QRCodeEvent{Event: "pair_code", Code: ev.Code})

			case EventPairTimeout:
				c.msgBus.PublishQRCode(bus.QRCodeEvent{Event: "timeout"})
				scheduleClose(CloseTransient, ev.Detail)

			case EventClosed:
				scheduleClose(ev.Reason, ev.Detail)

			case EventMessage:
				if ev.Message != nil {
					c.msgBus.PublishInbound(*ev.Message)
				}
			}
		}
	}
}

// teardown disconnects and releases the current transport, if any. The
// event channel reference is cleared so the loop stops selecting on it.
func (c *Controller) teardown(events *<-chan Event) {
	c.mu.Lock()
	transport := c.transport
	c.transport = nil
	c.mu.Unlock()

	if transport != nil {
		transport.Disconnect()
	}
	*events = nil
}

func (c *Controller) setState(next State, reason string) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	if next != StateConnected {
		c.device = ""
	}
	c.mu.Unlock()

	if prev != next {
		logger.InfoCF("session", "State changed", map[string]interface{}{
			"from":   prev.String(),
			"to":     next.String(),
			"reason": reason,
		})
		c.msgBus.PublishState(bus.StateEvent{State: next.String(), Previous: prev.String(), Reason: reason})
	}
}

func (c *Controller) setPairing(material PairingMaterial) {
	c.mu.Lock()
	c.pairing = material
	c.mu.Unlock()
}

func (c *Controller) clearPairing() {
	c.mu.Lock()
	c.pairing = PairingMaterial{}
	c.mu.Unlock()
}

func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	stopTimer(t)
	return t
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	stopTimer(t)
	t.Reset(d)
}
