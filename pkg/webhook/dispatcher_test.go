package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/caam1406/wahook/pkg/bus"
	"github.com/caam1406/wahook/pkg/config"
)

func runDispatcher(t *testing.T, url string, timeoutSeconds int) *bus.MessageBus {
	t.Helper()

	msgBus := bus.NewMessageBus()
	d := NewDispatcher(config.WebhookConfig{URL: url, TimeoutSeconds: timeoutSeconds}, msgBus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return msgBus
}

func TestDispatcherDeliversMessage(t *testing.T) {
	received := make(chan bus.CanonicalMessage, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		var msg bus.CanonicalMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		received <- msg
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	msgBus := runDispatcher(t, srv.URL, 5)
	msgBus.PublishInbound(bus.CanonicalMessage{
		ID:             "MSG1",
		ConversationID: "15550001111@s.whatsapp.net",
		SenderName:     "Alice",
		Body:           "hello",
		Kind:           bus.KindText,
	})

	select {
	case msg := <-received:
		if msg.ID != "MSG1" || msg.Body != "hello" || msg.Kind != bus.KindText {
			t.Fatalf("unexpected payload %+v", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("webhook never received the message")
	}
}

func TestDispatcherDropsFailureAndKeepsGoing(t *testing.T) {
	var mu sync.Mutex
	var ids []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg bus.CanonicalMessage
		_ = json.NewDecoder(r.Body).Decode(&msg)
		mu.Lock()
		ids = append(ids, msg.ID)
		mu.Unlock()
		if msg.ID == "BAD" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	msgBus := runDispatcher(t, srv.URL, 5)
	msgBus.PublishInbound(bus.CanonicalMessage{ID: "BAD", Body: "fails"})
	msgBus.PublishInbound(bus.CanonicalMessage{ID: "GOOD", Body: "passes"})

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(ids)
		mu.Unlock()
		if n == 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("a rejected delivery blocked the next message")
}

func TestDispatcherSlowEndpointDoesNotBlockStream(t *testing.T) {
	release := make(chan struct{})
	arrived := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg bus.CanonicalMessage
		_ = json.NewDecoder(r.Body).Decode(&msg)
		arrived <- msg.ID
		if msg.ID == "SLOW" {
			<-release
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	msgBus := runDispatcher(t, srv.URL, 30)
	msgBus.PublishInbound(bus.CanonicalMessage{ID: "SLOW"})
	msgBus.PublishInbound(bus.CanonicalMessage{ID: "FAST"})

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case id := <-arrived:
			seen[id] = true
		case <-time.After(5 * time.Second):
			t.Fatalf("second delivery stuck behind a slow one, saw %v", seen)
		}
	}
	if !seen["SLOW"] || !seen["FAST"] {
		t.Fatalf("expected both deliveries to start, saw %v", seen)
	}
}

func TestDispatcherWithoutURLDrainsBus(t *testing.T) {
	msgBus := runDispatcher(t, "", 5)

	// With no endpoint configured the dispatcher must still consume the
	// stream so publishers never back up.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			msgBus.PublishInbound(bus.CanonicalMessage{ID: "MSG", Body: "dropped"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publishing stalled with no webhook configured")
	}
}
