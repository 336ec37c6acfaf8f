package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/caam1406/wahook/pkg/gateway"
)

const version = "0.1.0"

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]interface{}{
		"status":  s.controller.Snapshot().State,
		"message": "wahook WhatsApp webhook bridge",
		"version": version,
		"endpoints": map[string]string{
			"health":  "/health",
			"status":  "/status",
			"qr":      "/qr",
			"send":    "/send",
			"restart": "/restart",
			"reset":   "/reset",
			"ws":      "/ws",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":     "ok",
		"connection": s.controller.Snapshot().State,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	snapshot := s.controller.Snapshot()
	writeJSON(w, map[string]interface{}{
		"status": snapshot.State,
		"has_qr": snapshot.HasPairing,
		"device": snapshot.Device,
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	snapshot := s.controller.Snapshot()
	if !snapshot.HasPairing {
		msg := "pairing material not available"
		if snapshot.State.CanSend() {
			msg = "already connected"
		}
		writeJSON(w, map[string]interface{}{
			"message": msg,
			"status":  snapshot.State,
		})
		return
	}

	pairing := snapshot.Pairing
	if pairing.Code != "" {
		writeJSON(w, map[string]interface{}{
			"pair_code":  pairing.Code,
			"status":     snapshot.State,
			"expires_at": pairing.ExpiresAt.UTC().Format(time.RFC3339),
		})
		return
	}

	if r.URL.Query().Get("format") == "svg" {
		svg, err := generateQRSVG(pairing.QR, 256)
		if err != nil {
			http.Error(w, `{"error":"failed to render QR"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Write([]byte(svg))
		return
	}

	writeJSON(w, map[string]interface{}{
		"qr":         pairing.QR,
		"status":     snapshot.State,
		"expires_at": pairing.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req gateway.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	result, err := s.sender.Send(r.Context(), req)
	if err != nil {
		writeSendError(w, err, s)
		return
	}

	writeJSON(w, result)
}

func writeSendError(w http.ResponseWriter, err error, s *Server) {
	switch {
	case errors.Is(err, gateway.ErrSessionNotReady):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":  "session not connected",
			"status": s.controller.Snapshot().State,
		})
	case errors.Is(err, gateway.ErrInvalidRequest), errors.Is(err, gateway.ErrUnsupportedKind):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "failed to send message",
			"details": err.Error(),
		})
	}
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	s.controller.Restart()
	writeJSON(w, map[string]string{"message": "restarting connection"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	s.controller.Reset()
	writeJSON(w, map[string]string{"message": "resetting session, credentials will be purged"})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Auth via query param for WebSocket
	if s.config.AuthEnabled && r.URL.Query().Get("token") != s.config.Token {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	s.hub.handleWebSocket(w, r)
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
