package handlers

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/lead-push/api"
	"github.com/linesmerrill/lead-push/models"
)

const writeWait = 10 * time.Second

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Adjust CORS as needed, e.g., check r.Header.Get("Origin")
	},
}

// TokenVerifier resolves a bearer token to the user it was issued for
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (api.Principal, error)
}

// ForegroundHub relays delivered push payloads to the open sessions of a
// user, next to the native push the devices get.
type ForegroundHub struct {
	mu      sync.Mutex
	clients map[string]map[string]*session
}

type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (s *session) writeJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

// NewForegroundHub returns a hub with no sessions
func NewForegroundHub() *ForegroundHub {
	return &ForegroundHub{clients: make(map[string]map[string]*session)}
}

// Publish writes env to every session of userID and returns how many got it.
// A session that fails the write is dropped.
func (h *ForegroundHub) Publish(userID string, env models.ForegroundEnvelope) int {
	h.mu.Lock()
	sessions := make(map[string]*session, len(h.clients[userID]))
	for id, s := range h.clients[userID] {
		sessions[id] = s
	}
	h.mu.Unlock()

	sent := 0
	for id, s := range sessions {
		if err := s.writeJSON(env); err != nil {
			zap.S().Warnw("failed to relay push to session", "userId", userID, "session", id, "error", err)
			h.unregister(userID, id)
			s.conn.Close()
			continue
		}
		sent++
	}
	return sent
}

// Sessions returns the number of open sessions of userID
func (h *ForegroundHub) Sessions(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[userID])
}

func (h *ForegroundHub) register(userID string, s *session) string {
	id := uuid.New().String()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[string]*session)
	}
	h.clients[userID][id] = s
	return id
}

func (h *ForegroundHub) unregister(userID, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients[userID], id)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// ServeWS upgrades an authenticated request into a relay session. Browsers
// cannot set headers on websocket requests so the token may come as ?token=.
func (h *ForegroundHub) ServeWS(verifier TokenVerifier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		principal, err := verifier.VerifyToken(r.Context(), token)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "unauthorized"}`))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			zap.S().Warnw("WebSocket upgrade error", "error", err)
			return
		}

		id := h.register(principal.UserID, &session{conn: conn})
		zap.S().Infow("session connected to /ws/push", "userId", principal.UserID, "session", id)

		// the stream is one way; reading only detects the close
		for {
			if _, _, err := conn.NextReader(); err != nil {
				break
			}
		}
		h.unregister(principal.UserID, id)
		conn.Close()
		zap.S().Infow("session disconnected from /ws/push", "userId", principal.UserID, "session", id)
	})
}
