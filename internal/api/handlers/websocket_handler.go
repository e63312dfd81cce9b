package handlers

import (
	"net/http"
	"slices"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	ws "github.com/isdelr/recipe-api-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler upgrades authenticated requests to a live activity feed.
type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler. Browsers may only
// connect from allowedOrigins; clients that send no Origin header are
// always accepted.
func NewWebSocketHandler(hub *ws.Hub, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// Serve handles the WebSocket connection request.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to upgrade websocket connection")
		return
	}

	client := ws.NewClient(h.hub, conn, userID)
	if !h.hub.Add(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go func() {
		client.ReadPump(h.handleIncomingWSMessage)
		// Unregistering closes Send, which ends the write pump.
		h.hub.Remove(client)
	}()
}

// handleIncomingWSMessage processes messages received from a websocket client.
func (h *WebSocketHandler) handleIncomingWSMessage(client *ws.Client, message []byte) {
	var msg ws.Message
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Warn().Err(err).Str("user_id", client.UserID).Msg("Error decoding websocket message")
		h.hub.Reply(client, ws.NewErrorMessage("Invalid message"))
		return
	}

	switch msg.Action {
	case "ping":
		h.hub.Reply(client, ws.NewPongMessage())
	default:
		log.Warn().Str("action", msg.Action).Msg("Unknown websocket action received")
		h.hub.Reply(client, ws.NewErrorMessage("Unknown action: "+msg.Action))
	}
}
