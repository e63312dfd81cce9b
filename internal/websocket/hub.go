package websocket

import (
	"github.com/goccy/go-json"
	"github.com/isdelr/recipe-api-be/internal/models"
	"github.com/rs/zerolog/log"
)

// userMessage is a payload addressed to every client of one user.
type userMessage struct {
	userID  string
	message []byte
}

// clientMessage is a payload for one specific client.
type clientMessage struct {
	client  *Client
	message []byte
}

// Hub maintains the set of active clients and fans events out to them.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Messages addressed to a single user's clients.
	publish chan userMessage

	// Replies addressed to a single client.
	direct chan clientMessage

	// A map of user IDs to the set of clients they have open.
	subscriptions map[string]map[*Client]bool

	done chan struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		publish:       make(chan userMessage, 64),
		direct:        make(chan clientMessage, 16),
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		done:          make(chan struct{}),
	}
}

// Run starts the Hub's message processing loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.Register:
			h.clients[client] = true
			h.addSubscription(client)
			log.Info().Str("user_id", client.UserID).Int("total_clients", len(h.clients)).Msg("Client connected")
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Info().Str("user_id", client.UserID).Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case msg := <-h.direct:
			if h.clients[msg.client] {
				h.deliver(msg.client, msg.message)
			}
		case msg := <-h.publish:
			for client := range h.subscriptions[msg.userID] {
				h.deliver(client, msg.message)
			}
		}
	}
}

// Stop ends Run and closes every client's send channel.
func (h *Hub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// Publish queues event for delivery to userID's open connections. It never
// blocks request handling: when the queue is full the event is dropped.
func (h *Hub) Publish(userID string, event models.Event) {
	data, err := json.Marshal(NewEventMessage(event))
	if err != nil {
		log.Error().Err(err).Str("type", event.Type).Msg("Failed to encode websocket event")
		return
	}

	select {
	case h.publish <- userMessage{userID: userID, message: data}:
	case <-h.done:
	default:
		log.Warn().Str("user_id", userID).Str("type", event.Type).Msg("Websocket queue full, dropping event")
	}
}

// Add registers client unless the hub has stopped.
func (h *Hub) Add(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Remove unregisters client. It is a no-op once the hub has stopped.
func (h *Hub) Remove(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// Reply sends msg to a single client, if it is still registered.
func (h *Hub) Reply(client *Client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("action", msg.Action).Msg("Failed to encode websocket reply")
		return
	}
	select {
	case h.direct <- clientMessage{client: client, message: data}:
	case <-h.done:
	}
}

func (h *Hub) deliver(client *Client, message []byte) {
	select {
	case client.Send <- message:
	default:
		// Slow consumer; the write pump sees the closed channel and hangs up.
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	h.removeSubscription(client)
	close(client.Send)
}

func (h *Hub) addSubscription(client *Client) {
	if h.subscriptions[client.UserID] == nil {
		h.subscriptions[client.UserID] = make(map[*Client]bool)
	}
	h.subscriptions[client.UserID][client] = true
}

func (h *Hub) removeSubscription(client *Client) {
	if subs, ok := h.subscriptions[client.UserID]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.subscriptions, client.UserID)
		}
	}
}
