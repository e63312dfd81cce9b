package websocket

import "github.com/isdelr/recipe-api-be/internal/models"

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}

// NewEventMessage wraps an activity event for the live feed.
func NewEventMessage(event models.Event) Message {
	return Message{Action: "event", Payload: event}
}

// NewErrorMessage reports a problem with a client request.
func NewErrorMessage(msg string) Message {
	return Message{Action: "error", Payload: map[string]string{"message": msg}}
}

// NewPongMessage answers a client "ping" action.
func NewPongMessage() Message {
	return Message{Action: "pong"}
}
