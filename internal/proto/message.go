package proto

import (
	"encoding/json"
	"time"
)

// Frame is the JSON envelope exchanged on the socket in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

const (
	// EventMessageSend carries an outgoing message to the server.
	EventMessageSend = "message_send"
	// EventMessageAck confirms a sent message, carrying the permanent id.
	EventMessageAck = "message_ack"
	// EventMessageReceive delivers a message from the other participant.
	EventMessageReceive = "message_receive"

	// Lifecycle events are synthesized locally by the connection manager.
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventConnectError = "connect_error"
)

// MessageSend is the outbound payload for a new message.
type MessageSend struct {
	ConversationID string `json:"conversationId"`
	To             string `json:"to"`
	Body           string `json:"body"`
	TempID         string `json:"tempId"`
	Type           string `json:"type"`
}

// MessageAck reconciles a locally originated message with its server id.
type MessageAck struct {
	TempID string `json:"tempId"`
	ID     string `json:"id"`
}

// MessageReceive is a delivered or historical message as the server records it.
type MessageReceive struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	Body           string    `json:"body"`
	Type           string    `json:"type"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ConnectError describes a transport-level connection failure.
type ConnectError struct {
	Message string `json:"message"`
}

// ==== REST bodies ====

// DemoAuthRequest is the body of POST /api/auth/demo.
type DemoAuthRequest struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

// User identifies an authenticated participant.
type User struct {
	ID    string `json:"id"`
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

// DemoAuthResponse is the body returned by POST /api/auth/demo.
type DemoAuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// HistoryResponse is the body of GET /api/conversations/{id}/messages.
type HistoryResponse struct {
	Messages []MessageReceive `json:"messages"`
}

// PresignRequest is the body of POST /api/media/presign.
type PresignRequest struct {
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
}

// PresignResponse pairs the write target with the durable reference.
type PresignResponse struct {
	UploadURL string `json:"uploadUrl"`
	FileURL   string `json:"fileUrl"`
}

// ErrorResponse is the error body returned by the REST API.
type ErrorResponse struct {
	Error string `json:"error"`
}
