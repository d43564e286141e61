package websocket

import (
	"encoding/json"
	"time"
)

// Message types for WebSocket events
const (
	TypeWebhook       = "webhook"
	TypeConfiguration = "configuration"
	TypeProvider      = "provider"
	TypeHealth        = "health"
	TypeHeartbeat     = "heartbeat"
)

// Webhook events
const (
	EventWebhookProcessed = "webhook_processed"
	EventWebhookFailed    = "webhook_failed"
)

// Configuration events
const (
	EventEntryAdded     = "entry_added"
	EventEntryUpdated   = "entry_updated"
	EventEntryDeleted   = "entry_deleted"
	EventMappingUpdated = "mapping_updated"
)

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType, event string, data interface{}) *Message {
	return &Message{
		Type:      msgType,
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the message to JSON bytes
func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// WebhookData represents webhook processing event data
type WebhookData struct {
	EventType    string  `json:"event_type"`
	Result       string  `json:"result,omitempty"`
	Amount       float64 `json:"amount,omitempty"`
	Currency     string  `json:"currency,omitempty"`
	PSPReference string  `json:"psp_reference,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
	Tenant       string  `json:"tenant,omitempty"`
}

// ConfigurationData represents configuration change event data
type ConfigurationData struct {
	ConfigurationID   string `json:"configuration_id,omitempty"`
	ConfigurationName string `json:"configuration_name,omitempty"`
	ChannelID         string `json:"channel_id,omitempty"`
	Tenant            string `json:"tenant,omitempty"`
}

// HeartbeatData represents heartbeat data
type HeartbeatData struct {
	ServerTime  time.Time `json:"server_time"`
	ClientCount int       `json:"client_count"`
}
