package events

import (
	"context"
	"time"

	"github.com/saleorbridge/payment-bridge/internal/httpclient"
)

// Publisher sends events from satellite services to the payment-app's
// WebSocket hub.
type Publisher struct {
	client *httpclient.Client
}

// NewPublisher creates a new event publisher targeting the payment-app base
// URL.
func NewPublisher(paymentAppURL string) *Publisher {
	return &Publisher{
		client: httpclient.NewClient(paymentAppURL, 5*time.Second),
	}
}

// Event represents an event to publish
type Event struct {
	Type  string      `json:"type"`
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Publish sends an event to the payment-app hub.
func (p *Publisher) Publish(ctx context.Context, eventType, eventName string, data interface{}) error {
	return p.client.Post(ctx, "/internal/events", Event{
		Type:  eventType,
		Event: eventName,
		Data:  data,
	}, nil)
}

// PublishAsync sends an event asynchronously (fire and forget)
func (p *Publisher) PublishAsync(eventType, eventName string, data interface{}) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Ignore errors for async publishing
		p.Publish(ctx, eventType, eventName, data)
	}()
}

// Event type constants
const (
	TypeProvider = "provider"
	TypeHealth   = "health"
)

// Provider event constants
const (
	ProviderSessionCreated = "session_created"
	ProviderOrderCreated   = "order_created"
	ProviderRefundCreated  = "refund_created"
	ProviderOrderCanceled  = "order_canceled"
)

// ProviderEventData represents provider-side event payload
type ProviderEventData struct {
	SessionID         string `json:"session_id,omitempty"`
	OrderID           string `json:"order_id,omitempty"`
	RefundID          string `json:"refund_id,omitempty"`
	MerchantReference string `json:"merchant_reference,omitempty"`
	Amount            int64  `json:"amount,omitempty"`
	Currency          string `json:"currency,omitempty"`
	Status            string `json:"status,omitempty"`
}

// PublishSessionCreated publishes a session created event
func (p *Publisher) PublishSessionCreated(data ProviderEventData) {
	p.PublishAsync(TypeProvider, ProviderSessionCreated, data)
}

// PublishOrderCreated publishes an order created event
func (p *Publisher) PublishOrderCreated(data ProviderEventData) {
	p.PublishAsync(TypeProvider, ProviderOrderCreated, data)
}

// PublishRefundCreated publishes a refund created event
func (p *Publisher) PublishRefundCreated(data ProviderEventData) {
	p.PublishAsync(TypeProvider, ProviderRefundCreated, data)
}

// PublishOrderCanceled publishes an order canceled event
func (p *Publisher) PublishOrderCanceled(data ProviderEventData) {
	p.PublishAsync(TypeProvider, ProviderOrderCanceled, data)
}
