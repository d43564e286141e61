// Package webhook maps inbound Saleor sync-webhook events onto provider API
// calls and back into the fixed Saleor response shapes. Events are
// transient: received, processed and discarded.
package webhook

import (
	"encoding/json"
)

// EventType identifies an inbound webhook event kind.
type EventType string

const (
	EventPaymentGatewayInitialize EventType = "payment-gateway-initialize-session"
	EventTransactionInitialize    EventType = "transaction-initialize-session"
	EventTransactionProcess       EventType = "transaction-process-session"
	EventRefundRequested          EventType = "transaction-refund-requested"
	EventCancelRequested          EventType = "transaction-cancelation-requested"
	EventOrderFulfilled           EventType = "order-fulfilled"
)

// Flow is the requested transaction flow type.
type Flow string

const (
	FlowAuthorization Flow = "AUTHORIZATION"
	FlowCharge        Flow = "CHARGE"
)

// Action carries the requested amount, currency and flow. Amounts are in
// major units; conversion to the provider's minor units happens at the call
// boundary.
type Action struct {
	Amount     float64 `json:"amount" validate:"required"`
	Currency   string  `json:"currency" validate:"required,len=3"`
	ActionType Flow    `json:"actionType,omitempty"`
}

// TransactionRef identifies the Saleor transaction record and, via
// pspReference, the provider's order. Events is the transaction's history as
// recorded by Saleor.
type TransactionRef struct {
	ID           string             `json:"id" validate:"required"`
	PSPReference string             `json:"pspReference,omitempty"`
	Events       []TransactionEvent `json:"events,omitempty"`
}

type TransactionEvent struct {
	Type         string  `json:"type"`
	PSPReference string  `json:"pspReference,omitempty"`
	Amount       float64 `json:"amount,omitempty"`
}

// TransactionEventChargeSuccess is the event type Saleor records after a
// successful charge; refunds require one to exist.
const TransactionEventChargeSuccess = "CHARGE_SUCCESS"

type Channel struct {
	ID           string `json:"id" validate:"required"`
	Slug         string `json:"slug,omitempty"`
	CurrencyCode string `json:"currencyCode,omitempty"`
}

// SourceObject is the Checkout-or-Order snapshot the event was raised for,
// tagged by __typename.
type SourceObject struct {
	Typename  string       `json:"__typename" validate:"required,oneof=Checkout Order"`
	ID        string       `json:"id" validate:"required"`
	Channel   Channel      `json:"channel" validate:"required"`
	UserEmail string       `json:"userEmail,omitempty"`
	Lines     []SourceLine `json:"lines,omitempty"`
}

// SourceLine is one checkout/order line. Amounts are gross, in major units.
type SourceLine struct {
	ID             string  `json:"id"`
	ProductName    string  `json:"productName"`
	Quantity       int64   `json:"quantity"`
	TotalAmount    float64 `json:"totalAmount"`
	TotalTaxAmount float64 `json:"totalTaxAmount"`
}

type PaymentGatewayInitializePayload struct {
	SourceObject SourceObject    `json:"sourceObject" validate:"required"`
	Amount       float64         `json:"amount,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
}

type TransactionInitializePayload struct {
	Action       Action          `json:"action" validate:"required"`
	Transaction  TransactionRef  `json:"transaction" validate:"required"`
	SourceObject SourceObject    `json:"sourceObject" validate:"required"`
	Data         json.RawMessage `json:"data,omitempty"`
}

type TransactionProcessPayload struct {
	Action       Action          `json:"action" validate:"required"`
	Transaction  TransactionRef  `json:"transaction" validate:"required"`
	SourceObject SourceObject    `json:"sourceObject" validate:"required"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// processData is the event-specific data of a transaction-process event: the
// authorization token handed back by the provider's out-of-band callback.
type processData struct {
	AuthorizationToken string `json:"authorizationToken"`
}

type RefundRequestedPayload struct {
	Action       Action         `json:"action" validate:"required"`
	Transaction  TransactionRef `json:"transaction" validate:"required"`
	SourceObject SourceObject   `json:"sourceObject" validate:"required"`
}

type CancelRequestedPayload struct {
	Action       Action         `json:"action" validate:"required"`
	Transaction  TransactionRef `json:"transaction" validate:"required"`
	SourceObject SourceObject   `json:"sourceObject" validate:"required"`
}

type OrderFulfilledPayload struct {
	Order struct {
		ID      string  `json:"id" validate:"required"`
		Channel Channel `json:"channel" validate:"required"`
	} `json:"order" validate:"required"`
}
