package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"

	"github.com/saleorbridge/payment-bridge/internal/appconfig"
	"github.com/saleorbridge/payment-bridge/internal/logger"
	"github.com/saleorbridge/payment-bridge/internal/provider"
)

// ProviderAPI is the slice of the provider client the handlers need;
// provider.Client satisfies it.
type ProviderAPI interface {
	CreateSession(ctx context.Context, req *provider.SessionRequest) (*provider.SessionResponse, error)
	CreateOrder(ctx context.Context, authorizationToken string, req *provider.OrderRequest) (*provider.OrderResponse, error)
	Refund(ctx context.Context, orderID string, req *provider.RefundRequest) (*provider.RefundResponse, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// ProviderFactory builds a provider client from a resolved credential set.
type ProviderFactory func(entry *appconfig.ConfigEntry) ProviderAPI

// Emitter receives processing events for the dashboard feed.
type Emitter interface {
	EmitWebhookProcessed(event, result string, amount float64, currency, pspReference string)
	EmitWebhookFailed(event, message string)
}

var validate = validator.New()

// Handler processes one tenant's webhook deliveries. It is cheap to build
// and carries no state between requests.
type Handler struct {
	configurator *appconfig.Configurator
	newProvider  ProviderFactory
	emitter      Emitter
	logger       *logger.Logger
}

func NewHandler(configurator *appconfig.Configurator, factory ProviderFactory, emitter Emitter) *Handler {
	return &Handler{
		configurator: configurator,
		newProvider:  factory,
		emitter:      emitter,
		logger:       logger.New("webhook"),
	}
}

// Handle runs the uniform shell around every event: dispatch, and on any
// error log with secrets redacted, report to the error tracker and convert
// to the matching typed failure response. Callers return the response with
// HTTP 200 regardless of outcome.
func (h *Handler) Handle(ctx context.Context, event EventType, body []byte) *Response {
	resp, err := h.dispatch(ctx, event, body)
	if err != nil {
		// Best-effort failure context; the payload may not even be JSON.
		var envelope struct {
			Action Action `json:"action"`
		}
		json.Unmarshal(body, &envelope)

		msg := err.Error()
		h.logger.Error("webhook processing failed", "event", string(event), "error", msg)
		sentry.CaptureException(err)
		if h.emitter != nil {
			h.emitter.EmitWebhookFailed(string(event), msg)
		}

		if event == EventPaymentGatewayInitialize {
			return &Response{Data: map[string]interface{}{
				"errors": []map[string]string{{"message": msg}},
			}}
		}
		return &Response{
			Result:  failureResult(event, envelope.Action.ActionType),
			Amount:  envelope.Action.Amount,
			Message: msg,
		}
	}

	if h.emitter != nil {
		var envelope struct {
			Action Action `json:"action"`
		}
		json.Unmarshal(body, &envelope)
		h.emitter.EmitWebhookProcessed(string(event), string(resp.Result), resp.Amount, envelope.Action.Currency, resp.PSPReference)
	}
	return resp
}

func (h *Handler) dispatch(ctx context.Context, event EventType, body []byte) (*Response, error) {
	switch event {
	case EventPaymentGatewayInitialize:
		return h.handlePaymentGatewayInitialize(ctx, body)
	case EventTransactionInitialize:
		return h.handleTransactionInitialize(ctx, body)
	case EventTransactionProcess:
		return h.handleTransactionProcess(ctx, body)
	case EventRefundRequested:
		return h.handleRefundRequested(ctx, body)
	case EventCancelRequested:
		return h.handleCancelRequested(ctx, body)
	case EventOrderFulfilled:
		return h.handleOrderFulfilled(ctx, body)
	default:
		return nil, fmt.Errorf("unsupported event type %q", event)
	}
}

// handlePaymentGatewayInitialize publishes the storefront-visible gateway
// config. An unconfigured channel answers an empty data object: the provider
// is simply disabled there.
func (h *Handler) handlePaymentGatewayInitialize(ctx context.Context, body []byte) (*Response, error) {
	var payload PaymentGatewayInitializePayload
	if err := parsePayload(body, &payload); err != nil {
		return nil, err
	}

	entry, err := h.resolveEntry(ctx, payload.SourceObject.Channel.ID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return &Response{Data: map[string]interface{}{}}, nil
	}

	return &Response{Data: map[string]interface{}{
		"merchantId": entry.MerchantID,
		"apiUrl":     entry.APIURL,
	}}, nil
}

func (h *Handler) handleTransactionInitialize(ctx context.Context, body []byte) (*Response, error) {
	var payload TransactionInitializePayload
	if err := parsePayload(body, &payload); err != nil {
		return nil, err
	}

	entry, err := h.requireEntry(ctx, payload.SourceObject.Channel.ID)
	if err != nil {
		return nil, err
	}

	session, err := h.newProvider(entry).CreateSession(ctx, buildSessionRequest(payload.Action, payload.Transaction, payload.SourceObject))
	if err != nil {
		return nil, redactErr(err, entry)
	}

	return &Response{
		Result:       actionRequiredResult(payload.Action.ActionType),
		Amount:       payload.Action.Amount,
		PSPReference: session.SessionID,
		Message:      "payment session created",
		ExternalURL:  session.RedirectURL,
		Data: map[string]interface{}{
			"clientToken": session.ClientToken,
			"redirectUrl": session.RedirectURL,
		},
	}, nil
}

func (h *Handler) handleTransactionProcess(ctx context.Context, body []byte) (*Response, error) {
	var payload TransactionProcessPayload
	if err := parsePayload(body, &payload); err != nil {
		return nil, err
	}

	var data processData
	if len(payload.Data) > 0 {
		if err := json.Unmarshal(payload.Data, &data); err != nil {
			return nil, fmt.Errorf("malformed event data: %w", err)
		}
	}
	if data.AuthorizationToken == "" {
		return nil, errors.New("missing authorizationToken in event data")
	}

	entry, err := h.requireEntry(ctx, payload.SourceObject.Channel.ID)
	if err != nil {
		return nil, err
	}

	order, err := h.newProvider(entry).CreateOrder(ctx, data.AuthorizationToken, &provider.OrderRequest{
		MerchantReference: payload.Transaction.ID,
		PurchaseCurrency:  payload.Action.Currency,
		OrderAmount:       ToMinorUnits(payload.Action.Amount, payload.Action.Currency),
		AutoCapture:       payload.Action.ActionType != FlowAuthorization,
	})
	if err != nil {
		return nil, redactErr(err, entry)
	}
	if order.FraudStatus == "REJECTED" {
		return nil, fmt.Errorf("provider rejected order %s", order.OrderID)
	}

	return &Response{
		Result:       processResult(payload.Action.ActionType, order.FraudStatus),
		Amount:       payload.Action.Amount,
		PSPReference: order.OrderID,
		Message:      "order created",
	}, nil
}

func (h *Handler) handleRefundRequested(ctx context.Context, body []byte) (*Response, error) {
	var payload RefundRequestedPayload
	if err := parsePayload(body, &payload); err != nil {
		return nil, err
	}

	// A refund only makes sense after a successful charge; refuse before
	// touching the provider.
	if !hasTransactionEvent(payload.Transaction.Events, TransactionEventChargeSuccess) {
		return nil, fmt.Errorf("transaction %s has no successful charge to refund", payload.Transaction.ID)
	}
	if payload.Transaction.PSPReference == "" {
		return nil, fmt.Errorf("transaction %s has no provider order reference", payload.Transaction.ID)
	}

	entry, err := h.requireEntry(ctx, payload.SourceObject.Channel.ID)
	if err != nil {
		return nil, err
	}

	refund, err := h.newProvider(entry).Refund(ctx, payload.Transaction.PSPReference, &provider.RefundRequest{
		RefundedAmount: ToMinorUnits(payload.Action.Amount, payload.Action.Currency),
	})
	if err != nil {
		return nil, redactErr(err, entry)
	}

	return &Response{
		Result:       ResultRefundSuccess,
		Amount:       payload.Action.Amount,
		PSPReference: refund.RefundID,
		Message:      "refund accepted",
	}, nil
}

func (h *Handler) handleCancelRequested(ctx context.Context, body []byte) (*Response, error) {
	var payload CancelRequestedPayload
	if err := parsePayload(body, &payload); err != nil {
		return nil, err
	}
	if payload.Transaction.PSPReference == "" {
		return nil, fmt.Errorf("transaction %s has no provider order reference", payload.Transaction.ID)
	}

	entry, err := h.requireEntry(ctx, payload.SourceObject.Channel.ID)
	if err != nil {
		return nil, err
	}

	if err := h.newProvider(entry).CancelOrder(ctx, payload.Transaction.PSPReference); err != nil {
		return nil, redactErr(err, entry)
	}

	return &Response{
		Result:       ResultCancelSuccess,
		Amount:       payload.Action.Amount,
		PSPReference: payload.Transaction.PSPReference,
		Message:      "order canceled",
	}, nil
}

// handleOrderFulfilled acknowledges the async fulfillment notification. The
// provider records capture on order creation, so there is nothing to report;
// an unconfigured channel is equally fine.
func (h *Handler) handleOrderFulfilled(ctx context.Context, body []byte) (*Response, error) {
	var payload OrderFulfilledPayload
	if err := parsePayload(body, &payload); err != nil {
		return nil, err
	}

	if _, err := h.resolveEntry(ctx, payload.Order.Channel.ID); err != nil {
		return nil, err
	}

	return &Response{Message: "accepted"}, nil
}

// resolveEntry loads the tenant config and resolves the channel's credential
// set; nil means the channel is not configured for this provider.
func (h *Handler) resolveEntry(ctx context.Context, channelID string) (*appconfig.ConfigEntry, error) {
	cfg, err := h.configurator.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	return appconfig.ConfigurationForChannel(cfg, channelID), nil
}

// requireEntry is resolveEntry for the flows where a missing configuration
// is a typed failure, not a no-op.
func (h *Handler) requireEntry(ctx context.Context, channelID string) (*appconfig.ConfigEntry, error) {
	entry, err := h.resolveEntry(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, &appconfig.ConfigError{
			Kind:    appconfig.ErrorNotFound,
			Message: fmt.Sprintf("channel %s is not configured for this provider", channelID),
		}
	}
	return entry, nil
}

func buildSessionRequest(action Action, transaction TransactionRef, source SourceObject) *provider.SessionRequest {
	currency := action.Currency

	lines := make([]provider.OrderLine, 0, len(source.Lines))
	var totalTax int64
	for _, line := range source.Lines {
		gross := ToMinorUnits(line.TotalAmount, currency)
		tax := ToMinorUnits(line.TotalTaxAmount, currency)
		quantity := line.Quantity
		if quantity <= 0 {
			quantity = 1
		}

		lines = append(lines, provider.OrderLine{
			Name:           line.ProductName,
			Quantity:       quantity,
			UnitPrice:      gross / quantity,
			TotalAmount:    gross,
			TotalTaxAmount: tax,
			TaxRate:        CalculateTaxRate(tax, gross-tax),
		})
		totalTax += tax
	}

	intent := "buy"
	if action.ActionType == FlowAuthorization {
		intent = "authorize"
	}

	return &provider.SessionRequest{
		MerchantReference: transaction.ID,
		PurchaseCurrency:  currency,
		OrderAmount:       ToMinorUnits(action.Amount, currency),
		OrderTaxAmount:    totalTax,
		OrderLines:        lines,
		Intent:            intent,
	}
}

func parsePayload(body []byte, dst interface{}) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("malformed webhook payload: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("invalid webhook payload: %w", err)
	}
	return nil
}

func hasTransactionEvent(events []TransactionEvent, eventType string) bool {
	for _, e := range events {
		if e.Type == eventType {
			return true
		}
	}
	return false
}

// redactErr strips the tenant's provider credentials from an error before it
// reaches logs, the error tracker or the response body.
func redactErr(err error, entry *appconfig.ConfigEntry) error {
	return errors.New(logger.Redact(err.Error(), entry.Password, entry.Username))
}
