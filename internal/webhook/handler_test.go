package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saleorbridge/payment-bridge/internal/appconfig"
	"github.com/saleorbridge/payment-bridge/internal/cache"
	"github.com/saleorbridge/payment-bridge/internal/metadata"
	"github.com/saleorbridge/payment-bridge/internal/provider"
)

type fakeProvider struct {
	sessionCalls int
	orderCalls   int
	refundCalls  int
	cancelCalls  int

	lastSession *provider.SessionRequest
	lastOrder   *provider.OrderRequest
	lastRefund  *provider.RefundRequest
	lastToken   string
	lastOrderID string

	sessionErr  error
	orderErr    error
	refundErr   error
	cancelErr   error
	fraudStatus string
}

func (f *fakeProvider) CreateSession(ctx context.Context, req *provider.SessionRequest) (*provider.SessionResponse, error) {
	f.sessionCalls++
	f.lastSession = req
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return &provider.SessionResponse{
		SessionID:   "sess-1",
		ClientToken: "ct-1",
		RedirectURL: "https://hpp.example.com/sess-1",
	}, nil
}

func (f *fakeProvider) CreateOrder(ctx context.Context, token string, req *provider.OrderRequest) (*provider.OrderResponse, error) {
	f.orderCalls++
	f.lastToken = token
	f.lastOrder = req
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	status := f.fraudStatus
	if status == "" {
		status = "ACCEPTED"
	}
	return &provider.OrderResponse{OrderID: "order-1", FraudStatus: status}, nil
}

func (f *fakeProvider) Refund(ctx context.Context, orderID string, req *provider.RefundRequest) (*provider.RefundResponse, error) {
	f.refundCalls++
	f.lastOrderID = orderID
	f.lastRefund = req
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	return &provider.RefundResponse{RefundID: "refund-1"}, nil
}

func (f *fakeProvider) CancelOrder(ctx context.Context, orderID string) error {
	f.cancelCalls++
	f.lastOrderID = orderID
	return f.cancelErr
}

type recordingEmitter struct {
	processed  []string
	currencies []string
	failed     []string
}

func (e *recordingEmitter) EmitWebhookProcessed(event, result string, amount float64, currency, pspReference string) {
	e.processed = append(e.processed, event+":"+result)
	e.currencies = append(e.currencies, currency)
}

func (e *recordingEmitter) EmitWebhookFailed(event, message string) {
	e.failed = append(e.failed, event)
}

var testEntry = appconfig.ConfigEntry{
	ConfigurationID:   "cfg-1",
	ConfigurationName: "playground",
	APIURL:            "https://api.playground.example.com",
	Username:          "merchant_user",
	Password:          "merchant_password",
	MerchantID:        "M-1",
}

// newTestHandler builds a handler over an in-memory config store with
// channel-1 mapped to the test entry and channel-empty left unmapped.
func newTestHandler(t *testing.T, fake *fakeProvider, emitter Emitter) *Handler {
	t.Helper()

	id := testEntry.ConfigurationID
	cfg := &appconfig.AppConfig{
		Configurations:           []appconfig.ConfigEntry{testEntry},
		ChannelToConfigurationID: map[string]*string{"channel-1": &id},
		LastMigration:            appconfig.LatestMigration,
	}
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)

	manager := metadata.NewMemoryManager()
	require.NoError(t, manager.Set(context.Background(), appconfig.ConfigKey, string(raw)))
	configurator := appconfig.NewConfigurator(manager, cache.NewLocalLease(), appconfig.ConfigKey)

	factory := func(entry *appconfig.ConfigEntry) ProviderAPI { return fake }
	return NewHandler(configurator, factory, emitter)
}

func initializePayload(channelID string) []byte {
	payload := map[string]interface{}{
		"action": map[string]interface{}{
			"amount":     222.99,
			"currency":   "SEK",
			"actionType": "AUTHORIZATION",
		},
		"transaction": map[string]interface{}{"id": "txn-1"},
		"sourceObject": map[string]interface{}{
			"__typename": "Checkout",
			"id":         "checkout-1",
			"channel":    map[string]interface{}{"id": channelID},
			"lines": []map[string]interface{}{
				{
					"id":             "line-1",
					"productName":    "Canvas Tote Bag",
					"quantity":       3,
					"totalAmount":    222.99,
					"totalTaxAmount": 44.60,
				},
			},
		},
	}
	raw, _ := json.Marshal(payload)
	return raw
}

func TestTransactionInitializeCreatesSession(t *testing.T) {
	fake := &fakeProvider{}
	handler := newTestHandler(t, fake, nil)

	resp := handler.Handle(context.Background(), EventTransactionInitialize, initializePayload("channel-1"))

	assert.Equal(t, ResultAuthorizationActionRequired, resp.Result)
	assert.Equal(t, 222.99, resp.Amount)
	assert.Equal(t, "sess-1", resp.PSPReference)
	assert.Equal(t, "https://hpp.example.com/sess-1", resp.ExternalURL)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ct-1", data["clientToken"])
	assert.Equal(t, "https://hpp.example.com/sess-1", data["redirectUrl"])

	// The provider sees minor units and computed tax rates.
	require.Equal(t, 1, fake.sessionCalls)
	req := fake.lastSession
	assert.Equal(t, "txn-1", req.MerchantReference)
	assert.Equal(t, "SEK", req.PurchaseCurrency)
	assert.Equal(t, int64(22299), req.OrderAmount)
	assert.Equal(t, int64(4460), req.OrderTaxAmount)
	assert.Equal(t, "authorize", req.Intent)
	require.Len(t, req.OrderLines, 1)
	line := req.OrderLines[0]
	assert.Equal(t, int64(3), line.Quantity)
	assert.Equal(t, int64(22299), line.TotalAmount)
	assert.Equal(t, int64(4460), line.TotalTaxAmount)
	assert.Equal(t, int64(25), line.TaxRate)
}

func TestTransactionInitializeUnconfiguredChannelFails(t *testing.T) {
	fake := &fakeProvider{}
	handler := newTestHandler(t, fake, nil)

	resp := handler.Handle(context.Background(), EventTransactionInitialize, initializePayload("channel-empty"))

	assert.Equal(t, ResultAuthorizationFailure, resp.Result)
	assert.Equal(t, 222.99, resp.Amount)
	assert.Contains(t, resp.Message, "not configured")
	assert.Equal(t, 0, fake.sessionCalls)
}

func TestTransactionInitializeRedactsProviderErrors(t *testing.T) {
	fake := &fakeProvider{
		sessionErr: errors.New("basic auth merchant_user:merchant_password rejected"),
	}
	handler := newTestHandler(t, fake, nil)

	resp := handler.Handle(context.Background(), EventTransactionInitialize, initializePayload("channel-1"))

	assert.Equal(t, ResultAuthorizationFailure, resp.Result)
	assert.NotContains(t, resp.Message, "merchant_password")
	assert.NotContains(t, resp.Message, "merchant_user")
	assert.Contains(t, resp.Message, "*****")
}

func TestPaymentGatewayInitialize(t *testing.T) {
	handler := newTestHandler(t, &fakeProvider{}, nil)

	payload := func(channelID string) []byte {
		raw, _ := json.Marshal(map[string]interface{}{
			"sourceObject": map[string]interface{}{
				"__typename": "Checkout",
				"id":         "checkout-1",
				"channel":    map[string]interface{}{"id": channelID},
			},
		})
		return raw
	}

	t.Run("configured channel returns gateway config", func(t *testing.T) {
		resp := handler.Handle(context.Background(), EventPaymentGatewayInitialize, payload("channel-1"))

		data, ok := resp.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "M-1", data["merchantId"])
		assert.Equal(t, testEntry.APIURL, data["apiUrl"])
	})

	t.Run("unconfigured channel returns empty data", func(t *testing.T) {
		resp := handler.Handle(context.Background(), EventPaymentGatewayInitialize, payload("channel-empty"))

		data, ok := resp.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Empty(t, data)
		assert.Empty(t, resp.Result)
	})
}

func processPayload(actionType, token string) []byte {
	payload := map[string]interface{}{
		"action": map[string]interface{}{
			"amount":     100.0,
			"currency":   "EUR",
			"actionType": actionType,
		},
		"transaction": map[string]interface{}{"id": "txn-1"},
		"sourceObject": map[string]interface{}{
			"__typename": "Checkout",
			"id":         "checkout-1",
			"channel":    map[string]interface{}{"id": "channel-1"},
		},
	}
	if token != "" {
		payload["data"] = map[string]interface{}{"authorizationToken": token}
	}
	raw, _ := json.Marshal(payload)
	return raw
}

func TestTransactionProcess(t *testing.T) {
	t.Run("charge flow captures", func(t *testing.T) {
		fake := &fakeProvider{}
		handler := newTestHandler(t, fake, nil)

		resp := handler.Handle(context.Background(), EventTransactionProcess, processPayload("CHARGE", "auth-token-1"))

		assert.Equal(t, ResultChargeSuccess, resp.Result)
		assert.Equal(t, "order-1", resp.PSPReference)
		assert.Equal(t, "auth-token-1", fake.lastToken)
		assert.Equal(t, int64(10000), fake.lastOrder.OrderAmount)
		assert.True(t, fake.lastOrder.AutoCapture)
	})

	t.Run("authorization flow does not capture", func(t *testing.T) {
		fake := &fakeProvider{}
		handler := newTestHandler(t, fake, nil)

		resp := handler.Handle(context.Background(), EventTransactionProcess, processPayload("AUTHORIZATION", "auth-token-1"))

		assert.Equal(t, ResultAuthorizationSuccess, resp.Result)
		assert.False(t, fake.lastOrder.AutoCapture)
	})

	t.Run("pending fraud review maps to request", func(t *testing.T) {
		fake := &fakeProvider{fraudStatus: "PENDING"}
		handler := newTestHandler(t, fake, nil)

		resp := handler.Handle(context.Background(), EventTransactionProcess, processPayload("CHARGE", "auth-token-1"))

		assert.Equal(t, ResultChargeRequest, resp.Result)
	})

	t.Run("rejected order is a failure", func(t *testing.T) {
		fake := &fakeProvider{fraudStatus: "REJECTED"}
		handler := newTestHandler(t, fake, nil)

		resp := handler.Handle(context.Background(), EventTransactionProcess, processPayload("CHARGE", "auth-token-1"))

		assert.Equal(t, ResultChargeFailure, resp.Result)
		assert.Contains(t, resp.Message, "rejected")
	})

	t.Run("missing authorization token is a failure", func(t *testing.T) {
		fake := &fakeProvider{}
		handler := newTestHandler(t, fake, nil)

		resp := handler.Handle(context.Background(), EventTransactionProcess, processPayload("CHARGE", ""))

		assert.Equal(t, ResultChargeFailure, resp.Result)
		assert.Equal(t, 0, fake.orderCalls)
	})
}

func refundPayload(events []map[string]interface{}, pspReference string) []byte {
	transaction := map[string]interface{}{"id": "txn-1"}
	if pspReference != "" {
		transaction["pspReference"] = pspReference
	}
	if events != nil {
		transaction["events"] = events
	}
	raw, _ := json.Marshal(map[string]interface{}{
		"action": map[string]interface{}{
			"amount":   50.0,
			"currency": "EUR",
		},
		"transaction": transaction,
		"sourceObject": map[string]interface{}{
			"__typename": "Order",
			"id":         "order-src-1",
			"channel":    map[string]interface{}{"id": "channel-1"},
		},
	})
	return raw
}

func TestRefundRequested(t *testing.T) {
	chargeSuccess := []map[string]interface{}{{"type": "CHARGE_SUCCESS", "pspReference": "order-1"}}

	t.Run("refund after charge succeeds", func(t *testing.T) {
		fake := &fakeProvider{}
		handler := newTestHandler(t, fake, nil)

		resp := handler.Handle(context.Background(), EventRefundRequested, refundPayload(chargeSuccess, "order-1"))

		assert.Equal(t, ResultRefundSuccess, resp.Result)
		assert.Equal(t, "refund-1", resp.PSPReference)
		assert.Equal(t, "order-1", fake.lastOrderID)
		assert.Equal(t, int64(5000), fake.lastRefund.RefundedAmount)
	})

	t.Run("refund without successful charge fails before provider call", func(t *testing.T) {
		fake := &fakeProvider{}
		emitter := &recordingEmitter{}
		handler := newTestHandler(t, fake, emitter)

		resp := handler.Handle(context.Background(), EventRefundRequested, refundPayload(nil, "order-1"))

		assert.Equal(t, ResultRefundFailure, resp.Result)
		assert.Equal(t, 50.0, resp.Amount)
		assert.Equal(t, 0, fake.refundCalls)
		assert.Equal(t, []string{string(EventRefundRequested)}, emitter.failed)
	})

	t.Run("refund without provider reference fails", func(t *testing.T) {
		fake := &fakeProvider{}
		handler := newTestHandler(t, fake, nil)

		resp := handler.Handle(context.Background(), EventRefundRequested, refundPayload(chargeSuccess, ""))

		assert.Equal(t, ResultRefundFailure, resp.Result)
		assert.Equal(t, 0, fake.refundCalls)
	})
}

func TestCancelRequested(t *testing.T) {
	payload := func(pspReference string) []byte {
		transaction := map[string]interface{}{"id": "txn-1"}
		if pspReference != "" {
			transaction["pspReference"] = pspReference
		}
		raw, _ := json.Marshal(map[string]interface{}{
			"action":      map[string]interface{}{"amount": 100.0, "currency": "EUR"},
			"transaction": transaction,
			"sourceObject": map[string]interface{}{
				"__typename": "Checkout",
				"id":         "checkout-1",
				"channel":    map[string]interface{}{"id": "channel-1"},
			},
		})
		return raw
	}

	t.Run("cancel succeeds", func(t *testing.T) {
		fake := &fakeProvider{}
		handler := newTestHandler(t, fake, nil)

		resp := handler.Handle(context.Background(), EventCancelRequested, payload("order-1"))

		assert.Equal(t, ResultCancelSuccess, resp.Result)
		assert.Equal(t, "order-1", resp.PSPReference)
		assert.Equal(t, 1, fake.cancelCalls)
	})

	t.Run("cancel without provider reference fails", func(t *testing.T) {
		fake := &fakeProvider{}
		handler := newTestHandler(t, fake, nil)

		resp := handler.Handle(context.Background(), EventCancelRequested, payload(""))

		assert.Equal(t, ResultCancelFailure, resp.Result)
		assert.Equal(t, 0, fake.cancelCalls)
	})
}

func TestOrderFulfilledAcknowledges(t *testing.T) {
	handler := newTestHandler(t, &fakeProvider{}, nil)

	raw, _ := json.Marshal(map[string]interface{}{
		"order": map[string]interface{}{
			"id":      "order-1",
			"channel": map[string]interface{}{"id": "channel-empty"},
		},
	})
	resp := handler.Handle(context.Background(), EventOrderFulfilled, raw)

	assert.Empty(t, resp.Result)
	assert.Equal(t, "accepted", resp.Message)
}

func TestHandleMalformedPayload(t *testing.T) {
	emitter := &recordingEmitter{}
	handler := newTestHandler(t, &fakeProvider{}, emitter)

	resp := handler.Handle(context.Background(), EventTransactionInitialize, []byte("{not json"))

	assert.Equal(t, ResultChargeFailure, resp.Result)
	assert.NotEmpty(t, resp.Message)
	assert.Len(t, emitter.failed, 1)
}

func TestGatewayInitializeFailureShape(t *testing.T) {
	handler := newTestHandler(t, &fakeProvider{}, nil)

	resp := handler.Handle(context.Background(), EventPaymentGatewayInitialize, []byte("{not json"))

	// Gateway initialize failures travel inside data.errors, not result.
	assert.Empty(t, resp.Result)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, data["errors"])
}

func TestHandleEmitsProcessedEvents(t *testing.T) {
	emitter := &recordingEmitter{}
	handler := newTestHandler(t, &fakeProvider{}, emitter)

	handler.Handle(context.Background(), EventTransactionInitialize, initializePayload("channel-1"))

	require.Len(t, emitter.processed, 1)
	assert.Equal(t, string(EventTransactionInitialize)+":"+string(ResultAuthorizationActionRequired), emitter.processed[0])
	assert.Equal(t, []string{"SEK"}, emitter.currencies)
}

func TestOrderFulfilledFailureHasNoResultCode(t *testing.T) {
	emitter := &recordingEmitter{}
	handler := newTestHandler(t, &fakeProvider{}, emitter)

	resp := handler.Handle(context.Background(), EventOrderFulfilled, []byte("{not json"))

	assert.Empty(t, resp.Result)
	assert.NotEmpty(t, resp.Message)
	assert.Len(t, emitter.failed, 1)
}
