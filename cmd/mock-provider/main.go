// cmd/mock-provider/main.go
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/saleorbridge/payment-bridge/internal/events"
)

// MockProvider simulates the hosted-payment-page provider API: sessions,
// authorization-to-order exchange, refunds and cancellations. State lives in
// memory and resets on restart.
type MockProvider struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	orders      map[string]*Order
	conflicts   map[string]bool
	tokenOrders map[string]string
	stats       ProviderStats
	publisher   *events.Publisher
}

type Session struct {
	SessionID         string    `json:"session_id"`
	ClientToken       string    `json:"client_token"`
	MerchantReference string    `json:"merchant_reference"`
	Currency          string    `json:"currency"`
	Amount            int64     `json:"amount"`
	TaxAmount         int64     `json:"tax_amount"`
	CreatedAt         time.Time `json:"created_at"`
}

type Order struct {
	OrderID           string    `json:"order_id"`
	MerchantReference string    `json:"merchant_reference"`
	Currency          string    `json:"currency"`
	Amount            int64     `json:"amount"`
	RefundedAmount    int64     `json:"refunded_amount"`
	FraudStatus       string    `json:"fraud_status"`
	Canceled          bool      `json:"canceled"`
	CreatedAt         time.Time `json:"created_at"`
}

type ProviderStats struct {
	TotalRequests   int `json:"total_requests"`
	SessionsCreated int `json:"sessions_created"`
	OrdersCreated   int `json:"orders_created"`
	Conflicts       int `json:"conflicts_returned"`
	Refunds         int `json:"refunds"`
	Cancellations   int `json:"cancellations"`
}

type sessionRequest struct {
	MerchantReference string `json:"merchant_reference1"`
	PurchaseCurrency  string `json:"purchase_currency"`
	OrderAmount       int64  `json:"order_amount"`
	OrderTaxAmount    int64  `json:"order_tax_amount"`
	Intent            string `json:"intent,omitempty"`
}

type orderRequest struct {
	MerchantReference string `json:"merchant_reference1"`
	PurchaseCurrency  string `json:"purchase_currency"`
	OrderAmount       int64  `json:"order_amount"`
	AutoCapture       bool   `json:"auto_capture"`
}

type refundRequest struct {
	RefundedAmount int64  `json:"refunded_amount"`
	Description    string `json:"description,omitempty"`
}

type apiError struct {
	Code          string `json:"error_code"`
	Message       string `json:"error_message"`
	CorrelationID string `json:"correlation_id"`
}

func NewMockProvider() *MockProvider {
	p := &MockProvider{
		sessions:    make(map[string]*Session),
		orders:      make(map[string]*Order),
		conflicts:   make(map[string]bool),
		tokenOrders: make(map[string]string),
	}
	if appURL := os.Getenv("PAYMENT_APP_URL"); appURL != "" {
		p.publisher = events.NewPublisher(appURL)
		log.Printf("Publishing provider events to %s", appURL)
	}
	return p
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8020"
	}

	provider := NewMockProvider()

	r := mux.NewRouter()
	r.HandleFunc("/health", provider.healthCheck).Methods("GET")
	r.HandleFunc("/payments/v1/sessions", provider.createSession).Methods("POST")
	r.HandleFunc("/payments/v1/authorizations/{token}/order", provider.createOrder).Methods("POST")
	r.HandleFunc("/ordermanagement/v1/orders/{orderID}/refunds", provider.refund).Methods("POST")
	r.HandleFunc("/ordermanagement/v1/orders/{orderID}/cancel", provider.cancelOrder).Methods("POST")
	r.HandleFunc("/admin/stats", provider.getStats).Methods("GET")

	log.Printf("🏦 Mock Provider starting on port %s", port)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

// requireAuth enforces basic auth the way the real provider does. Any
// non-empty credential pair is accepted.
func (p *MockProvider) requireAuth(w http.ResponseWriter, r *http.Request) bool {
	username, password, ok := r.BasicAuth()
	if !ok || username == "" || password == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid credentials")
		return false
	}
	return true
}

func (p *MockProvider) createSession(w http.ResponseWriter, r *http.Request) {
	p.countRequest()
	if !p.requireAuth(w, r) {
		return
	}

	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_VALUE", "invalid session payload")
		return
	}
	if req.PurchaseCurrency == "" || req.OrderAmount <= 0 {
		writeError(w, http.StatusBadRequest, "BAD_VALUE", "purchase_currency and a positive order_amount are required")
		return
	}

	session := &Session{
		SessionID:         uuid.New().String(),
		ClientToken:       uuid.New().String(),
		MerchantReference: req.MerchantReference,
		Currency:          req.PurchaseCurrency,
		Amount:            req.OrderAmount,
		TaxAmount:         req.OrderTaxAmount,
		CreatedAt:         time.Now(),
	}

	p.mu.Lock()
	p.sessions[session.SessionID] = session
	p.stats.SessionsCreated++
	p.mu.Unlock()

	if p.publisher != nil {
		p.publisher.PublishSessionCreated(events.ProviderEventData{
			SessionID:         session.SessionID,
			MerchantReference: session.MerchantReference,
			Amount:            session.Amount,
			Currency:          session.Currency,
		})
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id":   session.SessionID,
		"client_token": session.ClientToken,
		"redirect_url": fmt.Sprintf("%s://%s/hpp/%s", scheme, r.Host, session.SessionID),
	})
}

// createOrder exchanges an authorization token for an order. The first
// attempt for each token answers 409 ORDER_IN_PROGRESS to mirror the real
// provider's asynchronous order creation; the caller's retry succeeds.
// Each token maps to at most one order, so a redelivered webhook gets the
// already-created order back instead of a duplicate.
func (p *MockProvider) createOrder(w http.ResponseWriter, r *http.Request) {
	p.countRequest()
	if !p.requireAuth(w, r) {
		return
	}

	token := mux.Vars(r)["token"]

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_VALUE", "invalid order payload")
		return
	}

	p.mu.Lock()
	if !p.conflicts[token] {
		p.conflicts[token] = true
		p.stats.Conflicts++
		p.mu.Unlock()
		writeError(w, http.StatusConflict, "ORDER_IN_PROGRESS", "an order for this authorization is already being created")
		return
	}

	if orderID, ok := p.tokenOrders[token]; ok {
		order := p.orders[orderID]
		p.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{
			"order_id":     order.OrderID,
			"fraud_status": order.FraudStatus,
		})
		return
	}

	order := &Order{
		OrderID:           uuid.New().String(),
		MerchantReference: req.MerchantReference,
		Currency:          req.PurchaseCurrency,
		Amount:            req.OrderAmount,
		FraudStatus:       fraudStatusFor(req.MerchantReference),
		CreatedAt:         time.Now(),
	}
	p.orders[order.OrderID] = order
	p.tokenOrders[token] = order.OrderID
	p.stats.OrdersCreated++
	p.mu.Unlock()

	if p.publisher != nil {
		p.publisher.PublishOrderCreated(events.ProviderEventData{
			OrderID:           order.OrderID,
			MerchantReference: order.MerchantReference,
			Amount:            order.Amount,
			Currency:          order.Currency,
			Status:            order.FraudStatus,
		})
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"order_id":     order.OrderID,
		"fraud_status": order.FraudStatus,
	})
}

func (p *MockProvider) refund(w http.ResponseWriter, r *http.Request) {
	p.countRequest()
	if !p.requireAuth(w, r) {
		return
	}

	orderID := mux.Vars(r)["orderID"]

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_VALUE", "invalid refund payload")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.orders[orderID]
	if !ok {
		writeError(w, http.StatusNotFound, "NO_SUCH_ORDER", "order not found")
		return
	}
	if order.Canceled {
		writeError(w, http.StatusForbidden, "NOT_ALLOWED", "order is canceled")
		return
	}
	if req.RefundedAmount <= 0 || order.RefundedAmount+req.RefundedAmount > order.Amount {
		writeError(w, http.StatusForbidden, "REFUND_AMOUNT_EXCEEDED", "refund exceeds the remaining captured amount")
		return
	}

	order.RefundedAmount += req.RefundedAmount
	p.stats.Refunds++

	refundID := uuid.New().String()
	if p.publisher != nil {
		p.publisher.PublishRefundCreated(events.ProviderEventData{
			OrderID:  orderID,
			RefundID: refundID,
			Amount:   req.RefundedAmount,
			Currency: order.Currency,
		})
	}

	writeJSON(w, http.StatusOK, map[string]string{"refund_id": refundID})
}

func (p *MockProvider) cancelOrder(w http.ResponseWriter, r *http.Request) {
	p.countRequest()
	if !p.requireAuth(w, r) {
		return
	}

	orderID := mux.Vars(r)["orderID"]

	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.orders[orderID]
	if !ok {
		writeError(w, http.StatusNotFound, "NO_SUCH_ORDER", "order not found")
		return
	}
	if order.RefundedAmount > 0 {
		writeError(w, http.StatusForbidden, "NOT_ALLOWED", "order has refunds and cannot be canceled")
		return
	}

	order.Canceled = true
	p.stats.Cancellations++

	if p.publisher != nil {
		p.publisher.PublishOrderCanceled(events.ProviderEventData{
			OrderID:  orderID,
			Currency: order.Currency,
		})
	}

	w.WriteHeader(http.StatusNoContent)
}

func (p *MockProvider) getStats(w http.ResponseWriter, r *http.Request) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	writeJSON(w, http.StatusOK, p.stats)
}

func (p *MockProvider) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":   "mock-provider",
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

func (p *MockProvider) countRequest() {
	p.mu.Lock()
	p.stats.TotalRequests++
	p.mu.Unlock()
}

// fraudStatusFor derives a deterministic fraud decision from the merchant
// reference so integration tests can force each branch.
func fraudStatusFor(reference string) string {
	switch {
	case strings.HasPrefix(reference, "fraud"):
		return "REJECTED"
	case strings.HasPrefix(reference, "review"):
		return "PENDING"
	default:
		return "ACCEPTED"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{
		Code:          code,
		Message:       message,
		CorrelationID: uuid.New().String(),
	})
}
