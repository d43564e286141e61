package webhook

// ResultCode is one of the closed set of outcomes Saleor accepts in a sync
// webhook response.
type ResultCode string

const (
	ResultAuthorizationActionRequired ResultCode = "AUTHORIZATION_ACTION_REQUIRED"
	ResultAuthorizationSuccess        ResultCode = "AUTHORIZATION_SUCCESS"
	ResultAuthorizationRequest        ResultCode = "AUTHORIZATION_REQUEST"
	ResultAuthorizationFailure        ResultCode = "AUTHORIZATION_FAILURE"
	ResultChargeActionRequired        ResultCode = "CHARGE_ACTION_REQUIRED"
	ResultChargeSuccess               ResultCode = "CHARGE_SUCCESS"
	ResultChargeRequest               ResultCode = "CHARGE_REQUEST"
	ResultChargeFailure               ResultCode = "CHARGE_FAILURE"
	ResultRefundSuccess               ResultCode = "REFUND_SUCCESS"
	ResultRefundFailure               ResultCode = "REFUND_FAILURE"
	ResultCancelSuccess               ResultCode = "CANCEL_SUCCESS"
	ResultCancelFailure               ResultCode = "CANCEL_FAILURE"
)

// Response is the body returned to Saleor. Webhooks always answer HTTP 200
// with one of these, even on failure; the caller expects a structured
// response regardless of outcome.
type Response struct {
	Result       ResultCode  `json:"result,omitempty"`
	Amount       float64     `json:"amount,omitempty"`
	PSPReference string      `json:"pspReference,omitempty"`
	Message      string      `json:"message,omitempty"`
	ExternalURL  string      `json:"externalUrl,omitempty"`
	Data         interface{} `json:"data,omitempty"`
}

// failureResult picks the *_FAILURE variant matching the event and flow.
func failureResult(event EventType, flow Flow) ResultCode {
	switch event {
	case EventTransactionInitialize, EventTransactionProcess:
		if flow == FlowAuthorization {
			return ResultAuthorizationFailure
		}
		return ResultChargeFailure
	case EventRefundRequested:
		return ResultRefundFailure
	case EventCancelRequested:
		return ResultCancelFailure
	case EventOrderFulfilled:
		// Ack-only event; there is no transaction state to report, so the
		// failure body carries only the message.
		return ""
	default:
		return ResultChargeFailure
	}
}

// successResult picks the session-created result for the initialize flows.
func actionRequiredResult(flow Flow) ResultCode {
	if flow == FlowAuthorization {
		return ResultAuthorizationActionRequired
	}
	return ResultChargeActionRequired
}

// processResult maps the provider's fraud status onto the process outcome.
func processResult(flow Flow, fraudStatus string) ResultCode {
	pending := fraudStatus == "PENDING"
	if flow == FlowAuthorization {
		if pending {
			return ResultAuthorizationRequest
		}
		return ResultAuthorizationSuccess
	}
	if pending {
		return ResultChargeRequest
	}
	return ResultChargeSuccess
}
