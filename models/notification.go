package models

// ForegroundEnvelopeType marks a message as a relayed push event
const ForegroundEnvelopeType = "PUSH_NOTIFICATION"

// NotificationPayload is the content fanned out to a user's devices. Tag lets
// the receiving client replace an earlier notification with the same tag.
type NotificationPayload struct {
	ID    string                 `json:"id,omitempty"`
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Icon  string                 `json:"icon,omitempty"`
	Tag   string                 `json:"tag,omitempty"`
	URL   string                 `json:"url,omitempty"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

// DeliveryResult classifies a single send attempt
type DeliveryResult string

// Possible per-device results
const (
	ResultDelivered           DeliveryResult = "delivered"
	ResultSubscriptionExpired DeliveryResult = "subscription_expired"
	ResultRateLimited         DeliveryResult = "rate_limited"
	ResultTransportError      DeliveryResult = "transport_error"
)

// DeliveryOutcome is what happened to one device during a deliver call
type DeliveryOutcome struct {
	DeviceID string         `json:"deviceId"`
	Result   DeliveryResult `json:"result"`
	Error    string         `json:"error,omitempty"`
}

// DeliverySummary aggregates the outcomes of one deliver call. A summary with
// DeliveredCount < TotalDevices is a partial failure, not an error.
type DeliverySummary struct {
	NotificationID string            `json:"notificationId,omitempty"`
	TotalDevices   int               `json:"totalDevices"`
	DeliveredCount int               `json:"deliveredCount"`
	Outcomes       []DeliveryOutcome `json:"outcomes,omitempty"`
}

// ForegroundEnvelope wraps a push payload relayed into an open client session
type ForegroundEnvelope struct {
	Type    string              `json:"type"`
	ID      string              `json:"id"`
	Payload NotificationPayload `json:"payload"`
}

// NewForegroundEnvelope wraps payload in the push envelope
func NewForegroundEnvelope(payload NotificationPayload) ForegroundEnvelope {
	return ForegroundEnvelope{Type: ForegroundEnvelopeType, ID: payload.ID, Payload: payload}
}
