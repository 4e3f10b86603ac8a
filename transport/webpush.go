// Package transport sends encrypted web push messages and turns whatever the
// push service answers into a models.DeliveryResult.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/linesmerrill/lead-push/config"
	"github.com/linesmerrill/lead-push/models"
)

const maxErrorBody = 512

// Sender delivers one payload to one subscription
type Sender interface {
	Send(ctx context.Context, sub models.Subscription, payload []byte) (models.DeliveryResult, error)
}

// WebPush is a VAPID authenticated Sender
type WebPush struct {
	vapid  config.VAPID
	push   config.Push
	client *http.Client
}

// NewWebPush builds a sender signing requests with vapid
func NewWebPush(vapid config.VAPID, push config.Push) *WebPush {
	timeout := push.SendTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WebPush{
		vapid:  vapid,
		push:   push,
		client: &http.Client{Timeout: timeout},
	}
}

// Send posts payload to the subscription endpoint. The error is only the
// detail of a failed result and is nil when the result is ResultDelivered.
func (w *WebPush) Send(ctx context.Context, sub models.Subscription, payload []byte) (models.DeliveryResult, error) {
	if !w.vapid.Configured() {
		return models.ResultTransportError, models.ErrConfiguration
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      w.client,
		Subscriber:      w.vapid.Subject,
		VAPIDPublicKey:  w.vapid.PublicKey,
		VAPIDPrivateKey: w.vapid.PrivateKey,
		TTL:             w.push.TTL,
		Urgency:         urgency(w.push.Urgency),
	})
	if err != nil {
		return models.ResultTransportError, fmt.Errorf("failed to send push request: %w", err)
	}
	defer resp.Body.Close()

	result := Classify(resp.StatusCode)
	if result == models.ResultDelivered {
		return result, nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return result, fmt.Errorf("push service returned status %d: %s", resp.StatusCode, body)
}

// Classify maps a push service HTTP status onto a delivery result. 404 and
// 410 mean the subscription is gone for good.
func Classify(status int) models.DeliveryResult {
	switch {
	case status >= 200 && status < 300:
		return models.ResultDelivered
	case status == http.StatusNotFound, status == http.StatusGone:
		return models.ResultSubscriptionExpired
	case status == http.StatusTooManyRequests:
		return models.ResultRateLimited
	default:
		return models.ResultTransportError
	}
}

func urgency(s string) webpush.Urgency {
	switch webpush.Urgency(s) {
	case webpush.UrgencyVeryLow, webpush.UrgencyLow, webpush.UrgencyHigh:
		return webpush.Urgency(s)
	default:
		return webpush.UrgencyNormal
	}
}

// GenerateVAPIDKeys creates a fresh key pair for VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	return publicKey, privateKey, err
}
