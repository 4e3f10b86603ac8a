// Package push fans a notification out to every active device of a user and
// keeps the registry in step with what the push services report.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/linesmerrill/lead-push/config"
	"github.com/linesmerrill/lead-push/models"
	"github.com/linesmerrill/lead-push/registry"
	"github.com/linesmerrill/lead-push/transport"
)

// Engine is the delivery entry point
type Engine struct {
	registry       registry.Registry
	sender         transport.Sender
	vapid          config.VAPID
	maxConcurrency int
	log            *zap.SugaredLogger
	metrics        *Metrics
}

// Option customizes an Engine
type Option func(*Engine)

// WithMaxConcurrency caps in-flight sends per deliver call. 0 means one
// goroutine per device.
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) { e.maxConcurrency = n }
}

// WithLogger replaces the no-op logger
func WithLogger(log *zap.SugaredLogger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetrics records outcomes on m
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine wires an Engine. vapid is checked on every Deliver so a missing
// key pair surfaces as ErrConfiguration instead of a failure per device.
func NewEngine(reg registry.Registry, sender transport.Sender, vapid config.VAPID, opts ...Option) *Engine {
	e := &Engine{
		registry: reg,
		sender:   sender,
		vapid:    vapid,
		log:      zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Deliver sends payload to all active devices of userID and waits for every
// attempt to settle. Once the devices are loaded it never returns an error;
// partial failure only shows in the summary counts and outcomes.
func (e *Engine) Deliver(ctx context.Context, userID string, payload models.NotificationPayload) (models.DeliverySummary, error) {
	if !e.vapid.Configured() {
		return models.DeliverySummary{}, models.ErrConfiguration
	}
	if strings.TrimSpace(userID) == "" {
		return models.DeliverySummary{}, fmt.Errorf("%w: userId is required", models.ErrValidation)
	}
	if payload.ID == "" {
		payload.ID = uuid.New().String()
	}

	devices, err := e.registry.ListActiveByUser(ctx, userID)
	if err != nil {
		return models.DeliverySummary{}, fmt.Errorf("failed to load devices: %w", err)
	}
	summary := models.DeliverySummary{NotificationID: payload.ID, TotalDevices: len(devices)}
	if len(devices) == 0 {
		return summary, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return models.DeliverySummary{}, fmt.Errorf("%w: payload is not serializable: %v", models.ErrValidation, err)
	}

	// sends are not cancelled once dispatched
	sendCtx := context.WithoutCancel(ctx)
	outcomes := make([]models.DeliveryOutcome, len(devices))

	var g errgroup.Group
	if e.maxConcurrency > 0 {
		g.SetLimit(e.maxConcurrency)
	}
	for i := range devices {
		i := i
		g.Go(func() error {
			outcomes[i] = e.sendOne(sendCtx, userID, devices[i], body)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		if o.Result == models.ResultDelivered {
			summary.DeliveredCount++
		}
	}
	summary.Outcomes = outcomes
	e.metrics.observe(summary)

	e.log.Infow("push delivered",
		"userId", userID,
		"notificationId", payload.ID,
		"totalDevices", summary.TotalDevices,
		"deliveredCount", summary.DeliveredCount,
	)
	return summary, nil
}

func (e *Engine) sendOne(ctx context.Context, userID string, device models.DeviceRegistration, body []byte) models.DeliveryOutcome {
	deviceID := device.ID.Hex()
	outcome := models.DeliveryOutcome{DeviceID: deviceID}

	result, err := e.sender.Send(ctx, device.Subscription, body)
	outcome.Result = result
	if err != nil && result != models.ResultDelivered {
		outcome.Error = err.Error()
	}

	fields := []interface{}{"userId", userID, "deviceId", deviceID, "endpoint", shortEndpoint(device.Subscription.Endpoint)}
	switch result {
	case models.ResultDelivered:
	case models.ResultSubscriptionExpired:
		e.log.Infow("subscription expired, deactivating device", fields...)
		if derr := e.registry.Deactivate(ctx, deviceID); derr != nil {
			e.log.Errorw("failed to deactivate device", append(fields, "error", derr)...)
		}
	case models.ResultRateLimited:
		e.log.Warnw("push service rate limited device", append(fields, "error", err)...)
	default:
		outcome.Result = models.ResultTransportError
		e.log.Warnw("push send failed", append(fields, "error", err)...)
	}
	return outcome
}

func shortEndpoint(endpoint string) string {
	if len(endpoint) > 50 {
		return endpoint[:50]
	}
	return endpoint
}
