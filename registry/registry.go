// Package registry keeps the set of push subscriptions each user has
// registered, one row per (user, endpoint).
package registry

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/linesmerrill/lead-push/models"
)

// Registry is the device store the delivery engine and the API work against.
// Upsert is the only way a device is added.
type Registry interface {
	// Upsert registers sub for userID. An existing row for the same
	// (userID, endpoint) is refreshed and reactivated and created is false.
	Upsert(ctx context.Context, userID, deviceName string, deviceType models.DeviceType, sub models.Subscription) (device models.DeviceRegistration, created bool, err error)
	// ListActiveByUser returns the devices of userID that are still active.
	ListActiveByUser(ctx context.Context, userID string) ([]models.DeviceRegistration, error)
	// ListByUser returns every device of userID, active or not.
	ListByUser(ctx context.Context, userID string) ([]models.DeviceRegistration, error)
	// Get returns a single device.
	Get(ctx context.Context, deviceID string) (models.DeviceRegistration, error)
	// Deactivate soft deletes a device. Unknown and already inactive
	// devices are a no-op.
	Deactivate(ctx context.Context, deviceID string) error
	// Remove hard deletes a device.
	Remove(ctx context.Context, deviceID string) (bool, error)
	// FindByEndpoint returns the most recently updated device using endpoint.
	FindByEndpoint(ctx context.Context, endpoint string) (models.DeviceRegistration, error)
	// Stats counts active and inactive devices.
	Stats(ctx context.Context) (Stats, error)
}

// Stats is a point in time count of the registry
type Stats struct {
	Active   int64 `json:"active"`
	Inactive int64 `json:"inactive"`
}

// ValidateSubscription rejects subscriptions push services could never accept
func ValidateSubscription(sub models.Subscription) error {
	endpoint := strings.TrimSpace(sub.Endpoint)
	if endpoint == "" {
		return fmt.Errorf("%w: subscription endpoint is required", models.ErrValidation)
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return fmt.Errorf("%w: subscription endpoint %q is not an absolute http(s) url", models.ErrValidation, endpoint)
	}
	if strings.TrimSpace(sub.Keys.P256dh) == "" || strings.TrimSpace(sub.Keys.Auth) == "" {
		return fmt.Errorf("%w: subscription keys p256dh and auth are required", models.ErrValidation)
	}
	return nil
}

func validateUpsert(userID string, sub models.Subscription) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: userId is required", models.ErrValidation)
	}
	return ValidateSubscription(sub)
}
