package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/lead-push/api"
	"github.com/linesmerrill/lead-push/config"
	"github.com/linesmerrill/lead-push/models"
	"github.com/linesmerrill/lead-push/registry"
)

// Deliverer fans a notification out to a user's devices
type Deliverer interface {
	Deliver(ctx context.Context, userID string, payload models.NotificationPayload) (models.DeliverySummary, error)
}

// Push exposes the device registry and delivery over HTTP
type Push struct {
	Registry registry.Registry
	Engine   Deliverer
	Hub      *ForegroundHub
	VAPID    config.VAPID
}

// VAPIDPublicKeyHandler returns the application server key clients subscribe with
func (p Push) VAPIDPublicKeyHandler(w http.ResponseWriter, r *http.Request) {
	if !p.VAPID.Configured() {
		config.ErrorStatus("push is not configured", http.StatusServiceUnavailable, w, models.ErrConfiguration)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": p.VAPID.PublicKey})
}

// SubscribeDeviceHandler registers or refreshes the caller's device
func (p Push) SubscribeDeviceHandler(w http.ResponseWriter, r *http.Request) {
	principal, _ := api.PrincipalFrom(r.Context())

	req := models.DeviceRequest{}
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	userID := principal.UserID
	if req.UserID != "" {
		if !principal.CanActFor(req.UserID) {
			config.ErrorStatus("cannot register a device for another user", http.StatusForbidden, w, fmt.Errorf("userId %s does not match token", req.UserID))
			return
		}
		userID = req.UserID
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	device, created, err := p.Registry.Upsert(ctx, userID, req.DeviceName, models.ParseDeviceType(req.DeviceType), req.Subscription)
	if err != nil {
		config.ErrorStatus("failed to register device", statusFor(err), w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	zap.S().Infow("device registered", "userId", userID, "deviceId", device.ID.Hex(), "created", created)
	writeJSON(w, status, device)
}

// ListDevicesHandler returns every device of the caller
func (p Push) ListDevicesHandler(w http.ResponseWriter, r *http.Request) {
	principal, _ := api.PrincipalFrom(r.Context())

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	devices, err := p.Registry.ListByUser(ctx, principal.UserID)
	if err != nil {
		config.ErrorStatus("failed to list devices", statusFor(err), w, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

// UnsubscribeDeviceHandler removes one of the caller's devices
func (p Push) UnsubscribeDeviceHandler(w http.ResponseWriter, r *http.Request) {
	principal, _ := api.PrincipalFrom(r.Context())
	deviceID := mux.Vars(r)["device_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	device, err := p.Registry.Get(ctx, deviceID)
	if err != nil {
		config.ErrorStatus("failed to get device", statusFor(err), w, err)
		return
	}
	if !principal.CanActFor(device.UserID) {
		// do not leak other users' device ids
		config.ErrorStatus("failed to get device", http.StatusNotFound, w, models.ErrNotFound)
		return
	}

	removed, err := p.Registry.Remove(ctx, deviceID)
	if err != nil {
		config.ErrorStatus("failed to remove device", statusFor(err), w, err)
		return
	}
	zap.S().Infow("device removed", "userId", device.UserID, "deviceId", deviceID)
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

// DeliverHandler sends a notification to every active device of user_id and
// relays it to the user's open sessions
func (p Push) DeliverHandler(w http.ResponseWriter, r *http.Request) {
	principal, _ := api.PrincipalFrom(r.Context())
	userID := mux.Vars(r)["user_id"]

	if !principal.CanActFor(userID) {
		config.ErrorStatus("cannot deliver to another user", http.StatusForbidden, w, fmt.Errorf("not allowed to act for %s", userID))
		return
	}

	payload := models.NotificationPayload{}
	err := json.NewDecoder(r.Body).Decode(&payload)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	summary, err := p.Engine.Deliver(r.Context(), userID, payload)
	if err != nil {
		config.ErrorStatus("failed to deliver notification", statusFor(err), w, err)
		return
	}

	if p.Hub != nil {
		payload.ID = summary.NotificationID
		p.Hub.Publish(userID, models.NewForegroundEnvelope(payload))
	}
	writeJSON(w, http.StatusOK, summary)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, models.ErrConfiguration):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}
