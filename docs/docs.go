// Package docs Lead Push API.
//
// Documentation of the lead tracker push API: device registration and
// notification delivery.
//
//	 Schemes: https
//	 BasePath: /
//	 Version: 1.0.0
//
//	 Consumes:
//	 - application/json
//
//	 Produces:
//	 - application/json
//
//	 Security:
//	 - bearer
//	 - basic
//
//	SecurityDefinitions:
//	bearer:
//	  type: apiKey
//	  name: Authorization
//	  in: header
//	basic:
//	  type: basic
//
// swagger:meta
package docs

import (
	"github.com/linesmerrill/lead-push/models"
)

// swagger:route GET /api/v1/push/vapid-public-key push vapidPublicKey
// Returns the application server key clients subscribe with.
// responses:
//   200: vapidPublicKeyResponse
//   503: errorResponse

// The VAPID public key, base64 url encoded.
// swagger:response vapidPublicKeyResponse
type vapidPublicKeyResponseWrapper struct {
	// in:body
	Body struct {
		PublicKey string `json:"publicKey"`
	}
}

// swagger:route POST /api/v1/push/devices push subscribeDevice
// Registers the current device, or refreshes and reactivates it if the
// endpoint is already registered for the user.
// responses:
//   200: deviceResponse
//   201: deviceResponse
//   400: errorResponse
//   403: errorResponse

// swagger:parameters subscribeDevice
type subscribeDeviceParamsWrapper struct {
	// in:body
	Body models.DeviceRequest
}

// A registered device.
// swagger:response deviceResponse
type deviceResponseWrapper struct {
	// in:body
	Body models.DeviceRegistration
}

// swagger:route GET /api/v1/push/devices push listDevices
// Lists every device of the caller, active or not.
// responses:
//   200: devicesResponse

// swagger:response devicesResponse
type devicesResponseWrapper struct {
	// in:body
	Body []models.DeviceRegistration
}

// swagger:route DELETE /api/v1/push/devices/{device_id} push unsubscribeDevice
// Removes one of the caller's devices.
// responses:
//   200: removedResponse
//   404: errorResponse

// swagger:response removedResponse
type removedResponseWrapper struct {
	// in:body
	Body struct {
		Removed bool `json:"removed"`
	}
}

// swagger:route POST /api/v1/push/users/{user_id}/deliver push deliver
// Sends a notification to every active device of the user. Partial failure
// is reported in the summary, not as an error status.
// responses:
//   200: deliverySummaryResponse
//   403: errorResponse
//   503: errorResponse

// swagger:parameters deliver
type deliverParamsWrapper struct {
	// in:body
	Body models.NotificationPayload
}

// swagger:response deliverySummaryResponse
type deliverySummaryResponseWrapper struct {
	// in:body
	Body models.DeliverySummary
}

// swagger:response errorResponse
type errorResponseWrapper struct {
	// in:body
	Body models.ErrorMessageResponse
}
