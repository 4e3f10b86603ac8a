package models

import "errors"

// ErrorMessageResponse returns the error message response struct
type ErrorMessageResponse struct {
	Response MessageError
}

// MessageError contains the inner details for the error message response
type MessageError struct {
	Message string
	Error   string
}

// Call level failures. Per-device failures are DeliveryResult values, never errors.
var (
	// ErrConfiguration means transport credentials are missing
	ErrConfiguration = errors.New("push transport is not configured")
	// ErrValidation means the input was rejected before any state change
	ErrValidation = errors.New("validation failed")
	// ErrPermissionDenied means the user declined notification permission
	ErrPermissionDenied = errors.New("notification permission denied")
	// ErrNotFound means the referenced registry row does not exist
	ErrNotFound = errors.New("device not found")
	// ErrRegistry means a registry call failed from the client's point of view
	ErrRegistry = errors.New("registry request failed")
)
