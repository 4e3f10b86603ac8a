package models

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DeviceType is the coarse form factor a device registered as
type DeviceType string

// Known device types; anything else is stored as DeviceTypeUnknown
const (
	DeviceTypeDesktop DeviceType = "desktop"
	DeviceTypeMobile  DeviceType = "mobile"
	DeviceTypeTablet  DeviceType = "tablet"
	DeviceTypeUnknown DeviceType = "unknown"
)

// ParseDeviceType normalizes a client supplied device type
func ParseDeviceType(s string) DeviceType {
	switch DeviceType(strings.ToLower(strings.TrimSpace(s))) {
	case DeviceTypeDesktop:
		return DeviceTypeDesktop
	case DeviceTypeMobile:
		return DeviceTypeMobile
	case DeviceTypeTablet:
		return DeviceTypeTablet
	default:
		return DeviceTypeUnknown
	}
}

// Subscription is the browser issued push credential for one installation.
// Two subscriptions with the same Endpoint are the same installation.
type Subscription struct {
	Endpoint string           `json:"endpoint" bson:"endpoint"`
	Keys     SubscriptionKeys `json:"keys" bson:"keys"`
}

// SubscriptionKeys holds the message encryption keys of a subscription
type SubscriptionKeys struct {
	P256dh string `json:"p256dh" bson:"p256dh"`
	Auth   string `json:"auth" bson:"auth"`
}

// DeviceRegistration holds the structure for the devices collection in mongo
type DeviceRegistration struct {
	ID           primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	UserID       string             `json:"userId" bson:"userId"`
	DeviceName   string             `json:"deviceName" bson:"deviceName"`
	DeviceType   DeviceType         `json:"deviceType" bson:"deviceType"`
	Subscription Subscription       `json:"subscription" bson:"subscription"`
	IsActive     bool               `json:"isActive" bson:"isActive"`
	CreatedAt    primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt    primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}

// DeviceRequest is the body clients post to register the current device
type DeviceRequest struct {
	UserID       string       `json:"userId,omitempty"`
	DeviceName   string       `json:"deviceName"`
	DeviceType   string       `json:"deviceType"`
	Subscription Subscription `json:"subscription"`
}
