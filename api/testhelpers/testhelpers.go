// Package testhelpers holds fixtures shared by the package tests
package testhelpers

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/linesmerrill/lead-push/models"
)

// SignToken returns an HS256 token for userID shaped like the ones the lead
// app issues. A negative ttl gives an already expired token.
func SignToken(secret, userID string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	})
	return token.SignedString([]byte(secret))
}

// Subscription returns a subscription for endpoint with placeholder keys
func Subscription(endpoint string) models.Subscription {
	return models.Subscription{
		Endpoint: endpoint,
		Keys:     models.SubscriptionKeys{P256dh: "BNcRdreALRFXTkOOUHK1EtK2wtaz5Ry4YfYCA", Auth: "tBHItJI5svbpez7KI4CCXg"},
	}
}
