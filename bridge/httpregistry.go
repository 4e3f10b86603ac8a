package bridge

import (
	"context"
	"net/http"
	"time"

	"github.com/carlmjohnson/requests"

	"github.com/linesmerrill/lead-push/models"
)

// HTTPRegistry talks to the device endpoints of the push API
type HTTPRegistry struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

// NewHTTPRegistry returns a client authenticating with the bearer token
func NewHTTPRegistry(baseURL, token string) *HTTPRegistry {
	return &HTTPRegistry{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Upsert registers the device
func (h *HTTPRegistry) Upsert(ctx context.Context, req models.DeviceRequest) (models.DeviceRegistration, error) {
	var device models.DeviceRegistration
	err := requests.URL(h.BaseURL).
		Client(h.Client).
		Path("/api/v1/push/devices").
		Bearer(h.Token).
		BodyJSON(&req).
		ToJSON(&device).
		Fetch(ctx)
	return device, err
}

// Remove deletes the device
func (h *HTTPRegistry) Remove(ctx context.Context, deviceID string) error {
	return requests.URL(h.BaseURL).
		Client(h.Client).
		Pathf("/api/v1/push/devices/%s", deviceID).
		Method(http.MethodDelete).
		Bearer(h.Token).
		Fetch(ctx)
}

// PublicKey fetches the VAPID public key the server signs pushes with
func (h *HTTPRegistry) PublicKey(ctx context.Context) (string, error) {
	var resp struct {
		PublicKey string `json:"publicKey"`
	}
	err := requests.URL(h.BaseURL).
		Client(h.Client).
		Path("/api/v1/push/vapid-public-key").
		ToJSON(&resp).
		Fetch(ctx)
	return resp.PublicKey, err
}
