package bridge_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/lead-push/bridge"
	"github.com/linesmerrill/lead-push/models"
)

func TestHTTPRegistry_Upsert(t *testing.T) {
	id := primitive.NewObjectID()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/push/devices", r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))

		var req models.DeviceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, localSub, req.Subscription)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.DeviceRegistration{ID: id, UserID: req.UserID, IsActive: true})
	}))
	defer srv.Close()

	device, err := bridge.NewHTTPRegistry(srv.URL, "token-1").Upsert(context.Background(), models.DeviceRequest{
		UserID:       "user-1",
		DeviceName:   "Phone",
		Subscription: localSub,
	})

	require.NoError(t, err)
	assert.Equal(t, id, device.ID)
	assert.True(t, device.IsActive)
}

func TestHTTPRegistry_Remove(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		if r.URL.Path != "/api/v1/push/devices/device-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"removed":true}`))
	}))
	defer srv.Close()

	reg := bridge.NewHTTPRegistry(srv.URL, "token-1")

	assert.NoError(t, reg.Remove(context.Background(), "device-1"))
	assert.Error(t, reg.Remove(context.Background(), "device-2"))
}

func TestHTTPRegistry_PublicKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/push/vapid-public-key", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"publicKey":"BPub"}`))
	}))
	defer srv.Close()

	key, err := bridge.NewHTTPRegistry(srv.URL, "").PublicKey(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "BPub", key)
}
