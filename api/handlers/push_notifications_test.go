package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/lead-push/api"
	"github.com/linesmerrill/lead-push/config"
	"github.com/linesmerrill/lead-push/models"
	"github.com/linesmerrill/lead-push/registry"
)

func deviceBody(endpoint string) string {
	return fmt.Sprintf(`{"deviceName":"Chrome on Mac","deviceType":"Desktop","subscription":{"endpoint":%q,"keys":{"p256dh":"BNc","auth":"secret"}}}`, endpoint)
}

func decodeDevice(t *testing.T, rr *httptest.ResponseRecorder) models.DeviceRegistration {
	t.Helper()
	var d models.DeviceRegistration
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &d))
	return d
}

func TestVAPIDPublicKeyHandler(t *testing.T) {
	rr := serve(newTestApp(t, testVAPID, nil), httptest.NewRequest("GET", "/api/v1/push/vapid-public-key", nil))

	checkResponseCode(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"publicKey":"BPublicKey"}`, rr.Body.String())
}

func TestVAPIDPublicKeyHandlerUnconfigured(t *testing.T) {
	rr := serve(newTestApp(t, config.VAPID{}, nil), httptest.NewRequest("GET", "/api/v1/push/vapid-public-key", nil))

	checkResponseCode(t, http.StatusServiceUnavailable, rr.Code)
}

func TestSubscribeDeviceHandlerCreatesThenRefreshes(t *testing.T) {
	app := newTestApp(t, testVAPID, nil)

	rr := serve(app, authed(t, "POST", "/api/v1/push/devices", "user-1", deviceBody("https://push.example.com/a")))
	checkResponseCode(t, http.StatusCreated, rr.Code)
	first := decodeDevice(t, rr)
	assert.Equal(t, "user-1", first.UserID)
	assert.Equal(t, models.DeviceTypeDesktop, first.DeviceType)
	assert.True(t, first.IsActive)

	rr = serve(app, authed(t, "POST", "/api/v1/push/devices", "user-1", deviceBody("https://push.example.com/a")))
	checkResponseCode(t, http.StatusOK, rr.Code)
	assert.Equal(t, first.ID, decodeDevice(t, rr).ID)

	devices, err := app.Registry.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, devices, 1)
}

func TestSubscribeDeviceHandlerRejectsInvalidInput(t *testing.T) {
	app := newTestApp(t, testVAPID, nil)

	tests := map[string]string{
		"bad json":         `{"deviceName":`,
		"missing endpoint": deviceBody(""),
		"relative url":     deviceBody("/not/absolute"),
		"missing keys":     `{"deviceName":"x","subscription":{"endpoint":"https://push.example.com/a"}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rr := serve(app, authed(t, "POST", "/api/v1/push/devices", "user-1", body))
			checkResponseCode(t, http.StatusBadRequest, rr.Code)
		})
	}

	stats, err := app.Registry.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, registry.Stats{}, stats)
}

func TestSubscribeDeviceHandlerForOtherUser(t *testing.T) {
	p := Push{Registry: registry.NewMemoryRegistry()}
	body := `{"userId":"user-2","deviceName":"x","subscription":{"endpoint":"https://push.example.com/a","keys":{"p256dh":"BNc","auth":"secret"}}}`

	req := httptest.NewRequest("POST", "/api/v1/push/devices", stringsReader(body))
	req = req.WithContext(api.WithPrincipal(req.Context(), api.Principal{UserID: "user-1"}))
	rr := httptest.NewRecorder()
	p.SubscribeDeviceHandler(rr, req)
	checkResponseCode(t, http.StatusForbidden, rr.Code)

	// services register on behalf of any user
	req = httptest.NewRequest("POST", "/api/v1/push/devices", stringsReader(body))
	req = req.WithContext(api.WithPrincipal(req.Context(), api.Principal{UserID: "lead-app", Service: true}))
	rr = httptest.NewRecorder()
	p.SubscribeDeviceHandler(rr, req)
	checkResponseCode(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "user-2", decodeDevice(t, rr).UserID)
}

func TestListDevicesHandler(t *testing.T) {
	app := newTestApp(t, testVAPID, nil)
	serve(app, authed(t, "POST", "/api/v1/push/devices", "user-1", deviceBody("https://push.example.com/a")))
	serve(app, authed(t, "POST", "/api/v1/push/devices", "user-1", deviceBody("https://push.example.com/b")))
	serve(app, authed(t, "POST", "/api/v1/push/devices", "user-2", deviceBody("https://push.example.com/c")))

	rr := serve(app, authed(t, "GET", "/api/v1/push/devices", "user-1", ""))

	checkResponseCode(t, http.StatusOK, rr.Code)
	var devices []models.DeviceRegistration
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &devices))
	assert.Len(t, devices, 2)
	for _, d := range devices {
		assert.Equal(t, "user-1", d.UserID)
	}
}

func TestUnsubscribeDeviceHandler(t *testing.T) {
	app := newTestApp(t, testVAPID, nil)
	rr := serve(app, authed(t, "POST", "/api/v1/push/devices", "user-1", deviceBody("https://push.example.com/a")))
	device := decodeDevice(t, rr)
	url := "/api/v1/push/devices/" + device.ID.Hex()

	rr = serve(app, authed(t, "DELETE", url, "user-2", ""))
	checkResponseCode(t, http.StatusNotFound, rr.Code)

	rr = serve(app, authed(t, "DELETE", url, "user-1", ""))
	checkResponseCode(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"removed":true}`, rr.Body.String())

	rr = serve(app, authed(t, "DELETE", url, "user-1", ""))
	checkResponseCode(t, http.StatusNotFound, rr.Code)

	rr = serve(app, authed(t, "DELETE", "/api/v1/push/devices/not-an-id", "user-1", ""))
	checkResponseCode(t, http.StatusBadRequest, rr.Code)
}

func TestDeliverHandler(t *testing.T) {
	app := newTestApp(t, testVAPID, staticSender{"https://push.example.com/gone": models.ResultSubscriptionExpired})
	serve(app, authed(t, "POST", "/api/v1/push/devices", "user-1", deviceBody("https://push.example.com/ok")))
	serve(app, authed(t, "POST", "/api/v1/push/devices", "user-1", deviceBody("https://push.example.com/gone")))

	rr := serve(app, authed(t, "POST", "/api/v1/push/users/user-1/deliver", "user-1", `{"title":"New lead","body":"Jane Doe"}`))

	checkResponseCode(t, http.StatusOK, rr.Code)
	var summary models.DeliverySummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.TotalDevices)
	assert.Equal(t, 1, summary.DeliveredCount)
	assert.NotEmpty(t, summary.NotificationID)

	active, err := app.Registry.ListActiveByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "https://push.example.com/ok", active[0].Subscription.Endpoint)
}

func TestDeliverHandlerNoDevices(t *testing.T) {
	rr := serve(newTestApp(t, testVAPID, nil), authed(t, "POST", "/api/v1/push/users/user-1/deliver", "user-1", `{"title":"x"}`))

	checkResponseCode(t, http.StatusOK, rr.Code)
	var summary models.DeliverySummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, 0, summary.TotalDevices)
	assert.Equal(t, 0, summary.DeliveredCount)
}

func TestDeliverHandlerForOtherUser(t *testing.T) {
	rr := serve(newTestApp(t, testVAPID, nil), authed(t, "POST", "/api/v1/push/users/user-2/deliver", "user-1", `{"title":"x"}`))

	checkResponseCode(t, http.StatusForbidden, rr.Code)
}

func TestDeliverHandlerUnconfigured(t *testing.T) {
	rr := serve(newTestApp(t, config.VAPID{}, nil), authed(t, "POST", "/api/v1/push/users/user-1/deliver", "user-1", `{"title":"x"}`))

	checkResponseCode(t, http.StatusServiceUnavailable, rr.Code)
	var body models.ErrorMessageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, models.ErrConfiguration.Error(), body.Response.Error)
}

type mockDeliverer struct {
	mock.Mock
}

func (m *mockDeliverer) Deliver(ctx context.Context, userID string, payload models.NotificationPayload) (models.DeliverySummary, error) {
	ret := m.Called(ctx, userID, payload)
	return ret.Get(0).(models.DeliverySummary), ret.Error(1)
}

func TestDeliverHandlerEngineFailure(t *testing.T) {
	engine := &mockDeliverer{}
	engine.On("Deliver", mock.Anything, "user-1", mock.Anything).
		Return(models.DeliverySummary{}, fmt.Errorf("failed to load devices: %s", "mongo is down"))
	p := Push{Engine: engine}

	req := httptest.NewRequest("POST", "/api/v1/push/users/user-1/deliver", stringsReader(`{"title":"x"}`))
	req = mux.SetURLVars(req, map[string]string{"user_id": "user-1"})
	req = req.WithContext(api.WithPrincipal(req.Context(), api.Principal{UserID: "svc", Service: true}))
	rr := httptest.NewRecorder()
	p.DeliverHandler(rr, req)

	checkResponseCode(t, http.StatusInternalServerError, rr.Code)
	engine.AssertExpectations(t)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(fmt.Errorf("x: %w", models.ErrValidation)))
	assert.Equal(t, http.StatusNotFound, statusFor(fmt.Errorf("x: %w", models.ErrNotFound)))
	assert.Equal(t, http.StatusForbidden, statusFor(models.ErrPermissionDenied))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(models.ErrConfiguration))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
