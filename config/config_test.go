package config

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/lead-push/models"
)

func TestNew(t *testing.T) {
	t.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	t.Setenv("DB_NAME", "test")
	conf := New()

	assert.Equal(t, "mongodb://127.0.0.1:27017", conf.URL)
	assert.Equal(t, "test", conf.DatabaseName)
}

func TestLoadDefaults(t *testing.T) {
	conf := Load(NewViper())

	assert.Equal(t, "8080", conf.Port)
	assert.Equal(t, "mongo", conf.RegistryBackend)
	assert.Equal(t, 86400, conf.Push.TTL)
	assert.Equal(t, "normal", conf.Push.Urgency)
	assert.Equal(t, 0, conf.Push.MaxConcurrency)
	assert.Equal(t, 15*time.Second, conf.Push.SendTimeout)
	assert.Equal(t, 30*time.Second, conf.RequestTimeout)
	assert.Equal(t, "@every 1h", conf.HealthCron)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("REGISTRY_BACKEND", "Memory")
	t.Setenv("VAPID_PUBLIC_KEY", "pub")
	t.Setenv("VAPID_PRIVATE_KEY", "priv")
	t.Setenv("VAPID_SUBJECT", "mailto:ops@example.com")
	t.Setenv("PUSH_MAX_CONCURRENCY", "8")
	t.Setenv("PUSH_SEND_TIMEOUT", "5s")
	t.Setenv("JWT_SECRET", "shh")

	conf := Load(NewViper())

	assert.Equal(t, "memory", conf.RegistryBackend)
	assert.Equal(t, VAPID{PublicKey: "pub", PrivateKey: "priv", Subject: "mailto:ops@example.com"}, conf.VAPID)
	assert.Equal(t, 8, conf.Push.MaxConcurrency)
	assert.Equal(t, 5*time.Second, conf.Push.SendTimeout)
	assert.Equal(t, "shh", conf.JWTSecret)
}

func TestVAPIDConfigured(t *testing.T) {
	assert.True(t, VAPID{PublicKey: "a", PrivateKey: "b"}.Configured())
	assert.False(t, VAPID{PublicKey: "a"}.Configured())
	assert.False(t, VAPID{PublicKey: " ", PrivateKey: "b"}.Configured())
	assert.False(t, VAPID{}.Configured())
}

func TestErrorStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	ErrorStatus("error it borked", http.StatusBadRequest, rr, errors.New("bad request"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body models.ErrorMessageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "error it borked", body.Response.Message)
	assert.Equal(t, "bad request", body.Response.Error)
}

func TestSetLoggerSetsDevelopmentLogger(t *testing.T) {
	l, err := setLogger("development")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(-1))
}

func TestSetLoggerSetsProductionLogger(t *testing.T) {
	l, err := setLogger("production")
	assert.NoError(t, err)
	assert.False(t, l.Core().Enabled(-1))
	assert.True(t, l.Core().Enabled(0))
}

func TestSetLoggerSetsLocalLogger(t *testing.T) {
	l, err := setLogger("local")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(-1))
}
