package config

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/linesmerrill/lead-push/models"
)

const (
	defaultPort            = "8080"
	defaultRegistryBackend = "mongo"
	defaultPushTTL         = 60 * 60 * 24
	defaultPushUrgency     = "normal"
	defaultSendTimeout     = 15 * time.Second
	defaultRequestTimeout  = 30 * time.Second
	defaultHealthCron      = "@every 1h"
)

// Config holds the project config values
type Config struct {
	Env             string
	URL             string
	DatabaseName    string
	BaseURL         string
	Port            string
	RegistryBackend string

	VAPID VAPID
	Push  Push

	JWTSecret         string
	ServiceClientID   string
	ServiceSecretHash string

	RequestTimeout time.Duration
	HealthCron     string
}

// VAPID is the key pair identifying this server to the push network, plus the
// contact the push services can reach us at.
type VAPID struct {
	PublicKey  string
	PrivateKey string
	Subject    string
}

// Configured reports whether both halves of the key pair are present.
func (v VAPID) Configured() bool {
	return strings.TrimSpace(v.PublicKey) != "" && strings.TrimSpace(v.PrivateKey) != ""
}

// Push holds tuning for outgoing web push requests
type Push struct {
	TTL            int
	Urgency        string
	MaxConcurrency int
	SendTimeout    time.Duration
}

// New sets up all config related services
func New() *Config {
	v := NewViper()

	//setup zap logger and replace default logger
	logger, err := setLogger(v.GetString("env"))
	if err != nil {
		logger = zap.NewExample()
	}
	_ = zap.ReplaceGlobals(logger)

	return Load(v)
}

// NewViper returns a viper instance reading the environment with defaults applied.
func NewViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("port", defaultPort)
	v.SetDefault("registry_backend", defaultRegistryBackend)
	v.SetDefault("push_ttl_seconds", defaultPushTTL)
	v.SetDefault("push_urgency", defaultPushUrgency)
	v.SetDefault("push_max_concurrency", 0)
	v.SetDefault("push_send_timeout", defaultSendTimeout)
	v.SetDefault("request_timeout", defaultRequestTimeout)
	v.SetDefault("health_cron", defaultHealthCron)
	return v
}

// Load reads every config value out of v.
func Load(v *viper.Viper) *Config {
	return &Config{
		Env:             v.GetString("env"),
		URL:             v.GetString("db_uri"),
		DatabaseName:    v.GetString("db_name"),
		BaseURL:         v.GetString("base_url"),
		Port:            v.GetString("port"),
		RegistryBackend: strings.ToLower(v.GetString("registry_backend")),
		VAPID: VAPID{
			PublicKey:  v.GetString("vapid_public_key"),
			PrivateKey: v.GetString("vapid_private_key"),
			Subject:    v.GetString("vapid_subject"),
		},
		Push: Push{
			TTL:            v.GetInt("push_ttl_seconds"),
			Urgency:        v.GetString("push_urgency"),
			MaxConcurrency: v.GetInt("push_max_concurrency"),
			SendTimeout:    v.GetDuration("push_send_timeout"),
		},
		JWTSecret:         v.GetString("jwt_secret"),
		ServiceClientID:   v.GetString("service_client_id"),
		ServiceSecretHash: v.GetString("service_secret_hash"),
		RequestTimeout:    v.GetDuration("request_timeout"),
		HealthCron:        v.GetString("health_cron"),
	}
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().With("error", err).Error(message)
	resp := models.ErrorMessageResponse{Response: models.MessageError{Message: message}}
	if err != nil {
		resp.Response.Error = err.Error()
	}
	b, _ := json.Marshal(resp)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	w.Write(b)
}
