// Package bridge is the client half of push delivery. It registers the
// current device with the registry and relays push events that arrive while
// a session is open to the handlers of that session.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linesmerrill/lead-push/models"
)

// Permission is the local notification permission state
type Permission string

// Permission states as reported by the local agent
const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)

// State is the client observed registration state of this device
type State string

// Device states. A registry side deactivation is not observed here; the
// client recovers from it by subscribing again.
const (
	StateUnregistered State = "unregistered"
	StateActive       State = "active"
)

// Agent is the local push agent (service worker or OS push client)
type Agent interface {
	// RequestPermission prompts if needed and returns the resulting state.
	RequestPermission(ctx context.Context) (Permission, error)
	// Subscribe returns the existing local subscription or creates one
	// bound to applicationServerKey.
	Subscribe(ctx context.Context, applicationServerKey string) (models.Subscription, error)
	// Unsubscribe drops the local subscription.
	Unsubscribe(ctx context.Context) error
}

// RegistryClient is the server side registry as seen from the client
type RegistryClient interface {
	Upsert(ctx context.Context, req models.DeviceRequest) (models.DeviceRegistration, error)
	Remove(ctx context.Context, deviceID string) error
}

// Handler receives relayed push payloads
type Handler func(models.NotificationPayload)

// Bridge ties an Agent and a RegistryClient together for one client session
type Bridge struct {
	agent      Agent
	registry   RegistryClient
	publicKey  string
	deviceType models.DeviceType
	log        *zap.SugaredLogger

	mu       sync.RWMutex
	handlers map[string]Handler
	seen     *seenSet
	state    State
	deviceID string
}

// Option customizes a Bridge
type Option func(*Bridge)

// WithDeviceType sets the device type sent on registration
func WithDeviceType(t models.DeviceType) Option {
	return func(b *Bridge) { b.deviceType = t }
}

// WithLogger replaces the no-op logger
func WithLogger(log *zap.SugaredLogger) Option {
	return func(b *Bridge) { b.log = log }
}

// New builds a Bridge. publicKey is the VAPID public key of the server; an
// empty key makes SubscribeCurrentDevice fail with ErrConfiguration.
func New(agent Agent, registry RegistryClient, publicKey string, opts ...Option) *Bridge {
	b := &Bridge{
		agent:      agent,
		registry:   registry,
		publicKey:  publicKey,
		deviceType: models.DeviceTypeUnknown,
		log:        zap.NewNop().Sugar(),
		handlers:   make(map[string]Handler),
		seen:       newSeenSet(256),
		state:      StateUnregistered,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SubscribeCurrentDevice acquires permission, obtains a local subscription
// and registers it. Calling it again refreshes the same registry row.
func (b *Bridge) SubscribeCurrentDevice(ctx context.Context, userID, deviceName string) (models.DeviceRegistration, error) {
	if strings.TrimSpace(b.publicKey) == "" {
		return models.DeviceRegistration{}, models.ErrConfiguration
	}

	perm, err := b.agent.RequestPermission(ctx)
	if err != nil {
		return models.DeviceRegistration{}, fmt.Errorf("failed to request notification permission: %w", err)
	}
	if perm != PermissionGranted {
		return models.DeviceRegistration{}, models.ErrPermissionDenied
	}

	sub, err := b.agent.Subscribe(ctx, b.publicKey)
	if err != nil {
		return models.DeviceRegistration{}, fmt.Errorf("failed to create local subscription: %w", err)
	}

	device, err := b.registry.Upsert(ctx, models.DeviceRequest{
		UserID:       userID,
		DeviceName:   deviceName,
		DeviceType:   string(b.deviceType),
		Subscription: sub,
	})
	if err != nil {
		return models.DeviceRegistration{}, fmt.Errorf("%w: %w", models.ErrRegistry, err)
	}

	b.mu.Lock()
	b.state = StateActive
	b.deviceID = device.ID.Hex()
	b.mu.Unlock()
	return device, nil
}

// UnsubscribeCurrentDevice drops the local subscription if it can and always
// removes deviceID from the registry.
func (b *Bridge) UnsubscribeCurrentDevice(ctx context.Context, deviceID string) error {
	if err := b.agent.Unsubscribe(ctx); err != nil {
		b.log.Warnw("local unsubscribe failed, removing device anyway", "deviceId", deviceID, "error", err)
	}

	if err := b.registry.Remove(ctx, deviceID); err != nil {
		return fmt.Errorf("%w: %w", models.ErrRegistry, err)
	}

	b.mu.Lock()
	if b.deviceID == deviceID {
		b.state = StateUnregistered
		b.deviceID = ""
	}
	b.mu.Unlock()
	return nil
}

// State returns the registration state and the registered device id
func (b *Bridge) State() (State, string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state, b.deviceID
}

// OnForegroundMessage registers handler and returns the function removing it
func (b *Bridge) OnForegroundMessage(handler Handler) func() {
	id := uuid.New().String()
	b.mu.Lock()
	b.handlers[id] = handler
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// Dispatch hands a raw message from the local agent or the relay stream to
// the registered handlers. Messages without the push envelope are ignored,
// as are envelopes whose id was already dispatched. It reports whether the
// message was delivered to handlers.
func (b *Bridge) Dispatch(raw []byte) bool {
	var env struct {
		Type    string          `json:"type"`
		ID      string          `json:"id"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return false
	}
	if env.Type != models.ForegroundEnvelopeType || len(env.Payload) == 0 {
		return false
	}
	var payload models.NotificationPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		b.log.Debugw("dropping malformed push envelope", "error", err)
		return false
	}
	id := env.ID
	if id == "" {
		id = payload.ID
	}
	if id != "" && !b.seen.add(id) {
		return false
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(payload)
	}
	return true
}

// seenSet remembers the last n envelope ids
type seenSet struct {
	mu   sync.Mutex
	ids  map[string]struct{}
	ring []string
	next int
}

func newSeenSet(n int) *seenSet {
	return &seenSet{ids: make(map[string]struct{}, n), ring: make([]string, n)}
}

// add returns false when id was already present
func (s *seenSet) add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	if old := s.ring[s.next]; old != "" {
		delete(s.ids, old)
	}
	s.ring[s.next] = id
	s.ids[id] = struct{}{}
	s.next = (s.next + 1) % len(s.ring)
	return true
}
