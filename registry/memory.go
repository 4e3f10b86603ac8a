package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/lead-push/models"
)

// MemoryRegistry keeps devices in process. Used with REGISTRY_BACKEND=memory
// and in tests.
type MemoryRegistry struct {
	mu      sync.Mutex
	devices map[primitive.ObjectID]*models.DeviceRegistration
	byKey   map[string]primitive.ObjectID
	now     func() time.Time
}

// NewMemoryRegistry returns an empty registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		devices: make(map[primitive.ObjectID]*models.DeviceRegistration),
		byKey:   make(map[string]primitive.ObjectID),
		now:     time.Now,
	}
}

func naturalKey(userID, endpoint string) string {
	return userID + "\x00" + endpoint
}

// Upsert inserts or refreshes the row keyed by (userID, endpoint)
func (m *MemoryRegistry) Upsert(_ context.Context, userID, deviceName string, deviceType models.DeviceType, sub models.Subscription) (models.DeviceRegistration, bool, error) {
	if err := validateUpsert(userID, sub); err != nil {
		return models.DeviceRegistration{}, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := primitive.NewDateTimeFromTime(m.now())
	key := naturalKey(userID, sub.Endpoint)
	if id, ok := m.byKey[key]; ok {
		d := m.devices[id]
		d.DeviceName = deviceName
		d.DeviceType = deviceType
		d.Subscription = sub
		d.IsActive = true
		d.UpdatedAt = now
		return *d, false, nil
	}

	d := &models.DeviceRegistration{
		ID:           primitive.NewObjectID(),
		UserID:       userID,
		DeviceName:   deviceName,
		DeviceType:   deviceType,
		Subscription: sub,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.devices[d.ID] = d
	m.byKey[key] = d.ID
	return *d, true, nil
}

// ListActiveByUser returns active devices of userID
func (m *MemoryRegistry) ListActiveByUser(_ context.Context, userID string) ([]models.DeviceRegistration, error) {
	return m.list(func(d *models.DeviceRegistration) bool {
		return d.UserID == userID && d.IsActive
	}), nil
}

// ListByUser returns all devices of userID, most recently updated first
func (m *MemoryRegistry) ListByUser(_ context.Context, userID string) ([]models.DeviceRegistration, error) {
	return m.list(func(d *models.DeviceRegistration) bool {
		return d.UserID == userID
	}), nil
}

// Get returns the device with deviceID
func (m *MemoryRegistry) Get(_ context.Context, deviceID string) (models.DeviceRegistration, error) {
	id, err := parseID(deviceID)
	if err != nil {
		return models.DeviceRegistration{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return models.DeviceRegistration{}, fmt.Errorf("%w: %s", models.ErrNotFound, deviceID)
	}
	return *d, nil
}

// Deactivate flips isActive off, leaving inactive or unknown rows untouched
func (m *MemoryRegistry) Deactivate(_ context.Context, deviceID string) error {
	id, err := parseID(deviceID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.devices[id]; ok && d.IsActive {
		d.IsActive = false
		d.UpdatedAt = primitive.NewDateTimeFromTime(m.now())
	}
	return nil
}

// Remove deletes the row for deviceID
func (m *MemoryRegistry) Remove(_ context.Context, deviceID string) (bool, error) {
	id, err := parseID(deviceID)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", models.ErrNotFound, deviceID)
	}
	delete(m.byKey, naturalKey(d.UserID, d.Subscription.Endpoint))
	delete(m.devices, id)
	return true, nil
}

// FindByEndpoint returns the most recently updated row for endpoint
func (m *MemoryRegistry) FindByEndpoint(_ context.Context, endpoint string) (models.DeviceRegistration, error) {
	found := m.list(func(d *models.DeviceRegistration) bool {
		return d.Subscription.Endpoint == endpoint
	})
	if len(found) == 0 {
		return models.DeviceRegistration{}, fmt.Errorf("%w: %s", models.ErrNotFound, endpoint)
	}
	return found[0], nil
}

// Stats counts active and inactive rows
func (m *MemoryRegistry) Stats(_ context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s Stats
	for _, d := range m.devices {
		if d.IsActive {
			s.Active++
		} else {
			s.Inactive++
		}
	}
	return s, nil
}

func (m *MemoryRegistry) list(match func(*models.DeviceRegistration) bool) []models.DeviceRegistration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.DeviceRegistration, 0)
	for _, d := range m.devices {
		if match(d) {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt > out[j].UpdatedAt })
	return out
}
