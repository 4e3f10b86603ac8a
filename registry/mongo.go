package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/lead-push/databases"
	"github.com/linesmerrill/lead-push/models"
)

// MongoRegistry stores devices in the devices collection. Every write is a
// single document update, so a row is never left half written.
type MongoRegistry struct {
	DB  databases.DeviceDatabase
	now func() time.Time
}

// NewMongoRegistry wraps db
func NewMongoRegistry(db databases.DeviceDatabase) *MongoRegistry {
	return &MongoRegistry{DB: db, now: time.Now}
}

// Upsert relies on the unique (userId, subscription.endpoint) index. Two
// concurrent first registrations race to insert; the loser retries as an update.
func (m *MongoRegistry) Upsert(ctx context.Context, userID, deviceName string, deviceType models.DeviceType, sub models.Subscription) (models.DeviceRegistration, bool, error) {
	if err := validateUpsert(userID, sub); err != nil {
		return models.DeviceRegistration{}, false, err
	}

	now := primitive.NewDateTimeFromTime(m.now())
	filter := bson.M{"userId": userID, "subscription.endpoint": sub.Endpoint}
	update := bson.M{
		"$set": bson.M{
			"deviceName":   deviceName,
			"deviceType":   deviceType,
			"subscription": sub,
			"isActive":     true,
			"updatedAt":    now,
		},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.Update().SetUpsert(true)

	res, err := m.DB.UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		res, err = m.DB.UpdateOne(ctx, filter, update, opts)
	}
	if err != nil {
		return models.DeviceRegistration{}, false, fmt.Errorf("failed to upsert device: %w", err)
	}

	device, err := m.DB.FindOne(ctx, filter)
	if err != nil {
		return models.DeviceRegistration{}, false, fmt.Errorf("failed to read back device: %w", err)
	}
	return *device, res.UpsertedCount > 0, nil
}

// ListActiveByUser returns active devices of userID
func (m *MongoRegistry) ListActiveByUser(ctx context.Context, userID string) ([]models.DeviceRegistration, error) {
	return m.DB.Find(ctx, bson.M{"userId": userID, "isActive": true})
}

// ListByUser returns all devices of userID, most recently updated first
func (m *MongoRegistry) ListByUser(ctx context.Context, userID string) ([]models.DeviceRegistration, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	return m.DB.Find(ctx, bson.M{"userId": userID}, opts)
}

// Get returns the device with deviceID
func (m *MongoRegistry) Get(ctx context.Context, deviceID string) (models.DeviceRegistration, error) {
	id, err := parseID(deviceID)
	if err != nil {
		return models.DeviceRegistration{}, err
	}
	device, err := m.DB.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		return models.DeviceRegistration{}, notFound(err, deviceID)
	}
	return *device, nil
}

// Deactivate only matches active rows so a repeat call leaves updatedAt alone
func (m *MongoRegistry) Deactivate(ctx context.Context, deviceID string) error {
	id, err := parseID(deviceID)
	if err != nil {
		return err
	}
	update := bson.M{"$set": bson.M{
		"isActive":  false,
		"updatedAt": primitive.NewDateTimeFromTime(m.now()),
	}}
	_, err = m.DB.UpdateOne(ctx, bson.M{"_id": id, "isActive": true}, update)
	if err != nil {
		return fmt.Errorf("failed to deactivate device %s: %w", deviceID, err)
	}
	return nil
}

// Remove deletes the row for deviceID
func (m *MongoRegistry) Remove(ctx context.Context, deviceID string) (bool, error) {
	id, err := parseID(deviceID)
	if err != nil {
		return false, err
	}
	deleted, err := m.DB.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to remove device %s: %w", deviceID, err)
	}
	if deleted == 0 {
		return false, fmt.Errorf("%w: %s", models.ErrNotFound, deviceID)
	}
	return true, nil
}

// FindByEndpoint returns the most recently updated row for endpoint
func (m *MongoRegistry) FindByEndpoint(ctx context.Context, endpoint string) (models.DeviceRegistration, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	device, err := m.DB.FindOne(ctx, bson.M{"subscription.endpoint": endpoint}, opts)
	if err != nil {
		return models.DeviceRegistration{}, notFound(err, endpoint)
	}
	return *device, nil
}

// Stats counts active and inactive rows
func (m *MongoRegistry) Stats(ctx context.Context) (Stats, error) {
	active, err := m.DB.CountDocuments(ctx, bson.M{"isActive": true})
	if err != nil {
		return Stats{}, err
	}
	inactive, err := m.DB.CountDocuments(ctx, bson.M{"isActive": false})
	if err != nil {
		return Stats{}, err
	}
	return Stats{Active: active, Inactive: inactive}, nil
}

func parseID(deviceID string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(deviceID)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: invalid device id %q", models.ErrValidation, deviceID)
	}
	return id, nil
}

func notFound(err error, key string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %s", models.ErrNotFound, key)
	}
	return err
}
