package databases

// go generate: mockery --name DeviceDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/lead-push/models"
)

const deviceCollectionName = "devices"

// DeviceDatabase contains the methods to use with the device database
type DeviceDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.DeviceRegistration, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.DeviceRegistration, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(context.Context, interface{}, ...*options.DeleteOptions) (int64, error)
	CountDocuments(context.Context, interface{}) (int64, error)
	EnsureIndexes(context.Context) error
}

type deviceDatabase struct {
	db DatabaseHelper
}

// NewDeviceDatabase initializes a new instance of device database with the provided db connection
func NewDeviceDatabase(db DatabaseHelper) DeviceDatabase {
	return &deviceDatabase{
		db: db,
	}
}

func (d *deviceDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.DeviceRegistration, error) {
	device := &models.DeviceRegistration{}
	err := d.db.Collection(deviceCollectionName).FindOne(ctx, filter, opts...).Decode(&device)
	if err != nil {
		return nil, err
	}
	return device, nil
}

func (d *deviceDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.DeviceRegistration, error) {
	var devices []models.DeviceRegistration
	cur, err := d.db.Collection(deviceCollectionName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cur.Decode(&devices)
	if err != nil {
		return nil, err
	}
	return devices, nil
}

func (d *deviceDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return d.db.Collection(deviceCollectionName).UpdateOne(ctx, filter, update, opts...)
}

func (d *deviceDatabase) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error) {
	return d.db.Collection(deviceCollectionName).DeleteOne(ctx, filter, opts...)
}

func (d *deviceDatabase) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	return d.db.Collection(deviceCollectionName).CountDocuments(ctx, filter)
}

// EnsureIndexes creates the unique (userId, endpoint) index the registry relies
// on to never hold two rows for the same installation.
func (d *deviceDatabase) EnsureIndexes(ctx context.Context) error {
	coll := d.db.Collection(deviceCollectionName)
	_, err := coll.CreateIndex(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "subscription.endpoint", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("user_endpoint_unique"),
	})
	if err != nil {
		return err
	}
	_, err = coll.CreateIndex(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "isActive", Value: 1}},
		Options: options.Index().SetName("user_active"),
	})
	return err
}
