package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pfagent/internal/config"
	"pfagent/internal/domain"
	apperrors "pfagent/internal/errors"
)

const (
	licensesCollection = "licenses"
	auditsCollection   = "audits"
)

// MongoStores bundles the MongoDB-backed license and audit stores and owns
// the shared client connection.
type MongoStores struct {
	client   *mongo.Client
	Licenses *MongoLicenseStore
	Audits   *MongoAuditStore
}

// NewMongoStores connects to MongoDB, ensures indexes, and returns both
// stores. The caller must Close when done.
func NewMongoStores(ctx context.Context, cfg config.MongoConfig) (*MongoStores, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to connect to MongoDB", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, apperrors.NewStorageError("MongoDB unreachable", err)
	}

	db := client.Database(cfg.Database)
	stores := &MongoStores{
		client:   client,
		Licenses: &MongoLicenseStore{collection: db.Collection(licensesCollection)},
		Audits:   &MongoAuditStore{collection: db.Collection(auditsCollection)},
	}

	if err := stores.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return stores, nil
}

func (s *MongoStores) ensureIndexes(ctx context.Context) error {
	_, err := s.Licenses.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "instance_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return apperrors.NewStorageError("failed to create license index", err)
	}

	_, err = s.Audits.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "timestamp", Value: -1}},
	})
	if err != nil {
		return apperrors.NewStorageError("failed to create audit index", err)
	}
	return nil
}

// Close disconnects the underlying MongoDB client.
func (s *MongoStores) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// MongoLicenseStore is a MongoDB-backed LicenseStore.
type MongoLicenseStore struct {
	collection *mongo.Collection
}

// Upsert implements LicenseStore via a full-document ReplaceOne.
func (s *MongoLicenseStore) Upsert(ctx context.Context, record domain.LicenseRecord) error {
	_, err := s.collection.ReplaceOne(ctx,
		bson.M{"instance_id": record.InstanceID},
		record,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return apperrors.NewStorageError("failed to upsert license record", err).
			WithContext("instance_id", record.InstanceID)
	}
	return nil
}

// GetAll implements LicenseStore.
func (s *MongoLicenseStore) GetAll(ctx context.Context) ([]domain.LicenseRecord, error) {
	return s.find(ctx, bson.M{}, bson.D{{Key: "instance_id", Value: 1}})
}

// GetByInstance implements LicenseStore.
func (s *MongoLicenseStore) GetByInstance(ctx context.Context, instanceID string) (*domain.LicenseRecord, error) {
	var record domain.LicenseRecord
	err := s.collection.FindOne(ctx, bson.M{"instance_id": instanceID}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to load license record", err).
			WithContext("instance_id", instanceID)
	}
	return &record, nil
}

// GetByStatus implements LicenseStore.
func (s *MongoLicenseStore) GetByStatus(ctx context.Context, status domain.Status) ([]domain.LicenseRecord, error) {
	return s.find(ctx, bson.M{"status": status}, bson.D{{Key: "expiry_date", Value: 1}})
}

// GetExpiringSoon implements LicenseStore.
func (s *MongoLicenseStore) GetExpiringSoon(ctx context.Context, days int) ([]domain.LicenseRecord, error) {
	return s.find(ctx,
		bson.M{"days_to_expiry": bson.M{"$lte": days}},
		bson.D{{Key: "days_to_expiry", Value: 1}},
	)
}

func (s *MongoLicenseStore) find(ctx context.Context, filter bson.M, sort bson.D) ([]domain.LicenseRecord, error) {
	cursor, err := s.collection.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, apperrors.NewStorageError("failed to query license records", err)
	}
	defer cursor.Close(ctx)

	var records []domain.LicenseRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, apperrors.NewStorageError("failed to decode license records", err)
	}
	return records, nil
}

// MongoAuditStore is a MongoDB-backed AuditStore. Retention is delegated to
// the database; no cap is enforced at write time.
type MongoAuditStore struct {
	collection *mongo.Collection
}

// Append implements AuditStore.
func (s *MongoAuditStore) Append(ctx context.Context, record domain.AuditRecord) error {
	_, err := s.collection.InsertOne(ctx, record)
	if err != nil {
		return apperrors.NewStorageError("failed to insert audit record", err).
			WithContext("instance_id", record.InstanceID)
	}
	return nil
}

// Recent implements AuditStore.
func (s *MongoAuditStore) Recent(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	return s.find(ctx, bson.M{}, limit)
}

// ByInstance implements AuditStore.
func (s *MongoAuditStore) ByInstance(ctx context.Context, instanceID string, limit int) ([]domain.AuditRecord, error) {
	return s.find(ctx, bson.M{"instance_id": instanceID}, limit)
}

func (s *MongoAuditStore) find(ctx context.Context, filter bson.M, limit int) ([]domain.AuditRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to query audit records", err)
	}
	defer cursor.Close(ctx)

	var records []domain.AuditRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, apperrors.NewStorageError("failed to decode audit records", err)
	}
	return records, nil
}
