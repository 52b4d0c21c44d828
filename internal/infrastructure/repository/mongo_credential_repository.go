package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"helpdesk-integration-layer/internal/domain"
	"helpdesk-integration-layer/internal/infrastructure/repository/entity"
	"helpdesk-integration-layer/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCredentialRepository implements CredentialRepository using MongoDB
type MongoCredentialRepository struct {
	collection *mongo.Collection
	enc        ports.EncryptionService
}

// NewMongoCredentialRepository creates a new MongoDB credential repository
func NewMongoCredentialRepository(db *mongo.Database, enc ports.EncryptionService) *MongoCredentialRepository {
	return &MongoCredentialRepository{
		collection: db.Collection("integrations"),
		enc:        enc,
	}
}

// EnsureIndexes creates the (userId, platform) uniqueness index and the shop lookup index
func (r *MongoCredentialRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "platform", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "platform", Value: 1}, {Key: "shopDomain", Value: 1}},
		},
	})
	if err != nil {
		return storeError("create integration indexes", err)
	}
	return nil
}

func (r *MongoCredentialRepository) Get(ctx context.Context, userID string, platform domain.Platform) (*domain.IntegrationCredential, error) {
	return r.findOne(ctx, bson.M{"userId": userID, "platform": platform.String()})
}

func (r *MongoCredentialRepository) FindByShopDomain(ctx context.Context, platform domain.Platform, shopDomain string) (*domain.IntegrationCredential, error) {
	latest := options.FindOne().SetSort(bson.D{{Key: "updatedAt", Value: -1}, {Key: "userId", Value: 1}})
	return r.findOne(ctx, bson.M{"platform": platform.String(), "shopDomain": shopDomain}, latest)
}

func (r *MongoCredentialRepository) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*domain.IntegrationCredential, error) {
	var doc entity.MongoCredentialDoc
	err := r.collection.FindOne(ctx, filter, opts...).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storeError("get credential", err)
	}
	return doc.ToDomain(r.enc)
}

func (r *MongoCredentialRepository) ListByUser(ctx context.Context, userID string) ([]*domain.IntegrationCredential, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, storeError("list credentials", err)
	}
	defer cursor.Close(ctx)

	var creds []*domain.IntegrationCredential
	for cursor.Next(ctx) {
		var doc entity.MongoCredentialDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode credential: %w", err)
		}
		cred, err := doc.ToDomain(r.enc)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	if err := cursor.Err(); err != nil {
		return nil, storeError("iterate credentials", err)
	}
	return creds, nil
}

// Upsert replaces the record for (userId, platform) in a single atomic update
func (r *MongoCredentialRepository) Upsert(ctx context.Context, cred *domain.IntegrationCredential) error {
	doc, err := entity.MongoCredentialDocFromDomain(cred, r.enc)
	if err != nil {
		return err
	}

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"userId": cred.UserID, "platform": cred.Platform.String()}
	update := bson.M{"$set": doc}

	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return storeError("save credential", err)
	}
	return nil
}

func (r *MongoCredentialRepository) CompareAndSwap(ctx context.Context, cred *domain.IntegrationCredential, expectedUpdatedAt time.Time) error {
	doc, err := entity.MongoCredentialDocFromDomain(cred, r.enc)
	if err != nil {
		return err
	}

	key := bson.M{"userId": cred.UserID, "platform": cred.Platform.String()}
	filter := bson.M{"userId": cred.UserID, "platform": cred.Platform.String(), "updatedAt": expectedUpdatedAt}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": doc})
	if err != nil {
		return storeError("update credential", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	n, err := r.collection.CountDocuments(ctx, key)
	if err != nil {
		return storeError("check credential", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

func (r *MongoCredentialRepository) Delete(ctx context.Context, userID string, platform domain.Platform) error {
	filter := bson.M{"userId": userID, "platform": platform.String()}
	if _, err := r.collection.DeleteOne(ctx, filter); err != nil {
		return storeError("delete credential", err)
	}
	return nil
}
