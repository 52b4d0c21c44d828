package repository

import (
	"context"
	"errors"
	"time"

	"helpdesk-integration-layer/internal/domain"
	"helpdesk-integration-layer/internal/infrastructure/repository/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// forensicRetention keeps expired nonces around long enough to report state_expired instead of invalid_state
const forensicRetention = time.Hour

// MongoOAuthStateRepository implements OAuthStateRepository using MongoDB
type MongoOAuthStateRepository struct {
	collection *mongo.Collection
}

func NewMongoOAuthStateRepository(db *mongo.Database) *MongoOAuthStateRepository {
	return &MongoOAuthStateRepository{
		collection: db.Collection("oauth_states"),
	}
}

// EnsureIndexes adds a TTL index so abandoned nonces disappear even without the sweeper
func (r *MongoOAuthStateRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(forensicRetention.Seconds())),
	})
	if err != nil {
		return storeError("create oauth state indexes", err)
	}
	return nil
}

func (r *MongoOAuthStateRepository) Save(ctx context.Context, state *domain.OAuthState) error {
	if _, err := r.collection.InsertOne(ctx, entity.MongoOAuthStateDocFromDomain(state)); err != nil {
		return storeError("save oauth state", err)
	}
	return nil
}

// Take removes and returns the nonce in one round trip so it can only be used once
func (r *MongoOAuthStateRepository) Take(ctx context.Context, state string) (*domain.OAuthState, error) {
	var doc entity.MongoOAuthStateDoc
	err := r.collection.FindOneAndDelete(ctx, bson.M{"_id": state}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storeError("take oauth state", err)
	}
	return doc.ToDomain(), nil
}

func (r *MongoOAuthStateRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lte": before}})
	if err != nil {
		return 0, storeError("delete expired oauth states", err)
	}
	return result.DeletedCount, nil
}
