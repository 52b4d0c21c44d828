package repository

import (
	"context"

	"helpdesk-integration-layer/internal/domain"
	"helpdesk-integration-layer/internal/infrastructure/repository/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoWebhookRecordRepository stores webhook-derived orders and email activity
type MongoWebhookRecordRepository struct {
	ordersCollection     *mongo.Collection
	activitiesCollection *mongo.Collection
}

func NewMongoWebhookRecordRepository(db *mongo.Database) *MongoWebhookRecordRepository {
	return &MongoWebhookRecordRepository{
		ordersCollection:     db.Collection("shopify_orders"),
		activitiesCollection: db.Collection("email_activity"),
	}
}

// SaveOrder upserts by (shopDomain, orderId) so orders/updated refreshes the same record
func (r *MongoWebhookRecordRepository) SaveOrder(ctx context.Context, order *domain.ShopifyOrder) error {
	doc := entity.MongoOrderDocFromDomain(order)
	id, createdAt := doc.ID, doc.CreatedAt
	doc.ID = ""

	set, err := toBSONMap(doc)
	if err != nil {
		return err
	}
	delete(set, "createdAt")

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"shopDomain": order.ShopDomain, "orderId": order.OrderID}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"_id": id, "createdAt": createdAt},
	}

	if _, err := r.ordersCollection.UpdateOne(ctx, filter, update, opts); err != nil {
		return storeError("save order", err)
	}
	return nil
}

func (r *MongoWebhookRecordRepository) SaveEmailActivity(ctx context.Context, activity *domain.EmailActivity) error {
	if _, err := r.activitiesCollection.InsertOne(ctx, entity.MongoEmailActivityDocFromDomain(activity)); err != nil {
		return storeError("save email activity", err)
	}
	return nil
}

func toBSONMap(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
