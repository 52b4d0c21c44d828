package entity

import (
	"time"

	"helpdesk-integration-layer/internal/domain"
	"helpdesk-integration-layer/internal/ports"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoCredentialDoc represents an integration credential in MongoDB
type MongoCredentialDoc struct {
	ObjectID    primitive.ObjectID `bson:"_id,omitempty"`
	ID          string             `bson:"id"`
	UserID      string             `bson:"userId"`
	Platform    string             `bson:"platform"`
	ShopDomain  string             `bson:"shopDomain,omitempty"`
	Credentials string             `bson:"credentials"`
	Status      string             `bson:"status"`
	ConnectedAt time.Time          `bson:"connectedAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoCredentialDoc) ToDomain(enc ports.EncryptionService) (*domain.IntegrationCredential, error) {
	cred := &domain.IntegrationCredential{
		ID:          d.ID,
		UserID:      d.UserID,
		Platform:    domain.Platform(d.Platform),
		Status:      domain.Status(d.Status),
		ConnectedAt: d.ConnectedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
	if err := OpenCredential([]byte(d.Credentials), cred, enc); err != nil {
		return nil, err
	}
	return cred, nil
}

// MongoCredentialDocFromDomain converts a domain entity to a MongoDB document
func MongoCredentialDocFromDomain(cred *domain.IntegrationCredential, enc ports.EncryptionService) (*MongoCredentialDoc, error) {
	payload, err := SealCredential(cred, enc)
	if err != nil {
		return nil, err
	}
	return &MongoCredentialDoc{
		ID:          cred.ID,
		UserID:      cred.UserID,
		Platform:    cred.Platform.String(),
		ShopDomain:  cred.ExtraString(domain.ExtraShopDomain),
		Credentials: string(payload),
		Status:      string(cred.Status),
		ConnectedAt: cred.ConnectedAt,
		UpdatedAt:   cred.UpdatedAt,
	}, nil
}

// MongoOAuthStateDoc represents an authorization nonce in MongoDB
type MongoOAuthStateDoc struct {
	State      string    `bson:"_id"`
	UserID     string    `bson:"userId"`
	Platform   string    `bson:"platform"`
	ShopDomain string    `bson:"shopDomain"`
	CreatedAt  time.Time `bson:"createdAt"`
	ExpiresAt  time.Time `bson:"expiresAt"`
}

func (d *MongoOAuthStateDoc) ToDomain() *domain.OAuthState {
	return &domain.OAuthState{
		State:      d.State,
		UserID:     d.UserID,
		Platform:   domain.Platform(d.Platform),
		ShopDomain: d.ShopDomain,
		CreatedAt:  d.CreatedAt.UTC(),
		ExpiresAt:  d.ExpiresAt.UTC(),
	}
}

func MongoOAuthStateDocFromDomain(s *domain.OAuthState) *MongoOAuthStateDoc {
	return &MongoOAuthStateDoc{
		State:      s.State,
		UserID:     s.UserID,
		Platform:   s.Platform.String(),
		ShopDomain: s.ShopDomain,
		CreatedAt:  s.CreatedAt,
		ExpiresAt:  s.ExpiresAt,
	}
}

// MongoOrderDoc represents a webhook-derived order in MongoDB
type MongoOrderDoc struct {
	ID              string    `bson:"_id,omitempty"`
	UserID          string    `bson:"userId"`
	IntegrationID   string    `bson:"integrationId"`
	ShopDomain      string    `bson:"shopDomain"`
	OrderID         int64     `bson:"orderId"`
	OrderNumber     int64     `bson:"orderNumber"`
	CustomerEmail   string    `bson:"customerEmail"`
	CustomerName    string    `bson:"customerName"`
	TotalPrice      string    `bson:"totalPrice"`
	Currency        string    `bson:"currency"`
	FinancialStatus string    `bson:"financialStatus"`
	CreatedAt       time.Time `bson:"createdAt"`
	UpdatedAt       time.Time `bson:"updatedAt"`
}

func MongoOrderDocFromDomain(o *domain.ShopifyOrder) *MongoOrderDoc {
	return &MongoOrderDoc{
		ID:              o.ID,
		UserID:          o.UserID,
		IntegrationID:   o.IntegrationID,
		ShopDomain:      o.ShopDomain,
		OrderID:         o.OrderID,
		OrderNumber:     o.OrderNumber,
		CustomerEmail:   o.CustomerEmail,
		CustomerName:    o.CustomerName,
		TotalPrice:      o.TotalPrice,
		Currency:        o.Currency,
		FinancialStatus: o.FinancialStatus,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

// MongoEmailActivityDoc represents a queued email in MongoDB
type MongoEmailActivityDoc struct {
	ID             string    `bson:"_id"`
	UserID         string    `bson:"userId"`
	IntegrationID  string    `bson:"integrationId"`
	RecipientEmail string    `bson:"recipientEmail"`
	Subject        string    `bson:"subject"`
	Intent         string    `bson:"intent"`
	Status         string    `bson:"status"`
	CreatedAt      time.Time `bson:"createdAt"`
}

func MongoEmailActivityDocFromDomain(a *domain.EmailActivity) *MongoEmailActivityDoc {
	return &MongoEmailActivityDoc{
		ID:             a.ID,
		UserID:         a.UserID,
		IntegrationID:  a.IntegrationID,
		RecipientEmail: a.RecipientEmail,
		Subject:        a.Subject,
		Intent:         a.Intent,
		Status:         a.Status,
		CreatedAt:      a.CreatedAt,
	}
}
