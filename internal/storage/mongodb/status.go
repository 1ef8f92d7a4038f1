package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/tournevent/cargoconnect/pkg/shipper"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// StatusStore keeps one shipping information document per order.
type StatusStore struct {
	collection *mongo.Collection
}

// NewStatusStore creates the store and its indexes.
func NewStatusStore(ctx context.Context, db *mongo.Database) (*StatusStore, error) {
	s := &StatusStore{collection: db.Collection(StatusCollection)}
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "shippingStatus", Value: 1}}},
		{Keys: bson.D{{Key: "transactionId", Value: 1}}},
	}
	if _, err := s.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("failed to create shipping information indexes: %w", err)
	}
	return s, nil
}

// Save replaces the order's record.
func (s *StatusStore) Save(ctx context.Context, info *shipper.ShippingInformation) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := s.collection.ReplaceOne(ctx, bson.M{"_id": info.OrderID}, toShippingInfoDoc(info), opts); err != nil {
		return fmt.Errorf("failed to save shipping information of order %d: %w", info.OrderID, err)
	}
	return nil
}

// Get returns nil, nil when the order has no record.
func (s *StatusStore) Get(ctx context.Context, orderID int) (*shipper.ShippingInformation, error) {
	var doc shippingInfoDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": orderID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shipping information of order %d: %w", orderID, err)
	}
	return doc.toShippingInformation(), nil
}

// Reset removes the order's record.
func (s *StatusStore) Reset(ctx context.Context, orderID int) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": orderID}); err != nil {
		return fmt.Errorf("failed to reset shipping information of order %d: %w", orderID, err)
	}
	return nil
}

var _ shipper.StatusSink = (*StatusStore)(nil)
