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

// OrderRepository reads orders, packages and package types and writes back
// package tracking data.
type OrderRepository struct {
	orders       *mongo.Collection
	packages     *mongo.Collection
	packageTypes *mongo.Collection
}

// NewOrderRepository creates the repository and its indexes.
func NewOrderRepository(ctx context.Context, db *mongo.Database) (*OrderRepository, error) {
	repo := &OrderRepository{
		orders:       db.Collection(OrdersCollection),
		packages:     db.Collection(PackagesCollection),
		packageTypes: db.Collection(PackageTypesCollection),
	}
	if err := repo.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *OrderRepository) ensureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "orderId", Value: 1}}},
		{Keys: bson.D{{Key: "packageNumber", Value: 1}}},
	}
	if _, err := r.packages.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create package indexes: %w", err)
	}
	return nil
}

// FindOrder returns ErrOrderNotFound for unknown ids.
func (r *OrderRepository) FindOrder(ctx context.Context, orderID int) (*shipper.Order, error) {
	var doc orderDoc
	err := r.orders.FindOne(ctx, bson.M{"_id": orderID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("order %d: %w", orderID, shipper.ErrOrderNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order %d: %w", orderID, err)
	}
	return doc.toOrder(), nil
}

// ListPackages returns the order's packages ordered by package id.
func (r *OrderRepository) ListPackages(ctx context.Context, orderID int) ([]shipper.OrderPackage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.packages.Find(ctx, bson.M{"orderId": orderID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages of order %d: %w", orderID, err)
	}
	defer cursor.Close(ctx)

	var docs []packageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode packages of order %d: %w", orderID, err)
	}

	out := make([]shipper.OrderPackage, len(docs))
	for i, d := range docs {
		out[i] = d.toPackage()
	}
	return out, nil
}

// UpdatePackage sets a package's tracking number and label path.
func (r *OrderRepository) UpdatePackage(ctx context.Context, packageID int, packageNumber, labelPath string) error {
	update := bson.M{"$set": bson.M{
		"packageNumber": packageNumber,
		"labelPath":     labelPath,
	}}
	res, err := r.packages.UpdateOne(ctx, bson.M{"_id": packageID}, update)
	if err != nil {
		return fmt.Errorf("failed to update package %d: %w", packageID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("package %d not found", packageID)
	}
	return nil
}

// FindPackageType returns nil, nil for unknown ids.
func (r *OrderRepository) FindPackageType(ctx context.Context, packageTypeID int) (*shipper.PackageType, error) {
	var doc packageTypeDoc
	err := r.packageTypes.FindOne(ctx, bson.M{"_id": packageTypeID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find package type %d: %w", packageTypeID, err)
	}
	return doc.toPackageType(), nil
}

// SaveOrder upserts an order.
func (r *OrderRepository) SaveOrder(ctx context.Context, order *shipper.Order) error {
	return upsert(ctx, r.orders, order.ID, toOrderDoc(order))
}

// SavePackage upserts a package.
func (r *OrderRepository) SavePackage(ctx context.Context, pkg shipper.OrderPackage) error {
	return upsert(ctx, r.packages, pkg.ID, toPackageDoc(pkg))
}

// SavePackageType upserts a package type.
func (r *OrderRepository) SavePackageType(ctx context.Context, t shipper.PackageType) error {
	return upsert(ctx, r.packageTypes, t.ID, toPackageTypeDoc(t))
}

func upsert(ctx context.Context, coll *mongo.Collection, id int, doc interface{}) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, opts); err != nil {
		return fmt.Errorf("failed to save %s %d: %w", coll.Name(), id, err)
	}
	return nil
}

var (
	_ shipper.OrderSource         = (*OrderRepository)(nil)
	_ shipper.PackageTypeResolver = (*OrderRepository)(nil)
)
