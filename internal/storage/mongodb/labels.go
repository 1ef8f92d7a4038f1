package mongodb

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/tournevent/cargoconnect/pkg/shipper"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultLabelBucket is the GridFS bucket name for labels.
const DefaultLabelBucket = "labels"

// LabelBucket stores labels in GridFS under the filename
// "<namespace>/<key>". Re-uploading a name keeps only the newest revision.
type LabelBucket struct {
	name   string
	bucket *gridfs.Bucket
}

// NewLabelBucket opens the bucket.
func NewLabelBucket(db *mongo.Database, name string) (*LabelBucket, error) {
	if name == "" {
		name = DefaultLabelBucket
	}
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open gridfs bucket %s: %w", name, err)
	}
	return &LabelBucket{name: name, bucket: bucket}, nil
}

// Upload stores body as a new revision and removes older ones.
func (b *LabelBucket) Upload(ctx context.Context, namespace, key string, body []byte) (*shipper.StoredObject, error) {
	filename := namespace + "/" + key
	opts := options.GridFSUpload().SetMetadata(bson.M{
		"namespace":   namespace,
		"contentType": "application/pdf",
	})
	id, err := b.bucket.UploadFromStream(filename, bytes.NewReader(body), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", filename, err)
	}
	if err := b.pruneRevisions(ctx, filename, id); err != nil {
		return nil, err
	}
	return &shipper.StoredObject{Key: key, Path: filename}, nil
}

func (b *LabelBucket) pruneRevisions(ctx context.Context, filename string, keep primitive.ObjectID) error {
	filter := bson.M{"filename": filename, "_id": bson.M{"$ne": keep}}
	cursor, err := b.bucket.GetFilesCollection().Find(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to find old revisions of %s: %w", filename, err)
	}
	defer cursor.Close(ctx)

	var old []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &old); err != nil {
		return fmt.Errorf("failed to decode old revisions of %s: %w", filename, err)
	}
	for _, f := range old {
		if err := b.bucket.Delete(f.ID); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return fmt.Errorf("failed to delete old revision of %s: %w", filename, err)
		}
	}
	return nil
}

// Exists reports whether any revision of the object exists.
func (b *LabelBucket) Exists(ctx context.Context, namespace, key string) (bool, error) {
	n, err := b.bucket.GetFilesCollection().CountDocuments(ctx, bson.M{"filename": namespace + "/" + key})
	if err != nil {
		return false, fmt.Errorf("failed to look up %s/%s: %w", namespace, key, err)
	}
	return n > 0, nil
}

// Get downloads the newest revision of the object.
func (b *LabelBucket) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	filename := namespace + "/" + key
	var buf bytes.Buffer
	if _, err := b.bucket.DownloadToStreamByName(filename, &buf); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, fmt.Errorf("%s: %w", filename, shipper.ErrLabelNotAvailable)
		}
		return nil, fmt.Errorf("failed to download %s: %w", filename, err)
	}
	return buf.Bytes(), nil
}

// URL returns a gridfs://<bucket>/<namespace>/<key> reference.
func (b *LabelBucket) URL(ctx context.Context, namespace, key string) (string, error) {
	return fmt.Sprintf("gridfs://%s/%s/%s", b.name, namespace, key), nil
}

var _ shipper.BlobStore = (*LabelBucket)(nil)
