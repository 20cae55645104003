package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFSStore keeps objects in MongoDB GridFS, one GridFS bucket per storage
// bucket. The object path is the GridFS filename.
type GridFSStore struct {
	client  *mongo.Client
	db      *mongo.Database
	baseURL string
}

func NewGridFSStore(ctx context.Context, uri, database, baseURL string) (*GridFSStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &GridFSStore{
		client:  client,
		db:      client.Database(database),
		baseURL: baseURL,
	}, nil
}

func (s *GridFSStore) bucket(name string) (*gridfs.Bucket, error) {
	return gridfs.NewBucket(s.db, options.GridFSBucket().SetName(name))
}

func (s *GridFSStore) existing(b *gridfs.Bucket, path string) ([]primitive.ObjectID, error) {
	cursor, err := b.Find(bson.M{"filename": path})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(context.Background())

	var files []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(context.Background(), &files); err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.ID)
	}
	return ids, nil
}

func (s *GridFSStore) Upload(ctx context.Context, bucket, path string, r io.Reader, opts UploadOptions) error {
	b, err := s.bucket(bucket)
	if err != nil {
		return err
	}

	old, err := s.existing(b, path)
	if err != nil {
		return fmt.Errorf("failed to look up %s/%s: %w", bucket, path, err)
	}
	if len(old) > 0 && !opts.Upsert {
		return fmt.Errorf("object %s/%s: %w", bucket, path, ErrObjectExists)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	uploadOpts := options.GridFSUpload().SetMetadata(bson.M{"contentType": opts.ContentType})
	if _, err := b.UploadFromStream(path, r, uploadOpts); err != nil {
		return fmt.Errorf("failed to upload %s/%s: %w", bucket, path, err)
	}

	// the new revision is stored before older ones are removed
	for _, id := range old {
		if err := b.Delete(id); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return fmt.Errorf("failed to replace %s/%s: %w", bucket, path, err)
		}
	}
	return nil
}

func (s *GridFSStore) Download(_ context.Context, bucket, path string, w io.Writer) error {
	b, err := s.bucket(bucket)
	if err != nil {
		return err
	}
	if _, err := b.DownloadToStreamByName(path, w); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return objectNotFound(bucket, path)
		}
		return fmt.Errorf("failed to download %s/%s: %w", bucket, path, err)
	}
	return nil
}

func (s *GridFSStore) PublicURL(bucket, path string) string {
	return publicURL(s.baseURL, bucket, path)
}

func (s *GridFSStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
