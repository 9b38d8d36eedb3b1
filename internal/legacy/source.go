package legacy

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Source streams legacy documents. Callbacks run once per document in
// creation order; returning an error stops the scan.
type Source interface {
	Users(ctx context.Context, fn func(UserDoc) error) error
	Tools(ctx context.Context, fn func(ToolDoc) error) error
	Blogs(ctx context.Context, fn func(BlogDoc) error) error
}

// MongoSource reads the legacy collections from MongoDB
type MongoSource struct {
	client *mongo.Client
	db     *mongo.Database
}

// Dial connects to uri and selects database
func Dial(ctx context.Context, uri, database string) (*MongoSource, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return &MongoSource{client: client, db: client.Database(database)}, nil
}

// Close disconnects from MongoDB
func (s *MongoSource) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoSource) Users(ctx context.Context, fn func(UserDoc) error) error {
	return scan(ctx, s.db.Collection("users"), fn)
}

func (s *MongoSource) Tools(ctx context.Context, fn func(ToolDoc) error) error {
	return scan(ctx, s.db.Collection("tools"), fn)
}

func (s *MongoSource) Blogs(ctx context.Context, fn func(BlogDoc) error) error {
	return scan(ctx, s.db.Collection("blogs"), fn)
}

func scan[T any](ctx context.Context, coll *mongo.Collection, fn func(T) error) error {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cur, err := coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return fmt.Errorf("find %s: %w", coll.Name(), err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc T
		if err := cur.Decode(&doc); err != nil {
			return fmt.Errorf("decode %s: %w", coll.Name(), err)
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return cur.Err()
}
