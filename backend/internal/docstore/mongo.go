package docstore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"social-backend/backend/pkg/logger"
)

// MongoStore implements Store on a MongoDB database
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// NewMongoStore connects to uri and verifies the primary is reachable
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &MongoStore{
		client: client,
		db:     client.Database(database),
		logger: logger.Named("docstore"),
	}, nil
}

func (s *MongoStore) FindOne(ctx context.Context, collection string, filter Filter, out interface{}) error {
	err := s.db.Collection(collection).FindOne(ctx, toBSON(filter)).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to find %s: %w", collection, err)
	}
	return nil
}

func (s *MongoStore) Find(ctx context.Context, collection string, filter Filter, opts FindOptions, out interface{}) error {
	findOpts := options.Find()
	if len(opts.Sort) > 0 {
		sort := bson.D{}
		for _, f := range opts.Sort {
			dir := 1
			if f.Desc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: f.Field, Value: dir})
		}
		findOpts.SetSort(sort)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	cursor, err := s.db.Collection(collection).Find(ctx, toBSON(filter), findOpts)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", collection, err)
	}
	return nil
}

func (s *MongoStore) Insert(ctx context.Context, collection string, doc interface{}) error {
	_, err := s.db.Collection(collection).InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", collection, err)
	}
	return nil
}

func (s *MongoStore) UpdateByID(ctx context.Context, collection, id string, patch Patch) error {
	result, err := s.db.Collection(collection).UpdateByID(ctx, id, bson.M{"$set": bson.M(patch)})
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteMatching(ctx context.Context, collection string, filter Filter) (int64, error) {
	result, err := s.db.Collection(collection).DeleteMany(ctx, toBSON(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", collection, err)
	}
	return result.DeletedCount, nil
}

func (s *MongoStore) EnsureUniqueIndex(ctx context.Context, collection, field string) error {
	name, err := s.db.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create unique index %s.%s: %w", collection, field, err)
	}

	s.logger.Debug("Unique index ready",
		zap.String("collection", collection),
		zap.String("index", name),
	)
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func toBSON(filter Filter) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return bson.M(filter)
}
