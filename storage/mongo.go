package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"geckoclient/climate_monitor/climate"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	DefaultDatabase   = "gecko-client"
	DefaultCollection = "environmental_information"
)

type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoConnection connects and proves the connection by pinging the
// primary and listing database names.
func NewMongoConnection(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to MongoDB: %v", climate.ErrConnect, err)
	}

	ctx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: ping failed: %v", climate.ErrConnect, err)
	}
	if _, err := client.ListDatabaseNames(ctx, bson.D{}); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: failed to list database names: %v", climate.ErrConnect, err)
	}
	return client, nil
}

// NewMongoStore uses the given collection and makes sure the lookup index
// exists. The index is unique on (device_id, interval_start) so two
// collectors racing to open the same bucket cannot both insert it.
func NewMongoStore(ctx context.Context, client *mongo.Client, database, collection string) (*MongoStore, error) {
	if database == "" {
		database = DefaultDatabase
	}
	if collection == "" {
		collection = DefaultCollection
	}
	coll := client.Database(database).Collection(collection)

	ctx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "device_id", Value: 1},
			{Key: "interval_start", Value: -1},
		},
		Options: options.Index().SetUnique(true).SetName("device_interval_start"),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create bucket index: %v", climate.ErrConnect, err)
	}

	return &MongoStore{client: client, collection: coll}, nil
}

func openBucketFilter(deviceID string, now time.Time, window time.Duration) bson.D {
	return bson.D{
		{Key: "device_id", Value: deviceID},
		{Key: "interval_start", Value: bson.D{
			{Key: "$gte", Value: climate.StorageTime(climate.WindowStart(now, window))},
			{Key: "$lte", Value: climate.StorageTime(now)},
		}},
	}
}

func bucketKeyFilter(key climate.BucketKey) bson.D {
	return bson.D{
		{Key: "device_id", Value: key.DeviceID},
		{Key: "interval_start", Value: climate.StorageTime(key.IntervalStart)},
	}
}

func appendSampleUpdate(s climate.Sample) bson.D {
	return bson.D{
		{Key: "$push", Value: bson.D{
			{Key: "data", Value: bson.D{
				{Key: "timestamp", Value: climate.StorageTime(s.Timestamp)},
				{Key: "temperature", Value: s.Temperature},
				{Key: "humidity", Value: s.Humidity},
			}},
		}},
	}
}

var latestFirst = bson.D{{Key: "interval_start", Value: -1}}

func (m *MongoStore) FindOpenBucket(ctx context.Context, deviceID string, now time.Time, window time.Duration) (*climate.Bucket, error) {
	opts := options.FindOne().SetSort(latestFirst)

	var b climate.Bucket
	err := m.collection.FindOne(ctx, openBucketFilter(deviceID, now, window), opts).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, &climate.StorageError{Op: "find open bucket", Err: err}
	}
	return &b, nil
}

func (m *MongoStore) AppendSample(ctx context.Context, key climate.BucketKey, s climate.Sample) (climate.UpdateOutcome, error) {
	res, err := m.collection.UpdateOne(ctx, bucketKeyFilter(key), appendSampleUpdate(s))
	if err != nil {
		return climate.NotMatched, &climate.StorageError{Op: "append sample", Err: err}
	}
	if res.MatchedCount == 1 {
		return climate.Updated, nil
	}
	return climate.NotMatched, nil
}

func (m *MongoStore) CreateBucket(ctx context.Context, b *climate.Bucket) error {
	_, err := m.collection.InsertOne(ctx, b)
	if mongo.IsDuplicateKeyError(err) {
		return &climate.StorageError{Op: "create bucket", Err: fmt.Errorf("%w: %v", climate.ErrDuplicateBucket, err)}
	}
	if err != nil {
		return &climate.StorageError{Op: "create bucket", Err: err}
	}
	return nil
}

func (m *MongoStore) RecentBuckets(ctx context.Context, deviceID string, limit int) ([]climate.Bucket, error) {
	opts := options.Find().SetSort(latestFirst).SetLimit(int64(limit))

	cursor, err := m.collection.Find(ctx, bson.D{{Key: "device_id", Value: deviceID}}, opts)
	if err != nil {
		return nil, &climate.StorageError{Op: "recent buckets", Err: err}
	}
	defer cursor.Close(ctx)

	var buckets []climate.Bucket
	if err := cursor.All(ctx, &buckets); err != nil {
		return nil, &climate.StorageError{Op: "recent buckets", Err: err}
	}
	return buckets, nil
}

func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
