// Package storage holds the bucket stores behind the collector: MongoDB
// for the document database and SQLite for embedded installs.
package storage

import (
	"context"
	"fmt"
	"time"

	"geckoclient/climate_monitor/climate"
)

const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"

	// ConnectTimeout bounds the startup connection test.
	ConnectTimeout = 10 * time.Second
)

// Store is a climate.BucketStore that can also list stored buckets for the
// readings API and the dashboard.
type Store interface {
	climate.BucketStore
	// RecentBuckets returns up to limit buckets of deviceID, newest first.
	RecentBuckets(ctx context.Context, deviceID string, limit int) ([]climate.Bucket, error)
	Close() error
}

type Options struct {
	Driver     string
	URI        string
	Database   string
	Collection string
	SQLitePath string
}

// Open connects to the configured backend. Connection failures wrap
// climate.ErrConnect.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverMongo, "":
		client, err := NewMongoConnection(ctx, opts.URI)
		if err != nil {
			return nil, err
		}
		store, err := NewMongoStore(ctx, client, opts.Database, opts.Collection)
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return store, nil
	case DriverSQLite:
		return OpenSQLite(ctx, opts.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", climate.ErrConfig, opts.Driver)
	}
}
