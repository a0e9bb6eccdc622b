package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"geckoclient/climate_monitor/climate"

	"github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS buckets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id TEXT NOT NULL,
		interval_start INTEGER NOT NULL, -- unix millis
		temperature_unit TEXT NOT NULL,
		humidity_unit TEXT NOT NULL,
		sensor_type TEXT NOT NULL,
		installation_date INTEGER NOT NULL, -- unix millis
		UNIQUE (device_id, interval_start)
	);
	CREATE TABLE IF NOT EXISTS samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bucket_id INTEGER NOT NULL REFERENCES buckets(id),
		timestamp INTEGER NOT NULL, -- unix millis
		temperature REAL NOT NULL,
		humidity REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS samples_bucket_idx ON samples (bucket_id, id);
`

// SQLiteStore keeps buckets in two tables: one row per bucket and one row
// per sample, ordered by insertion id.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex // serialises writers
}

// OpenSQLite opens (and creates if needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("%w: failed to create database directory: %v", climate.ErrConnect, err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", climate.ErrConnect, err)
	}
	// One connection keeps in-memory databases shared and writes ordered.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", climate.ErrConnect, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: error creating bucket tables: %v", climate.ErrConnect, err)
	}
	return &SQLiteStore{db: db}, nil
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

type bucketRow struct {
	id     int64
	bucket climate.Bucket
}

const bucketColumns = `id, device_id, interval_start, temperature_unit, humidity_unit, sensor_type, installation_date`

func scanBucket(scan func(dest ...any) error) (bucketRow, error) {
	var (
		r                  bucketRow
		start, installedAt int64
	)
	err := scan(&r.id, &r.bucket.DeviceID, &start,
		&r.bucket.Units.Temperature, &r.bucket.Units.Humidity,
		&r.bucket.Metadata.SensorType, &installedAt)
	if err != nil {
		return r, err
	}
	r.bucket.IntervalStart = fromMillis(start)
	r.bucket.Metadata.InstallationDate = fromMillis(installedAt)
	return r, nil
}

func (s *SQLiteStore) loadSamples(ctx context.Context, bucketID int64) ([]climate.Sample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, temperature, humidity FROM samples WHERE bucket_id = ? ORDER BY id ASC`, bucketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []climate.Sample
	for rows.Next() {
		var (
			sample climate.Sample
			ts     int64
		)
		if err := rows.Scan(&ts, &sample.Temperature, &sample.Humidity); err != nil {
			return nil, err
		}
		sample.Timestamp = fromMillis(ts)
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

func (s *SQLiteStore) FindOpenBucket(ctx context.Context, deviceID string, now time.Time, window time.Duration) (*climate.Bucket, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+bucketColumns+` FROM buckets
		WHERE device_id = ? AND interval_start >= ? AND interval_start <= ?
		ORDER BY interval_start DESC LIMIT 1`,
		deviceID,
		millis(climate.StorageTime(climate.WindowStart(now, window))),
		millis(climate.StorageTime(now)))

	r, err := scanBucket(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &climate.StorageError{Op: "find open bucket", Err: err}
	}

	r.bucket.Samples, err = s.loadSamples(ctx, r.id)
	if err != nil {
		return nil, &climate.StorageError{Op: "find open bucket", Err: err}
	}
	return &r.bucket, nil
}

func (s *SQLiteStore) AppendSample(ctx context.Context, key climate.BucketKey, sample climate.Sample) (climate.UpdateOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO samples (bucket_id, timestamp, temperature, humidity)
		SELECT id, ?, ?, ? FROM buckets WHERE device_id = ? AND interval_start = ?`,
		millis(climate.StorageTime(sample.Timestamp)), sample.Temperature, sample.Humidity,
		key.DeviceID, millis(climate.StorageTime(key.IntervalStart)))
	if err != nil {
		return climate.NotMatched, &climate.StorageError{Op: "append sample", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return climate.NotMatched, &climate.StorageError{Op: "append sample", Err: err}
	}
	if n == 1 {
		return climate.Updated, nil
	}
	return climate.NotMatched, nil
}

func (s *SQLiteStore) CreateBucket(ctx context.Context, b *climate.Bucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &climate.StorageError{Op: "create bucket", Err: err}
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO buckets (device_id, interval_start, temperature_unit, humidity_unit, sensor_type, installation_date)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.DeviceID, millis(climate.StorageTime(b.IntervalStart)),
		b.Units.Temperature, b.Units.Humidity,
		b.Metadata.SensorType, millis(b.Metadata.InstallationDate))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			err = fmt.Errorf("%w: %v", climate.ErrDuplicateBucket, err)
		}
		return &climate.StorageError{Op: "create bucket", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return &climate.StorageError{Op: "create bucket", Err: err}
	}

	for _, sample := range b.Samples {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO samples (bucket_id, timestamp, temperature, humidity) VALUES (?, ?, ?, ?)`,
			id, millis(climate.StorageTime(sample.Timestamp)), sample.Temperature, sample.Humidity)
		if err != nil {
			return &climate.StorageError{Op: "create bucket", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &climate.StorageError{Op: "create bucket", Err: err}
	}
	return nil
}

func (s *SQLiteStore) RecentBuckets(ctx context.Context, deviceID string, limit int) ([]climate.Bucket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bucketColumns+` FROM buckets
		WHERE device_id = ? ORDER BY interval_start DESC LIMIT ?`, deviceID, limit)
	if err != nil {
		return nil, &climate.StorageError{Op: "recent buckets", Err: err}
	}

	var found []bucketRow
	for rows.Next() {
		r, err := scanBucket(rows.Scan)
		if err != nil {
			rows.Close()
			return nil, &climate.StorageError{Op: "recent buckets", Err: err}
		}
		found = append(found, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, &climate.StorageError{Op: "recent buckets", Err: err}
	}

	// Samples are loaded after the bucket cursor is closed: the pool holds a
	// single connection.
	buckets := make([]climate.Bucket, 0, len(found))
	for _, r := range found {
		r.bucket.Samples, err = s.loadSamples(ctx, r.id)
		if err != nil {
			return nil, &climate.StorageError{Op: "recent buckets", Err: err}
		}
		buckets = append(buckets, r.bucket)
	}
	return buckets, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
