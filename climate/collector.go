package climate

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const DefaultInterval = 10 * time.Second

// SensorReader reads one temperature/humidity measurement. Implementations
// return a *SensorError on hardware timing or checksum failures.
type SensorReader interface {
	Read(ctx context.Context) (Reading, error)
	Name() string
}

// UpdateOutcome tells whether an append found its bucket.
type UpdateOutcome int

const (
	NotMatched UpdateOutcome = iota
	Updated
)

func (o UpdateOutcome) String() string {
	if o == Updated {
		return "updated"
	}
	return "not matched"
}

// BucketStore resolves open buckets and writes samples into them.
type BucketStore interface {
	// FindOpenBucket returns the bucket of deviceID with the latest
	// interval_start in [now-window, now], or nil when none qualifies.
	FindOpenBucket(ctx context.Context, deviceID string, now time.Time, window time.Duration) (*Bucket, error)
	AppendSample(ctx context.Context, key BucketKey, s Sample) (UpdateOutcome, error)
	CreateBucket(ctx context.Context, b *Bucket) error
}

// Indicator is toggled after every stored sample.
type Indicator interface {
	Toggle() error
}

// Publisher fans a stored sample out to other consumers.
type Publisher interface {
	PublishSample(deviceID string, s Sample) error
}

// Action records what a tick did.
type Action int

const (
	ActionSkipped Action = iota
	ActionAppended
	ActionCreated
	ActionUnmatched
)

func (a Action) String() string {
	switch a {
	case ActionAppended:
		return "appended"
	case ActionCreated:
		return "created"
	case ActionUnmatched:
		return "unmatched"
	default:
		return "skipped"
	}
}

type TickResult struct {
	Action Action
	Sample Sample
	Bucket BucketKey
}

// Collector drives the read → resolve → append-or-create cycle.
type Collector struct {
	Sensor    SensorReader
	Store     BucketStore
	DeviceID  string
	Metadata  Metadata
	Interval  time.Duration
	Window    time.Duration
	Indicator Indicator
	Publisher Publisher
	Logger    *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

func (c *Collector) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *Collector) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c *Collector) window() time.Duration {
	if c.Window <= 0 {
		return DefaultWindow
	}
	return c.Window
}

func (c *Collector) interval() time.Duration {
	if c.Interval <= 0 {
		return DefaultInterval
	}
	return c.Interval
}

// Run ticks until ctx is cancelled and then returns ctx.Err(). Tick errors
// are logged and the loop carries on with the next tick.
func (c *Collector) Run(ctx context.Context) error {
	log := c.logger()
	log.Info("starting data collection",
		"device_id", c.DeviceID,
		"sensor", c.Sensor.Name(),
		"interval", c.interval(),
		"window", c.window())

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("data collection stopped", "device_id", c.DeviceID)
			return ctx.Err()
		case <-timer.C:
		}
		if ctx.Err() != nil {
			continue
		}

		if _, err := c.Tick(ctx); err != nil && ctx.Err() == nil {
			var sensorErr *SensorError
			if errors.As(err, &sensorErr) {
				log.Error("error capturing temperature and humidity", "error", err)
			} else {
				log.Error("error storing sample", "error", err)
			}
		}
		timer.Reset(c.interval())
	}
}

// Tick performs one read and stores the result. The writer is never called
// when the read or the bucket lookup fails.
func (c *Collector) Tick(ctx context.Context) (TickResult, error) {
	log := c.logger()

	reading, err := c.Sensor.Read(ctx)
	if err != nil {
		var sensorErr *SensorError
		if !errors.As(err, &sensorErr) {
			err = &SensorError{Sensor: c.Sensor.Name(), Err: err}
		}
		return TickResult{}, err
	}
	log.Info("captured reading", "temperature", reading.Temperature, "humidity", reading.Humidity)

	now := c.now()
	sample := NewSample(reading, now)

	bucket, err := c.Store.FindOpenBucket(ctx, c.DeviceID, sample.Timestamp, c.window())
	if err != nil {
		return TickResult{Sample: sample}, err
	}

	var res TickResult
	if bucket != nil {
		res, err = c.append(ctx, bucket.Key(), sample)
	} else {
		res, err = c.create(ctx, sample)
	}
	if err != nil {
		return res, err
	}
	if res.Action == ActionAppended || res.Action == ActionCreated {
		c.afterStore(sample)
	}
	return res, nil
}

func (c *Collector) append(ctx context.Context, key BucketKey, sample Sample) (TickResult, error) {
	log := c.logger()
	log.Debug("open bucket found, appending", "interval_start", key.IntervalStart)

	res := TickResult{Sample: sample, Bucket: key}
	outcome, err := c.Store.AppendSample(ctx, key, sample)
	if err != nil {
		return res, err
	}
	if outcome == Updated {
		res.Action = ActionAppended
		log.Info("bucket updated", "interval_start", key.IntervalStart)
	} else {
		res.Action = ActionUnmatched
		log.Warn("no bucket matched the append", "interval_start", key.IntervalStart)
	}
	return res, nil
}

func (c *Collector) create(ctx context.Context, sample Sample) (TickResult, error) {
	log := c.logger()
	log.Info("no open bucket, creating a new one", "device_id", c.DeviceID)

	b := NewBucket(c.DeviceID, c.Metadata, sample)
	err := c.Store.CreateBucket(ctx, b)
	if err == nil {
		return TickResult{Action: ActionCreated, Sample: sample, Bucket: b.Key()}, nil
	}
	if !errors.Is(err, ErrDuplicateBucket) {
		return TickResult{Sample: sample}, err
	}

	// Another writer opened the bucket between our lookup and insert.
	log.Warn("bucket created concurrently, appending instead", "interval_start", b.IntervalStart)
	existing, ferr := c.Store.FindOpenBucket(ctx, c.DeviceID, sample.Timestamp, c.window())
	if ferr != nil {
		return TickResult{Sample: sample}, ferr
	}
	if existing == nil {
		return TickResult{Sample: sample}, err
	}
	return c.append(ctx, existing.Key(), sample)
}

func (c *Collector) afterStore(sample Sample) {
	log := c.logger()
	if c.Indicator != nil {
		if err := c.Indicator.Toggle(); err != nil {
			log.Warn("status indicator toggle failed", "error", err)
		}
	}
	if c.Publisher != nil {
		if err := c.Publisher.PublishSample(c.DeviceID, sample); err != nil {
			log.Warn("sample publish failed", "error", err)
		}
	}
}
