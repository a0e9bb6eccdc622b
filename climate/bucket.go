package climate

import (
	"time"
)

const (
	// DefaultWindow is how long a bucket stays open after its first sample.
	DefaultWindow = 120 * time.Minute

	UnitCelsius    = "Celsius"
	UnitPercentage = "Percentage"
)

// Reading is a raw temperature/humidity measurement from a sensor.
type Reading struct {
	Temperature float64
	Humidity    float64
}

// Sample is a single reading stamped with the time it was taken.
type Sample struct {
	Timestamp   time.Time `bson:"timestamp" json:"timestamp"`
	Temperature float64   `bson:"temperature" json:"temperature"`
	Humidity    float64   `bson:"humidity" json:"humidity"`
}

type Units struct {
	Temperature string `bson:"temperature" json:"temperature"`
	Humidity    string `bson:"humidity" json:"humidity"`
}

type Metadata struct {
	SensorType       string    `bson:"sensor_type" json:"sensor_type"`
	InstallationDate time.Time `bson:"installation_date" json:"installation_date"`
}

// Bucket aggregates the samples of one device that arrive while its
// interval_start is within the trailing window. Samples are append-only.
type Bucket struct {
	DeviceID      string    `bson:"device_id" json:"device_id"`
	IntervalStart time.Time `bson:"interval_start" json:"interval_start"`
	Samples       []Sample  `bson:"data" json:"data"`
	Units         Units     `bson:"units" json:"units"`
	Metadata      Metadata  `bson:"metadata" json:"metadata"`
}

// BucketKey identifies the bucket a sample is appended to.
type BucketKey struct {
	DeviceID      string
	IntervalStart time.Time
}

func (b *Bucket) Key() BucketKey {
	return BucketKey{DeviceID: b.DeviceID, IntervalStart: b.IntervalStart}
}

// NewBucket opens a bucket whose interval starts with the given sample.
func NewBucket(deviceID string, meta Metadata, s Sample) *Bucket {
	return &Bucket{
		DeviceID:      deviceID,
		IntervalStart: s.Timestamp,
		Samples:       []Sample{s},
		Units:         Units{Temperature: UnitCelsius, Humidity: UnitPercentage},
		Metadata:      meta,
	}
}

// NewSample stamps a reading. Timestamps are UTC at millisecond precision,
// which is what a BSON datetime keeps.
func NewSample(r Reading, at time.Time) Sample {
	return Sample{
		Timestamp:   StorageTime(at),
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
	}
}

func StorageTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// WindowStart is the earliest interval_start still open at now.
func WindowStart(now time.Time, window time.Duration) time.Time {
	return now.Add(-window)
}

// WindowCovers reports whether a bucket starting at start is open at now:
// now-window <= start <= now.
func WindowCovers(start, now time.Time, window time.Duration) bool {
	return !start.Before(WindowStart(now, window)) && !start.After(now)
}

// Stats summarises the samples held by a bucket.
type Stats struct {
	Count          int     `json:"count"`
	MinTemperature float64 `json:"min_temperature"`
	MaxTemperature float64 `json:"max_temperature"`
	AvgTemperature float64 `json:"avg_temperature"`
	MinHumidity    float64 `json:"min_humidity"`
	MaxHumidity    float64 `json:"max_humidity"`
	AvgHumidity    float64 `json:"avg_humidity"`
}

func (b *Bucket) Stats() Stats {
	var st Stats
	if len(b.Samples) == 0 {
		return st
	}
	st.MinTemperature, st.MaxTemperature = b.Samples[0].Temperature, b.Samples[0].Temperature
	st.MinHumidity, st.MaxHumidity = b.Samples[0].Humidity, b.Samples[0].Humidity
	var sumT, sumH float64
	for _, s := range b.Samples {
		st.MinTemperature = min(st.MinTemperature, s.Temperature)
		st.MaxTemperature = max(st.MaxTemperature, s.Temperature)
		st.MinHumidity = min(st.MinHumidity, s.Humidity)
		st.MaxHumidity = max(st.MaxHumidity, s.Humidity)
		sumT += s.Temperature
		sumH += s.Humidity
	}
	st.Count = len(b.Samples)
	st.AvgTemperature = sumT / float64(st.Count)
	st.AvgHumidity = sumH / float64(st.Count)
	return st
}
