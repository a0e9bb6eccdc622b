package storage

import (
	"testing"
	"time"

	"geckoclient/climate_monitor/climate"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestOpenBucketFilter(t *testing.T) {
	now := time.Date(2024, 6, 9, 10, 0, 0, 987654321, time.UTC)
	f := openBucketFilter("sensor-001", now, 120*time.Minute)

	raw, err := bson.Marshal(f)
	if err != nil {
		t.Fatalf("marshal filter: %v", err)
	}
	var got struct {
		DeviceID      string `bson:"device_id"`
		IntervalStart struct {
			Gte time.Time `bson:"$gte"`
			Lte time.Time `bson:"$lte"`
		} `bson:"interval_start"`
	}
	if err := bson.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal filter: %v", err)
	}

	if got.DeviceID != "sensor-001" {
		t.Errorf("device_id = %q", got.DeviceID)
	}
	wantGte := time.Date(2024, 6, 9, 8, 0, 0, 987000000, time.UTC)
	if !got.IntervalStart.Gte.Equal(wantGte) {
		t.Errorf("$gte = %v, want %v", got.IntervalStart.Gte, wantGte)
	}
	wantLte := time.Date(2024, 6, 9, 10, 0, 0, 987000000, time.UTC)
	if !got.IntervalStart.Lte.Equal(wantLte) {
		t.Errorf("$lte = %v, want %v", got.IntervalStart.Lte, wantLte)
	}
}

func TestAppendSampleUpdate(t *testing.T) {
	at := time.Date(2024, 6, 9, 10, 30, 0, 0, time.UTC)
	u := appendSampleUpdate(climate.Sample{Timestamp: at, Temperature: 21.5, Humidity: 40})

	raw, err := bson.Marshal(u)
	if err != nil {
		t.Fatalf("marshal update: %v", err)
	}
	var got struct {
		Push struct {
			Data climate.Sample `bson:"data"`
		} `bson:"$push"`
	}
	if err := bson.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal update: %v", err)
	}
	want := climate.Sample{Timestamp: at, Temperature: 21.5, Humidity: 40}
	if !got.Push.Data.Timestamp.Equal(want.Timestamp) ||
		got.Push.Data.Temperature != want.Temperature ||
		got.Push.Data.Humidity != want.Humidity {
		t.Errorf("$push.data = %+v, want %+v", got.Push.Data, want)
	}
}

func TestBucketDocumentLayout(t *testing.T) {
	at := time.Date(2024, 6, 9, 10, 30, 0, 0, time.UTC)
	b := climate.NewBucket("sensor-001", climate.Metadata{SensorType: "DHT11", InstallationDate: at},
		climate.NewSample(climate.Reading{Temperature: 21.5, Humidity: 40}, at))

	raw, err := bson.Marshal(b)
	if err != nil {
		t.Fatalf("marshal bucket: %v", err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal bucket: %v", err)
	}
	for _, key := range []string{"device_id", "interval_start", "data", "units", "metadata"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("document missing %q: %v", key, doc)
		}
	}
	if _, ok := doc["interval_start"].(bson.DateTime); !ok {
		t.Errorf("interval_start stored as %T, want BSON datetime", doc["interval_start"])
	}
}
