package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"geckoclient/climate_monitor/climate"
	"geckoclient/climate_monitor/storage"

	"github.com/gin-gonic/gin"
)

var t0 = time.Date(2024, 6, 9, 8, 0, 0, 0, time.UTC)

func newTestAPI(t *testing.T, samples int) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if samples > 0 {
		b := climate.NewBucket("sensor-001", climate.Metadata{SensorType: "DHT11"},
			climate.NewSample(climate.Reading{Temperature: 20, Humidity: 40}, t0))
		for i := 1; i < samples; i++ {
			b.Samples = append(b.Samples, climate.NewSample(climate.Reading{Temperature: 20, Humidity: 40}, t0.Add(time.Duration(i)*time.Second)))
		}
		if err := store.CreateBucket(context.Background(), b); err != nil {
			t.Fatalf("CreateBucket: %v", err)
		}
	}

	return &api{
		store:    store,
		deviceID: "sensor-001",
		window:   climate.DefaultWindow,
		now:      func() time.Time { return t0.Add(time.Hour) },
	}
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t, 0)
	rr := get(t, a.routes(), "/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestSensorDataThinsOpenBucket(t *testing.T) {
	a := newTestAPI(t, 450)
	rr := get(t, a.routes(), "/api/sensor_data")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body)
	}

	var data []SensorData
	if err := json.Unmarshal(rr.Body.Bytes(), &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// 450 samples at step 3.
	if len(data) != 150 {
		t.Errorf("got %d points, want 150", len(data))
	}
	if data[0].Value != "09:06:2024 08:00:00" {
		t.Errorf("first timestamp = %q", data[0].Value)
	}
}

func TestSensorDataNoOpenBucket(t *testing.T) {
	a := newTestAPI(t, 0)
	rr := get(t, a.routes(), "/api/sensor_data?device_id=sensor-404")
	if rr.Code != http.StatusOK || rr.Body.String() != "[]" {
		t.Errorf("status = %d body = %s", rr.Code, rr.Body)
	}
}

func TestBuckets(t *testing.T) {
	a := newTestAPI(t, 3)
	h := a.routes()

	rr := get(t, h, "/api/buckets?limit=5")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body)
	}
	var resp struct {
		Buckets []climate.Bucket `json:"buckets"`
		Count   int              `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || len(resp.Buckets[0].Samples) != 3 {
		t.Errorf("resp = %+v", resp)
	}

	if rr := get(t, h, "/api/buckets?limit=zero"); rr.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rr.Code)
	}
}

func TestThin(t *testing.T) {
	samples := make([]climate.Sample, 10)
	if got := len(thin(samples, 200)); got != 10 {
		t.Errorf("short series thinned to %d", got)
	}
	if got := len(thin(samples, 4)); got != 4 {
		t.Errorf("got %d points, want 4", got)
	}
}
