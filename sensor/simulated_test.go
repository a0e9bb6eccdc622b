package sensor

import (
	"context"
	"errors"
	"testing"
	"time"

	"geckoclient/climate_monitor/climate"
)

func TestSimulatedAtPeriodStart(t *testing.T) {
	s := NewSimulated()
	s.Now = func() time.Time { return time.Unix(0, 0) }

	r, err := s.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if r.Temperature != 21.5 || r.Humidity != 40 {
		t.Errorf("reading = %+v, want base values", r)
	}
}

func TestSimulatedStaysInRange(t *testing.T) {
	s := NewSimulated()
	at := time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return at }

	for i := 0; i < 48; i++ {
		at = at.Add(30 * time.Minute)
		r, err := s.Read(context.Background())
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if r.Temperature < 18.5 || r.Temperature > 24.5 {
			t.Errorf("temperature %v out of range", r.Temperature)
		}
		if r.Humidity < 30 || r.Humidity > 50 {
			t.Errorf("humidity %v out of range", r.Humidity)
		}
	}
}

func TestSimulatedFailEvery(t *testing.T) {
	s := NewSimulated()
	s.FailEvery = 3

	var failures int
	for i := 0; i < 9; i++ {
		_, err := s.Read(context.Background())
		var sensorErr *climate.SensorError
		if errors.As(err, &sensorErr) {
			failures++
		}
	}
	if failures != 3 {
		t.Errorf("failures = %d, want 3", failures)
	}
}
