package mqtt

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"geckoclient/climate_monitor/climate"
)

func TestEncodeSample(t *testing.T) {
	at := time.Date(2024, 6, 9, 8, 0, 0, 0, time.UTC)
	payload, err := encodeSample("sensor-001", climate.Sample{Timestamp: at, Temperature: 21.5, Humidity: 40})
	if err != nil {
		t.Fatalf("encodeSample: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := map[string]any{
		"device_id":   "sensor-001",
		"timestamp":   "2024-06-09T08:00:00Z",
		"temperature": 21.5,
		"humidity":    40.0,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}

func TestPublishWithoutConnection(t *testing.T) {
	p := &Publisher{
		config: MQTTConfig{TopicPrefix: "gecko/climate"},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if got := p.SensorsTopic(); got != "gecko/climate/sensors" {
		t.Errorf("topic = %q", got)
	}
	if err := p.PublishSample("sensor-001", climate.Sample{}); err == nil {
		t.Error("publish without a client should fail")
	}
}
