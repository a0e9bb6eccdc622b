package sensor

import (
	"context"
	"errors"
	"math"
	"time"

	"geckoclient/climate_monitor/climate"
)

var ErrSimulatedFailure = errors.New("simulated read failure")

// Simulated produces a slow daily swing around Base. Every FailEvery-th read
// fails when FailEvery is positive.
type Simulated struct {
	Base      climate.Reading
	Amplitude climate.Reading
	Period    time.Duration
	FailEvery int

	// Now defaults to time.Now.
	Now func() time.Time

	reads int
}

func NewSimulated() *Simulated {
	return &Simulated{
		Base:      climate.Reading{Temperature: 21.5, Humidity: 40},
		Amplitude: climate.Reading{Temperature: 3, Humidity: 10},
		Period:    24 * time.Hour,
	}
}

func (s *Simulated) Name() string { return "simulated" }

func (s *Simulated) Read(ctx context.Context) (climate.Reading, error) {
	s.reads++
	if s.FailEvery > 0 && s.reads%s.FailEvery == 0 {
		return climate.Reading{}, &climate.SensorError{Sensor: s.Name(), Err: ErrSimulatedFailure}
	}

	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	phase := 0.0
	if s.Period > 0 {
		phase = 2 * math.Pi * float64(now.UnixNano()%int64(s.Period)) / float64(s.Period)
	}
	r := climate.Reading{
		Temperature: s.Base.Temperature + s.Amplitude.Temperature*math.Sin(phase),
		Humidity:    s.Base.Humidity - s.Amplitude.Humidity*math.Sin(phase),
	}
	return climate.Reading{
		Temperature: math.Round(r.Temperature*10) / 10,
		Humidity:    math.Round(r.Humidity*10) / 10,
	}, nil
}
