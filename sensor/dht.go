package sensor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"geckoclient/climate_monitor/climate"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Model selects the DHT framing and timing.
type Model int

const (
	DHT11 Model = iota
	DHT22
)

func (m Model) String() string {
	if m == DHT22 {
		return "DHT22"
	}
	return "DHT11"
}

// ParseModel accepts "dht11", "dht22" and "am2302" in any case.
func ParseModel(s string) (Model, error) {
	switch strings.ToUpper(s) {
	case "DHT11":
		return DHT11, nil
	case "DHT22", "AM2302":
		return DHT22, nil
	}
	return 0, fmt.Errorf("unknown DHT model %q", s)
}

func (m Model) startPulse() time.Duration {
	if m == DHT22 {
		return 1100 * time.Microsecond
	}
	return 18 * time.Millisecond
}

// minPeriod is how long the line has to stay idle between two reads.
func (m Model) minPeriod() time.Duration {
	if m == DHT22 {
		return 2 * time.Second
	}
	return time.Second
}

const (
	frameBits = 40
	// High pulses longer than this are ones; zeros are ~27µs, ones ~70µs.
	bitThreshold = 50 * time.Microsecond
	// Nothing on the wire lasts longer than the 80µs response pulses.
	edgeTimeout  = 200 * time.Microsecond
	frameTimeout = 10 * time.Millisecond
)

var (
	ErrNoResponse = errors.New("no response from sensor")
	ErrShortFrame = errors.New("incomplete frame")
	ErrChecksum   = errors.New("checksum mismatch")
)

var hostOnce sync.Once
var hostErr error

func initHost() error {
	hostOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			hostErr = fmt.Errorf("periph host init: %w", err)
		}
	})
	return hostErr
}

// DHT reads a DHT11/DHT22 over its single-wire protocol by bit-banging a
// GPIO line. Reads must not overlap; the collector calls it from one
// goroutine.
type DHT struct {
	model Model
	pin   gpio.PinIO

	lastRead time.Time
	sleep    func(time.Duration)
}

// NewDHT opens the GPIO line with the given BCM number.
func NewDHT(model Model, bcm int) (*DHT, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("GPIO%d", bcm)
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio line %s not found", name)
	}
	return &DHT{model: model, pin: pin, sleep: time.Sleep}, nil
}

func (d *DHT) Name() string {
	return fmt.Sprintf("%s@%s", d.model, d.pin.Name())
}

func (d *DHT) Read(ctx context.Context) (climate.Reading, error) {
	if err := d.waitIdle(ctx); err != nil {
		return climate.Reading{}, err
	}

	pulses, err := d.capture()
	d.lastRead = time.Now()
	if err != nil {
		return climate.Reading{}, &climate.SensorError{Sensor: d.Name(), Err: err}
	}

	reading, err := decodePulses(d.model, pulses)
	if err != nil {
		return climate.Reading{}, &climate.SensorError{Sensor: d.Name(), Err: err}
	}
	return reading, nil
}

func (d *DHT) waitIdle(ctx context.Context) error {
	if d.lastRead.IsZero() {
		return nil
	}
	wait := d.model.minPeriod() - time.Since(d.lastRead)
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// capture sends the start signal and returns the width of every high pulse
// the sensor sends back, response pulse included.
func (d *DHT) capture() ([]time.Duration, error) {
	if err := d.pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("start signal: %w", err)
	}
	d.sleep(d.model.startPulse())
	if err := d.pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("release line: %w", err)
	}

	// Sensor pulls the line low ~20-40µs after release.
	if _, err := d.waitLevel(gpio.Low, edgeTimeout); err != nil {
		return nil, ErrNoResponse
	}

	pulses := make([]time.Duration, 0, frameBits+1)
	deadline := time.Now().Add(frameTimeout)
	for len(pulses) < frameBits+1 && time.Now().Before(deadline) {
		if _, err := d.waitLevel(gpio.High, edgeTimeout); err != nil {
			break
		}
		width, err := d.waitLevel(gpio.Low, edgeTimeout)
		if err != nil {
			break
		}
		pulses = append(pulses, width)
	}
	if len(pulses) < frameBits+1 {
		return nil, fmt.Errorf("%w: %d of %d pulses", ErrShortFrame, len(pulses), frameBits+1)
	}
	return pulses, nil
}

// waitLevel busy-polls until the line reads l and returns how long that took.
func (d *DHT) waitLevel(l gpio.Level, timeout time.Duration) (time.Duration, error) {
	start := time.Now()
	for {
		if d.pin.Read() == l {
			return time.Since(start), nil
		}
		if elapsed := time.Since(start); elapsed > timeout {
			return elapsed, fmt.Errorf("timed out waiting for %s", l)
		}
	}
}

// decodePulses turns the captured high pulses into a reading. The first
// pulse is the 80µs response, the last 40 carry the frame MSB first.
func decodePulses(model Model, pulses []time.Duration) (climate.Reading, error) {
	if len(pulses) < frameBits {
		return climate.Reading{}, fmt.Errorf("%w: %d bits", ErrShortFrame, len(pulses))
	}
	bits := pulses[len(pulses)-frameBits:]

	var frame [5]byte
	for i, w := range bits {
		frame[i/8] <<= 1
		if w > bitThreshold {
			frame[i/8] |= 1
		}
	}
	return decodeFrame(model, frame)
}

func decodeFrame(model Model, f [5]byte) (climate.Reading, error) {
	if sum := f[0] + f[1] + f[2] + f[3]; sum != f[4] {
		return climate.Reading{}, fmt.Errorf("%w: got %#02x want %#02x", ErrChecksum, f[4], sum)
	}

	var r climate.Reading
	switch model {
	case DHT22:
		r.Humidity = float64(uint16(f[0])<<8|uint16(f[1])) / 10
		r.Temperature = float64(uint16(f[2]&0x7f)<<8|uint16(f[3])) / 10
		if f[2]&0x80 != 0 {
			r.Temperature = -r.Temperature
		}
	default:
		r.Humidity = float64(f[0]) + float64(f[1])/10
		r.Temperature = float64(f[2]) + float64(f[3]&0x7f)/10
		if f[3]&0x80 != 0 {
			r.Temperature = -r.Temperature
		}
	}
	return r, nil
}
