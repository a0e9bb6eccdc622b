package sensor

import (
	"context"
	"fmt"
	"sync"

	"geckoclient/climate_monitor/climate"

	"gobot.io/x/gobot/v2/drivers/gpio"
	"gobot.io/x/gobot/v2/drivers/i2c"
	"gobot.io/x/gobot/v2/platforms/raspi"
)

// Board owns the gobot raspi adaptor shared by the I2C sensor and the
// status LED. The adaptor is connected on first use.
type Board struct {
	adaptor *raspi.Adaptor

	once      sync.Once
	err       error
	connected bool
}

func NewBoard() *Board {
	return &Board{adaptor: raspi.NewAdaptor()}
}

func (b *Board) connect() error {
	b.once.Do(func() {
		if err := b.adaptor.Connect(); err != nil {
			b.err = fmt.Errorf("raspi adaptor connect: %w", err)
			return
		}
		b.connected = true
	})
	return b.err
}

func (b *Board) Close() error {
	if !b.connected {
		return nil
	}
	return b.adaptor.Finalize()
}

// SHT2x reads an SHT2x over I2C. HumidityOffset is added to every humidity
// reading to correct a sensor that reads consistently high or low.
type SHT2x struct {
	driver         *i2c.SHT2xDriver
	HumidityOffset float64
}

func NewSHT2x(b *Board, humidityOffset float64) (*SHT2x, error) {
	if err := b.connect(); err != nil {
		return nil, err
	}
	d := i2c.NewSHT2xDriver(b.adaptor)
	if err := d.Start(); err != nil {
		return nil, fmt.Errorf("sht2x start: %w", err)
	}
	return &SHT2x{driver: d, HumidityOffset: humidityOffset}, nil
}

func (s *SHT2x) Name() string { return "SHT2x" }

func (s *SHT2x) Read(ctx context.Context) (climate.Reading, error) {
	temp, err := s.driver.Temperature()
	if err != nil {
		return climate.Reading{}, &climate.SensorError{Sensor: s.Name(), Err: fmt.Errorf("temperature: %w", err)}
	}
	humidity, err := s.driver.Humidity()
	if err != nil {
		return climate.Reading{}, &climate.SensorError{Sensor: s.Name(), Err: fmt.Errorf("humidity: %w", err)}
	}
	return climate.Reading{
		Temperature: float64(temp),
		Humidity:    float64(humidity) + s.HumidityOffset,
	}, nil
}

func (s *SHT2x) Close() error {
	return s.driver.Halt()
}

// StatusLED is a GPIO output toggled after every stored sample. Pins use
// the physical header numbering of the raspi adaptor, e.g. "22".
type StatusLED struct {
	led *gpio.LedDriver
}

func NewStatusLED(b *Board, pin string) (*StatusLED, error) {
	if err := b.connect(); err != nil {
		return nil, err
	}
	led := gpio.NewLedDriver(b.adaptor, pin)
	if err := led.Start(); err != nil {
		return nil, fmt.Errorf("status led start: %w", err)
	}
	return &StatusLED{led: led}, nil
}

func (l *StatusLED) Toggle() error {
	return l.led.Toggle()
}

func (l *StatusLED) Close() error {
	if err := l.led.Off(); err != nil {
		return err
	}
	return l.led.Halt()
}
