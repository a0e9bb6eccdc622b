// Package sensor holds the temperature/humidity readers: DHT11/DHT22 on a
// bit-banged GPIO line, SHT2x on I2C, and a simulated sensor.
package sensor

import (
	"fmt"
	"strings"

	"geckoclient/climate_monitor/climate"
)

const (
	TypeDHT11     = "dht11"
	TypeDHT22     = "dht22"
	TypeSHT2x     = "sht2x"
	TypeSimulated = "sim"
)

// New opens the reader named by kind. pin is the BCM GPIO number used by the
// DHT sensors; board is only needed for sht2x.
func New(kind string, pin int, humidityOffset float64, board *Board) (climate.SensorReader, error) {
	switch strings.ToLower(kind) {
	case TypeDHT11, TypeDHT22:
		model, err := ParseModel(kind)
		if err != nil {
			return nil, err
		}
		return NewDHT(model, pin)
	case TypeSHT2x:
		if board == nil {
			board = NewBoard()
		}
		return NewSHT2x(board, humidityOffset)
	case TypeSimulated:
		return NewSimulated(), nil
	}
	return nil, fmt.Errorf("unknown sensor type %q", kind)
}
