// Package hal connects bus decoders to real pins.
package hal

import (
	"fmt"

	"github.com/zephray/XserveFanSpeedController/pkg/softi2c"
)

// BusPins is the pin pair serving one softi2c.Bus.
type BusPins interface {
	softi2c.Pins
	// Attach sets the bus receiving edge events. Events raised before are
	// dropped.
	Attach(bus *softi2c.Bus)
	Close() error
}

// BusConfig names the lines of one bus.
type BusConfig struct {
	// Chip is the GPIO controller, e.g. "gpiochip0". Unused on the firmware.
	Chip string `mapstructure:"chip"`
	SCL  int    `mapstructure:"scl"`
	SDA  int    `mapstructure:"sda"`
}

// Validate checks the line assignment.
func (c BusConfig) Validate() error {
	if c.SCL < 0 || c.SDA < 0 {
		return fmt.Errorf("negative line offset (scl %d, sda %d)", c.SCL, c.SDA)
	}
	if c.SCL == c.SDA {
		return fmt.Errorf("scl and sda share line %d", c.SCL)
	}
	return nil
}
