package emulator

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"github.com/zephray/XserveFanSpeedController/pkg/fanslave"
	"github.com/zephray/XserveFanSpeedController/pkg/hal"
	"github.com/zephray/XserveFanSpeedController/pkg/uplink"
)

// ErrNoBuses is returned when hardware mode is requested without buses.
var ErrNoBuses = errors.New("no buses configured")

// BusConfig is one slave bus and the lines it lives on.
type BusConfig struct {
	// ID selects the device family of the bus: 0 or 1.
	ID            int `mapstructure:"id"`
	hal.BusConfig `mapstructure:",squash"`
}

// UplinkConfig selects the fan master.
type UplinkConfig struct {
	// Port is the serial device of the fan master. Empty selects the
	// loopback master.
	Port     string `mapstructure:"port"`
	Baudrate int    `mapstructure:"baudrate"`
}

// Config is the emulator configuration.
type Config struct {
	Buses []BusConfig `mapstructure:"buses"`

	// Devices is the number of emulated fan controllers.
	Devices int `mapstructure:"devices"`
	// InitialActualTach is reported on every slot until the fan master
	// delivers measurements.
	InitialActualTach uint16 `mapstructure:"initial_actual_tach"`
	// PollInterval is how often the controller checks for host requests.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// WaitForStart holds the fan master until the host writes the start
	// register.
	WaitForStart bool `mapstructure:"wait_for_start"`

	Uplink UplinkConfig `mapstructure:"uplink"`

	// Listen is the address of the metrics endpoint.
	Listen string `mapstructure:"listen"`

	// StatusLed blinks while waiting for the host and lights once the fans
	// run.
	StatusLed hal.LedConfig `mapstructure:"status_led"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("devices", fanslave.DefaultDevices)
	v.SetDefault("initial_actual_tach", 0x0ccc)
	v.SetDefault("poll_interval", 10*time.Millisecond)
	v.SetDefault("wait_for_start", true)
	v.SetDefault("uplink.port", "")
	v.SetDefault("uplink.baudrate", uplink.Baudrate)
	v.SetDefault("listen", ":9667")
	v.SetDefault("status_led.chip", "gpiochip0")
	v.SetDefault("status_led.line", -1)
}

// LoadConfig decodes and validates the configuration held by v.
func LoadConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration. Buses are optional here; hardware mode
// checks for them when it opens the pins.
func (c Config) Validate() error {
	var errs []error
	if c.Devices < 1 || c.Devices > fanslave.DefaultDevices {
		errs = append(errs, fmt.Errorf("devices must be in [1, %d], got %d", fanslave.DefaultDevices, c.Devices))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval))
	}
	if c.Uplink.Port != "" && c.Uplink.Baudrate <= 0 {
		errs = append(errs, fmt.Errorf("uplink.baudrate must be positive, got %d", c.Uplink.Baudrate))
	}

	seen := make(map[int]bool)
	for i, b := range c.Buses {
		if b.ID < 0 || b.ID >= fanslave.Buses {
			errs = append(errs, fmt.Errorf("buses[%d]: id must be in [0, %d), got %d", i, fanslave.Buses, b.ID))
		}
		if seen[b.ID] {
			errs = append(errs, fmt.Errorf("buses[%d]: duplicate id %d", i, b.ID))
		}
		seen[b.ID] = true
		if err := b.BusConfig.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("buses[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
