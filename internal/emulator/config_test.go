package emulator_test

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zephray/XserveFanSpeedController/internal/emulator"
	"github.com/zephray/XserveFanSpeedController/pkg/hal"
)

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()

	v := viper.New()
	emulator.SetDefaults(v)
	if yaml != "" {
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	}
	return v
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := emulator.LoadConfig(newViper(t, ""))
	require.NoError(t, err)

	assert.Empty(t, cfg.Buses)
	assert.Equal(t, 7, cfg.Devices)
	assert.Equal(t, uint16(0x0ccc), cfg.InitialActualTach)
	assert.Equal(t, 10*time.Millisecond, cfg.PollInterval)
	assert.True(t, cfg.WaitForStart)
	assert.Equal(t, "", cfg.Uplink.Port)
	assert.Equal(t, 115200, cfg.Uplink.Baudrate)
	assert.Equal(t, ":9667", cfg.Listen)
	assert.Equal(t, hal.LedConfig{Chip: "gpiochip0", Line: -1}, cfg.StatusLed)
	assert.False(t, cfg.StatusLed.Enabled())
}

func TestLoadConfigYAML(t *testing.T) {
	t.Parallel()

	cfg, err := emulator.LoadConfig(newViper(t, `
buses:
  - id: 0
    chip: gpiochip0
    scl: 2
    sda: 3
  - id: 1
    chip: gpiochip0
    scl: 22
    sda: 23
devices: 5
initial_actual_tach: 4096
poll_interval: 25ms
wait_for_start: false
uplink:
  port: /dev/ttyUSB0
  baudrate: 9600
listen: 127.0.0.1:9000
status_led:
  line: 17
`))
	require.NoError(t, err)

	assert.Equal(t, []emulator.BusConfig{
		{ID: 0, BusConfig: hal.BusConfig{Chip: "gpiochip0", SCL: 2, SDA: 3}},
		{ID: 1, BusConfig: hal.BusConfig{Chip: "gpiochip0", SCL: 22, SDA: 23}},
	}, cfg.Buses)
	assert.Equal(t, 5, cfg.Devices)
	assert.Equal(t, uint16(0x1000), cfg.InitialActualTach)
	assert.Equal(t, 25*time.Millisecond, cfg.PollInterval)
	assert.False(t, cfg.WaitForStart)
	assert.Equal(t, emulator.UplinkConfig{Port: "/dev/ttyUSB0", Baudrate: 9600}, cfg.Uplink)
	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, hal.LedConfig{Chip: "gpiochip0", Line: 17}, cfg.StatusLed)
	assert.True(t, cfg.StatusLed.Enabled())
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("FANSLAVE_DEVICES", "3")
	t.Setenv("FANSLAVE_UPLINK_PORT", "/dev/ttyACM0")

	v := newViper(t, "")
	v.SetEnvPrefix("FANSLAVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := emulator.LoadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Devices)
	assert.Equal(t, "/dev/ttyACM0", cfg.Uplink.Port)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid := func() emulator.Config {
		return emulator.Config{
			Buses: []emulator.BusConfig{
				{ID: 0, BusConfig: hal.BusConfig{SCL: 2, SDA: 3}},
				{ID: 1, BusConfig: hal.BusConfig{SCL: 4, SDA: 5}},
			},
			Devices:      7,
			PollInterval: time.Millisecond,
			Uplink:       emulator.UplinkConfig{Baudrate: 115200},
		}
	}

	testcases := []struct {
		name   string
		modify func(*emulator.Config)
		errMsg string
	}{
		{"valid", func(*emulator.Config) {}, ""},
		{"no buses", func(c *emulator.Config) { c.Buses = nil }, ""},
		{"zero devices", func(c *emulator.Config) { c.Devices = 0 }, "devices must be in [1, 7]"},
		{"too many devices", func(c *emulator.Config) { c.Devices = 8 }, "devices must be in [1, 7]"},
		{"zero poll interval", func(c *emulator.Config) { c.PollInterval = 0 }, "poll_interval must be positive"},
		{"port without baudrate", func(c *emulator.Config) {
			c.Uplink = emulator.UplinkConfig{Port: "/dev/ttyUSB0"}
		}, "uplink.baudrate must be positive"},
		{"bus id out of range", func(c *emulator.Config) { c.Buses[1].ID = 2 }, "buses[1]: id must be in [0, 2)"},
		{"duplicate bus id", func(c *emulator.Config) { c.Buses[1].ID = 0 }, "buses[1]: duplicate id 0"},
		{"shared line", func(c *emulator.Config) { c.Buses[0].SDA = 2 }, "buses[0]: scl and sda share line 2"},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tc.modify(&cfg)
			err := cfg.Validate()
			if tc.errMsg == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tc.errMsg)
			}
		})
	}
}

func TestConfigValidateJoinsErrors(t *testing.T) {
	t.Parallel()

	err := emulator.Config{}.Validate()
	assert.ErrorContains(t, err, "devices")
	assert.ErrorContains(t, err, "poll_interval")
}
