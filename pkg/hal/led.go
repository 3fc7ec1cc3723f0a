package hal

// Led is a single on/off status LED.
type Led interface {
	Set(on bool) error
}

// LedConfig names the line of the status LED. A negative line disables it.
type LedConfig struct {
	Chip string `mapstructure:"chip"`
	Line int    `mapstructure:"line"`
}

// Enabled reports whether a line is configured.
func (c LedConfig) Enabled() bool { return c.Line >= 0 }
