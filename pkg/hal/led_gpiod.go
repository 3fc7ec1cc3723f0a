//go:build linux && !tinygo

package hal

import (
	"errors"
	"fmt"

	"github.com/warthog618/gpiod"
)

// GpiodLed is a status LED on a GPIO output line, active high.
type GpiodLed struct {
	chip *gpiod.Chip
	line *gpiod.Line
}

var _ Led = &GpiodLed{}

// NewGpiodLed requests the line of cfg as an output, initially off.
func NewGpiodLed(cfg LedConfig) (*GpiodLed, error) {
	chip, err := gpiod.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.Chip, err)
	}
	line, err := chip.RequestLine(cfg.Line, gpiod.AsOutput(0))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("requesting led line %d: %w", cfg.Line, err), chip.Close())
	}
	return &GpiodLed{chip: chip, line: line}, nil
}

func (l *GpiodLed) Set(on bool) error {
	if on {
		return l.line.SetValue(1)
	}
	return l.line.SetValue(0)
}

// Close turns the LED off and releases the line.
func (l *GpiodLed) Close() error {
	return errors.Join(
		l.line.SetValue(0),
		l.line.Close(),
		l.chip.Close(),
	)
}
