//go:build tinygo

package hal

import "machine"

type machineLed struct {
	pin machine.Pin
}

// NewMachineLed configures pin as the status LED output, initially off.
func NewMachineLed(pin machine.Pin) Led {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pin.Set(false)
	return machineLed{pin: pin}
}

func (l machineLed) Set(on bool) error {
	l.pin.Set(on)
	return nil
}
