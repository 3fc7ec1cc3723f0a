package fanslave

import (
	"fmt"

	"github.com/zephray/XserveFanSpeedController/pkg/softi2c"
)

const (
	// Buses is the number of physical slave buses.
	Buses = 2
	// DevicesPerBus is the size of the address family on one bus.
	DevicesPerBus = 4
	// MaxDevices is the number of device indices the address scheme yields.
	MaxDevices = Buses * DevicesPerBus

	// BaseAddress is the lowest 7-bit device address (pattern 1010xxx).
	// Within a bus the highest address has the lowest device index.
	BaseAddress uint8 = 0x50

	// AuxAddress is an I/O expander the host probes; it always reads AuxReply.
	AuxAddress uint8 = 0x41
	AuxReply   uint8 = 0xfd

	// idleByte is what the host sees when nobody drives the bus.
	idleByte uint8 = 0xff
)

// Addresses are the raw address patterns the bus decoders acknowledge.
var Addresses = []softi2c.AddressPattern{
	{Value: BaseAddress << 1, Mask: 0xf8},
	{Value: AuxAddress << 1, Mask: 0xfe},
}

// DeviceIndex maps a bus and 7-bit address to a device index. It reports
// false for addresses outside the device family.
func DeviceIndex(bus int, addr uint8) (int, bool) {
	if bus < 0 || bus >= Buses {
		return 0, false
	}
	if addr < BaseAddress || addr >= BaseAddress+DevicesPerBus {
		return 0, false
	}
	offset := int(addr - BaseAddress)
	return bus*DevicesPerBus + (DevicesPerBus - 1 - offset), true
}

// DeviceAddress is the inverse of DeviceIndex.
func DeviceAddress(index int) (bus int, addr uint8, ok bool) {
	if index < 0 || index >= MaxDevices {
		return 0, 0, false
	}
	return index / DevicesPerBus, BaseAddress + uint8(DevicesPerBus-1-index%DevicesPerBus), true
}

// Router is the routing table from (bus, address) to device, built once.
type Router struct {
	table   [Buses][DevicesPerBus]*Device
	devices []*Device
}

// NewRouter places every device at the address its index maps to.
func NewRouter(devices []*Device) (*Router, error) {
	r := &Router{}
	for _, d := range devices {
		if d.Index() < 0 || d.Index() >= MaxDevices {
			return nil, fmt.Errorf("device index %d out of range [0, %d)", d.Index(), MaxDevices)
		}
		bus := d.Index() / DevicesPerBus
		offset := DevicesPerBus - 1 - d.Index()%DevicesPerBus
		if r.table[bus][offset] != nil {
			return nil, fmt.Errorf("duplicate device index %d", d.Index())
		}
		r.table[bus][offset] = d
		r.devices = append(r.devices, d)
	}
	return r, nil
}

// Lookup resolves a raw address byte (R/W bit included) on bus.
func (r *Router) Lookup(bus int, raw uint8) (*Device, bool) {
	addr := raw >> 1
	if _, ok := DeviceIndex(bus, addr); !ok {
		return nil, false
	}
	d := r.table[bus][addr-BaseAddress]
	return d, d != nil
}

// Bus returns the devices reachable on bus.
func (r *Router) Bus(bus int) []*Device {
	if bus < 0 || bus >= Buses {
		return nil
	}
	devices := make([]*Device, 0, DevicesPerBus)
	for _, d := range r.table[bus] {
		if d != nil {
			devices = append(devices, d)
		}
	}
	return devices
}

// StopBus ends the transaction of every device on bus. A stop condition is
// seen by all devices sharing the wires, not only the last one addressed.
func (r *Router) StopBus(bus int) {
	if bus < 0 || bus >= Buses {
		return
	}
	for _, d := range r.table[bus] {
		if d != nil {
			d.Stop()
		}
	}
}

// Devices returns all routed devices in index order of registration.
func (r *Router) Devices() []*Device { return r.devices }
