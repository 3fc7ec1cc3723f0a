//go:build tinygo

package main

import (
	"context"
	"machine"
	"time"

	"github.com/zephray/XserveFanSpeedController/pkg/fancontroller"
	"github.com/zephray/XserveFanSpeedController/pkg/fanslave"
	"github.com/zephray/XserveFanSpeedController/pkg/hal"
	"github.com/zephray/XserveFanSpeedController/pkg/ledengine"
	"github.com/zephray/XserveFanSpeedController/pkg/log"
	"github.com/zephray/XserveFanSpeedController/pkg/softi2c"
	"github.com/zephray/XserveFanSpeedController/pkg/telemetry"
	"github.com/zephray/XserveFanSpeedController/pkg/uplink"
	"github.com/zephray/XserveFanSpeedController/pkg/util"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const initialActualTach = 0x0ccc

// Bus lines, index is the bus id.
var busLines = [fanslave.Buses]struct{ scl, sda machine.Pin }{
	{scl: machine.GP2, sda: machine.GP3},
	{scl: machine.GP6, sda: machine.GP7},
}

func main() {
	var fans *telemetry.State
	var slave *fanslave.Slave
	var busPins [fanslave.Buses]*hal.MachinePins
	var link *uplink.Link
	var controller *fancontroller.Controller
	var status ledengine.LedEngine
	var group *errgroup.Group
	var ctx context.Context
	var err error

	// Configure status LED
	status = ledengine.NewLedEngine(ledengine.LedEngineOpts{Led: hal.NewMachineLed(machine.LED)})

	// Fan master UART
	err = machine.UART0.Configure(machine.UARTConfig{TX: machine.UART0_TX_PIN, RX: machine.UART0_RX_PIN})
	if err != nil {
		println("[!] Failed to initialize UART0:", err.Error())
		goto errprint
	}
	machine.UART0.SetBaudRate(uplink.Baudrate)

	fans = telemetry.New(initialActualTach)
	slave, err = fanslave.NewSlave(fans, fanslave.DefaultDevices)
	if err != nil {
		println("[!] Failed to create devices:", err.Error())
		goto errprint
	}

	// From here on the buses are served from pin interrupts.
	for id, lines := range busLines {
		pins := hal.NewMachinePins(lines.scl, lines.sda)
		busPins[id] = pins
		bus := softi2c.NewBus(softi2c.Config{
			Bus:       id,
			Addresses: fanslave.Addresses,
			Handler:   slave,
		}, pins)
		pins.Attach(bus)
	}

	println("[+] Buses armed, starting controller...")

	link = uplink.NewLink(blockingUART{machine.UART0}, initialActualTach)
	controller = fancontroller.New(fancontroller.Config{
		Fans:         fans,
		Master:       link,
		PollInterval: 10 * time.Millisecond,
		WaitForStart: true,
	})

	group, ctx = errgroup.WithContext(log.IntoContext(context.Background(), zap.NewNop()))
	group.Go(func() error {
		return link.Run(ctx)
	})
	group.Go(func() error {
		return controller.Run(ctx)
	})
	group.Go(func() error {
		return status.Run(ctx)
	})
	group.Go(func() error {
		updates := controller.Subscribe(1)
		defer updates.Unsubscribe()
		return ledengine.Status(ctx, status, util.RealClock{}, controller.StartedC(), updates.C())
	})
	err = group.Wait()

	// Blinking -> something went wrong
errprint:
	ledState := false
	for {
		ledState = !ledState
		machine.LED.Set(ledState)
		// Repeat error message
		println("[FATAL] controller exited with error:", err)
		for id, pins := range busPins {
			if pins != nil && pins.Failures() > 0 {
				println("[FATAL] bus", id, "interrupt re-arm failures:", pins.Failures())
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
}
