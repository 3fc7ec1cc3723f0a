package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zephray/XserveFanSpeedController/internal/emulator"
	"github.com/zephray/XserveFanSpeedController/pkg/fancontroller"
	"github.com/zephray/XserveFanSpeedController/pkg/fanslave"
	"github.com/zephray/XserveFanSpeedController/pkg/log"
	"github.com/zephray/XserveFanSpeedController/pkg/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	simRounds   int
	simInterval time.Duration
	simTach     uint16
)

func init() {
	cmdSimulate.Flags().IntVar(&simRounds, "rounds", 10, "update rounds played by the simulated host")
	cmdSimulate.Flags().DurationVar(&simInterval, "interval", 200*time.Millisecond, "time between update rounds")
	cmdSimulate.Flags().Uint16Var(&simTach, "tach", 0x0400, "requested tach of the first round")
	rootCmd.AddCommand(cmdSimulate)
}

var cmdSimulate = &cobra.Command{
	Use:   "simulate",
	Short: "Run the emulator against a simulated host on simulated buses",
	Long: "simulate replaces the GPIO lines with simulated wires and plays the host side of the " +
		"protocol on them: start, then a number of update rounds, each followed by reading back " +
		"the measured tach values. The fan master is taken from the config, loopback by default.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}
		cfg.Buses = make([]emulator.BusConfig, fanslave.Buses)
		for i := range cfg.Buses {
			cfg.Buses[i].ID = i
			cfg.Buses[i].SCL, cfg.Buses[i].SDA = 2*i, 2*i+1
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sim := emulator.NewSimWires()
		e, err := emulator.New(ctx, cfg, emulator.Options{Pins: sim.Pins})
		if err != nil {
			return err
		}
		updates := e.Controller().Subscribe(1)
		defer updates.Unsubscribe()

		wg, ctx := errgroup.WithContext(ctx)
		wg.Go(func() error {
			return e.Run(ctx)
		})
		wg.Go(func() error {
			defer cancel()
			return playHost(ctx, sim.Host(cfg.Devices), updates.C())
		})

		if err := wg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func playHost(ctx context.Context, host *emulator.Host, updates <-chan fancontroller.Update) error {
	logger := log.FromContext(ctx).Named("host")

	if err := host.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	var fans [telemetry.Slots]telemetry.Fan
	for round := 0; round < simRounds; round++ {
		for i := range fans {
			fans[i] = telemetry.Fan{
				Slot:          i,
				Enabled:       (i+round)%3 != 0,
				RequestedTach: simTach + uint16(round*0x10+i),
			}
		}
		if err := host.SetFans(fans); err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}

		// The round only completes when the trigger device is emulated.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-updates:
		case <-time.After(simInterval):
			logger.Warn("No update from controller", zap.Int("round", round))
		}

		actual, err := host.ReadActual()
		if err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}
		logger.Info("Round complete", zap.Int("round", round), zap.Uint16s("actual_tach", actual[:]))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(simInterval):
		}
	}
	return nil
}
