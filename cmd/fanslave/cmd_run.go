//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/zephray/XserveFanSpeedController/internal/emulator"
	"github.com/zephray/XserveFanSpeedController/pkg/hal"
	"github.com/zephray/XserveFanSpeedController/pkg/log"
	"go.uber.org/zap"
)

func init() {
	cmdRun.Flags().String("listen", ":9667", "address of the prometheus endpoint")
	cmdRun.Flags().String("uplink-port", "", "serial port of the fan master, loopback if empty")
	_ = v.BindPFlag("listen", cmdRun.Flags().Lookup("listen"))
	_ = v.BindPFlag("uplink.port", cmdRun.Flags().Lookup("uplink-port"))
	rootCmd.AddCommand(cmdRun)
}

func gpiodPins(ctx context.Context, bus emulator.BusConfig) (hal.BusPins, error) {
	return hal.NewGpiodPins(ctx, bus.ID, bus.BusConfig)
}

var cmdRun = &cobra.Command{
	Use:   "run",
	Short: "Serve the configured GPIO buses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var wg sync.WaitGroup

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}

		ctx, cancelCtx := context.WithCancelCause(cmd.Context())
		defer cancelCtx(context.Canceled)

		opts := emulator.Options{Pins: gpiodPins}
		if cfg.StatusLed.Enabled() {
			led, err := hal.NewGpiodLed(cfg.StatusLed)
			if err != nil {
				return err
			}
			defer func() {
				if err := led.Close(); err != nil {
					log.FromContext(ctx).Warn("Failed to release status LED", zap.Error(err))
				}
			}()
			opts.Led = led
		}

		e, err := emulator.New(ctx, cfg, opts)
		if err != nil {
			log.FromContext(ctx).Error("Failed to create emulator", zap.Error(err))
			return err
		}
		prometheus.MustRegister(e.Collector())

		// setup stop signal handlers
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case <-ctx.Done():
			case sig := <-sigs:
				log.FromContext(ctx).Info("Signal received", zap.Stringer("signal", sig))
				cancelCtx(context.Canceled)
			}
		}()

		// Run emulator
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := e.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.FromContext(ctx).Error("Failed to run emulator", zap.Error(err))
				cancelCtx(err)
			}
		}()

		// setup prometheus endpoint
		promHandler := http.NewServeMux()
		promHandler.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: cfg.Listen, Handler: promHandler}
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := server.ListenAndServe()
			if err != nil && err != http.ErrServerClosed {
				log.FromContext(ctx).Error("Failed to start prometheus server", zap.Error(err))
				cancelCtx(err)
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err := server.Shutdown(shutdownCtx)
			if err != nil {
				log.FromContext(ctx).Error("Failed to shutdown prometheus server", zap.Error(err))
			}
		}()

		wg.Wait()
		if err := context.Cause(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("exiting: %w", err)
		}
		log.FromContext(ctx).Info("Exiting")
		return nil
	},
}
