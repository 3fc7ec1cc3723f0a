package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zephray/XserveFanSpeedController/internal/emulator"
	"github.com/zephray/XserveFanSpeedController/pkg/log"
	"go.uber.org/zap"
)

var (
	cfgFile   string
	logFormat string
	debug     bool

	v = viper.New()
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default fanslave.yaml in . or /etc/fanslave)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log output format, console or json")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	emulator.SetDefaults(v)
	v.SetEnvPrefix("FANSLAVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

var rootCmd = &cobra.Command{
	Use:          "fanslave",
	Short:        "fanslave emulates the fan controllers of an Xserve on a pair of GPIO I2C buses",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		zapLogger, err := log.New(logFormat, debug)
		if err != nil {
			return err
		}
		zapLogger = zapLogger.With(zap.String("app", "fanslave"))
		_ = zap.ReplaceGlobals(zapLogger.With(zap.String("scope", "global")))

		cmd.SetContext(log.IntoContext(cmd.Context(), zapLogger))
		return nil
	},
}

// loadConfig reads the config file, if any, and decodes it on top of the
// defaults and the environment.
func loadConfig(ctx context.Context) (emulator.Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("fanslave")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/fanslave")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return emulator.Config{}, fmt.Errorf("reading config: %w", err)
		}
		log.FromContext(ctx).Info("No config file found, using defaults")
	} else {
		log.FromContext(ctx).Info("Using config file", zap.String("file", v.ConfigFileUsed()))
	}

	return emulator.LoadConfig(v)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
