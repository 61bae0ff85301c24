// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/igpilot/internal/config"
	"github.com/xkilldash9x/igpilot/internal/observability"
	"github.com/xkilldash9x/igpilot/internal/service"
)

type contextKey string

const configKey contextKey = "config"

// flagBindings maps configuration keys to the command line flags that
// override them. A flag is bound only when the running command defines it.
var flagBindings = map[string]string{
	"server.port":         "port",
	"server.auth_token":   "token",
	"browser.headless":    "headless",
	"browser.profile_dir": "profile-dir",
	"logger.level":        "log-level",
}

// componentFactory is replaced in tests to run commands against a fake browser.
var componentFactory = service.NewComponentFactory

// NewRootCommand builds a fresh command tree. Configuration is resolved per
// invocation so tests can execute the tree repeatedly.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "igpilot",
		Short:         "igpilot drives a logged-in browser session through scripted site actions.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)
			if err := initializeConfig(cmd, v, cfgFile); err != nil {
				observability.InitializeLogger(fallbackLoggerConfig())
				return err
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(fallbackLoggerConfig())
				return fmt.Errorf("failed to load config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Info("Starting igpilot", zap.String("version", Version), zap.String("command", cmd.Name()))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, config.Interface(cfg)))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("profile-dir", "", "browser profile directory holding the persistent session")
	rootCmd.PersistentFlags().Bool("headless", true, "run the browser without a window")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newServeCmd(), newRunCmd(), newSeedCookiesCmd(), newVersionCmd())
	return rootCmd
}

// Execute runs the command tree under ctx, which is canceled on SIGINT or SIGTERM.
func Execute(ctx context.Context) error {
	defer observability.Sync()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func fallbackLoggerConfig() config.LoggerConfig {
	return config.LoggerConfig{Level: "info", Format: "console", ServiceName: "igpilot"}
}

// initializeConfig reads the config file, IGPILOT_ environment variables and
// any flags set on cmd into v.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("IGPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	for key, name := range flagBindings {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// getConfigFromContext returns the configuration stored by the root pre-run.
func getConfigFromContext(ctx context.Context) (config.Interface, error) {
	cfg, ok := ctx.Value(configKey).(config.Interface)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not initialized")
	}
	return cfg, nil
}

// setupComponents resolves the configuration and builds the component set.
func setupComponents(cmd *cobra.Command) (*service.Components, *zap.Logger, error) {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	logger := observability.GetLogger()
	components, err := componentFactory().Create(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize components: %w", err)
	}
	return components, logger, nil
}
