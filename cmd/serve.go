// -- cmd/serve.go --
package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/igpilot/internal/server"
)

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the action API over HTTP",
		Long: `Starts the HTTP API (/health, /seed-cookies, /run, /metrics) in front of
a single persistent browser session. Jobs are executed one at a time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			components, logger, err := setupComponents(cmd)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			srv := server.New(cfg.Server(), components.Engine, logger)
			if err := srv.Run(cmd.Context()); err != nil {
				logger.Error("Server stopped with error.", zap.Error(err))
				return err
			}
			return nil
		},
	}

	serveCmd.Flags().String("port", "", "listen port (overrides server.port)")
	serveCmd.Flags().String("token", "", "bearer token required on every request (overrides server.auth_token)")
	return serveCmd
}
