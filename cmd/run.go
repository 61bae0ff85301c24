// -- cmd/run.go --
package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/igpilot/internal/engine"
)

func newRunCmd() *cobra.Command {
	var req engine.Request

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single action and print its result as JSON",
		Long: fmt.Sprintf(`Runs one action against the persistent browser session and writes the
result to stdout. Actions: %s.

A result with "ok": false is still printed and exits zero; only failures to
produce a result (unknown action, browser launch failure) exit non-zero.`, actionList()),
		Example: `  igpilot run --action loginCheck --screenshot
  igpilot run --action followersLinks --username alice --target-user bob --max 200
  igpilot run --action sendMessage --username bob --message "hi"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			components, logger, err := setupComponents(cmd)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			res, err := components.Engine.Run(cmd.Context(), req)
			if err != nil {
				logger.Error("Action could not be run.", zap.String("action", req.Action), zap.Error(err))
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	f := runCmd.Flags()
	f.StringVarP(&req.Action, "action", "a", string(engine.ActionLoginCheck), "action to run")
	f.StringVarP(&req.Username, "username", "u", "", "account handle the action operates on")
	f.StringVar(&req.TargetUser, "target-user", "", "handle to look for among collected followers")
	f.StringVarP(&req.Message, "message", "m", "", "message text for sendMessage")
	f.StringVar(&req.ProfileURL, "profile-url", "", "recipient profile URL for sendMessage")
	f.StringVar(&req.ThreadID, "thread-id", "", "existing direct thread ID for sendMessage")
	f.StringVar(&req.DirectURL, "direct-url", "", "direct thread URL for sendMessage")
	f.BoolVar(&req.NeedScreenshot, "screenshot", false, "attach a full-page screenshot to the result")
	f.IntVar(&req.Max, "max", 0, "maximum items to collect (0 uses the configured default)")
	f.Int64Var(&req.TimeoutMs, "timeout-ms", 0, "collection time budget in milliseconds (0 uses the configured default)")
	return runCmd
}

func actionList() string {
	names := make([]string, 0, len(engine.Actions))
	for _, a := range engine.Actions {
		names = append(names, string(a))
	}
	return strings.Join(names, ", ")
}
