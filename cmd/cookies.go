// -- cmd/cookies.go --
package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/igpilot/internal/browser"
)

func newSeedCookiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-cookies [file|-]",
		Short: "Install session cookies into the browser profile",
		Long: `Reads cookies as JSON from a file, or from stdin when the argument is "-"
or omitted, and installs them for the configured site domain. Accepts either
a bare array of {"name","value"} objects or {"cookies": [...]}.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open cookie file: %w", err)
				}
				defer f.Close()
				r = f
			}

			cookies, err := readCookies(r)
			if err != nil {
				return err
			}

			components, logger, err := setupComponents(cmd)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			names, err := components.Engine.SeedCookies(cmd.Context(), cookies)
			if err != nil {
				logger.Error("Seeding cookies failed.", zap.Error(err))
				return err
			}
			if names == nil {
				names = []string{}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				OK    bool     `json:"ok"`
				Added []string `json:"added"`
			}{OK: true, Added: names})
		},
	}
}

// readCookies decodes either a JSON array of cookies or an object with a
// "cookies" array.
func readCookies(r io.Reader) ([]browser.Cookie, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var cookies []browser.Cookie
	if data[0] == '[' {
		if err := json.Unmarshal(data, &cookies); err != nil {
			return nil, fmt.Errorf("invalid cookie JSON: %w", err)
		}
		return cookies, nil
	}

	var wrapped struct {
		Cookies []browser.Cookie `json:"cookies"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("invalid cookie JSON: %w", err)
	}
	return wrapped.Cookies, nil
}
