package cmd

import (
	"context"
	"fmt"

	"testgate/internal/app"

	"github.com/spf13/cobra"
)

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveConfigPath specifies a custom configuration directory. When empty the
// user config directory (~/.config/testgate) is used.
var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the testgate gateway server",
	Long: `Starts the gateway and serves the MCP tool interface on both inbound
transports: an SSE endpoint (session assigned at stream open, messages via the
companion /message endpoint) and a streamable HTTP endpoint (session assigned
at initialize and echoed on follow-up messages).

Credentials travel per connection: an Authorization header carrying
"Token <value>" or "Bearer <value>", or the token/username/password query
parameters for clients that cannot set headers. The gateway forwards them to
the upstream platform and keeps per-connection session affinity with it.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(serveDebug, serveConfigPath, GetVersion())

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable general debug logging")
	serveCmd.Flags().StringVar(&serveConfigPath, "config-path", "", "Custom configuration directory path")
}
