package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the testgate application.
var rootCmd = &cobra.Command{
	Use:   "testgate",
	Short: "MCP gateway for the test-execution platform",
	Long: `testgate fronts a stateful test-execution REST platform with an MCP
tool interface. Clients connect over SSE or streamable HTTP, authenticate
with a platform token or username/password, and call tools to list projects
and suites, start suite executions, and read execution results.`,
	// SilenceUsage prevents cobra from printing usage on errors the
	// application already reports itself.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from main to
// inject the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "testgate version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
