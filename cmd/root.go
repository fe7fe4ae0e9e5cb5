package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "querydesk",
	Short: "QueryDesk asks one natural-language question of many databases",
	Long: `A command-line console for a natural-language database agent.

Register databases, type a question, and QueryDesk sends it to the backend
once per database and shows every answer side by side.

Run without a subcommand to start the interactive REPL.`,
	SilenceUsage: true,
	RunE:         runRepl,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.String("config", "", "Config file (default ~/.querydesk/config.yaml)")

	// Backend
	pf.StringP("server", "s", "http://127.0.0.1:8000", "Backend server URL")
	pf.String("agent-prefix", "/api", "Path prefix of the agent endpoint")
	pf.Int("timeout-ms", 5000, "Connection timeout in milliseconds")
	pf.String("csrf-token", "", "CSRF token to send when the backend has not set a csrftoken cookie")

	// Local state
	pf.String("mirror", "file", "Where state is kept: file or sqlite")
	pf.String("mirror-path", "", "Mirror directory (file) or database file (sqlite)")

	// Dispatch
	pf.Int("concurrency", 1, "Databases queried at once (1 = one after another)")
	pf.Int("call-timeout-ms", 0, "Per-database call timeout in milliseconds (0 = none)")

	// Output
	pf.Bool("plain", false, "Use plain ASCII output instead of Unicode box-drawing characters.")
	pf.Int("max-col-width", 32, "Truncate table cells to this many characters")
	pf.StringP("output", "o", "table", "Output format: table or json")
	pf.String("log-level", "warn", "Log level: debug, info, warn or error")
}
