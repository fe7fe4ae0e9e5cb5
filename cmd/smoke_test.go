package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// executeRootCmd runs the cobra root command with the given args and captures stdout/stderr.
func executeRootCmd(t *testing.T, args ...string) (stdout string, stderr string, err error) {
	t.Helper()

	// Cobra commands are global singletons in this package; avoid parallel execution.
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	resetCommandFlags(rootCmd)
	rootCmd.SetOut(outBuf)
	rootCmd.SetErr(errBuf)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)

	err = rootCmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

// resetCommandFlags puts every flag back to its default. Flag values outlive
// a single Execute call.
func resetCommandFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetCommandFlags(sub)
	}
}

// TestCLI_HelpSmoke verifies that the CLI command tree is wired and can render help.
func TestCLI_HelpSmoke(t *testing.T) {
	stdout, _, err := executeRootCmd(t, "--help")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if !strings.Contains(stdout, "Usage:") || !strings.Contains(stdout, "querydesk [command]") {
		t.Fatalf("expected help output to include usage for querydesk, got: %q", stdout)
	}
	if !strings.Contains(strings.ToLower(stdout), "run without a subcommand") {
		t.Fatalf("expected help output to describe default REPL behavior, got: %q", stdout)
	}
}

// TestCLI_SubcommandHelpSmoke verifies key subcommands can render help without backend access.
func TestCLI_SubcommandHelpSmoke(t *testing.T) {
	cases := []struct {
		name        string
		args        []string
		wantSubstrs []string
	}{
		{name: "db_help", args: []string{"db", "--help"}, wantSubstrs: []string{"add", "ls", "rm", "probe"}},
		{name: "db_add_help", args: []string{"db", "add", "--help"}, wantSubstrs: []string{"--type", "--password-stdin"}},
		{name: "ask_help", args: []string{"ask", "--help"}, wantSubstrs: []string{"question"}},
		{name: "results_help", args: []string{"results", "--help"}, wantSubstrs: []string{"--failed"}},
		{name: "schema_help", args: []string{"schema", "--help"}, wantSubstrs: []string{"connect", "export", "import"}},
		{name: "upload_help", args: []string{"upload", "--help"}, wantSubstrs: []string{"file", "sql", "url"}},
		{name: "repl_help", args: []string{"repl", "--help"}, wantSubstrs: []string{"interactive"}},
		{name: "preview_help", args: []string{"preview", "--help"}, wantSubstrs: []string{"--limit"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stdout, _, err := executeRootCmd(t, tc.args...)
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			for _, sub := range tc.wantSubstrs {
				if !strings.Contains(strings.ToLower(stdout), strings.ToLower(sub)) {
					t.Fatalf("expected help output to contain %q, got: %q", sub, stdout)
				}
			}
		})
	}
}
