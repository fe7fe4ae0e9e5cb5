package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/querydesk/querydesk-cli/internal/config"
	"github.com/querydesk/querydesk-cli/internal/mirror"
)

// linerLine adapts liner.State to replLine.
type linerLine struct {
	*liner.State
}

func runRepl(cmd *cobra.Command, args []string) error {
	_ = args

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(makeCompleter(a.client))

	historyPath, _ := config.GetHistoryPath()
	if f, err := os.Open(historyPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	if fs, ok := a.storage.(*mirror.FileStorage); ok {
		if err := fs.Watch(ctx, func(key string) {
			if key != mirror.KeyDatabases && key != mirror.KeyResults {
				return
			}
			if a.store.Busy() {
				return
			}
			if err := a.store.Reload(); err != nil {
				a.log.WithError(err).Warn("Ignoring unreadable mirror change")
			}
		}); err != nil {
			a.log.WithError(err).Debug("Mirror watch unavailable")
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "QueryDesk REPL (Backend: %s)\n", a.cfg.Backend.URL)
	fmt.Fprintln(out, "Type 'help' for commands, 'exit' to leave.")
	if len(a.store.Databases()) == 0 {
		fmt.Fprintln(out, "No databases registered yet. Use '\\add' to register one.")
	}

	err = replLoop(ctx, a, linerLine{line}, out)

	if f, err := os.Create(historyPath); err == nil {
		line.WriteHistory(f)
		f.Close()
	}
	return err
}

// replLoop reads lines until exit or EOF. Backslash commands and help/exit go
// through the registry; any other line is a question for every database.
func replLoop(ctx context.Context, a *app, line replLine, out io.Writer) error {
	for {
		input, err := line.Prompt("querydesk> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(out, "^C")
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		rctx := &replDispatchContext{
			Ctx:            ctx,
			App:            a,
			Line:           line,
			Out:            out,
			Input:          input,
			Lower:          strings.ToLower(input),
			InvalidateFunc: invalidateCache,
		}
		handled, shouldBreak := dispatchReplMeta(rctx)
		if shouldBreak {
			return nil
		}
		if handled {
			continue
		}

		line.AppendHistory(input)
		if err := a.ask(ctx, out, input); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start the interactive REPL (same as running without a subcommand)",
	Args:  cobra.NoArgs,
	RunE:  runRepl,
}

func init() {
	rootCmd.AddCommand(replCmd)
}
