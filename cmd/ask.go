package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/querydesk/querydesk-cli/internal/model"
)

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Send a question to every registered database",
	Long: `Send a natural-language question to the backend once per registered
database and show each database's answer. Results are saved and can be shown
again with 'querydesk results'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		prompt := strings.Join(args, " ")
		return a.ask(cmd.Context(), cmd.OutOrStdout(), prompt)
	},
}

// ask runs prompt against every database and renders the outcome. A
// dispatch that cannot start is reported as one error line.
func (a *app) ask(ctx context.Context, w io.Writer, prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		fmt.Fprintln(w, "Error: question is empty")
		return nil
	}
	if len(a.store.Databases()) == 0 {
		fmt.Fprintln(w, "Error: no databases configured. Add one with 'db add'.")
		return nil
	}

	a.store.SetPrompt(prompt)
	if err := a.dispatcher.Dispatch(ctx); err != nil {
		// Results were produced but could not be saved; still show them.
		fmt.Fprintf(w, "Warning: %v\n", err)
	}
	return a.display.renderResults(w, a.store.Results())
}

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Show the results of the last question",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		results := a.store.Results()
		if id, _ := cmd.Flags().GetInt64("db"); id != 0 {
			results = filterResults(results, id)
		}
		failedOnly, _ := cmd.Flags().GetBool("failed")
		if failedOnly {
			kept := results[:0]
			for _, r := range results {
				if r.Failed() {
					kept = append(kept, r)
				}
			}
			results = kept
		}
		return a.display.renderResults(cmd.OutOrStdout(), results)
	},
}

func filterResults(results []model.DBResult, id int64) []model.DBResult {
	out := make([]model.DBResult, 0, 1)
	for _, r := range results {
		if r.DB.ID == id {
			out = append(out, r)
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(askCmd, resultsCmd)
	resultsCmd.Flags().Int64("db", 0, "Only show results for this database id")
	resultsCmd.Flags().Bool("failed", false, "Only show databases whose call failed")
}
