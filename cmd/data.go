package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/querydesk/querydesk-cli/internal/client"
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Give the backend data to work on",
}

var uploadFileCmd = &cobra.Command{
	Use:   "file <path>",
	Short: "Upload a CSV, Excel or JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, func(a *app) (*client.IngestResponse, error) {
			return a.client.UploadFile(cmd.Context(), args[0])
		})
	},
}

var uploadSQLCmd = &cobra.Command{
	Use:   "sql <path>",
	Short: "Upload a SQL dump",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, func(a *app) (*client.IngestResponse, error) {
			return a.client.UploadSQL(cmd.Context(), args[0])
		})
	},
}

var uploadURLCmd = &cobra.Command{
	Use:   "url <db-url>",
	Short: "Let the backend sample a live database by URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, func(a *app) (*client.IngestResponse, error) {
			return a.client.ConnectDB(cmd.Context(), args[0])
		})
	},
}

func runIngest(cmd *cobra.Command, call func(a *app) (*client.IngestResponse, error)) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := call(a)
	if err != nil {
		return err
	}
	return a.display.renderIngest(cmd.OutOrStdout(), resp)
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List tables the backend has ingested",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		resp, err := a.client.Tables(cmd.Context())
		if err != nil {
			return err
		}
		return a.display.renderNames(cmd.OutOrStdout(), "TABLE", resp.Tables)
	},
}

var columnsCmd = &cobra.Command{
	Use:   "columns <table>",
	Short: "List the columns of an ingested table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		resp, err := a.client.Columns(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return a.display.renderColumns(cmd.OutOrStdout(), resp.Columns)
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview <table>",
	Short: "Show the first rows of an ingested table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		resp, err := a.client.Preview(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}
		return a.display.renderRowsResponse(cmd.OutOrStdout(), resp.Rows)
	},
}

var transformCmd = &cobra.Command{
	Use:   "transform <table> <column>...",
	Short: "Project an ingested table onto the given columns",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		resp, err := a.client.Transform(cmd.Context(), args[0], args[1:])
		if err != nil {
			return err
		}
		return a.display.renderRowsResponse(cmd.OutOrStdout(), resp.Rows)
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat <message...>",
	Short: "Send a free-form message to the assistant",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		resp, err := a.client.Chat(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if a.display.Format == outputJSON {
			return writeJSON(cmd.OutOrStdout(), resp)
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Text())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd, tablesCmd, columnsCmd, previewCmd, transformCmd, chatCmd)
	uploadCmd.AddCommand(uploadFileCmd, uploadSQLCmd, uploadURLCmd)

	previewCmd.Flags().Int("limit", client.DefaultPreviewLimit, "Number of rows to show")
}
