package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/querydesk/querydesk-cli/internal/model"
	"github.com/querydesk/querydesk-cli/internal/probe"
	"github.com/querydesk/querydesk-cli/internal/store"
	"github.com/querydesk/querydesk-cli/internal/ui"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the databases questions are sent to",
}

var dbAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a database",
	Long: `Register a database connection descriptor.

Type, host and user are required. When they are missing and the terminal is
interactive, you are prompted for them. The password is prompted for (hidden)
when --password is not given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		cfg, err := databaseFromFlags(cmd)
		if err != nil {
			return err
		}

		saved, err := a.store.AddDatabase(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added database %s\n", saved.String())
		return nil
	},
}

func databaseFromFlags(cmd *cobra.Command) (model.DatabaseConfig, error) {
	var cfg model.DatabaseConfig
	cfg.Type, _ = cmd.Flags().GetString("type")
	cfg.Host, _ = cmd.Flags().GetString("host")
	cfg.Port, _ = cmd.Flags().GetInt("port")
	cfg.User, _ = cmd.Flags().GetString("user")
	cfg.Database, _ = cmd.Flags().GetString("database")

	passwordStdin, _ := cmd.Flags().GetBool("password-stdin")
	switch {
	case passwordStdin:
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return cfg, fmt.Errorf("read password from stdin: %w", err)
		}
		cfg.Password = strings.TrimRight(line, "\r\n")
	case cmd.Flags().Changed("password"):
		cfg.Password, _ = cmd.Flags().GetString("password")
	}

	if !ui.IsTerminal(os.Stdin) || passwordStdin {
		return cfg, nil
	}

	p := ui.NewPrompter()
	fields := []struct {
		label string
		dst   *string
	}{
		{"Type", &cfg.Type},
		{"Host", &cfg.Host},
		{"User", &cfg.User},
	}
	for _, f := range fields {
		if strings.TrimSpace(*f.dst) != "" {
			continue
		}
		v, err := p.PromptField(f.label, "")
		if err != nil {
			return cfg, err
		}
		*f.dst = v
	}
	if !cmd.Flags().Changed("password") {
		pw, err := p.PromptPassword()
		if err != nil {
			return cfg, err
		}
		cfg.Password = pw
	}
	return cfg, nil
}

var dbLsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List registered databases",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.display.renderDatabases(cmd.OutOrStdout(), a.store.Databases())
	},
}

var dbRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"remove"},
	Short:   "Remove a database and its results",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseDatabaseID(args[0])
		if err != nil {
			return err
		}
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		db, ok := a.store.Database(id)
		if !ok {
			return fmt.Errorf("%w: %d", store.ErrNotFound, id)
		}
		ok, err = confirm(cmd, fmt.Sprintf("Remove database %s and its results?", db.String()))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}

		if err := a.store.RemoveDatabase(id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed database #%d\n", id)
		return nil
	},
}

var dbProbeCmd = &cobra.Command{
	Use:   "probe [id...]",
	Short: "Check whether databases are reachable from this machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		dbs, err := selectDatabases(a.store.Databases(), args)
		if err != nil {
			return err
		}
		if len(dbs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No databases configured.")
			return nil
		}

		timeout, _ := cmd.Flags().GetDuration("probe-timeout")
		checker := &probe.Checker{Timeout: timeout, Concurrency: a.cfg.Dispatch.Concurrency}
		statuses := checker.CheckAll(cmd.Context(), dbs)
		for _, s := range statuses {
			a.log.WithField("db_id", s.DB.ID).WithField("status", s.Label()).Debug("Probed database")
		}
		return a.display.renderStatuses(cmd.OutOrStdout(), statuses)
	},
}

// confirmPrompter returns the prompter used for yes/no questions, or nil when
// nobody is there to answer.
var confirmPrompter = func(cmd *cobra.Command) *ui.Prompter {
	if !ui.IsTerminal(os.Stdin) {
		return nil
	}
	p := ui.NewPrompter()
	p.Out = cmd.OutOrStdout()
	return p
}

// confirm asks before a destructive change. --yes and non-interactive runs
// answer yes.
func confirm(cmd *cobra.Command, question string) (bool, error) {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return true, nil
	}
	p := confirmPrompter(cmd)
	if p == nil {
		return true, nil
	}
	return p.Confirm(question)
}

func parseDatabaseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), "#"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid database id %q", s)
	}
	return id, nil
}

// selectDatabases returns the databases named by ids, or all of them.
func selectDatabases(all []model.DatabaseConfig, ids []string) ([]model.DatabaseConfig, error) {
	if len(ids) == 0 {
		return all, nil
	}
	byID := make(map[int64]model.DatabaseConfig, len(all))
	for _, db := range all {
		byID[db.ID] = db
	}
	out := make([]model.DatabaseConfig, 0, len(ids))
	var missing []string
	for _, s := range ids {
		id, err := parseDatabaseID(s)
		if err != nil {
			return nil, err
		}
		db, ok := byID[id]
		if !ok {
			missing = append(missing, s)
			continue
		}
		out = append(out, db)
	}
	if len(missing) > 0 {
		return nil, errors.New("unknown database id(s): " + strings.Join(missing, ", "))
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbAddCmd, dbLsCmd, dbRmCmd, dbProbeCmd)

	dbAddCmd.Flags().String("type", "", "Database type (mongo, postgres, mysql, sqlite, ...)")
	dbAddCmd.Flags().String("host", "", "Host name, or file path for sqlite")
	dbAddCmd.Flags().Int("port", model.DefaultPort, "Port")
	dbAddCmd.Flags().String("user", "", "User name")
	dbAddCmd.Flags().String("password", "", "Password (prompted for when omitted on a terminal)")
	dbAddCmd.Flags().Bool("password-stdin", false, "Read password from stdin instead of command line.")
	dbAddCmd.Flags().String("database", "", "Database name")

	dbRmCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	dbProbeCmd.Flags().Duration("probe-timeout", probe.DefaultTimeout, "Per-database probe timeout")
}
