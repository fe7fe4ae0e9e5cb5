package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/querydesk/querydesk-cli/internal/model"
	"github.com/querydesk/querydesk-cli/internal/probe"
)

// replLine is the part of the line editor commands use.
type replLine interface {
	Prompt(prompt string) (string, error)
	PasswordPrompt(prompt string) (string, error)
	AppendHistory(item string)
}

// replHelpItem represents a single help row in the REPL help output.
type replHelpItem struct {
	Group       string
	Command     string
	Description string
}

// replCommand represents a single REPL command entry.
//
// A command matches either by a custom Match function (for words like "exit")
// or by matching MetaCmdName against Names for backslash commands.
type replCommand struct {
	Names []string
	Help  replHelpItem
	Match func(input string, lower string) bool
	Run   func(ctx *replDispatchContext) (handled bool, shouldBreak bool)
}

// replDispatchContext carries the current REPL state and dependencies needed to execute commands.
type replDispatchContext struct {
	Ctx         context.Context
	App         *app
	Line        replLine
	Out         io.Writer
	Input       string
	Lower       string
	MetaCmdName string
	MetaArgs    []string

	InvalidateFunc func()
}

func (ctx *replDispatchContext) recordHistory() {
	if shouldRecordHistory(ctx.Input) {
		ctx.Line.AppendHistory(ctx.Input)
	}
}

func (ctx *replDispatchContext) errorf(format string, args ...any) {
	fmt.Fprintf(ctx.Out, "Error: "+format+"\n", args...)
}

// replHelpItems returns help rows for all registered commands.
func replHelpItems() []replHelpItem {
	items := []replHelpItem{}
	for _, c := range replRegistry() {
		if strings.TrimSpace(c.Help.Command) == "" {
			continue
		}
		items = append(items, c.Help)
	}
	return items
}

// printReplHelp renders REPL help to the provided writer.
func printReplHelp(w io.Writer) {
	items := replHelpItems()
	sort.SliceStable(items, func(i, j int) bool {
		gi := strings.ToLower(strings.TrimSpace(items[i].Group))
		gj := strings.ToLower(strings.TrimSpace(items[j].Group))
		if gi != gj {
			return gi < gj
		}
		return strings.ToLower(items[i].Command) < strings.ToLower(items[j].Command)
	})

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "Commands:")
	fmt.Fprintln(tw, "")

	currentGroup := ""
	for _, it := range items {
		if it.Group != currentGroup {
			currentGroup = it.Group
			fmt.Fprintf(tw, "[%s]\n", currentGroup)
		}
		fmt.Fprintf(tw, "  %s\t%s\n", it.Command, it.Description)
	}

	fmt.Fprintln(tw, "")
	fmt.Fprintln(tw, "Notes:")
	fmt.Fprintln(tw, "  - Any other line is a question sent to every registered database")
	fmt.Fprintln(tw, "  - Example:")
	fmt.Fprintln(tw, "      \\add")
	fmt.Fprintln(tw, "      how many orders were placed last week?")
	_ = tw.Flush()
}

// replRegistry returns the REPL command registry.
//
// This registry is the single source of truth for both help and dispatch.
func replRegistry() []replCommand {
	return []replCommand{
		{
			Names: []string{"\\help", "\\?"},
			Help:  replHelpItem{Group: "CLI", Command: "help, \\?", Description: "Show this help"},
			Match: func(input string, lower string) bool {
				return lower == "help"
			},
			Run: func(ctx *replDispatchContext) (bool, bool) {
				ctx.recordHistory()
				printReplHelp(ctx.Out)
				return true, false
			},
		},
		{
			Names: []string{"\\q", "\\quit"},
			Help:  replHelpItem{Group: "CLI", Command: "exit, quit, \\q", Description: "Leave the REPL"},
			Match: func(input string, lower string) bool {
				return lower == "exit" || lower == "quit"
			},
			Run: func(ctx *replDispatchContext) (bool, bool) {
				return true, true
			},
		},
		{
			Names: []string{"\\set"},
			Help:  replHelpItem{Group: "CLI", Command: "\\set output table|json | width <n> | wide on|off", Description: "Change how results are displayed"},
			Run:   runReplSet,
		},
		{
			Names: []string{"\\dbs", "\\l"},
			Help:  replHelpItem{Group: "Databases", Command: "\\dbs", Description: "List registered databases"},
			Run: func(ctx *replDispatchContext) (bool, bool) {
				ctx.recordHistory()
				if err := ctx.App.display.renderDatabases(ctx.Out, ctx.App.store.Databases()); err != nil {
					ctx.errorf("%v", err)
				}
				return true, false
			},
		},
		{
			Names: []string{"\\add"},
			Help:  replHelpItem{Group: "Databases", Command: "\\add", Description: "Register a database (prompts for each field)"},
			Run:   runReplAdd,
		},
		{
			Names: []string{"\\rm"},
			Help:  replHelpItem{Group: "Databases", Command: "\\rm <id>", Description: "Remove a database and its results"},
			Run: func(ctx *replDispatchContext) (bool, bool) {
				ctx.recordHistory()
				if len(ctx.MetaArgs) != 1 {
					ctx.errorf("\\rm requires a database id")
					return true, false
				}
				id, err := parseDatabaseID(ctx.MetaArgs[0])
				if err != nil {
					ctx.errorf("%v", err)
					return true, false
				}
				if err := ctx.App.store.RemoveDatabase(id); err != nil {
					ctx.errorf("%v", err)
					return true, false
				}
				fmt.Fprintf(ctx.Out, "Removed database #%d\n", id)
				return true, false
			},
		},
		{
			Names: []string{"\\probe"},
			Help:  replHelpItem{Group: "Databases", Command: "\\probe [id...]", Description: "Check which databases are reachable"},
			Run: func(ctx *replDispatchContext) (bool, bool) {
				ctx.recordHistory()
				dbs, err := selectDatabases(ctx.App.store.Databases(), ctx.MetaArgs)
				if err != nil {
					ctx.errorf("%v", err)
					return true, false
				}
				checker := &probe.Checker{Concurrency: ctx.App.cfg.Dispatch.Concurrency}
				if err := ctx.App.display.renderStatuses(ctx.Out, checker.CheckAll(ctx.Ctx, dbs)); err != nil {
					ctx.errorf("%v", err)
				}
				return true, false
			},
		},
		{
			Names: []string{"\\results", "\\r"},
			Help:  replHelpItem{Group: "Questions", Command: "\\results [id]", Description: "Show the last results again"},
			Run: func(ctx *replDispatchContext) (bool, bool) {
				ctx.recordHistory()
				results := ctx.App.store.Results()
				if len(ctx.MetaArgs) > 0 {
					id, err := parseDatabaseID(ctx.MetaArgs[0])
					if err != nil {
						ctx.errorf("%v", err)
						return true, false
					}
					results = filterResults(results, id)
				}
				if err := ctx.App.display.renderResults(ctx.Out, results); err != nil {
					ctx.errorf("%v", err)
				}
				return true, false
			},
		},
		{
			Names: []string{"\\tables", "\\dt"},
			Help:  replHelpItem{Group: "Data", Command: "\\tables", Description: "List tables the backend has ingested"},
			Run: func(ctx *replDispatchContext) (bool, bool) {
				ctx.recordHistory()
				resp, err := ctx.App.client.Tables(ctx.Ctx)
				if err != nil {
					ctx.errorf("%v", err)
					return true, false
				}
				setCachedTables(resp.Tables)
				_ = ctx.App.display.renderNames(ctx.Out, "TABLE", resp.Tables)
				return true, false
			},
		},
		{
			Names: []string{"\\cols", "\\d"},
			Help:  replHelpItem{Group: "Data", Command: "\\cols <table>", Description: "List the columns of an ingested table"},
			Run: func(ctx *replDispatchContext) (bool, bool) {
				ctx.recordHistory()
				if len(ctx.MetaArgs) != 1 {
					ctx.errorf("\\cols requires a table name")
					return true, false
				}
				resp, err := ctx.App.client.Columns(ctx.Ctx, ctx.MetaArgs[0])
				if err != nil {
					ctx.errorf("%v", err)
					return true, false
				}
				_ = ctx.App.display.renderColumns(ctx.Out, resp.Columns)
				return true, false
			},
		},
		{
			Names: []string{"\\preview"},
			Help:  replHelpItem{Group: "Data", Command: "\\preview <table> [limit]", Description: "Show the first rows of an ingested table"},
			Run: func(ctx *replDispatchContext) (bool, bool) {
				ctx.recordHistory()
				if len(ctx.MetaArgs) < 1 || len(ctx.MetaArgs) > 2 {
					ctx.errorf("usage: \\preview <table> [limit]")
					return true, false
				}
				limit := 0
				if len(ctx.MetaArgs) == 2 {
					n, err := strconv.Atoi(ctx.MetaArgs[1])
					if err != nil || n <= 0 {
						ctx.errorf("invalid limit %q", ctx.MetaArgs[1])
						return true, false
					}
					limit = n
				}
				resp, err := ctx.App.client.Preview(ctx.Ctx, ctx.MetaArgs[0], limit)
				if err != nil {
					ctx.errorf("%v", err)
					return true, false
				}
				_ = ctx.App.display.renderRowsResponse(ctx.Out, resp.Rows)
				return true, false
			},
		},
		{
			Names: []string{"\\upload", "\\i"},
			Help:  replHelpItem{Group: "Data", Command: "\\upload <file>", Description: "Upload a data file or SQL dump (.sql)"},
			Run: func(ctx *replDispatchContext) (bool, bool) {
				if len(ctx.MetaArgs) != 1 {
					ctx.recordHistory()
					ctx.errorf("\\upload requires a file path")
					return true, false
				}
				ctx.recordHistory()
				path := trimTrailingSemicolon(ctx.MetaArgs[0])
				upload := ctx.App.client.UploadFile
				if strings.EqualFold(filepath.Ext(path), ".sql") {
					upload = ctx.App.client.UploadSQL
				}
				resp, err := upload(ctx.Ctx, path)
				if err != nil {
					ctx.errorf("%v", err)
					return true, false
				}
				if ctx.InvalidateFunc != nil {
					ctx.InvalidateFunc()
				}
				_ = ctx.App.display.renderIngest(ctx.Out, resp)
				return true, false
			},
		},
		{
			Names: []string{"\\chat"},
			Help:  replHelpItem{Group: "Data", Command: "\\chat <message>", Description: "Send a free-form message to the assistant"},
			Run: func(ctx *replDispatchContext) (bool, bool) {
				ctx.recordHistory()
				msg := strings.TrimSpace(strings.Join(ctx.MetaArgs, " "))
				if msg == "" {
					ctx.errorf("\\chat requires a message")
					return true, false
				}
				resp, err := ctx.App.client.Chat(ctx.Ctx, msg)
				if err != nil {
					ctx.errorf("%v", err)
					return true, false
				}
				fmt.Fprintln(ctx.Out, resp.Text())
				return true, false
			},
		},
	}
}

func runReplSet(ctx *replDispatchContext) (bool, bool) {
	ctx.recordHistory()
	if len(ctx.MetaArgs) != 2 {
		ctx.errorf("usage: \\set output table|json | width <n> | wide on|off")
		return true, false
	}
	key, val := strings.ToLower(ctx.MetaArgs[0]), strings.ToLower(ctx.MetaArgs[1])
	d := &ctx.App.display
	switch key {
	case "output":
		if val != outputTable && val != outputJSON {
			ctx.errorf("output must be table or json")
			return true, false
		}
		d.Format = val
		fmt.Fprintf(ctx.Out, "Output format set to %s.\n", val)
	case "width":
		n, err := strconv.Atoi(val)
		if err != nil {
			ctx.errorf("invalid width %q", val)
			return true, false
		}
		d.MaxColWidth = clampInt(n, 8, 400)
		fmt.Fprintf(ctx.Out, "Column width set to %d.\n", d.MaxColWidth)
	case "wide":
		switch val {
		case "on", "true":
			d.Wide = true
		case "off", "false":
			d.Wide = false
		default:
			ctx.errorf("wide must be on or off")
			return true, false
		}
		fmt.Fprintf(ctx.Out, "Wide display %s.\n", val)
	default:
		ctx.errorf("unknown setting %q", key)
	}
	return true, false
}

// runReplAdd mirrors the add-database form: type, host and user are required,
// the port defaults to 27017.
func runReplAdd(ctx *replDispatchContext) (bool, bool) {
	// Not recorded: the dialog may carry a password.
	ask := func(label, def string) (string, bool) {
		prompt := label + ": "
		if def != "" {
			prompt = fmt.Sprintf("%s [%s]: ", label, def)
		}
		v, err := ctx.Line.Prompt(prompt)
		if err != nil {
			fmt.Fprintln(ctx.Out, "Cancelled.")
			return "", false
		}
		v = strings.TrimSpace(v)
		if v == "" {
			v = def
		}
		return v, true
	}

	var cfg model.DatabaseConfig
	var ok bool
	if cfg.Type, ok = ask("Type", ""); !ok {
		return true, false
	}
	if cfg.Host, ok = ask("Host", ""); !ok {
		return true, false
	}
	port, ok := ask("Port", strconv.Itoa(model.DefaultPort))
	if !ok {
		return true, false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		ctx.errorf("invalid port %q", port)
		return true, false
	}
	cfg.Port = n
	if cfg.User, ok = ask("User", ""); !ok {
		return true, false
	}
	pw, err := ctx.Line.PasswordPrompt("Password: ")
	if err != nil {
		fmt.Fprintln(ctx.Out, "Cancelled.")
		return true, false
	}
	cfg.Password = pw
	if cfg.Database, ok = ask("Database", ""); !ok {
		return true, false
	}

	saved, err := ctx.App.store.AddDatabase(cfg)
	if err != nil {
		ctx.errorf("%v", err)
		return true, false
	}
	fmt.Fprintf(ctx.Out, "Added database %s\n", saved.String())
	return true, false
}

// dispatchReplLine executes a line using the registry.
func dispatchReplLine(ctx *replDispatchContext) (handled bool, shouldBreak bool) {
	if ctx == nil {
		return false, false
	}

	for _, c := range replRegistry() {
		matched := false
		if c.Match != nil && c.Match(ctx.Input, ctx.Lower) {
			matched = true
		}
		if !matched && ctx.MetaCmdName != "" {
			for _, n := range c.Names {
				if strings.EqualFold(strings.TrimSpace(n), strings.TrimSpace(ctx.MetaCmdName)) {
					matched = true
					break
				}
			}
		}
		if !matched {
			continue
		}
		if c.Run == nil {
			return false, false
		}
		return c.Run(ctx)
	}

	return false, false
}

// dispatchReplMeta parses a meta command line and dispatches it using the registry.
func dispatchReplMeta(ctx *replDispatchContext) (handled bool, shouldBreak bool) {
	if ctx == nil {
		return false, false
	}

	if isMetaCommandStart(ctx.Input) {
		ctx.MetaCmdName, ctx.MetaArgs = parseMetaCommand(ctx.Input)
	}
	handled, shouldBreak = dispatchReplLine(ctx)
	if !handled && ctx.MetaCmdName != "" {
		ctx.errorf("unknown command %s (type help for a list)", ctx.MetaCmdName)
		return true, false
	}
	return handled, shouldBreak
}
