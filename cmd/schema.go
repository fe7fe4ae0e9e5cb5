package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/querydesk/querydesk-cli/internal/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Sketch tables and relations in the schema designer",
}

// withDesigner opens the designer for one command invocation.
func withDesigner(cmd *cobra.Command, fn func(a *app, d *schema.Designer, w io.Writer) error) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a, a.designer(), cmd.OutOrStdout())
}

var schemaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show tables and relations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDesigner(cmd, func(a *app, d *schema.Designer, w io.Writer) error {
			doc := d.Document()
			if a.display.Format == outputJSON {
				return d.Export(w)
			}
			if len(doc.Nodes) == 0 {
				fmt.Fprintln(w, "No tables. Add one with 'querydesk schema add'.")
				return nil
			}
			labels := map[string]string{}
			table := a.display.newTable(w)
			table.Header("ID", "TABLE", "FIELDS", "POSITION")
			for _, n := range doc.Nodes {
				labels[n.ID] = n.Data.Label
				fields := make([]string, len(n.Data.Fields))
				for i, f := range n.Data.Fields {
					fields[i] = f.Name + " " + f.Type
				}
				pos := fmt.Sprintf("%g,%g", n.Position.X, n.Position.Y)
				table.Append(n.ID, n.Data.Label, a.display.cell(strings.Join(fields, ", ")), pos)
			}
			table.Render()

			if len(doc.Edges) > 0 {
				fmt.Fprintln(w, "Relations:")
				for _, e := range doc.Edges {
					fmt.Fprintf(w, "  %s -> %s  (%s)\n", labels[e.Source], labels[e.Target], e.ID)
				}
			}
			return nil
		})
	},
}

var schemaAddCmd = &cobra.Command{
	Use:   "add [name] [field:type...]",
	Short: "Add a table",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDesigner(cmd, func(a *app, d *schema.Designer, w io.Writer) error {
			n, err := d.AddNode()
			if err != nil {
				return err
			}
			if len(args) > 0 {
				fields, err := parseFieldArgs(args[1:])
				if err != nil {
					_ = d.DeleteNode(n.ID)
					return err
				}
				if err := d.Update(n.ID, args[0], fields); err != nil {
					_ = d.DeleteNode(n.ID)
					return err
				}
			}
			fmt.Fprintf(w, "Added table %s\n", n.ID)
			return nil
		})
	},
}

func parseFieldArgs(args []string) ([]schema.Field, error) {
	fields := make([]schema.Field, 0, len(args))
	for _, a := range args {
		name, typ, ok := strings.Cut(a, ":")
		if !ok {
			return nil, fmt.Errorf("field %q must look like name:type", a)
		}
		fields = append(fields, schema.Field{Name: name, Type: typ})
	}
	return fields, nil
}

var schemaDupCmd = &cobra.Command{
	Use:   "dup <id>",
	Short: "Duplicate a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDesigner(cmd, func(a *app, d *schema.Designer, w io.Writer) error {
			n, err := d.Duplicate(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Added table %s\n", n.ID)
			return nil
		})
	},
}

var schemaRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a table and its relations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDesigner(cmd, func(a *app, d *schema.Designer, w io.Writer) error {
			if err := d.DeleteNode(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(w, "Deleted table %s\n", args[0])
			return nil
		})
	},
}

var schemaConnectCmd = &cobra.Command{
	Use:   "connect <source-id> <target-id>",
	Short: "Draw a relation between two tables",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDesigner(cmd, func(a *app, d *schema.Designer, w io.Writer) error {
			e, err := d.Connect(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Relation %s\n", e.ID)
			return nil
		})
	},
}

var schemaDisconnectCmd = &cobra.Command{
	Use:   "disconnect <relation-id>",
	Short: "Remove a relation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDesigner(cmd, func(a *app, d *schema.Designer, w io.Writer) error {
			return d.Disconnect(args[0])
		})
	},
}

var schemaMoveCmd = &cobra.Command{
	Use:   "move <id> <x> <y>",
	Short: "Move a table on the canvas",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		x, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid x %q", args[1])
		}
		y, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("invalid y %q", args[2])
		}
		return withDesigner(cmd, func(a *app, d *schema.Designer, w io.Writer) error {
			return d.Move(args[0], x, y)
		})
	},
}

var schemaRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a table",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDesigner(cmd, func(a *app, d *schema.Designer, w io.Writer) error {
			return d.Rename(args[0], args[1])
		})
	},
}

var schemaFieldCmd = &cobra.Command{
	Use:   "field",
	Short: "Edit the fields of a table",
}

var schemaFieldAddCmd = &cobra.Command{
	Use:   "add <id> <name:type>",
	Short: "Add a field",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := parseFieldArgs(args[1:])
		if err != nil {
			return err
		}
		return withDesigner(cmd, func(a *app, d *schema.Designer, w io.Writer) error {
			return d.AddField(args[0], fields[0])
		})
	},
}

var schemaFieldRmCmd = &cobra.Command{
	Use:   "rm <id> <field-number>",
	Short: "Remove a field (the last one cannot be removed)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid field number %q", args[1])
		}
		return withDesigner(cmd, func(a *app, d *schema.Designer, w io.Writer) error {
			return d.RemoveField(args[0], n-1)
		})
	},
}

var schemaExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the diagram as JSON (stdout when no file is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDesigner(cmd, func(a *app, d *schema.Designer, w io.Writer) error {
			if len(args) == 0 {
				return d.Export(w)
			}
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			if err := d.Export(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(w, "Schema exported to %s\n", args[0])
			return nil
		})
	},
}

var schemaImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the diagram with one from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		return withDesigner(cmd, func(a *app, d *schema.Designer, w io.Writer) error {
			if n := len(d.Document().Nodes); n > 0 {
				ok, err := confirm(cmd, fmt.Sprintf("Replace the current diagram (%d tables)?", n))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(w, "Cancelled.")
					return nil
				}
			}
			if err := d.Import(f); err != nil {
				return err
			}
			fmt.Fprintln(w, "Schema imported successfully")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.AddCommand(
		schemaShowCmd, schemaAddCmd, schemaDupCmd, schemaRmCmd,
		schemaConnectCmd, schemaDisconnectCmd, schemaMoveCmd, schemaRenameCmd,
		schemaFieldCmd, schemaExportCmd, schemaImportCmd,
	)
	schemaFieldCmd.AddCommand(schemaFieldAddCmd, schemaFieldRmCmd)

	schemaImportCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
}
