package magic

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noteable-io/noteable-notebook-magics/pkg/connections"
	"github.com/noteable-io/noteable-notebook-magics/pkg/dataloader"
	"github.com/noteable-io/noteable-notebook-magics/pkg/datasource"
	"github.com/noteable-io/noteable-notebook-magics/pkg/sqlcell"
	"github.com/noteable-io/noteable-notebook-magics/pkg/sqlcell/meta"
)

func newSQLCommand(deps Deps) *cobra.Command {
	var (
		listConnections bool
		closeIdent      string
		cellFile        string
	)

	cmd := &cobra.Command{
		Use:   "sql [cell text]",
		Short: "Run a SQL cell against a registered data connection.",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case listConnections:
				listRegistry(deps)
				return nil
			case closeIdent != "":
				if err := deps.Registry.Close(closeIdent); err != nil {
					return err
				}
				fmt.Fprintf(deps.Out, "Closed connection %s\n", closeIdent)
				return nil
			}

			text := strings.Join(args, " ")
			if cellFile != "" {
				data, err := os.ReadFile(cellFile)
				if err != nil {
					return fmt.Errorf("reading cell file: %w", err)
				}
				text = string(data)
			}
			if strings.TrimSpace(text) == "" {
				return cmd.Usage()
			}
			return runCell(cmd, deps, text)
		},
	}

	cmd.Flags().BoolVarP(&listConnections, "connections", "l", false, "list registered connections")
	cmd.Flags().StringVarP(&closeIdent, "close", "x", "", "close a connection by handle or name")
	cmd.Flags().StringVarP(&cellFile, "file", "f", "", "read the cell text from a file")
	return cmd
}

func runCell(cmd *cobra.Command, deps Deps, text string) error {
	cell := sqlcell.Parse(text)

	conn, cleanup, err := resolveConnection(deps.Registry, cell.Connection)
	if err != nil {
		return err
	}
	defer cleanup()

	var result *sqlcell.ResultSet
	if cell.IsMetaCommand() {
		result, err = meta.Run(cmd.Context(), conn, cell.Statement)
	} else {
		result, err = sqlcell.Run(cmd.Context(), conn, cell.Statement, sqlcell.Options{
			Feedback: func(line string) { fmt.Fprintln(deps.Out, line) },
		})
	}
	if err != nil {
		return err
	}

	renderResultSet(deps.Out, result)
	if cell.ResultVar != "" && result != nil {
		if err := saveResult(cell.ResultVar, result); err != nil {
			return err
		}
		fmt.Fprintf(deps.Out, "Saved result to %s.json\n", cell.ResultVar)
	}
	return nil
}

// resolveConnection maps a cell's connection reference to a connection.
// An empty reference means the default; a DSN builds a throwaway
// connection that is closed when the cell finishes.
func resolveConnection(registry *connections.Registry, ref string) (*connections.Connection, func(), error) {
	noop := func() {}
	switch {
	case ref == "":
		conn, err := registry.Default()
		return conn, noop, err
	case strings.Contains(ref, "://"):
		dialect := ref[:strings.Index(ref, "://")]
		driver, err := datasource.DriverFor(dialect)
		if err != nil {
			return nil, noop, err
		}
		conn, err := connections.NewConnection("@adhoc", "", dialect, driver, ref)
		if err != nil {
			return nil, noop, err
		}
		return conn, func() { _ = conn.Close() }, nil
	default:
		conn, err := registry.Get(ref)
		return conn, noop, err
	}
}

func saveResult(name string, result *sqlcell.ResultSet) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if err := os.WriteFile(name+".json", data, 0o644); err != nil {
		return fmt.Errorf("saving result: %w", err)
	}
	return nil
}

func listRegistry(deps Deps) {
	infos := deps.Registry.List()
	if len(infos) == 0 {
		fmt.Fprintln(deps.Out, "No connections registered.")
		return
	}
	result := &sqlcell.ResultSet{Columns: []string{"handle", "name", "dialect", "default"}}
	for _, info := range infos {
		mark := ""
		if info.IsDefault {
			mark = "*"
		}
		result.Rows = append(result.Rows, []any{info.Handle, info.HumanName, info.Dialect, mark})
	}
	result.Count = len(result.Rows)
	renderResultSet(deps.Out, result)
}

func newLoadCommand(deps Deps) *cobra.Command {
	var delimiter string

	cmd := &cobra.Command{
		Use:   "load <filepath> <tablename>",
		Short: "Load a CSV, JSON, or parquet file into the local database.",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			preview, hint, err := deps.Loader.Load(cmd.Context(), args[0], args[1], dataloader.Options{
				Delimiter: delimiter,
			})
			if err != nil {
				return err
			}
			renderResultSet(deps.Out, preview)
			fmt.Fprintln(deps.Out, green(hint))
			return nil
		},
	}

	cmd.Flags().StringVarP(&delimiter, "delimiter", "d", "", "CSV field delimiter")
	return cmd
}
