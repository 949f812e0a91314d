// Package meta implements the backslash introspection commands available
// inside SQL cells, such as \schemas and \describe. Commands query the
// connection's information_schema and return ordinary result sets.
package meta

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/noteable-io/noteable-notebook-magics/pkg/connections"
	"github.com/noteable-io/noteable-notebook-magics/pkg/sqlcell"
)

// Command is one backslash command.
type Command struct {
	// Invokers are the backslash spellings that select this command,
	// without the leading backslash.
	Invokers []string

	// Description is the one-line help text.
	Description string

	// Usage shows the accepted arguments.
	Usage string

	run func(ctx context.Context, conn *connections.Connection, args []string) (*sqlcell.ResultSet, error)
}

// commands maps every invoker to its command.
var commands = map[string]*Command{}

func register(cmd *Command) {
	for _, invoker := range cmd.Invokers {
		if _, exists := commands[invoker]; exists {
			panic(fmt.Sprintf("meta: duplicate command invoker %q", invoker))
		}
		commands[invoker] = cmd
	}
}

func init() {
	register(&Command{
		Invokers:    []string{"schemas", "dn"},
		Description: "List schemas.",
		Usage:       `\schemas`,
		run:         runSchemas(false),
	})
	register(&Command{
		Invokers:    []string{"schemas+", "dn+"},
		Description: "List schemas with table counts.",
		Usage:       `\schemas+`,
		run:         runSchemas(true),
	})
	register(&Command{
		Invokers:    []string{"list", "dr"},
		Description: "List tables and views, optionally filtered by schema.",
		Usage:       `\list [schema]`,
		run:         runRelations(true, true),
	})
	register(&Command{
		Invokers:    []string{"tables", "dt"},
		Description: "List tables, optionally filtered by schema.",
		Usage:       `\tables [schema]`,
		run:         runRelations(true, false),
	})
	register(&Command{
		Invokers:    []string{"views", "dv"},
		Description: "List views, optionally filtered by schema.",
		Usage:       `\views [schema]`,
		run:         runRelations(false, true),
	})
	register(&Command{
		Invokers:    []string{"describe", "d"},
		Description: "Show the columns of a table or view.",
		Usage:       `\describe [schema.]relation`,
		run:         runDescribe,
	})
	register(&Command{
		Invokers:    []string{"help"},
		Description: "Show available commands.",
		Usage:       `\help [command]`,
		run:         runHelp,
	})
}

// Run dispatches a backslash statement like "\tables public" against a
// connection.
func Run(ctx context.Context, conn *connections.Connection, statement string) (*sqlcell.ResultSet, error) {
	fields := strings.Fields(statement)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], `\`) {
		return nil, fmt.Errorf("not a backslash command: %q", statement)
	}

	invoker := strings.TrimPrefix(fields[0], `\`)
	cmd, ok := commands[invoker]
	if !ok {
		return nil, fmt.Errorf(`unknown command \%s; try \help`, invoker)
	}
	return cmd.run(ctx, conn, fields[1:])
}

func runHelp(_ context.Context, _ *connections.Connection, args []string) (*sqlcell.ResultSet, error) {
	result := &sqlcell.ResultSet{Columns: []string{"command", "description"}}

	if len(args) > 0 {
		invoker := strings.TrimPrefix(args[0], `\`)
		cmd, ok := commands[invoker]
		if !ok {
			return nil, fmt.Errorf(`unknown command \%s; try \help`, invoker)
		}
		result.Rows = append(result.Rows, []any{cmd.Usage, cmd.Description})
		result.Count = len(result.Rows)
		return result, nil
	}

	seen := map[*Command]bool{}
	var unique []*Command
	for _, cmd := range commands {
		if !seen[cmd] {
			seen[cmd] = true
			unique = append(unique, cmd)
		}
	}
	sort.Slice(unique, func(i, j int) bool {
		return unique[i].Invokers[0] < unique[j].Invokers[0]
	})
	for _, cmd := range unique {
		spellings := make([]string, len(cmd.Invokers))
		for i, invoker := range cmd.Invokers {
			spellings[i] = `\` + invoker
		}
		result.Rows = append(result.Rows, []any{strings.Join(spellings, ", "), cmd.Description})
	}
	result.Count = len(result.Rows)
	return result, nil
}
