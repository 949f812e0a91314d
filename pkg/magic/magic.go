// Package magic implements the %ntbl command surface: file transfer
// through the planar-ally sidecar, SQL cell execution, and data loading
// into the local database.
package magic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noteable-io/noteable-notebook-magics/pkg/connections"
	"github.com/noteable-io/noteable-notebook-magics/pkg/dataloader"
	"github.com/noteable-io/noteable-notebook-magics/pkg/sidecar"
)

// LevelSetter adjusts the local log levels by name.
type LevelSetter interface {
	SetAppLevel(name string) error
	SetExtLevel(name string) error
}

// Deps are the collaborators behind the command tree.
type Deps struct {
	Registry *connections.Registry
	Sidecar  *sidecar.Client
	Loader   *dataloader.Loader
	Levels   LevelSetter
	Logger   *slog.Logger
	Out      io.Writer
}

// usageError marks flag and argument mistakes so Execute can echo the
// command usage instead of the generic failure line.
type usageError struct {
	cmd *cobra.Command
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// usageArgs wraps a cobra argument validator so its failures are
// classified as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &usageError{cmd: cmd, err: err}
		}
		return nil
	}
}

// NewRootCommand builds the %ntbl command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "ntbl",
		Short:         "Interact with files and data connections in your notebook environment.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(deps.Out)
	root.SetErr(deps.Out)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{cmd: cmd, err: err}
	})

	root.AddCommand(newPushCommand(deps))
	root.AddCommand(newPullCommand(deps))
	root.AddCommand(newStatusCommand(deps))
	root.AddCommand(newChangeLogLevelCommand(deps))
	root.AddCommand(newSQLCommand(deps))
	root.AddCommand(newLoadCommand(deps))
	return root
}

// Execute runs the command tree for one invocation, translating failures
// into user-facing output. Sidecar errors render their support text;
// anything unexpected is logged in full and reported generically.
func Execute(ctx context.Context, root *cobra.Command, deps Deps, args []string) error {
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}

	var sidecarErr sidecar.Error
	var usageErr *usageError
	switch {
	case errors.As(err, &usageErr):
		fmt.Fprintln(deps.Out, red(usageErr.Error()))
		fmt.Fprint(deps.Out, usageErr.cmd.UsageString())
	case strings.HasPrefix(err.Error(), "unknown command"):
		fmt.Fprintln(deps.Out, red(err.Error()))
		fmt.Fprint(deps.Out, root.UsageString())
	case errors.As(err, &sidecarErr):
		fmt.Fprintln(deps.Out, red(sidecarErr.UserError()))
	case errors.Is(err, connections.ErrUnknownConnection):
		fmt.Fprintln(deps.Out, red(err.Error()))
	default:
		deps.Logger.Error("command failed", "args", args, "error", err)
		fmt.Fprintln(deps.Out, red("An error occurred while running your command. Please contact support."))
	}
	return err
}
