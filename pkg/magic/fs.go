package magic

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noteable-io/noteable-notebook-magics/pkg/sidecar"
)

// direction distinguishes push from pull so both trees share one
// implementation.
type direction struct {
	name    string
	short   string
	project func(api *sidecar.FileSystemAPI, ctx context.Context, path string) (*sidecar.UserMessage, error)
	dataset func(api *sidecar.DatasetFileSystemAPI, ctx context.Context, path string) (*sidecar.OperationStream, error)
}

var pushDirection = direction{
	name:  "push",
	short: "Send local changes to the remote store.",
	project: func(api *sidecar.FileSystemAPI, ctx context.Context, path string) (*sidecar.UserMessage, error) {
		return api.Push(ctx, path)
	},
	dataset: func(api *sidecar.DatasetFileSystemAPI, ctx context.Context, path string) (*sidecar.OperationStream, error) {
		return api.Push(ctx, path)
	},
}

var pullDirection = direction{
	name:  "pull",
	short: "Fetch remote changes to the local file system.",
	project: func(api *sidecar.FileSystemAPI, ctx context.Context, path string) (*sidecar.UserMessage, error) {
		return api.Pull(ctx, path)
	},
	dataset: func(api *sidecar.DatasetFileSystemAPI, ctx context.Context, path string) (*sidecar.OperationStream, error) {
		return api.Pull(ctx, path)
	},
}

func newPushCommand(deps Deps) *cobra.Command {
	return newTransferCommand(deps, pushDirection)
}

func newPullCommand(deps Deps) *cobra.Command {
	return newTransferCommand(deps, pullDirection)
}

func newTransferCommand(deps Deps, dir direction) *cobra.Command {
	cmd := &cobra.Command{
		Use:   dir.name,
		Short: dir.short,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "datasets <path>...",
		Short: dir.short + " Dataset names may contain spaces.",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := datasetPath(args)
			stream, err := dir.dataset(deps.Sidecar.DatasetFS(), cmd.Context(), path)
			if err != nil {
				return err
			}
			defer func() { _ = stream.Close() }()
			return renderDatasetStream(deps.Out, stream, path)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "project",
		Short: dir.short + " Applies to all project files.",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			msg, err := dir.project(deps.Sidecar.FS(sidecar.KindProject), cmd.Context(), "")
			if err != nil {
				return err
			}
			fmt.Fprintln(deps.Out, msg.Message)
			return nil
		},
	})

	return cmd
}

// datasetPath joins the path words back together, since dataset names may
// contain spaces. A path with no "/" names a whole dataset and gains a
// trailing slash so the sidecar transfers every file in it.
func datasetPath(args []string) string {
	path := strings.Join(args, " ")
	if !strings.Contains(path, "/") {
		path += "/"
	}
	return path
}

// renderDatasetStream prints the progress messages of a dataset transfer.
func renderDatasetStream(out io.Writer, stream *sidecar.OperationStream, path string) error {
	var (
		sawFile     bool
		failed      bool
		lastPercent = map[string]int{}
	)

	for !failed {
		msg := stream.Next()
		if msg == nil {
			break
		}
		switch msg.Header.Type {
		case sidecar.StreamError:
			failed = true
			fmt.Fprintln(out, red(msg.Error.Detail))
		case sidecar.StreamFileProgressStart:
			fmt.Fprintln(out, msg.Info.Message)
		case sidecar.StreamFileProgressUpdate:
			sawFile = true
			percent := int(msg.Progress.PercentComplete * 100)
			if last, seen := lastPercent[msg.Progress.FileName]; !seen || percent != last {
				lastPercent[msg.Progress.FileName] = percent
				fmt.Fprintf(out, "  %s %d%%\n", msg.Progress.FileName, percent)
			}
		case sidecar.StreamFileProgressEnd:
			if sawFile {
				fmt.Fprintln(out, green(msg.Info.Message))
			}
		}
	}
	if err := stream.Err(); err != nil {
		return err
	}

	if !sawFile && !failed {
		if name, whole := wholeDataset(path); whole {
			fmt.Fprintln(out, red(fmt.Sprintf("No files found in dataset '%s'", name)))
		} else {
			fmt.Fprintln(out, red(fmt.Sprintf("%s not found", path)))
		}
	}
	return nil
}

// wholeDataset reports whether path targets an entire dataset rather than
// a file within one, returning the dataset name.
func wholeDataset(path string) (string, bool) {
	name := strings.TrimSuffix(path, "/")
	return name, !strings.Contains(name, "/")
}

func newStatusCommand(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which project files differ from the remote store.",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := deps.Sidecar.FS(sidecar.KindProject).RemoteStatus(cmd.Context(), "")
			if err != nil {
				return err
			}
			if !status.HasChanges() {
				fmt.Fprintln(deps.Out, "Up to date")
				return nil
			}
			for _, change := range status.FileChanges {
				fmt.Fprintf(deps.Out, "%s: %s\n", change.Prefix(), change.Path)
			}
			return nil
		},
	}
}

func newChangeLogLevelCommand(deps Deps) *cobra.Command {
	var appLevel, extLevel, rtuLevel string

	cmd := &cobra.Command{
		Use:    "change-log-level",
		Short:  "Adjust kernel and sidecar log levels.",
		Hidden: true,
		Args:   usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if appLevel != "" {
				if err := deps.Levels.SetAppLevel(appLevel); err != nil {
					return err
				}
			}
			if extLevel != "" {
				if err := deps.Levels.SetExtLevel(extLevel); err != nil {
					return err
				}
			}

			msg, err := deps.Sidecar.ChangeLogLevel(cmd.Context(), sidecar.LogLevelRequest{
				AppLogLevel: appLevel,
				ExtLogLevel: extLevel,
				RTULogLevel: rtuLevel,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(deps.Out, msg.Message)
			return nil
		},
	}

	cmd.Flags().StringVar(&appLevel, "app-level", "", "application log level (DEBUG, INFO, WARNING, ERROR, CRITICAL)")
	cmd.Flags().StringVar(&extLevel, "ext-level", "", "external library log level")
	cmd.Flags().StringVar(&rtuLevel, "rtu-level", "", "sidecar RTU log level")
	return cmd
}
