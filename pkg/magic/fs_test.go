package magic

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noteable-io/noteable-notebook-magics/pkg/connections"
	"github.com/noteable-io/noteable-notebook-magics/pkg/sidecar"
)

type fakeLevels struct {
	app string
	ext string
}

func (f *fakeLevels) SetAppLevel(name string) error { f.app = name; return nil }
func (f *fakeLevels) SetExtLevel(name string) error { f.ext = name; return nil }

func newTestDeps(serverURL string) (Deps, *bytes.Buffer, *fakeLevels) {
	out := &bytes.Buffer{}
	levels := &fakeLevels{}
	deps := Deps{
		Registry: connections.NewRegistry(),
		Sidecar:  sidecar.New(sidecar.Config{BaseURL: serverURL + "/api"}),
		Levels:   levels,
		Logger:   slog.New(slog.DiscardHandler),
		Out:      out,
	}
	return deps, out, levels
}

func runCommand(t *testing.T, deps Deps, args ...string) error {
	t.Helper()
	root := NewRootCommand(deps)
	root.SetArgs(args)
	return root.Execute()
}

func TestPushDatasets_RendersProgress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0/fs/dataset/My data//push", r.URL.Path)
		fmt.Fprintln(w, `{"header":{"type":"file_progress_start"},"content":{"message":"Pushing files"}}`)
		fmt.Fprintln(w, `{"header":{"type":"file_progress_update"},"content":{"file_name":"a.csv","percent_complete":0.5}}`)
		fmt.Fprintln(w, `{"header":{"type":"file_progress_update"},"content":{"file_name":"a.csv","percent_complete":1.0}}`)
		fmt.Fprintln(w, `{"header":{"type":"file_progress_end"},"content":{"message":"Push complete"}}`)
	}))
	defer server.Close()

	deps, out, _ := newTestDeps(server.URL)
	require.NoError(t, runCommand(t, deps, "push", "datasets", "My", "data"))

	assert.Contains(t, out.String(), "Pushing files")
	assert.Contains(t, out.String(), "a.csv 50%")
	assert.Contains(t, out.String(), "a.csv 100%")
	assert.Contains(t, out.String(), "Push complete")
}

func TestPullDatasets_NoFilesInDataset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0/fs/dataset/empty set//pull", r.URL.Path)
	}))
	defer server.Close()

	deps, out, _ := newTestDeps(server.URL)
	require.NoError(t, runCommand(t, deps, "pull", "datasets", "empty", "set"))

	assert.Contains(t, out.String(), "No files found in dataset 'empty set'")
}

func TestPushDatasets_EmptyStreamSkipsCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"header":{"type":"file_progress_start"},"content":{"message":"Pushing files"}}`)
		fmt.Fprintln(w, `{"header":{"type":"file_progress_end"},"content":{"message":"Push complete"}}`)
	}))
	defer server.Close()

	deps, out, _ := newTestDeps(server.URL)
	require.NoError(t, runCommand(t, deps, "push", "datasets", "empty"))

	assert.NotContains(t, out.String(), "Push complete")
	assert.Contains(t, out.String(), "No files found in dataset 'empty'")
}

func TestPullDatasets_SingleFileNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	deps, out, _ := newTestDeps(server.URL)
	require.NoError(t, runCommand(t, deps, "pull", "datasets", "My data/missing.csv"))

	assert.Contains(t, out.String(), "My data/missing.csv not found")
}

func TestPushDatasets_StreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"header":{"type":"error"},"content":{"detail":"dataset is locked","status_code":423}}`)
	}))
	defer server.Close()

	deps, out, _ := newTestDeps(server.URL)
	require.NoError(t, runCommand(t, deps, "push", "datasets", "locked"))

	assert.Contains(t, out.String(), "dataset is locked")
	assert.NotContains(t, out.String(), "No files found")
}

func TestPushDatasets_StopsAfterStreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"header":{"type":"file_progress_update"},"content":{"file_name":"a.csv","percent_complete":0.5}}`)
		fmt.Fprintln(w, `{"header":{"type":"error"},"content":{"detail":"dataset is locked","status_code":423}}`)
		fmt.Fprintln(w, `{"header":{"type":"file_progress_update"},"content":{"file_name":"b.csv","percent_complete":0.5}}`)
		fmt.Fprintln(w, `{"header":{"type":"file_progress_end"},"content":{"message":"Push complete"}}`)
	}))
	defer server.Close()

	deps, out, _ := newTestDeps(server.URL)
	require.NoError(t, runCommand(t, deps, "push", "datasets", "locked"))

	assert.Contains(t, out.String(), "a.csv 50%")
	assert.Contains(t, out.String(), "dataset is locked")
	assert.NotContains(t, out.String(), "b.csv")
	assert.NotContains(t, out.String(), "Push complete")
}

func TestPushProject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0/fs/project/push", r.URL.Path)
		fmt.Fprintln(w, `{"message":"Pushed 3 files"}`)
	}))
	defer server.Close()

	deps, out, _ := newTestDeps(server.URL)
	require.NoError(t, runCommand(t, deps, "push", "project"))

	assert.Contains(t, out.String(), "Pushed 3 files")
}

func TestStatus_UpToDate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0/fs/project/status", r.URL.Path)
		fmt.Fprintln(w, `{"file_changes":[]}`)
	}))
	defer server.Close()

	deps, out, _ := newTestDeps(server.URL)
	require.NoError(t, runCommand(t, deps, "status"))

	assert.Contains(t, out.String(), "Up to date")
}

func TestStatus_RendersChanges(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"file_changes":[`+
			`{"change_type":"added","path":"new.ipynb"},`+
			`{"change_type":"deleted","path":"old.txt"}]}`)
	}))
	defer server.Close()

	deps, out, _ := newTestDeps(server.URL)
	require.NoError(t, runCommand(t, deps, "status"))

	assert.Contains(t, out.String(), "added: new.ipynb")
	assert.Contains(t, out.String(), "deleted: old.txt")
}

func TestChangeLogLevel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0/logs/level", r.URL.Path)
		fmt.Fprintln(w, `{"message":"Log levels changed"}`)
	}))
	defer server.Close()

	deps, out, levels := newTestDeps(server.URL)
	require.NoError(t, runCommand(t, deps,
		"change-log-level", "--app-level", "DEBUG", "--ext-level", "WARNING"))

	assert.Equal(t, "DEBUG", levels.app)
	assert.Equal(t, "WARNING", levels.ext)
	assert.Contains(t, out.String(), "Log levels changed")
}

func TestExecute_SidecarErrorRendersUserError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	deps, out, _ := newTestDeps(server.URL)
	root := NewRootCommand(deps)
	err := Execute(context.Background(), root, deps, []string{"push", "project"})

	require.Error(t, err)
	assert.Contains(t, out.String(), "support")
}

func TestExecute_ArgCountErrorShowsUsage(t *testing.T) {
	deps, out, _ := newTestDeps("http://localhost:0")
	root := NewRootCommand(deps)
	err := Execute(context.Background(), root, deps, []string{"load", "only-one-arg"})

	require.Error(t, err)
	assert.Contains(t, out.String(), "accepts 2 arg(s)")
	assert.Contains(t, out.String(), "Usage:")
	assert.Contains(t, out.String(), "load <filepath> <tablename>")
	assert.NotContains(t, out.String(), "contact support")
}

func TestExecute_UnknownFlagShowsUsage(t *testing.T) {
	deps, out, _ := newTestDeps("http://localhost:0")
	root := NewRootCommand(deps)
	err := Execute(context.Background(), root, deps, []string{"status", "--bogus"})

	require.Error(t, err)
	assert.Contains(t, out.String(), "unknown flag")
	assert.Contains(t, out.String(), "Usage:")
	assert.NotContains(t, out.String(), "contact support")
}

func TestExecute_UnknownCommandShowsUsage(t *testing.T) {
	deps, out, _ := newTestDeps("http://localhost:0")
	root := NewRootCommand(deps)
	err := Execute(context.Background(), root, deps, []string{"teleport"})

	require.Error(t, err)
	assert.Contains(t, out.String(), "unknown command")
	assert.Contains(t, out.String(), "Usage:")
	assert.NotContains(t, out.String(), "contact support")
}
