package sidecar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// defaultBaseURL is where planar-ally listens inside the kernel pod.
	defaultBaseURL = "http://localhost:7000/api"

	// defaultVersion is the sidecar API version.
	defaultVersion = "v0"

	// defaultTimeout bounds non-streaming requests end to end.
	defaultTimeout = 60 * time.Second

	// connectTimeout bounds establishing the TCP connection. The sidecar
	// is local, so connecting should be nearly instant.
	connectTimeout = 500 * time.Millisecond

	userAgent       = "noteable-notebook-magics"
	requestIDHeader = "X-Request-Id"
)

// Config holds sidecar client configuration.
type Config struct {
	BaseURL string
	Version string
	Timeout time.Duration
}

// Client talks to the planar-ally sidecar over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	stream  *http.Client
}

// New creates a sidecar client.
func New(cfg Config) *Client {
	cfg = applyDefaults(cfg)

	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/") + "/" + cfg.Version + "/",
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		// Streaming operations run for as long as the transfer takes, so
		// the stream client has no overall timeout.
		stream: &http.Client{Transport: transport},
	}
}

// applyDefaults applies default values to the configuration.
func applyDefaults(cfg Config) Config {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = defaultVersion
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return cfg
}

// FS returns the filesystem API for a file kind.
func (c *Client) FS(kind FileKind) *FileSystemAPI {
	return &FileSystemAPI{client: c, prefix: "fs/" + string(kind)}
}

// DatasetFS returns the streaming dataset filesystem API.
func (c *Client) DatasetFS() *DatasetFileSystemAPI {
	return &DatasetFileSystemAPI{client: c, prefix: "fs/" + string(KindDataset)}
}

// ChangeLogLevel asks the sidecar to adjust its log levels.
func (c *Client) ChangeLogLevel(ctx context.Context, req LogLevelRequest) (*UserMessage, error) {
	var msg UserMessage
	if err := c.do(ctx, http.MethodPost, "logs/level", "change log level", req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// do performs a non-streaming request and decodes the JSON object response
// into out. The operation string names the request in errors shown to the
// user.
func (c *Client) do(ctx context.Context, method, endpoint, operation string, body, out any) error {
	req, err := c.newRequest(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return &TimeoutError{Operation: operation}
		}
		return fmt.Errorf("requesting %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return checkResponse(resp, operation, out)
}

// newRequest builds a request with the standard headers. A nil body sends
// no payload.
func (c *Client) newRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", endpoint, err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(requestIDHeader, uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// checkResponse validates the status code and decodes the body into out.
func checkResponse(resp *http.Response, operation string, out any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response for %s: %w", operation, err)
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
			Operation:  operation,
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &BadResponseError{cause: err}
	}
	return nil
}

// isTimeout reports whether err is a timeout of any flavor.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// joinPath joins URL path segments, skipping empty ones.
func joinPath(segments ...string) string {
	parts := segments[:0:0]
	for _, segment := range segments {
		if segment != "" {
			parts = append(parts, segment)
		}
	}
	return strings.Join(parts, "/")
}

// FileSystemAPI performs non-streaming file operations for one file kind.
type FileSystemAPI struct {
	client *Client
	prefix string
}

// Pull fetches remote updates for path to the local file system.
func (fs *FileSystemAPI) Pull(ctx context.Context, path string) (*UserMessage, error) {
	return fs.fileOp(ctx, path, "pull", "pull files")
}

// Push sends local updates under path to the remote store.
func (fs *FileSystemAPI) Push(ctx context.Context, path string) (*UserMessage, error) {
	return fs.fileOp(ctx, path, "push", "push files")
}

// Move informs the sidecar that a file moved.
func (fs *FileSystemAPI) Move(ctx context.Context, path string) (*UserMessage, error) {
	return fs.fileOp(ctx, path, "move", "move files")
}

// Delete removes path from the remote store.
func (fs *FileSystemAPI) Delete(ctx context.Context, path string) (*UserMessage, error) {
	var msg UserMessage
	err := fs.client.do(ctx, http.MethodDelete, joinPath(fs.prefix, path), "delete files", nil, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// RemoteStatus reports remote file changes under path.
func (fs *FileSystemAPI) RemoteStatus(ctx context.Context, path string) (*RemoteStatus, error) {
	var status RemoteStatus
	err := fs.client.do(ctx, http.MethodGet, joinPath(fs.prefix, path, "status"), "get file status", nil, &status)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

func (fs *FileSystemAPI) fileOp(ctx context.Context, path, op, operation string) (*UserMessage, error) {
	var msg UserMessage
	err := fs.client.do(ctx, http.MethodPost, joinPath(fs.prefix, path, op), operation, nil, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// DatasetFileSystemAPI performs streaming dataset transfers.
type DatasetFileSystemAPI struct {
	client *Client
	prefix string
}

// Push streams a dataset push for path. The caller must close the stream.
func (ds *DatasetFileSystemAPI) Push(ctx context.Context, path string) (*OperationStream, error) {
	return ds.open(ctx, joinPath(ds.prefix, path, "push"), "push dataset files")
}

// Pull streams a dataset pull for path. The caller must close the stream.
func (ds *DatasetFileSystemAPI) Pull(ctx context.Context, path string) (*OperationStream, error) {
	return ds.open(ctx, joinPath(ds.prefix, path, "pull"), "pull dataset files")
}

func (ds *DatasetFileSystemAPI) open(ctx context.Context, endpoint, operation string) (*OperationStream, error) {
	req, err := ds.client.newRequest(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := ds.client.stream.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{Operation: operation}
		}
		return nil, fmt.Errorf("requesting %s: %w", endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
			Operation:  operation,
		}
	}

	return newOperationStream(resp.Body), nil
}
