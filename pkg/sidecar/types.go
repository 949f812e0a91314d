// Package sidecar provides the HTTP client for the planar-ally sidecar
// service, which handles dataset and project file transfer between the
// kernel's file system and the remote store.
package sidecar

import (
	"encoding/json"
	"fmt"
)

// UserMessage is a human readable message that should be displayed to the
// requesting user.
type UserMessage struct {
	Message string `json:"message"`
}

// FileKind selects which sidecar-managed file tree an operation targets.
type FileKind string

const (
	// KindProject targets the project file tree.
	KindProject FileKind = "project"

	// KindDataset targets dataset files.
	KindDataset FileKind = "dataset"
)

// ChangeType describes how a remote file differs from the local copy.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
)

// RemoteFileChange is a single file difference between the remote store and
// the local kernel's file system.
type RemoteFileChange struct {
	ChangeType ChangeType `json:"change_type"`
	Path       string     `json:"path"`
}

// Prefix returns the display prefix for the change ("added", "modified",
// "deleted"), or an empty string for unknown change types.
func (c RemoteFileChange) Prefix() string {
	switch c.ChangeType {
	case ChangeAdded, ChangeModified, ChangeDeleted:
		return string(c.ChangeType)
	}
	return ""
}

// RemoteStatus reports all remote file changes under a prefix.
type RemoteStatus struct {
	FileChanges []RemoteFileChange `json:"file_changes"`
}

// HasChanges reports whether any file differs from the remote store.
func (s RemoteStatus) HasChanges() bool {
	return len(s.FileChanges) > 0
}

// LogLevelRequest asks the sidecar to adjust its log levels. Empty fields
// leave the corresponding level unchanged.
type LogLevelRequest struct {
	AppLogLevel string `json:"app_log_level,omitempty"`
	ExtLogLevel string `json:"ext_log_level,omitempty"`
	RTULogLevel string `json:"rtu_log_level,omitempty"`
}

// StreamType discriminates messages on a dataset operation stream.
type StreamType string

const (
	StreamError              StreamType = "error"
	StreamFileProgressStart  StreamType = "file_progress_start"
	StreamFileProgressEnd    StreamType = "file_progress_end"
	StreamFileProgressUpdate StreamType = "file_progress_update"
)

// StreamHeader carries the type discriminator for a stream message.
type StreamHeader struct {
	Type StreamType `json:"type"`
}

// StreamErrorContent is the payload of an error stream message.
type StreamErrorContent struct {
	Detail     string `json:"detail"`
	StatusCode int    `json:"status_code"`
}

// FileProgressUpdateContent is the payload of a per-file progress update.
// PercentComplete ranges from 0.0 to 1.0.
type FileProgressUpdateContent struct {
	FileName        string  `json:"file_name"`
	PercentComplete float64 `json:"percent_complete"`
}

// StreamMessage is one decoded message from a dataset operation stream.
// Exactly one of the content fields is set, according to Header.Type.
type StreamMessage struct {
	Header StreamHeader

	Error    *StreamErrorContent
	Progress *FileProgressUpdateContent
	Info     *UserMessage
}

// streamEnvelope is the wire shape of a stream message: the content is
// decoded lazily once the header type is known.
type streamEnvelope struct {
	Header  StreamHeader    `json:"header"`
	Content json.RawMessage `json:"content"`
}

// decodeStreamMessage decodes one NDJSON line into a typed StreamMessage.
func decodeStreamMessage(line []byte) (*StreamMessage, error) {
	var env streamEnvelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, fmt.Errorf("decoding stream message: %w", err)
	}

	msg := &StreamMessage{Header: env.Header}

	switch env.Header.Type {
	case StreamError:
		msg.Error = &StreamErrorContent{}
		if err := json.Unmarshal(env.Content, msg.Error); err != nil {
			return nil, fmt.Errorf("decoding stream error content: %w", err)
		}
	case StreamFileProgressUpdate:
		msg.Progress = &FileProgressUpdateContent{}
		if err := json.Unmarshal(env.Content, msg.Progress); err != nil {
			return nil, fmt.Errorf("decoding file progress content: %w", err)
		}
	case StreamFileProgressStart, StreamFileProgressEnd:
		msg.Info = &UserMessage{}
		if err := json.Unmarshal(env.Content, msg.Info); err != nil {
			return nil, fmt.Errorf("decoding stream user message: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown stream message type %q", env.Header.Type)
	}

	return msg, nil
}
