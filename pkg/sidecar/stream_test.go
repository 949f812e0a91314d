package sidecar

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamOf(lines ...string) *OperationStream {
	return newOperationStream(io.NopCloser(strings.NewReader(strings.Join(lines, "\n"))))
}

func TestOperationStream_DecodesMessages(t *testing.T) {
	stream := streamOf(
		`{"header":{"type":"file_progress_update"},"content":{"file_name":"a.csv","percent_complete":1.0}}`,
		"",
		`{"header":{"type":"error"},"content":{"detail":"nope","status_code":500}}`,
	)

	msg := stream.Next()
	require.NotNil(t, msg)
	require.NotNil(t, msg.Progress)
	assert.Equal(t, "a.csv", msg.Progress.FileName)
	assert.InEpsilon(t, 1.0, msg.Progress.PercentComplete, 1e-9)

	msg = stream.Next()
	require.NotNil(t, msg)
	require.NotNil(t, msg.Error)
	assert.Equal(t, "nope", msg.Error.Detail)
	assert.Equal(t, 500, msg.Error.StatusCode)

	assert.Nil(t, stream.Next())
	assert.NoError(t, stream.Err())
}

func TestOperationStream_MalformedLine(t *testing.T) {
	stream := streamOf(`{"header":{"type":"file_progress_update"},"content":"oops"}`)

	assert.Nil(t, stream.Next())
	assert.Error(t, stream.Err())
}

func TestOperationStream_UnknownType(t *testing.T) {
	stream := streamOf(`{"header":{"type":"mystery"},"content":{}}`)

	assert.Nil(t, stream.Next())
	require.Error(t, stream.Err())
	assert.Contains(t, stream.Err().Error(), "mystery")
}

func TestDecodeStreamMessage_InfoKinds(t *testing.T) {
	for _, typ := range []string{"file_progress_start", "file_progress_end"} {
		msg, err := decodeStreamMessage([]byte(
			`{"header":{"type":"` + typ + `"},"content":{"message":"hi"}}`))
		require.NoError(t, err)
		require.NotNil(t, msg.Info)
		assert.Equal(t, "hi", msg.Info.Message)
	}
}

func TestRemoteFileChange_Prefix(t *testing.T) {
	assert.Equal(t, "modified", RemoteFileChange{ChangeType: ChangeModified}.Prefix())
	assert.Equal(t, "deleted", RemoteFileChange{ChangeType: ChangeDeleted}.Prefix())
	assert.Empty(t, RemoteFileChange{ChangeType: "bogus"}.Prefix())
}
