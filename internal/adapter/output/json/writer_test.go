package json_test

import (
	"bytes"
	stdjson "encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	outjson "github.com/bkyoung/branch-review/internal/adapter/output/json"
	"github.com/bkyoung/branch-review/internal/domain"
)

func sampleThread() domain.Thread {
	resolvedAt := int64(1700000100000)
	return domain.Thread{
		Comment: domain.Comment{
			ID:         7,
			FilePath:   "src/app.go",
			StartLine:  10,
			EndLine:    12,
			Body:       "needs error handling",
			Author:     "reviewer",
			CreatedAt:  1700000000000,
			Resolved:   true,
			ResolvedAt: &resolvedAt,
			Replies: []domain.Reply{
				{ID: 1, CommentID: 7, Author: "you", Body: "fixed", CreatedAt: 1700000050000},
			},
		},
	}
}

func TestWriter_WriteThread_StableFieldNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, outjson.NewWriter(&buf).WriteThread(sampleThread()))

	var decoded map[string]interface{}
	require.NoError(t, stdjson.Unmarshal(buf.Bytes(), &decoded))

	for _, key := range []string{
		"id", "file_path", "start_line", "end_line", "body",
		"author", "created_at", "resolved", "resolved_at", "replies",
	} {
		assert.Contains(t, decoded, key)
	}
	assert.Equal(t, float64(7), decoded["id"])
	assert.Equal(t, "src/app.go", decoded["file_path"])

	replies, ok := decoded["replies"].([]interface{})
	require.True(t, ok)
	require.Len(t, replies, 1)
	reply := replies[0].(map[string]interface{})
	assert.Equal(t, "fixed", reply["body"])
	assert.NotContains(t, reply, "comment_id", "reply comment_id is internal")
}

func TestWriter_WriteThread_OmitsResolvedAtWhenOpen(t *testing.T) {
	th := sampleThread()
	th.Resolved = false
	th.ResolvedAt = nil

	var buf bytes.Buffer
	require.NoError(t, outjson.NewWriter(&buf).WriteThread(th))
	assert.NotContains(t, buf.String(), "resolved_at")
}

func TestWriter_WriteThreads_EmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, outjson.NewWriter(&buf).WriteThreads(nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestWriter_WriteThreads_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, outjson.NewWriter(&buf).WriteThreads([]domain.Thread{sampleThread()}))

	var decoded []domain.Thread
	require.NoError(t, stdjson.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, int64(7), decoded[0].ID)
	require.Len(t, decoded[0].Replies, 1)
}
