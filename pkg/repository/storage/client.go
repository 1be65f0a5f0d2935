package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"path"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/interfaces"
	"github.com/m-mizutani/shikigami/pkg/domain/model/agent"
	"github.com/m-mizutani/shikigami/pkg/domain/types"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
)

const transcriptPrefix = "transcripts"

// Client archives execution transcripts as gzip-compressed JSON
type Client struct {
	adapter interfaces.StorageAdapter
}

var _ interfaces.TranscriptStore = (*Client)(nil)

// New creates a transcript archive on top of a storage adapter
func New(adapter interfaces.StorageAdapter) *Client {
	return &Client{
		adapter: adapter,
	}
}

// TranscriptKey returns the object key of an execution transcript
func TranscriptKey(agentID string, executionID types.ExecutionID) string {
	return path.Join(transcriptPrefix, agentID, executionID.String()+".json.gz")
}

// SaveTranscript stores transcript and returns its key
func (c *Client) SaveTranscript(ctx context.Context, transcript *agent.Transcript) (string, error) {
	if transcript == nil {
		return "", goerr.New("transcript cannot be nil")
	}

	key := TranscriptKey(transcript.AgentID, transcript.ExecutionID)

	raw, err := json.Marshal(transcript)
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal transcript",
			goerr.TV(apperr.ExecutionIDKey, transcript.ExecutionID))
	}

	compressed, err := compress(raw)
	if err != nil {
		return "", goerr.Wrap(err, "failed to compress transcript",
			goerr.TV(apperr.ExecutionIDKey, transcript.ExecutionID))
	}

	if err := c.adapter.Put(ctx, key, compressed); err != nil {
		return "", goerr.Wrap(err, "failed to save transcript",
			goerr.TV(apperr.ExecutionIDKey, transcript.ExecutionID), goerr.V("key", key))
	}
	return key, nil
}

// LoadTranscript reads back the transcript of one execution
func (c *Client) LoadTranscript(ctx context.Context, agentID string, executionID types.ExecutionID) (*agent.Transcript, error) {
	key := TranscriptKey(agentID, executionID)

	compressed, err := c.adapter.Get(ctx, key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load transcript",
			goerr.TV(apperr.ExecutionIDKey, executionID), goerr.V("key", key))
	}

	raw, err := decompress(compressed)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decompress transcript",
			goerr.TV(apperr.ExecutionIDKey, executionID), goerr.V("key", key))
	}

	var transcript agent.Transcript
	if err := json.Unmarshal(raw, &transcript); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal transcript",
			goerr.TV(apperr.ExecutionIDKey, executionID), goerr.V("key", key))
	}
	return &transcript, nil
}

// ListTranscripts returns execution IDs with an archived transcript for agentID
func (c *Client) ListTranscripts(ctx context.Context, agentID string) ([]types.ExecutionID, error) {
	prefix := path.Join(transcriptPrefix, agentID) + "/"
	keys, err := c.adapter.List(ctx, prefix)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list transcripts", goerr.TV(apperr.AgentIDKey, agentID))
	}

	ids := make([]types.ExecutionID, 0, len(keys))
	for _, key := range keys {
		name := strings.TrimPrefix(key, prefix)
		if strings.Contains(name, "/") || !strings.HasSuffix(name, ".json.gz") {
			continue
		}
		ids = append(ids, types.ExecutionID(strings.TrimSuffix(name, ".json.gz")))
	}
	return ids, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, goerr.Wrap(err, "failed to write gzip stream")
	}
	if err := w.Close(); err != nil {
		return nil, goerr.Wrap(err, "failed to close gzip stream")
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open gzip stream")
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read gzip stream")
	}
	return out, nil
}
