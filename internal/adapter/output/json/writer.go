// Package json renders review threads as machine-readable output for
// scripting and agent consumption. Field names are part of the CLI contract
// and must stay stable.
package json

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/bkyoung/branch-review/internal/domain"
)

// Writer streams JSON documents to out.
type Writer struct {
	out io.Writer
}

// NewWriter creates a JSON writer targeting out.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// WriteThreads encodes the thread list as a JSON array. An empty list
// encodes as [] rather than null so consumers can always iterate.
func (w *Writer) WriteThreads(threads []domain.Thread) error {
	if threads == nil {
		threads = []domain.Thread{}
	}
	return w.encode(threads)
}

// WriteThread encodes a single thread as a JSON object.
func (w *Writer) WriteThread(thread domain.Thread) error {
	return w.encode(thread)
}

func (w *Writer) encode(v interface{}) error {
	encoder := json.NewEncoder(w.out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode to json: %w", err)
	}
	return nil
}
