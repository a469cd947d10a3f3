package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONLRecorder appends one JSON document per event to a file.
type JSONLRecorder struct {
	mu   sync.Mutex
	file *os.File
}

// NewJSONLRecorder opens (creating directories as needed) the trace file in
// append mode.
func NewJSONLRecorder(path string) (*JSONLRecorder, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create trace directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	return &JSONLRecorder{file: f}, nil
}

// Close closes the trace file.
func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

func (r *JSONLRecorder) Record(_ context.Context, event Event) error {
	raw, err := json.Marshal(stamp(event))
	if err != nil {
		return fmt.Errorf("marshal trace event: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.file.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("write trace event: %w", err)
	}
	return nil
}
