package alerts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileNotifier appends alerts to a JSON lines file.
type FileNotifier struct {
	mu      sync.Mutex
	f       *os.File
	encoder *json.Encoder
}

// NewFileNotifier opens (or creates) the alert file in append mode.
func NewFileNotifier(path string) (*FileNotifier, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create alert directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open alert file: %w", err)
	}
	return &FileNotifier{
		f:       f,
		encoder: json.NewEncoder(f),
	}, nil
}

func (w *FileNotifier) Notify(a Alert) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return fmt.Errorf("alert writer closed")
	}
	if err := w.encoder.Encode(a); err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	return nil
}

func (w *FileNotifier) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
