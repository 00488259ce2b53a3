package slippage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type filePreference struct {
	SlippageBps uint16 `json:"slippage_bps"`
	UpdatedAt   string `json:"updated_at"`
}

// FileStore keeps the tolerance in a small JSON file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// SlippageBps returns DefaultBps when nothing has been saved yet.
func (s *FileStore) SlippageBps(context.Context) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stat, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultBps, nil
		}
		return 0, fmt.Errorf("stat slippage file: %w", err)
	}
	if stat.IsDir() {
		return 0, fmt.Errorf("slippage path is a directory")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0, fmt.Errorf("read slippage file: %w", err)
	}
	var pref filePreference
	if err := json.Unmarshal(data, &pref); err != nil {
		return 0, fmt.Errorf("parse slippage file: %w", err)
	}
	return Validate(int64(pref.SlippageBps))
}

// SetSlippageBps writes the tolerance via a temp file and rename.
func (s *FileStore) SetSlippageBps(_ context.Context, bps uint16) error {
	if _, err := Validate(int64(bps)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create slippage dir: %w", err)
		}
	}

	data, err := json.Marshal(filePreference{
		SlippageBps: bps,
		UpdatedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal slippage: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write slippage tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename slippage: %w", err)
	}
	return nil
}
