package token

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// ScanCheckpoint records how far one network's event history has been scanned.
type ScanCheckpoint struct {
	LastScannedBlock uint64 `json:"last_scanned_block"`
	UpdatedAt        string `json:"updated_at"`
}

// CheckpointStore persists scan checkpoints to disk, one entry per network,
// so a history scan can resume where the previous run stopped.
type CheckpointStore struct {
	path    string
	enabled bool
	mu      sync.Mutex
}

func NewCheckpointStore(path string, enabled bool) *CheckpointStore {
	return &CheckpointStore{path: path, enabled: enabled && path != ""}
}

func (c *CheckpointStore) Load(chainID uint64) (ScanCheckpoint, bool, error) {
	if !c.enabled {
		return ScanCheckpoint{}, false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.read()
	if err != nil {
		return ScanCheckpoint{}, false, err
	}
	cp, ok := entries[checkpointKey(chainID)]
	return cp, ok, nil
}

func (c *CheckpointStore) Save(chainID uint64, lastScanned uint64) error {
	if !c.enabled {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.read()
	if err != nil {
		return err
	}
	entries[checkpointKey(chainID)] = ScanCheckpoint{
		LastScannedBlock: lastScanned,
		UpdatedAt:        time.Now().UTC().Format(time.RFC3339Nano),
	}

	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

func (c *CheckpointStore) read() (map[string]ScanCheckpoint, error) {
	stat, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]ScanCheckpoint), nil
		}
		return nil, fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("checkpoint path is a directory")
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	entries := make(map[string]ScanCheckpoint)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	return entries, nil
}

func checkpointKey(chainID uint64) string {
	return strconv.FormatUint(chainID, 10)
}
