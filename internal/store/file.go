package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Alias1177/Trader/models"
)

// FileStore keeps state in a single JSON file, rewritten atomically
// (tmp file + fsync + rename) on every change. Suited to a single
// unattended process; for anything shared use the Postgres store.
type FileStore struct {
	path  string
	state State
}

// NewFileStore opens (or initializes) a file-backed store at path.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	if err := json.Unmarshal(b, &fs.state); err != nil {
		return nil, fmt.Errorf("parsing state file %s: %w", path, err)
	}
	return fs, nil
}

// Load returns the persisted state.
func (fs *FileStore) Load() (State, error) {
	return fs.state, nil
}

// SavePositions replaces the open-position set and rewrites the file.
func (fs *FileStore) SavePositions(positions []models.Position) error {
	fs.state.Positions = positions
	return fs.flush()
}

// AppendTrade adds a closed trade to the log and rewrites the file.
func (fs *FileStore) AppendTrade(trade models.TradeRecord) error {
	fs.state.Trades = append(fs.state.Trades, trade)
	return fs.flush()
}

// Close is a no-op for the file store.
func (fs *FileStore) Close() error { return nil }

func (fs *FileStore) flush() error {
	b, err := json.MarshalIndent(fs.state, "", "  ")
	if err != nil {
		return err
	}
	// best-effort .bak
	_ = os.WriteFile(fs.path+".bak", b, 0o600)
	return writeFileAtomic(fs.path, b, 0o600)
}

// writeFileAtomic writes data to path atomically (tmp file + fsync + rename).
// It also fsyncs the parent directory to harden the rename durability.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}

	// best-effort fsync parent dir
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
