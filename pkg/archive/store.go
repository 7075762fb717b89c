package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/snappy"

	"github.com/teamexport/slacksnap/pkg/models"
)

// snapshotExt marks snappy-compressed JSON snapshot files.
const snapshotExt = ".json.sz"

// Store persists export snapshots as snappy-compressed JSON files named
// by run ID under a single directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("archive directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save writes the snapshot and returns the path of the created file.
func (s *Store) Save(snap *models.ExportSnapshot) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	path := filepath.Join(s.dir, snap.RunID+snapshotExt)
	if err := os.WriteFile(path, snappy.Encode(nil, data), 0o644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return path, nil
}

// Load reads a snapshot file written by Save.
func (s *Store) Load(path string) (*models.ExportSnapshot, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
	}

	var snap models.ExportSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Consume implements the snapshot sink used by the API server.
func (s *Store) Consume(_ context.Context, snap *models.ExportSnapshot) error {
	_, err := s.Save(snap)
	return err
}
