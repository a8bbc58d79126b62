package engine

import (
	"fmt"
	"os"

	"github.com/devswarm/coordd/internal/model"
	yamlutil "github.com/devswarm/coordd/internal/yaml"
)

// Store persists the coordination snapshot as YAML. Writes are atomic
// (temp file + rename with a .bak of the previous version); a crash mid-save
// never leaves a torn snapshot behind.
type Store struct {
	path string
}

// NewStore creates a store backed by the given snapshot path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the snapshot file location.
func (s *Store) Path() string { return s.path }

// Load reads and validates the snapshot. A missing file returns (nil, nil):
// first run starts from config alone.
func (s *Store) Load() (*model.Snapshot, error) {
	var snap model.Snapshot
	if err := yamlutil.ReadInto(s.path, &snap); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", s.path, err)
	}
	return &snap, nil
}

// Save writes the snapshot atomically after validating it.
func (s *Store) Save(snap *model.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid snapshot: %w", err)
	}
	return yamlutil.AtomicWrite(s.path, snap)
}
