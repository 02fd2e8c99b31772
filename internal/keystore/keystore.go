// Package keystore keeps tunnel secrets out of the tunnel database. Each
// secret is stored as its own 0600 file named by an opaque reference.
package keystore

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/plexsphere/wgtunnel/internal/fsutil"
)

// ErrNotFound is returned when a reference has no stored secret.
var ErrNotFound = errors.New("keystore: secret not found")

// ErrInvalidRef is returned for references this store never issued.
var ErrInvalidRef = errors.New("keystore: invalid reference")

// Ref identifies a stored secret.
type Ref string

// FileStore stores secrets under a single directory.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore opens (creating if needed) a store rooted at dir.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("keystore: open: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Put stores secret under a new reference.
func (s *FileStore) Put(secret []byte) (Ref, error) {
	ref := Ref(uuid.NewString())
	if err := fsutil.WriteFileAtomic(s.dir, string(ref), secret, 0o600); err != nil {
		return "", fmt.Errorf("keystore: put: %w", err)
	}
	return ref, nil
}

// Get returns the secret stored under ref.
func (s *FileStore) Get(ref Ref) ([]byte, error) {
	path, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("keystore: get: %w", err)
	}
	return data, nil
}

// Contains reports whether ref has a stored secret.
func (s *FileStore) Contains(ref Ref) bool {
	path, err := s.path(ref)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Delete removes the secret stored under ref. Deleting a missing secret is
// not an error.
func (s *FileStore) Delete(ref Ref) error {
	path, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := fsutil.RemoveIfExists(path); err != nil {
		return fmt.Errorf("keystore: delete: %w", err)
	}
	return nil
}

// Prune deletes every stored secret whose reference is not in keep and
// returns how many were removed.
func (s *FileStore) Prune(keep map[Ref]bool) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("keystore: prune: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ref := Ref(e.Name())
		if _, err := uuid.Parse(string(ref)); err != nil || keep[ref] {
			continue
		}
		if err := fsutil.RemoveIfExists(filepath.Join(s.dir, e.Name())); err != nil {
			return removed, fmt.Errorf("keystore: prune: %w", err)
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("orphaned secrets removed",
			"component", "keystore",
			"count", removed,
		)
	}
	return removed, nil
}

func (s *FileStore) path(ref Ref) (string, error) {
	if _, err := uuid.Parse(string(ref)); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return filepath.Join(s.dir, string(ref)), nil
}
