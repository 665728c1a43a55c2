// Package file persists sync state as a TOML document in the data directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/afrisam/internal/core/domain"
	"github.com/custodia-labs/afrisam/internal/core/ports/driven"
)

// Ensure StateStore implements the interface.
var _ driven.SyncStateStore = (*StateStore)(nil)

// DefaultFileName is the state file created inside the data directory.
const DefaultFileName = "state.toml"

// StateStore keeps the watermark and bootstrap marker in a TOML file.
// Every write replaces the file atomically.
type StateStore struct {
	mu       sync.Mutex
	filePath string
}

type stateDoc struct {
	Watermark *watermarkDoc `toml:"watermark,omitempty"`
	Bootstrap *bootstrapDoc `toml:"bootstrap,omitempty"`
}

type watermarkDoc struct {
	SyncedAt     time.Time `toml:"synced_at"`
	LatestPosted time.Time `toml:"latest_posted,omitempty"`
	RecordsSeen  int64     `toml:"records_seen"`
}

type bootstrapDoc struct {
	StartYear        int       `toml:"start_year"`
	EndYear          int       `toml:"end_year"`
	CompletedThrough int       `toml:"completed_through"`
	IncludeCurrent   bool      `toml:"include_current"`
	CurrentDone      bool      `toml:"current_done"`
	StartedAt        time.Time `toml:"started_at"`
	UpdatedAt        time.Time `toml:"updated_at"`
}

// NewStateStore creates a state store in dataDir.
func NewStateStore(dataDir string) (*StateStore, error) {
	if dataDir == "" {
		return nil, errors.New("state: data directory is required")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, &domain.StorageError{Op: "state", Err: err}
	}
	return &StateStore{filePath: filepath.Join(dataDir, DefaultFileName)}, nil
}

// Path returns the state file path.
func (s *StateStore) Path() string {
	return s.filePath
}

// Watermark returns the last committed watermark, or the zero value.
func (s *StateStore) Watermark(_ context.Context) (domain.Watermark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil || doc.Watermark == nil {
		return domain.Watermark{}, err
	}
	return domain.Watermark{
		SyncedAt:     doc.Watermark.SyncedAt,
		LatestPosted: doc.Watermark.LatestPosted,
		RecordsSeen:  doc.Watermark.RecordsSeen,
	}, nil
}

// SaveWatermark durably replaces the watermark.
func (s *StateStore) SaveWatermark(_ context.Context, w domain.Watermark) error {
	return s.update(func(doc *stateDoc) {
		if w.IsZero() {
			doc.Watermark = nil
			return
		}
		doc.Watermark = &watermarkDoc{
			SyncedAt:     w.SyncedAt.UTC(),
			LatestPosted: w.LatestPosted.UTC(),
			RecordsSeen:  w.RecordsSeen,
		}
	})
}

// Bootstrap returns the in-flight bootstrap marker, or nil if none exists.
func (s *StateStore) Bootstrap(_ context.Context) (*domain.BootstrapProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil || doc.Bootstrap == nil {
		return nil, err
	}
	b := doc.Bootstrap
	return &domain.BootstrapProgress{
		StartYear:        b.StartYear,
		EndYear:          b.EndYear,
		CompletedThrough: b.CompletedThrough,
		IncludeCurrent:   b.IncludeCurrent,
		CurrentDone:      b.CurrentDone,
		StartedAt:        b.StartedAt,
		UpdatedAt:        b.UpdatedAt,
	}, nil
}

// SaveBootstrap durably replaces the bootstrap marker.
func (s *StateStore) SaveBootstrap(_ context.Context, p domain.BootstrapProgress) error {
	return s.update(func(doc *stateDoc) {
		doc.Bootstrap = &bootstrapDoc{
			StartYear:        p.StartYear,
			EndYear:          p.EndYear,
			CompletedThrough: p.CompletedThrough,
			IncludeCurrent:   p.IncludeCurrent,
			CurrentDone:      p.CurrentDone,
			StartedAt:        p.StartedAt.UTC(),
			UpdatedAt:        p.UpdatedAt.UTC(),
		}
	})
}

// ClearBootstrap removes the bootstrap marker.
func (s *StateStore) ClearBootstrap(_ context.Context) error {
	return s.update(func(doc *stateDoc) { doc.Bootstrap = nil })
}

// Reset removes both the watermark and the bootstrap marker.
func (s *StateStore) Reset(_ context.Context) error {
	return s.update(func(doc *stateDoc) {
		doc.Watermark = nil
		doc.Bootstrap = nil
	})
}

// update applies fn to the current document and writes it back.
func (s *StateStore) update(fn func(*stateDoc)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	fn(&doc)
	return s.save(doc)
}

// load reads the state file (caller must hold lock).
func (s *StateStore) load() (stateDoc, error) {
	var doc stateDoc
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return doc, &domain.StorageError{Op: "read state", Err: err}
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return doc, &domain.StorageError{Op: "read state", Err: fmt.Errorf("%s: %w", s.filePath, err)}
	}
	return doc, nil
}

// save writes the document to a temporary file and renames it over the
// state file (caller must hold lock).
func (s *StateStore) save(doc stateDoc) error {
	data, err := toml.Marshal(doc)
	if err != nil {
		return &domain.StorageError{Op: "write state", Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.filePath), ".state-*.toml")
	if err != nil {
		return &domain.StorageError{Op: "write state", Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &domain.StorageError{Op: "write state", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &domain.StorageError{Op: "write state", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &domain.StorageError{Op: "write state", Err: err}
	}
	if err := os.Rename(tmpName, s.filePath); err != nil {
		return &domain.StorageError{Op: "write state", Err: err}
	}
	return nil
}
