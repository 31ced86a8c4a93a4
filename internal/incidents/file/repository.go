// Package file implements incident storage as a single JSON document on
// local disk: one fixed key, the whole collection as its value.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sentinel-labs/safety-sentinel/internal/domain"
	"github.com/sentinel-labs/safety-sentinel/internal/incidents"
)

// storageFile is the fixed name of the collection document inside the
// data directory.
const storageFile = "incidents.json"

// Repository implements incidents.Storage over a JSON file.
type Repository struct {
	dir  string
	path string
}

// NewRepository creates a file repository rooted at dir. The directory is
// created lazily on first save.
func NewRepository(dir string) *Repository {
	return &Repository{
		dir:  dir,
		path: filepath.Join(dir, storageFile),
	}
}

// Load reads the stored collection. A missing file means no collection
// was ever saved and is reported as incidents.ErrNoData; an unreadable or
// unparseable file is a plain error so the caller can fall back.
func (r *Repository) Load(_ context.Context) ([]domain.Incident, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, incidents.ErrNoData
		}
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}

	var collection []domain.Incident
	if err := json.Unmarshal(data, &collection); err != nil {
		return nil, fmt.Errorf("decode stored incidents: %w", err)
	}

	return collection, nil
}

// Save replaces the stored collection. The document is written to a
// temporary file and renamed into place so a crash mid-write leaves the
// previous collection intact.
func (r *Repository) Save(_ context.Context, collection []domain.Incident) error {
	if err := os.MkdirAll(r.dir, 0o750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	if collection == nil {
		collection = []domain.Incident{}
	}
	data, err := json.MarshalIndent(collection, "", "  ")
	if err != nil {
		return fmt.Errorf("encode incidents: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}

	return nil
}
