// Package fsindex stores the snapshot index as a tree of JSON documents:
// <root>/<namespace>/<version>/<short_name>.json. This is the layout shared
// with the catalog repository, so records written here are discoverable by
// every other consumer of the index checkout.
package fsindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/datakeep/harvester/internal/catalog"
)

type Index struct {
	root string
}

// New returns an Index rooted at dir. The directory does not have to exist
// yet; it is created on first write.
func New(dir string) (*Index, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("fsindex: root directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("fsindex: resolve root %q: %w", dir, err)
	}
	return &Index{root: abs}, nil
}

// Root returns the absolute index root directory.
func (ix *Index) Root() string { return ix.root }

func (ix *Index) recordPath(key catalog.IndexKey) string {
	return filepath.Join(ix.root, key.Namespace, key.Version, key.ShortName+".json")
}

// ListRecords walks the namespace partition and decodes every .json document
// found. Documents that fail to decode are skipped and counted rather than
// aborting the whole scan.
func (ix *Index) ListRecords(ctx context.Context, namespace string) ([]catalog.Record, int, error) {
	dir := filepath.Join(ix.root, namespace)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, 0, nil
	}

	var records []catalog.Record
	skipped := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		var rec catalog.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			skipped++
			return nil
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("fsindex: scan namespace %q: %w", namespace, err)
	}

	// WalkDir is already lexical, but sort explicitly so the order is part of
	// the contract rather than an accident of the filesystem.
	sort.Slice(records, func(i, j int) bool {
		if records[i].Version != records[j].Version {
			return records[i].Version < records[j].Version
		}
		return records[i].ShortName < records[j].ShortName
	})
	return records, skipped, nil
}

// WriteRecord persists rec as pretty-printed JSON at its deterministic path.
// An existing document at that path means a prior run already committed this
// version; it is never overwritten.
func (ix *Index) WriteRecord(ctx context.Context, rec catalog.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := ix.recordPath(rec.IndexKey())
	if _, err := os.Stat(path); err == nil {
		return &catalog.DuplicateVersionError{Key: rec.IndexKey()}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("fsindex: stat %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("fsindex: create %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("fsindex: marshal %s: %w", rec.IndexKey(), err)
	}
	data = append(data, '\n')

	// Write via a temp file in the same directory so a crash never leaves a
	// half-written index document behind.
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+rec.ShortName+"-*")
	if err != nil {
		return fmt.Errorf("fsindex: temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("fsindex: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fsindex: close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("fsindex: rename into place: %w", err)
	}
	return nil
}

// HasRecord reports whether a document for the triple exists.
func (ix *Index) HasRecord(ctx context.Context, key catalog.IndexKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(ix.recordPath(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("fsindex: stat %s: %w", key, err)
}
