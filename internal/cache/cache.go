// Package cache materializes a local working copy of committed snapshots:
// every record in the index gets its payload downloaded into the cache
// directory, skipping files already present, optionally verified against the
// md5 recorded at commit time.
package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/datakeep/harvester/internal/catalog"
	"github.com/datakeep/harvester/internal/commit"
	"github.com/datakeep/harvester/internal/fetch"
	"github.com/datakeep/harvester/internal/index"
)

type Fetcher struct {
	index  index.Index
	client *fetch.Client
	dir    string
	logger zerolog.Logger
}

func NewFetcher(ix index.Index, client *fetch.Client, dir string, logger zerolog.Logger) *Fetcher {
	return &Fetcher{index: ix, client: client, dir: dir, logger: logger}
}

// FileError records one payload that could not be fetched or verified.
type FileError struct {
	Key catalog.IndexKey
	Err error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Key, e.Err)
}

type Summary struct {
	Fetched int
	Cached  int
	Failed  []FileError
}

// FetchNamespace downloads every payload recorded for the namespace into the
// cache. Files already present are left alone. With verify set, every file,
// cached or fresh, is checked against its recorded md5; a mismatch is a
// per-file failure, never an abort.
func (f *Fetcher) FetchNamespace(ctx context.Context, namespace string, verify bool) (Summary, error) {
	records, skipped, err := f.index.ListRecords(ctx, namespace)
	if err != nil {
		return Summary{}, fmt.Errorf("cache: list %q: %w", namespace, err)
	}
	if skipped > 0 {
		f.logger.Warn().Int("skipped", skipped).Str("namespace", namespace).
			Msg("ignoring malformed index records")
	}

	var summary Summary
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := f.fetchOne(ctx, rec, verify, &summary); err != nil {
			f.logger.Error().Err(err).Str("key", rec.IndexKey().String()).Msg("cache fetch failed")
			summary.Failed = append(summary.Failed, FileError{Key: rec.IndexKey(), Err: err})
		}
	}
	return summary, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, rec catalog.Record, verify bool, summary *Summary) error {
	dest := commit.CachePath(f.dir, rec)
	if _, err := os.Stat(dest); err == nil {
		f.logger.Info().Str("file", dest).Msg("cached")
		summary.Cached++
		return f.maybeVerify(dest, rec, verify)
	}

	// Prefer our own durable copy; fall back to the upstream URL for records
	// committed before a remote reference was recorded.
	url := rec.DataURL
	if url == "" {
		url = rec.SourceDataURL
	}
	f.logger.Info().Str("file", dest).Str("url", url).Msg("fetch")

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+rec.ShortName+"-*")
	if err != nil {
		return fmt.Errorf("temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := f.client.Download(ctx, url, tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("flush %s: %w", dest, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	summary.Fetched++
	return f.maybeVerify(dest, rec, verify)
}

func (f *Fetcher) maybeVerify(path string, rec catalog.Record, verify bool) error {
	if !verify || rec.MD5 == "" {
		return nil
	}
	sum, err := commit.FileMD5(path)
	if err != nil {
		return err
	}
	if sum != rec.MD5 {
		return fmt.Errorf("checksum mismatch: got %s, index records %s", sum, rec.MD5)
	}
	return nil
}
