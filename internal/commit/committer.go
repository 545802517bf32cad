// Package commit persists one fetched payload plus its metadata record. The
// payload upload is the gating step: the index entry is only written after
// the payload is durably stored, so a failure can never leave a dangling
// index entry with no backing object. The reverse — an uploaded payload with
// no index entry, as left by an interrupt — is harmless: the next run sees
// the dataset as not yet up to date and recommits.
package commit

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/datakeep/harvester/internal/catalog"
	"github.com/datakeep/harvester/internal/index"
)

// PayloadStore is the durable object storage a snapshot's payload goes to.
type PayloadStore interface {
	Upload(ctx context.Context, key, localPath, contentType string) (string, error)
}

// FetchFunc streams the payload bytes into w.
type FetchFunc func(ctx context.Context, w io.Writer) error

type Committer struct {
	store    PayloadStore
	index    index.Index
	cacheDir string
	logger   zerolog.Logger
}

// New returns a Committer. cacheDir may be empty to disable the local cache
// copy.
func New(store PayloadStore, ix index.Index, cacheDir string, logger zerolog.Logger) *Committer {
	return &Committer{store: store, index: ix, cacheDir: cacheDir, logger: logger}
}

// Commit fetches the payload into a scratch file, uploads it at the path
// derived from (namespace, short_name, version), and then appends the
// metadata record to the index. The scratch file is removed unconditionally.
// The returned record carries the computed md5 and the remote reference.
//
// Committing a triple the index already holds fails with
// *catalog.DuplicateVersionError before any network transfer happens.
func (c *Committer) Commit(ctx context.Context, rec catalog.Record, fetch FetchFunc) (catalog.Record, error) {
	if err := rec.Validate(); err != nil {
		return catalog.Record{}, err
	}

	key := rec.IndexKey()
	exists, err := c.index.HasRecord(ctx, key)
	if err != nil {
		return catalog.Record{}, fmt.Errorf("commit %s: %w", key, err)
	}
	if exists {
		return catalog.Record{}, &catalog.DuplicateVersionError{Key: key}
	}

	scratch, err := os.CreateTemp("", "harvester-*."+rec.FileExtension)
	if err != nil {
		return catalog.Record{}, fmt.Errorf("commit %s: scratch file: %w", key, err)
	}
	defer func() {
		_ = scratch.Close()
		_ = os.Remove(scratch.Name())
	}()

	if err := fetch(ctx, scratch); err != nil {
		return catalog.Record{}, fmt.Errorf("commit %s: %w", key, err)
	}
	if err := scratch.Close(); err != nil {
		return catalog.Record{}, fmt.Errorf("commit %s: flush scratch file: %w", key, err)
	}

	sum, err := fileMD5(scratch.Name())
	if err != nil {
		return catalog.Record{}, fmt.Errorf("commit %s: %w", key, err)
	}
	rec.MD5 = sum

	remoteURL, err := c.store.Upload(ctx, rec.RemotePath(), scratch.Name(), contentTypeFor(rec.FileExtension))
	if err != nil {
		return catalog.Record{}, &catalog.TransferError{Op: "upload", URL: rec.RemotePath(), Err: err}
	}
	rec.DataURL = remoteURL
	c.logger.Info().Str("key", key.String()).Str("remote", remoteURL).Msg("payload uploaded")

	if c.cacheDir != "" {
		if err := c.copyToCache(rec, scratch.Name()); err != nil {
			// The snapshot is already durable; a cache miss just means a
			// re-download later.
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("local cache copy failed")
		}
	}

	if err := c.index.WriteRecord(ctx, rec); err != nil {
		return catalog.Record{}, fmt.Errorf("commit %s: %w", key, err)
	}
	c.logger.Info().Str("key", key.String()).Msg("metadata record added to index")
	return rec, nil
}

// CachePath returns where a record's payload lives in the local cache.
func CachePath(cacheDir string, rec catalog.Record) string {
	return filepath.Join(cacheDir, rec.Namespace, rec.Version, rec.ShortName+"."+rec.FileExtension)
}

func (c *Committer) copyToCache(rec catalog.Record, srcPath string) error {
	dest := CachePath(c.cacheDir, rec)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// FileMD5 returns the hex md5 digest of the file at path.
func FileMD5(path string) (string, error) {
	return fileMD5(path)
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("checksum %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func contentTypeFor(extension string) string {
	if ct := mime.TypeByExtension("." + extension); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
