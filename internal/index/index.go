// Package index defines the snapshot index consumed by the freshness oracle
// and appended to by the committer. Implementations live in the fsindex and
// pgindex subpackages.
package index

import (
	"context"

	"github.com/datakeep/harvester/internal/catalog"
)

// Index is the historical collection of committed metadata records.
//
// Within one run the index is read-many/append-only: the oracle reads a
// namespace partition, and the committer appends at most one new version per
// logical dataset. Cross-process concurrent runs against the same index are
// not coordinated here.
type Index interface {
	// ListRecords returns every record in the namespace partition, in stable
	// order, along with a count of stored entries that could not be decoded
	// and were skipped. A missing namespace yields an empty slice, not an
	// error.
	ListRecords(ctx context.Context, namespace string) ([]catalog.Record, int, error)

	// WriteRecord appends one record. Writing a (namespace, short_name,
	// version) triple that already exists returns
	// *catalog.DuplicateVersionError and leaves the stored entry untouched.
	WriteRecord(ctx context.Context, rec catalog.Record) error

	// HasRecord reports whether the triple is already present.
	HasRecord(ctx context.Context, key catalog.IndexKey) (bool, error)
}
