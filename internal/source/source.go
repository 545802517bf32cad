// Package source defines the capability a provider-specific adapter has to
// satisfy: turn raw upstream catalog entries into fully-populated metadata
// records plus a fetch instruction. New providers are added as new adapter
// implementations without touching the oracle, committer, or orchestrator.
package source

import (
	"context"
	"io"
	"time"

	"github.com/datakeep/harvester/internal/catalog"
)

// Descriptor is one raw upstream catalog entry: the provider-specific field
// mapping plus the identifying code the adapter extracted from it. Codes are
// matched against the ingest allow-list.
type Descriptor struct {
	Code   string
	Fields map[string]string
}

// Dataset is a candidate snapshot: the record to commit if the freshness
// check says PROCEED, and the server-side modification signal feeding that
// check. Modified comes from a header probe and is never persisted as the
// dataset's own publication date.
type Dataset struct {
	Record   catalog.Record
	Modified time.Time
}

// Adapter produces candidate datasets for one provider.
type Adapter interface {
	// Namespace identifies the provider group; it partitions the index.
	Namespace() string

	// ListDescriptors fetches the upstream catalog listing. An error here is
	// fatal for the whole run: there are no candidates to process.
	ListDescriptors(ctx context.Context) ([]Descriptor, error)

	// Build turns one descriptor into a candidate dataset tagged with the
	// run-wide version. Building performs exactly one read-only header probe
	// against the payload URL and has no other side effects.
	Build(ctx context.Context, d Descriptor, version string) (Dataset, error)
}

// AuxiliaryRefresher is implemented by adapters that maintain a secondary,
// cross-dataset reference artifact. The artifact is re-fetched in full
// whenever at least one primary dataset changed in a run.
type AuxiliaryRefresher interface {
	// AuxiliaryRecord describes the aggregate artifact for this run.
	AuxiliaryRecord(version string) catalog.Record

	// FetchAuxiliary writes the aggregate artifact to w. Failures of an
	// individual upstream fetch are tolerated and omitted from the
	// aggregate; only a total failure returns an error.
	FetchAuxiliary(ctx context.Context, w io.Writer) error
}
