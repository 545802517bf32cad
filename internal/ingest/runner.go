// Package ingest orchestrates one harvest run: enumerate upstream
// candidates, ask the freshness oracle whether each needs a new snapshot,
// commit the stale ones, and refresh the auxiliary metadata artifact when
// anything changed. Datasets are processed sequentially in catalog-listing
// order; upstream servers rate-limit, so there is deliberately no parallel
// fetch scheduling.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/datakeep/harvester/internal/catalog"
	"github.com/datakeep/harvester/internal/commit"
	"github.com/datakeep/harvester/internal/fetch"
	"github.com/datakeep/harvester/internal/freshness"
	"github.com/datakeep/harvester/internal/source"
)

// DatasetError records one per-dataset failure. Failures never abort
// processing of sibling datasets.
type DatasetError struct {
	Code string
	Err  error
}

func (e DatasetError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

// runAbortError marks an error as fatal for the whole run rather than for a
// single dataset.
type runAbortError struct {
	err error
}

func (e *runAbortError) Error() string { return e.err.Error() }
func (e *runAbortError) Unwrap() error { return e.err }

// Summary is the user-visible outcome of one run.
type Summary struct {
	RunID   string
	Version string

	Updated []string
	Fresh   []string
	Failed  []DatasetError

	// SkippedUnlisted counts catalog entries not on the allow-list; they are
	// never probed or fetched.
	SkippedUnlisted int

	// MalformedIndexRecords counts historical index entries skipped while
	// scanning the namespace partition; each entry is counted once even
	// though every candidate triggers its own scan.
	MalformedIndexRecords int

	AuxRefreshed bool
	AuxErr       error
}

// OK reports whether the run succeeded for every enabled dataset and, when
// triggered, the auxiliary refresh.
func (s Summary) OK() bool {
	return len(s.Failed) == 0 && s.AuxErr == nil
}

type Runner struct {
	adapter   source.Adapter
	oracle    *freshness.Oracle
	committer *commit.Committer
	client    *fetch.Client
	allowed   func(code string) bool
	logger    zerolog.Logger

	now        func() time.Time
	versionTag string
	dryRun     bool
}

// Option tweaks a Runner.
type Option func(*Runner)

// WithVersionTag pins the run-wide version tag instead of deriving it from
// today's date. Every record and commit in the run shares this tag.
func WithVersionTag(tag string) Option {
	return func(r *Runner) { r.versionTag = tag }
}

// WithClock injects the clock used to derive the version tag.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithDryRun reports freshness decisions without fetching payloads or
// touching the index or object storage.
func WithDryRun(dry bool) Option {
	return func(r *Runner) { r.dryRun = dry }
}

func NewRunner(adapter source.Adapter, oracle *freshness.Oracle, committer *commit.Committer, client *fetch.Client, allowed func(string) bool, logger zerolog.Logger, opts ...Option) *Runner {
	r := &Runner{
		adapter:   adapter,
		oracle:    oracle,
		committer: committer,
		client:    client,
		allowed:   allowed,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one harvest. A catalog-listing failure or an unavailable
// index aborts the run; everything that goes wrong for a single dataset is
// recorded in the summary and processing continues with the next one.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	version := r.versionTag
	if version == "" {
		version = catalog.VersionForDate(r.now())
	}
	summary := Summary{
		RunID:   uuid.NewString(),
		Version: version,
	}
	logger := r.logger.With().
		Str("run_id", summary.RunID).
		Str("namespace", r.adapter.Namespace()).
		Str("version", version).
		Logger()
	logger.Info().Msg("starting harvest run")

	descriptors, err := r.adapter.ListDescriptors(ctx)
	if err != nil {
		return summary, fmt.Errorf("catalog listing: %w", err)
	}
	logger.Info().Int("candidates", len(descriptors)).Msg("fetched catalog listing")

	anyUpdated := false
	for _, d := range descriptors {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if !r.allowed(d.Code) {
			summary.SkippedUnlisted++
			continue
		}

		updated, err := r.processDataset(ctx, logger, d, version, &summary)
		if err != nil {
			var abort *runAbortError
			if errors.As(err, &abort) {
				// The index itself is unavailable; continuing would just
				// re-fetch everything blindly.
				return summary, abort.err
			}
			logger.Error().Err(err).Str("code", d.Code).Msg("dataset failed")
			summary.Failed = append(summary.Failed, DatasetError{Code: d.Code, Err: err})
			continue
		}
		if updated {
			anyUpdated = true
		}
	}

	r.refreshAuxiliary(ctx, logger, anyUpdated, version, &summary)

	logger.Info().
		Int("updated", len(summary.Updated)).
		Int("fresh", len(summary.Fresh)).
		Int("failed", len(summary.Failed)).
		Int("skipped_unlisted", summary.SkippedUnlisted).
		Int("malformed_index_records", summary.MalformedIndexRecords).
		Bool("aux_refreshed", summary.AuxRefreshed).
		Msg("harvest run finished")
	return summary, nil
}

// processDataset runs build -> oracle -> commit for one candidate and
// reports whether a new snapshot was committed. Errors it returns are
// per-dataset; an oracle failure means the index itself is unavailable and
// is escalated to abort the run.
func (r *Runner) processDataset(ctx context.Context, logger zerolog.Logger, d source.Descriptor, version string, summary *Summary) (bool, error) {
	ds, err := r.adapter.Build(ctx, d, version)
	if err != nil {
		return false, err
	}

	res, oracleErr := r.oracle.IsUpToDate(ctx, ds.Record.SourceDataURL, ds.Modified, r.adapter.Namespace())
	if oracleErr != nil {
		return false, &runAbortError{err: oracleErr}
	}
	// Every scan walks the same namespace partition, so a malformed entry
	// shows up in each candidate's skip count. Keep the per-scan maximum
	// instead of summing the same entries once per dataset.
	if res.Skipped > summary.MalformedIndexRecords {
		summary.MalformedIndexRecords = res.Skipped
	}
	if res.UpToDate {
		logger.Info().Str("code", d.Code).Msg("already up to date; skipping")
		summary.Fresh = append(summary.Fresh, d.Code)
		return false, nil
	}

	if r.dryRun {
		logger.Info().Str("code", d.Code).Msg("stale; would fetch and commit (dry run)")
		summary.Updated = append(summary.Updated, d.Code)
		return true, nil
	}

	sourceURL := ds.Record.SourceDataURL
	_, err = r.committer.Commit(ctx, ds.Record, func(ctx context.Context, w io.Writer) error {
		return r.client.Download(ctx, sourceURL, w)
	})
	if err != nil {
		return false, err
	}
	summary.Updated = append(summary.Updated, d.Code)
	return true, nil
}

// refreshAuxiliary re-captures the cross-dataset reference artifact, but
// only when at least one primary dataset changed this run. The artifact is
// always fetched in full, independent of any per-dataset freshness state.
func (r *Runner) refreshAuxiliary(ctx context.Context, logger zerolog.Logger, anyUpdated bool, version string, summary *Summary) {
	aux, ok := r.adapter.(source.AuxiliaryRefresher)
	if !ok {
		return
	}
	if !anyUpdated {
		logger.Info().Msg("no dataset changed; auxiliary metadata refresh not needed")
		return
	}
	if r.dryRun {
		logger.Info().Msg("would refresh auxiliary metadata (dry run)")
		return
	}

	_, err := r.committer.Commit(ctx, aux.AuxiliaryRecord(version), aux.FetchAuxiliary)
	if err != nil {
		logger.Error().Err(err).Msg("auxiliary metadata refresh failed")
		summary.AuxErr = err
		return
	}
	summary.AuxRefreshed = true
}
