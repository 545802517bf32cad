// Package freshness decides whether a candidate dataset needs a new snapshot.
package freshness

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/datakeep/harvester/internal/catalog"
	"github.com/datakeep/harvester/internal/index"
)

// Oracle compares a candidate's upstream identity against the historical
// index. It never writes.
type Oracle struct {
	index  index.Index
	logger zerolog.Logger
}

func New(ix index.Index, logger zerolog.Logger) *Oracle {
	return &Oracle{index: ix, logger: logger}
}

// Result reports one freshness decision plus the number of historical
// records that had to be skipped as malformed while scanning.
type Result struct {
	UpToDate bool
	Skipped  int
}

// IsUpToDate scans the full namespace partition and reports whether some
// committed record covers sourceDataURL with a date_accessed strictly later
// than the upstream modification date. Equal dates count as NOT up to date:
// an exact-timestamp collision forces a redundant re-fetch rather than
// risking a missed update.
//
// Records whose date_accessed does not parse are skipped and counted, never
// aborting the scan; an empty or missing namespace partition always yields
// "not up to date".
func (o *Oracle) IsUpToDate(ctx context.Context, sourceDataURL string, modified time.Time, namespace string) (Result, error) {
	records, malformed, err := o.index.ListRecords(ctx, namespace)
	if err != nil {
		return Result{}, fmt.Errorf("freshness: list %q: %w", namespace, err)
	}

	// Compare at calendar-date precision: date_accessed carries no time of
	// day, so the upstream timestamp is truncated to its date too.
	modifiedDay := time.Date(modified.Year(), modified.Month(), modified.Day(), 0, 0, 0, 0, time.UTC)
	res := Result{Skipped: malformed}
	for _, rec := range records {
		if rec.SourceDataURL != sourceDataURL {
			continue
		}
		accessed, err := time.Parse(catalog.DateLayout, rec.DateAccessed)
		if err != nil {
			res.Skipped++
			o.logger.Warn().
				Str("namespace", namespace).
				Str("short_name", rec.ShortName).
				Str("date_accessed", rec.DateAccessed).
				Msg("skipping index record with malformed date_accessed")
			continue
		}
		if accessed.After(modifiedDay) {
			o.logger.Info().
				Str("source_data_url", sourceDataURL).
				Str("date_accessed", rec.DateAccessed).
				Msg("dataset is already up to date")
			res.UpToDate = true
		}
	}
	return res, nil
}
