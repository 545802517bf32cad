// Package audit checks committed index records for missing required fields
// and, optionally, for payload URLs that no longer resolve.
package audit

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/datakeep/harvester/internal/catalog"
	"github.com/datakeep/harvester/internal/fetch"
	"github.com/datakeep/harvester/internal/index"
)

type Auditor struct {
	index  index.Index
	client *fetch.Client
	logger zerolog.Logger
}

func New(ix index.Index, client *fetch.Client, logger zerolog.Logger) *Auditor {
	return &Auditor{index: ix, client: client, logger: logger}
}

// Problem is one audit finding for one record.
type Problem struct {
	Key catalog.IndexKey
	Err error
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %v", p.Key, p.Err)
}

type Report struct {
	Checked   int
	Malformed int
	Problems  []Problem
}

// OK reports whether the namespace partition passed the audit.
func (r Report) OK() bool {
	return r.Malformed == 0 && len(r.Problems) == 0
}

// AuditNamespace validates every record in the namespace: required-field
// presence always, plus a liveness probe of each payload URL when checkURLs
// is set. A finding on one record never stops the audit of the rest.
func (a *Auditor) AuditNamespace(ctx context.Context, namespace string, checkURLs bool) (Report, error) {
	records, skipped, err := a.index.ListRecords(ctx, namespace)
	if err != nil {
		return Report{}, fmt.Errorf("audit: list %q: %w", namespace, err)
	}

	report := Report{Malformed: skipped}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		if err := rec.Validate(); err != nil {
			report.Problems = append(report.Problems, Problem{Key: rec.IndexKey(), Err: err})
			continue
		}
		if !checkURLs {
			continue
		}
		for _, url := range []string{rec.SourceDataURL, rec.DataURL} {
			if url == "" {
				continue
			}
			if _, err := a.client.Head(ctx, url); err != nil {
				report.Problems = append(report.Problems, Problem{Key: rec.IndexKey(), Err: err})
			}
		}
	}

	a.logger.Info().
		Str("namespace", namespace).
		Int("checked", report.Checked).
		Int("malformed", report.Malformed).
		Int("problems", len(report.Problems)).
		Msg("audit finished")
	return report, nil
}
