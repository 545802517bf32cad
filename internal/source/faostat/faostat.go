// Package faostat adapts the FAO bulk-download catalog to the harvester's
// source contract. Each catalog entry describes one downloadable dataset
// archive; the adapter maps FAO's field names onto metadata records and
// probes the archive URL for its server-side modification date.
package faostat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	dateparser "github.com/markusmobius/go-dateparser"
	"github.com/rs/zerolog"

	"github.com/datakeep/harvester/internal/catalog"
	"github.com/datakeep/harvester/internal/fetch"
	"github.com/datakeep/harvester/internal/source"
)

const (
	Namespace = "faostat"

	sourceName  = "Food and Agriculture Organization of the United Nations"
	homepageURL = "http://www.fao.org/faostat/en/#data"
	licenseURL  = "http://www.fao.org/contact-us/terms/db-terms-of-use/en"
	licenseName = "CC BY-NC-SA 3.0 IGO"

	catalogURL = "http://fenixservices.fao.org/faostat/static/bulkdownloads/datasets_E.json"
	apiBaseURL = "https://fenixservices.fao.org/faostat/api/v1/en/definitions/domain"
)

// Raw descriptor fields as FAO names them.
const (
	fieldCode        = "DatasetCode"
	fieldName        = "DatasetName"
	fieldDescription = "DatasetDescription"
	fieldDateUpdate  = "DateUpdate"
	fieldLocation    = "FileLocation"
)

type Adapter struct {
	client *fetch.Client
	cfg    IngestConfig
	logger zerolog.Logger
}

func New(client *fetch.Client, cfg IngestConfig, logger zerolog.Logger) *Adapter {
	return &Adapter{client: client, cfg: cfg, logger: logger}
}

func (a *Adapter) Namespace() string { return Namespace }

// ShortName derives the stable index slug for a FAO dataset code. It is a
// pure function of the code, so repeated runs map the same logical dataset
// to the same (namespace, short_name) pair.
func ShortName(code string) string {
	return Namespace + "_" + strings.ToLower(code)
}

type catalogResponse struct {
	Datasets struct {
		Dataset []map[string]any `json:"Dataset"`
	} `json:"Datasets"`
}

// ListDescriptors fetches the FAO bulk-download catalog listing.
func (a *Adapter) ListDescriptors(ctx context.Context) ([]source.Descriptor, error) {
	var listing catalogResponse
	if err := a.client.GetJSON(ctx, a.cfg.CatalogURL, &listing); err != nil {
		return nil, fmt.Errorf("faostat: fetch catalog listing: %w", err)
	}

	descriptors := make([]source.Descriptor, 0, len(listing.Datasets.Dataset))
	for _, raw := range listing.Datasets.Dataset {
		fields := make(map[string]string, len(raw))
		for key, value := range raw {
			fields[key] = stringify(value)
		}
		descriptors = append(descriptors, source.Descriptor{
			Code:   strings.ToLower(fields[fieldCode]),
			Fields: fields,
		})
	}
	return descriptors, nil
}

// Build maps one FAO descriptor onto a candidate dataset. The only network
// side effect is a single header probe against the archive URL to learn the
// server's last-modification date.
func (a *Adapter) Build(ctx context.Context, d source.Descriptor, version string) (source.Dataset, error) {
	location := strings.TrimSpace(d.Fields[fieldLocation])
	if location == "" {
		return source.Dataset{}, fmt.Errorf("faostat %s: %w", d.Code, catalog.ErrMissingSourceLocation)
	}

	published, err := parseUpstreamDate(fieldDateUpdate, d.Fields[fieldDateUpdate])
	if err != nil {
		return source.Dataset{}, fmt.Errorf("faostat %s: %w", d.Code, err)
	}

	header, err := a.client.Head(ctx, location)
	if err != nil {
		return source.Dataset{}, fmt.Errorf("faostat %s: %w", d.Code, err)
	}
	modified, err := fetch.LastModified(header)
	if err != nil {
		return source.Dataset{}, fmt.Errorf("faostat %s: %w", d.Code, err)
	}

	rec := catalog.Record{
		Namespace:       Namespace,
		ShortName:       ShortName(d.Code),
		Name:            fmt.Sprintf("%s - FAO (%d)", d.Fields[fieldName], published.Year()),
		Description:     d.Fields[fieldDescription],
		SourceName:      sourceName,
		URL:             homepageURL,
		PublicationYear: published.Year(),
		PublicationDate: published.Format(catalog.DateLayout),
		DateAccessed:    version,
		Version:         version,
		SourceDataURL:   location,
		FileExtension:   "zip",
		LicenseName:     licenseName,
		LicenseURL:      licenseURL,
	}
	return source.Dataset{Record: rec, Modified: modified}, nil
}

// AuxiliaryRecord describes the aggregate reference-metadata artifact.
func (a *Adapter) AuxiliaryRecord(version string) catalog.Record {
	today, _ := time.Parse(catalog.DateLayout, version)
	return catalog.Record{
		Namespace:       Namespace,
		ShortName:       Namespace + "_metadata",
		Name:            fmt.Sprintf("Metadata and identifiers - FAO (%d)", today.Year()),
		Description:     "Metadata and identifiers used in FAO datasets",
		SourceName:      sourceName,
		URL:             homepageURL,
		PublicationYear: today.Year(),
		PublicationDate: version,
		DateAccessed:    version,
		Version:         version,
		SourceDataURL:   a.cfg.APIBaseURL,
		FileExtension:   "json",
		LicenseName:     licenseName,
		LicenseURL:      licenseURL,
		AccessNotes:     "Aggregated snapshot of the FAO definitions API, one document per enabled dataset code and reference category.",
	}
}

// FetchAuxiliary captures, for every enabled dataset code, each reference
// category exposed by the FAO definitions API, and writes the combined
// document to w. Not every category exists for every code; a failed
// (code, category) pair is logged and omitted rather than aborting the
// aggregation.
func (a *Adapter) FetchAuxiliary(ctx context.Context, w io.Writer) error {
	combined := make(map[string]map[string]json.RawMessage, len(a.cfg.Codes))
	for _, code := range a.cfg.Codes {
		a.logger.Info().Str("code", code).Msg("fetching additional metadata")
		perCode := make(map[string]json.RawMessage)
		for _, category := range a.cfg.Categories {
			url := fmt.Sprintf("%s/%s/%s?output_type=objects", a.cfg.APIBaseURL, code, category)
			var doc json.RawMessage
			if err := a.client.GetJSON(ctx, url, &doc); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				a.logger.Debug().Str("code", code).Str("category", category).Err(err).
					Msg("category unavailable; omitting from aggregate")
				continue
			}
			perCode[category] = doc
		}
		combined[code] = perCode
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(combined); err != nil {
		return fmt.Errorf("faostat: encode additional metadata: %w", err)
	}
	return nil
}

// parseUpstreamDate parses FAO's update-date field. The bulk catalog uses
// ISO-8601, but older entries have shown free-text dates; those go through
// the general-purpose parser before giving up.
func parseUpstreamDate(field, value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, &catalog.ParseError{Field: field, Value: value, Err: fmt.Errorf("empty date")}
	}
	if t, err := time.Parse("2006-01-02", trimmed); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t, nil
	}
	parsed, err := dateparser.Parse(nil, trimmed)
	if err != nil {
		return time.Time{}, &catalog.ParseError{Field: field, Value: value, Err: err}
	}
	return parsed.Time, nil
}

func stringify(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case nil:
		return ""
	case float64:
		// JSON numbers decode as float64; catalog fields are integral.
		return fmt.Sprintf("%.0f", value)
	default:
		return fmt.Sprint(value)
	}
}
