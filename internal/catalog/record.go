package catalog

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the calendar-date format used for version tags,
// date_accessed, and publication_date fields throughout the index.
const DateLayout = "2006-01-02"

// Record is the canonical, source-agnostic description of one snapshot.
// One logical dataset is identified by (namespace, short_name); each capture
// of it adds a new Record under a new version. The index is append-only with
// respect to versions.
type Record struct {
	// Identity.
	Namespace string `json:"namespace" validate:"required"`
	ShortName string `json:"short_name" validate:"required"`

	// Human-facing description.
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
	SourceName  string `json:"source_name" validate:"required"`
	URL         string `json:"url,omitempty"`

	// Provenance dates. PublicationDate is the upstream-declared semantic
	// date; DateAccessed is the date this run executed and always equals
	// Version.
	PublicationYear int    `json:"publication_year,omitempty"`
	PublicationDate string `json:"publication_date,omitempty"`
	DateAccessed    string `json:"date_accessed" validate:"required"`
	Version         string `json:"version" validate:"required"`

	// How to get the payload. SourceDataURL is the upstream location and the
	// join key for freshness comparison; DataURL is our own remote copy,
	// filled in at commit time.
	SourceDataURL string `json:"source_data_url" validate:"required"`
	DataURL       string `json:"data_url,omitempty"`
	FileExtension string `json:"file_extension" validate:"required"`
	MD5           string `json:"md5,omitempty"`

	// Licensing and notes, copied through verbatim.
	LicenseName string `json:"license_name,omitempty"`
	LicenseURL  string `json:"license_url,omitempty"`
	AccessNotes string `json:"access_notes,omitempty"`
}

// RemotePath returns the object-storage key for this record's payload:
// <namespace>/<version>/<short_name>.<ext>.
func (r Record) RemotePath() string {
	return fmt.Sprintf("%s/%s/%s.%s", r.Namespace, r.Version, r.ShortName, r.FileExtension)
}

// IndexKey identifies one snapshot within the index.
type IndexKey struct {
	Namespace string
	ShortName string
	Version   string
}

func (k IndexKey) String() string {
	return fmt.Sprintf("%s/%s@%s", k.Namespace, k.ShortName, k.Version)
}

// IndexKey returns the (namespace, short_name, version) triple for this record.
func (r Record) IndexKey() IndexKey {
	return IndexKey{Namespace: r.Namespace, ShortName: r.ShortName, Version: r.Version}
}

var validate = validator.New()

// Validate checks that every required field is present. It does not validate
// field contents beyond presence.
func (r Record) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("record %s/%s: %w", r.Namespace, r.ShortName, err)
	}
	return nil
}

// VersionForDate returns the version tag for a run executing on the given
// date. Tags sort and compare as calendar dates.
func VersionForDate(t time.Time) string {
	return t.Format(DateLayout)
}
