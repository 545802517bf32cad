package pgindex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datakeep/harvester/internal/catalog"
)

func testRecord(shortName, version string) catalog.Record {
	return catalog.Record{
		Namespace:     "faostat",
		ShortName:     shortName,
		Name:          shortName + " - FAO (2021)",
		SourceName:    "FAO",
		DateAccessed:  version,
		Version:       version,
		SourceDataURL: "https://example.org/" + shortName + ".zip",
		FileExtension: "zip",
	}
}

func TestWriteAndListRecords(t *testing.T) {
	ix := setupIndex(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Insert out of order; listing must come back sorted by (version,
	// short_name).
	require.NoError(t, ix.WriteRecord(ctx, testRecord("faostat_qcl", "2021-06-02")))
	require.NoError(t, ix.WriteRecord(ctx, testRecord("faostat_ei", "2021-06-02")))
	require.NoError(t, ix.WriteRecord(ctx, testRecord("faostat_qcl", "2021-01-15")))

	records, skipped, err := ix.ListRecords(ctx, "faostat")
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, records, 3)
	assert.Equal(t, "2021-01-15", records[0].Version)
	assert.Equal(t, "faostat_ei", records[1].ShortName)
	assert.Equal(t, "faostat_qcl", records[2].ShortName)
	assert.Equal(t, "https://example.org/faostat_qcl.zip", records[2].SourceDataURL)
}

func TestListRecordsMissingNamespaceIsEmpty(t *testing.T) {
	ix := setupIndex(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	records, skipped, err := ix.ListRecords(ctx, "nothing-here")
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, skipped)
}

func TestListRecordsSkipsAndCountsUndecodableDocuments(t *testing.T) {
	ix := setupIndex(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, ix.WriteRecord(ctx, testRecord("faostat_qcl", "2021-06-02")))

	// Valid JSONB that no longer matches the record shape.
	_, err := sharedPool.Exec(ctx, `
INSERT INTO snapshot_records (namespace, short_name, version, record)
VALUES ('faostat', 'faostat_broken', '2021-06-02', '{"publication_year": "not a number"}')`)
	require.NoError(t, err)

	records, skipped, err := ix.ListRecords(ctx, "faostat")
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, records, 1)
	assert.Equal(t, "faostat_qcl", records[0].ShortName)
}

func TestDuplicateInsertRejected(t *testing.T) {
	ix := setupIndex(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	original := testRecord("faostat_qcl", "2021-06-02")
	require.NoError(t, ix.WriteRecord(ctx, original))

	overwrite := original
	overwrite.SourceDataURL = "https://example.org/other.zip"
	err := ix.WriteRecord(ctx, overwrite)

	var dup *catalog.DuplicateVersionError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, original.IndexKey(), dup.Key)

	// The stored document is untouched.
	records, _, err := ix.ListRecords(ctx, "faostat")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, original.SourceDataURL, records[0].SourceDataURL)
}

func TestHasRecord(t *testing.T) {
	ix := setupIndex(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rec := testRecord("faostat_qcl", "2021-06-02")
	require.NoError(t, ix.WriteRecord(ctx, rec))

	exists, err := ix.HasRecord(ctx, rec.IndexKey())
	require.NoError(t, err)
	assert.True(t, exists)

	missing := rec.IndexKey()
	missing.Version = "2020-01-01"
	exists, err = ix.HasRecord(ctx, missing)
	require.NoError(t, err)
	assert.False(t, exists)
}
