package faostat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datakeep/harvester/internal/catalog"
	"github.com/datakeep/harvester/internal/fetch"
	"github.com/datakeep/harvester/internal/source"
)

func newTestClient() *fetch.Client {
	return fetch.NewClient(5*time.Second, 0)
}

func TestShortNameIsPureAndDeterministic(t *testing.T) {
	assert.Equal(t, "faostat_qcl", ShortName("QCL"))
	assert.Equal(t, ShortName("qcl"), ShortName("QCL"))
	assert.Equal(t, ShortName("ei"), ShortName("ei"))
}

func TestListDescriptors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Datasets":{"Dataset":[
			{"DatasetCode":"QCL","DatasetName":"Crops and livestock products","DateUpdate":"2021-06-01","FileLocation":"https://example.org/qcl.zip","FileRows":123},
			{"DatasetCode":"EI","DatasetName":"Emissions intensities","DateUpdate":"2021-03-10","FileLocation":"https://example.org/ei.zip"}
		]}}`))
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultIngestConfig()
	cfg.CatalogURL = srv.URL
	adapter := New(newTestClient(), cfg, zerolog.Nop())

	descriptors, err := adapter.ListDescriptors(context.Background())
	require.NoError(t, err)
	require.Len(t, descriptors, 2)
	assert.Equal(t, "qcl", descriptors[0].Code)
	assert.Equal(t, "Crops and livestock products", descriptors[0].Fields["DatasetName"])
	assert.Equal(t, "123", descriptors[0].Fields["FileRows"])
	assert.Equal(t, "ei", descriptors[1].Code)
}

func descriptorFor(location string) source.Descriptor {
	return source.Descriptor{
		Code: "qcl",
		Fields: map[string]string{
			"DatasetCode":        "QCL",
			"DatasetName":        "Crops and livestock products",
			"DatasetDescription": "Production statistics",
			"DateUpdate":         "2021-06-01",
			"FileLocation":       location,
		},
	}
}

func TestBuildPopulatesRecordAndProbesModification(t *testing.T) {
	var probes int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		probes++
		w.Header().Set("Last-Modified", "Tue, 01 Jun 2021 10:30:00 GMT")
	}))
	t.Cleanup(srv.Close)

	adapter := New(newTestClient(), DefaultIngestConfig(), zerolog.Nop())
	ds, err := adapter.Build(context.Background(), descriptorFor(srv.URL+"/qcl.zip"), "2021-06-02")
	require.NoError(t, err)

	assert.Equal(t, 1, probes)
	assert.Equal(t, "faostat", ds.Record.Namespace)
	assert.Equal(t, "faostat_qcl", ds.Record.ShortName)
	assert.Equal(t, "Crops and livestock products - FAO (2021)", ds.Record.Name)
	assert.Equal(t, "2021-06-01", ds.Record.PublicationDate)
	assert.Equal(t, 2021, ds.Record.PublicationYear)
	assert.Equal(t, "2021-06-02", ds.Record.DateAccessed)
	assert.Equal(t, "2021-06-02", ds.Record.Version)
	assert.Equal(t, srv.URL+"/qcl.zip", ds.Record.SourceDataURL)
	assert.Equal(t, "zip", ds.Record.FileExtension)
	require.NoError(t, ds.Record.Validate())

	// The probe result feeds the freshness check, not the record.
	assert.Equal(t, time.Date(2021, 6, 1, 10, 30, 0, 0, time.UTC), ds.Modified.UTC())
}

func TestBuildMissingFileLocation(t *testing.T) {
	adapter := New(newTestClient(), DefaultIngestConfig(), zerolog.Nop())

	d := descriptorFor("")
	_, err := adapter.Build(context.Background(), d, "2021-06-02")
	require.ErrorIs(t, err, catalog.ErrMissingSourceLocation)
}

func TestBuildUnparseableDate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Last-Modified", "Tue, 01 Jun 2021 10:30:00 GMT")
	}))
	t.Cleanup(srv.Close)

	adapter := New(newTestClient(), DefaultIngestConfig(), zerolog.Nop())
	d := descriptorFor(srv.URL + "/qcl.zip")
	d.Fields["DateUpdate"] = "%%%not-a-date%%%"

	_, err := adapter.Build(context.Background(), d, "2021-06-02")
	var parseErr *catalog.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "DateUpdate", parseErr.Field)
}

func TestParseUpstreamDateFormats(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"2021-06-01", "2021-06-01"},
		{"2021-06-01T00:00:00Z", "2021-06-01"},
		{"June 1, 2021", "2021-06-01"},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := parseUpstreamDate("DateUpdate", tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Format(catalog.DateLayout))
		})
	}

	_, err := parseUpstreamDate("DateUpdate", "")
	assert.Error(t, err)
}

func TestFetchAuxiliaryToleratesMissingCategories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only the "area" category exists for any code.
		if strings.Contains(r.URL.Path, "/area") {
			_, _ = w.Write([]byte(`{"data":[{"code":"5000","label":"World"}]}`))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultIngestConfig()
	cfg.APIBaseURL = srv.URL
	cfg.Codes = []string{"qcl", "ei"}
	cfg.Categories = []string{"area", "unit"}
	adapter := New(newTestClient(), cfg, zerolog.Nop())

	var buf strings.Builder
	require.NoError(t, adapter.FetchAuxiliary(context.Background(), &buf))

	var combined map[string]map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(buf.String()), &combined))
	require.Len(t, combined, 2)
	assert.Contains(t, combined["qcl"], "area")
	assert.NotContains(t, combined["qcl"], "unit")
	assert.Contains(t, combined["ei"], "area")
}

func TestAuxiliaryRecord(t *testing.T) {
	adapter := New(newTestClient(), DefaultIngestConfig(), zerolog.Nop())
	rec := adapter.AuxiliaryRecord("2021-06-02")
	assert.Equal(t, "faostat_metadata", rec.ShortName)
	assert.Equal(t, "json", rec.FileExtension)
	assert.Equal(t, "2021-06-02", rec.Version)
	assert.Equal(t, 2021, rec.PublicationYear)
	require.NoError(t, rec.Validate())
}
