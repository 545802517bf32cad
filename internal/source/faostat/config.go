package faostat

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// IngestConfig selects which FAO bulk datasets are ingested and which
// reference categories feed the auxiliary metadata artifact. Codes not on
// the allow-list are silently skipped during a run.
type IngestConfig struct {
	CatalogURL string   `yaml:"catalog_url"`
	APIBaseURL string   `yaml:"api_base_url"`
	Codes      []string `yaml:"codes"`
	Categories []string `yaml:"categories"`
}

// DefaultIngestConfig returns the built-in allow-list of FAO bulk dataset
// codes and the reference categories captured per code.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		CatalogURL: catalogURL,
		APIBaseURL: apiBaseURL,
		Codes: []string{
			// ASTI R&D indicators.
			"ae", "af",
			// Agri-environmental indicators.
			"ef", "ei", "emn", "ep", "lc",
			// Food balances, current and old methodology.
			"fbs", "fbsh",
			// Forestry production and trade.
			"fo",
			// Food security indicators.
			"fs",
			// Employment indicators.
			"oe",
			// Production.
			"qa", "qc", "qcl", "qd", "qi", "ql", "qp", "qv",
			// Inputs: fertilizers, land use, pesticides.
			"rfb", "rfn", "rl", "rp", "rt",
		},
		Categories: []string{"itemgroup", "itemsgroup", "area", "element", "unit", "flag"},
	}
}

// LoadIngestConfig reads an IngestConfig from a YAML file, filling omitted
// fields from the defaults.
func LoadIngestConfig(path string) (IngestConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return IngestConfig{}, fmt.Errorf("read ingest config: %w", err)
	}
	cfg := DefaultIngestConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return IngestConfig{}, fmt.Errorf("parse ingest config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return IngestConfig{}, fmt.Errorf("ingest config %s: %w", path, err)
	}
	return cfg, nil
}

func (c IngestConfig) Validate() error {
	var errs []string
	if strings.TrimSpace(c.CatalogURL) == "" {
		errs = append(errs, "catalog_url: required")
	}
	if strings.TrimSpace(c.APIBaseURL) == "" {
		errs = append(errs, "api_base_url: required")
	}
	if len(c.Codes) == 0 {
		errs = append(errs, "codes: at least one dataset code is required")
	}
	for _, code := range c.Codes {
		if code != strings.ToLower(strings.TrimSpace(code)) || code == "" {
			errs = append(errs, fmt.Sprintf("codes: must be lower-case and non-empty, got %q", code))
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Allowed reports whether code is on the ingest allow-list.
func (c IngestConfig) Allowed(code string) bool {
	lowered := strings.ToLower(code)
	for _, candidate := range c.Codes {
		if candidate == lowered {
			return true
		}
	}
	return false
}
