// Package report writes the run report for downstream tooling and the operator summary.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/logo-scraper/pkg/models"
	"github.com/Sriram-PR/logo-scraper/pkg/utils"
)

// Format is the serialization chosen from the report path extension
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor returns YAML for .yaml/.yml paths and JSON otherwise
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Marshal encodes the report in the given format
func Marshal(r *models.RunReport, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(r)
	default:
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
}

// Write serializes the report to path, replacing any previous report atomically
func Write(path string, r *models.RunReport) error {
	data, err := Marshal(r, FormatFor(path))
	if err != nil {
		return fmt.Errorf("failed to marshal run report: %w", err)
	}
	return writeAtomic(path, data)
}

// Read loads a report written by Write
func Read(path string) (*models.RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading run report '%s': %w", utils.ErrFilesystem, path, err)
	}
	var r models.RunReport
	switch FormatFor(path) {
	case FormatYAML:
		err = yaml.Unmarshal(data, &r)
	default:
		err = json.Unmarshal(data, &r)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decoding run report '%s': %w", utils.ErrParsing, path, err)
	}
	return &r, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: creating directory '%s': %w", utils.ErrFilesystem, dir, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("%w: writing '%s': %w", utils.ErrFilesystem, tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: renaming '%s': %w", utils.ErrFilesystem, tmp, err)
	}
	return nil
}
