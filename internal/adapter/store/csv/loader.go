// Package csv provides CSV-based loading of global variable color-scale defaults.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.ngs.io/ocean-wms/internal/domain"
)

var expectedHeaders = []string{"std_name", "units", "default_min", "default_max", "logscale"}

// LoadVariableDefaults reads variable defaults from a CSV file.
func LoadVariableDefaults(path string) ([]domain.VariableDefault, error) {
	//nolint:gosec // G304: path comes from configuration or the admin CLI.
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open variable defaults %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	return ReadVariableDefaults(file)
}

// ReadVariableDefaults parses variable defaults. Empty min, max or logscale cells are unset.
func ReadVariableDefaults(r io.Reader) ([]domain.VariableDefault, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	// Read header.
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	// Validate header.
	if len(header) != len(expectedHeaders) {
		return nil, fmt.Errorf("invalid CSV header: expected %v, got %v", expectedHeaders, header)
	}
	for i, h := range header {
		if strings.TrimSpace(h) != expectedHeaders[i] {
			return nil, fmt.Errorf("invalid CSV header: expected column %d to be %s, got %s", i, expectedHeaders[i], h)
		}
	}

	defaults := make([]domain.VariableDefault, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		d := domain.VariableDefault{
			StdName: strings.TrimSpace(record[0]),
			Units:   strings.TrimSpace(record[1]),
		}
		if d.StdName == "" {
			return nil, fmt.Errorf("invalid CSV record %v: empty std_name", record)
		}
		if d.DefaultMin, err = optionalFloat(record[2]); err != nil {
			return nil, fmt.Errorf("invalid default_min for %s: %w", d.StdName, err)
		}
		if d.DefaultMax, err = optionalFloat(record[3]); err != nil {
			return nil, fmt.Errorf("invalid default_max for %s: %w", d.StdName, err)
		}
		if d.LogScale, err = optionalBool(record[4]); err != nil {
			return nil, fmt.Errorf("invalid logscale for %s: %w", d.StdName, err)
		}
		defaults = append(defaults, d)
	}
	return defaults, nil
}

func optionalFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func optionalBool(s string) (*bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
