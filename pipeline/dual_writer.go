// Package pipeline accumulates the records of a crawl chain and persists
// them as CSV and/or JSONL files.
package pipeline

import (
	"errors"
	"fmt"
	"os"

	"github.com/aluiziolira/go-scrape-tyres/models"
)

// DualWriter outputs to both CSV and JSON formats
type DualWriter struct {
	csvWriter  *CSVWriter
	jsonWriter *JSONWriter
}

// NewDualWriter creates a writer producing <stem>.csv and <stem>.jsonl in dir.
func NewDualWriter(dir string) *DualWriter {
	return &DualWriter{
		csvWriter:  NewCSVWriter(dir),
		jsonWriter: NewJSONWriter(dir),
	}
}

// Write writes entries in both formats. Both files are staged before either
// is renamed into place; if the second rename fails the first file is
// removed again, so a failed write never leaves a single format behind.
func (dw *DualWriter) Write(stem string, entries []*models.ResultEntry) ([]string, error) {
	csvData, err := encodeCSV(stem, entries)
	if err != nil {
		return nil, fmt.Errorf("CSV write failed: %w", err)
	}
	jsonData, err := encodeJSONL(stem, entries)
	if err != nil {
		return nil, fmt.Errorf("JSON write failed: %w", err)
	}

	csvPath, jsonPath := dw.csvWriter.Path(stem), dw.jsonWriter.Path(stem)
	csvTmp, err := stageFile(csvPath, csvData)
	if err != nil {
		return nil, fmt.Errorf("CSV write failed: %w", err)
	}
	jsonTmp, err := stageFile(jsonPath, jsonData)
	if err != nil {
		os.Remove(csvTmp)
		return nil, fmt.Errorf("JSON write failed: %w", err)
	}

	if err := commitFile(csvTmp, csvPath); err != nil {
		os.Remove(jsonTmp)
		return nil, fmt.Errorf("CSV write failed: %w", err)
	}
	if err := commitFile(jsonTmp, jsonPath); err != nil {
		os.Remove(csvPath)
		return nil, fmt.Errorf("JSON write failed: %w", err)
	}
	return []string{csvPath, jsonPath}, nil
}

// NewWriter builds the OutputWriter for a configured format.
func NewWriter(format, dir string) (OutputWriter, error) {
	switch format {
	case "csv", "":
		return NewCSVWriter(dir), nil
	case "json":
		return NewJSONWriter(dir), nil
	case "dual":
		return NewDualWriter(dir), nil
	default:
		return nil, errors.New("unsupported format: " + format)
	}
}
