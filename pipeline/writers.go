package pipeline

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aluiziolira/go-scrape-tyres/models"
	"github.com/aluiziolira/go-scrape-tyres/parser"
)

// CSVHeader is the fixed column order of the CSV output.
var CSVHeader = []string{"manufacturer", "name", "frontPrice", "frontLink", "backPrice", "backLink", "setPrice", "reportLink"}

// CSVWriter writes <stem>.csv files into a directory.
type CSVWriter struct {
	dir string
}

// NewCSVWriter returns a writer rooted at dir ("" means the working directory).
func NewCSVWriter(dir string) *CSVWriter {
	return &CSVWriter{dir: dir}
}

// Path returns the file a stem is written to.
func (cw *CSVWriter) Path(stem string) string {
	return filepath.Join(cw.dir, stem+".csv")
}

// Write serialises entries with a header row and replaces the target file.
func (cw *CSVWriter) Write(stem string, entries []*models.ResultEntry) ([]string, error) {
	data, err := encodeCSV(stem, entries)
	if err != nil {
		return nil, err
	}
	path := cw.Path(stem)
	if err := writeFileAtomic(path, data); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

func encodeCSV(stem string, entries []*models.ResultEntry) ([]byte, error) {
	if len(entries) == 0 {
		return nil, models.Errorf(models.KindPersistence, "", "no records for %s", stem)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(CSVHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, entry := range entries {
		record := []string{
			entry.Manufacturer,
			entry.Name,
			parser.FormatPrice(entry.FrontPrice),
			entry.FrontLink,
			parser.FormatPrice(entry.BackPrice),
			entry.BackLink,
			parser.FormatPrice(entry.SetPrice),
			entry.ReportLink,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv records: %w", err)
	}
	if buf.Len() == 0 {
		return nil, models.Errorf(models.KindPersistence, "", "csv serialisation for %s is empty", stem)
	}
	return buf.Bytes(), nil
}

// JSONWriter writes newline-delimited JSON records to <stem>.jsonl.
type JSONWriter struct {
	dir string
}

// NewJSONWriter returns a JSONL writer rooted at dir.
func NewJSONWriter(dir string) *JSONWriter {
	return &JSONWriter{dir: dir}
}

// Path returns the file a stem is written to.
func (jw *JSONWriter) Path(stem string) string {
	return filepath.Join(jw.dir, stem+".jsonl")
}

// Write encodes one record per line and replaces the target file.
func (jw *JSONWriter) Write(stem string, entries []*models.ResultEntry) ([]string, error) {
	data, err := encodeJSONL(stem, entries)
	if err != nil {
		return nil, err
	}
	path := jw.Path(stem)
	if err := writeFileAtomic(path, data); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

func encodeJSONL(stem string, entries []*models.ResultEntry) ([]byte, error) {
	if len(entries) == 0 {
		return nil, models.Errorf(models.KindPersistence, "", "no records for %s", stem)
	}

	var buf bytes.Buffer
	buffer := bufio.NewWriter(&buf)
	encoder := json.NewEncoder(buffer)
	for _, entry := range entries {
		if err := encoder.Encode(entry); err != nil {
			return nil, fmt.Errorf("encode json record: %w", err)
		}
	}
	if err := buffer.Flush(); err != nil {
		return nil, fmt.Errorf("flush json writer: %w", err)
	}
	if buf.Len() == 0 {
		return nil, models.Errorf(models.KindPersistence, "", "json serialisation for %s is empty", stem)
	}
	return buf.Bytes(), nil
}

// writeFileAtomic writes data next to path and renames it into place so a
// reader never observes a half-written file.
func writeFileAtomic(path string, data []byte) error {
	tmpName, err := stageFile(path, data)
	if err != nil {
		return err
	}
	return commitFile(tmpName, path)
}

// stageFile writes data to a synced temp file in the directory of path and
// returns its name. The caller either commits or removes it.
func stageFile(path string, data []byte) (string, error) {
	if err := ensureDir(path); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("chmod %s: %w", path, err)
	}
	return tmpName, nil
}

func commitFile(tmpName, path string) error {
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
