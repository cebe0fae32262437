package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Quintui/car-details-web-scraper/models"
	"github.com/Quintui/car-details-web-scraper/parser"
)

// CSVWriter appends merged records to the fixed-column import file. The header
// is written once per file, tracked by run-scoped state: a fresh run truncates
// the file, a resumed run re-derives the flag from the existing size.
type CSVWriter struct {
	file          *os.File
	writer        *csv.Writer
	headerWritten bool
	mu            sync.Mutex
}

// NewCSVWriter opens (or, when resume is set, reopens for append) the output.
func NewCSVWriter(filename string, resume bool) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if resume {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(filename, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}

	headerWritten := false
	if resume {
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("stat csv file: %w", err)
		}
		headerWritten = info.Size() > 0
	}

	writer := csv.NewWriter(f)
	writer.UseCRLF = true

	return &CSVWriter{
		file:          f,
		writer:        writer,
		headerWritten: headerWritten,
	}, nil
}

// Write appends one batch of records. An empty batch leaves the file alone.
func (cw *CSVWriter) Write(records []*models.MergedProduct) error {
	if len(records) == 0 {
		return nil
	}

	cw.mu.Lock()
	defer cw.mu.Unlock()

	if !cw.headerWritten {
		if err := cw.writer.Write(models.CatalogColumns); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		cw.headerWritten = true
	}
	for _, record := range records {
		if err := cw.writer.Write(parser.BuildRow(record)); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content besides the header.
func (cw *CSVWriter) Validate() error {
	info, err := cw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// JSONWriter writes newline-delimited JSON records.
type JSONWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string, resume bool) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if resume {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(filename, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	return &JSONWriter{
		file:    f,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}, nil
}

// Write appends records in JSONL format.
func (jw *JSONWriter) Write(records []*models.MergedProduct) error {
	if len(records) == 0 {
		return nil
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, record := range records {
		if err := jw.encoder.Encode(record); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}
	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	info, err := jw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json file is empty")
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
