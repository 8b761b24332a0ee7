package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const traceFile = "trace.jsonl"

// TraceEntry is one recorded step of one algorithm run, stored as a JSON line
// in the run's trace.jsonl
type TraceEntry struct {
	Problem   string `json:"problem"`
	Algorithm string `json:"algorithm"`
	Trial     int    `json:"trial,omitempty"`
	Iteration int    `json:"iteration"`

	// Value is the step value reported by the algorithm
	Value float64 `json:"value"`

	Timestamp time.Time `json:"timestamp"`
}

func tracePath(baseDir, id string) (string, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	return filepath.Join(runDir(baseDir, id), traceFile), nil
}

// TraceWriter appends entries to a run's trace. Writes are buffered until
// Flush or Close; it is safe for concurrent use.
type TraceWriter struct {
	mu      sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	enc     *json.Encoder
	path    string
	entries int
}

// NewTraceWriter opens <baseDir>/runs/<id>/trace.jsonl, creating the run
// directory. With append set, existing entries are kept.
func NewTraceWriter(baseDir, id string, append bool) (*TraceWriter, error) {
	path, err := tracePath(baseDir, id)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	buf := bufio.NewWriterSize(file, 64*1024)
	return &TraceWriter{
		file: file,
		buf:  buf,
		enc:  json.NewEncoder(buf),
		path: path,
	}, nil
}

// Write buffers one entry
func (tw *TraceWriter) Write(entry TraceEntry) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	// Encode terminates every entry with a newline
	if err := tw.enc.Encode(entry); err != nil {
		return fmt.Errorf("failed to write trace entry: %w", err)
	}
	tw.entries++
	return nil
}

// Entries returns the number of entries written by this writer
func (tw *TraceWriter) Entries() int {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.entries
}

// Flush writes buffered entries through to disk
func (tw *TraceWriter) Flush() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush trace writer: %w", err)
	}
	if err := tw.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync trace file: %w", err)
	}
	return nil
}

// Close flushes and closes the trace file
func (tw *TraceWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	flushErr := tw.buf.Flush()
	closeErr := tw.file.Close()
	if flushErr != nil {
		return fmt.Errorf("failed to flush on close: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close trace file: %w", closeErr)
	}
	return nil
}

// Path returns the trace file location
func (tw *TraceWriter) Path() string {
	return tw.path
}

// TraceReader decodes a run's trace one entry at a time
type TraceReader struct {
	file *os.File
	dec  *json.Decoder
	read int
}

// NewTraceReader opens the trace of run id. A run without a trace yields a
// NotFoundError.
func NewTraceReader(baseDir, id string) (*TraceReader, error) {
	path, err := tracePath(baseDir, id)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &NotFoundError{ID: id}
	} else if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	return &TraceReader{file: file, dec: json.NewDecoder(bufio.NewReader(file))}, nil
}

// Read returns the next entry, or io.EOF after the last one
func (tr *TraceReader) Read() (*TraceEntry, error) {
	var entry TraceEntry
	if err := tr.dec.Decode(&entry); err == io.EOF {
		return nil, io.EOF
	} else if err != nil {
		return nil, fmt.Errorf("trace entry %d: %w", tr.read+1, err)
	}
	tr.read++
	return &entry, nil
}

// ReadAll returns every remaining entry
func (tr *TraceReader) ReadAll() ([]TraceEntry, error) {
	var entries []TraceEntry
	for {
		entry, err := tr.Read()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
}

// Close releases the trace file
func (tr *TraceReader) Close() error {
	if err := tr.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}

// ReadTrace loads the whole trace of run id
func ReadTrace(baseDir, id string) ([]TraceEntry, error) {
	tr, err := NewTraceReader(baseDir, id)
	if err != nil {
		return nil, err
	}
	defer tr.Close()
	return tr.ReadAll()
}

// Filter keeps the entries of one problem and algorithm. Empty arguments match
// everything.
func Filter(entries []TraceEntry, problem, algorithm string) []TraceEntry {
	var out []TraceEntry
	for _, e := range entries {
		if (problem == "" || e.Problem == problem) && (algorithm == "" || e.Algorithm == algorithm) {
			out = append(out, e)
		}
	}
	return out
}

// DeleteTrace removes the trace of run id, and the run directory when nothing
// else is left in it. A missing trace is not an error.
func DeleteTrace(baseDir, id string) error {
	path, err := tracePath(baseDir, id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete trace file: %w", err)
	}

	dir := filepath.Dir(path)
	entries, err := os.ReadDir(dir)
	if err == nil && len(entries) == 0 {
		if err := os.Remove(dir); err != nil {
			return fmt.Errorf("failed to delete run directory: %w", err)
		}
	}
	return nil
}
