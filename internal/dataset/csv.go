package dataset

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// fieldSeparator splits on any run of spaces and commas
var fieldSeparator = regexp.MustCompile(`[ ,]+`)

// ParseError reports a malformed row
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Load reads a numeric data set from path. Every non-blank line is one row;
// fields are separated by spaces and/or commas and the last field is the label.
func Load(path string) (*DataSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data set: %w", err)
	}
	defer f.Close()

	set, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	slog.Debug("Loaded data set", "path", path, "rows", set.Len(), "features", set.FeatureCount())
	return set, nil
}

// Read parses a data set from r
func Read(r io.Reader) (*DataSet, error) {
	scanner := bufio.NewScanner(r)
	set := &DataSet{}
	width := -1
	line := 0

	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		fields := fieldSeparator.Split(text, -1)
		if len(fields) < 2 {
			return nil, &ParseError{Line: line, Reason: "need at least one feature and a label"}
		}
		if width >= 0 && len(fields) != width {
			return nil, &ParseError{Line: line, Reason: fmt.Sprintf("expected %d fields, got %d", width, len(fields))}
		}
		width = len(fields)

		values := make([]float64, len(fields))
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, &ParseError{Line: line, Reason: fmt.Sprintf("field %d: %v", i+1, err)}
			}
			values[i] = v
		}

		set.Instances = append(set.Instances, Instance{
			Features: values[:len(values)-1],
			Label:    values[len(values)-1],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan data set: %w", err)
	}
	return set, nil
}
