// Package source implements the IO layer of the compiler: newline-delimited
// JSON streams for large collections (taxa, rules, seeds), whole-document
// TOML registries (parts, transforms, families, categories, buckets),
// content hashing, and atomic file publication.
package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Record pairs a decoded NDJSON value with its one-based source line, so
// validators can point findings at the exact offending line.
type Record[T any] struct {
	Line  int
	Value T
}

// DecodeLines decodes one JSON object per line from r. Blank lines are
// skipped. Unknown fields are a schema error, per the fail-closed source
// contract: malformed input is never auto-repaired.
func DecodeLines[T any](r io.Reader) ([]Record[T], error) {
	var out []Record[T]

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		var v T
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		// Trailing garbage after the object is also malformed input.
		if dec.More() {
			return nil, fmt.Errorf("line %d: trailing data after record", line)
		}
		out = append(out, Record[T]{Line: line, Value: v})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return out, nil
}

// ReadNDJSON reads and decodes an NDJSON file.
func ReadNDJSON[T any](path string) ([]Record[T], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	records, err := DecodeLines[T](f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// EncodeLines writes values as one compact JSON object per line.
// Struct field order is preserved, so output bytes are deterministic for a
// given input order.
func EncodeLines[T any](w io.Writer, values []T) error {
	bw := bufio.NewWriter(w)
	for i, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if _, err := bw.Write(data); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteNDJSONAtomic marshals values to NDJSON and publishes the file
// atomically.
func WriteNDJSONAtomic[T any](path string, values []T) error {
	var buf strings.Builder
	if err := EncodeLines(&buf, values); err != nil {
		return err
	}
	return WriteFileAtomic(path, []byte(buf.String()), 0o644)
}

// CountLines returns the number of non-blank lines in the file at path.
// Stage contracts use this for minimum record count checks without decoding.
func CountLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) > 0 {
			n++
		}
	}
	return n, scanner.Err()
}
