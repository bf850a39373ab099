// Package csvin reads the delimited input files a conversion runs over.
//
// A Reader yields rows as ordered (column, raw) cells. Column names are
// sanitized into safe identifiers so they can be referenced from
// expressions, and raw values are trimmed. Metadata rows, whose first cell
// starts with '#', may appear before the header and between the header and
// the first data row; "#name,value" binds the global name.
package csvin

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// MetadataMarker starts a metadata row.
const MetadataMarker = "#"

// Cell is one column value of a row.
type Cell struct {
	Column string
	Raw    string
}

// Row is one data record.
type Row struct {
	// Number is the 1-based data row number, excluding the header and
	// metadata rows.
	Number int
	// Line is the line in the file where the record starts.
	Line  int
	Cells []Cell
}

// Get returns the raw value of column.
func (r *Row) Get(column string) (string, bool) {
	for _, c := range r.Cells {
		if c.Column == column {
			return c.Raw, true
		}
	}
	return "", false
}

// Map returns the row as a column to raw value map.
func (r *Row) Map() map[string]string {
	m := make(map[string]string, len(r.Cells))
	for _, c := range r.Cells {
		m[c.Column] = c.Raw
	}
	return m
}

// Metadata is a "#name,value" row.
type Metadata struct {
	Name  string
	Value string
}

// Reader reads rows from a delimited file.
type Reader struct {
	csv       *csv.Reader
	closer    io.Closer
	rawHeader []string
	header    []string
	metadata  []Metadata
	peeked    *Row
	peekErr   error
	rows      int
}

// Option configures a Reader.
type Option func(*csv.Reader)

// WithComma sets the field delimiter.
func WithComma(r rune) Option {
	return func(c *csv.Reader) { c.Comma = r }
}

// Open opens the file at path. Close the reader when done.
func Open(path string, opts ...Option) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f, opts...)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// NewReader reads the header, and any metadata rows around it, from src.
// A leading UTF-8 byte order mark is dropped.
func NewReader(src io.Reader, opts ...Option) (*Reader, error) {
	decoded := transform.NewReader(src, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	c := csv.NewReader(decoded)
	c.FieldsPerRecord = -1
	c.TrimLeadingSpace = true
	for _, opt := range opts {
		opt(c)
	}

	r := &Reader{csv: c}
	for {
		rec, err := c.Read()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		if err != nil {
			return nil, err
		}
		if isMetadata(rec) {
			r.addMetadata(rec)
			continue
		}
		r.rawHeader = rec
		break
	}

	r.header = make([]string, len(r.rawHeader))
	seen := make(map[string]int)
	for i, h := range r.rawHeader {
		name := SafeName(h)
		if name == "" {
			name = fmt.Sprintf("col%d", i+1)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			seen[name] = 1
		}
		r.header[i] = name
	}

	// Collect metadata rows between the header and the data; read errors
	// surface from Next.
	_, _ = r.Peek()
	return r, nil
}

// Header returns the sanitized column names.
func (r *Reader) Header() []string { return append([]string(nil), r.header...) }

// RawHeader returns the column names as written in the file.
func (r *Reader) RawHeader() []string { return append([]string(nil), r.rawHeader...) }

// Metadata returns the metadata rows read so far.
func (r *Reader) Metadata() []Metadata { return append([]Metadata(nil), r.metadata...) }

// Peek returns the next data row without consuming it, or io.EOF.
// Metadata rows met while looking ahead are collected and skipped.
func (r *Reader) Peek() (*Row, error) {
	if r.peeked != nil || r.peekErr != nil {
		return r.peeked, r.peekErr
	}
	for {
		rec, err := r.csv.Read()
		if err != nil {
			r.peekErr = err
			return nil, err
		}
		if r.rows == 0 && isMetadata(rec) {
			r.addMetadata(rec)
			continue
		}
		if blank(rec) {
			continue
		}
		line, _ := r.csv.FieldPos(0)
		r.rows++
		r.peeked = r.toRow(rec, line)
		return r.peeked, nil
	}
}

// Next returns the next data row, or io.EOF at the end of the file.
func (r *Reader) Next() (*Row, error) {
	row, err := r.Peek()
	if err != nil {
		return nil, err
	}
	r.peeked = nil
	return row, nil
}

// Close closes the underlying file when the reader was opened with Open.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func (r *Reader) toRow(rec []string, line int) *Row {
	row := &Row{Number: r.rows, Line: line, Cells: make([]Cell, 0, len(r.header))}
	for i, col := range r.header {
		raw := ""
		if i < len(rec) {
			raw = strings.TrimSpace(rec[i])
		}
		row.Cells = append(row.Cells, Cell{Column: col, Raw: raw})
	}
	return row
}

func (r *Reader) addMetadata(rec []string) {
	name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rec[0]), MetadataMarker))
	if name == "" {
		return
	}
	md := Metadata{Name: name}
	if len(rec) > 1 {
		md.Value = strings.TrimSpace(rec[1])
	}
	r.metadata = append(r.metadata, md)
}

func isMetadata(rec []string) bool {
	return len(rec) > 0 && strings.HasPrefix(strings.TrimSpace(rec[0]), MetadataMarker)
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

var (
	nonWord      = regexp.MustCompile(`[^\p{L}\p{N}_]+`)
	edgeUnderbar = regexp.MustCompile(`^_+|_+$`)
)

// SafeName turns a column heading into an identifier: runs of characters
// other than letters, digits and '_' become a single '_', leading and
// trailing '_' are dropped, and a leading digit gets a '_' prefix.
func SafeName(s string) string {
	s = nonWord.ReplaceAllString(strings.TrimSpace(s), "_")
	s = edgeUnderbar.ReplaceAllString(s, "")
	if s != "" && s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}
	return s
}
