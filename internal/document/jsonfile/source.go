// Package jsonfile serves collections from MongoDB export files.
//
// A collection named "products" is read from <dir>/products.jsonl (one
// document per line, as written by mongoexport) or, failing that, from
// <dir>/products.json (a root array, as written by mongoexport --jsonArray).
// Extended JSON wrappers ($oid, $date, $numberInt, $numberLong,
// $numberDouble) are unwrapped to plain values.
package jsonfile

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"recsys/internal/document"
)

// maxLineBytes bounds a single JSONL document.
const maxLineBytes = 16 << 20

// Source reads collections from a directory of export files.
type Source struct {
	Dir string
}

// New returns a Source rooted at dir. The directory must exist.
func New(dir string) (*Source, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("jsonfile: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("jsonfile: %s is not a directory", dir)
	}
	return &Source{Dir: dir}, nil
}

// Find opens the collection's export file and returns a streaming cursor.
// A collection without an export file yields an empty cursor.
func (s *Source) Find(_ context.Context, collection string, filter document.Filter, _ []document.FieldSpec) (document.Cursor, error) {
	for _, ext := range []string{".jsonl", ".json"} {
		path := filepath.Join(s.Dir, collection+ext)
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("jsonfile: open %s: %w", path, err)
		}

		if ext == ".jsonl" {
			sc := bufio.NewScanner(f)
			sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
			return &lineCursor{f: f, sc: sc, filter: filter}, nil
		}
		return newArrayCursor(f, filter)
	}
	return &emptyCursor{}, nil
}

// lineCursor decodes one document per non-blank line.
type lineCursor struct {
	f      *os.File
	sc     *bufio.Scanner
	filter document.Filter
	line   int
	doc    document.Doc
	err    error
}

func (c *lineCursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	for c.sc.Scan() {
		if err := ctx.Err(); err != nil {
			c.err = err
			return false
		}
		c.line++

		b := c.sc.Bytes()
		if len(trimSpace(b)) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()

		var raw map[string]any
		if err := dec.Decode(&raw); err != nil {
			c.err = fmt.Errorf("jsonfile: line %d: %w", c.line, err)
			return false
		}
		doc, ok := unwrapExtended(raw).(map[string]any)
		if !ok {
			c.err = fmt.Errorf("jsonfile: line %d: not a document", c.line)
			return false
		}
		if !document.Matches(doc, c.filter) {
			continue
		}
		c.doc = doc
		return true
	}
	if err := c.sc.Err(); err != nil {
		c.err = fmt.Errorf("jsonfile: scan: %w", err)
	}
	return false
}

func (c *lineCursor) Doc() document.Doc { return c.doc }
func (c *lineCursor) Err() error        { return c.err }
func (c *lineCursor) Close(context.Context) error {
	return c.f.Close()
}

// arrayCursor streams the elements of a root JSON array one at a time.
type arrayCursor struct {
	f      *os.File
	dec    *json.Decoder
	filter document.Filter
	n      int
	doc    document.Doc
	err    error
	done   bool
}

func newArrayCursor(f *os.File, filter document.Filter) (*arrayCursor, error) {
	dec := json.NewDecoder(f)
	dec.UseNumber()

	// Peek the first token so we can stream the array without buffering it.
	tok, err := dec.Token()
	if err != nil {
		_ = f.Close()
		if err == io.EOF {
			return &arrayCursor{done: true}, nil
		}
		return nil, fmt.Errorf("jsonfile: read first token: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		_ = f.Close()
		return nil, fmt.Errorf("jsonfile: %s: root must be an array, got %v", f.Name(), tok)
	}
	return &arrayCursor{f: f, dec: dec, filter: filter}, nil
}

func (c *arrayCursor) Next(ctx context.Context) bool {
	if c.done || c.err != nil {
		return false
	}
	for c.dec.More() {
		if err := ctx.Err(); err != nil {
			c.err = err
			return false
		}
		c.n++

		var raw any
		if err := c.dec.Decode(&raw); err != nil {
			c.err = fmt.Errorf("jsonfile: decode element %d: %w", c.n, err)
			return false
		}
		if raw == nil {
			continue
		}
		obj, ok := unwrapExtended(raw).(map[string]any)
		if !ok {
			c.err = fmt.Errorf("jsonfile: element %d not an object (got %T)", c.n, raw)
			return false
		}
		if !document.Matches(obj, c.filter) {
			continue
		}
		c.doc = obj
		return true
	}

	// Consume closing ']'
	if end, err := c.dec.Token(); err != nil {
		c.err = fmt.Errorf("jsonfile: read array end: %w", err)
	} else if end != json.Delim(']') {
		c.err = fmt.Errorf("jsonfile: expected array end ']', got %v", end)
	}
	c.done = true
	return false
}

func (c *arrayCursor) Doc() document.Doc { return c.doc }
func (c *arrayCursor) Err() error        { return c.err }
func (c *arrayCursor) Close(context.Context) error {
	if c.f == nil {
		return nil
	}
	return c.f.Close()
}

type emptyCursor struct{}

func (emptyCursor) Next(context.Context) bool   { return false }
func (emptyCursor) Doc() document.Doc           { return nil }
func (emptyCursor) Err() error                  { return nil }
func (emptyCursor) Close(context.Context) error { return nil }

func trimSpace(b []byte) []byte {
	i, j := 0, len(b)
	for i < j && (b[i] == ' ' || b[i] == '\t' || b[i] == '\r') {
		i++
	}
	for j > i && (b[j-1] == ' ' || b[j-1] == '\t' || b[j-1] == '\r') {
		j--
	}
	return b[i:j]
}
