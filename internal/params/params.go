// Package params reads and compares workflow parameter files.
//
// Parameter files are owned by the external workflow tool; this package
// treats them as opaque YAML plus two narrow capabilities: key lookup
// (to confirm a par edit landed) and canonical comparison (to decide
// fixture equivalence without tripping on cosmetic serializer drift).
package params

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// File is a decoded parameter file.
type File struct {
	values map[string]any
}

// Load reads and decodes a parameter file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading parameter file: %w", err)
	}
	return Parse(data)
}

// Parse decodes parameter YAML. A top-level mapping is required; the
// workflow tool always writes one.
func Parse(data []byte) (*File, error) {
	values := map[string]any{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decoding parameter file: %w", err)
	}
	return &File{values: values}, nil
}

// Get returns the value of a top-level parameter.
func (f *File) Get(key string) (any, bool) {
	v, ok := f.values[key]
	return v, ok
}

// Keys returns all top-level parameter names, sorted.
func (f *File) Keys() []string {
	keys := make([]string, 0, len(f.values))
	for k := range f.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of top-level parameters.
func (f *File) Len() int { return len(f.values) }

// Canonical produces the comparison form of a parameter file:
//
//   - line endings normalized to LF
//   - Unicode NFC normalization
//   - full-line comments dropped
//   - trailing whitespace trimmed per line
//   - trailing blank lines dropped, single final newline
//
// Two regenerations of the same fixture by the same tool version must
// have equal canonical forms even if the tool's header comments or
// whitespace shift between releases of its YAML serializer.
func Canonical(data []byte) []byte {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	data = norm.NFC.Bytes(data)

	var out [][]byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		trimmed := bytes.TrimRight(line, " \t")
		if isComment(trimmed) {
			continue
		}
		out = append(out, trimmed)
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return nil
	}
	return append(bytes.Join(out, []byte("\n")), '\n')
}

func isComment(line []byte) bool {
	stripped := bytes.TrimLeft(line, " \t")
	return len(stripped) > 0 && stripped[0] == '#'
}

// Equal reports canonical equality of two parameter files.
func Equal(a, b []byte) bool {
	return bytes.Equal(Canonical(a), Canonical(b))
}
