package metwriter

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

type casDocument struct {
	XMLName xml.Name    `xml:"metadata"`
	KeyVals []casKeyVal `xml:"keyval"`
}

type casKeyVal struct {
	Key  string   `xml:"key"`
	Vals []string `xml:"val"`
}

// ReadUnit decodes a CAS metadata document into its keys, in document order.
func ReadUnit(r io.Reader) ([]KeyValue, error) {
	var doc casDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode cas metadata: %w", err)
	}
	keys := make([]KeyValue, len(doc.KeyVals))
	for i, kv := range doc.KeyVals {
		values := kv.Vals
		if values == nil {
			values = []string{}
		}
		keys[i] = KeyValue{Key: kv.Key, Values: values}
	}
	return keys, nil
}

// ReadUnitFile decodes the unit file at path.
func ReadUnitFile(path string) ([]KeyValue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadUnit(f)
}

// UnitPaths lists the existing unit files of a granule in index order.
func (f FileSink) UnitPaths() ([]string, error) {
	first := f.UnitPath(0)
	if _, err := os.Stat(first); err != nil {
		return nil, err
	}
	rest, err := f.continuationPaths()
	if err != nil {
		return nil, err
	}
	return append([]string{first}, rest...), nil
}

// continuationPaths lists the <Base>.N.met files (N > 0) in Dir by index.
func (f FileSink) continuationPaths() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(f.Dir, globEscape(f.Base)+".*.met"))
	if err != nil {
		return nil, err
	}
	type indexed struct {
		path  string
		index int
	}
	var parts []indexed
	prefix := filepath.Join(f.Dir, f.Base) + "."
	for _, p := range matches {
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(p, prefix), ".met"))
		if err != nil || n <= 0 {
			continue
		}
		parts = append(parts, indexed{path: p, index: n})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].index < parts[j].index })

	paths := make([]string, len(parts))
	for i, p := range parts {
		paths[i] = p.path
	}
	return paths, nil
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `\`, `\\`)
	return r.Replace(s)
}
