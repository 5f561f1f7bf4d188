package metwriter

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

const (
	casHeader = "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<cas:metadata xmlns:cas=\"http://oodt.apache.org/1.0/cas\">\n"
	casFooter = "</cas:metadata>\n"
)

// FileSink stores units as OODT CAS metadata files in Dir: the first unit is
// <Base>.met, later ones <Base>.1.met, <Base>.2.met, ...
type FileSink struct {
	Dir  string
	Base string
}

// UnitPath returns the file path of the unit with the given index.
func (f FileSink) UnitPath(index int) string {
	name := f.Base + ".met"
	if index > 0 {
		name = f.Base + "." + strconv.Itoa(index) + ".met"
	}
	return filepath.Join(f.Dir, name)
}

// OpenUnit creates (or truncates) the unit file and writes the document
// prologue. Opening unit 0 starts a new run for the granule, so continuation
// units left by an earlier run are removed first.
func (f FileSink) OpenUnit(index int) (UnitEncoder, error) {
	if index == 0 {
		if err := f.removeContinuations(); err != nil {
			return nil, err
		}
	}
	path := f.UnitPath(index)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create unit file: %w", err)
	}
	enc := &casEncoder{name: path, file: file, w: bufio.NewWriterSize(file, 64*1024)}
	if _, err := enc.w.WriteString(casHeader); err != nil {
		_ = file.Close()
		return nil, err
	}
	return enc, nil
}

func (f FileSink) removeContinuations() error {
	stale, err := f.continuationPaths()
	if err != nil {
		return fmt.Errorf("list previous units: %w", err)
	}
	for _, p := range stale {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove previous unit: %w", err)
		}
	}
	return nil
}

// casEncoder streams one CAS metadata document.
type casEncoder struct {
	name    string
	file    *os.File
	w       *bufio.Writer
	openKey bool
}

var errKeyOpen = errors.New("metwriter: a key is already open")

func (e *casEncoder) Name() string { return e.name }

func (e *casEncoder) WriteKey(key string, values ...string) error {
	if err := e.OpenKey(key); err != nil {
		return err
	}
	if err := e.WriteValues(values...); err != nil {
		return err
	}
	return e.CloseKey()
}

func (e *casEncoder) OpenKey(key string) error {
	if e.openKey {
		return errKeyOpen
	}
	e.openKey = true
	if _, err := e.w.WriteString("<keyval>\n\t<key>"); err != nil {
		return err
	}
	if err := xml.EscapeText(e.w, []byte(key)); err != nil {
		return err
	}
	_, err := e.w.WriteString("</key>\n")
	return err
}

func (e *casEncoder) WriteValues(values ...string) error {
	if !e.openKey {
		return errors.New("metwriter: no key open")
	}
	for _, v := range values {
		if err := writeVal(e.w, v); err != nil {
			return err
		}
	}
	return nil
}

func writeVal(w io.Writer, v string) error {
	if _, err := io.WriteString(w, "\t<val>"); err != nil {
		return err
	}
	if err := xml.EscapeText(w, []byte(v)); err != nil {
		return err
	}
	_, err := io.WriteString(w, "</val>\n")
	return err
}

func (e *casEncoder) CloseKey() error {
	if !e.openKey {
		return nil
	}
	e.openKey = false
	_, err := e.w.WriteString("</keyval>\n")
	return err
}

func (e *casEncoder) Seal() error {
	if err := e.CloseKey(); err != nil {
		_ = e.file.Close()
		return err
	}
	if _, err := e.w.WriteString(casFooter); err != nil {
		_ = e.file.Close()
		return err
	}
	if err := e.w.Flush(); err != nil {
		_ = e.file.Close()
		return err
	}
	return e.file.Close()
}
