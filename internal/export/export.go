// Package export serializes transformed rows to CSV or JSON files.
//
// Output is written to a temporary file in the destination directory and
// renamed into place only after every byte has been written and the file
// closed. A failed export never leaves a partial file at the target path.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"

	"etlmanifest/internal/manifest"
	"etlmanifest/pkg/records"
)

var (
	ErrUnsupportedFormat   = errors.New("unsupported export format")
	ErrUnsupportedEncoding = errors.New("unsupported output encoding")
	ErrWrite               = errors.New("export write failed")
)

// Result describes a completed export.
type Result struct {
	Path     string `json:"path"`
	Format   string `json:"format"`
	RowCount int    `json:"row_count"`
	Bytes    int64  `json:"bytes"`
	// Checksum is the hex xxh3-64 of the file contents.
	Checksum string `json:"checksum"`
}

type encodeFunc func(rows []records.Row, out manifest.Output) ([]byte, error)

var encoders = map[string]encodeFunc{
	manifest.FormatCSV:  encodeCSV,
	manifest.FormatJSON: encodeJSON,
}

// Exporter writes job output files.
type Exporter struct {
	baseDir string
	log     zerolog.Logger
}

type Option func(*Exporter)

// WithBaseDir resolves relative output paths against dir.
func WithBaseDir(dir string) Option {
	return func(e *Exporter) { e.baseDir = dir }
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Exporter) { e.log = l }
}

func New(opts ...Option) *Exporter {
	e := &Exporter{log: zerolog.Nop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Path returns the file path out resolves to.
func (e *Exporter) Path(out manifest.Output) string {
	if e.baseDir == "" || filepath.IsAbs(out.Path) {
		return out.Path
	}
	return filepath.Join(e.baseDir, out.Path)
}

// Export encodes rows per out and writes them to out.Path.
func (e *Exporter) Export(rows []records.Row, out manifest.Output) (*Result, error) {
	format := strings.ToLower(out.Format)
	enc, ok := encoders[format]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%q", out.Format)
	}

	data, err := enc(rows, out)
	if err != nil {
		return nil, err
	}

	path := e.Path(out)
	if err := writeFile(path, data); err != nil {
		return nil, err
	}

	res := &Result{
		Path:     path,
		Format:   format,
		RowCount: len(rows),
		Bytes:    int64(len(data)),
		Checksum: fmt.Sprintf("%016x", xxh3.Hash(data)),
	}
	e.log.Info().
		Str("path", res.Path).
		Str("format", res.Format).
		Int("rows", res.RowCount).
		Str("size", humanize.Bytes(uint64(res.Bytes))).
		Str("checksum", res.Checksum).
		Msg("export written")
	return res, nil
}

// writeFile replaces path with data atomically. The parent directory tree is
// created as needed.
func writeFile(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(ErrWrite, "create directory %s: %v", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrapf(ErrWrite, "open %s: %v", path, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return errors.Wrapf(ErrWrite, "write %s: %v", path, err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		return errors.Wrapf(ErrWrite, "chmod %s: %v", path, err)
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrapf(ErrWrite, "close %s: %v", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(ErrWrite, "rename %s: %v", path, err)
	}
	return nil
}
