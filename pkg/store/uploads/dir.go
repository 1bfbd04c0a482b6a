package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"
)

var ErrNotFound = errors.New("file not found")

// Dir is the flat upload directory. Uploaded CSVs and generated reports live
// side by side; every access is confined to the directory root.
type Dir struct {
	path string
	root *os.Root
}

var tmpSeq atomic.Uint64

func Open(path string) (*Dir, error) {
	if path == "" {
		return nil, fmt.Errorf("upload directory is not set")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	root, err := os.OpenRoot(path)
	if err != nil {
		return nil, fmt.Errorf("open upload directory: %w", err)
	}
	return &Dir{path: path, root: root}, nil
}

func (d *Dir) Close() error {
	return d.root.Close()
}

// Path joins name onto the directory path as configured, without making it
// absolute. It is what the result page shows to the client.
func (d *Dir) Path(name string) string {
	return filepath.Join(d.path, name)
}

// Save streams r into name, replacing any previous file with the same name.
func (d *Dir) Save(ctx context.Context, name string, r io.Reader) (int64, error) {
	var size int64
	err := d.WriteAtomic(name, func(w io.Writer) error {
		n, err := io.Copy(w, &ctxReader{ctx: ctx, r: r})
		size = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return size, nil
}

// WriteAtomic hands fn a temporary file and renames it over name once fn
// returns without error, so readers never see a partial file.
func (d *Dir) WriteAtomic(name string, fn func(w io.Writer) error) error {
	if !isFlat(name) {
		return fmt.Errorf("invalid file name %q", name)
	}
	tmpName := "." + name + "." + strconv.FormatUint(tmpSeq.Add(1), 10) + "." +
		strconv.FormatInt(time.Now().UnixNano(), 36) + ".tmp"

	f, err := d.root.OpenFile(tmpName, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	cleanup := func() {
		_ = f.Close()
		_ = d.root.Remove(tmpName)
	}

	if err := fn(f); err != nil {
		cleanup()
		return err
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = d.root.Remove(tmpName)
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(d.Path(tmpName), d.Path(name)); err != nil {
		_ = d.root.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

// Open returns a regular file from the directory. Missing files, directories
// and names escaping the root all map to ErrNotFound.
func (d *Dir) Open(name string) (*os.File, fs.FileInfo, error) {
	if name == "" {
		return nil, nil, ErrNotFound
	}
	f, err := d.root.Open(name)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return f, info, nil
}

func (d *Dir) Exists(name string) bool {
	info, err := d.root.Stat(name)
	return err == nil && info.Mode().IsRegular()
}

func isFlat(name string) bool {
	return name != "" && name != "." && name != ".." && filepath.Base(name) == name
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
