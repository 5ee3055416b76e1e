package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const (
	CompressionNone = "none"
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
)

var ErrBackup = errors.New("backup failed")

// BackupError wraps any failure while archiving one schedule.
type BackupError struct {
	Source string
	Name   string
	Err    error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("backup %q of %s: %v", e.Name, e.Source, e.Err)
}

func (e *BackupError) Unwrap() error { return e.Err }

func (e *BackupError) Is(target error) bool { return target == ErrBackup }

type Config struct {
	Dir         string
	Compression string // none | gzip | zstd
}

type Result struct {
	Path    string
	Bytes   int64
	Entries int
	Took    time.Duration
}

// Archiver writes one archive file per backup name into a flat directory.
// An existing archive with the same name is replaced.
type Archiver struct {
	cfg Config
}

func New(cfg Config) *Archiver {
	cfg.Compression = NormalizeCompression(cfg.Compression)
	if strings.TrimSpace(cfg.Dir) == "" {
		cfg.Dir = "backups"
	}
	return &Archiver{cfg: cfg}
}

func (a *Archiver) Dir() string { return a.cfg.Dir }

// PathFor returns where the archive for name is written.
func (a *Archiver) PathFor(name string) string {
	return filepath.Join(a.cfg.Dir, name+"."+Extension(a.cfg.Compression))
}

// CreateBackup archives sourcePath (a file or a directory tree) under the
// top-level entry filepath.Base(sourcePath).
func (a *Archiver) CreateBackup(ctx context.Context, sourcePath, backupName string) (Result, error) {
	start := time.Now()
	fail := func(err error) (Result, error) {
		return Result{}, &BackupError{Source: sourcePath, Name: backupName, Err: err}
	}

	if err := checkName(backupName); err != nil {
		return fail(err)
	}
	if err := os.MkdirAll(a.cfg.Dir, 0o755); err != nil {
		return fail(err)
	}
	if _, err := os.Lstat(sourcePath); err != nil {
		return fail(err)
	}

	dst := a.PathFor(backupName)
	tmp, err := os.CreateTemp(a.cfg.Dir, "."+backupName+".*.tmp")
	if err != nil {
		return fail(err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	// The backup dir may sit inside the source tree; never archive our own output.
	var skip []os.FileInfo
	if fi, err := tmp.Stat(); err == nil {
		skip = append(skip, fi)
	}
	if fi, err := os.Stat(dst); err == nil {
		skip = append(skip, fi)
	}

	entries, err := a.write(ctx, tmp, sourcePath, skip)
	if err != nil {
		cleanup()
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fail(err)
	}
	st, err := tmp.Stat()
	if err != nil {
		cleanup()
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fail(err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fail(err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return fail(err)
	}

	return Result{Path: dst, Bytes: st.Size(), Entries: entries, Took: time.Since(start)}, nil
}

func (a *Archiver) write(ctx context.Context, w io.Writer, sourcePath string, skip []os.FileInfo) (int, error) {
	cw, err := compressor(w, a.cfg.Compression)
	if err != nil {
		return 0, err
	}
	tw := tar.NewWriter(cw)
	n, err := addTree(ctx, tw, sourcePath, skip)
	if err != nil {
		_ = tw.Close()
		_ = cw.Close()
		return n, err
	}
	if err := tw.Close(); err != nil {
		_ = cw.Close()
		return n, err
	}
	return n, cw.Close()
}

// addTree walks root into tw, leaving out any file that is one of skip.
func addTree(ctx context.Context, tw *tar.Writer, root string, skip []os.FileInfo) (int, error) {
	root = filepath.Clean(root)
	base := filepath.Base(root)
	n := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(skip) > 0 && d.Type().IsRegular() {
			if info, err := d.Info(); err == nil && sameAny(info, skip) {
				return nil
			}
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := base
		if rel != "." {
			name = filepath.Join(base, rel)
		}
		if err := addEntry(tw, path, filepath.ToSlash(name), d); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}

func sameAny(info os.FileInfo, set []os.FileInfo) bool {
	for _, fi := range set {
		if os.SameFile(info, fi) {
			return true
		}
	}
	return false
}

func addEntry(tw *tar.Writer, path, name string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	var link string
	if info.Mode()&fs.ModeSymlink != 0 {
		if link, err = os.Readlink(path); err != nil {
			return err
		}
	}
	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	hdr.Name = name
	if info.IsDir() {
		hdr.Name += "/"
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(tw, f)
	return err
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func compressor(w io.Writer, compression string) (io.WriteCloser, error) {
	switch compression {
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	case CompressionZstd:
		return zstd.NewWriter(w)
	default:
		return nopCloser{w}, nil
	}
}

// NormalizeCompression maps config spellings to a known compression; unknown
// values fall back to none.
func NormalizeCompression(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "gzip", "gz", "tar.gz", "tgz":
		return CompressionGzip
	case "zstd", "zst", "tar.zst":
		return CompressionZstd
	default:
		return CompressionNone
	}
}

// ValidCompression reports whether v names a supported compression.
func ValidCompression(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "none", "tar", "gzip", "gz", "tar.gz", "tgz", "zstd", "zst", "tar.zst":
		return true
	}
	return false
}

func Extension(compression string) string {
	switch compression {
	case CompressionGzip:
		return "tar.gz"
	case CompressionZstd:
		return "tar.zst"
	default:
		return "tar"
	}
}

func checkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("backup name is empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("backup name %q must not contain path separators", name)
	}
	return nil
}
