package logger

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const megabyte = 1024 * 1024

// RotationConfig controls size based rotation of a log file.
type RotationConfig struct {
	File     string
	MaxBytes int64 // rotate before a write would exceed this size
	MaxAge   time.Duration
	Compress bool
}

// RotatingWriter appends to a log file and moves it aside once it grows
// past MaxBytes. Rotated files are named <file>.<timestamp> and optionally
// gzipped; files older than MaxAge are pruned on every rotation.
type RotatingWriter struct {
	mu   sync.Mutex
	cfg  RotationConfig
	file *os.File
	size int64
	now  func() time.Time
}

// NewRotatingWriter opens cfg.File for appending, creating its directory.
func NewRotatingWriter(cfg RotationConfig) (*RotatingWriter, error) {
	if cfg.File == "" {
		return nil, fmt.Errorf("log file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	w := &RotatingWriter{cfg: cfg, now: time.Now}
	if err := w.open(); err != nil {
		return nil, err
	}
	w.prune()
	return w, nil
}

func (w *RotatingWriter) open() error {
	file, err := os.OpenFile(w.cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	w.file = file
	w.size = info.Size()
	return nil
}

// Write appends p, rotating first when the file would outgrow MaxBytes.
// A single record larger than MaxBytes is still written whole.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	if w.cfg.MaxBytes > 0 && w.size > 0 && w.size+int64(len(p)) > w.cfg.MaxBytes {
		if err := w.rotate(); err != nil {
			return 0, fmt.Errorf("failed to rotate log file: %w", err)
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Close closes the active file. Later writes fail with os.ErrClosed.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil

	rotated := w.backupName()
	if err := os.Rename(w.cfg.File, rotated); err != nil {
		return err
	}
	if w.cfg.Compress {
		// An uncompressed backup is still a valid backup.
		_ = gzipFile(rotated)
	}
	w.prune()

	return w.open()
}

// backupName returns a name that does not collide with earlier backups
// rotated within the same second.
func (w *RotatingWriter) backupName() string {
	base := fmt.Sprintf("%s.%s", w.cfg.File, w.now().Format("20060102-150405"))
	name := base
	for i := 1; exists(name) || exists(name+".gz"); i++ {
		name = fmt.Sprintf("%s-%d", base, i)
	}
	return name
}

// prune removes backups whose modification time is older than MaxAge.
func (w *RotatingWriter) prune() {
	if w.cfg.MaxAge <= 0 {
		return
	}
	backups, err := filepath.Glob(w.cfg.File + ".*")
	if err != nil {
		return
	}
	cutoff := w.now().Add(-w.cfg.MaxAge)
	for _, path := range backups {
		info, err := os.Stat(path)
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		os.Remove(path)
	}
}

// gzipFile replaces path with path.gz.
func gzipFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}

	gz := gzip.NewWriter(dst)
	_, copyErr := io.Copy(gz, src)
	closeErr := gz.Close()
	fileErr := dst.Close()
	if err := firstErr(copyErr, closeErr, fileErr); err != nil {
		os.Remove(path + ".gz")
		return err
	}
	return os.Remove(path)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

