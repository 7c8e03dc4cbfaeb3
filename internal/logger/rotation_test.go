package logger

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRotatingWriter(t *testing.T) {
	t.Run("creates file and directory", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "nested", "agent.log")

		rw, err := NewRotatingWriter(RotationConfig{File: logFile, MaxBytes: megabyte})
		require.NoError(t, err)
		defer rw.Close()

		_, err = os.Stat(logFile)
		assert.NoError(t, err)
	})

	t.Run("requires a path", func(t *testing.T) {
		_, err := NewRotatingWriter(RotationConfig{})
		assert.Error(t, err)
	})

	t.Run("continues an existing file", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "agent.log")
		require.NoError(t, os.WriteFile(logFile, []byte("earlier\n"), 0644))

		rw, err := NewRotatingWriter(RotationConfig{File: logFile, MaxBytes: megabyte})
		require.NoError(t, err)
		_, err = rw.Write([]byte("later\n"))
		require.NoError(t, err)
		require.NoError(t, rw.Close())

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Equal(t, "earlier\nlater\n", string(data))
	})
}

func TestRotatingWriter_RotatesBySize(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "agent.log")

	rw, err := NewRotatingWriter(RotationConfig{File: logFile, MaxBytes: 16})
	require.NoError(t, err)
	defer rw.Close()

	first := []byte("0123456789\n")
	second := []byte("abcdefghij\n")

	n, err := rw.Write(first)
	require.NoError(t, err)
	assert.Equal(t, len(first), n)

	_, err = rw.Write(second)
	require.NoError(t, err)

	current, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, string(second), string(current))

	backups, err := filepath.Glob(logFile + ".*")
	require.NoError(t, err)
	require.Len(t, backups, 1)

	rotated, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Equal(t, string(first), string(rotated))
}

func TestRotatingWriter_OversizedRecordIsWrittenWhole(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "agent.log")

	rw, err := NewRotatingWriter(RotationConfig{File: logFile, MaxBytes: 4})
	require.NoError(t, err)
	defer rw.Close()

	record := []byte(strings.Repeat("x", 32))
	n, err := rw.Write(record)
	require.NoError(t, err)
	assert.Equal(t, len(record), n)

	backups, _ := filepath.Glob(logFile + ".*")
	assert.Empty(t, backups)
}

func TestRotatingWriter_CompressesBackups(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "agent.log")

	rw, err := NewRotatingWriter(RotationConfig{File: logFile, MaxBytes: 8, Compress: true})
	require.NoError(t, err)
	defer rw.Close()

	_, err = rw.Write([]byte("first\n"))
	require.NoError(t, err)
	_, err = rw.Write([]byte("second\n"))
	require.NoError(t, err)

	backups, err := filepath.Glob(logFile + ".*")
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.True(t, strings.HasSuffix(backups[0], ".gz"))

	f, err := os.Open(backups[0])
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(data))
}

func TestRotatingWriter_BackupNamesDoNotCollide(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "agent.log")

	rw, err := NewRotatingWriter(RotationConfig{File: logFile, MaxBytes: 4})
	require.NoError(t, err)
	defer rw.Close()

	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rw.now = func() time.Time { return fixed }

	for i := 0; i < 3; i++ {
		_, err := rw.Write([]byte("line\n"))
		require.NoError(t, err)
	}

	backups, err := filepath.Glob(logFile + ".*")
	require.NoError(t, err)
	assert.Len(t, backups, 2)
}

func TestRotatingWriter_PrunesOldBackups(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "agent.log")

	stale := logFile + ".20200101-120000"
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0644))
	old := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(stale, old, old))

	fresh := logFile + ".20990101-120000"
	require.NoError(t, os.WriteFile(fresh, []byte("new"), 0644))

	rw, err := NewRotatingWriter(RotationConfig{File: logFile, MaxBytes: megabyte, MaxAge: 7 * 24 * time.Hour})
	require.NoError(t, err)
	defer rw.Close()

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestRotatingWriter_Close(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "agent.log")

	rw, err := NewRotatingWriter(RotationConfig{File: logFile})
	require.NoError(t, err)

	require.NoError(t, rw.Close())
	assert.NoError(t, rw.Close())

	_, err = rw.Write([]byte("after close"))
	assert.ErrorIs(t, err, os.ErrClosed)
}
