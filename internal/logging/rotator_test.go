package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// TestNewRotator tests directory and file creation
func TestNewRotator(t *testing.T) {
	tests := []struct {
		name   string
		subdir string
		prefix string
		useUTC bool
		want   string
	}{
		{name: "Default prefix", subdir: "out", want: "beast_"},
		{name: "Custom prefix UTC", subdir: "out", prefix: "sbs", useUTC: true, want: "sbs_"},
		{name: "Nested directory", subdir: "nested/out/dir", want: "beast_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), tt.subdir)

			r, err := NewRotator(dir, tt.prefix, tt.useUTC, testLogger())
			require.NoError(t, err)
			defer r.Close()

			assert.DirExists(t, dir)

			current := r.CurrentFile()
			assert.FileExists(t, current)
			assert.Contains(t, filepath.Base(current), tt.want)
			assert.Equal(t, r.today(), r.currentDate)
		})
	}
}

func TestRotator_Write(t *testing.T) {
	r, err := NewRotator(t.TempDir(), "", false, testLogger())
	require.NoError(t, err)

	_, err = fmt.Fprintln(r, "MSG,3,1,1,484412")
	require.NoError(t, err)

	current := r.CurrentFile()
	require.NoError(t, r.Close())

	content, err := os.ReadFile(current)
	require.NoError(t, err)
	assert.Equal(t, "MSG,3,1,1,484412\n", string(content))

	_, err = r.Write([]byte("late"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, r.CurrentFile())
	assert.ErrorIs(t, r.Rotate(), ErrClosed)
}

func TestRotator_RotateOnDateChange(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRotator(dir, "", true, testLogger())
	require.NoError(t, err)

	realFile := r.CurrentFile()

	day1 := time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)
	r.now = func() time.Time { return day1 }
	require.NoError(t, r.Rotate())
	assert.Equal(t, filepath.Join(dir, "beast_2024-03-01.log"), r.CurrentFile())

	// Same day: no change
	require.NoError(t, r.Rotate())
	assert.Equal(t, filepath.Join(dir, "beast_2024-03-01.log"), r.CurrentFile())

	_, err = r.Write([]byte("day one\n"))
	require.NoError(t, err)

	r.now = func() time.Time { return day1.Add(2 * time.Minute) }
	require.NoError(t, r.Rotate())
	assert.Equal(t, filepath.Join(dir, "beast_2024-03-02.log"), r.CurrentFile())

	require.NoError(t, r.Close())

	old := filepath.Join(dir, "beast_2024-03-01.log")
	assert.NoFileExists(t, old)
	assert.FileExists(t, old+".gz")

	gzFile, err := os.Open(old + ".gz")
	require.NoError(t, err)
	defer gzFile.Close()

	gz, err := gzip.NewReader(gzFile)
	require.NoError(t, err)
	defer gz.Close()

	content, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "day one\n", string(content))

	// The file opened at construction was compressed on the first rotation
	assert.NoFileExists(t, realFile)
	assert.FileExists(t, realFile+".gz")
}

func TestRotator_CompressMissingFile(t *testing.T) {
	r, err := NewRotator(t.TempDir(), "", false, testLogger())
	require.NoError(t, err)
	defer r.Close()

	assert.NoError(t, r.compress("1999-01-01"))
}

func TestRotator_Prune(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRotator(dir, "", false, testLogger())
	require.NoError(t, err)
	defer r.Close()

	oldFile := filepath.Join(dir, "beast_2020-01-01.log.gz")
	recentFile := filepath.Join(dir, "beast_2020-01-02.log")
	other := filepath.Join(dir, "unrelated.txt")
	for _, f := range []string{oldFile, recentFile, other} {
		require.NoError(t, os.WriteFile(f, []byte("x"), 0644))
	}

	oldTime := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))

	files, err := r.Files()
	require.NoError(t, err)
	assert.Len(t, files, 3)

	removed, err := r.Prune(5)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.NoFileExists(t, oldFile)
	assert.FileExists(t, recentFile)
	assert.FileExists(t, other)
	assert.FileExists(t, r.CurrentFile())

	_, err = r.Prune(0)
	assert.Error(t, err)
	_, err = r.Prune(-1)
	assert.Error(t, err)
}

func TestRotator_ConcurrentWrites(t *testing.T) {
	r, err := NewRotator(t.TempDir(), "", false, testLogger())
	require.NoError(t, err)

	const goroutines = 10
	const lines = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < lines; j++ {
				_, err := fmt.Fprintf(r, "%02d-%03d\n", id, j)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	current := r.CurrentFile()
	require.NoError(t, r.Close())

	content, err := os.ReadFile(current)
	require.NoError(t, err)
	assert.Len(t, content, goroutines*lines*7)
}
