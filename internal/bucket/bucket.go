// Package bucket reorders raw diff pages into dependency-safe replay
// order. Each record's signed level is normalized to a non-negative key
// and its payload appended to that key's bucket file; concatenating the
// buckets in ascending key order yields the serialized diff.
package bucket

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"snapdiff/internal/record"
)

// Map owns one open bucket file per distinct normalized level. Handles are
// created lazily by the Bucketizer and released by Serialize, which closes
// and removes every backing file regardless of outcome.
type Map struct {
	files map[int]*os.File
}

// NewMap creates an empty bucket map.
func NewMap() *Map {
	return &Map{files: make(map[int]*os.File)}
}

// Levels returns the normalized level keys in ascending order.
func (m *Map) Levels() []int {
	levels := make([]int, 0, len(m.files))
	for level := range m.files {
		levels = append(levels, level)
	}
	sort.Ints(levels)
	return levels
}

// Len returns the number of buckets.
func (m *Map) Len() int {
	return len(m.files)
}

// get returns the open bucket file for level, creating it under dir on
// first use.
func (m *Map) get(level int, dir string, logger *slog.Logger) (*os.File, error) {
	if f, ok := m.files[level]; ok {
		return f, nil
	}
	path := filepath.Join(dir, strconv.Itoa(level))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		logger.Error("Could not open file", "path", path, "error", err)
		return nil, fmt.Errorf("open bucket file %s: %w", path, err)
	}
	logger.Info("Writing to bucket file", "path", path)
	m.files[level] = f
	return f, nil
}

// release closes and removes every bucket file. The first error is
// returned but release always visits all handles.
func (m *Map) release() error {
	var firstErr error
	for level, f := range m.files {
		if f == nil {
			continue
		}
		name := f.Name()
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := os.Remove(name); err != nil && firstErr == nil {
			firstErr = err
		}
		m.files[level] = nil
	}
	return firstErr
}

// Bucketize reads the numbered raw page files 0..n-1 under rawDir and
// appends each record's payload to its level bucket under bucketDir.
// A sentinel payload (EOB/EOF) is dropped and ends processing of that raw
// file; anything after it is treated as already consumed.
func Bucketize(rawDir string, n int, bucketDir string, logger *slog.Logger) (*Map, error) {
	buckets := NewMap()

	for fileNum := 0; fileNum < n; fileNum++ {
		path := filepath.Join(rawDir, strconv.Itoa(fileNum))
		if err := bucketizeFile(buckets, path, bucketDir, logger); err != nil {
			buckets.release()
			return nil, err
		}
	}
	return buckets, nil
}

func bucketizeFile(buckets *Map, path, bucketDir string, logger *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		logger.Error("Could not open file", "path", path, "error", err)
		return fmt.Errorf("open raw file %s: %w", path, err)
	}
	defer f.Close()

	logger.Info("Bucketizing diff from raw file", "path", path)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64<<10), record.MaxLineBytes)
	for scanner.Scan() {
		tokens := record.Tokens(scanner.Text())
		if len(tokens) == 0 {
			continue
		}

		level, err := record.NormalizeLevel(tokens[0])
		if err != nil {
			return fmt.Errorf("raw file %s: %w", path, err)
		}

		payload := record.Payload(tokens)
		if record.IsSentinel(payload) {
			// Remaining lines of this page belong to the next
			// page's address space; skip them.
			break
		}

		bucket, err := buckets.get(level, bucketDir, logger)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(bucket, payload); err != nil {
			return fmt.Errorf("write bucket for level %d: %w", level, err)
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Error("Error reading file", "path", path, "error", err)
		return fmt.Errorf("scan raw file %s: %w", path, err)
	}
	return nil
}

// Serialize concatenates every bucket's content in ascending level order
// into outPath, then closes and removes all bucket files. Buckets are
// released even when serialization fails.
func Serialize(buckets *Map, outPath string, logger *slog.Logger) (err error) {
	defer func() {
		if relErr := buckets.release(); relErr != nil && err == nil {
			err = fmt.Errorf("release buckets: %w", relErr)
		}
	}()

	out, err := os.Create(outPath)
	if err != nil {
		logger.Error("Could not open file", "path", outPath, "error", err)
		return fmt.Errorf("create serialized diff %s: %w", outPath, err)
	}
	defer out.Close()

	logger.Info("Writing to serialized diff file", "path", outPath)

	for _, level := range buckets.Levels() {
		f := buckets.files[level]
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewind bucket %d: %w", level, err)
		}
		if _, err := io.Copy(out, f); err != nil {
			return fmt.Errorf("copy bucket %d: %w", level, err)
		}
	}
	return nil
}
