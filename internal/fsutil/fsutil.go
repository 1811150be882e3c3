// Package fsutil wraps the small set of filesystem capabilities the
// pipeline needs: directory validation and a platform-neutral "get file
// metadata" lookup used for event enrichment.
package fsutil

import (
	"os"
)

// Timespec is a second/nanosecond timestamp pair as reported by the
// platform stat call.
type Timespec struct {
	Sec  int64
	Nsec int64
}

// Metadata holds the subset of stat information carried on change events.
type Metadata struct {
	Size  int64
	Atime Timespec
	Ctime Timespec
	Mtime Timespec
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsDirEmpty reports whether the directory at path contains no entries.
// A path that cannot be read is reported as non-empty so callers treat it
// as unusable.
func IsDirEmpty(path string) bool {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false
	}
	return len(entries) == 0
}
