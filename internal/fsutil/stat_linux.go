//go:build linux

package fsutil

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Lstat returns metadata for path without following a trailing symlink,
// preserving nanosecond timestamp resolution.
func Lstat(path string) (Metadata, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return Metadata{}, fmt.Errorf("lstat %s: %w", path, err)
	}
	return Metadata{
		Size:  st.Size,
		Atime: Timespec{Sec: st.Atim.Sec, Nsec: st.Atim.Nsec},
		Ctime: Timespec{Sec: st.Ctim.Sec, Nsec: st.Ctim.Nsec},
		Mtime: Timespec{Sec: st.Mtim.Sec, Nsec: st.Mtim.Nsec},
	}, nil
}
