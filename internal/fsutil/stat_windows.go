//go:build windows

package fsutil

import (
	"fmt"
	"os"
	"syscall"
)

// Lstat returns metadata for path. Windows stat calls report whole-second
// timestamps here, so all nanosecond fields are zero.
func Lstat(path string) (Metadata, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("lstat %s: %w", path, err)
	}
	m := Metadata{
		Size:  info.Size(),
		Mtime: Timespec{Sec: info.ModTime().Unix()},
	}
	if st, ok := info.Sys().(*syscall.Win32FileAttributeData); ok {
		m.Atime = Timespec{Sec: st.LastAccessTime.Nanoseconds() / 1e9}
		m.Ctime = Timespec{Sec: st.CreationTime.Nanoseconds() / 1e9}
	}
	return m, nil
}
