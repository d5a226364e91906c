//go:build unix

package signature

import (
	"os"
	"syscall"
)

// inode returns the entry's inode number, or 0 when unavailable.
func inode(info os.FileInfo) uint64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return uint64(st.Ino)
	}
	return 0
}
