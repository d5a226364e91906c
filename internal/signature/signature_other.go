//go:build !unix

package signature

import "os"

// inode is unavailable on this platform; directory identity falls back to
// mtime alone.
func inode(info os.FileInfo) uint64 {
	return 0
}
