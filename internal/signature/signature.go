// Package signature derives cheap, comparable fingerprints from filesystem
// metadata. Two equal signatures mean the entry is assumed unchanged since it
// was last observed. This is a heuristic, not a guarantee: a write that
// preserves both size and modification time (possible with coarse clock
// resolution) is not detected. Callers treat that as an accepted
// approximation.
package signature

import (
	"fmt"
	"os"
)

// Signature is a compact fingerprint of an entry's metadata.
// For files it combines size and mtime; for directories, mtime and inode.
// The zero value means "no signature" and never matches a live entry.
type Signature struct {
	Size      int64  `json:"size"`
	ModTimeNS int64  `json:"mtime_ns"`
	Inode     uint64 `json:"inode,omitempty"`
}

// IsZero reports whether s carries no signature.
func (s Signature) IsZero() bool {
	return s == Signature{}
}

// String returns a compact form used in diagnostics.
func (s Signature) String() string {
	return fmt.Sprintf("%d_%d_%d", s.Size, s.ModTimeNS, s.Inode)
}

// File builds a signature for a regular file from its metadata.
func File(info os.FileInfo) Signature {
	return Signature{
		Size:      info.Size(),
		ModTimeNS: info.ModTime().UnixNano(),
	}
}

// Dir builds a signature for a directory. The directory's own mtime changes
// when immediate children are added or removed, not when descendants deeper
// in the tree change; aggregate consumers therefore validate cached child
// directories recursively instead of trusting a single directory signature.
func Dir(info os.FileInfo) Signature {
	return Signature{
		ModTimeNS: info.ModTime().UnixNano(),
		Inode:     inode(info),
	}
}

// StatFile stats path and returns its file signature. A false result means
// the metadata could not be read (vanished, permission denied) or the path
// is not a regular file; callers must treat it as a cache miss.
func StatFile(path string) (Signature, bool) {
	info, err := os.Lstat(path)
	if err != nil || !info.Mode().IsRegular() {
		return Signature{}, false
	}
	return File(info), true
}

// StatDir stats path and returns its directory signature. A false result is
// an automatic cache miss.
func StatDir(path string) (Signature, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return Signature{}, false
	}
	return Dir(info), true
}
