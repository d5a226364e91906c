package scan

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash"
)

// Policy is the set of inclusion, exclusion and threshold parameters
// governing what a scan counts and reports.
type Policy struct {
	// MinFileSize is the threshold above which a file is reported as large.
	// It affects reporting only, never which entries are walked, so it is
	// deliberately left out of the cache key.
	MinFileSize int64

	// IncludeSystem controls whether the system directories listed in
	// ExcludeDirs are descended into. When true the exclusion list is
	// ignored entirely.
	IncludeSystem bool

	// ExcludeDirs are absolute path prefixes skipped when IncludeSystem is
	// false.
	ExcludeDirs []string

	// ExcludePatterns are glob patterns matched against entry base names;
	// matching entries are always skipped.
	ExcludePatterns []string
}

// Key returns a stable fingerprint of the fields that change which subtree
// a scan walks. Two policies with equal keys produce interchangeable
// aggregates; the directory cache uses the key as part of entry identity so
// a summary computed under one policy is never served for another.
func (p Policy) Key() string {
	dirs := append([]string(nil), p.ExcludeDirs...)
	sort.Strings(dirs)
	pats := append([]string(nil), p.ExcludePatterns...)
	sort.Strings(pats)

	h := xxhash.New()
	fmt.Fprintf(h, "system=%t;", p.IncludeSystem)
	for _, d := range dirs {
		io.WriteString(h, "xd="+d+";")
	}
	for _, g := range pats {
		io.WriteString(h, "xp="+g+";")
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// ExcludesDir reports whether a directory path is skipped by this policy.
func (p Policy) ExcludesDir(path string) bool {
	if p.matchesPattern(filepath.Base(path)) {
		return true
	}
	if p.IncludeSystem {
		return false
	}
	path = filepath.Clean(path)
	for _, excl := range p.ExcludeDirs {
		excl = filepath.Clean(excl)
		if path == excl || strings.HasPrefix(path, excl+string(os.PathSeparator)) {
			return true
		}
	}
	return false
}

// ExcludesFile reports whether a file is skipped by this policy.
func (p Policy) ExcludesFile(path string) bool {
	return p.matchesPattern(filepath.Base(path))
}

func (p Policy) matchesPattern(base string) bool {
	for _, pat := range p.ExcludePatterns {
		if ok, _ := filepath.Match(pat, base); ok {
			return true
		}
	}
	return false
}
