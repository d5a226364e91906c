// Package classify flags files that are likely safe to reclaim: leftovers
// of builds, crashes and downloads. Classification is advisory metadata on
// scan results; nothing in this module deletes anything.
package classify

import (
	"os"
	"path/filepath"
	"strings"
)

// uselessExtensions maps lowercase file extensions to the reason a file
// carrying them is flagged.
var uselessExtensions = map[string]string{
	".tmp":            "temporary file",
	".temp":           "temporary file",
	".log":            "log file",
	".bak":            "backup file",
	".old":            "backup file",
	".swp":            "editor swap file",
	".swo":            "editor swap file",
	".crdownload":     "interrupted download",
	".part":           "interrupted download",
	".partial":        "interrupted download",
	".dmp":            "crash dump",
	".err":            "error dump",
	".cache":          "cache file",
	".db-journal":     "database journal",
	".sqlite-journal": "database journal",
}

// uselessNameParts are substrings of the base name that mark a file as a
// leftover even without a telltale extension.
var uselessNameParts = []struct {
	part   string
	reason string
}{
	{"crash", "crash artifact"},
	{".old", "backup file"},
	{".bak", "backup file"},
	{"~", "editor backup"},
}

// uselessNamePrefixes match generated scratch files by their leading token.
var uselessNamePrefixes = []struct {
	prefix string
	reason string
}{
	{"tmp", "temporary file"},
	{"temp", "temporary file"},
	{"cache", "cache file"},
	{"core.", "crash artifact"},
}

// Suspect returns the reasons a file looks reclaimable, or nil for a file
// with no telltale marks. Reasons are deduplicated and human readable.
func Suspect(path string, info os.FileInfo) []string {
	if info != nil && info.IsDir() {
		return nil
	}
	base := strings.ToLower(filepath.Base(path))

	var reasons []string
	seen := make(map[string]bool)
	add := func(reason string) {
		if !seen[reason] {
			seen[reason] = true
			reasons = append(reasons, reason)
		}
	}

	if reason, ok := uselessExtensions[filepath.Ext(base)]; ok {
		add(reason)
	}
	for _, p := range uselessNamePrefixes {
		if strings.HasPrefix(base, p.prefix) {
			add(p.reason)
			break
		}
	}
	for _, p := range uselessNameParts {
		if strings.Contains(base, p.part) {
			add(p.reason)
		}
	}
	return reasons
}
