// Package utils holds small helpers shared by the CLI and internal
// packages.
package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

const (
	B  = 1
	KB = 1024 * B
	MB = 1024 * KB
	GB = 1024 * MB
	TB = 1024 * GB
)

// FormatBytes converts bytes to human-readable form, e.g. "1.5 GiB".
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(bytes))
}

// ParseSize converts a human-readable size like "100MB" or "1.5 GB" to
// bytes. A bare number is taken as bytes.
func ParseSize(size string) (int64, error) {
	s := strings.TrimSpace(size)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}

	var value float64
	var unit string
	if _, err := fmt.Sscanf(s, "%f%s", &value, &unit); err != nil {
		return 0, fmt.Errorf("invalid size format: %s", size)
	}
	if value < 0 {
		return 0, fmt.Errorf("negative size: %s", size)
	}

	switch strings.ToUpper(strings.TrimSpace(unit)) {
	case "B":
		return int64(value), nil
	case "KB", "K", "KIB":
		return int64(value * KB), nil
	case "MB", "M", "MIB":
		return int64(value * MB), nil
	case "GB", "G", "GIB":
		return int64(value * GB), nil
	case "TB", "T", "TIB":
		return int64(value * TB), nil
	default:
		return 0, fmt.Errorf("unknown unit: %s", unit)
	}
}
