package reclaim

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Validator rejects removal targets that point into system territory.
type Validator struct {
	protectedPaths []string
}

// NewValidator creates a Validator with the default protected paths.
func NewValidator() *Validator {
	return &Validator{
		protectedPaths: []string{
			// Unix system directories
			"/",
			"/bin",
			"/boot",
			"/dev",
			"/etc",
			"/lib",
			"/lib64",
			"/proc",
			"/root",
			"/sbin",
			"/sys",
			"/usr",
			"/var",
			// macOS system directories
			"/System",
			"/Applications",
			"/Library/System",
		},
	}
}

// ValidateForRemoval checks that a path is safe to delete. Symlinks are
// resolved first so a link cannot redirect the removal somewhere protected.
func (v *Validator) ValidateForRemoval(path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("path must be absolute: %s", path)
	}

	if filepath.Clean(path) != path {
		return fmt.Errorf("path contains suspicious elements: %s", path)
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		if os.IsNotExist(err) {
			resolved = path
		} else {
			return fmt.Errorf("failed to resolve symlinks: %w", err)
		}
	}

	return v.checkProtectedPaths(filepath.Clean(resolved))
}

// checkProtectedPaths refuses protected paths and their immediate children.
// Deeper descendants (a cache file under /var/tmp/app) are allowed.
func (v *Validator) checkProtectedPaths(cleanPath string) error {
	for _, protected := range v.protectedPaths {
		if cleanPath == protected {
			return fmt.Errorf("refusing to delete protected path: %s", cleanPath)
		}
		if strings.HasPrefix(cleanPath, protected+"/") {
			rel, _ := filepath.Rel(protected, cleanPath)
			if !strings.Contains(rel, "/") {
				return fmt.Errorf("refusing to delete critical system path: %s", cleanPath)
			}
		}
	}
	return nil
}

// IsProtectedPath reports whether a path falls anywhere under a protected
// directory.
func (v *Validator) IsProtectedPath(path string) bool {
	cleanPath := filepath.Clean(path)
	for _, protected := range v.protectedPaths {
		if cleanPath == protected || strings.HasPrefix(cleanPath, protected+"/") {
			return true
		}
	}
	return false
}

// AddProtectedPath adds a custom protected path.
func (v *Validator) AddProtectedPath(path string) {
	v.protectedPaths = append(v.protectedPaths, filepath.Clean(path))
}
