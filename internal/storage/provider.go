// Package storage defines the vault file-system abstraction.
package storage

import "time"

// FileInfo is lightweight metadata returned by list and stat operations.
type FileInfo struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Provider is the interface for vault file operations. All paths are
// relative to the vault root and use forward slashes.
type Provider interface {
	// List walks dir and returns metadata for every file whose name ends
	// with ext (empty ext matches everything).
	List(dir, ext string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
	// Stat returns metadata for a single file.
	Stat(path string) (FileInfo, error)
	// Exists reports whether a regular file exists at path.
	Exists(path string) bool
	// Abs resolves path against the vault root, rejecting escapes.
	Abs(path string) (string, error)
	// Root returns the absolute vault root directory.
	Root() string
}
