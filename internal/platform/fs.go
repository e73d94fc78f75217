package platform

import (
	"io/fs"
	"os"
)

// OSFileSystem is the native FileSystem. Path-level helpers that need OS
// specific calls live in the per-platform files.
type OSFileSystem struct{}

// ReadDir lists path without following links.
func (OSFileSystem) ReadDir(path string) ([]fs.DirEntry, error) {
	entries, err := os.ReadDir(longPath(path))
	return entries, classify(err)
}

// Lstat stats path without following links.
func (OSFileSystem) Lstat(path string) (fs.FileInfo, error) {
	info, err := os.Lstat(longPath(path))
	return info, classify(err)
}

// Remove deletes a file, a link or an empty directory.
func (OSFileSystem) Remove(path string) error {
	return classify(os.Remove(longPath(path)))
}
