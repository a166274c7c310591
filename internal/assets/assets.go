// Package assets implements broker.AssetReader against a directory on
// disk, backing the Get verb's static-asset serving. It generalizes the
// teacher's intended-but-unbuilt asset server referenced in server.go's
// Config.Resource routing.
package assets

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned when a requested path would escape Root via
// ".." traversal.
var ErrOutsideRoot = errors.New("assets: path escapes root")

// Dir reads static assets rooted at a directory on disk.
type Dir struct {
	root string
}

// NewDir returns a Dir serving files under root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// ReadAsset reads the file at path relative to the root, rejecting any
// path that would traverse outside of it.
func (d *Dir) ReadAsset(path string) ([]byte, error) {
	cleaned := filepath.Clean(path)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return nil, ErrOutsideRoot
	}

	full := filepath.Join(d.root, cleaned)
	return os.ReadFile(full)
}
