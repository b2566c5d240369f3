// Package workdir manages the scratch directory a run keeps its exports and artwork in.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const DefaultPath = "images"

type Dir struct {
	directory string
}

// New returns a Dir rooted at path without touching the filesystem.
func New(path string) Dir {
	if path == "" {
		path = DefaultPath
	}
	return Dir{directory: path}
}

// Reset deletes the directory and everything in it then recreates it empty.
func (d Dir) Reset() error {
	err := os.RemoveAll(d.directory)
	if err != nil {
		return err
	}
	return os.MkdirAll(d.directory, 0777)
}

func (d Dir) Root() string {
	return d.directory
}

// Path returns where name is kept. Only the last element of name is used so
// a name scraped off a page cannot escape the directory.
func (d Dir) Path(name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(d.directory, base), nil
}

// WriteFile saves contents under name and returns the path written.
func (d Dir) WriteFile(name string, contents []byte) (string, error) {
	path, err := d.Path(name)
	if err != nil {
		return "", err
	}
	err = os.WriteFile(path, contents, 0600)
	if err != nil {
		return "", err
	}
	return path, nil
}

func (d Dir) Open(name string) (*os.File, error) {
	path, err := d.Path(name)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}
