package workdir

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReset(t *testing.T) {
	root := filepath.Join(t.TempDir(), "images")
	dir := New(root)

	require.NoError(t, dir.Reset())
	_, err := dir.WriteFile("stale.jpg", []byte("stale"))
	require.NoError(t, err)

	require.NoError(t, dir.Reset())
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestWriteAndOpen(t *testing.T) {
	dir := New(t.TempDir())

	path, err := dir.WriteFile("label.jpg", []byte("contents"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir.Root(), "label.jpg"), path)

	f, err := dir.Open("label.jpg")
	require.NoError(t, err)
	defer f.Close()
	contents, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "contents", string(contents))
}

func TestPathStaysInside(t *testing.T) {
	dir := New(t.TempDir())

	path, err := dir.Path("../../etc/passwd")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir.Root(), "passwd"), path)

	path, err = dir.Path(`..\..\label.png`)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir.Root(), "label.png"), path)

	_, err = dir.Path("..")
	require.Error(t, err)
	_, err = dir.Path("")
	require.Error(t, err)
}

func TestDefaultPath(t *testing.T) {
	require.Equal(t, DefaultPath, New("").Root())
}
