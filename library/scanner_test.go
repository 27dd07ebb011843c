package library

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, fs afero.Fs, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, afero.WriteFile(fs, p, []byte("data:"+p), 0o644))
	}
}

func TestScan_NaturalOrderAndFilter(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs,
		"/shoot/DSCF10.JPG",
		"/shoot/DSCF2.JPG",
		"/shoot/DSCF1.jpg",
		"/shoot/DSCF1.RAF",
		"/shoot/notes.txt",
		"/shoot/.DSCF3.JPG",
		"/shoot/edit/DSCF9.JPG",
		"/shoot/bin/DSCF8.JPG",
	)

	items, err := Scan(fs, "/shoot", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"/shoot/DSCF1.jpg", "/shoot/DSCF2.JPG", "/shoot/DSCF10.JPG"}, items)
}

func TestScan_CustomExtensions(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/p/a.png", "/p/b.jpg", "/p/c.WEBP")

	items, err := Scan(fs, "/p", []string{"png", ".webp"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/p/a.png", "/p/c.WEBP"}, items)
}

func TestScan_Empty(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/p/readme.md")

	_, err := Scan(fs, "/p", nil)
	assert.ErrorIs(t, err, ErrNoImages)
}

func TestScan_MissingDir(t *testing.T) {
	_, err := Scan(afero.NewMemMapFs(), "/nowhere", nil)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoImages)
}

func TestClassifyType(t *testing.T) {
	assert.Equal(t, "image", ClassifyType("a.JPG"))
	assert.Equal(t, "image", ClassifyType("a.webp"))
	assert.Equal(t, "raw", ClassifyType("a.RAF"))
	assert.Equal(t, "raw", ClassifyType("a.cr2"))
	assert.Equal(t, "other", ClassifyType("a.txt"))
	assert.Equal(t, "other", ClassifyType("Makefile"))
}
