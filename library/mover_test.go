package library

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMover_EditCopiesWithSidecar(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/s/DSCF1.JPG", "/s/DSCF1.RAF", "/s/DSCF10.RAF")
	m := NewMover(fs, "/s", nil)

	res, err := m.Edit(context.Background(), "/s/DSCF1.JPG")
	require.NoError(t, err)
	assert.Equal(t, "/s/edit/DSCF1.JPG", res.Image)
	assert.Equal(t, []string{"/s/edit/DSCF1.RAF"}, res.Sidecars)

	for _, p := range []string{"/s/DSCF1.JPG", "/s/DSCF1.RAF", "/s/edit/DSCF1.JPG", "/s/edit/DSCF1.RAF"} {
		exists, _ := afero.Exists(fs, p)
		assert.True(t, exists, p)
	}
	exists, _ := afero.Exists(fs, "/s/edit/DSCF10.RAF")
	assert.False(t, exists)
}

func TestMover_EditTwiceAddsSuffix(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/s/a.jpg")
	m := NewMover(fs, "/s", nil)

	_, err := m.Edit(context.Background(), "/s/a.jpg")
	require.NoError(t, err)
	res, err := m.Edit(context.Background(), "/s/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "/s/edit/a_1.jpg", res.Image)
}

func TestMover_BinMovesWithoutSidecar(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/s/a.jpg", "/s/b.jpg")
	m := NewMover(fs, "/s", nil)

	res, err := m.Bin(context.Background(), "/s/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "/s/bin/a.jpg", res.Image)
	assert.Empty(t, res.Sidecars)

	exists, _ := afero.Exists(fs, "/s/a.jpg")
	assert.False(t, exists)
	exists, _ = afero.Exists(fs, "/s/b.jpg")
	assert.True(t, exists)
}

func TestMover_BinMultipleSidecars(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/s/a.jpg", "/s/a.raf", "/s/a.CR2", "/s/a.xmp")
	m := NewMover(fs, "/s", []string{"RAF", ".cr2"})

	res, err := m.Bin(context.Background(), "/s/a.jpg")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/s/bin/a.raf", "/s/bin/a.CR2"}, res.Sidecars)
	exists, _ := afero.Exists(fs, "/s/a.xmp")
	assert.True(t, exists)
}

func TestMover_MissingImage(t *testing.T) {
	m := NewMover(afero.NewMemMapFs(), "/s", nil)
	_, err := m.Bin(context.Background(), "/s/gone.jpg")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bin /s/gone.jpg")
}

func TestStemOf_Normalises(t *testing.T) {
	// "é" precomposed vs. e + combining acute
	assert.Equal(t, stemOf("caf\u00e9.jpg"), stemOf("cafe\u0301.RAF"))
}
