package tui

import (
	"bytes"
	"image"
	"image/jpeg"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghyeongl/photocull/decode"
	"github.com/ghyeongl/photocull/prefetch"
	"github.com/ghyeongl/photocull/viewer"
)

func openTestSession(t *testing.T, names ...string) (*viewer.Session, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, n := range names {
		var buf bytes.Buffer
		require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 6)), nil))
		require.NoError(t, afero.WriteFile(fs, filepath.Join("/shoot", n), buf.Bytes(), 0o644))
	}
	s, err := viewer.Open(fs, decode.New(fs, decode.Options{}), viewer.Options{
		Folder:   "/shoot",
		Capacity: 4,
		Workers:  1,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, fs
}

func newTestModel(t *testing.T, s *viewer.Session) *Model {
	t.Helper()
	m := New(s)
	t.Cleanup(func() { s.Events().Unsubscribe(m.events) })
	return m
}

func key(s string) tea.KeyMsg {
	switch s {
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestRenderHalfBlocks(t *testing.T) {
	img := &prefetch.Image{Width: 2, Height: 2, Pix: []byte{
		255, 0, 0, 255, 0, 0,
		0, 0, 255, 0, 0, 255,
	}}
	out := renderHalfBlocks(img, 2, 1)
	assert.Equal(t, 2, strings.Count(out, "\x1b[38;2;255;0;0m\x1b[48;2;0;0;255m▀"))
	assert.NotContains(t, out, "\n")
	assert.True(t, strings.HasSuffix(out, "\x1b[0m"))
}

func TestRenderHalfBlocks_Empty(t *testing.T) {
	assert.Empty(t, renderHalfBlocks(nil, 10, 10))
	assert.Empty(t, renderHalfBlocks(&prefetch.Image{Width: 1, Height: 1, Pix: []byte{1, 2, 3}}, 0, 10))
}

func TestRenderHalfBlocks_OddHeight(t *testing.T) {
	img := &prefetch.Image{Width: 1, Height: 3, Pix: make([]byte, 9)}
	out := renderHalfBlocks(img, 1, 2)
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Equal(t, 2, strings.Count(out, "▀"))
}

func TestModel_Navigate(t *testing.T) {
	s, _ := openTestSession(t, "a.JPG", "b.JPG", "c.JPG")
	m := newTestModel(t, s)
	assert.Equal(t, "a.JPG", m.view.Name)

	m.Update(key("right"))
	assert.Equal(t, "b.JPG", m.view.Name)
	assert.Equal(t, 2, m.view.Position)

	m.Update(key("l"))
	m.Update(key("l"))
	assert.Equal(t, "c.JPG", m.view.Name)
	assert.Contains(t, m.status, "last image")

	m.Update(key("left"))
	m.Update(key("h"))
	assert.Equal(t, "a.JPG", m.view.Name)
	m.Update(key("p"))
	assert.Contains(t, m.status, "first image")
}

func TestModel_Quit(t *testing.T) {
	s, _ := openTestSession(t, "a.JPG")
	m := newTestModel(t, s)

	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_Edit(t *testing.T) {
	s, fs := openTestSession(t, "a.JPG", "b.JPG")
	m := newTestModel(t, s)

	_, cmd := m.Update(key("e"))
	require.NotNil(t, cmd)
	m.Update(cmd())

	assert.False(t, m.statusErr)
	assert.Contains(t, m.status, "edit: a.JPG")
	ok, err := afero.Exists(fs, "/shoot/edit/a.JPG")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a.JPG", m.view.Name)
}

func TestModel_DeleteUntilDone(t *testing.T) {
	s, fs := openTestSession(t, "a.JPG", "b.JPG")
	m := newTestModel(t, s)

	_, cmd := m.Update(key("d"))
	require.NotNil(t, cmd)
	m.Update(cmd())
	assert.Equal(t, "b.JPG", m.view.Name)
	assert.Equal(t, 1, m.view.Total)

	_, cmd = m.Update(key("x"))
	require.NotNil(t, cmd)
	m.Update(cmd())
	assert.True(t, m.done)
	assert.Contains(t, m.View(), "No images left")

	for _, n := range []string{"a.JPG", "b.JPG"} {
		ok, err := afero.Exists(fs, filepath.Join("/shoot/bin", n))
		require.NoError(t, err)
		assert.True(t, ok, n)
	}

	// navigation keys are ignored once done
	_, cmd = m.Update(key("right"))
	assert.Nil(t, cmd)
}

func TestModel_View(t *testing.T) {
	s, _ := openTestSession(t, "a.JPG", "b.JPG")
	m := newTestModel(t, s)
	m.Update(tea.WindowSizeMsg{Width: 40, Height: 12})
	m.Update(m.waitCurrent()())

	out := m.View()
	assert.Contains(t, out, "a.JPG")
	assert.Contains(t, out, "1/2")
	assert.Contains(t, out, "▀")
	assert.Contains(t, out, "q quit")
}

func TestModel_LoadEventRefreshesCurrent(t *testing.T) {
	s, _ := openTestSession(t, "a.JPG", "b.JPG")
	m := newTestModel(t, s)
	m.view.Status = prefetch.SlotLoading

	_, cmd := m.Update(loadMsg{event: prefetch.LoadEvent{Item: m.view.Item}})
	require.NotNil(t, cmd)
	assert.Equal(t, prefetch.SlotReady, m.view.Status)
}

func TestModel_ReloadRerendersPreview(t *testing.T) {
	s, fs := openTestSession(t, "a.JPG", "b.JPG")
	m := newTestModel(t, s)
	m.Update(tea.WindowSizeMsg{Width: 40, Height: 12})
	m.Update(m.waitCurrent()())
	before := m.View()
	require.Contains(t, before, "▀")

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 6)), nil))
	require.NoError(t, afero.WriteFile(fs, "/shoot/a.JPG", buf.Bytes(), 0o644))

	_, cmd := m.Update(key("r"))
	require.NotNil(t, cmd)
	m.Update(cmd())
	require.Equal(t, prefetch.SlotReady, m.view.Status)
	assert.Equal(t, 4, m.view.Image.Width)

	after := m.View()
	assert.NotEqual(t, before, after)
	assert.Less(t, strings.Count(after, "▀"), strings.Count(before, "▀"))
}
