// Package tui is the terminal front-end: it shows the current image as
// half-block art and maps keys onto the viewer session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ghyeongl/photocull/library"
	"github.com/ghyeongl/photocull/logging"
	"github.com/ghyeongl/photocull/prefetch"
	"github.com/ghyeongl/photocull/viewer"
)

const waitTimeout = 30 * time.Second

const helpText = "←/h prev  →/l/space next  r reload  e edit  d bin  q quit"

type viewMsg struct {
	view prefetch.View
	err  error
}

type loadMsg struct {
	event prefetch.LoadEvent
}

type actionMsg struct {
	kind string
	res  library.Result
	err  error
}

// Model is the bubbletea model for one session.
type Model struct {
	session *viewer.Session
	events  chan prefetch.LoadEvent

	view prefetch.View
	done bool

	width, height int
	preview       string
	previewKey    string

	status    string
	statusErr bool
}

// New creates a Model over s.
func New(s *viewer.Session) *Model {
	m := &Model{
		session: s,
		events:  s.Events().Subscribe(),
		width:   80,
		height:  24,
	}
	m.view, _ = s.Current()
	return m
}

// Run starts the program on the alternate screen and blocks until quit.
func Run(s *viewer.Session) error {
	m := New(s)
	defer s.Events().Unsubscribe(m.events)
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitCurrent(), m.listen())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.previewKey = ""
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg.String())

	case viewMsg:
		if errors.Is(msg.err, viewer.ErrNoMoreItems) {
			m.done = true
			return m, nil
		}
		if msg.err == nil {
			m.view = msg.view
		}
		return m, nil

	case loadMsg:
		cmds := []tea.Cmd{m.listen()}
		if !msg.event.Stale && msg.event.Item == m.view.Item {
			cmds = append(cmds, m.refresh())
		}
		return m, tea.Batch(cmds...)

	case actionMsg:
		return m, m.handleAction(msg)
	}
	return m, nil
}

func (m *Model) handleKey(key string) tea.Cmd {
	switch key {
	case "q", "ctrl+c", "esc":
		return tea.Quit
	}
	if m.done {
		return nil
	}

	switch key {
	case "right", "l", "n", " ":
		moved, err := m.session.Next()
		return m.afterStep(moved, err, "last image")
	case "left", "h", "p":
		moved, err := m.session.Prev()
		return m.afterStep(moved, err, "first image")
	case "r":
		if err := m.session.Reload(); err != nil {
			m.setStatus(err.Error(), true)
			return nil
		}
		m.setStatus("reloading", false)
		return m.refresh()
	case "e":
		return m.act("edit", m.session.Edit)
	case "d", "x", "delete":
		return m.act("bin", m.session.Delete)
	}
	return nil
}

func (m *Model) afterStep(moved bool, err error, edge string) tea.Cmd {
	if err != nil {
		m.setStatus(err.Error(), true)
		return nil
	}
	if !moved {
		m.setStatus("already at the "+edge, false)
		return nil
	}
	m.status = ""
	return m.refresh()
}

func (m *Model) act(kind string, fn func(context.Context) (library.Result, error)) tea.Cmd {
	return func() tea.Msg {
		res, err := fn(context.Background())
		return actionMsg{kind: kind, res: res, err: err}
	}
}

func (m *Model) handleAction(msg actionMsg) tea.Cmd {
	switch {
	case errors.Is(msg.err, viewer.ErrNoMoreItems):
		m.done = true
		m.setStatus("all images binned", false)
		return nil
	case msg.err != nil:
		logging.Sub("tui").Warn("action failed", "action", msg.kind, "err", msg.err)
		m.setStatus(fmt.Sprintf("%s failed: %v", msg.kind, msg.err), true)
		return nil
	}
	text := fmt.Sprintf("%s: %s", msg.kind, filepath.Base(msg.res.Image))
	if len(msg.res.Sidecars) > 0 {
		text += fmt.Sprintf(" (+%d sidecar)", len(msg.res.Sidecars))
	}
	m.setStatus(text, false)
	return m.refresh()
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status, m.statusErr = s, isErr
}

// refresh takes the current view now and waits for it to finish loading.
func (m *Model) refresh() tea.Cmd {
	v, err := m.session.Current()
	if errors.Is(err, viewer.ErrNoMoreItems) {
		m.done = true
		return nil
	}
	m.view = v
	if v.Status == prefetch.SlotLoading {
		return m.waitCurrent()
	}
	return nil
}

func (m *Model) waitCurrent() tea.Cmd {
	s := m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		v, err := s.Wait(ctx)
		return viewMsg{view: v, err: err}
	}
}

func (m *Model) listen() tea.Cmd {
	ch := m.events
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return loadMsg{event: ev}
	}
}

func (m *Model) View() string {
	if m.done {
		return lipgloss.JoinVertical(lipgloss.Left,
			headerStyle.Render("photocull"),
			"",
			placeholderStyle.Render("No images left in "+m.session.Folder()),
			"",
			helpStyle.Render("q quit"),
		)
	}

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		headerStyle.Render(m.view.Name),
		positionStyle.Render(fmt.Sprintf("%d/%d", m.view.Position, m.view.Total)),
	)

	bodyHeight := max(m.height-3, 1)
	body := m.renderBody(m.width, bodyHeight)

	status := helpStyle.Render(helpText)
	if m.status != "" {
		style := statusStyle
		if m.statusErr {
			style = errorStyle
		}
		status = style.Render(m.status) + "  " + status
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, status)
}

func (m *Model) renderBody(width, height int) string {
	var content string
	switch m.view.Status {
	case prefetch.SlotReady:
		key := fmt.Sprintf("%s#%d@%dx%d", m.view.Item, m.view.Ticket, width, height)
		if key != m.previewKey {
			m.preview = renderHalfBlocks(m.view.Image, width, height)
			m.previewKey = key
		}
		content = m.preview
	case prefetch.SlotFailed:
		msg := "could not load image"
		if m.view.Err != nil {
			msg = m.view.Err.Error()
		}
		content = errorStyle.Render(msg)
	default:
		content = placeholderStyle.Render("loading…")
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}
