package viewer

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ghyeongl/photocull/prefetch"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// WSCommand is sent by clients: {"cmd": "next"}.
type WSCommand struct {
	Cmd string `json:"cmd"`
}

// WSMessage is sent to clients. Exactly one of Event, Action or Error is set.
type WSMessage struct {
	Type   string              `json:"type"`
	Event  *prefetch.LoadEvent `json:"event,omitempty"`
	Action *ActionResponse     `json:"action,omitempty"`
	Error  string              `json:"error,omitempty"`
}

// HandleWS handles GET /api/ws: commands in, load events and command
// results out.
func (h *Handlers) HandleWS(w http.ResponseWriter, r *http.Request) {
	l := sub("ws")
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn("upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	bus := h.session.Events()
	events := bus.Subscribe()
	defer bus.Unsubscribe(events)

	out := make(chan WSMessage, 16)
	go h.readCommands(ctx, cancel, conn, out)

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	l.Info("client connected", "remote", conn.RemoteAddr().String())
	for {
		var msg WSMessage
		select {
		case <-ctx.Done():
			l.Info("client disconnected", "remote", conn.RemoteAddr().String())
			return
		case <-h.closing:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait)) //nolint:errcheck
			conn.WriteMessage(websocket.CloseMessage, //nolint:errcheck
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			msg = WSMessage{Type: "load", Event: &ev}
		case msg = <-out:
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait)) //nolint:errcheck
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait)) //nolint:errcheck
		if err := conn.WriteJSON(msg); err != nil {
			l.Debug("write failed", "err", err)
			return
		}
	}
}

// readCommands runs commands until the connection closes. All writes go
// through out so only the handler goroutine touches the connection.
func (h *Handlers) readCommands(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out chan<- WSMessage) {
	defer cancel()
	conn.SetReadDeadline(time.Now().Add(wsPongWait)) //nolint:errcheck
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var cmd WSCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		msg := h.runCommand(ctx, cmd)
		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handlers) runCommand(ctx context.Context, cmd WSCommand) WSMessage {
	var (
		resp ActionResponse
		err  error
	)
	switch cmd.Cmd {
	case "next":
		resp.Moved, err = h.session.Next()
	case "prev":
		resp.Moved, err = h.session.Prev()
	case "edit":
		res, e := h.session.Edit(ctx)
		if e != nil {
			err = e
			break
		}
		resp.Result = &res
	case "delete":
		res, e := h.session.Delete(ctx)
		switch {
		case errors.Is(e, ErrLastItemDeleted):
			resp.Moved, resp.Result, resp.Done = true, &res, true
		case e != nil:
			err = e
		default:
			resp.Moved, resp.Result = true, &res
		}
	case "current":
	default:
		return WSMessage{Type: "error", Error: "unknown command: " + cmd.Cmd}
	}
	if err != nil {
		return WSMessage{Type: "error", Error: err.Error()}
	}
	if !resp.Done {
		if v, err := h.session.Current(); err == nil {
			resp.Current = toCurrent(v)
		}
	}
	return WSMessage{Type: cmd.Cmd, Action: &resp}
}
