package viewer

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/tomasen/realip"

	"github.com/ghyeongl/photocull/decode"
	"github.com/ghyeongl/photocull/library"
	"github.com/ghyeongl/photocull/logging"
	"github.com/ghyeongl/photocull/prefetch"
)

// CurrentResponse describes the current image.
type CurrentResponse struct {
	Name     string `json:"name"`
	Item     string `json:"item"`
	Position int    `json:"position"`
	Total    int    `json:"total"`
	State    string `json:"state"`
	Error    string `json:"error,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Portrait bool   `json:"portrait,omitempty"`
}

// ActionResponse is returned by the navigation and culling endpoints.
type ActionResponse struct {
	Moved   bool             `json:"moved"`
	Result  *library.Result  `json:"result,omitempty"`
	Current *CurrentResponse `json:"current,omitempty"`
	Done    bool             `json:"done,omitempty"`
}

// StatsResponse holds session diagnostics.
type StatsResponse struct {
	Stats
	RSS          uint64          `json:"rss"`
	Uptime       string          `json:"uptime"`
	Subscribers  int             `json:"subscribers"`
	RecentErrors []logging.Entry `json:"recentErrors"`
}

// Handlers holds the HTTP handlers for one session.
type Handlers struct {
	session *Session
	started time.Time

	closing   chan struct{}
	closeOnce sync.Once
}

// NewHandlers creates the HTTP handlers.
func NewHandlers(s *Session) *Handlers {
	return &Handlers{session: s, started: time.Now(), closing: make(chan struct{})}
}

// Close ends every open event stream and websocket. Register it with
// http.Server.RegisterOnShutdown; Shutdown does not cancel request contexts.
func (h *Handlers) Close() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// Router registers every endpoint on a new mux router.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(logRequests)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/current", h.HandleCurrent).Methods(http.MethodGet)
	api.HandleFunc("/current/image", h.HandleImage).Methods(http.MethodGet)
	api.HandleFunc("/next", h.HandleNext).Methods(http.MethodPost)
	api.HandleFunc("/prev", h.HandlePrev).Methods(http.MethodPost)
	api.HandleFunc("/edit", h.HandleEdit).Methods(http.MethodPost)
	api.HandleFunc("/delete", h.HandleDelete).Methods(http.MethodPost)
	api.HandleFunc("/stats", h.HandleStats).Methods(http.MethodGet)
	api.HandleFunc("/events", h.HandleSSE).Methods(http.MethodGet)
	api.HandleFunc("/ws", h.HandleWS).Methods(http.MethodGet)
	return r
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		sub("http").Debug("request", "method", r.Method, "path", r.URL.Path,
			"remote", realip.FromRequest(r), "took", time.Since(start))
	})
}

func toCurrent(v prefetch.View) *CurrentResponse {
	c := &CurrentResponse{
		Name:     v.Name,
		Item:     v.Item,
		Position: v.Position,
		Total:    v.Total,
		State:    v.Status.String(),
	}
	if v.Err != nil {
		c.Error = v.Err.Error()
	}
	if v.Image != nil {
		c.Width, c.Height = v.Image.Width, v.Image.Height
		c.Portrait = v.Image.Portrait()
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeErr maps session errors to status codes.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoMoreItems):
		http.Error(w, err.Error(), http.StatusGone)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleCurrent handles GET /api/current. It does not wait for a pending load.
func (h *Handlers) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	v, err := h.session.Current()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCurrent(v))
}

// HandleImage handles GET /api/current/image. It waits for the current image
// to load and serves it as JPEG; a failed load answers 409.
func (h *Handlers) HandleImage(w http.ResponseWriter, r *http.Request) {
	l := sub("handlers")
	v, err := h.session.Wait(r.Context())
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		writeErr(w, err)
		return
	}
	if v.Status != prefetch.SlotReady || v.Image == nil {
		msg := "image unavailable"
		if v.Err != nil {
			msg = v.Err.Error()
		}
		http.Error(w, msg, http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Item-Name", v.Name)
	if err := imaging.Encode(w, decode.ToNRGBA(v.Image), imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		l.Warn("image encode failed", "item", v.Item, "err", err)
	}
}

// HandleNext handles POST /api/next.
func (h *Handlers) HandleNext(w http.ResponseWriter, r *http.Request) {
	h.step(w, h.session.Next)
}

// HandlePrev handles POST /api/prev.
func (h *Handlers) HandlePrev(w http.ResponseWriter, r *http.Request) {
	h.step(w, h.session.Prev)
}

func (h *Handlers) step(w http.ResponseWriter, move func() (bool, error)) {
	moved, err := move()
	if err != nil {
		writeErr(w, err)
		return
	}
	v, err := h.session.Current()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ActionResponse{Moved: moved, Current: toCurrent(v)})
}

// HandleEdit handles POST /api/edit.
func (h *Handlers) HandleEdit(w http.ResponseWriter, r *http.Request) {
	l := sub("handlers")
	res, err := h.session.Edit(r.Context())
	if err != nil {
		l.Error("edit failed", "err", err)
		writeErr(w, err)
		return
	}
	v, _ := h.session.Current()
	writeJSON(w, http.StatusOK, ActionResponse{Result: &res, Current: toCurrent(v)})
}

// HandleDelete handles POST /api/delete. Deleting the last image answers
// 200 with done set.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	l := sub("handlers")
	res, err := h.session.Delete(r.Context())
	switch {
	case errors.Is(err, ErrLastItemDeleted):
		writeJSON(w, http.StatusOK, ActionResponse{Moved: true, Result: &res, Done: true})
		return
	case err != nil:
		l.Error("delete failed", "err", err)
		writeErr(w, err)
		return
	}
	v, err := h.session.Current()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ActionResponse{Moved: true, Result: &res, Current: toCurrent(v)})
}

// HandleStats handles GET /api/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Stats:        h.session.Stats(),
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		Subscribers:  h.session.Events().Len(),
		RecentErrors: logging.RecentErrors(),
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := p.MemoryInfoWithContext(r.Context()); err == nil {
			resp.RSS = mem.RSS
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleSSE handles GET /api/events (Server-Sent Events stream of loads).
func (h *Handlers) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	bus := h.session.Events()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.closing:
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, _ := json.Marshal(event)
			fmt.Fprintf(w, "data: %s\n\n", data) //nolint:errcheck
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, ": heartbeat\n\n") //nolint:errcheck
			flusher.Flush()
		}
	}
}
