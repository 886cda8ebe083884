// services/httpapi/httpapi.go

// Package httpapi is the HTTP control surface. Every route accepts GET and
// POST; path values are validated by the router patterns and clamped by the
// shared state.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"ledcontrol-go/errcode"
	"ledcontrol-go/services/notify"
	"ledcontrol-go/services/state"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	DefaultMaxBody = 16 << 20

	bodyNotFound   = "Oops... Not found :("
	bodyNotAllowed = "Oops... Not allowed :("
	bodyTooLarge   = "Oops... Too large :("
	bodyBadRequest = "Oops... Bad request :("

	// HeaderErrorCode carries the errcode of a failed request next to the
	// plain-text body.
	HeaderErrorCode = "X-Error-Code"
)

type Config struct {
	MaxBodyBytes int64
}

type Handler struct {
	st      *state.State
	log     *slog.Logger
	maxBody int64
}

func New(cfg Config, st *state.State, log *slog.Logger) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBody
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{st: st, log: log.With("service", "http"), maxBody: cfg.MaxBodyBytes}
}

// Router builds the chi router with middleware and all routes mounted.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errcode.NotFound, bodyNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errcode.NotAllowed, bodyNotAllowed)
	})

	getPost(r, "/", h.Index)
	getPost(r, "/shutdown", h.Shutdown)
	getPost(r, "/brightness/{value:-?[0-9]+}", h.Brightness)
	getPost(r, "/fps/{value:-?[0-9]+}", h.FPS)
	getPost(r, "/clear", h.Clear)
	getPost(r, "/animation", h.Animation)
	getPost(r, "/button_callback", h.ButtonCallback)
	getPost(r, "/status", h.Status)
	return r
}

func getPost(r chi.Router, pattern string, fn http.HandlerFunc) {
	r.Get(pattern, fn)
	r.Post(pattern, fn)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func writeError(w http.ResponseWriter, status int, c errcode.Code, body string) {
	w.Header().Set(HeaderErrorCode, string(c))
	writeText(w, status, body)
}

func ok(w http.ResponseWriter) { writeText(w, http.StatusOK, "ok") }

// parseLevel parses a decimal integer. Out-of-range values saturate so the
// caller's clamp still applies.
func parseLevel(s string) (int, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, err
	}
	switch {
	case v > int64(maxInt):
		return maxInt, nil
	case v < int64(minInt):
		return minInt, nil
	}
	return int(v), nil
}

const (
	maxInt = int(^uint(0) >> 1)
	minInt = -maxInt - 1
)

func (h *Handler) Index(w http.ResponseWriter, _ *http.Request) { ok(w) }

func (h *Handler) Shutdown(w http.ResponseWriter, _ *http.Request) {
	h.log.Info("shutdown requested over http")
	h.st.RequestShutdown()
	ok(w)
}

func (h *Handler) Brightness(w http.ResponseWriter, r *http.Request) {
	v, err := parseLevel(chi.URLParam(r, "value"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errcode.InvalidParams, bodyBadRequest)
		return
	}
	h.st.SetBrightness(v)
	ok(w)
}

func (h *Handler) FPS(w http.ResponseWriter, r *http.Request) {
	v, err := parseLevel(chi.URLParam(r, "value"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errcode.InvalidParams, bodyBadRequest)
		return
	}
	h.st.SetFPS(v)
	ok(w)
}

func (h *Handler) Clear(w http.ResponseWriter, _ *http.Request) {
	h.st.RequestClear()
	ok(w)
}

// Animation optionally clears and sets fps, then appends the body to the
// frame queue. It answers "<frames>,<delay>" where frames is the number of
// whole frames now buffered and delay is the frame period in seconds.
func (h *Handler) Animation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	fps, setFPS := 0, false
	if s := q.Get("fps"); s != "" {
		v, err := parseLevel(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, errcode.InvalidParams, bodyBadRequest)
			return
		}
		fps, setFPS = v, true
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, errcode.TooLarge, bodyTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, errcode.InvalidParams, bodyBadRequest)
		return
	}

	if q.Get("clear") == "1" {
		h.st.RequestClear()
	}
	if setFPS {
		h.st.SetFPS(fps)
	}
	frames := h.st.PushBytes(body)
	delay := 1 / float64(h.st.FPS())
	writeText(w, http.StatusOK, fmt.Sprintf("%d,%f", frames, delay))
}

// ButtonCallback registers the gesture webhook; an empty url unregisters it.
// A url without a scheme is stored as http. Anything that is not an http or
// https URL is refused and the current registration is kept.
func (h *Handler) ButtonCallback(w http.ResponseWriter, r *http.Request) {
	u, err := notify.Target(r.URL.Query().Get("url"))
	if err != nil {
		h.log.Warn("button callback rejected", "url", r.URL.Query().Get("url"), "err", err)
		writeError(w, http.StatusBadRequest, errcode.Of(err), bodyBadRequest)
		return
	}
	h.st.SetWebhook(u)
	h.log.Info("button callback set", "url", u)
	ok(w)
}

func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(h.st.Snapshot())
}

// requestLogger logs one line per request at Debug.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Debug("request",
			"id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes_in", r.ContentLength,
			"bytes_out", ww.BytesWritten())
	})
}
