// Package httpapi serves read-only JSON queries over a loaded experience.
package httpapi

import (
	"errors"
	"net/http"
	"net/http/pprof"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/freeeve/chessexp/internal/chess"
	"github.com/freeeve/chessexp/internal/experience"
)

// Handler answers queries from one Experience.
type Handler struct {
	exp *experience.Experience
	log zerolog.Logger
}

// NewRouter returns the HTTP surface: /api/exp for position queries,
// /healthz and /readyz, and the pprof endpoints.
func NewRouter(log zerolog.Logger, exp *experience.Experience) http.Handler {
	h := &Handler{exp: exp, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("GET /readyz", h.ready)
	mux.HandleFunc("GET /api/exp", h.position)
	mux.HandleFunc("GET /api/stats", h.stats)

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return CORS(RequestID(AccessLog(log, mux)))
}

func (h *Handler) healthResponse() HealthResponse {
	st := h.exp.Stats()
	resp := HealthResponse{Status: "ok", Enabled: h.exp.Enabled(), Stats: st}
	switch {
	case !resp.Enabled:
		resp.Status = "disabled"
	case st.Loading:
		resp.Status = "loading"
	}
	return resp
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.healthResponse())
}

// ready fails until the experience file has been loaded.
func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	resp := h.healthResponse()
	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.exp.Stats())
}

// position handles GET /api/exp?fen=<FEN>&moves=<uci,...>&extended=1. A
// missing fen means the initial position.
func (h *Handler) position(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	pos, err := chess.NewPosition(q.Get("fen"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if moves := strings.FieldsFunc(q.Get("moves"), func(r rune) bool { return r == ',' || r == ' ' }); len(moves) > 0 {
		if err := pos.PlayUCI(moves); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	extended, _ := strconv.ParseBool(q.Get("extended"))

	cands, err := h.exp.Candidates(pos)
	if errors.Is(err, experience.ErrDisabled) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("fen", pos.FEN()).Msg("candidates")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := toExpResponse(pos, cands, extended)
	if o := h.exp.Opening(pos); o != nil {
		resp.Opening = &OpeningResponse{ECO: o.ECO, Name: o.Name}
	}
	writeJSON(w, http.StatusOK, resp)
}
