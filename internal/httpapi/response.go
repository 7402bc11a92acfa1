package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/freeeve/chessexp/internal/chess"
	"github.com/freeeve/chessexp/internal/experience"
	"github.com/freeeve/chessexp/internal/store"
)

// ExpResponse is the answer to a position query.
type ExpResponse struct {
	FEN        string            `json:"fen"`
	Key        string            `json:"key"` // hex position key
	Opening    *OpeningResponse  `json:"opening,omitempty"`
	Candidates []CandidateResult `json:"candidates"`
}

type OpeningResponse struct {
	ECO  string `json:"eco"`
	Name string `json:"name"`
}

// CandidateResult is one stored move. Count and quality are only filled in
// for extended queries.
type CandidateResult struct {
	Rank      int    `json:"rank"`
	UCI       string `json:"uci"`
	SAN       string `json:"san"`
	Depth     int    `json:"depth"`
	CP        int    `json:"cp"`
	Mate      int    `json:"mate,omitempty"`
	Eval      string `json:"eval"`
	Count     *int   `json:"count,omitempty"`
	Quality   *int   `json:"quality,omitempty"`
	MaybeDraw bool   `json:"maybe_draw,omitempty"`
}

// HealthResponse reports whether the experience is usable.
type HealthResponse struct {
	Status  string      `json:"status"` // ok, loading, disabled
	Enabled bool        `json:"enabled"`
	Stats   store.Stats `json:"stats"`
}

func toExpResponse(pos *chess.Position, cands []experience.Candidate, extended bool) *ExpResponse {
	resp := &ExpResponse{
		FEN:        pos.FEN(),
		Key:        fmt.Sprintf("%016X", uint64(pos.Key())),
		Candidates: make([]CandidateResult, 0, len(cands)),
	}
	for i, c := range cands {
		cr := CandidateResult{
			Rank:  i + 1,
			UCI:   c.Move,
			SAN:   c.SAN,
			Depth: int(c.Depth),
			CP:    chess.Centipawns(c.Value),
			Eval:  c.Eval,
		}
		if m, ok := chess.MateIn(c.Value); ok {
			cr.Mate = m
		}
		if extended {
			count, quality := int(c.Count), c.Quality
			cr.Count, cr.Quality = &count, &quality
			cr.MaybeDraw = c.MaybeDraw
		}
		resp.Candidates = append(resp.Candidates, cr)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
