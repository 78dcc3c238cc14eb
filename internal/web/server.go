// Package web exposes the analyzer and the loaded score over HTTP for
// companion tools (practice dashboards, external mic front-ends). The server
// owns its score model; nothing else mutates it while serving.
package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/mwhitlock/clavier-go/internal/analyzer"
	"github.com/mwhitlock/clavier-go/internal/score"
	"github.com/mwhitlock/clavier-go/internal/theory"
)

type Server struct {
	log      *slog.Logger
	model    *score.Model
	analyzer *analyzer.Analyzer
}

func NewServer(model *score.Model, an *analyzer.Analyzer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{log: log, model: model, analyzer: an}
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/api/analyze", s.handleAnalyze).Methods("POST")
	router.HandleFunc("/api/score", s.handleScore).Methods("GET")
	return cors.Default().Handler(router)
}

func (s *Server) ListenAndServe(addr string) error {
	s.log.Info("serving", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

type analyzeRequest struct {
	// Mode optionally switches the analyzer before processing.
	Mode  analyzer.Mode `json:"mode,omitempty"`
	Peaks []theory.Peak `json:"peaks"`
}

type noteJSON struct {
	Name       string  `json:"name"`
	Octave     int     `json:"octave"`
	MIDI       int     `json:"midi"`
	Frequency  float64 `json:"frequency"`
	Cents      float64 `json:"cents"`
	Confidence float64 `json:"confidence"`
	Magnitude  float64 `json:"magnitude"`
}

type voiceJSON struct {
	Calibrating bool              `json:"calibrating"`
	Calibrated  bool              `json:"calibrated"`
	MinMIDI     int               `json:"minMidi,omitempty"`
	MaxMIDI     int               `json:"maxMidi,omitempty"`
	Register    analyzer.Register `json:"register,omitempty"`
	Note        *noteJSON         `json:"note,omitempty"`
}

type analyzeResponse struct {
	Mode   analyzer.Mode       `json:"mode"`
	Notes  []noteJSON          `json:"notes"`
	Key    *theory.Key         `json:"key,omitempty"`
	String *theory.StringMatch `json:"string,omitempty"`
	Voice  *voiceJSON          `json:"voice,omitempty"`
}

func toNoteJSON(n theory.Note) noteJSON {
	return noteJSON{
		Name:       n.Name,
		Octave:     n.Octave,
		MIDI:       n.MIDI,
		Frequency:  n.ExactFrequency,
		Cents:      n.CentsDeviation,
		Confidence: n.Confidence,
		Magnitude:  n.Magnitude,
	}
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if req.Mode != "" {
		if err := s.analyzer.SetMode(req.Mode); err != nil {
			s.log.Warn("rejected analyze request", "mode", req.Mode, "error", err)
			http.Error(w, "unknown analyzer mode", http.StatusBadRequest)
			return
		}
	}

	res := s.analyzer.Process(req.Peaks)
	resp := analyzeResponse{
		Mode:   s.analyzer.Mode(),
		Notes:  make([]noteJSON, 0, len(res.Notes)),
		Key:    res.Key,
		String: res.String,
	}
	for _, n := range res.Notes {
		resp.Notes = append(resp.Notes, toNoteJSON(n))
	}
	if res.Voice != nil {
		v := &voiceJSON{
			Calibrating: res.Voice.Calibrating,
			Calibrated:  res.Voice.Calibrated,
			MinMIDI:     res.Voice.MinMIDI,
			MaxMIDI:     res.Voice.MaxMIDI,
			Register:    res.Voice.Register,
		}
		if res.Voice.Note != nil {
			n := toNoteJSON(*res.Voice.Note)
			v.Note = &n
		}
		resp.Voice = v
	}
	writeJSON(w, s.log, resp)
}

type scoreResponse struct {
	Loaded   bool        `json:"loaded"`
	Title    string      `json:"title,omitempty"`
	Position float64     `json:"position"`
	Tempo    float64     `json:"tempo"`
	Playing  bool        `json:"playing"`
	Score    *score.Data `json:"score,omitempty"`
}

func (s *Server) handleScore(w http.ResponseWriter, _ *http.Request) {
	resp := scoreResponse{
		Loaded:   s.model.Loaded(),
		Position: s.model.Position(),
		Tempo:    s.model.Tempo(),
		Playing:  s.model.IsPlaying(),
	}
	if s.model.Loaded() {
		resp.Title = s.model.Data().Title
		resp.Score = s.model.Data()
	}
	writeJSON(w, s.log, resp)
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("encode response", "error", err)
	}
}
