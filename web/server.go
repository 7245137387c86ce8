// ABOUTME: HTTP server exposing the council engine over SSE plus conversation and history reads.
// ABOUTME: A thin chi router; all deliberation semantics live in the council package.

package web

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/2389-research/council/council"
	"github.com/2389-research/council/store"
)

// Server serves the council API.
type Server struct {
	engine        *council.Engine
	conversations *store.ConversationStore
	history       *store.RunHistory
	router        chi.Router
	addr          string
}

// ServerConfig holds the server's collaborators.
type ServerConfig struct {
	Addr          string // listen address (default "127.0.0.1:8080")
	Engine        *council.Engine
	Conversations *store.ConversationStore
	History       *store.RunHistory // optional; history routes 404 without it
}

// NewServer wires the router. The engine and conversation store are required.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("server requires an engine")
	}
	if cfg.Conversations == nil {
		return nil, fmt.Errorf("server requires a conversation store")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}

	s := &Server{
		engine:        cfg.Engine,
		conversations: cfg.Conversations,
		history:       cfg.History,
		addr:          cfg.Addr,
	}
	s.router = s.buildRouter()
	return s, nil
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/council/stream", s.handleStream)
		r.Get("/models", s.handleModels)
		r.Get("/conversations", s.handleListConversations)
		r.Get("/conversations/{id}", s.handleGetConversation)
		r.Get("/conversations/{id}/view", s.handleViewConversation)
		if s.history != nil {
			r.Get("/history", s.handleHistory)
		}
	})

	return r
}

// Handler returns the http.Handler for mounting or testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs the server until the listener fails.
func (s *Server) ListenAndServe() error {
	log.Printf("component=web action=listen addr=%s", s.addr)
	return http.ListenAndServe(s.addr, s.router)
}

// streamRequest is the body of POST /api/council/stream.
type streamRequest struct {
	Question string `json:"question"`
	Mode     string `json:"mode,omitempty"`
	Cycles   int    `json:"cycles,omitempty"`
}

// handleStream runs a deliberation and streams its events as SSE, one
// JSON-encoded event per data line. The stream ends when the run does.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var req streamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	mode := council.ModeRanking
	if req.Mode != "" {
		mode = council.Mode(req.Mode)
	}

	events, err := s.engine.Run(r.Context(), req.Question, council.RunOptions{
		Mode:   mode,
		Cycles: req.Cycles,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			log.Printf("component=web action=encode_event error=%v", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}

// handleModels reports the configured panel and chairman.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"council_models": s.engine.Participants(),
		"chairman_model": s.engine.Chairman(),
	})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.conversations.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type summary struct {
		ID        string `json:"id"`
		Title     string `json:"title"`
		Turns     int    `json:"turns"`
		UpdatedAt string `json:"updated_at"`
	}
	out := make([]summary, 0, len(convs))
	for _, conv := range convs {
		out = append(out, summary{
			ID:        conv.ID,
			Title:     conv.Title,
			Turns:     len(conv.Turns),
			UpdatedAt: conv.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.conversations.Load(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.history.Recent(50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("component=web action=encode_response error=%v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
