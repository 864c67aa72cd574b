package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/jacksonhunter/PowerAuger-sub000/pkg/completion"
	"github.com/jacksonhunter/PowerAuger-sub000/pkg/config"
)

// jobTTL bounds how long a finished async job stays pollable.
const jobTTL = time.Minute

type job struct {
	future    *completion.Future
	createdAt time.Time
}

// Server handles the IPC for the completion engine.
type Server struct {
	engine  *completion.Engine
	cfg     *config.Config
	decoder *msgpack.Decoder
	encoder *msgpack.Encoder

	writeMu sync.Mutex
	jobMu   sync.Mutex
	jobs    map[string]*job
}

// NewServer creates a completion server using stdin/stdout for IPC.
func NewServer(engine *completion.Engine, cfg *config.Config) *Server {
	return NewServerIO(engine, cfg, os.Stdin, os.Stdout)
}

// NewServerIO is the injectable-stream constructor used by tests.
func NewServerIO(engine *completion.Engine, cfg *config.Config, r io.Reader, w io.Writer) *Server {
	return &Server{
		engine:  engine,
		cfg:     cfg,
		decoder: msgpack.NewDecoder(r),
		encoder: msgpack.NewEncoder(w),
		jobs:    make(map[string]*job),
	}
}

// Start begins the request loop. It returns nil on clean EOF.
func (s *Server) Start() error {
	log.Debug("Starting server.")
	s.send(StatusResponse{Status: "ready"})

	for {
		var req Request
		if err := s.decoder.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			log.Errorf("Decoding request: %v", err)
			return err
		}
		s.handleRequest(req)
	}
}

func (s *Server) handleRequest(req Request) {
	switch req.Op {
	case "complete":
		s.handleComplete(req)
	case "complete_async":
		s.handleCompleteAsync(req)
	case "poll":
		s.handlePoll(req)
	case "record":
		s.handleRecord(req)
	case "stats":
		s.send(StatsResponse{ID: req.ID, Stats: s.engine.Stats()})
	case "health":
		s.send(StatusResponse{ID: req.ID, Status: "ok"})
	default:
		s.sendError(req.ID, fmt.Sprintf("unknown op: %s", req.Op), 400)
	}
}

func (s *Server) handleComplete(req Request) {
	if len(req.Prefix) < s.cfg.Server.MinPrefix {
		s.sendError(req.ID, "prefix too short", 400)
		return
	}
	if len(req.Prefix) > s.cfg.Server.MaxPrefix {
		s.sendError(req.ID, "prefix too long", 400)
		return
	}

	start := time.Now()
	texts := s.engine.GetCompletions(req.Prefix, s.clampLimit(req.Limit))
	s.send(CompleteResponse{
		ID:          req.ID,
		Suggestions: toSuggestions(texts),
		Count:       len(texts),
		TimeTaken:   time.Since(start).Microseconds(),
	})
}

func (s *Server) handleCompleteAsync(req Request) {
	if req.Input == "" {
		s.sendError(req.ID, "empty input", 400)
		return
	}
	future := s.engine.GetCompletionsAsync(context.Background(), req.Input, req.Cursor, s.clampLimit(req.Limit))
	jobID := uuid.NewString()

	s.jobMu.Lock()
	s.jobs[jobID] = &job{future: future, createdAt: time.Now()}
	s.expireJobsLocked()
	s.jobMu.Unlock()

	s.send(AsyncResponse{ID: req.ID, Job: jobID})
}

func (s *Server) handlePoll(req Request) {
	s.jobMu.Lock()
	j, ok := s.jobs[req.Job]
	s.jobMu.Unlock()

	if !ok {
		// expired or never existed: report done-empty, the shim falls back
		// to its sync results
		s.send(PollResponse{ID: req.ID, Job: req.Job, Done: true})
		return
	}
	texts, done := j.future.Poll()
	resp := PollResponse{ID: req.ID, Job: req.Job, Done: done}
	if done {
		resp.Suggestions = toSuggestions(texts)
		s.jobMu.Lock()
		delete(s.jobs, req.Job)
		s.jobMu.Unlock()
	}
	s.send(resp)
}

func (s *Server) handleRecord(req Request) {
	if req.Text == "" {
		s.sendError(req.ID, "empty text", 400)
		return
	}
	switch req.Kind {
	case RecordExecution:
		s.engine.RecordExecution(req.Text)
	case RecordAcceptance:
		s.engine.RecordAcceptance(req.Text)
	case RecordSuggestionAcceptance:
		s.engine.RecordSuggestionAcceptance(req.Text)
	default:
		s.sendError(req.ID, fmt.Sprintf("unknown record kind: %s", req.Kind), 400)
		return
	}
	s.send(StatusResponse{ID: req.ID, Status: "ok"})
}

// expireJobsLocked drops stale jobs; caller holds jobMu.
func (s *Server) expireJobsLocked() {
	cutoff := time.Now().Add(-jobTTL)
	for id, j := range s.jobs {
		if j.createdAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
}

func (s *Server) clampLimit(limit int) int {
	if limit <= 0 || limit > s.cfg.Server.MaxLimit {
		return s.cfg.Server.MaxLimit
	}
	return limit
}

func toSuggestions(texts []string) []Suggestion {
	out := make([]Suggestion, len(texts))
	for i, text := range texts {
		out[i] = Suggestion{Text: text, Rank: uint16(i + 1)}
	}
	return out
}

func (s *Server) send(response any) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.encoder.Encode(response); err != nil {
		log.Errorf("Encoding response: %v", err)
	}
}

func (s *Server) sendError(id, message string, code int) {
	s.send(StatusResponse{ID: id, Status: "error", Error: message, Code: code})
}
