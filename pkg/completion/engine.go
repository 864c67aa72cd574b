package completion

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/jacksonhunter/PowerAuger-sub000/internal/logger"
	"github.com/jacksonhunter/PowerAuger-sub000/pkg/backend"
	"github.com/jacksonhunter/PowerAuger-sub000/pkg/frecency"
	"github.com/jacksonhunter/PowerAuger-sub000/pkg/pool"
)

// Rank weights per event kind. Executing a command is the strongest
// signal; a validated-but-unaccepted candidate barely registers.
const (
	executionWeight            = 1.0
	acceptanceWeight           = 0.7
	suggestionAcceptanceWeight = 0.5
	validationWeight           = 0.1
)

// AIClient is the slice of the backend the engine needs; *backend.Client
// satisfies it.
type AIClient interface {
	RequestCompletion(ctx context.Context, input string, contextCandidates, historyExamples []string, mode backend.Mode) string
}

// Config tunes the orchestrator.
type Config struct {
	MaxResults int
	CacheTTL   time.Duration
	JobTimeout time.Duration
	Mode       backend.Mode
}

// Engine composes the frecency store, the worker pool, the request cache
// and the AI backend. It is explicitly constructed with its dependencies;
// nothing here is a package-level singleton. Every public method converts
// internal failure into an empty result: nothing may error or panic into
// the shell's input-handling path.
type Engine struct {
	store   *frecency.Store
	pool    *pool.Pool
	cache   *RequestCache
	backend AIClient
	cfg     Config
	logger  *log.Logger
}

// NewEngine wires an engine. backend may be nil to run history-only.
func NewEngine(store *frecency.Store, workers *pool.Pool, ai AIClient, cfg Config) *Engine {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 8
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 10 * time.Second
	}
	if cfg.Mode == "" {
		cfg.Mode = backend.ModeInsert
	}
	return &Engine{
		store:   store,
		pool:    workers,
		cache:   NewRequestCache(cfg.CacheTTL),
		backend: ai,
		cfg:     cfg,
		logger:  logger.New("engine"),
	}
}

// GetCompletions is the synchronous path: frecency-ranked history for the
// prefix, in-memory only, microseconds.
func (e *Engine) GetCompletions(prefix string, maxResults int) (results []string) {
	defer e.recoverPanic("GetCompletions")
	if maxResults <= 0 || maxResults > e.cfg.MaxResults {
		maxResults = e.cfg.MaxResults
	}
	return e.store.TopCommands(prefix, maxResults)
}

// GetCompletionsAsync starts (or joins) the validated completion pipeline
// for (input, cursor) and returns a Future the caller may poll. Results
// typically surface on a subsequent keystroke, not the one that triggered
// the work.
func (e *Engine) GetCompletionsAsync(ctx context.Context, input string, cursor, maxResults int) *Future {
	future := newFuture()
	if maxResults <= 0 || maxResults > e.cfg.MaxResults {
		maxResults = e.cfg.MaxResults
	}
	sig := Signature(input, cursor)
	jobID := uuid.NewString()[:8]

	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Errorf("async job %s panicked: %v", jobID, r)
				future.resolve(nil)
			}
		}()

		candidates, err := e.cache.GetOrCompute(ctx, sig, func(jobCtx context.Context) ([]pool.Candidate, error) {
			return e.computeValidated(jobCtx, jobID, input, cursor)
		})
		if err != nil {
			e.logger.Debugf("async job %s: %v", jobID, err)
			future.resolve(nil)
			return
		}
		texts := make([]string, 0, len(candidates))
		for _, c := range candidates {
			texts = append(texts, c.Text)
			if len(texts) >= maxResults {
				break
			}
		}
		future.resolve(texts)
	}()
	return future
}

// computeValidated is the computeFn behind the request cache: one pooled
// slot, native candidates, validation, frecency feedback, and an
// opportunistic AI line.
func (e *Engine) computeValidated(ctx context.Context, jobID, input string, cursor int) ([]pool.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.JobTimeout)
	defer cancel()

	slot, err := e.pool.Checkout(ctx)
	if err != nil {
		return nil, err
	}
	defer e.pool.Checkin(slot)

	raw, err := slot.Complete(input, cursor)
	if err != nil {
		e.logger.Debugf("job %s: native completion failed: %v", jobID, err)
	}
	validated := ValidateCandidates(slot, raw)
	for _, c := range validated {
		e.store.IncrementRank(c.Text, validationWeight)
	}

	if e.backend != nil {
		if ai := e.aiSuggestion(ctx, slot, input, validated); ai != "" {
			validated = append([]pool.Candidate{{Text: ai, Kind: "ai"}}, validated...)
			e.store.IncrementRank(ai, validationWeight)
		}
	}
	e.logger.Debugf("job %s: %d raw, %d validated", jobID, len(raw), len(validated))
	return validated, nil
}

// aiSuggestion asks the backend for one line, framed by the candidates we
// already trust and recent high-frecency history, then validates it with
// the same rules as native candidates.
func (e *Engine) aiSuggestion(ctx context.Context, slot pool.Slot, input string, validated []pool.Candidate) string {
	contextCandidates := make([]string, 0, len(validated))
	for _, c := range validated {
		contextCandidates = append(contextCandidates, c.Text)
		if len(contextCandidates) >= 5 {
			break
		}
	}
	historyExamples := e.store.TopCommands(firstToken(input), 5)

	line := e.backend.RequestCompletion(ctx, input, contextCandidates, historyExamples, e.cfg.Mode)
	if line == "" || strings.EqualFold(line, input) {
		return ""
	}
	if kept := ValidateCandidates(slot, []pool.Candidate{{Text: line}}); len(kept) == 0 {
		return ""
	}
	return line
}

// RecordExecution feeds an executed command back into the ranking.
func (e *Engine) RecordExecution(text string) {
	defer e.recoverPanic("RecordExecution")
	e.store.IncrementRank(text, executionWeight)
}

// RecordAcceptance feeds an accepted completion back into the ranking.
func (e *Engine) RecordAcceptance(text string) {
	defer e.recoverPanic("RecordAcceptance")
	e.store.IncrementRank(text, acceptanceWeight)
}

// RecordSuggestionAcceptance feeds an accepted inline suggestion back into
// the ranking.
func (e *Engine) RecordSuggestionAcceptance(text string) {
	defer e.recoverPanic("RecordSuggestionAcceptance")
	e.store.IncrementRank(text, suggestionAcceptanceWeight)
}

// Stats aggregates component counters for the IPC stats op.
func (e *Engine) Stats() map[string]int {
	stats := e.store.Stats()
	stats["poolSize"] = e.pool.Size()
	stats["poolAvailable"] = e.pool.Available()
	stats["cachedRequests"] = e.cache.Len()
	return stats
}

// Close releases the request cache. The store and pool are owned by the
// composer and closed there.
func (e *Engine) Close() {
	e.cache.Close()
}

func (e *Engine) recoverPanic(op string) {
	if r := recover(); r != nil {
		e.logger.Errorf("%s panicked: %v", op, r)
	}
}

func firstToken(input string) string {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return input
	}
	return fields[0]
}
