package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/jacksonhunter/PowerAuger-sub000/internal/logger"
	"github.com/jacksonhunter/PowerAuger-sub000/internal/utils"
)

// Mode selects the request shape.
type Mode string

const (
	// ModeInsert is the fill-in-middle shape: prefix/suffix framing,
	// deterministic low-temperature sampling.
	ModeInsert Mode = "insert"
	// ModeChat is the conversational shape with few-shot framing.
	ModeChat Mode = "chat"
)

const maxPredictTokens = 64

// Options configures a Client.
type Options struct {
	URL              string
	Model            string
	Timeout          time.Duration
	FailureThreshold int
	Cooldown         time.Duration
	RequestsPerSec   float64
}

// Client issues completion requests to an Ollama-compatible HTTP API.
// Both request shapes share one breaker and one rate limiter.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
	breaker *Breaker
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewClient builds a client with a hard sub-5s per-call timeout.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 || opts.Timeout > 5*time.Second {
		opts.Timeout = 4 * time.Second
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 2
	}
	return &Client{
		baseURL: strings.TrimRight(opts.URL, "/"),
		model:   opts.Model,
		http:    &http.Client{Timeout: opts.Timeout},
		breaker: NewBreaker(opts.FailureThreshold, opts.Cooldown),
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1),
		logger:  logger.New("backend"),
	}
}

// Breaker exposes the shared breaker for stats reporting.
func (c *Client) Breaker() *Breaker {
	return c.breaker
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Suffix  string         `json:"suffix,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Message is one role-tagged chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message Message `json:"message"`
}

// Generate issues a fill-in-middle request: prompt frames the text before
// the gap, suffix the text after it.
func (c *Client) Generate(ctx context.Context, prompt, suffix string) (string, error) {
	req := generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Suffix: suffix,
		Stream: false,
		Options: map[string]any{
			"temperature": 0,
			"num_predict": maxPredictTokens,
		},
	}
	var resp generateResponse
	if err := c.post(ctx, "/api/generate", req, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

// Chat issues a conversational request.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	req := chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options: map[string]any{
			"temperature": 0.2,
			"num_predict": maxPredictTokens,
		},
	}
	var resp chatResponse
	if err := c.post(ctx, "/api/chat", req, &resp); err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// post runs one breaker-guarded, rate-limited HTTP round trip. Timeouts,
// network errors and non-2xx statuses all count as breaker failures.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	if !c.limiter.Allow() {
		return fmt.Errorf("backend: rate limited")
	}
	if !c.breaker.Allow() {
		return fmt.Errorf("backend: circuit open")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.Failure()
		return fmt.Errorf("backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		c.breaker.Failure()
		return fmt.Errorf("backend: status %d from %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.breaker.Failure()
		return fmt.Errorf("backend: decoding response: %w", err)
	}
	c.breaker.Success()
	return nil
}

// RequestCompletion builds the prompt for the requested mode, calls the
// backend and returns a cleaned full command line, or "" when the backend
// is unavailable, short-circuited or unhelpful. Failures never propagate:
// they are logged and absorbed here.
func (c *Client) RequestCompletion(ctx context.Context, input string, contextCandidates, historyExamples []string, mode Mode) string {
	var raw string
	var err error

	switch mode {
	case ModeChat:
		raw, err = c.Chat(ctx, chatMessages(input, contextCandidates, historyExamples))
	default:
		raw, err = c.Generate(ctx, insertPrompt(input, historyExamples), "")
	}
	if err != nil {
		c.logger.Debugf("completion request failed: %v", err)
		return ""
	}
	return CleanResponse(raw, input)
}

// insertPrompt frames recent history above the partial line so the model
// continues it in context.
func insertPrompt(input string, historyExamples []string) string {
	var b strings.Builder
	for _, h := range historyExamples {
		b.WriteString(h)
		b.WriteByte('\n')
	}
	b.WriteString(input)
	return b.String()
}

func chatMessages(input string, contextCandidates, historyExamples []string) []Message {
	msgs := []Message{{
		Role: "system",
		Content: "You complete partial shell command lines. " +
			"Reply with exactly one completed command line and nothing else.",
	}}
	for _, h := range historyExamples {
		msgs = append(msgs,
			Message{Role: "user", Content: firstWord(h)},
			Message{Role: "assistant", Content: h},
		)
	}
	if len(contextCandidates) > 0 {
		msgs = append(msgs, Message{
			Role:    "user",
			Content: "Known completions for context:\n" + strings.Join(contextCandidates, "\n"),
		})
	}
	msgs = append(msgs, Message{Role: "user", Content: input})
	return msgs
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i > 0 {
		return s[:i]
	}
	return s
}

var framingTokens = []string{
	"<EOT>", "<|endoftext|>", "<|im_end|>", "</s>", "```",
}

// CleanResponse strips backend framing and resolves the reply against the
// original input: a reply that already starts with the input is a full
// replacement line, anything else is a suffix to append.
func CleanResponse(raw, input string) string {
	reply := raw
	for _, tok := range framingTokens {
		reply = strings.ReplaceAll(reply, tok, "")
	}
	if i := strings.IndexByte(reply, '\n'); i >= 0 {
		reply = reply[:i]
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return ""
	}
	if utils.HasPrefixIgnoreCase(reply, input) {
		return reply
	}
	if strings.HasSuffix(input, " ") || strings.HasPrefix(reply, " ") {
		return strings.TrimRight(input, " ") + " " + strings.TrimLeft(reply, " ")
	}
	return input + reply
}
