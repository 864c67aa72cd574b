// Package cli handles cmd line input and suggestions for DBG and testing various features
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jacksonhunter/PowerAuger-sub000/pkg/completion"
)

// InputHandler processes user input from stdin, printing both the
// synchronous frecency suggestions and, after a short poll, the async
// validated ones.
type InputHandler struct {
	engine          *completion.Engine
	minInputLength  int
	maxInputLength  int
	suggestLimit    int
	asyncPollBudget time.Duration
}

// NewInputHandler handles initialization of the InputHandler with basic parameters
func NewInputHandler(engine *completion.Engine, minLength, maxLength, limit int) *InputHandler {
	return &InputHandler{
		engine:          engine,
		minInputLength:  minLength,
		maxInputLength:  maxLength,
		suggestLimit:    limit,
		asyncPollBudget: 2 * time.Second,
	}
}

// Start begins the interface loop.
// It continuously prompts for input, reads a line from stdin,
// and passes the trimmed input to handleInput() for processing.
// Loop terminates if an error occurs while reading from stdin
func (h *InputHandler) Start() error {
	log.Print("PowerAuger CLI [DBG]")
	reader := bufio.NewReader(os.Stdin)
	log.Print("type a partial command and press Enter to see suggestions (Ctrl+C to exit):")

	for {
		log.Print("> ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		input = strings.TrimRight(input, "\r\n")
		if strings.TrimSpace(input) == "" {
			continue
		}
		h.handleInput(input)
	}
}

// handleInput runs one completion round for a partial command line.
func (h *InputHandler) handleInput(input string) {
	if len(input) < h.minInputLength {
		log.Errorf("Input too short: %s", input)
		return
	}
	if len(input) > h.maxInputLength {
		log.Errorf("Input too long: %s", input)
		return
	}

	start := time.Now()
	sync := h.engine.GetCompletions(input, h.suggestLimit)
	log.Debugf("Took [ %v ] for sync prefix '%s'", time.Since(start), input)

	if len(sync) == 0 {
		log.Warnf("No history suggestions for: '%s'", input)
	} else {
		log.Printf("History suggestions for '%s':", input)
		printSuggestions(sync)
	}

	future := h.engine.GetCompletionsAsync(context.Background(), input, len(input), h.suggestLimit)
	ctx, cancel := context.WithTimeout(context.Background(), h.asyncPollBudget)
	defer cancel()

	validated, err := future.Wait(ctx)
	if err != nil {
		log.Warnf("Async suggestions still pending after %v", h.asyncPollBudget)
		return
	}
	if len(validated) == 0 {
		log.Warnf("No validated suggestions for: '%s'", input)
		return
	}
	log.Printf("Validated suggestions for '%s':", input)
	printSuggestions(validated)
}

func printSuggestions(texts []string) {
	for i, text := range texts {
		clText := fmt.Sprintf("\033[38;5;75m%s\033[0m", text)
		log.Printf("%2d. %s", i+1, clText)
	}
}
