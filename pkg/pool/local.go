package pool

import (
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jacksonhunter/PowerAuger-sub000/internal/shellparse"
)

// LocalSlot is the built-in interpreter session: command names come from
// PATH, argument completion from the filesystem, parsing from shellparse.
// A host embedding the engine in a richer shell supplies its own Slot
// instead.
type LocalSlot struct {
	pathOnce sync.Once
	pathCmds []string        // sorted command names from PATH, loaded once
	resolved map[string]bool // per-slot resolution cache, kept across Reset
	lastLine string          // per-request state, cleared on Reset
}

// NewLocalFactory returns a Factory producing LocalSlots.
func NewLocalFactory() Factory {
	return func(int) (Slot, error) {
		return &LocalSlot{resolved: make(map[string]bool)}, nil
	}
}

// Complete proposes command names for the first token and paths for
// arguments.
func (s *LocalSlot) Complete(input string, cursor int) ([]Candidate, error) {
	if cursor > len(input) {
		cursor = len(input)
	}
	s.lastLine = input[:cursor]

	tokens, err := shellparse.Tokenize(s.lastLine)
	if err != nil {
		return nil, err
	}

	endsInSpace := strings.HasSuffix(s.lastLine, " ") || strings.HasSuffix(s.lastLine, "\t")
	switch {
	case len(tokens) == 0:
		return nil, nil
	case len(tokens) == 1 && !endsInSpace:
		return s.completeCommand(s.lastLine, tokens[0]), nil
	default:
		partial := ""
		if !endsInSpace {
			partial = tokens[len(tokens)-1]
		}
		return s.completePath(s.lastLine, partial, endsInSpace), nil
	}
}

func (s *LocalSlot) completeCommand(line, partial string) []Candidate {
	s.loadPathCommands()
	lower := strings.ToLower(partial)
	var out []Candidate
	for _, name := range s.pathCmds {
		if strings.HasPrefix(strings.ToLower(name), lower) && name != partial {
			out = append(out, Candidate{
				Text:    name,
				Tooltip: "command",
				Kind:    "command",
			})
			if len(out) >= 32 {
				break
			}
		}
	}
	return out
}

func (s *LocalSlot) completePath(line, partial string, endsInSpace bool) []Candidate {
	pattern := partial + "*"
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return nil
	}
	prefix := line
	if !endsInSpace {
		prefix = line[:len(line)-len(partial)]
	}
	var out []Candidate
	for _, m := range matches {
		out = append(out, Candidate{
			Text:    prefix + m,
			Tooltip: "path",
			Kind:    "path",
		})
		if len(out) >= 32 {
			break
		}
	}
	return out
}

// ResolveCommand checks PATH (with a per-slot cache) plus a small builtin
// set.
func (s *LocalSlot) ResolveCommand(name string) bool {
	if name == "" {
		return false
	}
	if builtinCommands[strings.ToLower(name)] {
		return true
	}
	if hit, ok := s.resolved[name]; ok {
		return hit
	}
	_, err := exec.LookPath(name)
	s.resolved[name] = err == nil
	return err == nil
}

// Parse classifies the top-level statement of line.
func (s *LocalSlot) Parse(line string) (*shellparse.Statement, error) {
	return shellparse.Parse(line)
}

// Reset clears per-request state. The PATH listing and resolution cache
// are baseline capabilities and survive.
func (s *LocalSlot) Reset() {
	s.lastLine = ""
}

func (s *LocalSlot) loadPathCommands() {
	s.pathOnce.Do(func() {
		seen := make(map[string]bool)
		for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
			entries, err := os.ReadDir(dir)
			if err != nil {
				continue
			}
			for _, e := range entries {
				if e.IsDir() || seen[e.Name()] {
					continue
				}
				seen[e.Name()] = true
				s.pathCmds = append(s.pathCmds, e.Name())
			}
		}
		sort.Strings(s.pathCmds)
	})
}

var builtinCommands = map[string]bool{
	"cd":      true,
	"echo":    true,
	"exit":    true,
	"export":  true,
	"set":     true,
	"pwd":     true,
	"alias":   true,
	"source":  true,
	"history": true,
}
