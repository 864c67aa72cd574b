// Package shellparse implements a small command-line tokenizer and
// statement classifier. It is not a full shell grammar: the engine only
// needs to know the top-level shape of a candidate line (command, pipeline,
// assignment, conditional, loop) and the command name of each pipeline
// stage, so that is all this package resolves.
package shellparse

import (
	"fmt"
	"strings"
)

// Kind is the top-level shape of a parsed line.
type Kind int

const (
	KindEmpty Kind = iota
	KindCommand
	KindPipeline
	KindAssignment
	KindConditional
	KindLoop
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindCommand:
		return "command"
	case KindPipeline:
		return "pipeline"
	case KindAssignment:
		return "assignment"
	case KindConditional:
		return "conditional"
	case KindLoop:
		return "loop"
	}
	return "unknown"
}

// Stage is one segment of a pipeline: a command name plus its arguments.
type Stage struct {
	Name string
	Args []string
}

// Statement is the parsed top-level statement of a line.
type Statement struct {
	Kind   Kind
	Stages []Stage
}

var loopKeywords = map[string]bool{
	"for":     true,
	"foreach": true,
	"while":   true,
	"until":   true,
	"do":      true,
}

var conditionalKeywords = map[string]bool{
	"if":     true,
	"elseif": true,
	"switch": true,
}

// Parse tokenizes line and classifies its top-level statement.
// Unterminated quotes are a parse error; a line with no tokens yields
// KindEmpty with no stages.
func Parse(line string) (*Statement, error) {
	tokens, err := Tokenize(line)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return &Statement{Kind: KindEmpty}, nil
	}

	head := strings.ToLower(tokens[0])
	switch {
	case isAssignment(tokens):
		return &Statement{Kind: KindAssignment}, nil
	case conditionalKeywords[head]:
		return &Statement{Kind: KindConditional}, nil
	case loopKeywords[head]:
		return &Statement{Kind: KindLoop}, nil
	}

	stages := splitStages(tokens)
	kind := KindCommand
	if len(stages) > 1 {
		kind = KindPipeline
	}
	return &Statement{Kind: kind, Stages: stages}, nil
}

// isAssignment recognizes `$var = expr`, `$var=expr` and `name=value`
// shapes in the first token(s).
func isAssignment(tokens []string) bool {
	first := tokens[0]
	if strings.HasPrefix(first, "$") {
		if strings.Contains(first, "=") {
			return true
		}
		return len(tokens) > 1 && strings.HasPrefix(tokens[1], "=")
	}
	// name=value with a non-empty identifier before '='
	if i := strings.IndexByte(first, '='); i > 0 {
		return isIdentifier(first[:i])
	}
	return false
}

func isIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return len(s) > 0
}

// splitStages cuts the token stream on "|" tokens.
func splitStages(tokens []string) []Stage {
	var stages []Stage
	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}
		stage := Stage{Name: current[0]}
		if len(current) > 1 {
			stage.Args = current[1:]
		}
		stages = append(stages, stage)
		current = nil
	}

	for _, tok := range tokens {
		if tok == "|" {
			flush()
			continue
		}
		current = append(current, tok)
	}
	flush()
	return stages
}

// Tokenize splits line into tokens, honoring single quotes, double quotes
// and backtick escapes. Pipes are standalone tokens even when unspaced.
func Tokenize(line string) ([]string, error) {
	var tokens []string
	var buf strings.Builder
	var quote byte

	flush := func() {
		if buf.Len() > 0 {
			tokens = append(tokens, buf.String())
			buf.Reset()
		}
	}

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else {
				buf.WriteByte(c)
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '`':
			// backtick escapes the next character
			if i+1 < len(line) {
				i++
				buf.WriteByte(line[i])
			}
		case c == '|':
			flush()
			tokens = append(tokens, "|")
		case c == ' ' || c == '\t':
			flush()
		default:
			buf.WriteByte(c)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %q quote", string(quote))
	}
	flush()
	return tokens, nil
}
