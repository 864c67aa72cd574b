// Package history seeds the frecency store from a shell history file when
// no snapshot exists yet. Lines are pre-filtered to plain command and
// pipeline statements; assignments, conditionals and loops never seed the
// ranking.
package history

import (
	"bufio"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/jacksonhunter/PowerAuger-sub000/internal/shellparse"
	"github.com/jacksonhunter/PowerAuger-sub000/pkg/frecency"
)

// Load reads a history file and returns aggregated seed entries, most
// frequent first retained up to limit distinct commands. A missing file is
// not an error; it returns no entries.
func Load(path string, limit int) ([]frecency.HistoryEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	counts := make(map[string]int)
	var order []string

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := cleanLine(scanner.Text())
		if line == "" {
			continue
		}
		stmt, err := shellparse.Parse(line)
		if err != nil {
			continue
		}
		switch stmt.Kind {
		case shellparse.KindCommand, shellparse.KindPipeline:
		default:
			continue
		}
		if _, seen := counts[line]; !seen {
			order = append(order, line)
		}
		counts[line]++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if limit > 0 && len(order) > limit {
		// keep the most recent distinct commands
		order = order[len(order)-limit:]
	}
	entries := make([]frecency.HistoryEntry, 0, len(order))
	for _, line := range order {
		entries = append(entries, frecency.HistoryEntry{Text: line, Count: counts[line]})
	}
	log.Debugf("history: %d distinct commands from %s", len(entries), path)
	return entries, nil
}

// cleanLine strips history-file decorations: bash timestamp comments and
// the zsh extended format ": <ts>:<dur>;cmd".
func cleanLine(line string) string {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return ""
	}
	if strings.HasPrefix(line, ": ") {
		if i := strings.IndexByte(line, ';'); i > 0 {
			line = strings.TrimSpace(line[i+1:])
		}
	}
	return line
}

// DefaultPath guesses the active shell's history file.
func DefaultPath() string {
	if histFile := os.Getenv("HISTFILE"); histFile != "" {
		return histFile
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	for _, name := range []string{".zsh_history", ".bash_history"} {
		candidate := home + string(os.PathSeparator) + name
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
