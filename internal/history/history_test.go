package history

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.SetLevel(log.ErrorLevel)
}

func writeHistory(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFiltersAndAggregates(t *testing.T) {
	path := writeHistory(t, `
git status
git status
x=3
if true; then echo hi; fi
for f in *; do rm $f; done
ls -la | grep foo
#1699999999
: 1700000000:0;git push
`)

	entries, err := Load(path, 0)
	require.NoError(t, err)

	got := make(map[string]int)
	for _, e := range entries {
		got[e.Text] = e.Count
	}
	assert.Equal(t, 2, got["git status"])
	assert.Equal(t, 1, got["ls -la | grep foo"])
	assert.Equal(t, 1, got["git push"], "zsh extended format must be unwrapped")
	assert.NotContains(t, got, "x=3")
	assert.NotContains(t, got, "if true; then echo hi; fi")
	assert.NotContains(t, got, "for f in *; do rm $f; done")
}

func TestLoadLimitKeepsMostRecent(t *testing.T) {
	path := writeHistory(t, "first cmd\nsecond cmd\nthird cmd\n")

	entries, err := Load(path, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second cmd", entries[0].Text)
	assert.Equal(t, "third cmd", entries[1].Text)
}

func TestLoadMissingFile(t *testing.T) {
	entries, err := Load(filepath.Join(t.TempDir(), "absent"), 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
