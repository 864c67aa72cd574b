package server

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/jacksonhunter/PowerAuger-sub000/pkg/completion"
	"github.com/jacksonhunter/PowerAuger-sub000/pkg/config"
	"github.com/jacksonhunter/PowerAuger-sub000/pkg/frecency"
	"github.com/jacksonhunter/PowerAuger-sub000/pkg/pool"
)

func init() {
	log.SetLevel(log.ErrorLevel)
}

func newTestEngine(t *testing.T) *completion.Engine {
	t.Helper()
	store := frecency.NewStore(frecency.Options{})
	workers, err := pool.New(1, pool.NewLocalFactory())
	require.NoError(t, err)
	engine := completion.NewEngine(store, workers, nil, completion.Config{})
	t.Cleanup(func() {
		engine.Close()
		workers.Close()
		_ = store.Close()
	})
	store.AddCommand("git status", 3.0)
	store.AddCommand("git stash", 1.0)
	return engine
}

// runRequests feeds pre-encoded requests through a server and decodes
// every response frame it wrote.
func runRequests(t *testing.T, engine *completion.Engine, requests ...Request) []map[string]any {
	t.Helper()
	var in bytes.Buffer
	enc := msgpack.NewEncoder(&in)
	for _, req := range requests {
		require.NoError(t, enc.Encode(req))
	}

	var out bytes.Buffer
	srv := NewServerIO(engine, config.DefaultConfig(), &in, &out)
	require.NoError(t, srv.Start())

	var responses []map[string]any
	dec := msgpack.NewDecoder(&out)
	for {
		var resp map[string]any
		if err := dec.Decode(&resp); err != nil {
			break
		}
		responses = append(responses, resp)
	}
	// first frame is the ready signal
	require.NotEmpty(t, responses)
	require.Equal(t, "ready", responses[0]["status"])
	return responses[1:]
}

func TestCompleteRoundTrip(t *testing.T) {
	engine := newTestEngine(t)
	responses := runRequests(t, engine, Request{ID: "r1", Op: "complete", Prefix: "git", Limit: 8})

	require.Len(t, responses, 1)
	resp := responses[0]
	assert.Equal(t, "r1", resp["id"])
	assert.EqualValues(t, 2, resp["c"])

	suggestions := resp["s"].([]any)
	first := suggestions[0].(map[string]any)
	assert.Equal(t, "git status", first["w"])
	assert.EqualValues(t, 1, first["r"])
}

func TestCompleteRejectsBadPrefix(t *testing.T) {
	engine := newTestEngine(t)
	responses := runRequests(t, engine,
		Request{ID: "short", Op: "complete", Prefix: ""},
		Request{ID: "unknown", Op: "bogus"},
	)

	require.Len(t, responses, 2)
	assert.Equal(t, "error", responses[0]["status"])
	assert.Equal(t, "error", responses[1]["status"])
}

func TestRecordOps(t *testing.T) {
	engine := newTestEngine(t)
	responses := runRequests(t, engine,
		Request{ID: "r1", Op: "record", Kind: RecordExecution, Text: "docker ps"},
		Request{ID: "r2", Op: "complete", Prefix: "docker"},
	)

	require.Len(t, responses, 2)
	assert.Equal(t, "ok", responses[0]["status"])
	assert.EqualValues(t, 1, responses[1]["c"])
}

func TestHealthAndStats(t *testing.T) {
	engine := newTestEngine(t)
	responses := runRequests(t, engine,
		Request{ID: "h", Op: "health"},
		Request{ID: "s", Op: "stats"},
	)

	require.Len(t, responses, 2)
	assert.Equal(t, "ok", responses[0]["status"])
	stats := responses[1]["stats"].(map[string]any)
	assert.Contains(t, stats, "entries")
}

func TestAsyncCompleteAndPoll(t *testing.T) {
	engine := newTestEngine(t)

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	srv := NewServerIO(engine, config.DefaultConfig(), inR, outW)
	go func() { _ = srv.Start() }()

	enc := msgpack.NewEncoder(inW)
	dec := msgpack.NewDecoder(outR)

	var ready map[string]any
	require.NoError(t, dec.Decode(&ready))

	require.NoError(t, enc.Encode(Request{ID: "a1", Op: "complete_async", Input: "git", Cursor: 3, Limit: 8}))
	var started AsyncResponse
	require.NoError(t, dec.Decode(&started))
	require.NotEmpty(t, started.Job)

	deadline := time.Now().Add(5 * time.Second)
	for {
		require.NoError(t, enc.Encode(Request{ID: "p", Op: "poll", Job: started.Job}))
		var polled PollResponse
		require.NoError(t, dec.Decode(&polled))
		if polled.Done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job never finished")
		}
		time.Sleep(20 * time.Millisecond)
	}

	// a finished job is removed; the next poll reports done-empty
	require.NoError(t, enc.Encode(Request{ID: "p2", Op: "poll", Job: started.Job}))
	var gone PollResponse
	require.NoError(t, dec.Decode(&gone))
	assert.True(t, gone.Done)
	assert.Empty(t, gone.Suggestions)

	inW.Close()
}
