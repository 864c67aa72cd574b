/*
Package server implements msgpack IPC for the completion engine.

The server reads msgpack-encoded requests from stdin and writes responses
to stdout, one object per frame, which lets a shell shim embed the engine
as a child process without a socket. Synchronous completion answers come
back on the same frame exchange in microseconds; async (validated / AI)
completions return a job id immediately and are fetched later with a poll
request, so the shell's input loop never waits on the network.

Ops:

	{"id": "r1", "op": "complete", "p": "git st", "l": 8}
	{"id": "r2", "op": "complete_async", "in": "git st", "cur": 6, "l": 8}
	{"id": "r3", "op": "poll", "job": "<job id from r2>"}
	{"id": "r4", "op": "record", "k": "execution", "x": "git status"}
	{"id": "r5", "op": "stats"}
	{"id": "r6", "op": "health"}

msgpack encoding keeps frames ~30 to 50% smaller than JSON and cheap to
parse on both ends.
*/
package server

// Request is one incoming frame. Op selects the operation; the other
// fields are op-specific.
type Request struct {
	ID     string `msgpack:"id"`
	Op     string `msgpack:"op"`
	Prefix string `msgpack:"p,omitempty"`
	Input  string `msgpack:"in,omitempty"`
	Cursor int    `msgpack:"cur,omitempty"`
	Limit  int    `msgpack:"l,omitempty"`
	Kind   string `msgpack:"k,omitempty"`
	Text   string `msgpack:"x,omitempty"`
	Job    string `msgpack:"job,omitempty"`
}

// Record kinds for the "record" op.
const (
	RecordExecution            = "execution"
	RecordAcceptance           = "acceptance"
	RecordSuggestionAcceptance = "suggestion"
)

// Suggestion - minimal suggestion response
type Suggestion struct {
	Text string `msgpack:"w"`
	Rank uint16 `msgpack:"r"`
}

// CompleteResponse answers a "complete" op.
type CompleteResponse struct {
	ID          string       `msgpack:"id"`
	Suggestions []Suggestion `msgpack:"s"`
	Count       int          `msgpack:"c"`
	TimeTaken   int64        `msgpack:"t"`
}

// AsyncResponse answers a "complete_async" op with the job handle.
type AsyncResponse struct {
	ID  string `msgpack:"id"`
	Job string `msgpack:"job"`
}

// PollResponse answers a "poll" op. Done is false while the job is still
// computing; an unknown (expired) job is Done with no suggestions.
type PollResponse struct {
	ID          string       `msgpack:"id"`
	Job         string       `msgpack:"job"`
	Done        bool         `msgpack:"d"`
	Suggestions []Suggestion `msgpack:"s,omitempty"`
}

// StatusResponse acknowledges record/health ops and carries errors.
type StatusResponse struct {
	ID     string `msgpack:"id"`
	Status string `msgpack:"status"`
	Error  string `msgpack:"e,omitempty"`
	Code   int    `msgpack:"c,omitempty"`
}

// StatsResponse answers a "stats" op with engine counters.
type StatsResponse struct {
	ID    string         `msgpack:"id"`
	Stats map[string]int `msgpack:"stats"`
}
