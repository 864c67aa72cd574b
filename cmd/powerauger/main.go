/*
Package main implements the PowerAuger completion engine server and CLI [DBG] application.

PowerAuger serves AI-assisted, history-ranked completions for an
interactive shell. Commands observed from history and accepted
suggestions are ranked by frecency (frequency blended with recency) in a
prefix trie, so the synchronous lookup path answers in microseconds.
Heavier work — interpreter-backed candidate validation and requests to a
local AI backend — runs on worker slots and surfaces on later requests,
never blocking the shell's input loop.

# Usage

Start the IPC server with default settings:

	powerauger

Use a custom data directory and enable debug mode:

	powerauger -data /path/to/state -d

Run in CLI mode for interactive testing:

	powerauger -c -limit 10

On first start (no snapshot yet) the store seeds itself from the shell
history file, keeping only lines that parse as plain commands or
pipelines.

# Configuration

Runtime configuration is managed through a TOML file, created with
defaults if missing:

	[store]
	capacity = 2000
	score_ceiling = 10000.0
	decay_factor = 0.75

	[backend]
	url = "http://127.0.0.1:11434"
	model = "qwen2.5-coder:1.5b"
	timeout_ms = 4000
	failure_threshold = 3
	cooldown_sec = 60

# IPC Protocol

The server communicates via MessagePack over stdin/stdout. Synchronous
completion requests are processed inline with microsecond timing
information; async requests return a job id that is polled on subsequent
keystrokes. See the server package docs for the frame formats.
*/
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jacksonhunter/PowerAuger-sub000/internal/cli"
	"github.com/jacksonhunter/PowerAuger-sub000/internal/history"
	"github.com/jacksonhunter/PowerAuger-sub000/pkg/backend"
	"github.com/jacksonhunter/PowerAuger-sub000/pkg/completion"
	"github.com/jacksonhunter/PowerAuger-sub000/pkg/config"
	"github.com/jacksonhunter/PowerAuger-sub000/pkg/frecency"
	"github.com/jacksonhunter/PowerAuger-sub000/pkg/pool"
	"github.com/jacksonhunter/PowerAuger-sub000/pkg/server"
)

const (
	Version = "0.3.0-beta"
	AppName = "powerauger"
	gh      = "https://github.com/jacksonhunter/PowerAuger"
)

// sigHandler is a simple handler for OS signals to exit normally.
func sigHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		os.Exit(0)
	}()
}

// main calls other packages to initialize the server or CLI inputs.
// main() does not implement logic for them and only manages the flow.
func main() {
	sigHandler()
	defaultConfig := config.DefaultConfig()

	// custom Flags
	showVersion := flag.Bool("version", false, "Show current version")
	configPath := flag.String("config", "", "Path to config.toml")
	dataDir := flag.String("data", "", "Directory for snapshot state (defaults to the config dir)")
	debugMode := flag.Bool("d", false, "Toggle debug mode")
	cliMode := flag.Bool("c", false, "Run CLI -- useful for testing and debugging")
	limit := flag.Int("limit", defaultConfig.CLI.DefaultLimit, "Number of suggestions to return")
	minInput := flag.Int("prmin", defaultConfig.CLI.DefaultMinLen, "Minimum input length for suggestions")
	maxInput := flag.Int("prmax", defaultConfig.CLI.DefaultMaxLen, "Maximum input length for suggestions")
	histPath := flag.String("history", "", "History file to seed from on first start")
	noAI := flag.Bool("no-ai", false, "Disable the AI backend, history-only completions")

	flag.Parse()

	if *showVersion {
		fmt.Printf("[ PowerAuger ] AI-assisted shell completions\nversion %s\n%s\n", Version, gh)
		os.Exit(0)
	}

	if *debugMode {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
	} else {
		log.SetLevel(log.WarnLevel)
	}
	// stdout carries the IPC stream
	log.SetOutput(os.Stderr)

	cfg, cfgPath, err := config.LoadConfigWithPriority(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Debugf("Using config file: (%s)", cfgPath)

	resolvedDataDir := *dataDir
	if resolvedDataDir == "" {
		resolvedDataDir = cfg.Store.DataDir
	}
	if resolvedDataDir == "" {
		if configDir, err := config.GetConfigDir(); err == nil {
			resolvedDataDir = filepath.Join(configDir, "data")
		}
	}
	log.Debugf("Using data dir at: %s", resolvedDataDir)

	store := frecency.NewStore(frecency.Options{
		DataDir:      resolvedDataDir,
		Capacity:     cfg.Store.Capacity,
		ScoreCeiling: cfg.Store.ScoreCeiling,
		ScoreFloor:   cfg.Store.ScoreFloor,
		DecayFactor:  cfg.Store.DecayFactor,
		Interval:     cfg.MaintenanceInterval(),
	})
	defer func() {
		if err := store.Close(); err != nil {
			log.Errorf("Closing store: %v", err)
		}
	}()

	if err := store.Initialize(); err != nil {
		log.Warnf("Store init: %v", err)
	}
	if store.Len() == 0 {
		seedFromHistory(store, *histPath)
	}

	workers, err := pool.New(cfg.Pool.Size, pool.NewLocalFactory())
	if err != nil {
		log.Fatalf("Failed to init worker pool: %v", err)
	}
	defer workers.Close()

	var ai completion.AIClient
	if cfg.Backend.Enabled && !*noAI {
		ai = backend.NewClient(backend.Options{
			URL:              cfg.Backend.URL,
			Model:            cfg.Backend.Model,
			Timeout:          cfg.BackendTimeout(),
			FailureThreshold: cfg.Backend.FailureThreshold,
			Cooldown:         time.Duration(cfg.Backend.CooldownSec) * time.Second,
			RequestsPerSec:   cfg.Backend.RequestsPerSec,
		})
	}

	engine := completion.NewEngine(store, workers, ai, completion.Config{
		MaxResults: cfg.Completion.MaxResults,
		CacheTTL:   cfg.CacheTTL(),
	})
	defer engine.Close()

	// CLI would be mainly used for testing and dbg purposes.
	// Any new features or changes should be tested in CLI mode first.
	if *cliMode {
		log.SetReportTimestamp(false)
		inputHandler := cli.NewInputHandler(engine, *minInput, *maxInput, *limit)
		if err := inputHandler.Start(); err != nil {
			log.Fatalf("CLI error: %v", err)
		}
		return
	}

	log.Debug("spawning IPC")
	srv := server.NewServer(engine, cfg)
	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// seedFromHistory imports pre-filtered shell history into an empty store.
func seedFromHistory(store *frecency.Store, path string) {
	if path == "" {
		path = history.DefaultPath()
	}
	if path == "" {
		log.Debug("no history file found, starting empty")
		return
	}
	entries, err := history.Load(path, 2000)
	if err != nil {
		log.Warnf("history seed failed: %v", err)
		return
	}
	store.Seed(entries)
	log.Debugf("seeded store from %s", path)
}
