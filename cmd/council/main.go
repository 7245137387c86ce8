// ABOUTME: CLI entrypoint for the council deliberation engine with query, chat, models, history, and serve modes.
// ABOUTME: Wires together the gateway client, tool registry, engine, stores, and signal handling.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/2389-research/council/config"
	"github.com/2389-research/council/council"
	"github.com/2389-research/council/llm"
	"github.com/2389-research/council/store"
	"github.com/2389-research/council/tools"
	"github.com/2389-research/council/tui"
	"github.com/2389-research/council/web"
)

var version = "dev"

func main() {
	loadDotEnvAuto()
	os.Exit(run(os.Args[1:]))
}

// run dispatches to the appropriate subcommand. Arguments that do not start
// with a known subcommand are treated as a query.
// Returns an exit code: 0 for success, 1 for failure, 2 for usage errors.
func run(args []string) int {
	if len(args) > 0 {
		switch args[0] {
		case "version", "-version", "--version":
			fmt.Printf("council %s\n", version)
			return 0
		case "help", "-help", "--help", "-h":
			printHelp(os.Stdout, version)
			return 0
		}
	}

	sub := "query"
	if len(args) > 0 && isSubcommand(args[0]) {
		sub, args = args[0], args[1:]
	}

	switch sub {
	case "query":
		return runQuery(args)
	case "chat":
		return runChat(args)
	case "models":
		return runModels(args)
	case "history":
		return runHistory(args)
	case "serve":
		return runServe(args)
	default:
		printHelp(os.Stderr, version)
		return 2
	}
}

// isSubcommand reports whether arg names an explicit subcommand.
func isSubcommand(arg string) bool {
	switch arg {
	case "query", "chat", "models", "history", "serve":
		return true
	}
	return false
}

// newFlagSet creates a flag set with the shared -config flag and help wiring.
func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configPath := fs.String("config", "council.yaml", "Path to the YAML config file")
	fs.Usage = func() {
		printHelp(os.Stderr, version)
	}
	return fs, configPath
}

// parseFlags parses args, translating -help into a clean exit.
func parseFlags(fs *flag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0, false
		}
		return 2, false
	}
	return 0, true
}

// buildClient constructs the gateway client for the configured driver.
func buildClient(cfg config.Config) (*llm.Client, error) {
	key := config.OpenRouterKey()
	if key == "" {
		return nil, errors.New("OPENROUTER_API_KEY is not set")
	}

	var adapter llm.ProviderAdapter
	switch cfg.Driver {
	case config.DriverSDK:
		adapter = llm.NewOpenAICompatAdapter(key, cfg.BaseURL)
	default:
		adapter = llm.NewOpenRouterAdapter(key, llm.WithOpenRouterBaseURL(cfg.BaseURL))
	}

	return llm.NewClient(adapter,
		llm.WithRequestTimeout(cfg.RequestTimeout),
		llm.WithMaxToolCalls(cfg.MaxToolCalls),
	), nil
}

// buildRegistry assembles the tool registry. Simple mode leaves it empty so
// participants answer from their own knowledge.
func buildRegistry(simple bool) (*tools.Registry, error) {
	registry := tools.NewRegistry()
	if simple {
		return registry, nil
	}
	if err := registry.Register(tools.SearchTool(tools.NewSearcher(config.TavilyKey()))); err != nil {
		return nil, fmt.Errorf("registering search tool: %w", err)
	}
	return registry, nil
}

// buildEngine wires the client, registry, and panel from config.
func buildEngine(cfg config.Config, useReact bool, simple bool) (*council.Engine, *llm.Client, error) {
	client, err := buildClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	registry, err := buildRegistry(simple)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	engine, err := council.NewEngine(client, registry, cfg.CouncilModels, cfg.ChairmanModel,
		council.WithReact(useReact),
		council.WithModelTimeout(cfg.RequestTimeout),
		council.WithTitleModel(cfg.TitleModel),
	)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return engine, client, nil
}

// openHistory opens the run-history database under the data directory.
func openHistory(cfg config.Config) (*store.RunHistory, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return store.OpenRunHistory(filepath.Join(cfg.DataDir, "runs.db"))
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// runQuery executes one deliberation and prints the synthesis to stdout.
func runQuery(args []string) int {
	fs, configPath := newFlagSet("query")
	debate := fs.Bool("debate", false, "Use the structured debate protocol instead of ranking")
	cycles := fs.Int("cycles", 0, "Critique-defense cycles in debate mode (default from config)")
	streamFlag := fs.Bool("stream", false, "Stream participants sequentially with live tokens")
	parallel := fs.Bool("parallel", false, "Force the batch-parallel executor")
	noReact := fs.Bool("no-react", false, "Disable the ReAct reasoning loop")
	simple := fs.Bool("simple", false, "Disable tools entirely; answers come from model knowledge")
	finalOnly := fs.Bool("final-only", false, "Print only the final synthesis")
	tuiMode := fs.Bool("tui", false, "Run with the live terminal display")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		printHelp(os.Stderr, version)
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	engine, client, err := buildEngine(cfg, cfg.UseReact && !*noReact && !*simple, *simple)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer client.Close()

	opts := council.RunOptions{Streaming: *streamFlag && !*parallel}
	mode := string(council.ModeRanking)
	if *debate {
		opts.Mode = council.ModeDebate
		opts.Cycles = cfg.DebateCycles
		if *cycles > 0 {
			opts.Cycles = *cycles
		}
		mode = string(council.ModeDebate)
	}

	ctx, cancel := signalContext()
	defer cancel()

	var synthesis string
	if *tuiMode {
		synthesis, err = tui.Run(ctx, engine, question, opts, !*finalOnly)
	} else {
		synthesis, err = consumeRun(ctx, engine, question, opts, *finalOnly)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	if !*tuiMode {
		fmt.Println(synthesis)
	}
	recordRun(cfg, mode, question, synthesis, len(cfg.CouncilModels))
	return 0
}

// consumeRun drains a deliberation, printing progress to stderr and streamed
// synthesis tokens to stdout. It returns the synthesis text.
func consumeRun(ctx context.Context, engine *council.Engine, question string, opts council.RunOptions, finalOnly bool) (string, error) {
	events, err := engine.Run(ctx, question, opts)
	if err != nil {
		return "", err
	}

	var synthesis string
	var runErr error
	streamingFinal := false
	for evt := range events {
		switch evt.Type {
		case council.EventToken:
			// Chairman tokens arrive after the protocol completes; print them
			// live so the answer appears as it is written.
			if streamingFinal && !finalOnly {
				fmt.Print(evt.Content)
			}
		case council.EventDebateComplete, council.EventRankingComplete:
			streamingFinal = true
			printProgress(os.Stderr, evt, finalOnly)
		case council.EventSynthesis:
			synthesis = evt.Content
			if streamingFinal && !finalOnly {
				fmt.Println()
			}
		case council.EventError:
			runErr = fmt.Errorf("%s", evt.Message)
		default:
			printProgress(os.Stderr, evt, finalOnly)
		}
	}
	if runErr != nil {
		return "", runErr
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return synthesis, nil
}

// printProgress writes one progress line to w. Suppressed in final-only mode.
func printProgress(w io.Writer, evt council.Event, finalOnly bool) {
	if finalOnly {
		return
	}

	switch evt.Type {
	case council.EventRoundStart:
		fmt.Fprintf(w, "[round %d] %s\n", evt.RoundNumber, evt.RoundType)
	case council.EventModelStart:
		fmt.Fprintf(w, "[%s] thinking\n", evt.Model)
	case council.EventModelComplete:
		fmt.Fprintf(w, "[%s] responded\n", evt.Model)
	case council.EventModelError:
		fmt.Fprintf(w, "[%s] error: %s\n", evt.Model, evt.Reason)
	case council.EventToolCall:
		fmt.Fprintf(w, "[%s] tool: %s\n", evt.Model, evt.Tool)
	case council.EventReflection:
		if evt.Content != "" {
			fmt.Fprintf(w, "[chairman] reflection: %s\n", llm.Preview(evt.Content, 200))
		}
	case council.EventDebateComplete:
		fmt.Fprintf(w, "[debate] complete after %d rounds\n", len(evt.Rounds))
	case council.EventRankingComplete:
		if evt.Metadata != nil {
			for i, entry := range evt.Metadata.Aggregate {
				fmt.Fprintf(w, "[ranking] #%d %s (avg rank %.2f)\n", i+1, entry.Model, entry.AverageRank)
			}
		}
	}
}

// recordRun persists a completed run to the history index. Failures are
// warnings; the answer was already delivered.
func recordRun(cfg config.Config, mode, question, synthesis string, modelCount int) {
	if synthesis == "" {
		return
	}
	history, err := openHistory(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not open run history: %v\n", err)
		return
	}
	defer history.Close()

	if _, err := history.Record(store.RunRecord{
		Mode:       mode,
		Question:   question,
		Synthesis:  synthesis,
		ModelCount: modelCount,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not record run: %v\n", err)
	}
}

// runChat starts an interactive multi-turn session backed by the
// conversation store.
func runChat(args []string) int {
	fs, configPath := newFlagSet("chat")
	maxTurns := fs.Int("max-turns", 5, "Recent exchanges included in the context window")
	newConv := fs.Bool("new", false, "Start a new conversation instead of resuming the latest")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	engine, client, err := buildEngine(cfg, cfg.UseReact, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer client.Close()

	conversations, err := store.NewConversationStore(cfg.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	var conv *store.Conversation
	if !*newConv {
		conv, err = conversations.Latest()
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not load latest conversation: %v\n", err)
		}
	}
	if conv != nil {
		fmt.Printf("Resuming %q (%d turns). Type exit to quit.\n", conv.Title, len(conv.Turns))
	} else {
		fmt.Println("New conversation. Type exit to quit.")
	}

	ctx, cancel := signalContext()
	defer cancel()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		question := line
		if conv != nil && len(conv.Turns) > 0 {
			question = conv.FormatContext(*maxTurns) + "Current question: " + line
		}

		synthesis, err := consumeRun(ctx, engine, question, council.RunOptions{}, true)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Printf("council> %s\n", synthesis)

		if conv == nil {
			title := engine.GenerateTitle(ctx, line)
			conv, err = conversations.New(title)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: could not create conversation: %v\n", err)
				continue
			}
		}
		if err := conversations.AppendTurn(conv, store.Turn{
			Question: line,
			Answer:   synthesis,
			Mode:     string(council.ModeRanking),
		}); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not save turn: %v\n", err)
		}
		recordRun(cfg, string(council.ModeRanking), line, synthesis, len(cfg.CouncilModels))
	}

	return 0
}

// runModels prints the configured panel.
func runModels(args []string) int {
	fs, configPath := newFlagSet("models")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	fmt.Println("Council models:")
	for _, m := range cfg.CouncilModels {
		fmt.Printf("  %s\n", m)
	}
	fmt.Printf("Chairman: %s\n", cfg.ChairmanModel)
	fmt.Printf("Titles:   %s\n", cfg.TitleModel)
	return 0
}

// runHistory lists recent completed runs.
func runHistory(args []string) int {
	fs, configPath := newFlagSet("history")
	limit := fs.Int("limit", 20, "Maximum runs to list")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	history, err := openHistory(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer history.Close()

	records, err := history.Recent(*limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if len(records) == 0 {
		fmt.Println("No runs recorded yet.")
		return 0
	}

	for _, rec := range records {
		fmt.Printf("%s  %s  %-7s  %s\n",
			rec.ID,
			rec.CreatedAt.Format("2006-01-02 15:04"),
			rec.Mode,
			llm.Preview(rec.Question, 60),
		)
	}
	return 0
}

// runServe starts the HTTP server.
func runServe(args []string) int {
	fs, configPath := newFlagSet("serve")
	addr := fs.String("addr", "127.0.0.1:8080", "Listen address")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	engine, client, err := buildEngine(cfg, cfg.UseReact, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer client.Close()

	conversations, err := store.NewConversationStore(cfg.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	history, err := openHistory(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: run history unavailable: %v\n", err)
	} else {
		defer history.Close()
	}

	server, err := web.NewServer(web.ServerConfig{
		Addr:          *addr,
		Engine:        engine,
		Conversations: conversations,
		History:       history,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	ctx, cancel := signalContext()
	defer cancel()

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: server.Handler(),
	}
	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		httpServer.Close()
	}()

	fmt.Fprintf(os.Stderr, "listening on %s\n", *addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
