// ABOUTME: Help display for the council CLI with grouped subcommands, flags, and environment status.
// ABOUTME: Provides printHelp for usage output and envStatus for API key detection.
package main

import (
	"fmt"
	"io"
	"os"
)

const councilASCII = `
      _..._
    .'     '.
   /  _   _  \
   | (o)_(o) |
    \   ^   /      .-----------------.
     |  ~  |      (  the council is   )
     \_____/      (   in session      )
    /       \      '-----------------'
`

// printHelp writes a formatted help message to w, including subcommands,
// grouped flags, examples, and environment status.
func printHelp(w io.Writer, ver string) {
	fmt.Fprint(w, councilASCII)
	fmt.Fprintf(w, "council %s — multi-model deliberation engine\n", ver)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  council [query] <question>          Ask the council (ranking mode)")
	fmt.Fprintln(w, "  council chat                        Interactive multi-turn session")
	fmt.Fprintln(w, "  council models                      Show the configured panel")
	fmt.Fprintln(w, "  council history                     List recent runs")
	fmt.Fprintln(w, "  council serve [-addr host:port]     Start the HTTP API server")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Query Flags:")
	fmt.Fprintln(w, "  -debate               Structured debate protocol instead of ranking")
	fmt.Fprintln(w, "  -cycles <n>           Critique-defense cycles in debate mode")
	fmt.Fprintln(w, "  -stream               Sequential streaming executor with live tokens")
	fmt.Fprintln(w, "  -parallel             Force the batch-parallel executor")
	fmt.Fprintln(w, "  -no-react             Disable the ReAct reasoning loop")
	fmt.Fprintln(w, "  -simple               Disable tools entirely")
	fmt.Fprintln(w, "  -final-only           Print only the final synthesis")
	fmt.Fprintln(w, "  -tui                  Live terminal display")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Chat Flags:")
	fmt.Fprintln(w, "  -max-turns <n>        Recent exchanges in the context window (default: 5)")
	fmt.Fprintln(w, "  -new                  Start a new conversation")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Other:")
	fmt.Fprintln(w, "  -config <path>        YAML config file (default: council.yaml)")
	fmt.Fprintln(w, "  -version              Print version and exit")
	fmt.Fprintln(w, "  -help                 Show this help")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  council \"what is the best database for time series?\"")
	fmt.Fprintln(w, "  council -debate -cycles 2 \"tabs or spaces?\"")
	fmt.Fprintln(w, "  council -tui \"compare go and rust for CLIs\"")
	fmt.Fprintln(w, "  council chat -new")
	fmt.Fprintln(w, "  council serve -addr 127.0.0.1:2389")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment:")
	fmt.Fprintf(w, "  OPENROUTER_API_KEY    %s\n", envStatus("OPENROUTER_API_KEY"))
	fmt.Fprintf(w, "  TAVILY_API_KEY        %s\n", envStatus("TAVILY_API_KEY"))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  OPENROUTER_API_KEY is required; TAVILY_API_KEY enables web search.")
}

// envStatus returns "[set]" if the named environment variable is non-empty,
// or "[not set]" otherwise.
func envStatus(key string) string {
	if os.Getenv(key) != "" {
		return "[set]"
	}
	return "[not set]"
}
