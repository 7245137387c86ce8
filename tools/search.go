// ABOUTME: Web search tool backed by the Tavily search API.
// ABOUTME: Provides the search_web tool definition, a Searcher HTTP client, and result formatting for LLM context.

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/2389-research/council/llm"
)

// SearchToolName is the name models use to invoke web search.
const SearchToolName = "search_web"

const defaultTavilyURL = "https://api.tavily.com/search"

// SearchToolDefinition returns the function-calling schema for search_web.
func SearchToolDefinition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        SearchToolName,
		Description: "Search the web for current information. Use this when you need up-to-date information, recent events, current statistics, or facts you're unsure about.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "The search query to look up on the web"}
			},
			"required": ["query"]
		}`),
	}
}

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// SearchResponse is the provider response after normalization.
type SearchResponse struct {
	Answer  string         `json:"answer,omitempty"`
	Results []SearchResult `json:"results"`
	Err     string         `json:"error,omitempty"`
}

// Searcher performs web searches against a Tavily-compatible endpoint.
type Searcher struct {
	apiKey     string
	apiURL     string
	maxResults int
	httpClient *http.Client
}

// SearcherOption configures a Searcher.
type SearcherOption func(*Searcher)

// WithSearchURL overrides the API endpoint (used in tests).
func WithSearchURL(url string) SearcherOption {
	return func(s *Searcher) {
		s.apiURL = url
	}
}

// WithSearchMaxResults overrides the default of 5 results per query.
func WithSearchMaxResults(n int) SearcherOption {
	return func(s *Searcher) {
		s.maxResults = n
	}
}

// WithSearchHTTPClient replaces the underlying HTTP client.
func WithSearchHTTPClient(client *http.Client) SearcherOption {
	return func(s *Searcher) {
		s.httpClient = client
	}
}

// SearchUnavailableResult tells the model truthfully that search cannot run,
// so it can answer from its own knowledge instead.
const SearchUnavailableResult = "Web search is unavailable: no search API key is configured. Answer using your existing knowledge."

// NewSearcher creates a search client. An empty API key is allowed; searches
// then report the provider as unconfigured instead of failing the run.
func NewSearcher(apiKey string, opts ...SearcherOption) *Searcher {
	s := &Searcher{
		apiKey:     apiKey,
		apiURL:     defaultTavilyURL,
		maxResults: 5,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type tavilyRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilyResponse struct {
	Answer  string         `json:"answer"`
	Results []SearchResult `json:"results"`
}

// Unconfigured reports whether the searcher has no API key.
func (s *Searcher) Unconfigured() bool {
	return s.apiKey == ""
}

// Search runs a web search. Failures are reported in the response Err field so
// callers can format them for the model rather than aborting.
func (s *Searcher) Search(ctx context.Context, query string) SearchResponse {
	if s.Unconfigured() {
		return SearchResponse{Err: "TAVILY_API_KEY not configured"}
	}

	payload := tavilyRequest{
		APIKey:        s.apiKey,
		Query:         query,
		SearchDepth:   "basic",
		MaxResults:    s.maxResults,
		IncludeAnswer: true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return SearchResponse{Err: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return SearchResponse{Err: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return SearchResponse{Err: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return SearchResponse{Err: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return SearchResponse{Err: fmt.Sprintf("search request failed with status %d", resp.StatusCode)}
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return SearchResponse{Err: err.Error()}
	}

	return SearchResponse{Answer: parsed.Answer, Results: parsed.Results}
}

// FormatSearchResults renders a search response as text for LLM context.
// Results become numbered blocks separated by blank lines; failures become a
// readable string the model can work around.
func FormatSearchResults(resp SearchResponse) string {
	if resp.Err == "TAVILY_API_KEY not configured" {
		return SearchUnavailableResult
	}
	if resp.Err != "" {
		return "Search error: " + resp.Err
	}
	if len(resp.Results) == 0 {
		return "Search returned no results."
	}

	var blocks []string
	if resp.Answer != "" {
		blocks = append(blocks, "Quick Answer: "+resp.Answer)
	}
	for i, result := range resp.Results {
		blocks = append(blocks, fmt.Sprintf("[%d] %s\n%s\n%s", i+1, result.Title, result.URL, result.Content))
	}

	return strings.Join(blocks, "\n\n")
}

// SearchTool builds the registered search_web tool around a Searcher.
// Malformed or missing query arguments yield the invalid-arguments result.
func SearchTool(searcher *Searcher) *RegisteredTool {
	return &RegisteredTool{
		Definition: SearchToolDefinition(),
		Handler: func(ctx context.Context, args json.RawMessage) string {
			var parsed struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal(args, &parsed); err != nil || strings.TrimSpace(parsed.Query) == "" {
				return InvalidArgsResult
			}
			return FormatSearchResults(searcher.Search(ctx, parsed.Query))
		},
	}
}
