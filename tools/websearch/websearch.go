package websearch

import (
	"context"
	"fmt"
	"strings"

	"github.com/inkhouse/scribe/config"
)

// Result is a single ranked search hit.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// WebSearcher is the search capability exposed to the research stage.
type WebSearcher interface {
	Search(ctx context.Context, query string, k int) ([]Result, error)
}

// Provider selects a search backend.
type Provider string

const (
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

// NewWebSearcher builds the configured search backend.
func NewWebSearcher(cfg config.SearchConfig) (WebSearcher, error) {
	switch Provider(cfg.Provider) {
	case SerperProvider:
		return NewSerper(cfg.APIKey, cfg.Timeout), nil
	case BraveProvider:
		return NewBrave(cfg.APIKey, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported search provider: %q", cfg.Provider)
	}
}

// Summarize flattens ranked results into a single text block for the model.
func Summarize(results []Result) string {
	if len(results) == 0 {
		return "No results found."
	}
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", r.Snippet)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
