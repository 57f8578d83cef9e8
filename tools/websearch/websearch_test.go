package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/inkhouse/scribe/config"
)

func TestNewWebSearcherProviderSwitch(t *testing.T) {
	if _, err := NewWebSearcher(config.SearchConfig{Provider: "serper", APIKey: "k"}.Normalize()); err != nil {
		t.Fatalf("serper: %v", err)
	}
	if _, err := NewWebSearcher(config.SearchConfig{Provider: "brave", APIKey: "k"}.Normalize()); err != nil {
		t.Fatalf("brave: %v", err)
	}
	if _, err := NewWebSearcher(config.SearchConfig{Provider: "altavista"}); err == nil {
		t.Fatalf("expected error for unsupported provider")
	}
}

func TestSerperSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "serper-key" {
			t.Errorf("missing api key header")
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload["q"] != "current exchange rate" {
			t.Errorf("unexpected query: %v", payload["q"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"organic": []map[string]string{
				{"title": "USD to EUR", "link": "https://example.com/fx", "snippet": "1 USD = 0.92 EUR"},
				{"title": "Converter", "link": "https://example.com/conv", "snippet": "live rates"},
				{"title": "Third", "link": "https://example.com/3", "snippet": "extra"},
			},
		})
	}))
	defer srv.Close()

	s := NewSerper("serper-key", 5*time.Second)
	s.endpoint = srv.URL
	results, err := s.Search(context.Background(), "current exchange rate", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results (k cap), got %d", len(results))
	}
	if results[0].Title != "USD to EUR" || results[0].URL != "https://example.com/fx" {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
}

func TestSerperSearchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewSerper("bad-key", 5*time.Second)
	s.endpoint = srv.URL
	if _, err := s.Search(context.Background(), "q", 3); err == nil {
		t.Fatalf("expected error on non-200 status")
	}
}

func TestBraveSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Subscription-Token") != "brave-key" {
			t.Errorf("missing subscription token")
		}
		if got := r.URL.Query().Get("q"); got != "go generics" {
			t.Errorf("unexpected query: %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"web": map[string]any{
				"results": []map[string]string{
					{"title": "Generics", "url": "https://go.dev/blog/intro-generics", "description": "an introduction"},
				},
			},
		})
	}))
	defer srv.Close()

	b := NewBrave("brave-key", 5*time.Second)
	b.endpoint = srv.URL
	results, err := b.Search(context.Background(), "go generics", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Snippet != "an introduction" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestSummarize(t *testing.T) {
	text := Summarize([]Result{
		{Title: "USD to EUR", URL: "https://example.com/fx", Snippet: "1 USD = 0.92 EUR"},
		{Title: "Converter", URL: "https://example.com/conv"},
	})
	if !strings.Contains(text, "1. USD to EUR (https://example.com/fx)") {
		t.Fatalf("missing first entry:\n%s", text)
	}
	if !strings.Contains(text, "1 USD = 0.92 EUR") {
		t.Fatalf("missing snippet:\n%s", text)
	}
	if !strings.Contains(text, "2. Converter") {
		t.Fatalf("missing second entry:\n%s", text)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	if got := Summarize(nil); got != "No results found." {
		t.Fatalf("unexpected empty summary: %q", got)
	}
}
