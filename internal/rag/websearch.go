package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"golang.org/x/net/html"

	"github.com/LiboWorks/bitrag/internal/logging"
)

var (
	ErrInvalidQuery = errors.New("invalid search query")
	ErrNoResults    = errors.New("no search results")
	ErrRateLimited  = errors.New("search rate limited")
)

// WebResult is one web search hit.
type WebResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Content string `json:"content,omitempty"`
	Source  string `json:"source"`
}

// BestText returns the fetched content, or the snippet when nothing was
// fetched.
func (r WebResult) BestText() string {
	if r.Content != "" {
		return r.Content
	}
	return r.Snippet
}

// ContextBlock renders the result as a prompt context section.
func (r WebResult) ContextBlock() string {
	return fmt.Sprintf("# %s\nSource: %s (%s)\n\n%s", r.Title, r.Source, r.URL, r.BestText())
}

// WebSearcher retrieves ranked snippets for a query.
type WebSearcher interface {
	Name() string
	Search(ctx context.Context, query string, n int) ([]WebResult, error)
	// FetchContent returns the full text behind a result.
	FetchContent(ctx context.Context, r WebResult) (string, error)
}

// WikipediaConfig configures a WikipediaSearcher.
type WikipediaConfig struct {
	Language string // "en" when empty
	// BaseURL replaces https://<lang>.wikipedia.org.
	BaseURL          string
	Timeout          time.Duration
	MaxContentLength int
	UserAgent        string
	Client           *http.Client
	Logger           logging.Logger
}

// DefaultWikipediaConfig returns the English Wikipedia settings.
func DefaultWikipediaConfig() WikipediaConfig {
	return WikipediaConfig{
		Language:         "en",
		Timeout:          10 * time.Second,
		MaxContentLength: 10000,
		UserAgent:        "bitrag/0.1 (RAG assistant)",
	}
}

// WikipediaSearcher queries the MediaWiki search and extracts APIs.
type WikipediaSearcher struct {
	cfg    WikipediaConfig
	base   string
	client *http.Client
	log    logging.Logger
}

// NewWikipediaSearcher fills unset fields of cfg from the defaults.
func NewWikipediaSearcher(cfg WikipediaConfig) *WikipediaSearcher {
	def := DefaultWikipediaConfig()
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = def.MaxContentLength
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://" + cfg.Language + ".wikipedia.org"
	}
	return &WikipediaSearcher{
		cfg:    cfg,
		base:   base,
		client: client,
		log:    logging.OrDiscard(cfg.Logger).With("component", "wikipedia"),
	}
}

func (w *WikipediaSearcher) Name() string { return "Wikipedia" }

func (w *WikipediaSearcher) apiURL() string { return w.base + "/w/api.php" }

func (w *WikipediaSearcher) articleURL(title string) string {
	return w.base + "/wiki/" + url.PathEscape(title)
}

type wikiResponse struct {
	Query *struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
			PageID  uint64 `json:"pageid"`
		} `json:"search"`
		Pages map[string]struct {
			Title   string  `json:"title"`
			Extract *string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

// Search returns up to n articles matching query.
func (w *WikipediaSearcher) Search(ctx context.Context, query string, n int) ([]WebResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}
	if n <= 0 {
		n = 3
	}
	w.log.Debug("searching", "query", query)

	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {strconv.Itoa(n)},
		"format":   {"json"},
		"utf8":     {"1"},
	}
	var resp wikiResponse
	if err := w.get(ctx, params, &resp); err != nil {
		return nil, err
	}
	if resp.Query == nil || len(resp.Query.Search) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoResults, query)
	}

	results := make([]WebResult, 0, len(resp.Query.Search))
	for _, r := range resp.Query.Search {
		results = append(results, WebResult{
			Title:   r.Title,
			URL:     w.articleURL(r.Title),
			Snippet: cleanHTML(r.Snippet),
			Source:  w.Name(),
		})
	}
	w.log.Debug("search done", "query", query, "results", len(results))
	return results, nil
}

// FetchContent returns the plain-text extract of the article behind r,
// truncated at a sentence boundary when it is too long.
func (w *WikipediaSearcher) FetchContent(ctx context.Context, r WebResult) (string, error) {
	params := url.Values{
		"action":          {"query"},
		"titles":          {r.Title},
		"prop":            {"extracts"},
		"explaintext":     {"true"},
		"exsectionformat": {"plain"},
		"format":          {"json"},
		"utf8":            {"1"},
	}
	var resp wikiResponse
	if err := w.get(ctx, params, &resp); err != nil {
		return "", err
	}
	if resp.Query == nil || len(resp.Query.Pages) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoResults, r.Title)
	}
	for _, page := range resp.Query.Pages {
		if page.Extract == nil {
			return "", fmt.Errorf("no extract for %q", r.Title)
		}
		return truncateAtSentence(*page.Extract, w.cfg.MaxContentLength), nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoResults, r.Title)
}

func (w *WikipediaSearcher) get(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.apiURL()+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", w.cfg.UserAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("wikipedia request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("wikipedia returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode wikipedia response: %w", err)
	}
	return nil
}

// cleanHTML returns the text content of an HTML fragment.
func cleanHTML(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}

func truncateAtSentence(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	cut := s[:limit]
	if i := strings.LastIndex(cut, ". "); i >= 0 {
		return cut[:i+1] + "..."
	}
	return cut + "..."
}
