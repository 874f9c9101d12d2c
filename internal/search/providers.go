package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	commonhttp "unipal-workers/internal/common/http"
)

// SerpAPI queries Google through serpapi.com.
type SerpAPI struct {
	baseURL string
	apiKey  string
	client  *commonhttp.Client
}

func (s *SerpAPI) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebSearchFailed, err)
	}
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("api_key", s.apiKey)
	params.Set("num", strconv.Itoa(limit))
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebSearchFailed, err)
	}

	var body struct {
		OrganicResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic_results"`
		Error string `json:"error"`
	}
	if err := doJSON(ctx, s.client, req, &body); err != nil {
		return nil, err
	}
	if body.Error != "" && len(body.OrganicResults) == 0 {
		if strings.Contains(strings.ToLower(body.Error), "hasn't returned any results") {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrWebSearchFailed, body.Error)
	}

	out := make([]Result, 0, len(body.OrganicResults))
	for _, r := range body.OrganicResults {
		out = append(out, Result{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}
	return out, nil
}

// GoogleCSE queries a Google Programmable Search engine.
type GoogleCSE struct {
	baseURL  string
	apiKey   string
	engineID string
	client   *commonhttp.Client
}

func (g *GoogleCSE) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	u, err := url.Parse(g.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebSearchFailed, err)
	}
	if limit > 10 {
		limit = 10
	}
	params := url.Values{}
	params.Add("key", g.apiKey)
	params.Add("cx", g.engineID)
	params.Add("q", query)
	params.Add("num", strconv.Itoa(limit))
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebSearchFailed, err)
	}

	var body struct {
		Items []struct {
			Link    string `json:"link"`
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
			Mime    string `json:"mime"`
		} `json:"items"`
	}
	if err := doJSON(ctx, g.client, req, &body); err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(body.Items))
	for _, item := range body.Items {
		// PDFs and other documents carry a mime type; pages do not.
		if item.Mime != "" && !strings.Contains(item.Mime, "html") {
			continue
		}
		out = append(out, Result{Title: item.Title, URL: item.Link, Snippet: item.Snippet})
	}
	return out, nil
}

// Tavily queries api.tavily.com. The allow-list is also sent as
// include_domains so filtering starts server side.
type Tavily struct {
	baseURL        string
	apiKey         string
	depth          string
	includeDomains []string
	client         *commonhttp.Client
}

type tavilyRequest struct {
	APIKey         string   `json:"api_key"`
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth,omitempty"`
	MaxResults     int      `json:"max_results"`
	IncludeDomains []string `json:"include_domains,omitempty"`
}

func (t *Tavily) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	payload, err := json.Marshal(tavilyRequest{
		APIKey:         t.apiKey,
		Query:          query,
		SearchDepth:    t.depth,
		MaxResults:     limit,
		IncludeDomains: t.includeDomains,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebSearchFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebSearchFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var body struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := doJSON(ctx, t.client, req, &body); err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(body.Results))
	for _, r := range body.Results {
		out = append(out, Result{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return out, nil
}
