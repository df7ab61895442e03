package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// jobBoards restricts searches to sources with actual posting data.
var jobBoards = []string{"linkedin.com", "indeed.com", "glassdoor.com", "naukri.com"}

// TavilyClient queries the Tavily search API for job market data.
type TavilyClient struct {
	apiKey string
	client *http.Client
}

// NewTavilyClient creates a search client.
func NewTavilyClient(apiKey string) *TavilyClient {
	return &TavilyClient{
		apiKey: apiKey,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type tavilyRequest struct {
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth"`
	IncludeDomains []string `json:"include_domains,omitempty"`
	MaxResults     int      `json:"max_results"`
	IncludeAnswer  bool     `json:"include_answer"`
	StartDate      string   `json:"start_date,omitempty"`
	EndDate        string   `json:"end_date,omitempty"`
}

type tavilyResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

type tavilyResponse struct {
	Answer  string         `json:"answer"`
	Results []tavilyResult `json:"results"`
}

// Search runs one advanced search over the last 90 days of job board data
// and returns a flattened text digest for prompt context.
func (t *TavilyClient) Search(ctx context.Context, query string) (string, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -90)

	body, err := json.Marshal(tavilyRequest{
		Query:          query,
		SearchDepth:    "advanced",
		IncludeDomains: jobBoards,
		MaxResults:     15,
		IncludeAnswer:  true,
		StartDate:      start.Format("2006-01-02"),
		EndDate:        end.Format("2006-01-02"),
	})
	if err != nil {
		return "", fmt.Errorf("search: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("search: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("search: API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var out tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("search: decode response: %w", err)
	}

	var buf bytes.Buffer
	if out.Answer != "" {
		fmt.Fprintf(&buf, "Summary: %s\n\n", out.Answer)
	}
	for _, r := range out.Results {
		fmt.Fprintf(&buf, "- %s (%s)\n  %s\n", r.Title, r.URL, r.Content)
	}
	return buf.String(), nil
}
