package enrichment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/streamr/backend/internal/logging"
)

// SearchResult is one hit from an OMDb search.
type SearchResult struct {
	IMDbID string `json:"imdbID"`
	Title  string `json:"Title"`
	Year   string `json:"Year"`
	Type   string `json:"Type"`
	Poster string `json:"Poster"`
}

// TitleDetails is the subset of an OMDb title record used for enrichment.
// "N/A" values are normalised to empty strings.
type TitleDetails struct {
	IMDbID     string `json:"imdbID"`
	Title      string `json:"Title"`
	Year       string `json:"Year"`
	Runtime    string `json:"Runtime"`
	Poster     string `json:"Poster"`
	IMDbRating string `json:"imdbRating"`
	IMDbVotes  string `json:"imdbVotes"`
	Metascore  string `json:"Metascore"`
}

// SearchSource finds candidate titles for a free-text query.
type SearchSource interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// TitleSource loads details for a single IMDb id.
type TitleSource interface {
	Title(ctx context.Context, imdbID string) (TitleDetails, error)
}

// OMDbConfig configures an OMDbClient.
type OMDbConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// OMDbClient talks to the OMDb API through a circuit breaker so a failing
// upstream is not hammered by every worker.
type OMDbClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewOMDbClient constructs a client. An empty API key yields ErrProviderUnavailable on every call.
func NewOMDbClient(cfg OMDbConfig, httpClient *http.Client) *OMDbClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = "https://www.omdbapi.com/"
	}

	settings := gobreaker.Settings{
		Name:        "omdb",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &OMDbClient{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		http:    httpClient,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
	}
}

type searchResponse struct {
	Search   []SearchResult `json:"Search"`
	Response string         `json:"Response"`
	Error    string         `json:"Error"`
}

type titleResponse struct {
	TitleDetails
	Response string `json:"Response"`
	Error    string `json:"Error"`
}

// Search queries OMDb by title. A "not found" answer is an empty result, not an error.
func (c *OMDbClient) Search(ctx context.Context, query string) ([]SearchResult, error) {
	body, err := c.get(ctx, url.Values{"s": {query}})
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode omdb search: %w", err)
	}
	if !strings.EqualFold(resp.Response, "True") {
		if isNotFound(resp.Error) {
			return nil, nil
		}
		return nil, fmt.Errorf("omdb search: %s", resp.Error)
	}

	for i := range resp.Search {
		resp.Search[i].Poster = dropNA(resp.Search[i].Poster)
		resp.Search[i].Year = dropNA(resp.Search[i].Year)
	}
	return resp.Search, nil
}

// Title fetches the full record for an IMDb id.
func (c *OMDbClient) Title(ctx context.Context, imdbID string) (TitleDetails, error) {
	body, err := c.get(ctx, url.Values{"i": {imdbID}})
	if err != nil {
		return TitleDetails{}, err
	}

	var resp titleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return TitleDetails{}, fmt.Errorf("decode omdb title: %w", err)
	}
	if !strings.EqualFold(resp.Response, "True") {
		if isNotFound(resp.Error) {
			return TitleDetails{}, ErrTitleNotFound
		}
		return TitleDetails{}, fmt.Errorf("omdb title: %s", resp.Error)
	}

	details := resp.TitleDetails
	details.Year = dropNA(details.Year)
	details.Runtime = dropNA(details.Runtime)
	details.Poster = dropNA(details.Poster)
	details.IMDbRating = dropNA(details.IMDbRating)
	details.IMDbVotes = dropNA(details.IMDbVotes)
	details.Metascore = dropNA(details.Metascore)
	return details, nil
}

func (c *OMDbClient) get(ctx context.Context, params url.Values) ([]byte, error) {
	if c == nil || c.apiKey == "" {
		return nil, ErrProviderUnavailable
	}

	params.Set("apikey", c.apiKey)
	endpoint := c.baseURL + "?" + params.Encode()

	body, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("build omdb request: %w", err)
		}

		res, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("omdb request: %w", err)
		}
		defer res.Body.Close()

		if res.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("omdb request: unexpected status %d", res.StatusCode)
		}

		data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("read omdb response: %w", err)
		}
		return data, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logging.FromContext(ctx).Warn("omdb circuit open, skipping request")
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		return nil, err
	}
	return body, nil
}

func isNotFound(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "not found")
}

func dropNA(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, "N/A") {
		return ""
	}
	return v
}
