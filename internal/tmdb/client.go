package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
)

const (
	defaultBaseURL = "https://api.themoviedb.org/3"
	imageBaseURL   = "https://image.tmdb.org/t/p/w300"
)

var ErrMissingAPIKey = errors.New("tmdb: TMDB_API_KEY is missing")

// Client resolves poster images through the TMDB movie search.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) SetBaseURL(u string) {
	if u != "" {
		c.baseURL = u
	}
}

type searchResponse struct {
	Results []struct {
		ID         int    `json:"id"`
		Title      string `json:"title"`
		PosterPath string `json:"poster_path"`
	} `json:"results"`
}

// FindPosterURL returns the poster URL of the first Korean-locale search hit.
// An empty string with a nil error means the title has no poster.
func (c *Client) FindPosterURL(ctx context.Context, title string) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	params := url.Values{
		"api_key":  {c.apiKey},
		"query":    {title},
		"language": {"ko-KR"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search/movie?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tmdb search: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tmdb error %d: %s", resp.StatusCode, string(body))
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("unmarshal search response: %w", err)
	}
	if len(sr.Results) == 0 || sr.Results[0].PosterPath == "" {
		return "", nil
	}
	return imageBaseURL + sr.Results[0].PosterPath, nil
}
