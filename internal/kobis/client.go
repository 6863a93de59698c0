package kobis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/MikeSquared-Agency/marquee/internal/metrics"
)

const defaultBaseURL = "https://www.kobis.or.kr/kobisopenapi/webservice/rest"

// ErrMissingAPIKey is returned before any request is made when no key is configured.
var ErrMissingAPIKey = errors.New("kobis: KOBIS_API_KEY is missing")

// Client talks to the KOBIS (Korean Film Council) open API.
// Requests are rate limited client-side and pass through a circuit breaker.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]byte]
	logger  *slog.Logger
}

func NewClient(apiKey string, timeout time.Duration, ratePerSec float64, logger *slog.Logger) *Client {
	const cbName = "kobis-api"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		// Opens at a 60% failure rate once at least 10 requests were seen.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	burst := int(ratePerSec)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
		cb:      cb,
		logger:  logger,
	}
}

// SetBaseURL points the client at a different API root.
func (c *Client) SetBaseURL(u string) {
	if u != "" {
		c.baseURL = u
	}
}

// SearchByTitle searches the movie list by (partial) title.
func (c *Client) SearchByTitle(ctx context.Context, name string) ([]Movie, error) {
	var resp movieListResponse
	params := url.Values{"movieNm": {name}, "itemPerPage": {"5"}}
	if err := c.get(ctx, "search_by_title", "movie/searchMovieList.json", params, &resp); err != nil {
		return nil, err
	}
	return resp.MovieListResult.MovieList, nil
}

// SearchByDirector searches the movie list by director name.
func (c *Client) SearchByDirector(ctx context.Context, name string) ([]Movie, error) {
	var resp movieListResponse
	params := url.Values{"directorNm": {name}, "itemPerPage": {"10"}}
	if err := c.get(ctx, "search_by_director", "movie/searchMovieList.json", params, &resp); err != nil {
		return nil, err
	}
	return resp.MovieListResult.MovieList, nil
}

// SearchPerson searches film people by name.
func (c *Client) SearchPerson(ctx context.Context, name string) ([]Person, error) {
	var resp peopleListResponse
	params := url.Values{"peopleNm": {name}, "itemPerPage": {"5"}}
	if err := c.get(ctx, "search_person", "people/searchPeopleList.json", params, &resp); err != nil {
		return nil, err
	}
	return resp.PeopleListResult.PeopleList, nil
}

// PersonFilmography returns the filmography of a person by KOBIS people code.
func (c *Client) PersonFilmography(ctx context.Context, personCode string) ([]Movie, error) {
	var resp peopleInfoResponse
	params := url.Values{"peopleCd": {personCode}}
	if err := c.get(ctx, "person_filmography", "people/searchPeopleInfo.json", params, &resp); err != nil {
		return nil, err
	}
	return resp.PeopleInfoResult.PeopleInfo.Filmos, nil
}

// DailyRanking returns the daily box office for the given date.
func (c *Client) DailyRanking(ctx context.Context, date time.Time) ([]Movie, error) {
	var resp boxOfficeResponse
	params := url.Values{"targetDt": {date.Format(DateLayout)}, "itemPerPage": {"10"}}
	if err := c.get(ctx, "daily_ranking", "boxoffice/searchDailyBoxOfficeList.json", params, &resp); err != nil {
		return nil, err
	}
	return resp.BoxOfficeResult.DailyBoxOfficeList, nil
}

// WeeklyRanking returns the full-week (weekGb=0) box office for the week containing date.
func (c *Client) WeeklyRanking(ctx context.Context, date time.Time) ([]Movie, error) {
	var resp boxOfficeResponse
	params := url.Values{"targetDt": {date.Format(DateLayout)}, "weekGb": {"0"}, "itemPerPage": {"10"}}
	if err := c.get(ctx, "weekly_ranking", "boxoffice/searchWeeklyBoxOfficeList.json", params, &resp); err != nil {
		return nil, err
	}
	return resp.BoxOfficeResult.WeeklyBoxOfficeList, nil
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values, out any) error {
	if c.apiKey == "" {
		metrics.LookupRequests.WithLabelValues(op, "not_configured").Inc()
		return ErrMissingAPIKey
	}

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.LookupRequests.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("rate limit wait: %w", err)
	}

	params.Set("key", c.apiKey)
	endpoint := c.baseURL + "/" + path + "?" + params.Encode()

	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.fetch(ctx, endpoint)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.LookupRequests.WithLabelValues(op, "rejected").Inc()
		} else {
			metrics.LookupRequests.WithLabelValues(op, "error").Inc()
		}
		return fmt.Errorf("kobis %s: %w", op, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		metrics.LookupRequests.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("unmarshal %s response: %w", op, err)
	}

	metrics.LookupRequests.WithLabelValues(op, "ok").Inc()
	return nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Message: string(body)}
	}

	// KOBIS reports key and parameter errors with a 200 and a faultInfo body.
	var fault faultEnvelope
	if json.Unmarshal(body, &fault) == nil && fault.FaultInfo != nil {
		return nil, &APIError{
			Status:  resp.StatusCode,
			Code:    fault.FaultInfo.ErrorCode,
			Message: fault.FaultInfo.Message,
		}
	}

	return body, nil
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
