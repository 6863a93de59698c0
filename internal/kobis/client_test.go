package kobis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewClient("test-key", 5*time.Second, 100, discardLogger())
	c.SetBaseURL(server.URL)
	return c
}

func TestSearchByDirector_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/searchMovieList.json" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("expected key test-key, got %q", r.URL.Query().Get("key"))
		}
		if r.URL.Query().Get("directorNm") != "봉준호" {
			t.Errorf("expected directorNm 봉준호, got %q", r.URL.Query().Get("directorNm"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"movieListResult": map[string]any{
				"totCnt": 2,
				"movieList": []map[string]any{
					{"movieCd": "20183782", "movieNm": "기생충", "openDt": "20190530", "genreAlt": "드라마", "nationAlt": "한국",
						"directors": []map[string]string{{"peopleNm": "봉준호"}}},
					{"movieCd": "20080822", "movieNm": "마더", "openDt": "20090528"},
				},
			},
		})
	})

	movies, err := c.SearchByDirector(context.Background(), "봉준호")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(movies) != 2 {
		t.Fatalf("expected 2 movies, got %d", len(movies))
	}
	if movies[0].Title != "기생충" || movies[1].Title != "마더" {
		t.Errorf("unexpected titles: %q, %q", movies[0].Title, movies[1].Title)
	}
	if names := movies[0].DirectorNames(); len(names) != 1 || names[0] != "봉준호" {
		t.Errorf("expected director 봉준호, got %v", names)
	}
}

func TestSearchPersonAndFilmography(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/people/searchPeopleList.json":
			json.NewEncoder(w).Encode(map[string]any{
				"peopleListResult": map[string]any{
					"peopleList": []map[string]string{
						{"peopleCd": "10036940", "peopleNm": "송강호", "repRoleNm": "배우", "filmoNames": "기생충|밀정|택시운전사"},
					},
				},
			})
		case "/people/searchPeopleInfo.json":
			if r.URL.Query().Get("peopleCd") != "10036940" {
				t.Errorf("expected peopleCd 10036940, got %q", r.URL.Query().Get("peopleCd"))
			}
			json.NewEncoder(w).Encode(map[string]any{
				"peopleInfoResult": map[string]any{
					"peopleInfo": map[string]any{
						"peopleCd": "10036940",
						"filmos": []map[string]string{
							{"movieCd": "20183782", "movieNm": "기생충", "moviePartNm": "배우"},
							{"movieCd": "20161442", "movieNm": "밀정", "moviePartNm": "배우"},
						},
					},
				},
			})
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	})

	people, err := c.SearchPerson(context.Background(), "송강호")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(people) != 1 || people[0].Code != "10036940" {
		t.Fatalf("unexpected people: %+v", people)
	}
	if filmo := people[0].Filmography(); len(filmo) != 3 || filmo[2] != "택시운전사" {
		t.Errorf("unexpected filmography summary: %v", filmo)
	}

	films, err := c.PersonFilmography(context.Background(), people[0].Code)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(films) != 2 || films[1].Title != "밀정" || films[1].Part != "배우" {
		t.Errorf("unexpected filmography: %+v", films)
	}
}

func TestDailyAndWeeklyRanking(t *testing.T) {
	date := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("targetDt") != "20261014" {
			t.Errorf("expected targetDt 20261014, got %q", r.URL.Query().Get("targetDt"))
		}
		switch r.URL.Path {
		case "/boxoffice/searchDailyBoxOfficeList.json":
			json.NewEncoder(w).Encode(map[string]any{
				"boxOfficeResult": map[string]any{
					"dailyBoxOfficeList": []map[string]string{{"rank": "1", "movieNm": "하얼빈"}},
				},
			})
		case "/boxoffice/searchWeeklyBoxOfficeList.json":
			if r.URL.Query().Get("weekGb") != "0" {
				t.Errorf("expected weekGb 0, got %q", r.URL.Query().Get("weekGb"))
			}
			json.NewEncoder(w).Encode(map[string]any{
				"boxOfficeResult": map[string]any{
					"weeklyBoxOfficeList": []map[string]string{{"rank": "1", "movieNm": "소방관"}},
				},
			})
		}
	})

	daily, err := c.DailyRanking(context.Background(), date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(daily) != 1 || daily[0].Title != "하얼빈" || daily[0].Rank != "1" {
		t.Errorf("unexpected daily ranking: %+v", daily)
	}

	weekly, err := c.WeeklyRanking(context.Background(), date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(weekly) != 1 || weekly[0].Title != "소방관" {
		t.Errorf("unexpected weekly ranking: %+v", weekly)
	}
}

func TestGet_MissingAPIKey(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	c := NewClient("", time.Second, 10, discardLogger())
	c.SetBaseURL(server.URL)

	_, err := c.SearchByTitle(context.Background(), "기생충")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
	if called {
		t.Error("expected no request without an api key")
	}
}

func TestGet_FaultInfo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"faultInfo": map[string]string{"message": "유효하지않은 키값입니다.", "errorCode": "320010"},
		})
	})

	_, err := c.SearchByTitle(context.Background(), "기생충")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != "320010" {
		t.Errorf("expected error code 320010, got %q", apiErr.Code)
	}
}

func TestGet_HTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.DailyRanking(context.Background(), time.Now())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", apiErr.Status)
	}
}

func TestGet_CircuitBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 10; i++ {
		_, err := c.SearchByTitle(context.Background(), "기생충")
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusInternalServerError {
			t.Fatalf("request %d: expected 500 APIError, got %v", i, err)
		}
	}

	_, err := c.SearchByTitle(context.Background(), "기생충")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected wrapped ErrOpenState, got %v", err)
	}
	if hits.Load() != 10 {
		t.Errorf("expected open breaker to skip the server, got %d hits", hits.Load())
	}
}

func TestGet_RateLimitWaitCancelled(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.SearchPerson(ctx, "송강호")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if hits.Load() != 0 {
		t.Errorf("expected no request after cancelled wait, got %d", hits.Load())
	}
}

func TestGet_EmptyResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"movieListResult": map[string]any{"totCnt": 0, "movieList": []any{}},
		})
	})

	movies, err := c.SearchByTitle(context.Background(), "없는영화")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(movies) != 0 {
		t.Errorf("expected no movies, got %d", len(movies))
	}
}

func TestPerson_FilmographyEmpty(t *testing.T) {
	if got := (Person{}).Filmography(); got != nil {
		t.Errorf("expected nil filmography, got %v", got)
	}
	if got := (Person{FilmoNames: " 괴물 || 마더 "}).Filmography(); len(got) != 2 || got[0] != "괴물" {
		t.Errorf("unexpected filmography %v", got)
	}
}
