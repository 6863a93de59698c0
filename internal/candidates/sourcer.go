package candidates

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/marquee/internal/intent"
	"github.com/MikeSquared-Agency/marquee/internal/kobis"
)

// Catalog is the subset of the metadata lookup client used for deterministic sourcing.
type Catalog interface {
	SearchByDirector(ctx context.Context, name string) ([]kobis.Movie, error)
	SearchPerson(ctx context.Context, name string) ([]kobis.Person, error)
	PersonFilmography(ctx context.Context, personCode string) ([]kobis.Movie, error)
	DailyRanking(ctx context.Context, date time.Time) ([]kobis.Movie, error)
}

// Sourcer turns a Recommend intent into an ordered, de-duplicated title list.
type Sourcer struct {
	catalog Catalog
	logger  *slog.Logger
	now     func() time.Time
}

func NewSourcer(catalog Catalog, logger *slog.Logger) *Sourcer {
	return &Sourcer{catalog: catalog, logger: logger, now: time.Now}
}

// Source returns candidate titles in lookup order with exclusions and
// repeats removed. Lookup failures and Curate intents yield nil; Curate
// candidates come from the personas themselves.
func (s *Sourcer) Source(ctx context.Context, in intent.Intent, exclusion []string) []string {
	if in.Kind != intent.Recommend {
		return nil
	}

	var (
		movies []kobis.Movie
		err    error
	)
	switch in.Criterion {
	case intent.CriterionDirector:
		if in.Value == "" {
			return nil
		}
		movies, err = s.catalog.SearchByDirector(ctx, in.Value)
	case intent.CriterionActor:
		if in.Value == "" {
			return nil
		}
		movies, err = s.actorFilmography(ctx, in.Value)
	case intent.CriterionBoxOffice:
		movies, err = s.catalog.DailyRanking(ctx, Yesterday(s.now()))
	default:
		return nil
	}

	if err != nil {
		s.logger.Warn("candidate lookup failed",
			"intent", in.String(),
			"value", in.Value,
			"reason", failureReason(err),
			"error", err,
		)
		return nil
	}

	titles := make([]string, 0, len(movies))
	for _, m := range movies {
		titles = append(titles, m.Title)
	}
	out := Filter(titles, exclusion)

	s.logger.Info("candidates sourced",
		"intent", in.String(),
		"value", in.Value,
		"looked_up", len(movies),
		"eligible", len(out),
	)
	return out
}

// actorFilmography resolves the name to the first matching person and
// fetches that person's filmography.
func (s *Sourcer) actorFilmography(ctx context.Context, name string) ([]kobis.Movie, error) {
	people, err := s.catalog.SearchPerson(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(people) == 0 || people[0].Code == "" {
		return nil, nil
	}
	return s.catalog.PersonFilmography(ctx, people[0].Code)
}

func failureReason(err error) string {
	if errors.Is(err, kobis.ErrMissingAPIKey) {
		return "not_configured"
	}
	return "error"
}

// Yesterday returns the calendar day before t; the box office for "today" is
// never published yet.
func Yesterday(t time.Time) time.Time {
	return t.AddDate(0, 0, -1)
}

// Filter drops empty titles, titles in exclusion and repeats, keeping the
// first occurrence order. Matching is exact and case-sensitive.
func Filter(titles, exclusion []string) []string {
	seen := make(map[string]struct{}, len(titles)+len(exclusion))
	for _, t := range exclusion {
		seen[t] = struct{}{}
	}

	var out []string
	for _, t := range titles {
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
