// Package curator implements the recommendation personas. Every persona
// proposes candidates, verifies them against the movie catalog and renders a
// reply. None of these operations return errors: lookup and generation
// failures degrade to fallbacks.
package curator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/marquee/internal/anthropic"
	"github.com/MikeSquared-Agency/marquee/internal/intent"
	"github.com/MikeSquared-Agency/marquee/internal/kobis"
	"github.com/MikeSquared-Agency/marquee/internal/metrics"
	"github.com/MikeSquared-Agency/marquee/internal/openai"
)

// MaxPicks is the most titles a persona recommends in one reply.
const MaxPicks = 2

const (
	maxTrendSeeds   = 8
	maxPeopleHints  = 2
	maxFilmoPerHint = 10
	trendWeekOffset = -7
	stageCandidates = "candidates"
	stageReply      = "reply"
	resultOK        = "ok"
	resultError     = "error"
	resultMalformed = "malformed"
	resultNotConfig = "not_configured"
	reasonNotConfig = "not_configured"
	reasonTransport = "error"
)

// Generator is the text generation service.
type Generator interface {
	Generate(ctx context.Context, system, user string, temperature float64) (string, error)
}

// Catalog is the subset of the metadata lookup client personas use.
type Catalog interface {
	SearchByTitle(ctx context.Context, name string) ([]kobis.Movie, error)
	SearchPerson(ctx context.Context, name string) ([]kobis.Person, error)
	DailyRanking(ctx context.Context, date time.Time) ([]kobis.Movie, error)
	WeeklyRanking(ctx context.Context, date time.Time) ([]kobis.Movie, error)
}

// Candidate is a proposed title with the persona's rationale. Which rationale
// fields are set depends on the persona.
type Candidate struct {
	Title  string `json:"title"`
	Why    string `json:"why,omitempty"`
	Thesis string `json:"thesis,omitempty"`
	Risk   string `json:"risk,omitempty"`
	Fact   *Fact  `json:"fact,omitempty"`
}

// Fact is the catalog record backing a title. Found is false when the lookup
// matched nothing or failed; Error carries the failure.
type Fact struct {
	Found          bool     `json:"found"`
	Code           string   `json:"movie_code,omitempty"`
	CanonicalTitle string   `json:"canonical_title,omitempty"`
	ReleaseDate    string   `json:"release_date,omitempty"`
	Genre          string   `json:"genre,omitempty"`
	Nation         string   `json:"nation,omitempty"`
	Directors      []string `json:"directors,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// ReplyInput is everything a persona sees when rendering its reply.
type ReplyInput struct {
	UserText     string
	Intent       intent.Intent
	Candidates   []Candidate
	Facts        map[string]Fact
	Exclusion    []string
	PriorReplies string
}

type Curator struct {
	Persona

	llm     Generator
	catalog Catalog
	logger  *slog.Logger
	now     func() time.Time
}

func New(p Persona, llm Generator, catalog Catalog, logger *slog.Logger) *Curator {
	return &Curator{
		Persona: p,
		llm:     llm,
		catalog: catalog,
		logger:  logger.With("persona", string(p.ID)),
		now:     time.Now,
	}
}

// Profile returns the persona this curator speaks as.
func (c *Curator) Profile() Persona {
	return c.Persona
}

// NewRoster builds one curator per persona in roster order.
func NewRoster(llm Generator, catalog Catalog, logger *slog.Logger) []*Curator {
	personas := Roster()
	out := make([]*Curator, len(personas))
	for i, p := range personas {
		out[i] = New(p, llm, catalog, logger)
	}
	return out
}

// GenerateCandidates asks the model for up to MaxPicks titles not in
// exclusion. When generation fails or yields nothing usable, it falls back to
// the first unused trend seed, then to the persona's fixed title.
func (c *Curator) GenerateCandidates(ctx context.Context, userText string, in intent.Intent, exclusion []string) []Candidate {
	var seeds, filmography []string
	switch c.Hint {
	case HintTrend:
		seeds = c.trendSeeds(ctx)
	case HintPeople:
		filmography = c.peopleHint(ctx, in)
	}

	prompt := fmt.Sprintf(candidateUserPrompt,
		userText,
		c.focus,
		hintBlock(in, seeds, filmography),
		listBlock(exclusion),
		c.fields,
	)

	raw, err := c.llm.Generate(ctx, c.System, prompt, c.CandidateTemperature)
	if err != nil {
		c.recordGeneration(stageCandidates, err)
		c.logger.Warn("candidate generation failed, using fallback",
			"reason", failureReason(err),
			"error", err,
		)
		return c.fallbackCandidates(seeds, exclusion)
	}

	out := eligible(parseCandidates(raw), exclusion)
	if len(out) == 0 {
		metrics.GenerationRequests.WithLabelValues(string(c.ID), stageCandidates, resultMalformed).Inc()
		c.logger.Warn("candidate output unusable, using fallback",
			"raw_len", len(raw),
		)
		return c.fallbackCandidates(seeds, exclusion)
	}

	metrics.GenerationRequests.WithLabelValues(string(c.ID), stageCandidates, resultOK).Inc()
	c.logger.Debug("candidates generated", "count", len(out))
	return out
}

// Verify looks up each title independently. A failed lookup records
// Found=false with the error for that title only.
func (c *Curator) Verify(ctx context.Context, titles []string) map[string]Fact {
	facts := make(map[string]Fact, len(titles))
	for _, t := range titles {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, done := facts[t]; done {
			continue
		}

		movies, err := c.catalog.SearchByTitle(ctx, t)
		if err != nil {
			c.logger.Warn("verification lookup failed",
				"title", t,
				"reason", failureReason(err),
				"error", err,
			)
			facts[t] = Fact{Found: false, Error: err.Error()}
			continue
		}
		if len(movies) == 0 {
			facts[t] = Fact{Found: false}
			continue
		}

		m := movies[0]
		facts[t] = Fact{
			Found:          true,
			Code:           m.Code,
			CanonicalTitle: m.Title,
			ReleaseDate:    m.OpenDate,
			Genre:          m.Genre,
			Nation:         m.Nation,
			Directors:      m.DirectorNames(),
		}
	}
	return facts
}

// GenerateReply renders the persona's message. The picked titles come from
// the candidate list, never from the generated text. A failed or empty
// generation yields a canned reply naming the same titles.
func (c *Curator) GenerateReply(ctx context.Context, in ReplyInput) (string, []string) {
	picked := pickedTitles(in.Candidates)

	prompt := fmt.Sprintf(replyUserPrompt,
		commonOutputRules,
		conversationRules,
		in.UserText,
		orEmpty(in.PriorReplies),
		listBlock(in.Exclusion),
		candidateBlock(in.Candidates),
		factBlock(in.Candidates, in.Facts),
		hintBlock(in.Intent, nil, nil),
	)

	text, err := c.llm.Generate(ctx, c.System, prompt, c.ReplyTemperature)
	if err != nil {
		c.recordGeneration(stageReply, err)
		c.logger.Warn("reply generation failed, using canned reply",
			"reason", failureReason(err),
			"error", err,
		)
		return c.fallbackReply(picked), picked
	}
	text = strings.TrimSpace(text)
	if text == "" {
		metrics.GenerationRequests.WithLabelValues(string(c.ID), stageReply, resultMalformed).Inc()
		c.logger.Warn("empty reply generated, using canned reply")
		return c.fallbackReply(picked), picked
	}

	metrics.GenerationRequests.WithLabelValues(string(c.ID), stageReply, resultOK).Inc()
	return text, picked
}

// trendSeeds returns yesterday's box office titles, or last week's ranking
// when the daily one is unavailable.
func (c *Curator) trendSeeds(ctx context.Context) []string {
	now := c.now()
	movies, err := c.catalog.DailyRanking(ctx, now.AddDate(0, 0, -1))
	if err != nil || len(movies) == 0 {
		if err != nil {
			c.logger.Warn("daily ranking unavailable", "reason", failureReason(err), "error", err)
		}
		movies, err = c.catalog.WeeklyRanking(ctx, now.AddDate(0, 0, trendWeekOffset))
		if err != nil {
			c.logger.Warn("weekly ranking unavailable", "reason", failureReason(err), "error", err)
			return nil
		}
	}

	seeds := make([]string, 0, maxTrendSeeds)
	for _, m := range movies {
		if m.Title == "" {
			continue
		}
		seeds = append(seeds, m.Title)
		if len(seeds) == maxTrendSeeds {
			break
		}
	}
	return seeds
}

// peopleHint returns filmography titles for the person named in the request.
// Only actor and director intents carry a name.
func (c *Curator) peopleHint(ctx context.Context, in intent.Intent) []string {
	if in.Value == "" {
		return nil
	}
	people, err := c.catalog.SearchPerson(ctx, in.Value)
	if err != nil {
		c.logger.Warn("people hint lookup failed", "name", in.Value, "reason", failureReason(err), "error", err)
		return nil
	}

	var titles []string
	for i, p := range people {
		if i == maxPeopleHints {
			break
		}
		filmo := p.Filmography()
		if len(filmo) > maxFilmoPerHint {
			filmo = filmo[:maxFilmoPerHint]
		}
		titles = append(titles, filmo...)
	}
	return titles
}

func (c *Curator) fallbackCandidates(seeds, exclusion []string) []Candidate {
	used := toSet(exclusion)
	for _, s := range seeds {
		if _, ok := used[s]; !ok {
			return []Candidate{{Title: s}}
		}
	}
	return []Candidate{{Title: c.Fallback}}
}

func (c *Curator) fallbackReply(picked []string) string {
	if len(picked) == 0 {
		return noCandidateReply
	}
	return fmt.Sprintf(c.fallbackLine, quoteTitles(picked))
}

func (c *Curator) recordGeneration(stage string, err error) {
	result := resultError
	if failureReason(err) == reasonNotConfig {
		result = resultNotConfig
	}
	metrics.GenerationRequests.WithLabelValues(string(c.ID), stage, result).Inc()
}

// failureReason separates a missing API key from a transport or API failure.
func failureReason(err error) string {
	if errors.Is(err, openai.ErrMissingAPIKey) ||
		errors.Is(err, anthropic.ErrMissingAPIKey) ||
		errors.Is(err, kobis.ErrMissingAPIKey) {
		return reasonNotConfig
	}
	return reasonTransport
}

// eligible drops excluded titles and truncates to MaxPicks.
func eligible(cands []Candidate, exclusion []string) []Candidate {
	used := toSet(exclusion)
	var out []Candidate
	for _, cand := range cands {
		if _, ok := used[cand.Title]; ok {
			continue
		}
		out = append(out, cand)
		if len(out) == MaxPicks {
			break
		}
	}
	return out
}

func pickedTitles(cands []Candidate) []string {
	var out []string
	for _, cand := range cands {
		if cand.Title == "" {
			continue
		}
		out = append(out, cand.Title)
		if len(out) == MaxPicks {
			break
		}
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}
