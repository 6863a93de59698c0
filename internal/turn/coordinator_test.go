package turn

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/marquee/internal/candidates"
	"github.com/MikeSquared-Agency/marquee/internal/curator"
	"github.com/MikeSquared-Agency/marquee/internal/kobis"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedGenerator answers candidate prompts per persona system prompt and
// every other prompt with a fixed reply.
type scriptedGenerator struct {
	candidates map[string]string
	reply      string
	err        error
}

func (g *scriptedGenerator) Generate(_ context.Context, system, user string, _ float64) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	if strings.Contains(user, "JSON 배열") {
		return g.candidates[system], nil
	}
	if g.reply != "" {
		return g.reply, nil
	}
	return "이거 추천!", nil
}

func systemOf(id curator.ID) string {
	for _, p := range curator.Roster() {
		if p.ID == id {
			return p.System
		}
	}
	return ""
}

type fakeCatalog struct {
	director      map[string][]kobis.Movie
	err           error
	directorCalls int
}

func (f *fakeCatalog) SearchByTitle(_ context.Context, name string) ([]kobis.Movie, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []kobis.Movie{{Title: name, OpenDate: "20200101"}}, nil
}

func (f *fakeCatalog) SearchByDirector(_ context.Context, name string) ([]kobis.Movie, error) {
	f.directorCalls++
	return f.director[name], f.err
}

func (f *fakeCatalog) SearchPerson(context.Context, string) ([]kobis.Person, error) {
	return nil, f.err
}

func (f *fakeCatalog) PersonFilmography(context.Context, string) ([]kobis.Movie, error) {
	return nil, f.err
}

func (f *fakeCatalog) DailyRanking(context.Context, time.Time) ([]kobis.Movie, error) {
	return nil, f.err
}

func (f *fakeCatalog) WeeklyRanking(context.Context, time.Time) ([]kobis.Movie, error) {
	return nil, f.err
}

func newTestCoordinator(gen curator.Generator, cat *fakeCatalog, mode Mode) *Coordinator {
	logger := discardLogger()
	roster := curator.NewRoster(gen, cat, logger)
	agents := make([]Agent, len(roster))
	for i, c := range roster {
		agents[i] = c
	}
	return NewCoordinator(agents, candidates.NewSourcer(cat, logger), mode, logger)
}

func assertClosing(t *testing.T, msgs []Message) {
	t.Helper()
	if len(msgs) == 0 {
		t.Fatal("expected at least the moderator message")
	}
	if !reflect.DeepEqual(msgs[len(msgs)-1], Closing()) {
		t.Errorf("expected last message to be the moderator closing, got %+v", msgs[len(msgs)-1])
	}
	count := 0
	for _, m := range msgs {
		if m.Speaker == ModeratorSpeaker {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one moderator message, got %d", count)
	}
}

func assertNoDuplicates(t *testing.T, titles []string) {
	t.Helper()
	seen := map[string]bool{}
	for _, title := range titles {
		if seen[title] {
			t.Errorf("duplicate used title %q in %v", title, titles)
		}
		seen[title] = true
	}
}

func speakers(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.PersonaID
	}
	return out
}

func TestRunTurn_CurateAllPersonas(t *testing.T) {
	gen := &scriptedGenerator{candidates: map[string]string{
		systemOf(curator.Cinephile): `[{"title":"캐롤"},{"title":"러브 액츄얼리"}]`,
		systemOf(curator.Critic):    `[{"title":"캐롤"},{"title":"시민 케인"}]`,
		systemOf(curator.Popular):   `[{"title":"나 홀로 집에"}]`,
	}}
	c := newTestCoordinator(gen, &fakeCatalog{}, ModeSourced)

	msgs, conv := c.RunTurn(context.Background(), "크리스마스에 볼 영화 추천해줘", &Conversation{}, []string{"모두"})

	assertClosing(t, msgs)
	if len(msgs) != 4 {
		t.Fatalf("expected 3 replies plus moderator, got %d", len(msgs))
	}
	if want := []string{"cinephile", "critic", "popular", ""}; !reflect.DeepEqual(speakers(msgs), want) {
		t.Errorf("expected roster order %v, got %v", want, speakers(msgs))
	}
	for _, m := range msgs[:3] {
		if len(m.Titles) == 0 || len(m.Titles) > curator.MaxPicks {
			t.Errorf("%s: expected 1-2 titles, got %v", m.PersonaID, m.Titles)
		}
		if m.HighlightedTitle != m.Titles[0] {
			t.Errorf("%s: expected highlighted %q, got %q", m.PersonaID, m.Titles[0], m.HighlightedTitle)
		}
	}
	if want := []string{"시민 케인"}; !reflect.DeepEqual(msgs[1].Titles, want) {
		t.Errorf("expected critic to lose the repeated title, got %v", msgs[1].Titles)
	}

	want := []string{"캐롤", "러브 액츄얼리", "시민 케인", "나 홀로 집에"}
	if !reflect.DeepEqual(conv.UsedTitles, want) {
		t.Errorf("expected used titles %v, got %v", want, conv.UsedTitles)
	}
	if len(conv.History) != 3 {
		t.Errorf("expected 3 history entries, got %d", len(conv.History))
	}
}

func TestRunTurn_DirectorRoundRobin(t *testing.T) {
	cat := &fakeCatalog{director: map[string][]kobis.Movie{
		"봉준호": {{Title: "기생충"}, {Title: "마더"}},
	}}
	c := newTestCoordinator(&scriptedGenerator{}, cat, ModeSourced)

	msgs, conv := c.RunTurn(context.Background(), "봉준호 감독 영화 추천해줘", nil, []string{"all"})

	assertClosing(t, msgs)
	if len(msgs) != 3 {
		t.Fatalf("expected 2 replies plus moderator, got %d: %+v", len(msgs), msgs)
	}
	if msgs[0].PersonaID != "cinephile" || msgs[0].HighlightedTitle != "기생충" {
		t.Errorf("expected cinephile with 기생충, got %+v", msgs[0])
	}
	if msgs[1].PersonaID != "critic" || msgs[1].HighlightedTitle != "마더" {
		t.Errorf("expected critic with 마더, got %+v", msgs[1])
	}
	if !reflect.DeepEqual(conv.UsedTitles, []string{"기생충", "마더"}) {
		t.Errorf("unexpected used titles %v", conv.UsedTitles)
	}
	if cat.directorCalls != 1 {
		t.Errorf("expected one shared director lookup, got %d", cat.directorCalls)
	}
}

func TestRunTurn_SourcedRespectsPriorTurns(t *testing.T) {
	cat := &fakeCatalog{director: map[string][]kobis.Movie{
		"봉준호": {{Title: "기생충"}, {Title: "마더"}},
	}}
	c := newTestCoordinator(&scriptedGenerator{}, cat, ModeSourced)
	conv := &Conversation{UsedTitles: []string{"기생충"}}

	msgs, conv := c.RunTurn(context.Background(), "봉준호 감독 작품", conv, nil)

	assertClosing(t, msgs)
	if len(msgs) != 2 || msgs[0].HighlightedTitle != "마더" {
		t.Errorf("expected only cinephile with 마더, got %+v", msgs)
	}
	assertNoDuplicates(t, conv.UsedTitles)
}

func TestRunTurn_RepeatedProposalAcrossTurns(t *testing.T) {
	gen := &scriptedGenerator{candidates: map[string]string{
		systemOf(curator.Cinephile): `[{"title":"캐롤"}]`,
		systemOf(curator.Critic):    `[{"title":"캐롤"}]`,
		systemOf(curator.Popular):   `[{"title":"캐롤"}]`,
	}}
	c := newTestCoordinator(gen, &fakeCatalog{}, ModeSourced)

	msgs, conv := c.RunTurn(context.Background(), "겨울 영화", nil, nil)
	assertClosing(t, msgs)
	if want := []string{"캐롤", "기생충", "나 홀로 집에"}; !reflect.DeepEqual(conv.UsedTitles, want) {
		t.Fatalf("expected %v after first turn, got %v", want, conv.UsedTitles)
	}

	msgs, conv = c.RunTurn(context.Background(), "겨울 영화 하나 더", conv, nil)
	assertClosing(t, msgs)

	// Cinephile falls back to its own title; the others' fallbacks are used up.
	if len(msgs) != 2 || msgs[0].HighlightedTitle != "리틀 포레스트" {
		t.Errorf("expected only cinephile with 리틀 포레스트, got %+v", msgs)
	}
	assertNoDuplicates(t, conv.UsedTitles)
	if len(conv.UsedTitles) != 4 {
		t.Errorf("expected 4 used titles, got %v", conv.UsedTitles)
	}
}

func TestRunTurn_LookupFailureUsesStaticFallbacks(t *testing.T) {
	cat := &fakeCatalog{err: errors.New("dial tcp: connection refused")}
	gen := &scriptedGenerator{err: errors.New("context deadline exceeded")}
	c := newTestCoordinator(gen, cat, ModeSourced)

	msgs, conv := c.RunTurn(context.Background(), "봉준호 감독 영화", nil, nil)

	assertClosing(t, msgs)
	want := []string{"리틀 포레스트", "기생충", "나 홀로 집에"}
	if !reflect.DeepEqual(conv.UsedTitles, want) {
		t.Errorf("expected static fallbacks %v, got %v", want, conv.UsedTitles)
	}
	for _, m := range msgs[:len(msgs)-1] {
		if !strings.Contains(m.Text, "「"+m.HighlightedTitle+"」") {
			t.Errorf("%s: expected canned reply naming %q, got %q", m.PersonaID, m.HighlightedTitle, m.Text)
		}
	}
}

func TestRunTurn_MalformedGenerationOutput(t *testing.T) {
	gen := &scriptedGenerator{
		candidates: map[string]string{},
		reply:      "그냥 아무 말",
	}
	c := newTestCoordinator(gen, &fakeCatalog{}, ModeSourced)

	msgs, conv := c.RunTurn(context.Background(), "아무거나 추천", nil, nil)

	assertClosing(t, msgs)
	if len(msgs) != 4 {
		t.Fatalf("expected every persona to fall back and reply, got %+v", msgs)
	}
	for _, m := range msgs[:3] {
		if len(m.Titles) != 1 {
			t.Errorf("%s: expected the static fallback, got %v", m.PersonaID, m.Titles)
		}
	}
	assertNoDuplicates(t, conv.UsedTitles)
}

func TestRunTurn_SelfModeSkipsSourcing(t *testing.T) {
	cat := &fakeCatalog{director: map[string][]kobis.Movie{"봉준호": {{Title: "기생충"}}}}
	gen := &scriptedGenerator{candidates: map[string]string{
		systemOf(curator.Cinephile): `[{"title":"살인의 추억"}]`,
		systemOf(curator.Critic):    `[{"title":"마더"}]`,
		systemOf(curator.Popular):   `[{"title":"괴물"}]`,
	}}
	c := newTestCoordinator(gen, cat, ModeSelf)

	_, conv := c.RunTurn(context.Background(), "봉준호 감독 영화", nil, nil)

	if cat.directorCalls != 0 {
		t.Errorf("expected no sourcing lookups in self mode, got %d", cat.directorCalls)
	}
	if want := []string{"살인의 추억", "마더", "괴물"}; !reflect.DeepEqual(conv.UsedTitles, want) {
		t.Errorf("expected %v, got %v", want, conv.UsedTitles)
	}
}

// spyAgent records the exclusion set each reply was generated against.
type spyAgent struct {
	Agent
	exclusions [][]string
	picks      [][]string
}

func (s *spyAgent) GenerateReply(ctx context.Context, in curator.ReplyInput) (string, []string) {
	text, picked := s.Agent.GenerateReply(ctx, in)
	s.exclusions = append(s.exclusions, in.Exclusion)
	s.picks = append(s.picks, picked)
	return text, picked
}

func TestRunTurn_ExclusionInvariant(t *testing.T) {
	gen := &scriptedGenerator{candidates: map[string]string{
		systemOf(curator.Cinephile): `[{"title":"A"},{"title":"B"}]`,
		systemOf(curator.Critic):    `[{"title":"B"},{"title":"C"},{"title":"A"}]`,
		systemOf(curator.Popular):   `[{"title":"C"},{"title":"D"}]`,
	}}
	logger := discardLogger()
	cat := &fakeCatalog{}
	var spies []*spyAgent
	var agents []Agent
	for _, c := range curator.NewRoster(gen, cat, logger) {
		s := &spyAgent{Agent: c}
		spies = append(spies, s)
		agents = append(agents, s)
	}
	c := NewCoordinator(agents, candidates.NewSourcer(cat, logger), ModeSourced, logger)

	var conv *Conversation
	for _, text := range []string{"추천해줘", "하나 더", "또", "봉준호 감독", "요즘 인기작"} {
		_, conv = c.RunTurn(context.Background(), text, conv, nil)
		assertNoDuplicates(t, conv.UsedTitles)
	}

	for _, s := range spies {
		for i, picked := range s.picks {
			for _, title := range picked {
				for _, used := range s.exclusions[i] {
					if title == used {
						t.Errorf("%s picked %q which was already used", s.Profile().ID, title)
					}
				}
			}
		}
	}
}

// rogueAgent reports picks it was never offered.
type rogueAgent struct {
	Agent
	picked []string
}

func (r *rogueAgent) GenerateReply(context.Context, curator.ReplyInput) (string, []string) {
	return "rogue", r.picked
}

func TestRunTurn_DropsPicksAlreadyUsed(t *testing.T) {
	gen := &scriptedGenerator{candidates: map[string]string{
		systemOf(curator.Critic): `[{"title":"새 영화"}]`,
	}}
	logger := discardLogger()
	critic := curator.New(curator.Roster()[1], gen, &fakeCatalog{}, logger)
	agent := &rogueAgent{Agent: critic, picked: []string{"기생충", "새 영화", "새 영화"}}
	c := NewCoordinator([]Agent{agent}, candidates.NewSourcer(&fakeCatalog{}, logger), ModeSourced, logger)

	msgs, conv := c.RunTurn(context.Background(), "아무거나", &Conversation{UsedTitles: []string{"기생충"}}, nil)

	if !reflect.DeepEqual(msgs[0].Titles, []string{"새 영화"}) {
		t.Errorf("expected used and repeated picks dropped, got %v", msgs[0].Titles)
	}
	if !reflect.DeepEqual(conv.UsedTitles, []string{"기생충", "새 영화"}) {
		t.Errorf("unexpected used titles %v", conv.UsedTitles)
	}
}

func TestRunTurn_PriorRepliesFromEarlierTurns(t *testing.T) {
	var seen []string
	gen := &scriptedGenerator{candidates: map[string]string{
		systemOf(curator.Critic): `[{"title":"새 영화"}]`,
	}}
	logger := discardLogger()
	critic := curator.New(curator.Roster()[1], gen, &fakeCatalog{}, logger)
	agent := &priorSpy{Agent: critic, seen: &seen}
	c := NewCoordinator([]Agent{agent}, candidates.NewSourcer(&fakeCatalog{}, logger), ModeSourced, logger)

	conv := &Conversation{History: []Reply{{Speaker: "🎬 영화덕후", Text: "캐롤 봐!"}}}
	c.RunTurn(context.Background(), "아무거나", conv, nil)

	if len(seen) != 1 || seen[0] != "🎬 영화덕후: 캐롤 봐!" {
		t.Errorf("expected prior reply text, got %q", seen)
	}
}

type priorSpy struct {
	Agent
	seen *[]string
}

func (p *priorSpy) GenerateReply(ctx context.Context, in curator.ReplyInput) (string, []string) {
	*p.seen = append(*p.seen, in.PriorReplies)
	return p.Agent.GenerateReply(ctx, in)
}

func TestResolve(t *testing.T) {
	c := newTestCoordinator(&scriptedGenerator{}, &fakeCatalog{}, ModeSourced)

	ids := func(agents []Agent) []curator.ID {
		var out []curator.ID
		for _, a := range agents {
			out = append(out, a.Profile().ID)
		}
		return out
	}

	tests := []struct {
		name     string
		selector []string
		want     []curator.ID
	}{
		{"empty", nil, []curator.ID{curator.Cinephile, curator.Critic, curator.Popular}},
		{"all korean", []string{"모두"}, []curator.ID{curator.Cinephile, curator.Critic, curator.Popular}},
		{"all english", []string{"ALL"}, []curator.ID{curator.Cinephile, curator.Critic, curator.Popular}},
		{"korean name", []string{"영화전문가"}, []curator.ID{curator.Critic}},
		{"roster order", []string{"popular", "영화덕후"}, []curator.ID{curator.Cinephile, curator.Popular}},
		{"unknown dropped", []string{"평론가", "critic"}, []curator.ID{curator.Critic}},
		{"only unknown", []string{"평론가"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ids(c.Resolve(tt.selector)); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRunTurn_NoActivePersonas(t *testing.T) {
	cat := &fakeCatalog{director: map[string][]kobis.Movie{"봉준호": {{Title: "기생충"}}}}
	c := newTestCoordinator(&scriptedGenerator{}, cat, ModeSourced)

	msgs, conv := c.RunTurn(context.Background(), "봉준호 감독", nil, []string{"nobody"})

	if len(msgs) != 1 {
		t.Errorf("expected only the moderator, got %+v", msgs)
	}
	assertClosing(t, msgs)
	if len(conv.UsedTitles) != 0 || cat.directorCalls != 0 {
		t.Errorf("expected no work without personas, used=%v calls=%d", conv.UsedTitles, cat.directorCalls)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeSourced, false},
		{"sourced", ModeSourced, false},
		{" SELF ", ModeSelf, false},
		{"hybrid", ModeSourced, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) = %v, %v", tt.in, got, err)
		}
	}
}
