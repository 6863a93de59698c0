// Package intent routes a raw chat utterance to a recommendation strategy.
//
// Classification is keyword based and pure: the same text always yields the
// same Intent. Rules are evaluated in a fixed priority order (director, actor,
// box office trend, curate) and the first match wins regardless of where the
// keywords appear in the text.
package intent

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

type Kind int

const (
	Curate Kind = iota
	Recommend
)

type Criterion int

const (
	CriterionNone Criterion = iota
	CriterionDirector
	CriterionActor
	CriterionBoxOffice
)

func (c Criterion) String() string {
	switch c {
	case CriterionDirector:
		return "director"
	case CriterionActor:
		return "actor"
	case CriterionBoxOffice:
		return "boxoffice"
	default:
		return "none"
	}
}

// Intent is the routing decision for one turn. Value holds the extracted
// director or actor name and is empty for box office and curate intents.
// Mood and Genre are prompt hints only and never affect routing.
type Intent struct {
	Kind      Kind
	Criterion Criterion
	Value     string
	Mood      string
	Genre     string
}

// String returns a stable label such as "curate" or "recommend:director".
func (i Intent) String() string {
	if i.Kind == Curate {
		return "curate"
	}
	return "recommend:" + i.Criterion.String()
}

const directorMarker = "감독"

var actorMarkers = []string{"배우", "주연", "출연", "나오는"}

var trendKeywords = []string{
	"박스오피스", "흥행", "인기", "요즘", "최신", "유행", "화제",
	"클래식", "고전", "명작", "시대",
}

var (
	englishTrendPattern = regexp.MustCompile(`\b(box ?office|popular|trending|classics?|era)\b`)
	decadePattern       = regexp.MustCompile(`\d{2,4}\s*년대|\b\d{2,4}'?s\b`)
)

var moodKeywords = []struct {
	mood     string
	keywords []string
}{
	{"christmas", []string{"크리스마스", "성탄", "christmas"}},
}

var genreKeywords = []struct {
	genre    string
	keywords []string
}{
	{"romance", []string{"로맨스", "멜로", "romance"}},
	{"horror", []string{"공포", "호러", "horror"}},
}

// nameSuffixes are particles and honorifics trimmed from an extracted name.
var nameSuffixes = []string{"님", "의", "가"}

// Classify maps user text to an Intent. It never fails; text with no marker
// or trend keyword is a Curate intent.
func Classify(text string) Intent {
	t := strings.TrimSpace(text)
	lower := strings.ToLower(t)

	in := Intent{Kind: Curate, Mood: detectMood(lower), Genre: detectGenre(lower)}

	switch {
	case strings.Contains(t, directorMarker):
		in.Kind = Recommend
		in.Criterion = CriterionDirector
		in.Value = extractName(t, directorMarker)
	case containsAny(t, actorMarkers):
		in.Kind = Recommend
		in.Criterion = CriterionActor
		in.Value = extractName(t, firstMarker(t, actorMarkers))
	case containsAny(lower, trendKeywords) || englishTrendPattern.MatchString(lower) || decadePattern.MatchString(lower):
		in.Kind = Recommend
		in.Criterion = CriterionBoxOffice
	}

	return in
}

// extractName returns the token immediately preceding the first occurrence of
// marker, or "" when nothing precedes it.
func extractName(text, marker string) string {
	idx := strings.Index(text, marker)
	if idx < 0 {
		return ""
	}
	return cleanName(lastField(text[:idx]))
}

func cleanName(token string) string {
	token = strings.TrimFunc(token, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	for _, suffix := range nameSuffixes {
		if strings.HasSuffix(token, suffix) && utf8.RuneCountInString(token) > 2 {
			token = strings.TrimSuffix(token, suffix)
			break
		}
	}
	return token
}

func lastField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// firstMarker returns the marker from the list that occurs earliest in text.
func firstMarker(text string, markers []string) string {
	best, bestIdx := "", -1
	for _, m := range markers {
		if i := strings.Index(text, m); i >= 0 && (bestIdx < 0 || i < bestIdx) {
			best, bestIdx = m, i
		}
	}
	return best
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func detectMood(lower string) string {
	for _, m := range moodKeywords {
		if containsAny(lower, m.keywords) {
			return m.mood
		}
	}
	return ""
}

// detectGenre lets horror override romance when both appear.
func detectGenre(lower string) string {
	genre := ""
	for _, g := range genreKeywords {
		if containsAny(lower, g.keywords) {
			genre = g.genre
		}
	}
	return genre
}
