package curator

import "strings"

type ID string

const (
	Cinephile ID = "cinephile"
	Critic    ID = "critic"
	Popular   ID = "popular"
)

// HintKind selects the extra catalog context a persona gathers before
// proposing candidates.
type HintKind int

const (
	HintNone HintKind = iota
	// HintPeople looks up the filmography of the person named in the request.
	HintPeople
	// HintTrend seeds the prompt with the recent box office ranking.
	HintTrend
)

// Persona is the data that distinguishes one curator from another. All
// curators share the same behavior; only these fields differ.
type Persona struct {
	ID     ID
	Name   string
	Label  string
	System string

	CandidateTemperature float64
	ReplyTemperature     float64

	// Fallback is proposed when candidate generation yields nothing usable.
	Fallback string
	Hint     HintKind

	// fields is the JSON schema line requested from the model.
	fields string
	// focus is the persona-specific selection instruction.
	focus string
	// fallbackLine formats the canned reply used when reply generation fails.
	fallbackLine string
}

// Matches reports whether a selector token addresses this persona by Korean
// name, display label or slug.
func (p Persona) Matches(token string) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}
	return token == p.Name || token == p.Label || strings.EqualFold(token, string(p.ID))
}

// Roster returns the fixed persona set in speaking order.
func Roster() []Persona {
	return []Persona{
		{
			ID:                   Cinephile,
			Name:                 "영화덕후",
			Label:                "🎬 영화덕후",
			System:               cinephileSystem,
			CandidateTemperature: 0.95,
			ReplyTemperature:     0.95,
			Fallback:             "리틀 포레스트",
			Hint:                 HintPeople,
			fields:               `{"title":"영화제목", "why":"덕후스러운 이유(짧게)", "risk":"취향 탈 요소(짧게)"}`,
			focus:                "덕후 관점에서 추천 영화 1~2편만 골라.",
			fallbackLine:         "%s! 설명하면 길어지니까 일단 봐. 후회 안 할 거야.",
		},
		{
			ID:                   Critic,
			Name:                 "영화전문가",
			Label:                "🎓 영화전문가",
			System:               criticSystem,
			CandidateTemperature: 0.8,
			ReplyTemperature:     0.7,
			Fallback:             "기생충",
			Hint:                 HintNone,
			fields:               `{"title":"영화제목", "thesis":"왜 이 질문에 적합한지(짧게)"}`,
			focus:                "전문가 관점에서 추천 영화 1~2편만 골라.",
			fallbackLine:         "%s 추천할게. 연출과 이야기 모두 곱씹어 볼 만한 작품이야.",
		},
		{
			ID:                   Popular,
			Name:                 "대중관객",
			Label:                "🍿 대중관객",
			System:               popularSystem,
			CandidateTemperature: 0.7,
			ReplyTemperature:     0.85,
			Fallback:             "나 홀로 집에",
			Hint:                 HintTrend,
			fields:               `{"title":"영화제목", "why":"이유(짧게)"}`,
			focus:                "가능하면 트렌드 후보를 참고해서 오늘 당장 보기 좋은 영화 1~2편을 골라.",
			fallbackLine:         "%s 어때? 부담 없이 보기 딱 좋아.",
		},
	}
}
