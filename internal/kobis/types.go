package kobis

import (
	"fmt"
	"strings"
)

// DateLayout is the targetDt format the box office endpoints expect.
const DateLayout = "20060102"

// Movie is a movie row as returned by the movie list, filmography and box
// office endpoints. Only the fields each endpoint carries are populated.
type Movie struct {
	Code      string     `json:"movieCd"`
	Title     string     `json:"movieNm"`
	TitleEn   string     `json:"movieNmEn,omitempty"`
	OpenDate  string     `json:"openDt,omitempty"`
	Genre     string     `json:"genreAlt,omitempty"`
	Nation    string     `json:"nationAlt,omitempty"`
	Directors []Director `json:"directors,omitempty"`

	// Box office only.
	Rank        string `json:"rank,omitempty"`
	AudienceAcc string `json:"audiAcc,omitempty"`

	// Filmography only (e.g. "배우", "감독").
	Part string `json:"moviePartNm,omitempty"`
}

// DirectorNames returns the non-empty director names in API order.
func (m Movie) DirectorNames() []string {
	names := make([]string, 0, len(m.Directors))
	for _, d := range m.Directors {
		if d.Name != "" {
			names = append(names, d.Name)
		}
	}
	return names
}

type Director struct {
	Name string `json:"peopleNm"`
}

// Person is a row from the people search endpoint.
type Person struct {
	Code       string `json:"peopleCd"`
	Name       string `json:"peopleNm"`
	NameEn     string `json:"peopleNmEn,omitempty"`
	Role       string `json:"repRoleNm,omitempty"`
	FilmoNames string `json:"filmoNames,omitempty"`
}

// Filmography splits the pipe-delimited filmoNames summary.
func (p Person) Filmography() []string {
	if p.FilmoNames == "" {
		return nil
	}
	var out []string
	for _, name := range strings.Split(p.FilmoNames, "|") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// APIError is a non-200 status or a faultInfo payload from KOBIS.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("kobis error %d: %s — %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("kobis error %d: %s", e.Status, e.Message)
}

type faultEnvelope struct {
	FaultInfo *struct {
		Message   string `json:"message"`
		ErrorCode string `json:"errorCode"`
	} `json:"faultInfo"`
}

type movieListResponse struct {
	MovieListResult struct {
		TotCnt    int     `json:"totCnt"`
		MovieList []Movie `json:"movieList"`
	} `json:"movieListResult"`
}

type peopleListResponse struct {
	PeopleListResult struct {
		TotCnt     int      `json:"totCnt"`
		PeopleList []Person `json:"peopleList"`
	} `json:"peopleListResult"`
}

type peopleInfoResponse struct {
	PeopleInfoResult struct {
		PeopleInfo struct {
			PeopleCd string  `json:"peopleCd"`
			PeopleNm string  `json:"peopleNm"`
			Filmos   []Movie `json:"filmos"`
		} `json:"peopleInfo"`
	} `json:"peopleInfoResult"`
}

type boxOfficeResponse struct {
	BoxOfficeResult struct {
		BoxofficeType       string  `json:"boxofficeType"`
		ShowRange           string  `json:"showRange"`
		DailyBoxOfficeList  []Movie `json:"dailyBoxOfficeList"`
		WeeklyBoxOfficeList []Movie `json:"weeklyBoxOfficeList"`
	} `json:"boxOfficeResult"`
}
