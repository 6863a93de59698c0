package curator

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/MikeSquared-Agency/marquee/internal/intent"
)

// parseCandidates extracts title objects from model output. The output is
// untrusted: surrounding prose and code fences are ignored, elements that are
// not objects with a non-empty string title are dropped, and repeated titles
// keep their first occurrence. It returns nil when no array can be decoded.
func parseCandidates(raw string) []Candidate {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil
	}

	var items []any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &items); err != nil {
		return nil
	}

	seen := make(map[string]struct{}, len(items))
	var out []Candidate
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		title := stringField(obj, "title")
		if title == "" {
			continue
		}
		if _, dup := seen[title]; dup {
			continue
		}
		seen[title] = struct{}{}
		out = append(out, Candidate{
			Title:  title,
			Why:    stringField(obj, "why"),
			Thesis: stringField(obj, "thesis"),
			Risk:   stringField(obj, "risk"),
		})
	}
	return out
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

func listBlock(items []string) string {
	if len(items) == 0 {
		return emptyBlock
	}
	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(it)
	}
	return b.String()
}

func orEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return emptyBlock
	}
	return s
}

func candidateBlock(cands []Candidate) string {
	if len(cands) == 0 {
		return emptyBlock
	}
	lines := make([]string, 0, len(cands))
	for _, c := range cands {
		line := "- " + c.Title
		var notes []string
		if c.Why != "" {
			notes = append(notes, "이유: "+c.Why)
		}
		if c.Thesis != "" {
			notes = append(notes, "논지: "+c.Thesis)
		}
		if c.Risk != "" {
			notes = append(notes, "호불호: "+c.Risk)
		}
		if len(notes) > 0 {
			line += " (" + strings.Join(notes, ", ") + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// factBlock renders facts in candidate order so prompts are deterministic.
func factBlock(cands []Candidate, facts map[string]Fact) string {
	var lines []string
	for _, c := range cands {
		f, ok := facts[c.Title]
		if !ok {
			continue
		}
		if !f.Found {
			lines = append(lines, fmt.Sprintf("- %s: 확인되지 않음", c.Title))
			continue
		}
		var parts []string
		if f.CanonicalTitle != "" && f.CanonicalTitle != c.Title {
			parts = append(parts, "정식 제목 "+f.CanonicalTitle)
		}
		if f.ReleaseDate != "" {
			parts = append(parts, "개봉 "+f.ReleaseDate)
		}
		if f.Genre != "" {
			parts = append(parts, "장르 "+f.Genre)
		}
		if f.Nation != "" {
			parts = append(parts, "국가 "+f.Nation)
		}
		if len(f.Directors) > 0 {
			parts = append(parts, "감독 "+strings.Join(f.Directors, ", "))
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", c.Title, strings.Join(parts, " / ")))
	}
	if len(lines) == 0 {
		return emptyBlock
	}
	return strings.Join(lines, "\n")
}

// hintBlock renders mood and genre hints plus any catalog context gathered
// for the persona. It returns an empty string when there is nothing to add.
func hintBlock(in intent.Intent, seeds, filmography []string) string {
	var lines []string
	if label, ok := hintLabels[in.Mood]; ok {
		lines = append(lines, "분위기: "+label)
	}
	if label, ok := hintLabels[in.Genre]; ok {
		lines = append(lines, "장르: "+label)
	}
	if len(seeds) > 0 {
		lines = append(lines, "트렌드 후보: "+strings.Join(seeds, ", "))
	}
	if len(filmography) > 0 {
		lines = append(lines, "필모그래피 힌트 (참고만): "+strings.Join(filmography, ", "))
	}
	if len(lines) == 0 {
		return ""
	}
	return "\n[참고]\n" + strings.Join(lines, "\n") + "\n"
}

func quoteTitles(titles []string) string {
	quoted := make([]string, len(titles))
	for i, t := range titles {
		quoted[i] = "「" + t + "」"
	}
	return strings.Join(quoted, ", ")
}
