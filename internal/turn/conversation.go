package turn

import (
	"slices"
	"strings"
)

// Message is one line of the chat transcript as shown to the user.
type Message struct {
	Speaker          string   `json:"speaker"`
	PersonaID        string   `json:"persona_id,omitempty"`
	Text             string   `json:"text"`
	HighlightedTitle string   `json:"highlighted_title,omitempty"`
	Titles           []string `json:"titles,omitempty"`
	PosterURL        string   `json:"poster_url,omitempty"`
}

// Reply is an accepted persona contribution recorded in the history.
type Reply struct {
	PersonaID string   `json:"persona_id"`
	Speaker   string   `json:"speaker"`
	Text      string   `json:"text"`
	Picked    []string `json:"picked"`
}

// Conversation is the state threaded through turns. UsedTitles is the
// exclusion set: append-only, no duplicates, exact string match.
type Conversation struct {
	UsedTitles []string `json:"used_titles"`
	History    []Reply  `json:"history"`
}

// IsUsed reports whether title was already recommended.
func (c *Conversation) IsUsed(title string) bool {
	return slices.Contains(c.UsedTitles, title)
}

// MarkUsed appends titles not already present.
func (c *Conversation) MarkUsed(titles ...string) {
	for _, t := range titles {
		if t == "" || c.IsUsed(t) {
			continue
		}
		c.UsedTitles = append(c.UsedTitles, t)
	}
}

// Clone returns a deep copy.
func (c *Conversation) Clone() *Conversation {
	out := &Conversation{UsedTitles: slices.Clone(c.UsedTitles)}
	out.History = make([]Reply, len(c.History))
	for i, r := range c.History {
		r.Picked = slices.Clone(r.Picked)
		out.History[i] = r
	}
	return out
}

// priorReplies renders the last n history entries as "speaker: text" lines.
func (c *Conversation) priorReplies(n int) string {
	h := c.History
	if len(h) > n {
		h = h[len(h)-n:]
	}
	lines := make([]string, len(h))
	for i, r := range h {
		lines[i] = r.Speaker + ": " + r.Text
	}
	return strings.Join(lines, "\n")
}
