// Package turn runs one chat turn: it picks the active personas, hands each
// an eligible title, verifies and renders the replies, and keeps the
// conversation's exclusion set free of repeats.
package turn

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/marquee/internal/curator"
	"github.com/MikeSquared-Agency/marquee/internal/intent"
	"github.com/MikeSquared-Agency/marquee/internal/metrics"
)

// Mode selects how personas obtain candidates.
type Mode string

const (
	// ModeSourced sources Recommend intents from the catalog and lets personas
	// self-generate only for Curate intents.
	ModeSourced Mode = "sourced"
	// ModeSelf makes every persona self-generate regardless of intent.
	ModeSelf Mode = "self"
)

// ParseMode maps a configuration value to a Mode, defaulting to ModeSourced.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSourced, "":
		return ModeSourced, nil
	case ModeSelf:
		return ModeSelf, nil
	default:
		return ModeSourced, fmt.Errorf("unknown turn mode %q", s)
	}
}

// allSelectors expand to the full roster.
var allSelectors = []string{"모두", "all", "전체"}

// priorReplyWindow is how many earlier replies personas see.
const priorReplyWindow = 6

// Agent is a persona's capability set.
type Agent interface {
	Profile() curator.Persona
	GenerateCandidates(ctx context.Context, userText string, in intent.Intent, exclusion []string) []curator.Candidate
	Verify(ctx context.Context, titles []string) map[string]curator.Fact
	GenerateReply(ctx context.Context, in curator.ReplyInput) (string, []string)
}

// Sourcer produces the shared candidate list for Recommend intents.
type Sourcer interface {
	Source(ctx context.Context, in intent.Intent, exclusion []string) []string
}

// Coordinator is stateless between turns; all per-conversation state lives in
// the Conversation passed to RunTurn. Callers serialize turns per conversation.
type Coordinator struct {
	agents  []Agent
	sourcer Sourcer
	mode    Mode
	logger  *slog.Logger
}

func NewCoordinator(agents []Agent, sourcer Sourcer, mode Mode, logger *slog.Logger) *Coordinator {
	return &Coordinator{agents: agents, sourcer: sourcer, mode: mode, logger: logger}
}

// Mode returns the candidate mode the coordinator runs in.
func (c *Coordinator) Mode() Mode {
	return c.mode
}

// Resolve returns the agents addressed by selector in roster order. An empty
// selector or any of the "all" aliases selects the whole roster; unknown
// tokens are ignored.
func (c *Coordinator) Resolve(selector []string) []Agent {
	if len(selector) == 0 {
		return c.agents
	}
	for _, s := range selector {
		for _, all := range allSelectors {
			if strings.EqualFold(strings.TrimSpace(s), all) {
				return c.agents
			}
		}
	}

	var out []Agent
	for _, a := range c.agents {
		p := a.Profile()
		for _, s := range selector {
			if p.Matches(s) {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// RunTurn processes one user utterance. It never fails: lookup and
// generation problems degrade individual personas, and the returned messages
// always end with the moderator's closing line. conv is mutated in place and
// returned; a nil conv starts a new conversation.
func (c *Coordinator) RunTurn(ctx context.Context, text string, conv *Conversation, selector []string) ([]Message, *Conversation) {
	start := time.Now()
	if conv == nil {
		conv = &Conversation{}
	}

	active := c.Resolve(selector)
	in := intent.Classify(text)
	metrics.TurnsTotal.WithLabelValues(in.String()).Inc()

	log := c.logger.With("intent", in.String())
	log.Info("turn started",
		"personas", len(active),
		"used_titles", len(conv.UsedTitles),
	)

	prior := conv.priorReplies(priorReplyWindow)

	// queue is nil when personas generate their own candidates.
	var queue []string
	if c.mode == ModeSourced && in.Kind == intent.Recommend && len(active) > 0 {
		queue = c.sourcer.Source(ctx, in, slices.Clone(conv.UsedTitles))
		if len(queue) == 0 {
			log.Warn("no sourced candidates, personas will self-generate", "value", in.Value)
		}
	}
	sourced := len(queue) > 0

	messages := make([]Message, 0, len(active)+1)
	for _, a := range active {
		p := a.Profile()

		var cands []curator.Candidate
		if sourced {
			var title string
			title, queue = c.pop(queue, conv)
			if title != "" {
				cands = []curator.Candidate{{Title: title}}
			}
		} else {
			cands = a.GenerateCandidates(ctx, text, in, slices.Clone(conv.UsedTitles))
			cands = c.eligible(cands, conv)
		}

		if len(cands) == 0 {
			metrics.PersonaOutcomes.WithLabelValues(string(p.ID), "skipped").Inc()
			log.Info("persona skipped, no eligible candidates", "persona", string(p.ID))
			continue
		}

		titles := make([]string, len(cands))
		for i := range cands {
			titles[i] = cands[i].Title
		}
		facts := a.Verify(ctx, titles)
		for i := range cands {
			if f, ok := facts[cands[i].Title]; ok {
				cands[i].Fact = &f
			}
		}

		reply, picked := a.GenerateReply(ctx, curator.ReplyInput{
			UserText:     text,
			Intent:       in,
			Candidates:   cands,
			Facts:        facts,
			Exclusion:    slices.Clone(conv.UsedTitles),
			PriorReplies: prior,
		})
		picked = c.accept(picked, conv)

		conv.MarkUsed(picked...)
		conv.History = append(conv.History, Reply{
			PersonaID: string(p.ID),
			Speaker:   p.Label,
			Text:      reply,
			Picked:    picked,
		})

		msg := Message{
			Speaker:   p.Label,
			PersonaID: string(p.ID),
			Text:      reply,
			Titles:    picked,
		}
		if len(picked) > 0 {
			msg.HighlightedTitle = picked[0]
		}
		messages = append(messages, msg)

		metrics.PersonaOutcomes.WithLabelValues(string(p.ID), "replied").Inc()
		log.Info("persona replied", "persona", string(p.ID), "picked", picked)
	}

	messages = append(messages, Closing())

	elapsed := time.Since(start)
	metrics.TurnDuration.Observe(elapsed.Seconds())
	log.Info("turn complete",
		"replies", len(messages)-1,
		"used_titles", len(conv.UsedTitles),
		"duration_ms", elapsed.Milliseconds(),
	)
	return messages, conv
}

// pop takes titles from the front of queue until one is not yet used. It
// returns "" when the queue is exhausted.
func (c *Coordinator) pop(queue []string, conv *Conversation) (string, []string) {
	for len(queue) > 0 {
		title := queue[0]
		queue = queue[1:]
		if !conv.IsUsed(title) {
			return title, queue
		}
	}
	return "", nil
}

// eligible drops candidates already used, repeated or beyond the pick limit.
func (c *Coordinator) eligible(cands []curator.Candidate, conv *Conversation) []curator.Candidate {
	var out []curator.Candidate
	seen := make(map[string]struct{}, len(cands))
	for _, cand := range cands {
		if cand.Title == "" || conv.IsUsed(cand.Title) {
			continue
		}
		if _, dup := seen[cand.Title]; dup {
			continue
		}
		seen[cand.Title] = struct{}{}
		out = append(out, cand)
		if len(out) == curator.MaxPicks {
			break
		}
	}
	return out
}

// accept enforces the exclusion invariant on the titles an agent reports
// as picked. Candidates are filtered before generation, so anything dropped
// here indicates an agent returning titles it was not offered.
func (c *Coordinator) accept(picked []string, conv *Conversation) []string {
	var out []string
	for _, t := range picked {
		if t == "" || conv.IsUsed(t) || slices.Contains(out, t) {
			if t != "" {
				c.logger.Warn("dropping already used pick", "title", t)
			}
			continue
		}
		out = append(out, t)
		if len(out) == curator.MaxPicks {
			break
		}
	}
	return out
}
