// Package chat is the conversation service behind the HTTP and NATS surfaces:
// it opens conversations, runs turns against them, attaches posters and
// announces completed turns.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/marquee/internal/hermes"
	"github.com/MikeSquared-Agency/marquee/internal/intent"
	"github.com/MikeSquared-Agency/marquee/internal/session"
	"github.com/MikeSquared-Agency/marquee/internal/tmdb"
	"github.com/MikeSquared-Agency/marquee/internal/turn"
)

// UserSpeaker labels user messages in the transcript.
const UserSpeaker = "user"

var ErrEmptyText = errors.New("turn text is empty")

// Runner executes one turn against a conversation.
type Runner interface {
	RunTurn(ctx context.Context, text string, conv *turn.Conversation, selector []string) ([]turn.Message, *turn.Conversation)
}

// PosterFinder resolves a poster image URL for a title.
type PosterFinder interface {
	FindPosterURL(ctx context.Context, title string) (string, error)
}

// Publisher emits events; *hermes.Client satisfies it.
type Publisher interface {
	Publish(subject string, data any) error
}

type Service struct {
	sessions *session.Store
	runner   Runner
	posters  PosterFinder
	events   Publisher
	logger   *slog.Logger
}

// NewService wires the service. posters and events may be nil.
func NewService(sessions *session.Store, runner Runner, posters PosterFinder, events Publisher, logger *slog.Logger) *Service {
	return &Service{
		sessions: sessions,
		runner:   runner,
		posters:  posters,
		events:   events,
		logger:   logger,
	}
}

// TurnResult is what one turn added to a conversation.
type TurnResult struct {
	ConversationID uuid.UUID      `json:"conversation_id"`
	TurnID         uuid.UUID      `json:"turn_id"`
	Intent         string         `json:"intent"`
	Messages       []turn.Message `json:"messages"`
	UsedTitles     []string       `json:"used_titles"`
}

// Transcript is the full visible state of a conversation.
type Transcript struct {
	ConversationID uuid.UUID      `json:"id"`
	Messages       []turn.Message `json:"messages"`
	UsedTitles     []string       `json:"used_titles"`
}

// Start opens a conversation whose transcript begins with the greeting.
func (s *Service) Start() Transcript {
	sess := s.sessions.Create(turn.Greeting())
	return Transcript{
		ConversationID: sess.ID,
		Messages:       []turn.Message{turn.Greeting()},
		UsedTitles:     []string{},
	}
}

// Turn runs text against the conversation. Turns on one conversation are
// serialized; different conversations run independently.
func (s *Service) Turn(ctx context.Context, conversationID, text string, targets []string) (*TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	sess, err := s.sessions.Lookup(conversationID)
	if err != nil {
		return nil, err
	}

	res := &TurnResult{
		ConversationID: sess.ID,
		TurnID:         uuid.New(),
		Intent:         intent.Classify(text).String(),
	}

	sess.Update(func(st *session.State) {
		msgs, conv := s.runner.RunTurn(ctx, text, st.Conversation, targets)
		st.Conversation = conv
		s.attachPosters(ctx, msgs, st.ShownPosters)

		st.Transcript = append(st.Transcript, turn.Message{Speaker: UserSpeaker, Text: text})
		st.Transcript = append(st.Transcript, msgs...)

		res.Messages = msgs
		res.UsedTitles = slices.Clone(conv.UsedTitles)
	})

	s.logger.Info("turn processed",
		"conversation_id", res.ConversationID.String(),
		"turn_id", res.TurnID.String(),
		"intent", res.Intent,
		"messages", len(res.Messages),
	)

	s.publishCompleted(res)
	return res, nil
}

// Reset clears a conversation back to just the greeting.
func (s *Service) Reset(conversationID string) (Transcript, error) {
	sess, err := s.sessions.Lookup(conversationID)
	if err != nil {
		return Transcript{}, err
	}
	sess.Reset(turn.Greeting())
	s.logger.Info("conversation reset", "conversation_id", sess.ID.String())
	return Transcript{
		ConversationID: sess.ID,
		Messages:       []turn.Message{turn.Greeting()},
		UsedTitles:     []string{},
	}, nil
}

// Delete drops a conversation and everything it holds.
func (s *Service) Delete(conversationID string) error {
	sess, err := s.sessions.Lookup(conversationID)
	if err != nil {
		return err
	}
	return s.sessions.Delete(sess.ID)
}

func (s *Service) Transcript(conversationID string) (Transcript, error) {
	sess, err := s.sessions.Lookup(conversationID)
	if err != nil {
		return Transcript{}, err
	}
	snap := sess.Snapshot()
	used := snap.Conversation.UsedTitles
	if used == nil {
		used = []string{}
	}
	return Transcript{ConversationID: sess.ID, Messages: snap.Transcript, UsedTitles: used}, nil
}

// HandleTurnRequested is the NATS handler for marquee.turn.requested.
func (s *Service) HandleTurnRequested(subject string, data []byte) {
	var req hermes.TurnRequested
	if err := json.Unmarshal(data, &req); err != nil {
		s.logger.Error("failed to parse turn request", "subject", subject, "error", err)
		return
	}

	if _, err := s.Turn(context.Background(), req.ConversationID, req.Text, req.Targets); err != nil {
		s.logger.Error("turn request failed",
			"conversation_id", req.ConversationID,
			"error", err,
		)
	}
}

// attachPosters sets PosterURL on messages whose highlighted title has not
// had a poster shown yet in this conversation.
func (s *Service) attachPosters(ctx context.Context, msgs []turn.Message, shown map[string]struct{}) {
	if s.posters == nil {
		return
	}
	for i := range msgs {
		title := msgs[i].HighlightedTitle
		if title == "" {
			continue
		}
		if _, done := shown[title]; done {
			continue
		}

		url, err := s.posters.FindPosterURL(ctx, title)
		if err != nil {
			if errors.Is(err, tmdb.ErrMissingAPIKey) {
				s.logger.Debug("poster lookup skipped", "reason", "not_configured")
				return
			}
			s.logger.Warn("poster lookup failed", "title", title, "error", err)
			continue
		}
		if url == "" {
			continue
		}
		msgs[i].PosterURL = url
		shown[title] = struct{}{}
	}
}

func (s *Service) publishCompleted(res *TurnResult) {
	if s.events == nil {
		return
	}
	evt := hermes.TurnCompleted{
		ConversationID: res.ConversationID.String(),
		TurnID:         res.TurnID.String(),
		Intent:         res.Intent,
		Messages:       res.Messages,
		UsedTitles:     res.UsedTitles,
	}
	if err := s.events.Publish(hermes.SubjectTurnCompleted, evt); err != nil {
		s.logger.Warn("failed to publish turn completed", "turn_id", evt.TurnID, "error", err)
	}
}
