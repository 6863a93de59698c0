package hermes

import "github.com/MikeSquared-Agency/marquee/internal/turn"

const (
	// SubjectTurnRequested carries user utterances submitted over NATS.
	SubjectTurnRequested = "marquee.turn.requested"
	// SubjectTurnCompleted is published after every processed turn.
	SubjectTurnCompleted = "marquee.turn.completed"
	// SubjectAgentRegistered announces a running instance.
	SubjectAgentRegistered = "marquee.agent.registered"
)

// TurnRequested asks for a turn on an existing conversation. Targets uses the
// same persona selector as the HTTP API; empty means everyone.
type TurnRequested struct {
	ConversationID string   `json:"conversation_id"`
	Text           string   `json:"text"`
	Targets        []string `json:"targets,omitempty"`
}

// TurnCompleted reports the messages a turn produced and the conversation's
// exclusion set after it.
type TurnCompleted struct {
	ConversationID string         `json:"conversation_id"`
	TurnID         string         `json:"turn_id"`
	Intent         string         `json:"intent"`
	Messages       []turn.Message `json:"messages"`
	UsedTitles     []string       `json:"used_titles"`
}
