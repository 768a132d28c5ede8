package memory

import "github.com/boat-builder/chatbridge/llm"

// State is the persisted part of a Memory: verbatim history plus the running
// summary. Model parameters and clients are never part of it.
type State struct {
	MessageHistory []llm.Message `json:"message_history"`
	Summary        string        `json:"summary"`
}

func (s State) Clone() State {
	return State{
		MessageHistory: append([]llm.Message{}, s.MessageHistory...),
		Summary:        s.Summary,
	}
}
