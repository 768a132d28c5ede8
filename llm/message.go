package llm

import (
	"fmt"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var validRoles = []Role{RoleSystem, RoleUser, RoleAssistant}

// Valid reports whether r is one of the fixed chat roles.
func (r Role) Valid() bool {
	for _, v := range validRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Message is a single validated chat turn. Values are treated as immutable
// once they leave Create.
type Message struct {
	Role    Role   `json:"role" jsonschema:"enum=system,enum=user,enum=assistant"`
	Content string `json:"content"`
}

const (
	roleKey    = "role"
	contentKey = "content"
)

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// Create builds a validated message sequence from either an already
// structured sequence (Message, []Message, map[string]any, []map[string]any)
// or a single text value paired with an explicit role. Nothing is returned
// unless the whole sequence validates.
func Create(input any, role Role) ([]Message, error) {
	var messages []Message
	switch v := input.(type) {
	case []Message:
		messages = append([]Message(nil), v...)
	case Message:
		messages = []Message{v}
	case []map[string]any:
		messages = make([]Message, 0, len(v))
		for i, record := range v {
			msg, err := fromRecord(record)
			if err != nil {
				return nil, fmt.Errorf("message %d: %w", i, err)
			}
			messages = append(messages, msg)
		}
	case map[string]any:
		msg, err := fromRecord(v)
		if err != nil {
			return nil, err
		}
		messages = []Message{msg}
	case string:
		if role == "" {
			return nil, fmt.Errorf("%w: text input requires a role", ErrInvalidInput)
		}
		messages = []Message{{Role: role, Content: v}}
	default:
		return nil, fmt.Errorf("%w: unsupported input %T", ErrInvalidInput, input)
	}
	if err := Validate(messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// Validate checks every message of the sequence. It is pure and may be
// called any number of times on the same sequence.
func Validate(messages []Message) error {
	for i, msg := range messages {
		if err := msg.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	return nil
}

func (m Message) Validate() error {
	if m.Role == "" {
		return fmt.Errorf("%w: %s", ErrSchema, roleKey)
	}
	if !m.Role.Valid() {
		return fmt.Errorf("%w: %q, expected one of %v", ErrRole, m.Role, validRoles)
	}
	return nil
}

func fromRecord(record map[string]any) (Message, error) {
	rawRole, hasRole := record[roleKey]
	rawContent, hasContent := record[contentKey]
	if !hasRole || !hasContent {
		return Message{}, fmt.Errorf("%w: message must contain %s and %s", ErrSchema, roleKey, contentKey)
	}
	var role Role
	switch r := rawRole.(type) {
	case string:
		role = Role(r)
	case Role:
		role = r
	default:
		return Message{}, fmt.Errorf("%w: role must be text, got %T", ErrType, rawRole)
	}
	if !role.Valid() {
		return Message{}, fmt.Errorf("%w: %q, expected one of %v", ErrRole, role, validRoles)
	}
	content, ok := rawContent.(string)
	if !ok {
		return Message{}, fmt.Errorf("%w: content must be text, got %T", ErrType, rawContent)
	}
	return Message{Role: role, Content: content}, nil
}

// Records exports messages as generic role/content records.
func Records(messages []Message) []map[string]any {
	out := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		out = append(out, map[string]any{roleKey: string(m.Role), contentKey: m.Content})
	}
	return out
}

// User identifies the human side of a conversation.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
