package prompts

import (
	"context"
	"log/slog"

	"github.com/boat-builder/chatbridge/llm"
)

// History is the read-only view of a conversation memory used to build prompts.
type History interface {
	Summary() string
	History() []llm.Message
}

// PersonaPromptData contains the placeholders available to persona templates.
type PersonaPromptData struct {
	Assistant string
	User      string
}

// Builder composes model-ready prompts. It has no side effects beyond logging.
type Builder struct {
	aiName   string
	template string
	loader   Loader
	logger   *slog.Logger
}

func NewBuilder(aiName, template string, loader Loader) *Builder {
	return &Builder{
		aiName:   aiName,
		template: template,
		loader:   loader,
		logger:   slog.Default(),
	}
}

func (b *Builder) SetLogger(logger *slog.Logger) {
	b.logger = logger
}

// Build returns [system] + verbatim history + [input]. Only an invalid input
// message fails the build; missing instructions degrade to empty text.
func (b *Builder) Build(ctx context.Context, user llm.User, input llm.Message, memory History) ([]llm.Message, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	var summary string
	var history []llm.Message
	if memory != nil {
		summary = memory.Summary()
		history = memory.History()
	}

	system, err := llm.Create(b.SystemPrompt(ctx, user, summary), llm.RoleSystem)
	if err != nil {
		return nil, err
	}
	prompt := make([]llm.Message, 0, len(history)+2)
	prompt = append(prompt, system...)
	prompt = append(prompt, history...)
	prompt = append(prompt, input)
	b.logger.Debug("built prompt", "userID", user.ID, "messages", len(prompt))
	return prompt, nil
}

// SystemPrompt renders template, persona sheet and user sheet, then appends
// the running summary when there is one.
func (b *Builder) SystemPrompt(ctx context.Context, user llm.User, summary string) string {
	var tmpl, aiSheet, userSheet string
	if b.loader != nil {
		tmpl = b.loader.LoadTemplate(ctx, b.template)
		aiSheet = b.loader.LoadCharacterSheet(ctx, b.aiName, "")
		userSheet = b.loader.LoadCharacterSheet(ctx, b.aiName, user.ID)
	}
	raw := tmpl + "\n" + aiSheet + "\n" + userSheet

	system, err := generateFromTemplate(raw, PersonaPromptData{Assistant: b.aiName, User: user.Name})
	if err != nil {
		b.logger.Error("failed to render persona template, using raw text", "template", b.template, "error", err)
		system = raw
	}
	if summary != "" {
		system += "\nSummary: " + summary
	}
	return system
}
