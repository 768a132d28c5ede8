// Package prompts renders persona and summary prompts and assembles the
// message sequence sent to the model.
package prompts

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/boat-builder/chatbridge/llm"
)

// legacyPlaceholders lets instruction files written with single-brace
// placeholders render through text/template.
var legacyPlaceholders = strings.NewReplacer(
	"{assistant}", "{{.Assistant}}",
	"{user}", "{{.User}}",
	"{summary}", "{{.Summary}}",
	"{formatted_new_lines}", "{{.NewLines}}",
)

// generateFromTemplate is a generic function that generates a prompt from any template and data.
func generateFromTemplate[T any](templateString string, data T) (string, error) {
	funcMap := template.FuncMap{
		"trim": strings.TrimSpace,
	}

	tmpl, err := template.New("prompt").Funcs(funcMap).Parse(legacyPlaceholders.Replace(templateString))
	if err != nil {
		return "", err
	}
	var prompt bytes.Buffer
	if err := tmpl.Execute(&prompt, data); err != nil {
		return "", err
	}
	return prompt.String(), nil
}

// FormatTranscript renders lines as "<displayName>: <content>\n", naming
// assistant lines after the persona and every other line after the user.
func FormatTranscript(lines []llm.Message, aiName, userName string) string {
	var builder strings.Builder
	for _, line := range lines {
		name := userName
		if line.Role == llm.RoleAssistant {
			name = aiName
		}
		builder.WriteString(fmt.Sprintf("%s: %s\n", name, line.Content))
	}
	return builder.String()
}
