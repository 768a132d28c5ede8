package prompts

// SummaryPromptData contains data for the summary prompt template.
type SummaryPromptData struct {
	Summary  string
	NewLines string
}

// SummaryPromptName is the instruction template looked up for compression.
const SummaryPromptName = "summary_prompt"

// SummaryPromptTemplate is used when no summary template is configured.
const SummaryPromptTemplate = `Progressively summarize the lines of conversation provided, adding onto the previous summary and returning a new summary. Keep names, facts, promises and open questions. Reply with the summary only.

Current summary:
{{ .Summary }}

New lines of conversation:
{{ .NewLines }}
New summary:`

// SummaryPrompt renders the compression prompt. An empty templateString
// selects SummaryPromptTemplate.
func SummaryPrompt(templateString string, data SummaryPromptData) (string, error) {
	if templateString == "" {
		templateString = SummaryPromptTemplate
	}
	return generateFromTemplate(templateString, data)
}
