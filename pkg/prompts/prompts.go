// Package prompts holds the built-in prompt templates used by LLM
// processing benchmarks.
package prompts

import (
	"bytes"
	"fmt"
	"sort"
	"text/template"
)

// Template pairs a system prompt with a user prompt template. The user
// template receives {{.Transcription}} and, for the custom type,
// {{.Custom}}.
type Template struct {
	Name        string
	Description string
	System      string
	user        *template.Template
}

type promptData struct {
	Transcription string
	Custom        string
}

func mustUser(name, text string) *template.Template {
	return template.Must(template.New(name).Parse(text))
}

var builtins = map[string]Template{
	"summary": {
		Name:        "Meeting Summary",
		Description: "Generate a concise summary of the meeting",
		System:      "You are an expert at summarizing meetings. Create clear, actionable summaries that capture the key points.",
		user: mustUser("summary", `Please summarize the following meeting transcription:

{{.Transcription}}

Provide:
1. Key Discussion Points (bullet points)
2. Decisions Made
3. Action Items (with owners if mentioned)
4. Next Steps`),
	},
	"email": {
		Name:        "Partner Email (Meeting Notes)",
		Description: "Create meeting notes email for partners",
		System:      "You are a professional business communicator. Write clear, professional emails that summarize meeting outcomes.",
		user: mustUser("email", `Based on the following meeting transcription, write a professional email to share meeting notes with partners/stakeholders:

{{.Transcription}}

The email should include:
- Subject line
- Brief greeting
- Meeting overview
- Key decisions and outcomes
- Action items
- Professional closing`),
	},
	"training": {
		Name:        "Training Documentation",
		Description: "Generate educational material from training meetings",
		System:      "You are a technical writer creating educational documentation. Make the content clear, well-structured, and easy to follow.",
		user: mustUser("training", `Convert the following training session transcription into structured educational documentation:

{{.Transcription}}

Create documentation that includes:
1. Overview/Introduction
2. Key Concepts Explained
3. Step-by-Step Instructions (if applicable)
4. Important Notes and Tips
5. Summary/Key Takeaways`),
	},
	"weekly": {
		Name:        "Weekly Summary",
		Description: "Aggregate multiple meetings into weekly summary",
		System:      "You are creating executive summaries that consolidate multiple meetings into a coherent weekly overview.",
		user: mustUser("weekly", `Combine the following meeting transcriptions into a comprehensive weekly summary:

{{.Transcription}}

Create a weekly summary that includes:
1. Week Overview
2. Key Accomplishments
3. Important Decisions Across Meetings
4. Combined Action Items
5. Upcoming Priorities
6. Notable Discussions/Concerns`),
	},
	"custom": {
		Name:        "Custom Prompt",
		Description: "Use your own custom prompt",
		System:      "You are a helpful AI assistant.",
		user:        mustUser("custom", "{{.Custom}}\n\n{{.Transcription}}"),
	},
}

// Info describes a prompt type for listing endpoints.
type Info struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Types lists the available prompt types in stable order.
func Types() []Info {
	ids := make([]string, 0, len(builtins))
	for id := range builtins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	infos := make([]Info, 0, len(ids))
	for _, id := range ids {
		t := builtins[id]
		infos = append(infos, Info{ID: id, Name: t.Name, Description: t.Description})
	}
	return infos
}

// Known reports whether promptType names a built-in template.
func Known(promptType string) bool {
	_, ok := builtins[promptType]
	return ok
}

// Build renders the (system, user) prompt pair for the given prompt
// type. custom is only consulted by the "custom" type.
func Build(promptType, transcription, custom string) (system, user string, err error) {
	t, ok := builtins[promptType]
	if !ok {
		return "", "", fmt.Errorf("unknown prompt type: %q", promptType)
	}
	var buf bytes.Buffer
	if err := t.user.Execute(&buf, promptData{Transcription: transcription, Custom: custom}); err != nil {
		return "", "", fmt.Errorf("failed to render %s prompt: %w", promptType, err)
	}
	return t.System, buf.String(), nil
}
