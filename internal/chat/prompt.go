package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/flemzord/aether/internal/config"
)

// DefaultProfile is the roster used when none is configured.
func DefaultProfile() config.ProfileConfig {
	return config.ProfileConfig{
		Team:   "Team Aether",
		Grade:  "Class 9",
		School: "Your School Name",
		Members: []config.MemberConfig{
			{
				Name:      "Jayant Mangla",
				Role:      "Team Leader & Developer",
				Strengths: []string{"Python", "Logic", "Problem Solving"},
				Interests: []string{"AI", "Technology", "Gaming"},
				Goal:      "Become a software engineer",
			},
			{
				Name:      "Pranav Rayapati",
				Role:      "Backend & Research",
				Strengths: []string{"Math", "Research", "AI Concepts"},
				Interests: []string{"Science", "AI", "Space"},
				Goal:      "Work in Artificial Intelligence",
			},
			{
				Name:      "Pragnayan Kartik",
				Role:      "UI & Documentation",
				Strengths: []string{"Design", "Creativity", "Presentation"},
				Interests: []string{"Design", "Technology", "Creativity"},
				Goal:      "Create innovative technology solutions",
			},
		},
	}
}

const rosterTemplate = `You are a TEAM AI ASSISTANT{{ with .Grade }} built as a {{ . }} school project{{ end }}.

Team Name: {{ .Team }}
{{- with .Grade }}
Grade: {{ . }}
{{- end }}
{{- with .School }}
School: {{ . }}
{{- end }}

Team Members:
{{- range .Members }}
- {{ .Name }}{{ with .Role }} ({{ . }}){{ end }}
{{- with .Strengths }}: strengths in {{ join ", " . }}{{ end }}
{{- with .Interests }}, interests in {{ join ", " . }}{{ end }}
{{- with .Goal }}, goal: {{ . }}{{ end }}
{{- end }}

Rules:
- You know the details of every team member
- If asked about a member, explain their details
- If asked who made you, mention all team members
- Be polite, clear, and helpful`

var roster = template.Must(template.New("roster").Funcs(sprig.TxtFuncMap()).Parse(rosterTemplate))

// PromptBuilder renders the system prompt: the roster text (or a fixed
// prompt) followed by the memory log as JSON.
type PromptBuilder struct {
	base string
}

// NewPromptBuilder renders the roster once. A non-empty systemPrompt is used
// verbatim instead of the roster.
func NewPromptBuilder(profile config.ProfileConfig, systemPrompt string) (*PromptBuilder, error) {
	if strings.TrimSpace(systemPrompt) != "" {
		return &PromptBuilder{base: strings.TrimSpace(systemPrompt)}, nil
	}
	var b strings.Builder
	if err := roster.Execute(&b, profile); err != nil {
		return nil, fmt.Errorf("chat: rendering roster: %w", err)
	}
	return &PromptBuilder{base: b.String()}, nil
}

// Build returns the system prompt embedding memories verbatim.
func (p *PromptBuilder) Build(memories map[string]string) string {
	if memories == nil {
		memories = map[string]string{}
	}
	data, _ := json.Marshal(memories)
	return p.base + "\n\nMemory (things the team asked you to remember, as JSON):\n" + string(data)
}
