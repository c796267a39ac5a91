package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"assistant-bot/internal/domain"
)

const DefaultSystemPrompt = `You're an assistant in a Slack workspace.
Users in the workspace will ask you to help them write something or to think better about a specific topic.
You'll respond to those questions in a professional way.
When you include markdown text, convert them to Slack compatible ones.
When a prompt has Slack's special syntax like <@USER_ID> or <#CHANNEL_ID>, you must keep them as-is in your response.`

// Persona is the user-facing text of the assistant. Every field can be
// overridden from a YAML file; empty fields keep their defaults.
type Persona struct {
	Greeting         string          `yaml:"greeting"`
	SystemPrompt     string          `yaml:"system_prompt"`
	Prompts          []domain.Prompt `yaml:"prompts"`
	SummarizePrompt  domain.Prompt   `yaml:"summarize_prompt"`
	ThinkingMessages []string        `yaml:"thinking_messages"`
}

func DefaultPersona() Persona {
	return Persona{
		Greeting:     "How can I help you?",
		SystemPrompt: DefaultSystemPrompt,
		Prompts: []domain.Prompt{
			{
				Title:   "What does Slack stand for?",
				Message: "Slack, a business communication service, was named after an acronym. Can you guess what it stands for?",
			},
			{
				Title:   "Write a draft announcement",
				Message: "Can you write a draft announcement about a new feature my team just released? It must include how impactful it is.",
			},
			{
				Title:   "Suggest names for my Slack app",
				Message: "Can you suggest a few names for my Slack app? The app helps my teammates better organize information and plan priorities and action items.",
			},
		},
		SummarizePrompt: domain.Prompt{
			Title:   "Summarize the referred channel",
			Message: "Can you generate a brief summary of the referred channel?",
		},
		ThinkingMessages: []string{
			"Hmm... Let me think about it.",
			"Just a moment while I process this...",
			"I'm on it! Give me a second...",
			"Let me gather my thoughts...",
			"Thinking... Please hold on.",
		},
	}
}

// LoadPersona returns the default persona merged with the file at path.
// An empty path means defaults only.
func LoadPersona(path string) (Persona, error) {
	persona := DefaultPersona()
	if strings.TrimSpace(path) == "" {
		return persona, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return persona, fmt.Errorf("reading persona file: %w", err)
	}

	var override Persona
	if err := yaml.Unmarshal(data, &override); err != nil {
		return persona, fmt.Errorf("parsing persona file: %w", err)
	}

	return persona.merge(override)
}

func (p Persona) merge(o Persona) (Persona, error) {
	if o.Greeting != "" {
		p.Greeting = o.Greeting
	}
	if o.SystemPrompt != "" {
		p.SystemPrompt = o.SystemPrompt
	}
	if len(o.Prompts) > 0 {
		p.Prompts = o.Prompts
	}
	if o.SummarizePrompt.Message != "" {
		p.SummarizePrompt = o.SummarizePrompt
	}
	if len(o.ThinkingMessages) > 0 {
		p.ThinkingMessages = o.ThinkingMessages
	}

	for i, prompt := range p.Prompts {
		if prompt.Title == "" || prompt.Message == "" {
			return p, fmt.Errorf("prompt %d needs both title and message", i)
		}
	}
	if p.SummarizePrompt.Title == "" {
		return p, fmt.Errorf("summarize_prompt needs a title")
	}
	return p, nil
}
