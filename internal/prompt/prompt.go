// Package prompt renders agent prompt templates and assembles the message
// sequence for a single model call.
package prompt

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/francoise-ai/francoise/internal/chat"
	"github.com/francoise-ai/francoise/internal/models"
)

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// UnknownFieldError means a template references a placeholder the
// conversation view does not provide — a misconfigured agent, not a bad
// request.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("prompt: template references unknown field {%s}", e.Field)
}

// Fields exposes the denormalized conversation view under the placeholder
// names agent templates are written against.
func Fields(view *models.ConversationView) map[string]string {
	return map[string]string{
		"id":                strconv.FormatInt(view.ID, 10),
		"model":             view.Model,
		"user_id":           strconv.FormatInt(view.UserID, 10),
		"user_email":        view.UserEmail,
		"user_name":         view.UserName,
		"user_proficiency":  view.UserProficiency,
		"agent_id":          strconv.FormatInt(view.AgentID, 10),
		"agent_name":        view.AgentName,
		"agent_language":    view.AgentLanguage,
		"agent_proficiency": view.AgentProficiency,
		"agent_prompt":      view.AgentPrompt,
	}
}

// Render substitutes every {name} placeholder in tmpl from the view.
func Render(tmpl string, view *models.ConversationView) (string, error) {
	fields := Fields(view)
	var unknown *UnknownFieldError
	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := fields[name]
		if !ok {
			if unknown == nil {
				unknown = &UnknownFieldError{Field: name}
			}
			return m
		}
		return v
	})
	if unknown != nil {
		return "", unknown
	}
	return out, nil
}

// SystemPrompt renders the agent's own template against the view.
func SystemPrompt(view *models.ConversationView) (string, error) {
	return Render(view.AgentPrompt, view)
}

// TurnSequence prepends the system prompt to the persisted history. The
// caller records the new user message before reading history, so the last
// entry is always the message being answered. The system prompt itself is
// never persisted.
func TurnSequence(systemPrompt string, history []models.Message) []chat.Message {
	seq := make([]chat.Message, 0, len(history)+1)
	seq = append(seq, chat.Message{Role: chat.RoleSystem, Content: systemPrompt})
	for _, m := range history {
		seq = append(seq, chat.Message{Role: m.Role, Content: m.Content})
	}
	return seq
}
