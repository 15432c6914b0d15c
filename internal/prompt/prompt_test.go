package prompt

import (
	"errors"
	"testing"

	"github.com/francoise-ai/francoise/internal/chat"
	"github.com/francoise-ai/francoise/internal/models"
)

func testView() *models.ConversationView {
	return &models.ConversationView{
		ID:               7,
		Model:            "gemma3",
		UserID:           3,
		UserEmail:        "jean@x.com",
		UserName:         "Jean",
		UserProficiency:  "A2",
		AgentID:          1,
		AgentName:        "Boku",
		AgentLanguage:    "French",
		AgentProficiency: "B1",
		AgentPrompt:      "You are {agent_name}, a {agent_language} tutor for {user_name} at level {user_proficiency}.",
	}
}

func TestRenderSubstitutesAllFields(t *testing.T) {
	view := testView()
	view.AgentPrompt = "{id}|{model}|{user_id}|{user_email}|{user_name}|{user_proficiency}|{agent_id}|{agent_name}|{agent_language}|{agent_proficiency}"

	got, err := SystemPrompt(view)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "7|gemma3|3|jean@x.com|Jean|A2|1|Boku|French|B1"
	if got != want {
		t.Errorf("rendered = %q, want %q", got, want)
	}
}

func TestRenderWelcomePrompt(t *testing.T) {
	got, err := SystemPrompt(testView())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "You are Boku, a French tutor for Jean at level A2."
	if got != want {
		t.Errorf("rendered = %q, want %q", got, want)
	}
}

func TestRenderUnknownFieldFails(t *testing.T) {
	view := testView()
	view.AgentPrompt = "Hello {user_name}, your {favorite_color} is unknown."

	_, err := SystemPrompt(view)
	var unknown *UnknownFieldError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want UnknownFieldError", err)
	}
	if unknown.Field != "favorite_color" {
		t.Errorf("field = %q, want favorite_color", unknown.Field)
	}
}

func TestRenderLeavesPlainTextAlone(t *testing.T) {
	view := testView()
	view.AgentPrompt = "No placeholders here at all."

	got, err := SystemPrompt(view)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != view.AgentPrompt {
		t.Errorf("rendered = %q, want unchanged", got)
	}
}

func TestTurnSequence(t *testing.T) {
	// History as persisted at assembly time: the new user message has
	// already been recorded as the last entry.
	preHistory := []models.Message{
		{Role: chat.RoleUser, Content: "Bonjour"},
		{Role: chat.RoleAssistant, Content: "Bonjour ! Comment vas-tu ?"},
	}
	history := append(preHistory, models.Message{Role: chat.RoleUser, Content: "Très bien."})

	seq := TurnSequence("system prompt", history)

	if len(seq) != len(preHistory)+2 {
		t.Fatalf("len = %d, want %d", len(seq), len(preHistory)+2)
	}
	if seq[0].Role != chat.RoleSystem || seq[0].Content != "system prompt" {
		t.Errorf("seq[0] = %+v, want the system prompt", seq[0])
	}
	last := seq[len(seq)-1]
	if last.Role != chat.RoleUser || last.Content != "Très bien." {
		t.Errorf("last = %+v, want the new user message", last)
	}
	for i, m := range history {
		if seq[i+1].Role != m.Role || seq[i+1].Content != m.Content {
			t.Errorf("seq[%d] = %+v, want %+v", i+1, seq[i+1], m)
		}
	}
}

func TestTurnSequenceEmptyHistory(t *testing.T) {
	seq := TurnSequence("system prompt", nil)
	if len(seq) != 1 {
		t.Fatalf("len = %d, want 1", len(seq))
	}
	if seq[0].Role != chat.RoleSystem {
		t.Errorf("role = %q, want system", seq[0].Role)
	}
}
