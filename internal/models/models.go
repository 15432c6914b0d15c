package models

import "time"

type User struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Salt     string `json:"-"`
	Password string `json:"-"`
}

type Agent struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Language    string `json:"language"`
	Proficiency string `json:"proficiency"`
	Prompt      string `json:"prompt"`
}

type Conversation struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	AgentID     int64  `json:"agent_id"`
	Model       string `json:"model"`
	Proficiency string `json:"proficiency"`
}

type Message struct {
	ID        int64     `json:"id"`
	ConvID    int64     `json:"conversation_id"`
	Role      string    `json:"role"` // user or assistant
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationView is the denormalized read the reply pipeline works from:
// one conversation joined with its user and agent.
type ConversationView struct {
	ID               int64
	Model            string
	UserID           int64
	UserEmail        string
	UserName         string
	UserProficiency  string // conversation-level override of the agent default
	AgentID          int64
	AgentName        string
	AgentLanguage    string
	AgentProficiency string
	AgentPrompt      string
}
