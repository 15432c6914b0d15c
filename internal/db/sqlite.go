package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/francoise-ai/francoise/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    email TEXT UNIQUE,
    salt TEXT NOT NULL,
    password TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS agents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    language TEXT NOT NULL,
    proficiency TEXT NOT NULL,
    prompt TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    agent_id INTEGER NOT NULL,
    model TEXT NOT NULL,
    proficiency TEXT NOT NULL,
    UNIQUE(model, user_id, agent_id),
    FOREIGN KEY(user_id) REFERENCES users(id),
    FOREIGN KEY(agent_id) REFERENCES agents(id)
);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id INTEGER NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TEXT NOT NULL,
    FOREIGN KEY(conversation_id) REFERENCES conversations(id)
);`

type Database struct {
	db *sql.DB
}

func New(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// sqlite serializes writers anyway; a single pooled connection avoids
	// SQLITE_BUSY under concurrent turns.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

func (db *Database) Close() error {
	return db.db.Close()
}

// InsertMessage appends one message row. Timestamps are stored as RFC 3339
// UTC so ordering by id and ordering by created_at agree.
func (db *Database) InsertMessage(ctx context.Context, convID int64, role, content string, at time.Time) (*models.Message, error) {
	query := `
        INSERT INTO messages (conversation_id, role, content, created_at)
        VALUES (?, ?, ?, ?)
        RETURNING id`

	msg := &models.Message{
		ConvID:    convID,
		Role:      role,
		Content:   content,
		CreatedAt: at.UTC(),
	}
	err := db.db.QueryRowContext(ctx, query,
		convID, role, content, msg.CreatedAt.Format(time.RFC3339Nano)).Scan(&msg.ID)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages returns every message of a conversation in creation order.
func (db *Database) ListMessages(ctx context.Context, convID int64) ([]models.Message, error) {
	query := `
        SELECT id, conversation_id, role, content, created_at
        FROM messages
        WHERE conversation_id = ?
        ORDER BY id ASC`

	rows, err := db.db.QueryContext(ctx, query, convID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		var createdAt string
		if err := rows.Scan(&msg.ID, &msg.ConvID, &msg.Role, &msg.Content, &createdAt); err != nil {
			return nil, err
		}
		msg.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// GetConversationView loads a conversation joined with its user and agent.
// Returns nil without error when no conversation has the given id.
func (db *Database) GetConversationView(ctx context.Context, id int64) (*models.ConversationView, error) {
	query := `
        SELECT
            conversation.id,
            conversation.model,
            conversation.user_id,
            user.email,
            user.name,
            conversation.proficiency,
            conversation.agent_id,
            agent.name,
            agent.language,
            agent.proficiency,
            agent.prompt
        FROM conversations conversation
        JOIN users user ON conversation.user_id = user.id
        JOIN agents agent ON conversation.agent_id = agent.id
        WHERE conversation.id = ?`

	var view models.ConversationView
	err := db.db.QueryRowContext(ctx, query, id).Scan(
		&view.ID,
		&view.Model,
		&view.UserID,
		&view.UserEmail,
		&view.UserName,
		&view.UserProficiency,
		&view.AgentID,
		&view.AgentName,
		&view.AgentLanguage,
		&view.AgentProficiency,
		&view.AgentPrompt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (db *Database) CreateUser(ctx context.Context, name, email, salt, password string) (*models.User, error) {
	query := `
        INSERT INTO users (name, email, salt, password)
        VALUES (?, ?, ?, ?)
        RETURNING id`

	user := &models.User{Name: name, Email: email, Salt: salt, Password: password}
	if err := db.db.QueryRowContext(ctx, query, name, email, salt, password).Scan(&user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

func (db *Database) CreateAgent(ctx context.Context, name, language, proficiency, prompt string) (*models.Agent, error) {
	query := `
        INSERT INTO agents (name, language, proficiency, prompt)
        VALUES (?, ?, ?, ?)
        RETURNING id`

	agent := &models.Agent{Name: name, Language: language, Proficiency: proficiency, Prompt: prompt}
	if err := db.db.QueryRowContext(ctx, query, name, language, proficiency, prompt).Scan(&agent.ID); err != nil {
		return nil, err
	}
	return agent, nil
}

// CreateConversation inserts a conversation; the schema enforces at most one
// conversation per (model, user, agent) triple.
func (db *Database) CreateConversation(ctx context.Context, userID, agentID int64, model, proficiency string) (*models.Conversation, error) {
	query := `
        INSERT INTO conversations (user_id, agent_id, model, proficiency)
        VALUES (?, ?, ?, ?)
        RETURNING id`

	conv := &models.Conversation{UserID: userID, AgentID: agentID, Model: model, Proficiency: proficiency}
	if err := db.db.QueryRowContext(ctx, query, userID, agentID, model, proficiency).Scan(&conv.ID); err != nil {
		return nil, err
	}
	return conv, nil
}
