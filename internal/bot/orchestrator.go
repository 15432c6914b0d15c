// Package bot sequences one inbound email through header parsing,
// conversation resolution, prompt assembly, the model call, persistence and
// the threaded reply.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/francoise-ai/francoise/internal/chat"
	"github.com/francoise-ai/francoise/internal/db"
	"github.com/francoise-ai/francoise/internal/mail"
	"github.com/francoise-ai/francoise/internal/models"
	"github.com/francoise-ai/francoise/internal/prompt"
)

// Inbound is the webhook payload one unit of work runs on. Headers is the
// raw message-headers blob, passed through unparsed.
type Inbound struct {
	Headers string
	Body    string
	Sender  string
	Subject string
}

// stage names mirror the pipeline order; they only appear in logs.
type stage string

const (
	stageReceived     stage = "received"
	stageHeaderParsed stage = "header_parsed"
	stageResolved     stage = "resolved"
	stagePromptBuilt  stage = "prompt_built"
	stageModelInvoked stage = "model_invoked"
	stagePersisted    stage = "persisted"
	stageReplied      stage = "replied"
)

type Orchestrator struct {
	store  *db.Database
	chat   *chat.Client
	mailer mail.Sender
	logger *zap.Logger

	sender      string // system address replies are sent from
	chatTimeout time.Duration
	mailTimeout time.Duration

	locks *conversationLocks
}

func New(store *db.Database, chatClient *chat.Client, mailer mail.Sender, sender string, chatTimeout, mailTimeout time.Duration, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:       store,
		chat:        chatClient,
		mailer:      mailer,
		logger:      logger,
		sender:      sender,
		chatTimeout: chatTimeout,
		mailTimeout: mailTimeout,
		locks:       newConversationLocks(),
	}
}

// Handle runs one inbound email to a terminal state. It is called off the
// request path: a failure terminates this unit of work and is observed in
// the logs, never by the webhook caller. There is no retry and no rollback;
// a turn that fails after the user message is written stays in the log as an
// unanswered message.
func (o *Orchestrator) Handle(ctx context.Context, in Inbound) error {
	st := stageReceived
	err := o.handle(ctx, in, &st)
	if err != nil {
		o.logger.Warn("turn failed",
			zap.String("stage", string(st)),
			zap.String("kind", kindOf(err)),
			zap.Error(err))
		return err
	}
	return nil
}

func (o *Orchestrator) handle(ctx context.Context, in Inbound, st *stage) error {
	convID, err := mail.ParseConversationID(in.Headers)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHeaderMalformed, err)
	}
	replyToken, _ := mail.ParseReplyToken(in.Headers)
	*st = stageHeaderParsed

	// At most one in-flight turn per conversation.
	lease := o.locks.lease(convID)
	if err := lease.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("bot: acquire conversation lease: %w", err)
	}
	defer lease.Release(1)

	view, err := o.resolve(ctx, convID, in.Sender)
	if err != nil {
		return err
	}
	*st = stageResolved

	system, err := prompt.SystemPrompt(view)
	if err != nil {
		return err
	}
	*st = stagePromptBuilt

	// The user message is durable before the model call: a crash past this
	// point leaves an auditable unanswered message, never a lost one.
	if _, err := o.store.InsertMessage(ctx, convID, chat.RoleUser, in.Body, time.Now().UTC()); err != nil {
		return fmt.Errorf("bot: record user message: %w", err)
	}

	history, err := o.store.ListMessages(ctx, convID)
	if err != nil {
		return fmt.Errorf("bot: list messages: %w", err)
	}
	seq := prompt.TurnSequence(system, history)

	if ce := o.logger.Check(zap.DebugLevel, "invoking model"); ce != nil {
		ce.Write(
			zap.Int64("conversation_id", convID),
			zap.String("model", view.Model),
			zap.Int("messages", len(seq)),
			zap.Int("prompt_tokens_est", chat.EstimateTokens(seq)))
	}

	chatCtx, cancel := context.WithTimeout(ctx, o.chatTimeout)
	reply, err := o.chat.Invoke(chatCtx, view.Model, seq)
	cancel()
	if err != nil {
		return err
	}
	*st = stageModelInvoked

	if _, err := o.store.InsertMessage(ctx, convID, chat.RoleAssistant, reply, time.Now().UTC()); err != nil {
		return fmt.Errorf("bot: record assistant message: %w", err)
	}
	*st = stagePersisted

	env := mail.ComposeReply(view.AgentName, view.ID, o.sender, in.Sender, replyToken, in.Subject, reply)
	mailCtx, cancel := context.WithTimeout(ctx, o.mailTimeout)
	err = o.mailer.Send(mailCtx, env)
	cancel()
	if err != nil {
		// The turn is already persisted; the conversation stays consistent
		// even though no reply reached the user.
		return fmt.Errorf("bot: send reply: %w", err)
	}
	*st = stageReplied

	o.logger.Info("turn replied",
		zap.Int64("conversation_id", convID),
		zap.String("model", view.Model))
	return nil
}

func (o *Orchestrator) resolve(ctx context.Context, convID int64, sender string) (*models.ConversationView, error) {
	view, err := o.store.GetConversationView(ctx, convID)
	if err != nil {
		return nil, fmt.Errorf("bot: load conversation: %w", err)
	}
	if view == nil {
		return nil, ErrConversationNotFound
	}
	// Substring containment rather than equality, so a stored address with a
	// display name still matches its bare form.
	if sender == "" || !strings.Contains(view.UserEmail, sender) {
		return nil, ErrSenderUnauthorized
	}
	return view, nil
}
