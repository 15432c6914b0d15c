package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/francoise-ai/francoise/internal/chat"
	"github.com/francoise-ai/francoise/internal/db"
	"github.com/francoise-ai/francoise/internal/mail"
	"github.com/francoise-ai/francoise/internal/prompt"
)

const systemSender = "bot@mg.example.com"

type fakeSender struct {
	mu   sync.Mutex
	sent []mail.Envelope
	err  error
}

func (f *fakeSender) Send(ctx context.Context, env mail.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeSender) envelopes() []mail.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mail.Envelope(nil), f.sent...)
}

type fixture struct {
	store  *db.Database
	sender *fakeSender
	orch   *Orchestrator
	convID int64
}

// chatReply serves the backend wire format with a fixed assistant reply.
func chatReply(t *testing.T, text string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q}}`, text)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newFixture(t *testing.T, chatURL string) *fixture {
	t.Helper()

	store, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	user, err := store.CreateUser(ctx, "Jean", "jean@x.com", "salt", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	agent, err := store.CreateAgent(ctx, "Boku", "French", "B1",
		"You are {agent_name}, a {agent_language} tutor for {user_name}.")
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	conv, err := store.CreateConversation(ctx, user.ID, agent.ID, "gemma3", "A2")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	sender := &fakeSender{}
	orch := New(store, chat.NewClient(chatURL), sender, systemSender,
		5*time.Second, 5*time.Second, zap.NewNop())

	return &fixture{store: store, sender: sender, orch: orch, convID: conv.ID}
}

func (f *fixture) headers() string {
	return fmt.Sprintf(`[["Message-Id","<inbound@mail>"],["To","%s"]]`,
		mail.FormatFrom("Boku", f.convID, systemSender))
}

func (f *fixture) messageCount(t *testing.T) int {
	t.Helper()
	messages, err := f.store.ListMessages(context.Background(), f.convID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	return len(messages)
}

func TestHandleSuccessfulTurn(t *testing.T) {
	srv := chatReply(t, "Bonjour Jean !")
	f := newFixture(t, srv.URL)

	in := Inbound{
		Headers: f.headers(),
		Body:    "Salut, comment ça va ?",
		Sender:  "jean@x.com",
		Subject: "Re: bonjour",
	}
	if err := f.orch.Handle(context.Background(), in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	messages, err := f.store.ListMessages(context.Background(), f.convID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(messages))
	}
	if messages[0].Role != chat.RoleUser || messages[0].Content != in.Body {
		t.Errorf("first message = %+v, want the inbound user message", messages[0])
	}
	if messages[1].Role != chat.RoleAssistant || messages[1].Content != "Bonjour Jean !" {
		t.Errorf("second message = %+v, want the assistant reply", messages[1])
	}

	sent := f.sender.envelopes()
	if len(sent) != 1 {
		t.Fatalf("sent %d envelopes, want 1", len(sent))
	}
	env := sent[0]
	if want := fmt.Sprintf("Boku.%d <%s>", f.convID, systemSender); env.From != want {
		t.Errorf("From = %q, want %q", env.From, want)
	}
	if env.To != "jean@x.com" {
		t.Errorf("To = %q, want jean@x.com", env.To)
	}
	if env.InReplyTo != "<inbound@mail>" {
		t.Errorf("InReplyTo = %q, want the inbound Message-Id", env.InReplyTo)
	}
	if env.Subject != "Re: bonjour" {
		t.Errorf("Subject = %q", env.Subject)
	}
	if env.Text != "Bonjour Jean !" {
		t.Errorf("Text = %q", env.Text)
	}
}

func TestHandleMissingToHeader(t *testing.T) {
	srv := chatReply(t, "unused")
	f := newFixture(t, srv.URL)

	in := Inbound{
		Headers: `[["From","jean@x.com"]]`,
		Body:    "hello",
		Sender:  "jean@x.com",
	}
	err := f.orch.Handle(context.Background(), in)
	if !errors.Is(err, ErrHeaderMalformed) {
		t.Fatalf("err = %v, want ErrHeaderMalformed", err)
	}
	if n := f.messageCount(t); n != 0 {
		t.Errorf("persisted %d messages, want 0", n)
	}
	if len(f.sender.envelopes()) != 0 {
		t.Error("expected no reply sent")
	}
}

func TestHandleUnknownConversation(t *testing.T) {
	srv := chatReply(t, "unused")
	f := newFixture(t, srv.URL)

	in := Inbound{
		Headers: fmt.Sprintf(`[["To","%s"]]`, mail.FormatFrom("Boku", f.convID+100, systemSender)),
		Body:    "hello",
		Sender:  "jean@x.com",
	}
	err := f.orch.Handle(context.Background(), in)
	if !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("err = %v, want ErrConversationNotFound", err)
	}
	if n := f.messageCount(t); n != 0 {
		t.Errorf("persisted %d messages, want 0", n)
	}
}

func TestHandleUnauthorizedSender(t *testing.T) {
	srv := chatReply(t, "unused")
	f := newFixture(t, srv.URL)

	in := Inbound{
		Headers: f.headers(),
		Body:    "injected turn",
		Sender:  "attacker@evil.com",
	}
	err := f.orch.Handle(context.Background(), in)
	if !errors.Is(err, ErrSenderUnauthorized) {
		t.Fatalf("err = %v, want ErrSenderUnauthorized", err)
	}
	if n := f.messageCount(t); n != 0 {
		t.Errorf("persisted %d messages, want 0", n)
	}
	if len(f.sender.envelopes()) != 0 {
		t.Error("expected no reply sent")
	}
}

func TestHandleEmptySenderUnauthorized(t *testing.T) {
	srv := chatReply(t, "unused")
	f := newFixture(t, srv.URL)

	in := Inbound{Headers: f.headers(), Body: "hello", Sender: ""}
	if err := f.orch.Handle(context.Background(), in); !errors.Is(err, ErrSenderUnauthorized) {
		t.Fatalf("err = %v, want ErrSenderUnauthorized", err)
	}
}

func TestHandleUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()
	f := newFixture(t, srv.URL)

	in := Inbound{Headers: f.headers(), Body: "hello", Sender: "jean@x.com"}
	err := f.orch.Handle(context.Background(), in)
	var upstream *chat.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("err = %v, want UpstreamError", err)
	}

	// The user message is written before the model call, so the failed turn
	// leaves exactly one unanswered user message.
	messages, err2 := f.store.ListMessages(context.Background(), f.convID)
	if err2 != nil {
		t.Fatalf("list messages: %v", err2)
	}
	if len(messages) != 1 || messages[0].Role != chat.RoleUser {
		t.Errorf("messages = %+v, want one unanswered user message", messages)
	}
	if len(f.sender.envelopes()) != 0 {
		t.Error("expected no reply sent")
	}
}

func TestHandleTemplateError(t *testing.T) {
	srv := chatReply(t, "unused")
	f := newFixture(t, srv.URL)

	ctx := context.Background()
	agent, err := f.store.CreateAgent(ctx, "Brök", "Swedish", "A1", "Hello {no_such_field}")
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	conv, err := f.store.CreateConversation(ctx, 1, agent.ID, "gemma3", "A1")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	in := Inbound{
		Headers: fmt.Sprintf(`[["To","%s"]]`, mail.FormatFrom("Brök", conv.ID, systemSender)),
		Body:    "hello",
		Sender:  "jean@x.com",
	}
	err = f.orch.Handle(ctx, in)
	var unknown *prompt.UnknownFieldError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want UnknownFieldError", err)
	}

	messages, _ := f.store.ListMessages(ctx, conv.ID)
	if len(messages) != 0 {
		t.Errorf("persisted %d messages, want 0 on template failure", len(messages))
	}
}

func TestHandleMailFailureKeepsTurn(t *testing.T) {
	srv := chatReply(t, "Bonjour !")
	f := newFixture(t, srv.URL)
	f.sender.err = &mail.TransportError{Err: errors.New("mailgun down")}

	in := Inbound{Headers: f.headers(), Body: "hello", Sender: "jean@x.com"}
	err := f.orch.Handle(context.Background(), in)
	var transport *mail.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("err = %v, want TransportError", err)
	}

	// The turn stays persisted even though no reply reached the user.
	if n := f.messageCount(t); n != 2 {
		t.Errorf("persisted %d messages, want 2", n)
	}
}

// Two concurrent turns for distinct conversations must never leak messages
// into each other.
func TestHandleConcurrentDistinctConversations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"ok"}}`)
	}))
	defer srv.Close()
	f := newFixture(t, srv.URL)

	ctx := context.Background()
	user, err := f.store.CreateUser(ctx, "Marie", "marie@x.com", "salt", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	conv, err := f.store.CreateConversation(ctx, user.ID, 1, "gemma3", "B1")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.orch.Handle(ctx, Inbound{Headers: f.headers(), Body: "from jean", Sender: "jean@x.com"})
	}()
	go func() {
		defer wg.Done()
		f.orch.Handle(ctx, Inbound{
			Headers: fmt.Sprintf(`[["To","%s"]]`, mail.FormatFrom("Boku", conv.ID, systemSender)),
			Body:    "from marie",
			Sender:  "marie@x.com",
		})
	}()
	wg.Wait()

	first, _ := f.store.ListMessages(ctx, f.convID)
	second, _ := f.store.ListMessages(ctx, conv.ID)
	if len(first) != 2 || first[0].Content != "from jean" {
		t.Errorf("conversation %d messages = %+v", f.convID, first)
	}
	if len(second) != 2 || second[0].Content != "from marie" {
		t.Errorf("conversation %d messages = %+v", conv.ID, second)
	}
}

// Overlapping deliveries for the same conversation serialize: the persisted
// log alternates user/assistant with no interleaving.
func TestHandleSerializesSameConversation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"ok"}}`)
	}))
	defer srv.Close()
	f := newFixture(t, srv.URL)

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.orch.Handle(ctx, Inbound{Headers: f.headers(), Body: "hello", Sender: "jean@x.com"})
		}()
	}
	wg.Wait()

	messages, err := f.store.ListMessages(ctx, f.convID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 4 {
		t.Fatalf("persisted %d messages, want 4", len(messages))
	}
	wantRoles := []string{chat.RoleUser, chat.RoleAssistant, chat.RoleUser, chat.RoleAssistant}
	for i, want := range wantRoles {
		if messages[i].Role != want {
			t.Errorf("messages[%d].Role = %q, want %q", i, messages[i].Role, want)
		}
	}
}
