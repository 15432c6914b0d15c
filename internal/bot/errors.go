package bot

import (
	"errors"

	"github.com/francoise-ai/francoise/internal/chat"
	"github.com/francoise-ai/francoise/internal/mail"
	"github.com/francoise-ai/francoise/internal/prompt"
)

var (
	// ErrHeaderMalformed means no conversation id could be recovered from the
	// inbound headers; the request is rejected with no state change.
	ErrHeaderMalformed = errors.New("bot: conversation id missing from headers")

	ErrConversationNotFound = errors.New("bot: conversation not found")

	// ErrSenderUnauthorized means the sender address does not belong to the
	// conversation's user. Logged internally only; nothing is ever reported
	// back to the sender.
	ErrSenderUnauthorized = errors.New("bot: sender not authorized for conversation")
)

// kindOf buckets a pipeline failure for logs and alerting.
func kindOf(err error) string {
	var (
		upstream  *chat.UpstreamError
		tmpl      *prompt.UnknownFieldError
		transport *mail.TransportError
	)
	switch {
	case errors.Is(err, ErrHeaderMalformed):
		return "header_malformed"
	case errors.Is(err, ErrConversationNotFound):
		return "conversation_not_found"
	case errors.Is(err, ErrSenderUnauthorized):
		return "sender_unauthorized"
	case errors.As(err, &tmpl):
		return "template_error"
	case errors.As(err, &upstream),
		errors.Is(err, chat.ErrEmptyMessages),
		errors.Is(err, chat.ErrModelUnspecified),
		errors.Is(err, chat.ErrEndpointUnspecified):
		return "upstream_error"
	case errors.As(err, &transport):
		return "mail_transport_error"
	default:
		return "internal"
	}
}
