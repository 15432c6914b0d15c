package mail

// Envelope is one outbound reply, built fresh per turn and discarded after
// delivery.
type Envelope struct {
	From      string
	To        string
	Text      string
	Subject   string // empty means let the transport pick its own default
	InReplyTo string // empty means no threading header
}

// ComposeReply builds the reply envelope for a completed turn. The subject
// is carried over only when the inbound mail had one, and the reply token is
// passed through unmodified.
func ComposeReply(agentName string, conversationID int64, sender, to, replyToken, subject, text string) Envelope {
	return Envelope{
		From:      FormatFrom(agentName, conversationID, sender),
		To:        to,
		Text:      text,
		Subject:   subject,
		InReplyTo: replyToken,
	}
}
