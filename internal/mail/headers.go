// Package mail owns everything that touches email wire formats: the raw
// Mailgun header blob, the display-name thread protocol, reply envelopes,
// and the outbound transport.
package mail

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// The webhook delivers message-headers as a JSON array of [name, value]
// pairs flattened into a single string. It is treated as an opaque wire
// format and mined with regular expressions rather than decoded, so a
// malformed blob degrades to "not found" instead of a parse failure.
var (
	toHeaderRe  = regexp.MustCompile(`\["To",([^\]]*)\]`)
	threadIDRe  = regexp.MustCompile(`\.(\d+)[^\s]*\s<`)
	messageIDRe = regexp.MustCompile(`"Message-Id","([^"]*)"`)
)

// ErrNoConversationID means the To header was absent or did not carry the
// agent.<id> display-name token.
var ErrNoConversationID = errors.New("mail: no conversation id in headers")

// ParseToHeader returns the raw To value from the header blob, quotes and
// escapes included. Only the first To header is considered; address lists
// are a known limitation, not handled.
func ParseToHeader(headers string) (string, bool) {
	m := toHeaderRe.FindStringSubmatch(headers)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParseConversationID recovers the conversation id that FormatFrom embedded
// in the display name of an earlier outbound reply. The two functions are a
// matched encode/decode pair; change one and the thread breaks.
func ParseConversationID(headers string) (int64, error) {
	to, ok := ParseToHeader(headers)
	if !ok {
		return 0, ErrNoConversationID
	}
	m := threadIDRe.FindStringSubmatch(to)
	if m == nil {
		return 0, ErrNoConversationID
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, ErrNoConversationID
	}
	return id, nil
}

// ParseReplyToken returns the inbound Message-Id verbatim, for use as the
// reply's In-Reply-To header. Absence is normal and never fails a request.
func ParseReplyToken(headers string) (string, bool) {
	m := messageIDRe.FindStringSubmatch(headers)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// FormatFrom builds the outbound From value, carrying the conversation id in
// the display name so the next inbound To header round-trips it.
func FormatFrom(agentName string, conversationID int64, sender string) string {
	return fmt.Sprintf("%s.%d <%s>", agentName, conversationID, sender)
}
