package chat

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// EstimateTokens returns a rough token count for a message sequence, for
// logging only. Returns 0 when the encoding is unavailable; first use loads
// the cl100k_base vocabulary, which tiktoken may fetch remotely.
func EstimateTokens(messages []Message) int {
	encodingOnce.Do(func() {
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			encoding = enc
		}
	})
	if encoding == nil {
		return 0
	}
	n := 0
	for _, m := range messages {
		n += len(encoding.Encode(m.Content, nil, nil))
	}
	return n
}
