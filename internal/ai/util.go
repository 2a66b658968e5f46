package ai

import (
	"regexp"
	"strings"
)

var thinkRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

// CleanReply strips reasoning blocks and quotes wrapping the whole reply.
func CleanReply(reply string) string {
	reply = strings.TrimSpace(thinkRe.ReplaceAllString(strings.TrimSpace(reply), ""))

	if len(reply) >= 2 {
		quotes := []struct{ open, close string }{
			{`"`, `"`}, {`'`, `'`}, {"“", "”"}, {"‘", "’"},
		}
		for _, q := range quotes {
			if strings.HasPrefix(reply, q.open) && strings.HasSuffix(reply, q.close) {
				inner := strings.TrimSuffix(strings.TrimPrefix(reply, q.open), q.close)
				if !strings.Contains(inner, q.open) {
					reply = strings.TrimSpace(inner)
				}
				break
			}
		}
	}
	return reply
}

// IsGarbage reports replies that are not worth posting.
func IsGarbage(s string) bool {
	l := strings.ToLower(s)
	return strings.Contains(l, "<html") || strings.TrimSpace(s) == ""
}

// EstimateTokens is a coarse 4-chars-per-token estimate.
func EstimateTokens(s string) int {
	return (len([]rune(s)) + 3) / 4
}

// HistoryTokens sums EstimateTokens over a history.
func HistoryTokens(h []Message) int {
	n := 0
	for _, m := range h {
		n += EstimateTokens(m.Content)
	}
	return n
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
