// Package quickreply answers trivial small talk locally without the LLM.
package quickreply

import (
	"strings"
	"unicode"

	"izumi/internal/persona"
)

// Category is one row of the rule table.
type Category struct {
	Name     string
	Patterns []string
	Replies  []string
}

// Table is checked in order; the first matching category wins.
var Table = []Category{
	{
		Name:     "how_are_you",
		Patterns: []string{"how are you", "how are u", "how r u", "hru", "hows it going", "how's it going", "how you doing", "wyd", "whats up", "what's up", "wassup"},
		Replies:  []string{"i'm good! you?", "pretty chill, hbu?", "doing alright, wbu", "surviving lol, you?", "not bad at all! how about you?"},
	},
	{
		Name:     "time_greetings",
		Patterns: []string{"good morning", "gm", "good night", "gn", "good evening", "good afternoon", "nighty night"},
		Replies:  []string{"heyy, hope your day's going well", "aww you too", "hii! same to you", "you too!!"},
	},
	{
		Name:     "greetings",
		Patterns: []string{"hi", "hello", "hey", "heya", "hiya", "hii", "yo", "sup", "hola", "howdy", "hai"},
		Replies:  []string{"hii!", "hey hey", "oh hi!", "heyy, what's up?", "hello!! how are you?", "yo"},
	},
	{
		Name:     "thanks",
		Patterns: []string{"thanks", "thank you", "ty", "thx", "tysm", "thank u", "tyvm"},
		Replies:  []string{"np!", "anytime", "of course!", "no problem :)", "happy to help!"},
	},
	{
		Name:     "laughter",
		Patterns: []string{"lol", "lmao", "lmfao", "haha", "hahaha", "hehe", "xd", "rofl", "kek"},
		Replies:  []string{"lmao", "hehe", "LOL", "right??", "😂"},
	},
	{
		Name:     "yes_no",
		Patterns: []string{"yes", "no", "yeah", "nah", "yep", "nope", "ok", "okay", "k", "sure"},
		Replies:  []string{"okie", "alright!", "mhm", "fair enough", "got it"},
	},
}

// Clean lowercases, strips punctuation and collapses whitespace.
func Clean(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// containsWords reports whether pattern occurs in text on word boundaries.
func containsWords(text, pattern string) bool {
	return strings.Contains(" "+text+" ", " "+pattern+" ")
}

// Lookup returns the matching category for text.
func Lookup(text string) (*Category, bool) {
	cleaned := Clean(text)
	if cleaned == "" {
		return nil, false
	}
	short := len(strings.Fields(cleaned)) <= 3
	for i := range Table {
		c := &Table[i]
		for _, p := range c.Patterns {
			if cleaned == p || (short && containsWords(cleaned, p)) {
				return c, true
			}
		}
	}
	return nil, false
}

// Match picks a local reply for trivial small talk, weighted by mood. It
// returns false to defer to the LLM path.
func Match(text string, mood persona.Mood, rnd func() float64) (string, bool) {
	c, ok := Lookup(text)
	if !ok {
		return "", false
	}
	pool := c.Replies
	if mood.Sleepy {
		pool = shortest(pool)
	}
	reply := pool[int(rnd()*float64(len(pool)))%len(pool)]
	if mood.Energetic {
		reply = energize(reply)
	}
	return reply, true
}

// shortest keeps the replies no longer than the median length.
func shortest(replies []string) []string {
	lengths := make([]int, len(replies))
	for i, r := range replies {
		lengths[i] = len(r)
	}
	sorted := append([]int(nil), lengths...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	median := sorted[(len(sorted)-1)/2]
	var out []string
	for i, r := range replies {
		if lengths[i] <= median {
			out = append(out, r)
		}
	}
	return out
}

func energize(reply string) string {
	trimmed := strings.TrimRight(reply, ".!?")
	switch {
	case strings.HasSuffix(reply, "?"):
		return trimmed + "?!"
	case strings.HasSuffix(trimmed, ")") || strings.HasSuffix(trimmed, "😂"):
		return reply
	default:
		return trimmed + "!!"
	}
}
