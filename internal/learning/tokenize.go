package learning

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	customEmojiRe = regexp.MustCompile(`<a?:([A-Za-z0-9_~]+):\d+>`)
	mentionRe     = regexp.MustCompile(`<(?:@[!&]?|#)\d+>`)
	urlRe         = regexp.MustCompile(`https?://\S+`)
)

// Tokens is a message broken into the parts the extractor counts.
type Tokens struct {
	All      []string // lowercased words in order, stop words included
	Words    []string // All without stop words and single letters
	Emojis   []string // unicode emoji and :custom: emoji names
	CapWords int      // ALL-CAPS words of at least 3 letters
	Bangs    int      // exclamation marks
}

// Tokenize splits content into words and emoji.
func Tokenize(content string) Tokens {
	var t Tokens
	for _, m := range customEmojiRe.FindAllStringSubmatch(content, -1) {
		t.Emojis = append(t.Emojis, ":"+m[1]+":")
	}
	text := customEmojiRe.ReplaceAllString(content, " ")
	text = mentionRe.ReplaceAllString(text, " ")
	text = urlRe.ReplaceAllString(text, " ")

	for _, r := range text {
		if isEmoji(r) {
			t.Emojis = append(t.Emojis, string(r))
		}
		if r == '!' {
			t.Bangs++
		}
	}

	for _, raw := range strings.FieldsFunc(text, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'')
	}) {
		raw = strings.Trim(raw, "'")
		if raw == "" {
			continue
		}
		if isCapsWord(raw) {
			t.CapWords++
		}
		w := strings.ToLower(raw)
		t.All = append(t.All, w)
		if _, stop := stopWords[w]; stop || len([]rune(w)) < 2 {
			continue
		}
		t.Words = append(t.Words, w)
	}
	return t
}

func isCapsWord(w string) bool {
	letters := 0
	for _, r := range w {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 3
}

// isEmoji covers the common pictographic blocks.
func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF:
		return true
	}
	return false
}
