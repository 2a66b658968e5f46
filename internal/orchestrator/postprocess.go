package orchestrator

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Message size limits.
const (
	PlatformLimit = 2000
	TargetPartLen = 100
	LongSentence  = 120
)

var markerRes = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^.*PERSON QUERY RESULT:.*$`),
	regexp.MustCompile(`(?m)^\s*---\s*[^-\n]{1,60}\s*---\s*$`),
	regexp.MustCompile(`\[User:\s*[^\]]*\]\s*`),
	regexp.MustCompile(`(?mi)^\s*(emotional context|about yourself|your mood today|time of day):.*$`),
	regexp.MustCompile(`(?i)^\s*(izumi|assistant|model)\s*:\s*`),
}

// StripMarkers removes any internal context markers the model echoed back.
func StripMarkers(text string) string {
	for _, re := range markerRes {
		text = re.ReplaceAllString(text, "")
	}
	return collapseBlankLines(text)
}

func collapseBlankLines(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	blank := false
	for _, l := range lines {
		l = strings.TrimRightFunc(l, unicode.IsSpace)
		if l == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

var (
	negativeRe = regexp.MustCompile(`(?i)\b(sorry|confused|don't know|dont know|not sure|no idea|unfortunately|sad|can't|cannot|hmm|ugh|idk)\b`)
	upbeatRe   = regexp.MustCompile(`(?i)[\s,.!]*(hope (this|that) helps|have a (great|nice|good) day|let me know if (you need|there's) anything( else)?|happy to help|glad i could help|cheers)[^.!?\n]*[.!?]*\s*(😊|😄|🙂|✨)?\s*$`)
)

// TrimUpbeatEnding drops a cheerful sign-off when the body is negative or confused.
func TrimUpbeatEnding(text string) string {
	loc := upbeatRe.FindStringIndex(text)
	if loc == nil || loc[0] == 0 {
		return text
	}
	body := text[:loc[0]]
	if !negativeRe.MatchString(body) {
		return text
	}
	return strings.TrimSpace(body)
}

// Split breaks a reply into natural chat messages: one per line, long lines
// at sentence ends with neighbouring sentences grouped up to TargetPartLen,
// and over-long sentences at pause points. No part exceeds PlatformLimit.
func Split(text string) []string {
	var parts []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if runeLen(line) <= TargetPartLen {
			parts = append(parts, line)
			continue
		}
		parts = append(parts, group(sentences(line))...)
	}
	var out []string
	for _, p := range parts {
		out = append(out, hardChunk(p, PlatformLimit)...)
	}
	return out
}

// group joins consecutive sentences while the part stays within
// TargetPartLen. A sentence over LongSentence is cut at pause points and
// stands alone.
func group(sents []string) []string {
	var out []string
	cur := ""
	flush := func() {
		if cur != "" {
			out = append(out, cur)
			cur = ""
		}
	}
	for _, s := range sents {
		if runeLen(s) > LongSentence {
			flush()
			out = append(out, splitLong(s)...)
			continue
		}
		switch {
		case cur == "":
			cur = s
		case runeLen(cur)+1+runeLen(s) <= TargetPartLen:
			cur += " " + s
		default:
			flush()
			cur = s
		}
	}
	flush()
	return out
}

// sentences cuts at . ! ? followed by whitespace and a capital letter.
func sentences(line string) []string {
	var out []string
	start := 0
	rs := []rune(line)
	for i := 0; i < len(rs); i++ {
		if rs[i] != '.' && rs[i] != '!' && rs[i] != '?' {
			continue
		}
		j := i + 1
		for j < len(rs) && (rs[j] == '.' || rs[j] == '!' || rs[j] == '?') {
			j++
		}
		k := j
		for k < len(rs) && unicode.IsSpace(rs[k]) {
			k++
		}
		if k == j || k >= len(rs) || !unicode.IsUpper(rs[k]) {
			i = j - 1
			continue
		}
		out = append(out, strings.TrimSpace(string(rs[start:j])))
		start = k
		i = k - 1
	}
	if tail := strings.TrimSpace(string(rs[start:])); tail != "" {
		out = append(out, tail)
	}
	return out
}

var pausePoints = []string{
	", and ", ", but ", ", so ", ", or ", ", because ", ", since ", ", though ",
	"; ", ": ", " — ", " – ", " - ",
}

// splitLong recursively halves sentences over LongSentence at the pause point
// nearest the middle, falling back to the comma nearest the middle.
func splitLong(s string) []string {
	if runeLen(s) <= LongSentence {
		return []string{s}
	}
	cut := nearestMiddle(s, pausePoints)
	if cut < 0 {
		cut = nearestMiddle(s, []string{", "})
	}
	if cut <= 0 || cut >= len(s) {
		return []string{s}
	}
	left := strings.TrimSpace(s[:cut])
	right := strings.TrimSpace(s[cut:])
	if left == "" || right == "" {
		return []string{s}
	}
	return append(splitLong(left), splitLong(right)...)
}

// nearestMiddle returns the byte index where the right half should start, or -1.
func nearestMiddle(s string, seps []string) int {
	mid := len(s) / 2
	best, bestDist := -1, len(s)
	for _, sep := range seps {
		from := 0
		for {
			i := strings.Index(s[from:], sep)
			if i < 0 {
				break
			}
			i += from
			// punctuation stays on the left, conjunctions start the right half
			at := i + 1
			if strings.HasPrefix(sep, " ") {
				at = i
			}
			if d := abs(at - mid); d < bestDist {
				best, bestDist = at, d
			}
			from = i + len(sep)
		}
	}
	return best
}

// hardChunk splits at whitespace so no chunk exceeds limit runes.
func hardChunk(s string, limit int) []string {
	var out []string
	for runeLen(s) > limit {
		rs := []rune(s)
		cut := limit
		for i := limit; i > limit/2; i-- {
			if unicode.IsSpace(rs[i]) {
				cut = i
				break
			}
		}
		out = append(out, strings.TrimSpace(string(rs[:cut])))
		s = strings.TrimSpace(string(rs[cut:]))
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
