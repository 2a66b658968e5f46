// Package persona holds the bot's mood, time-of-day style and typing quirks.
// Everything here is a pure function of the clock, the self profile and an
// injected random source, so replies can be replayed in tests.
package persona

import (
	"hash/fnv"
	"strings"
	"time"
	"unicode"

	"izumi/internal/memory"
)

// Mood is the bot's mood for one calendar day.
type Mood struct {
	Name          string
	Descriptor    string
	TypingFactor  float64 // >1 types slower
	Energetic     bool
	Sleepy        bool
	Interjections []string
}

var moods = []Mood{
	{Name: "happy", Descriptor: "in a good mood and a bit chatty", TypingFactor: 0.9, Interjections: []string{"hehe", "yay"}},
	{Name: "excited", Descriptor: "hyped and energetic", TypingFactor: 0.8, Energetic: true, Interjections: []string{"omg", "WAIT", "yesss"}},
	{Name: "chill", Descriptor: "relaxed and laid back", TypingFactor: 1.0, Interjections: []string{"eh", "mhm"}},
	{Name: "sleepy", Descriptor: "a little sleepy and slow", TypingFactor: 1.3, Sleepy: true, Interjections: []string{"*yawns*", "mmh"}},
	{Name: "playful", Descriptor: "playful and teasing", TypingFactor: 0.9, Interjections: []string{"heh", "lol"}},
	{Name: "moody", Descriptor: "slightly grumpy today", TypingFactor: 1.1, Interjections: []string{"ugh", "hmph"}},
	{Name: "curious", Descriptor: "curious about everything", TypingFactor: 1.0, Interjections: []string{"ooh", "hmm"}},
}

func dayHash(t time.Time, salt string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(t.UTC().Format(time.DateOnly)))
	h.Write([]byte(salt))
	return h.Sum32()
}

// DailyMood is stable for a whole UTC day. When self is given the descriptor
// mentions one of the bot's likes picked for the same day.
func DailyMood(t time.Time, self *memory.SelfProfile) Mood {
	m := moods[dayHash(t, "mood")%uint32(len(moods))]
	if self != nil && len(self.Likes) > 0 {
		like := self.Likes[dayHash(t, "like")%uint32(len(self.Likes))]
		m.Descriptor += ", thinking about " + like
	}
	return m
}

// MoodByName returns a mood from the table.
func MoodByName(name string) (Mood, bool) {
	for _, m := range moods {
		if m.Name == name {
			return m, true
		}
	}
	return Mood{}, false
}

// Period is a part of the day with its own texting style.
type Period struct {
	Name         string
	Style        string
	TypingFactor float64
}

// TimeOfDay classifies t by its hour in t's location.
func TimeOfDay(t time.Time) Period {
	switch h := t.Hour(); {
	case h < 5:
		return Period{"late_night", "it's very late, keep it short and drowsy", 1.3}
	case h < 12:
		return Period{"morning", "it's morning, a little slow to start", 1.1}
	case h < 17:
		return Period{"afternoon", "it's the afternoon, normal energy", 1.0}
	case h < 21:
		return Period{"evening", "it's the evening, relaxed and social", 0.95}
	default:
		return Period{"night", "it's night, cozy and casual", 1.05}
	}
}

// Typing speed bounds.
const (
	CharsPerSecond = 10.0
	MinTyping      = 800 * time.Millisecond
	MaxTyping      = 6 * time.Second
)

// TypingDuration simulates how long a person would type text.
func TypingDuration(text string, mood Mood, period Period) time.Duration {
	factor := mood.TypingFactor * period.TypingFactor
	if factor <= 0 {
		factor = 1
	}
	d := time.Duration(float64(len([]rune(text))) / CharsPerSecond * factor * float64(time.Second))
	if d < MinTyping {
		return MinTyping
	}
	if d > MaxTyping {
		return MaxTyping
	}
	return d
}

// Quirk probabilities.
const (
	InterjectionChance = 0.08
	TypoChance         = 0.05
)

var formalMarkers = []string{"please", "thank you", "regards", "sincerely", "apologies"}

// ApplyQuirks adds the small human touches: an occasional interjection, a
// typo followed by a correction line, and no trailing period on short casual
// sentences.
func ApplyQuirks(text string, mood Mood, rnd func() float64) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return text
	}
	if len(mood.Interjections) > 0 && rnd() < InterjectionChance {
		word := mood.Interjections[int(rnd()*float64(len(mood.Interjections)))%len(mood.Interjections)]
		if rnd() < 0.5 {
			text = word + " " + text
		} else {
			text = text + " " + word
		}
	}
	if rnd() < TypoChance {
		text = addTypo(text, rnd)
	}
	return StripCasualPeriod(text)
}

// addTypo swaps two letters of one longer word and appends "*word" as a
// correction on its own line.
func addTypo(text string, rnd func() float64) string {
	words := strings.Fields(text)
	var candidates []int
	for i, w := range words {
		if len([]rune(w)) >= 5 && isAlpha(w) {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return text
	}
	i := candidates[int(rnd()*float64(len(candidates)))%len(candidates)]
	w := []rune(words[i])
	j := 1 + int(rnd()*float64(len(w)-2))%(len(w)-2)
	typo := append([]rune(nil), w...)
	typo[j], typo[j+1] = typo[j+1], typo[j]
	if string(typo) == words[i] {
		return text
	}
	correct := words[i]
	words[i] = string(typo)
	return strings.Join(words, " ") + "\n*" + correct
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// StripCasualPeriod drops the final period of a short single sentence with
// no other punctuation and no formal markers.
func StripCasualPeriod(text string) string {
	if len(text) > 80 || !strings.HasSuffix(text, ".") || strings.HasSuffix(text, "..") {
		return text
	}
	if strings.ContainsAny(text, "\n") {
		return text
	}
	body := strings.TrimSuffix(text, ".")
	if strings.ContainsAny(body, ".!?;:,") {
		return text
	}
	lower := strings.ToLower(body)
	for _, m := range formalMarkers {
		if strings.Contains(lower, m) {
			return text
		}
	}
	return body
}
