package learning

import (
	"time"

	"izumi/internal/memory"
)

type sentiment struct {
	positive   int
	negative   int
	humor      int
	excitement float64
}

func scoreSentiment(t Tokens) sentiment {
	var s sentiment
	for _, w := range t.All {
		if _, ok := positiveWords[w]; ok {
			s.positive++
		}
		if _, ok := negativeWords[w]; ok {
			s.negative++
		}
		if _, ok := humorWords[w]; ok {
			s.humor++
		}
	}
	for _, e := range t.Emojis {
		if _, ok := humorWords[e]; ok {
			s.humor++
		}
	}
	s.excitement = 2*float64(t.CapWords) + 0.5*float64(t.Bangs) + 0.3*float64(len(t.Emojis))
	return s
}

// TrustDelta computes the change for one message. gap is the time since the
// previous interaction (zero for a first message) and priorMessages the count
// learned before this one.
func TrustDelta(content string, positive, negative int, gap time.Duration, priorMessages int) float64 {
	delta := 0.0
	days := gap.Hours() / 24
	switch {
	case days > 30:
		delta -= 2
	case days > 14:
		delta -= 1
	case days > 7:
		delta -= 0.5
	}

	n := len([]rune(content))
	switch {
	case n > 100:
		delta += 0.3
	case n > 50:
		delta += 0.2
	case n > 10:
		delta += 0.1
	case n <= 3:
		delta -= 0.1
	}

	delta += 0.2*float64(positive) - 0.3*float64(negative)
	if priorMessages > 10 {
		delta += 0.1
	}
	return delta
}

// ApplyTrust updates the profile's trust for one message at ts. It must run
// before last_interaction is moved to ts. Reports whether trust was written.
func ApplyTrust(p *memory.UserProfile, content string, s sentiment, ts time.Time) bool {
	var gap time.Duration
	if last := p.Activity.LastInteraction; last > 0 && ts.Unix() > last {
		gap = ts.Sub(time.Unix(last, 0))
	}
	delta := TrustDelta(content, s.positive, s.negative, gap, p.MessageCount())
	return p.SetTrust(p.Social.TrustLevel + delta)
}
