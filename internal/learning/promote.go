package learning

import "izumi/internal/memory"

// Notes added by promotion.
const (
	NoteFormal      = "speaks formally"
	NoteCasual      = "speaks casually"
	NoteLong        = "tends to write long messages"
	NoteShort       = "prefers short messages"
	NotePositive    = "generally positive and upbeat"
	NoteNegative    = "tends to be critical or negative"
	minVerbosity    = 5
	minSentiment    = 20
	topicSustained  = 3
	formalThreshold = 5
)

// promote turns sustained observations into personality notes and interests.
func promote(p *memory.UserProfile) {
	cs := p.LearningData.CommunicationStyle
	switch {
	case cs.FormalityLevel > formalThreshold:
		p.AddNote(NoteFormal)
	case cs.FormalityLevel < -formalThreshold:
		p.AddNote(NoteCasual)
	}

	if len(cs.VerbosityPreference) >= minVerbosity {
		total := 0
		for _, n := range cs.VerbosityPreference {
			total += n
		}
		avg := float64(total) / float64(len(cs.VerbosityPreference))
		switch {
		case avg > 50:
			p.AddNote(NoteLong)
		case avg < 10:
			p.AddNote(NoteShort)
		}
	}

	sp := p.LearningData.SentimentPatterns
	if scored := sp.PositiveCount + sp.NegativeCount; scored >= minSentiment {
		ratio := float64(sp.PositiveCount) / float64(scored)
		switch {
		case ratio > 0.7:
			p.AddNote(NotePositive)
		case ratio < 0.3:
			p.AddNote(NoteNegative)
		}
	}

	ti := p.LearningData.TopicInterests
	for _, c := range []struct {
		category string
		n        int
	}{{"gaming", ti.Gaming}, {"tech", ti.Tech}, {"entertainment", ti.Entertainment}} {
		if c.n > topicSustained {
			p.AddInterest(topicTags[c.category])
		}
	}
}
