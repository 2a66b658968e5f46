package memory

import (
	"math"
	"strings"
)

// relationshipStrength maps a relationship label to an edge strength.
var relationshipStrength = map[string]int{
	"partner":      10,
	"spouse":       10,
	"husband":      10,
	"wife":         10,
	"boyfriend":    10,
	"girlfriend":   10,
	"best friend":  9,
	"bestie":       9,
	"close friend": 8,
	"family":       8,
	"sibling":      8,
	"brother":      8,
	"sister":       8,
	"twin":         9,
	"friend":       7,
	"crush":        6,
	"roommate":     6,
	"classmate":    5,
	"teammate":     5,
	"coworker":     4,
	"colleague":    4,
	"acquaintance": 3,
	"rival":        2,
	"ex":           2,
	"enemy":        1,
}

// DefaultStrength applies to labels missing from the table.
const DefaultStrength = 5

// StrengthFor returns the fixed strength for a relationship label.
func StrengthFor(label string) int {
	if s, ok := relationshipStrength[strings.ToLower(strings.TrimSpace(label))]; ok {
		return s
	}
	return DefaultStrength
}

// SetRelationship sets the label and its strength together.
func (p *UserProfile) SetRelationship(otherID, label string) {
	p.ensure()
	p.Social.Relationships[otherID] = label
	p.LearningData.RelationshipNetworks.RelationshipStrength[otherID] = StrengthFor(label)
}

// AddSharedExperience records an event shared with another user.
func (p *UserProfile) AddSharedExperience(otherID, event string) bool {
	p.ensure()
	list, added := appendUnique(p.Social.SharedExperiences[otherID], event, CapSharedExperiences)
	p.Social.SharedExperiences[otherID] = list
	return added
}

// AddNote appends a personality note once.
func (p *UserProfile) AddNote(note string) bool {
	var added bool
	p.Personality.PersonalityNotes, added = appendUnique(p.Personality.PersonalityNotes, note, CapNotes)
	return added
}

// AddInterest appends an interest tag once.
func (p *UserProfile) AddInterest(tag string) bool {
	var added bool
	p.Personality.Interests, added = appendUnique(p.Personality.Interests, tag, CapNotes)
	return added
}

// AddDislike appends a dislike once.
func (p *UserProfile) AddDislike(tag string) bool {
	var added bool
	p.Personality.Dislikes, added = appendUnique(p.Personality.Dislikes, tag, CapNotes)
	return added
}

// AddEvent appends an important event.
func (p *UserProfile) AddEvent(event string) bool {
	var added bool
	p.Activity.ImportantEvents, added = appendUnique(p.Activity.ImportantEvents, event, CapNotes)
	return added
}

// AddCustomNote appends an admin note.
func (p *UserProfile) AddCustomNote(note string) bool {
	var added bool
	p.Activity.CustomNotes, added = appendUnique(p.Activity.CustomNotes, note, CapNotes)
	return added
}

// RoundTrust clamps to [0,10] and rounds to one decimal.
func RoundTrust(v float64) float64 {
	v = math.Max(TrustMin, math.Min(TrustMax, v))
	return math.Round(v*10) / 10
}

// SetTrust writes the trust level when it moves by at least 0.1.
// It reports whether a write happened.
func (p *UserProfile) SetTrust(v float64) bool {
	v = RoundTrust(v)
	if math.Abs(v-p.Social.TrustLevel) < 0.1-1e-9 {
		return false
	}
	p.Social.TrustLevel = v
	return true
}

// Clone returns a deep copy.
func (p *UserProfile) Clone() *UserProfile {
	out := *p
	if p.BasicInfo.Birthday != nil {
		b := *p.BasicInfo.Birthday
		out.BasicInfo.Birthday = &b
	}
	out.Personality.Interests = cloneSlice(p.Personality.Interests)
	out.Personality.Dislikes = cloneSlice(p.Personality.Dislikes)
	out.Personality.PersonalityNotes = cloneSlice(p.Personality.PersonalityNotes)
	out.Social.Relationships = cloneMap(p.Social.Relationships)
	out.Social.SharedExperiences = make(map[string][]string, len(p.Social.SharedExperiences))
	for k, v := range p.Social.SharedExperiences {
		out.Social.SharedExperiences[k] = cloneSlice(v)
	}
	out.Activity.ImportantEvents = cloneSlice(p.Activity.ImportantEvents)
	out.Activity.CustomNotes = cloneSlice(p.Activity.CustomNotes)

	src, dst := &p.LearningData, &out.LearningData
	dst.Vocabulary.WordFrequency = cloneMap(src.Vocabulary.WordFrequency)
	dst.Vocabulary.EmojiUsage = cloneMap(src.Vocabulary.EmojiUsage)
	dst.Vocabulary.MessageLengths = cloneSlice(src.Vocabulary.MessageLengths)
	dst.Vocabulary.QuestionSamples = cloneSlice(src.Vocabulary.QuestionSamples)
	dst.Vocabulary.ExclamationSamples = cloneSlice(src.Vocabulary.ExclamationSamples)
	dst.CommunicationStyle.VerbosityPreference = cloneSlice(src.CommunicationStyle.VerbosityPreference)
	dst.CommunicationStyle.GreetingStyle = cloneSlice(src.CommunicationStyle.GreetingStyle)
	dst.SentimentPatterns.ExcitementLevel = cloneSlice(src.SentimentPatterns.ExcitementLevel)
	dst.SentimentPatterns.MoodPatterns = cloneSlice(src.SentimentPatterns.MoodPatterns)
	dst.TopicInterests.ChannelPreferences = cloneMap(src.TopicInterests.ChannelPreferences)
	dst.ActivityPatterns.MessageFrequency = cloneSlice(src.ActivityPatterns.MessageFrequency)
	rs, rd := &src.RelationshipNetworks, &dst.RelationshipNetworks
	rd.MentionFrequency = cloneMap(rs.MentionFrequency)
	rd.ReplyFrequency = cloneMap(rs.ReplyFrequency)
	rd.SharedChannels = cloneMap(rs.SharedChannels)
	rd.InteractionTimes = cloneMap(rs.InteractionTimes)
	rd.RelationshipStrength = cloneMap(rs.RelationshipStrength)
	return &out
}

// MatchesName reports a case-insensitive substring match on any known name.
func (p *UserProfile) MatchesName(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	for _, n := range p.Names() {
		if strings.Contains(strings.ToLower(n), q) {
			return true
		}
	}
	return false
}
