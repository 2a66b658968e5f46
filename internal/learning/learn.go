// Package learning derives per-user statistics from every guild message and
// folds them into the memory store.
package learning

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"izumi/internal/memory"
)

// ErrNothingToDo is returned for bot messages and messages outside a guild.
var ErrNothingToDo = errors.New("learning: nothing to learn from message")

// Mention is one @mention in a message.
type Mention struct {
	UserID string
	Bot    bool
}

// Message is the platform-neutral view of an inbound message.
type Message struct {
	ID             string
	GuildID        string
	ChannelID      string
	ChannelName    string
	AuthorID       string
	DisplayName    string
	Username       string
	IsBot          bool
	Content        string
	Timestamp      time.Time
	Mentions       []Mention
	MentionsBot    bool
	ReplyToUserID  string
	HasAttachments bool
}

const sampleLen = 100

// LearnFromMessage runs Learn inside one store update.
func LearnFromMessage(store *memory.Store, msg Message) error {
	if msg.IsBot || msg.GuildID == "" || msg.AuthorID == "" {
		return ErrNothingToDo
	}
	var err error
	store.Update(func(tx *memory.Tx) { err = Learn(tx, msg) })
	return err
}

// Learn applies every extractor rule for msg to the live document.
func Learn(tx *memory.Tx, msg Message) error {
	if msg.IsBot || msg.GuildID == "" || msg.AuthorID == "" {
		return ErrNothingToDo
	}
	now := tx.Now()
	ts := msg.Timestamp
	if ts.IsZero() || ts.After(now) {
		ts = now
	}

	p, _ := tx.EnsureUser(msg.AuthorID, msg.DisplayName, msg.Username)
	tokens := Tokenize(msg.Content)
	s := scoreSentiment(tokens)

	ApplyTrust(p, msg.Content, s, ts)
	p.Activity.LastInteraction = ts.Unix()

	learnVocabulary(p, msg.Content, tokens)
	learnSentiment(p, s, ts)
	learnStyle(p, tokens)
	learnRelationships(p, msg, ts)
	learnTopics(p, msg, tokens)
	learnActivity(p, ts)
	learnCulture(tx.Culture(msg.GuildID), msg.Content, tokens, ts)

	memory.EnforceCaps(p)
	promote(p)

	tx.AppendRecent(msg.ChannelID, memory.RecentMessage{
		MessageID:      msg.ID,
		UserID:         msg.AuthorID,
		DisplayName:    msg.DisplayName,
		Content:        msg.Content,
		Timestamp:      ts.Unix(),
		IsBot:          msg.IsBot,
		MentionsBot:    msg.MentionsBot,
		HasAttachments: msg.HasAttachments,
	})
	return nil
}

func learnVocabulary(p *memory.UserProfile, content string, t Tokens) {
	v := &p.LearningData.Vocabulary
	for _, w := range t.Words {
		v.WordFrequency[w]++
	}
	for _, e := range t.Emojis {
		v.EmojiUsage[e]++
	}
	memory.TrimByValue(v.WordFrequency, memory.CapWordFrequency)
	memory.TrimByValue(v.EmojiUsage, memory.CapEmojiUsage)
	v.MessageLengths = memory.PushRing(v.MessageLengths, len([]rune(content)), memory.CapMessageLengths)

	sample := memory.TrimRunes(strings.TrimSpace(content), sampleLen)
	if strings.Contains(content, "?") {
		v.QuestionSamples = memory.PushRing(v.QuestionSamples, sample, memory.CapSamples)
	}
	if strings.Contains(content, "!") {
		v.ExclamationSamples = memory.PushRing(v.ExclamationSamples, sample, memory.CapSamples)
	}
}

func learnSentiment(p *memory.UserProfile, s sentiment, ts time.Time) {
	sp := &p.LearningData.SentimentPatterns
	sp.PositiveCount += s.positive
	sp.NegativeCount += s.negative
	sp.HumorCount += s.humor
	sp.ExcitementLevel = memory.PushRing(sp.ExcitementLevel, s.excitement, memory.CapExcitement)
	sp.MoodPatterns = memory.PushRing(sp.MoodPatterns, memory.MoodSample{
		Timestamp:  ts.Unix(),
		Positive:   s.positive,
		Negative:   s.negative,
		Excitement: s.excitement,
	}, memory.CapMoodPatterns)
}

func learnStyle(p *memory.UserProfile, t Tokens) {
	cs := &p.LearningData.CommunicationStyle
	formal, informal := 0, 0
	for _, w := range t.All {
		if _, ok := formalMarkers[w]; ok {
			formal++
		}
		if _, ok := informalMarkers[w]; ok {
			informal++
		}
	}
	switch {
	case formal > informal:
		cs.FormalityLevel++
	case informal > formal:
		cs.FormalityLevel--
	}
	cs.VerbosityPreference = memory.PushRing(cs.VerbosityPreference, len(t.All), memory.CapVerbosity)
	cs.EmojiFrequency += len(t.Emojis)
	if len(t.All) > 0 {
		if _, ok := greetingWords[t.All[0]]; ok {
			cs.GreetingStyle = memory.PushRing(cs.GreetingStyle, t.All[0], memory.CapGreetingStyle)
		}
	}
}

func learnRelationships(p *memory.UserProfile, msg Message, ts time.Time) {
	rn := &p.LearningData.RelationshipNetworks
	for _, m := range msg.Mentions {
		if m.Bot || m.UserID == "" || m.UserID == msg.AuthorID {
			continue
		}
		rn.MentionFrequency[m.UserID]++
	}
	if msg.ReplyToUserID != "" && msg.ReplyToUserID != msg.AuthorID {
		rn.ReplyFrequency[msg.ReplyToUserID]++
	}
	rn.SharedChannels[msg.ChannelID]++
	rn.InteractionTimes[strconv.Itoa(ts.UTC().Hour())]++
}

func learnTopics(p *memory.UserProfile, msg Message, t Tokens) {
	ti := &p.LearningData.TopicInterests
	for category, keywords := range topicKeywords {
		hit := false
		for _, w := range t.Words {
			if _, ok := keywords[w]; ok {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		switch category {
		case "gaming":
			ti.Gaming++
		case "tech":
			ti.Tech++
		case "entertainment":
			ti.Entertainment++
		}
	}
	key := msg.ChannelName
	if key == "" {
		key = msg.ChannelID
	}
	ti.ChannelPreferences[key]++
}

func learnActivity(p *memory.UserProfile, ts time.Time) {
	ap := &p.LearningData.ActivityPatterns
	u := ts.UTC()
	ap.HourHist[u.Hour()]++
	ap.DayHist[int(u.Weekday())]++
	ap.MonthHist[int(u.Month())-1]++

	cutoff := u.AddDate(0, 0, -memory.MessageFrequencyDays).Unix()
	kept := ap.MessageFrequency[:0]
	for _, at := range ap.MessageFrequency {
		if at >= cutoff {
			kept = append(kept, at)
		}
	}
	ap.MessageFrequency = append(kept, u.Unix())
}

func learnCulture(c *memory.ServerCulture, content string, t Tokens, ts time.Time) {
	if len(t.All) > 0 && len(t.All) <= 6 {
		phrase := strings.Join(t.All, " ")
		c.CommonPhrases[phrase]++
		memory.TrimByValue(c.CommonPhrases, memory.CapCommonPhrases)
	}
	for i := 0; i+1 < len(t.Words); i++ {
		bigram := t.Words[i] + " " + t.Words[i+1]
		if len(bigram) > 5 {
			c.RecurringTopics[bigram]++
		}
	}
	memory.TrimByValue(c.RecurringTopics, memory.CapRecurringTopics)

	day := ts.UTC().Format(time.DateOnly)
	trending := c.TrendingTopics[day]
	for _, w := range t.Words {
		if len([]rune(w)) < 4 {
			continue
		}
		if trending == nil {
			trending = map[string]int{}
			c.TrendingTopics[day] = trending
		}
		trending[w]++
	}
	if trending != nil {
		memory.TrimByValue(trending, memory.CapTrendingPerDay)
	}
	memory.ExpireTrending(c, ts)
}
