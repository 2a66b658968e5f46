package learning

import (
	"fmt"
	"testing"
	"time"

	"izumi/internal/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 2, 15, 30, 0, 0, time.UTC)

func newStore() *memory.Store {
	return memory.NewInMemory("", memory.WithClock(func() time.Time { return now }))
}

func sample() Message {
	return Message{
		ID:          "m1",
		GuildID:     "g",
		ChannelID:   "c",
		ChannelName: "general",
		AuthorID:    "1",
		DisplayName: "Alice",
		Username:    "alice",
		Content:     "I LOVE playing osu with <@2>!! 😂 great game",
		Timestamp:   now,
		Mentions:    []Mention{{UserID: "2"}, {UserID: "bot", Bot: true}},
	}
}

func TestNothingToDo(t *testing.T) {
	s := newStore()
	msg := sample()
	msg.IsBot = true
	assert.ErrorIs(t, LearnFromMessage(s, msg), ErrNothingToDo)

	msg = sample()
	msg.GuildID = ""
	assert.ErrorIs(t, LearnFromMessage(s, msg), ErrNothingToDo)
	assert.False(t, s.Pending())
	assert.Empty(t, s.UserIDs())
}

func TestLearnSingleMessage(t *testing.T) {
	s := newStore()
	require.NoError(t, LearnFromMessage(s, sample()))

	p, ok := s.User("1")
	require.True(t, ok)
	ld := p.LearningData
	assert.Equal(t, "Alice", p.BasicInfo.DisplayName)
	assert.Equal(t, now.Unix(), p.Activity.LastInteraction)
	assert.InDelta(t, 5.5, p.Social.TrustLevel, 1e-9)

	assert.Equal(t, 1, ld.Vocabulary.WordFrequency["osu"])
	assert.NotContains(t, ld.Vocabulary.WordFrequency, "with", "stop word")
	assert.Equal(t, 1, ld.Vocabulary.EmojiUsage["😂"])
	assert.Equal(t, 2, ld.SentimentPatterns.PositiveCount)
	assert.Equal(t, 1, ld.SentimentPatterns.HumorCount)
	require.Len(t, ld.SentimentPatterns.ExcitementLevel, 1)
	assert.InDelta(t, 3.3, ld.SentimentPatterns.ExcitementLevel[0], 1e-9)
	assert.Equal(t, 1, ld.TopicInterests.Gaming)
	assert.Equal(t, 1, ld.TopicInterests.ChannelPreferences["general"])
	assert.Equal(t, 1, ld.RelationshipNetworks.MentionFrequency["2"])
	assert.NotContains(t, ld.RelationshipNetworks.MentionFrequency, "bot")
	assert.Equal(t, 1, ld.RelationshipNetworks.InteractionTimes["15"])
	assert.Equal(t, 1, ld.ActivityPatterns.HourHist[15])
	assert.Equal(t, 1, ld.ActivityPatterns.DayHist[int(time.Monday)])
	assert.Equal(t, 1, ld.ActivityPatterns.MonthHist[5])
	assert.Len(t, ld.Vocabulary.ExclamationSamples, 1)
	assert.Empty(t, ld.Vocabulary.QuestionSamples)

	recent := s.Recent("c")
	require.Len(t, recent, 1)
	assert.Equal(t, "Alice", recent[0].DisplayName)
}

// Counters that grow once per occurrence double; once-per-message state does not.
func TestLearnTwiceIdempotence(t *testing.T) {
	once, twice := newStore(), newStore()
	require.NoError(t, LearnFromMessage(once, sample()))
	require.NoError(t, LearnFromMessage(twice, sample()))
	require.NoError(t, LearnFromMessage(twice, sample()))

	a, _ := once.User("1")
	b, _ := twice.User("1")
	la, lb := a.LearningData, b.LearningData

	doubled := []struct {
		name string
		one  int
		two  int
	}{
		{"word_frequency", la.Vocabulary.WordFrequency["osu"], lb.Vocabulary.WordFrequency["osu"]},
		{"emoji_usage", la.Vocabulary.EmojiUsage["😂"], lb.Vocabulary.EmojiUsage["😂"]},
		{"message_lengths", len(la.Vocabulary.MessageLengths), len(lb.Vocabulary.MessageLengths)},
		{"positive_count", la.SentimentPatterns.PositiveCount, lb.SentimentPatterns.PositiveCount},
		{"humor_count", la.SentimentPatterns.HumorCount, lb.SentimentPatterns.HumorCount},
		{"mood_patterns", len(la.SentimentPatterns.MoodPatterns), len(lb.SentimentPatterns.MoodPatterns)},
		{"emoji_frequency", la.CommunicationStyle.EmojiFrequency, lb.CommunicationStyle.EmojiFrequency},
		{"verbosity", len(la.CommunicationStyle.VerbosityPreference), len(lb.CommunicationStyle.VerbosityPreference)},
		{"mention_frequency", la.RelationshipNetworks.MentionFrequency["2"], lb.RelationshipNetworks.MentionFrequency["2"]},
		{"shared_channels", la.RelationshipNetworks.SharedChannels["c"], lb.RelationshipNetworks.SharedChannels["c"]},
		{"interaction_times", la.RelationshipNetworks.InteractionTimes["15"], lb.RelationshipNetworks.InteractionTimes["15"]},
		{"gaming", la.TopicInterests.Gaming, lb.TopicInterests.Gaming},
		{"hour_hist", la.ActivityPatterns.HourHist[15], lb.ActivityPatterns.HourHist[15]},
		{"message_frequency", len(la.ActivityPatterns.MessageFrequency), len(lb.ActivityPatterns.MessageFrequency)},
	}
	for _, c := range doubled {
		assert.Equal(t, 2*c.one, c.two, c.name)
	}

	assert.Equal(t, a.Activity.LastInteraction, b.Activity.LastInteraction, "last_interaction")
	assert.Equal(t, a.BasicInfo, b.BasicInfo, "basic_info")
	assert.Equal(t, a.Personality.Interests, b.Personality.Interests, "interests")
	assert.Equal(t, a.Personality.PersonalityNotes, b.Personality.PersonalityNotes, "notes")
	assert.Equal(t, len(once.Recent("c")), len(twice.Recent("c")), "recent ring")

	ca, _ := once.Culture("g")
	cb, _ := twice.Culture("g")
	assert.Equal(t, 2*ca.RecurringTopics["playing osu"], cb.RecurringTopics["playing osu"], "recurring_topics")
}

func TestCapsHoldUnderLoad(t *testing.T) {
	s := newStore()
	for i := 0; i < 400; i++ {
		msg := sample()
		msg.ID = fmt.Sprintf("m%d", i)
		msg.Content = fmt.Sprintf("word%d another%d thing%d %s? wow!", i, i, i, string(rune(0x1F600+i%60)))
		msg.Timestamp = now.Add(-time.Duration(400-i) * time.Minute)
		require.NoError(t, LearnFromMessage(s, msg))
	}
	p, _ := s.User("1")
	ld := p.LearningData
	assert.LessOrEqual(t, len(ld.Vocabulary.WordFrequency), memory.CapWordFrequency)
	assert.LessOrEqual(t, len(ld.Vocabulary.EmojiUsage), memory.CapEmojiUsage)
	assert.LessOrEqual(t, len(ld.Vocabulary.MessageLengths), memory.CapMessageLengths)
	assert.LessOrEqual(t, len(ld.Vocabulary.QuestionSamples), memory.CapSamples)
	assert.LessOrEqual(t, len(ld.Vocabulary.ExclamationSamples), memory.CapSamples)
	assert.LessOrEqual(t, len(ld.CommunicationStyle.VerbosityPreference), memory.CapVerbosity)
	assert.LessOrEqual(t, len(ld.SentimentPatterns.ExcitementLevel), memory.CapExcitement)
	assert.LessOrEqual(t, len(ld.SentimentPatterns.MoodPatterns), memory.CapMoodPatterns)
	assert.GreaterOrEqual(t, p.Social.TrustLevel, 0.0)
	assert.LessOrEqual(t, p.Social.TrustLevel, 10.0)
	assert.Len(t, s.Recent("c"), memory.CapRecentMessages)

	c, _ := s.Culture("g")
	assert.LessOrEqual(t, len(c.CommonPhrases), memory.CapCommonPhrases)
	assert.LessOrEqual(t, len(c.RecurringTopics), memory.CapRecurringTopics)
}

func TestMessageFrequencyWindow(t *testing.T) {
	s := newStore()
	old := sample()
	old.ID = "old"
	old.Timestamp = now.AddDate(0, 0, -40)
	require.NoError(t, LearnFromMessage(s, old))
	require.NoError(t, LearnFromMessage(s, sample()))

	p, _ := s.User("1")
	assert.Equal(t, []int64{now.Unix()}, p.LearningData.ActivityPatterns.MessageFrequency)
}

func TestPromotion(t *testing.T) {
	s := newStore()
	for i := 0; i < 6; i++ {
		msg := sample()
		msg.ID = fmt.Sprintf("f%d", i)
		msg.Content = "Could you please share the beatmap, kindly. Regards"
		require.NoError(t, LearnFromMessage(s, msg))
	}
	p, _ := s.User("1")
	assert.Contains(t, p.Personality.PersonalityNotes, NoteFormal)
	assert.Contains(t, p.Personality.Interests, "gaming")
	assert.NotContains(t, p.Personality.Interests, "technology")
}

func TestCulturePhrasesAndBigrams(t *testing.T) {
	s := newStore()
	msg := sample()
	msg.Content = "gg ez"
	require.NoError(t, LearnFromMessage(s, msg))
	msg.ID = "m2"
	msg.Content = "the tournament finals were absolutely insane yesterday honestly"
	require.NoError(t, LearnFromMessage(s, msg))

	c, ok := s.Culture("g")
	require.True(t, ok)
	assert.Equal(t, 1, c.CommonPhrases["gg ez"])
	assert.NotContains(t, c.RecurringTopics, "gg ez", "bigram of 5 chars")
	assert.NotContains(t, c.CommonPhrases, "the tournament finals were absolutely insane yesterday honestly")
	assert.Equal(t, 1, c.RecurringTopics["tournament finals"])
	assert.Equal(t, 1, c.TrendingTopics[now.Format(time.DateOnly)]["tournament"])
}

func TestTrustDelta(t *testing.T) {
	day := 24 * time.Hour
	assert.InDelta(t, -2.1, TrustDelta("ok", 0, 0, 45*day, 0), 1e-9)
	assert.InDelta(t, -1+0.1, TrustDelta("hello there friend", 0, 0, 20*day, 0), 1e-9)
	assert.InDelta(t, 0.3+0.1, TrustDelta(string(make([]rune, 101)), 0, 0, 0, 11), 1e-9)
	assert.InDelta(t, 0.2+0.2-0.3, TrustDelta("this is a fifty-something character message, right?", 1, 1, 0, 0), 1e-9)
}

func TestTokenize(t *testing.T) {
	tok := Tokenize("Check https://x.y/z <:pog:123> <@!55> HELLO it's  me ✨")
	assert.Equal(t, []string{"check", "hello", "it's", "me"}, tok.All)
	assert.Equal(t, []string{"check", "hello"}, tok.Words)
	assert.Equal(t, []string{":pog:", "✨"}, tok.Emojis)
	assert.Equal(t, 1, tok.CapWords)
}
