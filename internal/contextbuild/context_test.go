package contextbuild

import (
	"strings"
	"testing"
	"time"

	"izumi/internal/lyrics"
	"izumi/internal/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)

type fakeCommunity map[string]Standing

func (f fakeCommunity) Standing(_, userID string) (Standing, bool) {
	st, ok := f[userID]
	return st, ok
}

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	clock := now
	return memory.NewInMemory(t.TempDir()+"/memory.json", memory.WithClock(func() time.Time { return clock }))
}

func TestPersonQueryDossier(t *testing.T) {
	s := newStore(t)
	s.Update(func(tx *memory.Tx) {
		tx.EnsureUser("a", "Alice", "alice")
		john, _ := tx.EnsureUser("john", "John", "john")
		john.LearningData.ActivityPatterns.DayHist[1] = 42
	})
	b := New(s, fakeCommunity{"john": {Level: 15, XP: 1500, Coins: 3}}, "99", "Izumi")

	out := b.Build(Request{UserID: "a", GuildID: "g", ChannelID: "c", Text: "who is john?", Now: now})
	assert.Contains(t, out, PersonQueryMarker+" name=John level=15 xp=1500 coins=3 cards=0 messages=42")
}

func TestPersonQueryAmbiguousAndUnknown(t *testing.T) {
	s := newStore(t)
	s.Update(func(tx *memory.Tx) {
		tx.EnsureUser("1", "Sam", "sam1")
		tx.EnsureUser("2", "Samantha", "sammy")
	})
	b := New(s, nil, "99", "Izumi")

	out := b.Build(Request{UserID: "1", ChannelID: "c", Text: "do you know sam", Now: now})
	assert.Contains(t, out, "several people match sam")

	out = b.Build(Request{UserID: "1", ChannelID: "c", Text: "tell me about zed", Now: now})
	assert.Contains(t, out, "don't know anyone called zed")
}

func TestPersonQueryPatterns(t *testing.T) {
	cases := map[string]string{
		"who is john?":          "john",
		"Do you know @Mika":     "Mika",
		"have you met rin.":     "rin",
		"remember kai from osu": "kai",
	}
	for text, want := range cases {
		got, ok := PersonQuery(text)
		require.True(t, ok, text)
		assert.Equal(t, want, got)
	}
	for _, text := range []string{"who is you", "remember me", "what about it", "hello there"} {
		_, ok := PersonQuery(text)
		assert.False(t, ok, text)
	}
}

func TestRecentChatNormalized(t *testing.T) {
	s := newStore(t)
	s.Update(func(tx *memory.Tx) {
		tx.EnsureUser("1", "John", "john")
		tx.AppendRecent("c", memory.RecentMessage{MessageID: "m1", UserID: "1", DisplayName: "John", Content: "<@99> look https://x.com/a <@2>", Timestamp: now.Unix() - 20})
		tx.AppendRecent("c", memory.RecentMessage{MessageID: "m2", UserID: "99", DisplayName: "Izumi", Content: "cute", Timestamp: now.Unix() - 10, IsBot: true})
		tx.AppendRecent("c", memory.RecentMessage{MessageID: "m3", UserID: "1", DisplayName: "John", Content: "<@!1> me", Timestamp: now.Unix()})
	})
	b := New(s, nil, "99", "Izumi")

	out := b.Build(Request{UserID: "1", ChannelID: "c", ExcludeMessageID: "m3", Now: now})
	assert.Contains(t, out, "--- Recent chat ---\nJohn: Izumi look [link] @someone\nIzumi: cute\n")
	assert.NotContains(t, out, "@John me")
}

func TestRecentChatSkipsBotMentions(t *testing.T) {
	s := newStore(t)
	s.Update(func(tx *memory.Tx) {
		tx.EnsureUser("1", "John", "john")
		tx.AppendRecent("c", memory.RecentMessage{MessageID: "m1", UserID: "1", DisplayName: "John", Content: "<@99> are you awake", Timestamp: now.Unix() - 30, MentionsBot: true})
		tx.AppendRecent("c", memory.RecentMessage{MessageID: "m2", UserID: "1", DisplayName: "John", Content: "anyway the raid starts at nine", Timestamp: now.Unix() - 20})
	})
	b := New(s, nil, "99", "Izumi")

	out := b.Build(Request{UserID: "1", ChannelID: "c", Now: now})
	assert.Contains(t, out, "--- Recent chat ---\nJohn: anyway the raid starts at nine")
	assert.NotContains(t, out, "are you awake")
}

func TestEssentialProfile(t *testing.T) {
	s := newStore(t)
	s.Update(func(tx *memory.Tx) {
		p, _ := tx.EnsureUser("1", "John", "john_doe")
		p.AddInterest("osu")
		p.BasicInfo.Birthday = &memory.Birthday{Month: 4, Day: 1}
		p.Activity.LastInteraction = now.Add(-20 * 24 * time.Hour).Unix()
		p.Social.TrustLevel = 8.5
		tx.Self().Likes = []string{"rhythm games"}
	})
	b := New(s, fakeCommunity{"1": {Level: 3, XP: 120, Warnings: 2, LastActive: now.Add(-time.Hour)}}, "99", "Izumi")

	out := b.Build(Request{UserID: "1", ChannelID: "c", Text: "hey", Now: now})
	assert.Contains(t, out, "Name: John (@john_doe)")
	assert.Contains(t, out, "Interests: osu")
	assert.Contains(t, out, "Trust: 8.5/10")
	assert.Contains(t, out, "Level 3 with 120 xp. Has 2 moderation warning(s).")
	assert.Contains(t, out, "likes: rhythm games")
	assert.Contains(t, out, "Emotional context: ")
}

func TestLyricInjection(t *testing.T) {
	s := newStore(t)
	b := New(s, nil, "99", "Izumi")
	out := b.Build(Request{UserID: "1", ChannelID: "c", Now: now, Lyric: &lyrics.Match{Song: "new soul", Artist: "yael naim", NextLine: "i came to this strange world"}})
	assert.Contains(t, out, `"i came to this strange world"`)
}

func TestLowPrioritySectionsRespectBudget(t *testing.T) {
	s := newStore(t)
	s.Update(func(tx *memory.Tx) {
		p, _ := tx.EnsureUser("1", "John", "john")
		p.LearningData.Vocabulary.WordFrequency["osu"] = 9
		tx.EnsureUser("2", "Rin", "rin")
		for i := 0; i < 20; i++ {
			tx.AppendRecent("c", memory.RecentMessage{UserID: "2", DisplayName: "Rin", Content: strings.Repeat("words ", 10), Timestamp: now.Unix() - int64(100-i)})
		}
	})
	b := New(s, nil, "99", "Izumi")
	b.budget = 600

	out := b.Build(Request{UserID: "1", ChannelID: "c", Text: "who is rin", Now: now})
	assert.LessOrEqual(t, len([]rune(out)), 600)
	assert.NotContains(t, out, PersonQueryMarker)
	assert.NotContains(t, out, "Words they use a lot")

	b.budget = BudgetChars
	out = b.Build(Request{UserID: "1", ChannelID: "c", Text: "who is rin", Now: now})
	assert.Contains(t, out, PersonQueryMarker)
	assert.Contains(t, out, "Words they use a lot: osu (9)")
}

func TestTrimToChars(t *testing.T) {
	assert.Equal(t, "short", TrimToChars("short", 10))
	assert.Equal(t, "hello big", TrimToChars("hello big world", 12))
	assert.Equal(t, 3, EstimateTokens("twelve chars"))
}
