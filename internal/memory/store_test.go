package memory

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func TestSaveLoadFixedPoint(t *testing.T) {
	dir := t.TempDir()
	now := t0
	s, err := Open(dir, WithClock(fixedClock(&now)))
	require.NoError(t, err)

	s.Update(func(tx *Tx) {
		p, created := tx.EnsureUser("1", "John", "john_doe")
		require.True(t, created)
		p.AddInterest("osu")
		p.SetRelationship("2", "best friend")
		p.AddSharedExperience("2", "played osu multi")
		p.BasicInfo.Birthday = &Birthday{Month: 4, Day: 1}
		p.LearningData.Vocabulary.WordFrequency["osu"] = 3
		p.LearningData.ActivityPatterns.HourHist[12] = 2
		tx.Culture("g1").CommonPhrases["gg"] = 4
	})
	s.SetConversationChannel("c1", DefaultConversationChannel("g1"))
	require.NoError(t, s.Save())
	before, err := s.Export()
	require.NoError(t, err)

	now = now.Add(time.Hour)
	again, err := Open(dir, WithClock(fixedClock(&now)))
	require.NoError(t, err)

	var a, b *Document
	s.View(func(tx *Tx) { a = tx.s.doc })
	again.View(func(tx *Tx) { b = tx.s.doc })
	if diff := cmp.Diff(a, b, cmpopts.IgnoreFields(SystemInfo{}, "LastUpdated")); diff != "" {
		t.Fatalf("save/load changed the document (-want +got):\n%s", diff)
	}

	require.NoError(t, again.Save())
	after, err := again.Export()
	require.NoError(t, err)
	assert.NotEmpty(t, before)
	assert.NotEmpty(t, after)
}

func TestFlushDebounce(t *testing.T) {
	dir := t.TempDir()
	now := t0
	s, err := Open(dir, WithClock(fixedClock(&now)))
	require.NoError(t, err)
	require.NoError(t, s.Save())
	assert.False(t, s.Pending())

	s.EnsureUser("1", "A", "a", nil)
	assert.True(t, s.Pending())

	done, err := s.FlushIfDue()
	require.NoError(t, err)
	assert.False(t, done, "flush within 10s of the previous one")

	now = now.Add(11 * time.Second)
	done, err = s.FlushIfDue()
	require.NoError(t, err)
	assert.True(t, done)
	assert.False(t, s.Pending())

	done, err = s.FlushIfDue()
	require.NoError(t, err)
	assert.False(t, done, "nothing pending")
}

func TestFlushFailureKeepsPending(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	s := NewInMemory(filepath.Join(blocker, UnifiedFile))
	s.EnsureUser("1", "A", "a", nil)
	require.Error(t, s.Save())
	assert.True(t, s.Pending())
}

func TestTrustDecay(t *testing.T) {
	now := t0
	s := NewInMemory("", WithClock(fixedClock(&now)))
	s.EnsureUser("e", "E", "e", func(p *UserProfile) {
		p.Social.TrustLevel = 7.0
		p.Activity.LastInteraction = now.AddDate(0, 0, -45).Unix()
	})
	s.EnsureUser("gone", "G", "g", func(p *UserProfile) {
		p.Social.TrustLevel = 7.0
		p.Activity.LastInteraction = now.AddDate(0, 0, -70).Unix()
	})
	s.EnsureUser("fresh", "F", "f", func(p *UserProfile) {
		p.Social.TrustLevel = 7.0
		p.Activity.LastInteraction = now.AddDate(0, 0, -2).Unix()
	})
	require.NoError(t, s.Save())

	changed := s.DecayTrust(now)
	assert.Equal(t, 2, changed)
	e, _ := s.User("e")
	assert.InDelta(t, 6.5, e.Social.TrustLevel, 1e-9)
	g, _ := s.User("gone")
	assert.InDelta(t, 6.0, g.Social.TrustLevel, 1e-9)
	f, _ := s.User("fresh")
	assert.InDelta(t, 7.0, f.Social.TrustLevel, 1e-9)
	assert.True(t, s.Pending())
}

func TestDecayAmount(t *testing.T) {
	assert.Equal(t, 0.0, DecayAmount(10))
	assert.Equal(t, 0.2, DecayAmount(20))
	assert.Equal(t, 0.5, DecayAmount(45))
	assert.Equal(t, 1.0, DecayAmount(61))
	assert.Equal(t, 1.0, DecayAmount(400))
}

func TestSetTrustThreshold(t *testing.T) {
	p := NewUserProfile("a", "a")
	assert.False(t, p.SetTrust(5.04))
	assert.Equal(t, TrustDefault, p.Social.TrustLevel)
	assert.True(t, p.SetTrust(5.1))
	assert.True(t, p.SetTrust(42))
	assert.Equal(t, 10.0, p.Social.TrustLevel)
	assert.True(t, p.SetTrust(-3))
	assert.Equal(t, 0.0, p.Social.TrustLevel)
}

func TestRecentRingBoundedAndOrdered(t *testing.T) {
	s := NewInMemory("")
	s.Update(func(tx *Tx) {
		for i := 0; i < 70; i++ {
			ts := int64(1000 + i)
			if i%7 == 0 {
				ts -= 5
			}
			tx.AppendRecent("c", RecentMessage{UserID: "u", Content: "hi", Timestamp: ts})
		}
		tx.AppendRecent("c", RecentMessage{MessageID: "m1", Timestamp: 2000})
		tx.AppendRecent("c", RecentMessage{MessageID: "m1", Timestamp: 2000})
	})
	ring := s.Recent("c")
	require.Len(t, ring, CapRecentMessages)
	for i := 1; i < len(ring); i++ {
		assert.LessOrEqual(t, ring[i-1].Timestamp, ring[i].Timestamp)
	}
	assert.Equal(t, "m1", ring[len(ring)-1].MessageID)
	assert.NotEqual(t, "m1", ring[len(ring)-2].MessageID)
}

func TestRecentContentTrimmed(t *testing.T) {
	s := NewInMemory("")
	long := make([]rune, 400)
	for i := range long {
		long[i] = 'é'
	}
	s.Update(func(tx *Tx) { tx.AppendRecent("c", RecentMessage{Content: string(long)}) })
	assert.Len(t, []rune(s.Recent("c")[0].Content), CapRecentContent)
}

func TestRelationshipStrengthInvariant(t *testing.T) {
	p := NewUserProfile("a", "a")
	p.SetRelationship("b", "Best Friend")
	p.SetRelationship("c", "nemesis-ish")
	for other := range p.Social.Relationships {
		_, ok := p.LearningData.RelationshipNetworks.RelationshipStrength[other]
		assert.True(t, ok, other)
	}
	assert.Equal(t, 9, p.LearningData.RelationshipNetworks.RelationshipStrength["b"])
	assert.Equal(t, DefaultStrength, p.LearningData.RelationshipNetworks.RelationshipStrength["c"])
}

func TestFindByName(t *testing.T) {
	s := NewInMemory("")
	s.EnsureUser("1", "Johnny", "jdoe", nil)
	s.EnsureUser("2", "Mary", "maryjane", func(p *UserProfile) { p.BasicInfo.RealName = "Mary Johnson" })
	s.EnsureUser("3", "Bob", "bob", func(p *UserProfile) { p.BasicInfo.Nickname = "bobby" })

	assert.Len(t, s.FindByName("JOHN"), 2)
	got := s.FindByName("bobby")
	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0].UserID)
	assert.Empty(t, s.FindByName(" "))
}

func TestDefensiveCopies(t *testing.T) {
	s := NewInMemory("")
	s.EnsureUser("1", "A", "a", func(p *UserProfile) { p.AddInterest("osu") })
	p, ok := s.User("1")
	require.True(t, ok)
	p.Personality.Interests = append(p.Personality.Interests, "leak")
	p.LearningData.Vocabulary.WordFrequency["x"] = 1

	again, _ := s.User("1")
	assert.Equal(t, []string{"osu"}, again.Personality.Interests)
	assert.Empty(t, again.LearningData.Vocabulary.WordFrequency)

	self := s.Self()
	self.Likes = append(self.Likes, "leak")
	assert.NotContains(t, s.Self().Likes, "leak")
}

func TestSelfProfileEdits(t *testing.T) {
	sp := NewSelfProfile()
	added, err := sp.Add("likes", "cats")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = sp.Add("likes", "Cats")
	require.NoError(t, err)
	assert.False(t, added)
	require.NoError(t, sp.Replace("knowledge", []string{"a", "a", "b"}))
	got, _ := sp.Get("knowledge")
	assert.Equal(t, []string{"a", "b"}, got)
	_, err = sp.Add("nope", "x")
	assert.Error(t, err)
}

func TestCleanup(t *testing.T) {
	now := t0
	s := NewInMemory("", WithClock(fixedClock(&now)))
	s.Update(func(tx *Tx) {
		tx.Users()["ghost"] = NewUserProfile("", "")
		p, _ := tx.EnsureUser("1", "A", "a")
		for i := 0; i < 150; i++ {
			p.LearningData.Vocabulary.MessageLengths = append(p.LearningData.Vocabulary.MessageLengths, i)
		}
		c := tx.Culture("g")
		c.TrendingTopics[now.AddDate(0, 0, -10).Format(time.DateOnly)] = map[string]int{"old": 1}
		c.TrendingTopics[now.Format(time.DateOnly)] = map[string]int{"new": 1}
	})
	r := s.Cleanup(now)
	assert.Equal(t, 1, r.RemovedUsers)
	assert.Equal(t, 1, r.TrimmedLists)
	assert.Equal(t, 1, r.ExpiredTrends)
	p, _ := s.User("1")
	assert.Len(t, p.LearningData.Vocabulary.MessageLengths, CapMessageLengths)
	assert.Equal(t, 50, p.LearningData.Vocabulary.MessageLengths[0])
}

func TestProposeOpener(t *testing.T) {
	now := t0
	s := NewInMemory("")
	rnd := func() float64 { return 0 }

	_, ok := s.ProposeOpener("g", now, rnd)
	assert.False(t, ok, "no eligible channel")

	s.SetConversationChannel("c1", DefaultConversationChannel("g"))
	s.Update(func(tx *Tx) { tx.Self().Hobbies = []string{"osu"} })
	op, ok := s.ProposeOpener("g", now, rnd)
	require.True(t, ok)
	assert.Equal(t, Opener{ChannelID: "c1", Topic: "osu", Source: "self"}, op)

	s.Update(func(tx *Tx) {
		tx.Culture("g").TrendingTopics[now.Format(time.DateOnly)] = map[string]int{"tournament": 5}
	})
	op, ok = s.ProposeOpener("g", now, rnd)
	require.True(t, ok)
	assert.Equal(t, "trending", op.Source)
	assert.Equal(t, "tournament", op.Topic)
}
