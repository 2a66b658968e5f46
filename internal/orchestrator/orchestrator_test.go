package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"izumi/internal/ai"
	"izumi/internal/contextbuild"
	"izumi/internal/lyrics"
	"izumi/internal/memory"
	"izumi/internal/persona"
	"izumi/internal/quickreply"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)

type call struct {
	model, system, turn string
	history             []ai.Message
}

// fakeFactory answers per model; a missing model answers with reply.
type fakeFactory struct {
	mu    sync.Mutex
	reply string
	errs  map[string]error
	calls []call
}

func (f *fakeFactory) NewChat(_ context.Context, model, system string, history []ai.Message) (ai.Chat, error) {
	return &fakeChat{f: f, model: model, system: system, history: history}, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFactory) last() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakeChat struct {
	f             *fakeFactory
	model, system string
	history       []ai.Message
}

func (c *fakeChat) Send(_ context.Context, text string) (string, error) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	c.f.calls = append(c.f.calls, call{model: c.model, system: c.system, turn: text, history: c.history})
	if err := c.f.errs[c.model]; err != nil {
		return "", err
	}
	return c.f.reply, nil
}

func (c *fakeChat) History() []ai.Message { return c.history }

type event struct {
	kind, channel, replyTo, text string
}

type fakeSender struct {
	mu     sync.Mutex
	events []event
	failAt int // fail the nth post (1-based), 0 never
	posts  int
}

func (s *fakeSender) Typing(_ context.Context, ch string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event{kind: "typing", channel: ch})
	return nil
}

func (s *fakeSender) post(kind, ch, replyTo, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts++
	if s.failAt == s.posts {
		return "", assert.AnError
	}
	s.events = append(s.events, event{kind: kind, channel: ch, replyTo: replyTo, text: text})
	return "bot-" + kind + strings.Repeat("x", s.posts), nil
}

func (s *fakeSender) Reply(_ context.Context, ch, id, text string) (string, error) {
	return s.post("reply", ch, id, text)
}

func (s *fakeSender) Send(_ context.Context, ch, text string) (string, error) {
	return s.post("send", ch, "", text)
}

func (s *fakeSender) posted() []event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event
	for _, e := range s.events {
		if e.kind != "typing" {
			out = append(out, e)
		}
	}
	return out
}

func (s *fakeSender) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.kind
	}
	return out
}

type fakeCommunity map[string]contextbuild.Standing

func (f fakeCommunity) Standing(_, userID string) (contextbuild.Standing, bool) {
	st, ok := f[userID]
	return st, ok
}

type fixture struct {
	store   *memory.Store
	factory *fakeFactory
	sender  *fakeSender
	orch    *Orchestrator
	rnd     float64
}

func newFixture(t *testing.T, community contextbuild.Community, lib *lyrics.Library) *fixture {
	t.Helper()
	f := &fixture{
		store:   memory.NewInMemory("", memory.WithClock(func() time.Time { return now })),
		factory: &fakeFactory{reply: "hmm okay"},
		sender:  &fakeSender{},
		rnd:     0.99,
	}
	tiers := []string{"tier-a", "tier-b", "tier-c"}
	f.orch = New(Options{
		Store:     f.store,
		Builder:   contextbuild.New(f.store, community, "99", "Izumi"),
		Sessions:  NewSessions(f.factory, tiers, func() time.Time { return now }),
		Sender:    f.sender,
		Lyrics:    lib,
		Nicknames: []string{"izumi"},
		BotID:     "99",
		BotName:   "Izumi",
		Rand:      func() float64 { return f.rnd },
		Clock:     func() time.Time { return now },
		Sleep:     func(context.Context, time.Duration) error { return nil },
	})
	return f
}

func mention(id, author, name, text string, at time.Time) Message {
	return Message{
		ID: id, GuildID: "g", ChannelID: "c", AuthorID: author, DisplayName: name, Username: strings.ToLower(name),
		Content: "<@99> " + text, Timestamp: at, MentionsBot: true,
	}
}

func TestGreetingShortcut(t *testing.T) {
	f := newFixture(t, nil, nil)

	d, err := f.orch.HandleMessage(context.Background(), mention("m1", "a", "Alice", "hi!", now))
	require.NoError(t, err)
	assert.Equal(t, ReasonMention, d.Reason)

	want, ok := quickreply.Match("hi!", persona.DailyMood(now, f.store.Self()), func() float64 { return f.rnd })
	require.True(t, ok)
	posts := f.sender.posted()
	require.Len(t, posts, 1)
	assert.Equal(t, event{kind: "reply", channel: "c", replyTo: "m1", text: want}, posts[0])

	assert.Zero(t, f.factory.count())
	assert.Zero(t, f.orch.sessions.Len())
	assert.Equal(t, StateCooldown, f.orch.ChannelState("c"))
}

func TestMultiPartReply(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.store.Update(func(tx *memory.Tx) {
		p, _ := tx.EnsureUser("a", "Alice", "alice")
		p.AddInterest("osu")
		tx.EnsureUser("b", "Bob", "bob")
		tx.AppendRecent("c", memory.RecentMessage{MessageID: "m0", UserID: "b", DisplayName: "Bob", Content: "anyone play taiko", Timestamp: now.Unix() - 10})
	})
	f.factory.reply = "Rhythm games are honestly so fun, I used to play a ton of osu and some taiko too. What rank are you grinding toward right now?"

	msg := mention("m1", "a", "Alice", "what do you think about rhythm games? i've been really into osu lately, been grinding ranked", now)
	_, err := f.orch.HandleMessage(context.Background(), msg)
	require.NoError(t, err)

	require.Equal(t, 1, f.factory.count())
	c := f.factory.last()
	assert.Equal(t, "tier-a", c.model)
	assert.Contains(t, c.system, "--- Recent chat ---\nBob: anyone play taiko")
	assert.Contains(t, c.system, "Interests: osu")
	assert.Contains(t, c.turn, "Bob: anyone play taiko")
	assert.Contains(t, c.turn, "[User: Alice] what do you think about rhythm games?")

	assert.Equal(t, []string{"typing", "reply", "typing", "send"}, f.sender.kinds())
	posts := f.sender.posted()
	assert.Equal(t, "m1", posts[0].replyTo)
	assert.Equal(t, "Rhythm games are honestly so fun, I used to play a ton of osu and some taiko too.", posts[0].text)
	assert.Equal(t, "What rank are you grinding toward right now?", posts[1].text)

	s, ok := f.orch.sessions.Get("c")
	require.True(t, ok)
	assert.Equal(t, 1, s.Exchanges)
	require.Len(t, s.History, 2)
	assert.Equal(t, ai.RoleModel, s.History[1].Role)
}

func TestLyricContinuation(t *testing.T) {
	lib := lyrics.NewLibrary([]lyrics.Song{{
		Artist: "yael naim",
		Title:  "new soul",
		Lyrics: []string{"i'm a new soul", "i came to this strange world", "hoping i could learn a bit 'bout how to give and take"},
	}})
	m, ok := lib.FindMatch("I'm a new soul")
	require.True(t, ok)
	assert.GreaterOrEqual(t, m.Confidence, 0.9)

	f := newFixture(t, nil, lib)
	f.rnd = 0.4
	d, err := f.orch.HandleMessage(context.Background(), Message{
		ID: "m1", GuildID: "g", ChannelID: "c", AuthorID: "b", DisplayName: "Bea", Content: "I'm a new soul", Timestamp: now,
	})
	require.NoError(t, err)
	assert.Equal(t, ReasonLyric, d.Reason)
	posts := f.sender.posted()
	require.Len(t, posts, 1)
	assert.Equal(t, "i came to this strange world", posts[0].text)
	assert.Zero(t, f.factory.count())

	f = newFixture(t, nil, lib)
	f.rnd = 0.6
	d, err = f.orch.HandleMessage(context.Background(), Message{
		ID: "m1", GuildID: "g", ChannelID: "c", AuthorID: "b", DisplayName: "Bea", Content: "I'm a new soul", Timestamp: now,
	})
	require.NoError(t, err)
	assert.False(t, d.Reply)
	assert.Empty(t, f.sender.posted())
}

func TestJoinActiveConversation(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.store.SetConversationChannel("c", memory.ConversationChannel{
		MinMessages: 5, TimeWindowSec: 300, MinUsers: 2, ParticipationChance: 1.0, CooldownSec: 0, GuildID: "g",
	})
	f.factory.reply = "Cara and Dan, you two are way too into this lol"

	lines := []struct{ id, user, name, text string }{
		{"1", "c1", "Cara", "did you see the new map pack"},
		{"2", "d1", "Dan", "yeah the third one is brutal"},
		{"3", "c1", "Cara", "i cleared it at 3am"},
		{"4", "d1", "Dan", "no way you did"},
		{"5", "c1", "Cara", "screenshot incoming"},
		{"6", "d1", "Dan", "fine i believe you"},
	}
	var reasons []Reason
	for i, l := range lines {
		d, err := f.orch.HandleMessage(context.Background(), Message{
			ID: l.id, GuildID: "g", ChannelID: "c", AuthorID: l.user, DisplayName: l.name, Content: l.text,
			Timestamp: now.Add(time.Duration(i-5) * 10 * time.Second),
		})
		require.NoError(t, err)
		reasons = append(reasons, d.Reason)
	}

	assert.Equal(t, []Reason{ReasonNone, ReasonNone, ReasonNone, ReasonNone, ReasonJoin, ReasonNone}, reasons)
	require.Equal(t, 1, f.factory.count())
	sys := f.factory.last().system
	assert.Contains(t, sys, "Cara: did you see the new map pack")
	assert.Contains(t, sys, "Dan: yeah the third one is brutal")
	assert.Contains(t, sys, "address them by name")

	posts := f.sender.posted()
	require.Len(t, posts, 1)
	assert.Contains(t, posts[0].text, "Cara and Dan")

	cc, ok := f.store.ConversationChannel("c")
	require.True(t, ok)
	assert.Equal(t, now.Unix(), cc.LastParticipation)
	assert.True(t, f.store.Pending())
}

func TestQuickReplyOnJoin(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.store.SetConversationChannel("c", memory.ConversationChannel{
		MinMessages: 5, TimeWindowSec: 300, MinUsers: 2, ParticipationChance: 1.0, CooldownSec: 0, GuildID: "g",
	})
	lines := []struct{ id, user, name, text string }{
		{"1", "c1", "Cara", "did you see the new map pack"},
		{"2", "d1", "Dan", "yeah the third one is brutal"},
		{"3", "c1", "Cara", "i cleared it at 3am"},
		{"4", "d1", "Dan", "no way you did"},
		{"5", "e1", "Eve", "hi"},
	}
	var last Decision
	for i, l := range lines {
		d, err := f.orch.HandleMessage(context.Background(), Message{
			ID: l.id, GuildID: "g", ChannelID: "c", AuthorID: l.user, DisplayName: l.name, Content: l.text,
			Timestamp: now.Add(time.Duration(i-4) * 10 * time.Second),
		})
		require.NoError(t, err)
		last = d
	}
	assert.Equal(t, ReasonJoin, last.Reason)

	want, ok := quickreply.Match("hi", persona.DailyMood(now, f.store.Self()), func() float64 { return f.rnd })
	require.True(t, ok)
	assert.Zero(t, f.factory.count(), "no model call for small talk")
	posts := f.sender.posted()
	require.Len(t, posts, 1)
	assert.Equal(t, want, posts[0].text)
}

func TestPersonQueryNotEchoed(t *testing.T) {
	f := newFixture(t, fakeCommunity{"john": {Level: 15, XP: 1500}}, nil)
	f.store.Update(func(tx *memory.Tx) { tx.EnsureUser("john", "John", "john") })
	f.factory.reply = "PERSON QUERY RESULT: name=John level=15 xp=1500 coins=0 cards=0 messages=0\nJohn? yeah he's level 15 with like 1500 xp, he's around a lot"

	_, err := f.orch.HandleMessage(context.Background(), mention("m1", "a", "Alice", "who is john?", now))
	require.NoError(t, err)

	assert.Contains(t, f.factory.last().system, "PERSON QUERY RESULT: name=John level=15 xp=1500")
	posts := f.sender.posted()
	require.NotEmpty(t, posts)
	var all []string
	for _, p := range posts {
		all = append(all, p.text)
	}
	joined := strings.Join(all, "\n")
	assert.NotContains(t, joined, "PERSON QUERY RESULT")
	assert.Contains(t, joined, "level 15")
	assert.Contains(t, joined, "1500 xp")
}

func TestUserCooldown(t *testing.T) {
	f := newFixture(t, nil, nil)
	_, err := f.orch.HandleMessage(context.Background(), mention("m1", "a", "Alice", "tell me a story", now))
	require.NoError(t, err)

	d, err := f.orch.HandleMessage(context.Background(), mention("m2", "a", "Alice", "another one", now.Add(time.Second)))
	require.NoError(t, err)
	assert.Equal(t, ReasonCooldown, d.Reason)
	assert.Equal(t, 1, f.factory.count())
}

func TestCooldownHeldDuringFollowUpWait(t *testing.T) {
	f := newFixture(t, nil, nil)
	waiting := make(chan struct{})
	release := make(chan struct{})
	f.orch.sleep = func(_ context.Context, d time.Duration) error {
		if d == FollowUpWait {
			close(waiting)
			<-release
		}
		return nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.orch.HandleMessage(context.Background(), mention("m1", "a", "Alice", "tell me a story", now))
		done <- err
	}()
	<-waiting

	d, err := f.orch.HandleMessage(context.Background(), mention("m2", "a", "Alice", "about dragons", now.Add(2*time.Second)))
	require.NoError(t, err)
	assert.Equal(t, ReasonCooldown, d.Reason)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, f.factory.count())
	assert.Len(t, f.sender.posted(), 1)
	assert.Contains(t, f.factory.last().turn, "Alice: about dragons", "second mention is folded into the first reply")
}

func TestDroppedReplyReleasesCooldown(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.orch.sleep = func(context.Context, time.Duration) error { return context.Canceled }

	_, err := f.orch.HandleMessage(context.Background(), mention("m1", "a", "Alice", "tell me a story", now))
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, f.sender.posted())

	f.orch.sleep = func(context.Context, time.Duration) error { return nil }
	d, err := f.orch.HandleMessage(context.Background(), mention("m2", "a", "Alice", "please?", now.Add(time.Second)))
	require.NoError(t, err)
	assert.Equal(t, ReasonMention, d.Reason)
	assert.Len(t, f.sender.posted(), 1)
}

func TestHandleEditSkipsLearning(t *testing.T) {
	f := newFixture(t, nil, nil)
	msg := mention("m1", "a", "Alice", "do you like strawberries", now)
	_, err := f.orch.HandleMessage(context.Background(), msg)
	require.NoError(t, err)

	p, ok := f.store.User("a")
	require.True(t, ok)
	count := p.MessageCount()
	words := p.LearningData.Vocabulary.WordFrequency["strawberries"]
	recent := len(f.store.Recent("c"))

	msg.Content = "<@99> do you like strawberries or blueberries"
	_, err = f.orch.HandleEdit(context.Background(), msg)
	require.NoError(t, err)

	p, _ = f.store.User("a")
	assert.Equal(t, count, p.MessageCount())
	assert.Equal(t, words, p.LearningData.Vocabulary.WordFrequency["strawberries"])
	assert.Zero(t, p.LearningData.Vocabulary.WordFrequency["blueberries"])
	assert.Equal(t, recent, len(f.store.Recent("c")))
}

func TestSendFailureSkipsRemainingParts(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.store.SetConversationChannel("c", memory.DefaultConversationChannel("g"))
	f.factory.reply = "first line\nsecond line\nthird line"
	f.sender.failAt = 2

	_, err := f.orch.HandleMessage(context.Background(), mention("m1", "a", "Alice", "talk to me", now))
	require.Error(t, err)
	assert.Len(t, f.sender.posted(), 1)

	cc, _ := f.store.ConversationChannel("c")
	assert.Equal(t, now.Unix(), cc.LastParticipation)
	assert.Equal(t, StateCooldown, f.orch.ChannelState("c"))
}

func TestFallbackLadder(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.factory.errs = map[string]error{"tier-a": ai.ErrRateLimited}
	f.factory.reply = "still here"

	_, err := f.orch.HandleMessage(context.Background(), mention("m1", "a", "Alice", "you there", now))
	require.NoError(t, err)
	assert.Equal(t, "tier-b", f.factory.last().model)
	assert.Equal(t, []int{1, 0, 0}, f.orch.sessions.Failures())
	s, _ := f.orch.sessions.Get("c")
	assert.Equal(t, 1, s.Tier)
}

func TestFilteredAndExhausted(t *testing.T) {
	ss := NewSessions(&fakeFactory{errs: map[string]error{"a": ai.ErrFiltered}}, []string{"a", "b"}, func() time.Time { return now })
	reply, err := ss.Ask(context.Background(), "c", "sys", "turn", nil)
	assert.ErrorIs(t, err, ai.ErrFiltered)
	assert.Equal(t, FilteredReply, reply)

	var advanced []int
	ss = NewSessions(&fakeFactory{errs: map[string]error{"a": ai.ErrTransient, "b": ai.ErrRateLimited}}, []string{"a", "b"}, func() time.Time { return now })
	reply, err = ss.Ask(context.Background(), "c", "sys", "turn", func(tier int) { advanced = append(advanced, tier) })
	assert.Error(t, err)
	assert.Equal(t, ApologyReply, reply)
	assert.Equal(t, []int{1}, advanced)
	assert.Equal(t, []int{1, 1}, ss.Failures())

	ss = NewSessions(&fakeFactory{reply: "   "}, []string{"a"}, func() time.Time { return now })
	_, err = ss.Ask(context.Background(), "c", "sys", "turn", nil)
	assert.ErrorIs(t, err, ai.ErrEmpty)
}

func TestSessionReset(t *testing.T) {
	clock := now
	ss := NewSessions(&fakeFactory{reply: "ok"}, []string{"a"}, func() time.Time { return clock })
	_, err := ss.Ask(context.Background(), "c", "", "hello", nil)
	require.NoError(t, err)

	ss.mu.Lock()
	ss.byID["c"].Exchanges = MaxExchanges + 1
	ss.mu.Unlock()
	clock = now.Add(time.Minute)
	_, err = ss.Ask(context.Background(), "c", "", "hello again", nil)
	require.NoError(t, err)

	s, _ := ss.Get("c")
	assert.Equal(t, 1, s.Exchanges)
	assert.Equal(t, clock, s.CreatedAt)

	clock = clock.Add(MaxSessionAge + time.Second)
	assert.Equal(t, 1, ss.Reap())
	assert.Zero(t, ss.Len())
}

func TestUnprompted(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.store.SetConversationChannel("c", memory.DefaultConversationChannel("g"))
	require.NoError(t, f.store.EditSelf(func(sp *memory.SelfProfile) error {
		_, err := sp.Add("hobbies", "drawing")
		return err
	}))
	f.factory.reply = "ok random question, does anyone here draw?"

	sent, err := f.orch.Unprompted(context.Background(), "g")
	require.NoError(t, err)
	require.True(t, sent)
	posts := f.sender.posted()
	require.Len(t, posts, 1)
	assert.Equal(t, "send", posts[0].kind)
	assert.Contains(t, f.factory.last().system, `"drawing"`)

	sent, err = f.orch.Unprompted(context.Background(), "g")
	require.NoError(t, err)
	assert.False(t, sent, "channel cooldown applies")
}
