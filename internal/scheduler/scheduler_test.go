package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"izumi/internal/memory"
	"izumi/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type sent struct{ channel, text string }

type fakePoster struct {
	mu   sync.Mutex
	sent []sent
}

func (p *fakePoster) Send(_ context.Context, channelID, text string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, sent{channelID, text})
	return "m", nil
}

func (p *fakePoster) all() []sent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sent(nil), p.sent...)
}

type fakeChat struct {
	tried  []string
	sendOn string
	reaped int
}

func (c *fakeChat) Unprompted(_ context.Context, guildID string) (bool, error) {
	c.tried = append(c.tried, guildID)
	return guildID == c.sendOn, nil
}

func (c *fakeChat) ReapSessions() int {
	c.reaped++
	return 0
}

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestCelebrating(t *testing.T) {
	b := memory.Birthday{Month: 6, Day: 2}
	assert.True(t, Celebrating(b, at("2025-06-02T00:00:00Z")))
	assert.True(t, Celebrating(b, at("2025-06-02T23:59:59Z")))
	assert.False(t, Celebrating(b, at("2025-06-03T00:00:00Z")))
	assert.False(t, Celebrating(b, at("2025-06-01T23:59:59Z")))

	leap := memory.Birthday{Month: 2, Day: 29}
	assert.True(t, Celebrating(leap, at("2025-03-01T12:00:00Z")), "rolls to Mar 1 in common years")
	assert.True(t, Celebrating(leap, at("2028-02-29T12:00:00Z")))

	assert.False(t, Celebrating(memory.Birthday{Month: 13, Day: 1}, at("2025-06-02T12:00:00Z")))
}

func TestAge(t *testing.T) {
	now := at("2025-06-02T12:00:00Z")
	assert.Equal(t, 25, Age(memory.Birthday{Month: 6, Day: 2, Year: 2000}, now))
	assert.Equal(t, 0, Age(memory.Birthday{Month: 6, Day: 2}, now))
}

func birthdayFixture(t *testing.T, now time.Time) (*Scheduler, *fakePoster, *storage.Storage) {
	t.Helper()
	st, err := storage.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.SetBirthdayChannel("g", "bday"))
	require.NoError(t, st.SetBirthday("g", "u1", memory.Birthday{Month: 6, Day: 2, Year: 2000}))
	require.NoError(t, st.SetBirthday("g", "u2", memory.Birthday{Month: 9, Day: 9}))

	p := &fakePoster{}
	s := New(Deps{
		Memory:  memory.NewInMemory(""),
		Storage: st,
		Poster:  p,
		Clock:   func() time.Time { return now },
		Rand:    func() float64 { return 0.5 },
	})
	return s, p, st
}

func TestBirthdaysAnnounceOnce(t *testing.T) {
	s, p, _ := birthdayFixture(t, at("2025-06-02T10:00:00Z"))
	ctx := context.Background()

	require.NoError(t, s.RunNow(ctx, LoopBirthdays))
	got := p.all()
	require.Len(t, got, 2, "announcement then ping")
	assert.Equal(t, "bday", got[0].channel)
	assert.Contains(t, got[0].text, "<@u1>")
	assert.Contains(t, got[0].text, "25")
	assert.Contains(t, got[1].text, "<@u1>")

	require.NoError(t, s.RunNow(ctx, LoopBirthdays))
	require.NoError(t, s.RunNow(ctx, LoopBirthdayPing))
	assert.Len(t, p.all(), 2, "announced once per day and ping is on cooldown")
}

func TestPingWindow(t *testing.T) {
	s, p, _ := birthdayFixture(t, at("2025-06-02T20:00:00Z"))
	require.NoError(t, s.RunNow(context.Background(), LoopBirthdayPing))
	assert.Empty(t, p.all())
}

func TestSaveFlushesDueMemory(t *testing.T) {
	path := filepath.Join(t.TempDir(), memory.UnifiedFile)
	now := at("2025-06-02T10:00:00Z")
	clock := func() time.Time { return now }
	mem := memory.NewInMemory(path, memory.WithClock(clock))
	s := New(Deps{Memory: mem, Clock: clock})

	mem.Update(func(tx *memory.Tx) { tx.EnsureUser("u1", "Alice", "alice") })
	require.True(t, mem.Pending())

	require.NoError(t, s.RunNow(context.Background(), LoopSave))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "debounced")

	now = now.Add(memory.FlushInterval)
	require.NoError(t, s.RunNow(context.Background(), LoopSave))
	_, err = os.Stat(path)
	assert.NoError(t, err)
	assert.False(t, mem.Pending())
}

func TestUnpromptedStopsAfterFirstSend(t *testing.T) {
	chat := &fakeChat{sendOn: "b"}
	s := New(Deps{
		Chat:   chat,
		Guilds: func() []string { return []string{"c", "a", "b"} },
		Rand:   func() float64 { return 0 },
	})
	require.NoError(t, s.RunNow(context.Background(), LoopUnprompted))
	// a,b,c shuffled with j=0 every step gives b,c,a
	assert.Equal(t, []string{"b"}, chat.tried)

	chat.tried, chat.sendOn = nil, ""
	require.NoError(t, s.RunNow(context.Background(), LoopUnprompted))
	assert.Equal(t, []string{"b", "c", "a"}, chat.tried)
}

func TestRunNowUnknown(t *testing.T) {
	s := New(Deps{})
	assert.Error(t, s.RunNow(context.Background(), "nope"))
	assert.Equal(t, []string{LoopBirthdayPing, LoopBirthdays, LoopSave, LoopReaper, LoopDecay, LoopUnprompted}, s.Loops())
}

func TestTickWaitsForBarrierAndDelay(t *testing.T) {
	now := at("2025-06-02T10:00:00Z")
	chat := &fakeChat{}
	s := New(Deps{Chat: chat, Clock: func() time.Time { return now }})
	s.started = now
	ctx := context.Background()
	reaper := s.loops[LoopReaper]

	s.tick(ctx, reaper)
	assert.Zero(t, chat.reaped, "barrier closed")

	s.MarkReady()
	s.tick(ctx, reaper)
	assert.Zero(t, chat.reaped, "startup delay")

	now = now.Add(reaper.Delay)
	s.tick(ctx, reaper)
	assert.Equal(t, 1, chat.reaped)
}

func TestWaitReady(t *testing.T) {
	s := New(Deps{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.WaitReady(ctx), context.Canceled)
	s.MarkReady()
	s.MarkReady()
	assert.NoError(t, s.WaitReady(context.Background()))
}

func TestStartStopNoLeak(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"))

	s := New(Deps{Chat: &fakeChat{}})
	require.NoError(t, s.Start(context.Background()))
	s.MarkReady()
	s.Stop()
}
