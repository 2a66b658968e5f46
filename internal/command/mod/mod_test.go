package mod

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"izumi/internal/command"
	"izumi/internal/command/commandtest"
	"izumi/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type fakePlatform struct {
	mu       sync.Mutex
	timeouts map[string]*time.Time
	kicked   []string
	banned   []string
	msgs     []*discordgo.Message // newest first
	deleted  []string
	bulk     [][]string
	sent     []string
	dms      []string
	fail     error
}

func newFake() *fakePlatform { return &fakePlatform{timeouts: map[string]*time.Time{}} }

func (f *fakePlatform) GuildMemberTimeout(_, userID string, until *time.Time, _ ...discordgo.RequestOption) error {
	if f.fail != nil {
		return f.fail
	}
	f.timeouts[userID] = until
	return nil
}

func (f *fakePlatform) GuildMemberDeleteWithReason(_, userID, _ string, _ ...discordgo.RequestOption) error {
	f.kicked = append(f.kicked, userID)
	return nil
}

func (f *fakePlatform) GuildBanCreateWithReason(_, userID, _ string, _ int, _ ...discordgo.RequestOption) error {
	f.banned = append(f.banned, userID)
	return nil
}

func (f *fakePlatform) ChannelMessages(_ string, limit int, before, _, _ string, _ ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	start := 0
	if before != "" {
		for i, m := range f.msgs {
			if m.ID == before {
				start = i + 1
			}
		}
	}
	end := min(start+limit, len(f.msgs))
	return f.msgs[start:end], nil
}

func (f *fakePlatform) ChannelMessageDelete(_, id string, _ ...discordgo.RequestOption) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakePlatform) ChannelMessagesBulkDelete(_ string, ids []string, _ ...discordgo.RequestOption) error {
	f.bulk = append(f.bulk, ids)
	return nil
}

func (f *fakePlatform) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if channelID == "dm" {
		f.dms = append(f.dms, content)
	} else {
		f.sent = append(f.sent, content)
	}
	return &discordgo.Message{ID: "x"}, nil
}

func (f *fakePlatform) UserChannelCreate(string, ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: "dm"}, nil
}

func withPlatform(t *testing.T, p Platform) {
	old := platformFor
	platformFor = func(*command.Request) Platform { return p }
	t.Cleanup(func() { platformFor = old })
}

func services(t *testing.T) *command.Services {
	st, err := storage.New(t.TempDir())
	require.NoError(t, err)
	return &command.Services{Storage: st}
}

func run(t *testing.T, c command.DiscordCommand, svc *command.Services, line string) *commandtest.Recorder {
	t.Helper()
	req, rec := commandtest.Prefix(c, svc, line)
	require.NoError(t, c.Run(req))
	return rec
}

func TestParseDuration(t *testing.T) {
	for _, tc := range []struct {
		in    string
		want  time.Duration
		human string
	}{
		{"30s", 30 * time.Second, "30s"},
		{"10m", 10 * time.Minute, "10m"},
		{"2H", 2 * time.Hour, "2h"},
		{"7d", 7 * 24 * time.Hour, "7d"},
		{"90m", 90 * time.Minute, "90m"},
	} {
		got, err := ParseDuration(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
		assert.Equal(t, tc.human, Human(got))
	}
	for _, bad := range []string{"", "m", "10", "10w", "-5m", "29d", "abc"} {
		_, err := ParseDuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestWarnAndWarnings(t *testing.T) {
	svc := services(t)
	fp := newFake()
	withPlatform(t, fp)

	rec := run(t, &WarnCommand{}, svc, "warn <@42> posting spoilers")
	assert.Contains(t, rec.All(), "warning #1")
	assert.Contains(t, rec.All(), "posting spoilers")
	run(t, &WarnCommand{}, svc, "warn <@42>")
	assert.Len(t, fp.dms, 2)

	rec = run(t, &WarningsCommand{}, svc, "warnings <@42>")
	require.Len(t, rec.Embeds, 1)
	assert.Contains(t, rec.Embeds[0].Title, "(2)")
	assert.Contains(t, rec.All(), "No reason given")

	rec = run(t, &WarningsCommand{}, svc, "clearwarnings <@42>")
	assert.Contains(t, rec.All(), "Cleared 2")
	rec = run(t, &WarningsCommand{}, svc, "warnings <@42>")
	assert.Contains(t, rec.All(), "clean record")
}

func TestTargetGuards(t *testing.T) {
	svc := services(t)
	fp := newFake()
	withPlatform(t, fp)
	rec := run(t, &WarnCommand{}, svc, "warn")
	assert.Contains(t, rec.All(), "mention a member")

	req, rec := commandtest.Prefix(&KickCommand{}, svc, "kick <@42>")
	req.UserID = "42"
	require.NoError(t, (&KickCommand{}).Run(req))
	assert.Contains(t, rec.All(), "yourself")
	assert.Empty(t, fp.kicked)
}

func TestMute(t *testing.T) {
	svc := services(t)
	fp := newFake()
	withPlatform(t, fp)

	rec := run(t, &MuteCommand{}, svc, "mute <@42> 2h flooding")
	assert.Contains(t, rec.All(), "muted for 2h (flooding)")
	require.NotNil(t, fp.timeouts["42"])
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), *fp.timeouts["42"], time.Minute)

	rec = run(t, &MuteCommand{}, svc, "mute <@43> being rude")
	assert.Contains(t, rec.All(), "muted for 10m (being rude)")

	rec = run(t, &UnmuteCommand{}, svc, "unmute <@42>")
	assert.Contains(t, rec.All(), "can talk again")
	assert.Nil(t, fp.timeouts["42"])

	fp.fail = errors.New("missing access")
	rec = run(t, &MuteCommand{}, svc, "mute <@44> 5m")
	assert.Contains(t, rec.All(), "missing access")
}

func TestKickAndBan(t *testing.T) {
	svc := services(t)
	fp := newFake()
	withPlatform(t, fp)
	run(t, &KickCommand{}, svc, "kick <@42> bye")
	run(t, &BanCommand{}, svc, "ban <@43>")
	assert.Equal(t, []string{"42"}, fp.kicked)
	assert.Equal(t, []string{"43"}, fp.banned)
}

func history(n int, now time.Time, author func(i int) string) []*discordgo.Message {
	var out []*discordgo.Message
	for i := 0; i < n; i++ {
		out = append(out, &discordgo.Message{
			ID:        strconv.Itoa(1000 - i),
			Author:    &discordgo.User{ID: author(i)},
			Timestamp: now.Add(-time.Duration(i) * time.Hour),
		})
	}
	return out
}

func TestPurge(t *testing.T) {
	now := time.Now()
	fp := newFake()
	fp.msgs = history(30, now, func(int) string { return "7" })

	n, err := Purge(fp, "c1", 5, "", "1000", now)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.Len(t, fp.bulk, 1)
	assert.Equal(t, []string{"999", "998", "997", "996", "995", "1000"}, fp.bulk[0])
}

func TestPurgeByUserPages(t *testing.T) {
	now := time.Now()
	fp := newFake()
	fp.msgs = history(250, now, func(i int) string {
		if i%50 == 0 {
			return "42"
		}
		return "7"
	})

	n, err := Purge(fp, "c1", 10, "42", "", now)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []string{"1000", "950", "900", "850", "800"}, fp.bulk[0])
}

func TestPurgeStopsAtBulkWindow(t *testing.T) {
	now := time.Now()
	fp := newFake()
	fp.msgs = history(3, now, func(int) string { return "7" })
	fp.msgs[1].Timestamp = now.Add(-15 * 24 * time.Hour)

	n, err := Purge(fp, "c1", 10, "", "", now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"1000"}, fp.deleted)
	assert.Empty(t, fp.bulk)
}

func TestPurgeCommandBounds(t *testing.T) {
	svc := services(t)
	withPlatform(t, newFake())
	rec := run(t, &PurgeCommand{}, svc, "purge 500")
	assert.Contains(t, rec.All(), "between 1 and 100")
}

func TestSpamIsCapped(t *testing.T) {
	defer func(l rate.Limit) { spamEvery = l }(spamEvery)
	spamEvery = rate.Inf

	svc := services(t)
	fp := newFake()
	withPlatform(t, fp)
	rec := run(t, &SpamCommand{}, svc, `spam 50 "good morning"`)
	assert.Contains(t, rec.All(), fmt.Sprintf("Sending %d", MaxSpam))
	assert.Len(t, fp.sent, MaxSpam)
	assert.Equal(t, "good morning", fp.sent[0])

	rec = run(t, &SpamCommand{}, svc, "spam hello")
	assert.Contains(t, rec.All(), "Usage")
}
