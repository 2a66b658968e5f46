package discord

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"izumi/internal/command"
	"izumi/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type probe struct{}

func (probe) Name() string             { return "probe" }
func (probe) Description() string      { return "probe command" }
func (probe) Group() string            { return "probes" }
func (probe) Category() string         { return "🛠️ Utility" }
func (probe) UserPermissions() []int64 { return nil }
func (probe) Run(any) error            { return nil }
func (probe) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "probe",
		Description: "probe command",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "b", Description: "second"},
			{Type: discordgo.ApplicationCommandOptionString, Name: "a", Description: "first"},
		},
	}
}

func init() {
	command.RegisterCommand(&probe{})
}

type fakeCommands struct {
	mu      sync.Mutex
	remote  map[string]*discordgo.ApplicationCommand
	created []string
	deleted []string
}

func newFakeCommands(names ...string) *fakeCommands {
	f := &fakeCommands{remote: map[string]*discordgo.ApplicationCommand{}}
	for _, n := range names {
		f.remote[n] = &discordgo.ApplicationCommand{ID: "id-" + n, Name: n}
	}
	return f
}

func (f *fakeCommands) ApplicationCommands(_, _ string, _ ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*discordgo.ApplicationCommand, 0, len(f.remote))
	for _, c := range f.remote {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCommands) ApplicationCommandCreate(_, _ string, c *discordgo.ApplicationCommand, _ ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, c.Name)
	f.remote[c.Name] = &discordgo.ApplicationCommand{ID: "id-" + c.Name, Name: c.Name}
	return c, nil
}

func (f *fakeCommands) ApplicationCommandDelete(_, _, id string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for n, c := range f.remote {
		if c.ID == id {
			f.deleted = append(f.deleted, n)
			delete(f.remote, n)
		}
	}
	return nil
}

func (f *fakeCommands) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created, f.deleted = nil, nil
}

func newSyncer(t *testing.T, api commandAPI, disabled func(string, string) bool) *syncer {
	t.Helper()
	if disabled == nil {
		disabled = func(string, string) bool { return false }
	}
	return &syncer{api: api, appID: "app", hashes: hashStore{dir: t.TempDir()}, disabled: disabled}
}

func TestHashCommandIgnoresOptionOrder(t *testing.T) {
	a := probe{}.SlashDefinition()
	b := probe{}.SlashDefinition()
	b.Options[0], b.Options[1] = b.Options[1], b.Options[0]
	assert.Equal(t, hashCommand(a), hashCommand(b))

	b.Options[0].Description = "changed"
	assert.NotEqual(t, hashCommand(a), hashCommand(b))
}

func TestSyncDeletesObsoleteAndSkipsUnchanged(t *testing.T) {
	api := newFakeCommands("obsolete")
	sy := newSyncer(t, api, nil)

	require.NoError(t, sy.sync("g1"))
	assert.Equal(t, []string{"obsolete"}, api.deleted)
	assert.Contains(t, api.created, "probe")
	assert.True(t, sort.StringsAreSorted(api.created))

	api.reset()
	require.NoError(t, sy.sync("g1"))
	assert.Empty(t, api.created)
	assert.Empty(t, api.deleted)

	// A cached hash does not hide a command that went missing remotely.
	delete(api.remote, "probe")
	require.NoError(t, sy.sync("g1"))
	assert.Equal(t, []string{"probe"}, api.created)
}

func TestSyncLeavesOutDisabledGroups(t *testing.T) {
	api := newFakeCommands()
	sy := newSyncer(t, api, func(_, group string) bool { return group == "probes" })
	require.NoError(t, sy.sync("g1"))
	assert.NotContains(t, api.created, "probe")
}

func TestRefreshGroup(t *testing.T) {
	api := newFakeCommands("probe")
	off := true
	sy := newSyncer(t, api, func(_, group string) bool { return off && group == "probes" })

	require.NoError(t, sy.refresh(command.SystemEvent{GuildID: "g1", Target: "group:probes"}, false))
	assert.Equal(t, []string{"probe"}, api.deleted)

	off = false
	api.reset()
	require.NoError(t, sy.refresh(command.SystemEvent{GuildID: "g1", Target: "group:probes"}, false))
	assert.Equal(t, []string{"probe"}, api.created)
}

func TestRefreshSingleAndBlacklist(t *testing.T) {
	api := newFakeCommands("probe", "other")
	sy := newSyncer(t, api, nil)

	require.NoError(t, sy.refresh(command.SystemEvent{GuildID: "g1", Target: "probe"}, false))
	assert.Equal(t, []string{"probe"}, api.created)
	assert.Error(t, sy.refresh(command.SystemEvent{GuildID: "g1", Target: "nope"}, false))

	require.NoError(t, sy.refresh(command.SystemEvent{GuildID: "g1", Target: "all"}, true))
	assert.ElementsMatch(t, []string{"probe", "other"}, api.deleted)
	assert.Empty(t, api.remote)
}

func TestEditWorthReplying(t *testing.T) {
	assert.False(t, EditWorthReplying("", false, false, "no mention"))
	assert.True(t, EditWorthReplying("", false, true, "<@1> hi"))
	assert.False(t, EditWorthReplying("<@1> how are you", true, true, "<@1> how are you?"))
	assert.True(t, EditWorthReplying("<@1> how are you", true, true, "<@1> what is the weather in Paris tomorrow"))
}

func TestComponentOwner(t *testing.T) {
	c, ok := componentOwner(command.PageID("probe", 2, time.Unix(100, 0)))
	require.True(t, ok)
	assert.Equal(t, "probe", c.Name())

	_, ok = componentOwner("unknown:1:2")
	assert.False(t, ok)
	_, ok = componentOwner(":1")
	assert.False(t, ok)
}

func TestCommandDefinitionFillsDefaults(t *testing.T) {
	c, ok := componentOwner("probe:")
	require.True(t, ok)
	def := commandDefinition(c)
	require.NotNil(t, def)
	assert.Equal(t, discordgo.ChatApplicationCommand, def.Type)
}

type fakeChannel struct {
	replyErr error
	sent     []string
	replies  []string
	typing   int
}

func (f *fakeChannel) ChannelTyping(string, ...discordgo.RequestOption) error {
	f.typing++
	return nil
}

func (f *fakeChannel) ChannelMessageSend(_, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, content)
	return &discordgo.Message{ID: "sent"}, nil
}

func (f *fakeChannel) ChannelMessageSendReply(_, content string, _ *discordgo.MessageReference, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.replyErr != nil {
		return nil, f.replyErr
	}
	f.replies = append(f.replies, content)
	return &discordgo.Message{ID: "reply"}, nil
}

func TestSenderReplyFallsBackToSend(t *testing.T) {
	ctx := context.Background()
	ch := &fakeChannel{}
	s := NewSender(ch)

	require.NoError(t, s.Typing(ctx, "c1"))
	id, err := s.Reply(ctx, "c1", "m1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "reply", id)

	ch.replyErr = errors.New("unknown message")
	id, err = s.Reply(ctx, "c1", "m1", "again")
	require.NoError(t, err)
	assert.Equal(t, "sent", id)
	assert.Equal(t, []string{"again"}, ch.sent)
	assert.Equal(t, 1, ch.typing)
}

func TestReminderText(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := storage.Reminder{
		CreatorID:   "u1",
		Message:     "drink water",
		Created:     created,
		TriggerTime: created.Add(2 * time.Hour),
		Subscribers: []string{"u1", "u2"},
	}
	text := ReminderText(r)
	assert.Equal(t, "⏰ <@u1>, you asked me to remind you: **drink water** (set 2h ago)\nAlso for: <@u2>", text)

	ch := &fakeChannel{}
	ReminderNotifier(NewSender(ch))(context.Background(), r)
	assert.Equal(t, []string{text}, ch.sent)
}

func TestLevelUpText(t *testing.T) {
	assert.Equal(t, "🎉 <@u1> just reached level **3**!", LevelUpText("u1", 3))
}
