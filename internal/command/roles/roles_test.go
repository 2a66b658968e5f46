package roles

import (
	"fmt"
	"sort"
	"testing"

	"izumi/internal/command"
	"izumi/internal/command/commandtest"
	"izumi/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlatform struct {
	roles     map[string][]string // user -> roles
	reactions map[string][]*discordgo.User
	seeded    []string
}

func newPlatform() *fakePlatform {
	return &fakePlatform{roles: map[string][]string{}, reactions: map[string][]*discordgo.User{}}
}

func (f *fakePlatform) GuildMemberRoleAdd(_, userID, roleID string, _ ...discordgo.RequestOption) error {
	for _, r := range f.roles[userID] {
		if r == roleID {
			return nil
		}
	}
	f.roles[userID] = append(f.roles[userID], roleID)
	return nil
}

func (f *fakePlatform) GuildMemberRoleRemove(_, userID, roleID string, _ ...discordgo.RequestOption) error {
	var kept []string
	for _, r := range f.roles[userID] {
		if r != roleID {
			kept = append(kept, r)
		}
	}
	f.roles[userID] = kept
	return nil
}

func (f *fakePlatform) GuildMember(_, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	return &discordgo.Member{User: &discordgo.User{ID: userID}, Roles: append([]string(nil), f.roles[userID]...)}, nil
}

func (f *fakePlatform) MessageReactionAdd(_, _, emoji string, _ ...discordgo.RequestOption) error {
	f.seeded = append(f.seeded, emoji)
	return nil
}

func (f *fakePlatform) MessageReactions(_, _, emoji string, limit int, _, after string, _ ...discordgo.RequestOption) ([]*discordgo.User, error) {
	users := f.reactions[emoji]
	start := 0
	for i, u := range users {
		if u.ID == after {
			start = i + 1
		}
	}
	return users[start:min(start+limit, len(users))], nil
}

func setup(t *testing.T) (*command.Services, *fakePlatform) {
	t.Helper()
	st, err := storage.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	p := newPlatform()
	prev := platformFor
	platformFor = func(*command.Request) Platform { return p }
	t.Cleanup(func() { platformFor = prev })
	return &command.Services{Storage: st}, p
}

func run(t *testing.T, c command.DiscordCommand, svc *command.Services, line string) *commandtest.Recorder {
	t.Helper()
	req, rec := commandtest.Prefix(c, svc, line)
	require.NoError(t, c.Run(req))
	return rec
}

func TestEmojiKey(t *testing.T) {
	assert.Equal(t, "🎉", EmojiKey(" 🎉 "))
	assert.Equal(t, "blob:123", EmojiKey("<:blob:123>"))
	assert.Equal(t, "party:456", EmojiKey("<a:party:456>"))
	assert.Equal(t, "<:blob:123>", display("blob:123"))
}

func TestLevelRoleLifecycle(t *testing.T) {
	svc, p := setup(t)
	run(t, &LevelRoleCommand{}, svc, "setlevelrole 5 <@&500>")
	run(t, &LevelRoleCommand{}, svc, "levelrole set 1 <@&100>")

	rec := run(t, &LevelRoleCommand{}, svc, "levelroles")
	assert.Contains(t, rec.All(), "Level **1** → <@&100>\nLevel **5** → <@&500>")

	require.NoError(t, svc.Storage.EditXP("g1", "u1", func(r *storage.XPRecord) { r.XP = 120 }))
	p.roles["u1"] = []string{"500"}
	rec = run(t, &LevelRoleCommand{}, svc, "syncuserroles")
	assert.Contains(t, rec.All(), "+1 / -1")
	assert.Equal(t, []string{"100"}, p.roles["u1"])

	rec = run(t, &LevelRoleCommand{}, svc, "syncuserroles")
	assert.Contains(t, rec.All(), "already has the right roles")

	rec = run(t, &LevelRoleCommand{}, svc, "removelevelrole 9")
	assert.Contains(t, rec.All(), "No role is bound to level 9")
	run(t, &LevelRoleCommand{}, svc, "removelevelrole 5")
	bindings, _ := svc.Storage.LevelRoles("g1")
	assert.Equal(t, []storage.LevelRole{{Level: 1, RoleID: "100"}}, bindings)

	rec = run(t, &LevelRoleCommand{}, svc, "setlevelrole zero <@&1>")
	assert.Contains(t, rec.All(), "Usage")
}

func TestAutoRoles(t *testing.T) {
	svc, p := setup(t)
	run(t, &AutoRoleCommand{}, svc, "autorole add <@&7>")
	rec := run(t, &AutoRoleCommand{}, svc, "autorole add <@&7>")
	assert.Contains(t, rec.All(), "already an auto role")
	run(t, &AutoRoleCommand{}, svc, "autorole add <@&8>")

	require.NoError(t, OnMemberJoin(p, svc.Storage, "g1", "newbie"))
	assert.Equal(t, []string{"7", "8"}, p.roles["newbie"])

	run(t, &AutoRoleCommand{}, svc, "autorole remove <@&7>")
	rec = run(t, &AutoRoleCommand{}, svc, "autorole")
	assert.Contains(t, rec.All(), "<@&8>")
	assert.NotContains(t, rec.All(), "<@&7>")
}

func TestReactionRoles(t *testing.T) {
	svc, p := setup(t)
	run(t, &ReactionRoleCommand{}, svc, "reactionrole set 900 <:blob:123> <@&42>")
	assert.Equal(t, []string{"blob:123"}, p.seeded)

	handled, err := OnReaction(p, svc.Storage, "g1", "900", "blob:123", "u5", true)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, []string{"42"}, p.roles["u5"])

	handled, err = OnReaction(p, svc.Storage, "g1", "900", "blob:123", "u5", false)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Empty(t, p.roles["u5"])

	handled, _ = OnReaction(p, svc.Storage, "g1", "901", "blob:123", "u5", true)
	assert.False(t, handled)

	for i := 0; i < 150; i++ {
		p.reactions["blob:123"] = append(p.reactions["blob:123"], &discordgo.User{ID: fmt.Sprintf("r%03d", i), Bot: i == 0})
	}
	rec := run(t, &ReactionRoleCommand{}, svc, "rr sync 900")
	assert.Contains(t, rec.All(), "Granted 149 roles")

	var holders []string
	for u, roles := range p.roles {
		if len(roles) == 1 && roles[0] == "42" {
			holders = append(holders, u)
		}
	}
	sort.Strings(holders)
	assert.Len(t, holders, 149)
	assert.Equal(t, "r001", holders[0])

	rec = run(t, &ReactionRoleCommand{}, svc, "reactionrole sync 555")
	assert.Contains(t, rec.All(), "no reaction roles")
}
