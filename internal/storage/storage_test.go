package storage

import (
	"testing"
	"time"

	"izumi/internal/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T, dir string) *Storage {
	t.Helper()
	s, err := New(dir)
	require.NoError(t, err)
	return s
}

func TestXPPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s := open(t, dir)
	require.NoError(t, s.EditXP("g", "u1", func(r *XPRecord) { r.XP, r.Level, r.Coins = 1500, 15, 7 }))
	require.NoError(t, s.EditXP("g", "u2", func(r *XPRecord) { r.XP = 200 }))
	require.NoError(t, s.Close())

	s = open(t, dir)
	defer s.Close()
	r, ok, err := s.GetXP("g", "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, XPRecord{XP: 1500, Level: 15, Coins: 7}, r)

	board, err := s.Leaderboard("g", 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "u1", board[0].UserID)
	rank, _ := s.Rank("g", "u2")
	assert.Equal(t, 2, rank)
}

func TestReplaceXPKeepsGachaCounters(t *testing.T) {
	s := open(t, t.TempDir())
	defer s.Close()
	require.NoError(t, s.EditXP("g", "u", func(r *XPRecord) { r.Coins, r.Cards, r.XP = 4, 2, 10 }))
	require.NoError(t, s.ReplaceXP("g", map[string]XPRecord{"u": {XP: 900, Level: 9}}))
	r, _, _ := s.GetXP("g", "u")
	assert.Equal(t, XPRecord{XP: 900, Level: 9, Coins: 4, Cards: 2}, r)
}

func TestBirthdaysAndAnnouncements(t *testing.T) {
	s := open(t, t.TempDir())
	defer s.Close()
	require.NoError(t, s.SetBirthday("g", "u", memory.Birthday{Month: 4, Day: 1}))
	require.NoError(t, s.SetBirthdayChannel("g", "c"))
	ch, _ := s.BirthdayChannel("g")
	assert.Equal(t, "c", ch)

	first, err := s.MarkAnnounced("g", "u", "2025-04-01")
	require.NoError(t, err)
	assert.True(t, first)
	first, _ = s.MarkAnnounced("g", "u", "2025-04-01")
	assert.False(t, first)

	require.ErrorIs(t, s.RemoveBirthday("g", "nobody"), ErrNotFound)
}

func TestWarningsAndRoles(t *testing.T) {
	s := open(t, t.TempDir())
	defer s.Close()
	n, err := s.AddWarning("g", "u", "mod", "spam", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, _ = s.AddWarning("g", "u", "mod", "more spam", time.Now())
	assert.Equal(t, 2, n)
	n, _ = s.ClearWarnings("g", "u")
	assert.Equal(t, 2, n)

	require.NoError(t, s.SetLevelRole("g", 10, "r10"))
	require.NoError(t, s.SetLevelRole("g", 5, "r5"))
	roles, _ := s.LevelRoles("g")
	assert.Equal(t, []LevelRole{{5, "r5"}, {10, "r10"}}, roles)

	require.NoError(t, s.SetReactionRole("g", "m", "🎮", "gamer"))
	id, ok := s.ReactionRole("g", "m", "🎮")
	assert.True(t, ok)
	assert.Equal(t, "gamer", id)

	added, _ := s.AddAutoRole("g", "newbie")
	assert.True(t, added)
	added, _ = s.AddAutoRole("g", "newbie")
	assert.False(t, added)
}

func TestChannelGating(t *testing.T) {
	s := open(t, t.TempDir())
	defer s.Close()
	assert.True(t, s.ChannelAllowed("g", "osu", "any"))
	_, err := s.AllowChannel("g", "osu", "c1")
	require.NoError(t, err)
	assert.True(t, s.ChannelAllowed("g", "osu", "c1"))
	assert.False(t, s.ChannelAllowed("g", "osu", "c2"))
	require.NoError(t, s.ClearChannels("g", "osu"))
	assert.True(t, s.ChannelAllowed("g", "osu", "c2"))

	require.NoError(t, s.DisableGroup("g", "social"))
	assert.True(t, s.IsGroupDisabled("g", "social"))
	require.NoError(t, s.EnableGroup("g", "social"))
	assert.False(t, s.IsGroupDisabled("g", "social"))
}

func TestRemindersAndUsage(t *testing.T) {
	s := open(t, t.TempDir())
	defer s.Close()
	at := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.PutReminder(Reminder{ID: "b", Message: "later", TriggerTime: at.Add(time.Hour)}))
	require.NoError(t, s.PutReminder(Reminder{ID: "a", Message: "soon", TriggerTime: at}))
	require.NoError(t, s.EditReminder("a", func(r *Reminder) { r.Subscribers = append(r.Subscribers, "u2") }))
	all := s.Reminders()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, []string{"u2"}, all[0].Subscribers)
	s.DeleteReminder("a")
	_, ok := s.GetReminder("a")
	assert.False(t, ok)
	assert.ErrorIs(t, s.EditReminder("a", func(*Reminder) {}), ErrNotFound)

	for i := 0; i < 25; i++ {
		require.NoError(t, s.AppendCommandToHistory("g", CommandHistoryRecord{Command: "level"}))
	}
	hist, _ := s.FetchCommandHistory("g")
	assert.Len(t, hist, commandHistoryLimit)
	usage, _ := s.CommandUsage("g")
	assert.Equal(t, 25, usage["level"])
}
