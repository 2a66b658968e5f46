package remind

import (
	"context"
	"strings"
	"testing"
	"time"

	"izumi/internal/command"
	"izumi/internal/command/commandtest"
	"izumi/internal/reminder"
	"izumi/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePoster struct {
	sent      []string
	reactions []string
}

func (f *fakePoster) ChannelMessageSend(_, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, content)
	return &discordgo.Message{ID: "conf1"}, nil
}

func (f *fakePoster) MessageReactionAdd(_, messageID, emoji string, _ ...discordgo.RequestOption) error {
	f.reactions = append(f.reactions, messageID+" "+emoji)
	return nil
}

func services(t *testing.T) *command.Services {
	st, err := storage.New(t.TempDir())
	require.NoError(t, err)
	svc := reminder.NewService(st, func(context.Context, storage.Reminder) {})
	t.Cleanup(svc.Stop)
	return &command.Services{Storage: st, Reminders: svc}
}

func run(t *testing.T, c command.DiscordCommand, svc *command.Services, line string) *commandtest.Recorder {
	t.Helper()
	req, rec := commandtest.Prefix(c, svc, line)
	require.NoError(t, c.Run(req))
	return rec
}

func TestSplitDuration(t *testing.T) {
	d, msg, err := SplitDuration(strings.Fields("2d 6h 30m water the plants"))
	require.NoError(t, err)
	assert.Equal(t, 196200*time.Second, d)
	assert.Equal(t, "water the plants", msg)

	d, msg, err = SplitDuration(strings.Fields("10 minutes later"))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, d)
	assert.Equal(t, "later", msg)

	_, _, err = SplitDuration(strings.Fields("soon please"))
	assert.ErrorIs(t, err, reminder.ErrInvalidDuration)
}

func TestRemindMePostsConfirmation(t *testing.T) {
	fp := &fakePoster{}
	old := posterFor
	posterFor = func(*command.Request) Poster { return fp }
	defer func() { posterFor = old }()

	svc := services(t)
	rec := run(t, &RemindMeCommand{}, svc, "remindme 2h stretch a bit")
	assert.Empty(t, rec.All())
	require.Len(t, fp.sent, 1)
	assert.Contains(t, fp.sent[0], "**stretch a bit**")
	assert.Equal(t, []string{"conf1 " + OptInEmoji}, fp.reactions)

	list := svc.Reminders.List("u1")
	require.Len(t, list, 1)
	assert.Equal(t, "conf1", list[0].MessageID)

	added, err := svc.Reminders.Subscribe("conf1", "u2")
	require.NoError(t, err)
	assert.True(t, added)
}

func TestRemindMeErrors(t *testing.T) {
	svc := services(t)
	rec := run(t, &RemindMeCommand{}, svc, "remindme whenever")
	assert.Contains(t, rec.All(), "couldn't read that duration")

	rec = run(t, &RemindMeCommand{}, svc, "remindme 5s now")
	assert.Contains(t, rec.All(), "at least 10 seconds")
}

func TestListAndCancel(t *testing.T) {
	svc := services(t)
	rec := run(t, &RemindersCommand{}, svc, "reminders")
	assert.Contains(t, rec.All(), "no pending reminders")

	rec = run(t, &RemindMeCommand{}, svc, "remindme 45")
	assert.Contains(t, rec.All(), "**something**")

	list := svc.Reminders.List("u1")
	require.Len(t, list, 1)
	short := list[0].ID[:8]

	rec = run(t, &RemindersCommand{}, svc, "reminders")
	assert.Contains(t, rec.All(), short)

	req, rec := commandtest.Prefix(&CancelReminderCommand{}, svc, "cancelreminder "+short)
	req.UserID = "u2"
	require.NoError(t, (&CancelReminderCommand{}).Run(req))
	assert.Contains(t, rec.All(), "can't find")

	rec = run(t, &CancelReminderCommand{}, svc, "cancelreminder `"+short+"`")
	assert.Contains(t, rec.All(), "cancelled")
	assert.Empty(t, svc.Reminders.List("u1"))

	rec = run(t, &CancelReminderCommand{}, svc, "cancelreminder nope")
	assert.Contains(t, rec.All(), "can't find")
}
