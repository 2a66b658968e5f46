package chat

import (
	"context"
	"errors"
	"testing"

	"izumi/internal/command"
	"izumi/internal/command/commandtest"
	mem "izumi/internal/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func services() *command.Services {
	return &command.Services{Memory: mem.NewInMemory("")}
}

func run(t *testing.T, c command.DiscordCommand, svc *command.Services, line string) *commandtest.Recorder {
	t.Helper()
	req, rec := commandtest.Prefix(c, svc, line)
	require.NoError(t, c.Run(req))
	return rec
}

func TestConversationLifecycle(t *testing.T) {
	svc := services()
	rec := run(t, &ConversationCommand{}, svc, "conversation list")
	assert.Contains(t, rec.All(), "only speak when spoken to")

	rec = run(t, &ConversationCommand{}, svc, "conversation enable")
	assert.Contains(t, rec.All(), "<#c1>")
	cfg, ok := svc.Memory.ConversationChannel("c1")
	require.True(t, ok)
	assert.Equal(t, mem.DefaultConversationChannel("g1"), cfg)

	rec = run(t, &ConversationCommand{}, svc, "conversation enable <#c1>")
	assert.Contains(t, rec.All(), "already")

	run(t, &ConversationCommand{}, svc, "conversation enable <#99>")
	rec = run(t, &ConversationCommand{}, svc, "conversation")
	require.Len(t, rec.Embeds, 1)
	assert.Contains(t, rec.Embeds[0].Description, "<#99>")
	assert.Contains(t, rec.Embeds[0].Description, "30% chance")

	run(t, &ConversationCommand{}, svc, "conversation disable <#99>")
	_, ok = svc.Memory.ConversationChannel("99")
	assert.False(t, ok)
	rec = run(t, &ConversationCommand{}, svc, "conversation disable <#99>")
	assert.Contains(t, rec.All(), "isn't a conversation channel")
}

func TestConversationListIsPerGuild(t *testing.T) {
	svc := services()
	svc.Memory.SetConversationChannel("55", mem.DefaultConversationChannel("other"))
	rec := run(t, &ConversationCommand{}, svc, "conversation list")
	assert.NotContains(t, rec.All(), "<#55>")
}

func TestTune(t *testing.T) {
	svc := services()
	rec := run(t, &ConversationCommand{}, svc, "conversation tune chance 0.5")
	assert.Contains(t, rec.All(), "Enable this channel first")

	run(t, &ConversationCommand{}, svc, "conversation enable")
	rec = run(t, &ConversationCommand{}, svc, "conversation tune chance 0.5")
	assert.Contains(t, rec.All(), "50% chance")
	rec = run(t, &ConversationCommand{}, svc, "conversation tune cooldown 120")
	assert.Contains(t, rec.All(), "120s cooldown")
	cfg, _ := svc.Memory.ConversationChannel("c1")
	assert.Equal(t, 0.5, cfg.ParticipationChance)
	assert.Equal(t, 120, cfg.CooldownSec)

	rec = run(t, &ConversationCommand{}, svc, "conversation tune chance 3")
	assert.Contains(t, rec.All(), "between 0 and 1")
	rec = run(t, &ConversationCommand{}, svc, "conversation tune mood 3")
	assert.Contains(t, rec.All(), "unknown setting")
	rec = run(t, &ConversationCommand{}, svc, "conversation tune chance lots")
	assert.Contains(t, rec.All(), "Usage")
}

func TestAsk(t *testing.T) {
	defer func(f func(context.Context, *command.Request, string) (string, error)) { ask = f }(ask)

	rec := run(t, &AskCommand{}, services(), "ask hi")
	assert.Contains(t, rec.All(), "offline")

	var got string
	ask = func(_ context.Context, r *command.Request, text string) (string, error) {
		got = r.UserName + ": " + text
		return "tea, always tea", nil
	}
	rec = run(t, &AskCommand{}, services(), "ask coffee or tea?")
	assert.Equal(t, "Alice: coffee or tea?", got)
	assert.Equal(t, []string{"tea, always tea"}, rec.Replies)

	ask = func(context.Context, *command.Request, string) (string, error) {
		return "", errors.New("quota")
	}
	rec = run(t, &AskCommand{}, services(), "ask anything")
	assert.Contains(t, rec.All(), "fuzzy")

	rec = run(t, &AskCommand{}, services(), "ask")
	assert.Contains(t, rec.All(), "Ask me something")
}
