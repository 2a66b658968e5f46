package games

import (
	"testing"

	"izumi/internal/command"
	"izumi/internal/command/commandtest"
	"izumi/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func TestChannels(t *testing.T) {
	svc := services(t)
	rec := run(t, &ChannelsCommand{}, svc, "osuchannels")
	assert.Contains(t, rec.All(), "every channel")

	rec = run(t, &ChannelsCommand{}, svc, "osuchannels add <#77>")
	assert.Contains(t, rec.All(), "now work in <#77>")
	rec = run(t, &ChannelsCommand{}, svc, "osuchannels add <#77>")
	assert.Contains(t, rec.All(), "already")
	run(t, &ChannelsCommand{}, svc, "osuchannels add")

	rec = run(t, &ChannelsCommand{}, svc, "osuchannels list")
	require.Len(t, rec.Embeds, 1)
	assert.Equal(t, "<#77>\n<#c1>", rec.Embeds[0].Description)
	assert.False(t, svc.Storage.ChannelAllowed("g1", Feature, "c5"))

	run(t, &ChannelsCommand{}, svc, "osuchannels remove <#77>")
	rec = run(t, &ChannelsCommand{}, svc, "osuchannels remove <#77>")
	assert.Contains(t, rec.All(), "isn't a game channel")

	run(t, &ChannelsCommand{}, svc, "osuchannels clear")
	assert.True(t, svc.Storage.ChannelAllowed("g1", Feature, "c5"))
}

func TestEvaluate(t *testing.T) {
	defer func(f func(int) int) { intn = f }(intn)
	intn = func(n int) int { return n - 1 } // always the highest face

	roll, err := Evaluate("2d6 + 1d4*2 - 3")
	require.NoError(t, err)
	assert.Equal(t, 12+8-3, roll.Total)
	assert.Equal(t, "`2d6` [6, 6] + `1d4` [4] * `2` - `3`", roll.Detail)

	roll, err = Evaluate("D20")
	require.NoError(t, err)
	assert.Equal(t, 20, roll.Total)

	for _, bad := range []string{"", "abc", "2d1", "101d6", "5/0", "*3", "2d6+x"} {
		_, err := Evaluate(bad)
		assert.Error(t, err, bad)
	}
}

func TestRollCommand(t *testing.T) {
	defer func(f func(int) int) { intn = f }(intn)
	intn = func(int) int { return 0 }

	rec := run(t, &RollCommand{}, services(t), "roll 3d8 + 2")
	assert.Contains(t, rec.All(), "**Result**: **5**")

	rec = run(t, &RollCommand{}, services(t), "roll")
	assert.Contains(t, rec.All(), "`1d20`")

	rec = run(t, &RollCommand{}, services(t), "roll lots")
	assert.NotEmpty(t, rec.Privs)
}
