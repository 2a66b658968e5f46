package social

import (
	"testing"

	"izumi/internal/command"
	"izumi/internal/command/commandtest"
	"izumi/pkg/cmd"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionsAreRegistered(t *testing.T) {
	for _, name := range []string{"kiss", "hug", "slap", "handhold"} {
		_, ok := cmd.DefaultRegistry.Resolve(name)
		assert.True(t, ok, name)
	}
	for _, a := range actions {
		assert.NotEmpty(t, a.gifs, a.name)
	}
}

func TestHug(t *testing.T) {
	defer func(f func(int) int) { pick = f }(pick)
	pick = func(n int) int { return n - 1 }

	c := &SocialCommand{a: actions[1]}
	req, rec := commandtest.Prefix(c, &command.Services{}, "hug <@42>")
	require.NoError(t, c.Run(req))
	require.Len(t, rec.Embeds, 1)
	assert.Equal(t, "🤗 <@u1> hugs <@42>", rec.Embeds[0].Description)
	assert.Equal(t, actions[1].gifs[len(actions[1].gifs)-1], rec.Embeds[0].Image.URL)

	req, rec = commandtest.Prefix(c, &command.Services{}, "hug")
	require.NoError(t, c.Run(req))
	assert.Contains(t, rec.All(), "Mention someone")
}
