package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "tok")
	t.Setenv("BOT_NICKNAMES", " Izumi , zumi ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "!", cfg.CommandPrefix)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, []string{"izumi", "zumi"}, cfg.BotNicknames)
	assert.Equal(t, 30*time.Second, cfg.XPCooldown)
	assert.Equal(t, int64(100<<20), cfg.Video.MaxBytes)
	assert.Equal(t, 1800*time.Second, cfg.Video.MaxDuration)
	assert.Len(t, cfg.ModelTiers, 3)
}

func TestNormalize(t *testing.T) {
	t.Setenv("XP_MIN", "30")
	t.Setenv("XP_MAX", "10")
	t.Setenv("VIDEO_ANALYSIS_MODE", "weird")
	t.Setenv("GUILD_BLACKLIST", "1,,2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.XPMax)
	assert.Equal(t, "audio", cfg.Video.Mode)
	assert.True(t, cfg.Blacklisted("2"))
	assert.False(t, cfg.Blacklisted(""))
}
