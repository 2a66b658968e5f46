package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config is the process configuration read from the environment.
type Config struct {
	DiscordToken   string   `env:"DISCORD_TOKEN"`
	GeminiAPIKey   string   `env:"GEMINI_API_KEY"`
	OwnerID        string   `env:"OWNER_ID"`
	CommandPrefix  string   `env:"COMMAND_PREFIX" envDefault:"!"`
	DataDir        string   `env:"DATA_DIR" envDefault:"data"`
	BotNicknames   []string `env:"BOT_NICKNAMES" envDefault:"izumi" envSeparator:","`
	ModelTiers     []string `env:"MODEL_TIERS" envDefault:"gemini-2.5-flash,gemini-2.0-flash,gemini-2.0-flash-lite" envSeparator:","`
	AnalysisModel  string   `env:"ANALYSIS_MODEL" envDefault:"gemini-2.0-flash"`
	GuildBlacklist []string `env:"GUILD_BLACKLIST" envSeparator:","`

	XPMin      int           `env:"XP_MIN" envDefault:"15"`
	XPMax      int           `env:"XP_MAX" envDefault:"25"`
	XPCooldown time.Duration `env:"XP_COOLDOWN" envDefault:"30s"`

	Video VideoConfig

	HTTPAddr          string `env:"HTTP_ADDR" envDefault:":8787"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON           bool   `env:"LOG_JSON" envDefault:"false"`
	SyncSlashCommands bool   `env:"SYNC_SLASH_COMMANDS" envDefault:"true"`
}

// VideoConfig controls analysis of remote video links.
type VideoConfig struct {
	Enabled     bool          `env:"VIDEO_ANALYSIS_ENABLED" envDefault:"false"`
	Mode        string        `env:"VIDEO_ANALYSIS_MODE" envDefault:"audio"`
	MaxBytes    int64         `env:"VIDEO_MAX_BYTES" envDefault:"104857600"`
	MaxDuration time.Duration `env:"VIDEO_MAX_DURATION" envDefault:"1800s"`
	TmpDir      string        `env:"VIDEO_TMP_DIR"`
	YtDlpPath   string        `env:"YTDLP_PATH" envDefault:"yt-dlp"`
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, falling back to system environment variables")
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

// New is Load for the bot binary: it requires a platform token.
func New() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.DiscordToken == "" {
		log.Fatal("DISCORD_TOKEN is not set")
	}
	return cfg
}

func (c *Config) normalize() {
	c.BotNicknames = lowerAll(c.BotNicknames)
	c.ModelTiers = trimAll(c.ModelTiers)
	c.GuildBlacklist = trimAll(c.GuildBlacklist)
	if c.XPMax < c.XPMin {
		c.XPMax = c.XPMin
	}
	if c.Video.Mode != "video" {
		c.Video.Mode = "audio"
	}
}

// Path joins name onto the data directory.
func (c *Config) Path(name string) string {
	return filepath.Join(c.DataDir, name)
}

// Blacklisted reports whether the guild is in GUILD_BLACKLIST.
func (c *Config) Blacklisted(guildID string) bool {
	for _, id := range c.GuildBlacklist {
		if id == guildID {
			return true
		}
	}
	return false
}

// SetupLogging applies LOG_LEVEL and LOG_JSON to the global logger.
func (c *Config) SetupLogging() {
	if c.LogJSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func lowerAll(in []string) []string {
	out := trimAll(in)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return out
}
