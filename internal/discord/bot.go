// Package discord is the platform adapter: it owns the gateway session,
// routes events into commands and the chat pipeline, and keeps slash
// commands in sync per guild.
package discord

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"izumi/internal/command"
	"izumi/internal/config"

	"github.com/bwmarrin/discordgo"
	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
)

// EditMemory is how long the content of a bot-mentioning message is kept
// for comparing later edits against.
const EditMemory = 10 * time.Minute

// Bot is the Discord runtime.
type Bot struct {
	dg  *discordgo.Session
	cfg *config.Config
	svc *command.Services

	ctx   context.Context
	ready atomic.Bool

	// edits holds the last seen content of messages that mentioned the bot.
	edits *cache.Cache

	mu     sync.Mutex
	synced map[string]bool
}

// New creates the session without connecting, so outbound helpers can be
// wired before Run.
func New(cfg *config.Config) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent
	return &Bot{
		dg:     dg,
		cfg:    cfg,
		ctx:    context.Background(),
		edits:  cache.New(EditMemory, time.Minute),
		synced: map[string]bool{},
	}, nil
}

// Session is the underlying gateway session.
func (b *Bot) Session() *discordgo.Session { return b.dg }

// Ready reports whether the gateway session has completed its handshake.
func (b *Bot) Ready() bool { return b.ready.Load() }

// Guilds lists the guilds currently in state.
func (b *Bot) Guilds() []string {
	if b.dg.State == nil {
		return nil
	}
	b.dg.State.RLock()
	defer b.dg.State.RUnlock()
	ids := make([]string, 0, len(b.dg.State.Guilds))
	for _, g := range b.dg.State.Guilds {
		if !b.cfg.Blacklisted(g.ID) {
			ids = append(ids, g.ID)
		}
	}
	return ids
}

// Run opens the session and serves events until ctx is done.
func (b *Bot) Run(ctx context.Context, svc *command.Services) error {
	b.ctx = ctx
	b.svc = svc

	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onGuildCreate)
	b.dg.AddHandler(b.onMessageCreate)
	b.dg.AddHandler(b.onMessageUpdate)
	b.dg.AddHandler(b.onMessageReactionAdd)
	b.dg.AddHandler(b.onMessageReactionRemove)
	b.dg.AddHandler(b.onGuildMemberAdd)
	b.dg.AddHandler(b.onInteractionCreate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	go b.handleSystemEvents(ctx)

	<-ctx.Done()
	b.ready.Store(false)
	log.Info("[INFO] ❎ Shutdown signal received. Closing gateway...")
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	if b.svc.Chat != nil {
		b.svc.Chat.SetBot(r.User.ID, r.User.Username)
	}

	for _, g := range r.Guilds {
		if b.leaveIfBlacklisted(s, g.ID) {
			continue
		}
		b.syncOnce(g.ID)
	}

	b.ready.Store(true)
	if b.svc.Scheduler != nil {
		b.svc.Scheduler.MarkReady()
	}
	log.Infof("[INFO] ✅ %s is running as %s in %d guild(s)", config.AppName, r.User.Username, len(r.Guilds))
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if b.leaveIfBlacklisted(s, g.ID) {
		return
	}
	b.syncOnce(g.ID)
}

func (b *Bot) leaveIfBlacklisted(s *discordgo.Session, guildID string) bool {
	if !b.cfg.Blacklisted(guildID) {
		return false
	}
	log.WithField("guild", guildID).Info("[INFO] Leaving blacklisted guild")
	if err := s.GuildLeave(guildID); err != nil {
		log.WithField("guild", guildID).Errorf("[ERR] Failed to leave guild: %v", err)
	}
	return true
}

// syncOnce registers slash commands for a guild the first time it is seen
// in this process.
func (b *Bot) syncOnce(guildID string) {
	if !b.cfg.SyncSlashCommands {
		return
	}
	b.mu.Lock()
	done := b.synced[guildID]
	b.synced[guildID] = true
	b.mu.Unlock()
	if done {
		return
	}
	if err := b.registerCommands(guildID); err != nil {
		log.WithField("guild", guildID).Errorf("[ERR] Error registering slash commands: %v", err)
	}
}

// channelName resolves a channel name from state, "" when unknown.
func channelName(s *discordgo.Session, channelID string) string {
	if s.State == nil {
		return ""
	}
	if ch, err := s.State.Channel(channelID); err == nil && ch != nil {
		return ch.Name
	}
	return ""
}
