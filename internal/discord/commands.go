package discord

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"izumi/internal/command"
	"izumi/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// registerPause spaces out command creation to stay under the rate limit.
const registerPause = 25 * time.Millisecond

// commandAPI is the part of the session used for slash command sync.
type commandAPI interface {
	ApplicationCommands(appID, guildID string, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	ApplicationCommandCreate(appID, guildID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error)
	ApplicationCommandDelete(appID, guildID, cmdID string, options ...discordgo.RequestOption) error
}

// syncer reconciles a guild's registered slash commands with the registry.
type syncer struct {
	api    commandAPI
	appID  string
	hashes hashStore
	pause  time.Duration
	// disabled reports whether a command group is turned off in a guild.
	disabled func(guildID, group string) bool
}

func (b *Bot) syncer() (*syncer, error) {
	appID, err := b.appID()
	if err != nil {
		return nil, err
	}
	disabled := func(string, string) bool { return false }
	if b.svc != nil && b.svc.Storage != nil {
		disabled = b.svc.Storage.IsGroupDisabled
	}
	return &syncer{
		api:      b.dg,
		appID:    appID,
		hashes:   hashStore{dir: b.cfg.Path("commands")},
		pause:    registerPause,
		disabled: disabled,
	}, nil
}

// registerCommands syncs slash commands for a guild: deletes obsolete ones
// and creates those whose definition changed.
func (b *Bot) registerCommands(guildID string) error {
	sy, err := b.syncer()
	if err != nil {
		return err
	}
	return sy.sync(guildID)
}

func (sy *syncer) sync(guildID string) error {
	remote, err := sy.api.ApplicationCommands(sy.appID, guildID)
	if err != nil {
		return fmt.Errorf("list commands: %w", err)
	}
	local := sy.definitions(guildID)
	hashes := sy.hashes.load(guildID)

	for _, rc := range remote {
		if _, keep := local[rc.Name]; keep {
			continue
		}
		log.WithField("guild", guildID).Infof("[INFO] Deleting obsolete command: %s", rc.Name)
		if err := sy.api.ApplicationCommandDelete(sy.appID, guildID, rc.ID); err != nil {
			log.WithField("guild", guildID).Errorf("[ERR] Failed to delete %s: %v", rc.Name, err)
			continue
		}
		delete(hashes, rc.Name)
	}

	registered := make(map[string]bool, len(remote))
	for _, rc := range remote {
		registered[rc.Name] = true
	}
	var changed int
	for _, name := range sortedKeys(local) {
		def := local[name]
		h := hashCommand(def)
		if hashes[name] == h && registered[name] {
			continue
		}
		if _, err := sy.api.ApplicationCommandCreate(sy.appID, guildID, def); err != nil {
			log.WithField("guild", guildID).Errorf("[ERR] Failed to register %s: %v", name, err)
			continue
		}
		hashes[name] = h
		changed++
		time.Sleep(sy.pause)
	}
	if changed > 0 {
		log.WithField("guild", guildID).Infof("[DONE] Registered %d changed command(s)", changed)
	}
	sy.hashes.save(guildID, hashes)
	return nil
}

// definitions returns the slash definitions of every registered command
// whose group is enabled in the guild.
func (sy *syncer) definitions(guildID string) map[string]*discordgo.ApplicationCommand {
	out := map[string]*discordgo.ApplicationCommand{}
	for _, c := range command.AllCommands() {
		if m, ok := command.Meta(c); ok && sy.disabled(guildID, m.Group()) {
			continue
		}
		if def := commandDefinition(c); def != nil {
			out[def.Name] = def
		}
	}
	return out
}

// refresh handles a SystemEventRefreshCommands event.
func (sy *syncer) refresh(evt command.SystemEvent, blacklisted bool) error {
	if blacklisted {
		return sy.removeAll(evt.GuildID)
	}
	switch {
	case strings.HasPrefix(evt.Target, "group:"):
		return sy.refreshGroup(evt.GuildID, strings.TrimPrefix(evt.Target, "group:"))
	case evt.Target == "" || strings.EqualFold(evt.Target, "all"):
		return sy.sync(evt.GuildID)
	default:
		return sy.refreshSingle(evt.GuildID, evt.Target)
	}
}

func (sy *syncer) removeAll(guildID string) error {
	existing, err := sy.api.ApplicationCommands(sy.appID, guildID)
	if err != nil {
		return fmt.Errorf("list commands: %w", err)
	}
	log.WithField("guild", guildID).Info("[BLACKLIST] Removing all commands")
	for _, c := range existing {
		if err := sy.api.ApplicationCommandDelete(sy.appID, guildID, c.ID); err != nil {
			log.WithField("guild", guildID).Errorf("[ERR] Failed to delete %s: %v", c.Name, err)
		}
	}
	sy.hashes.save(guildID, map[string]string{})
	return nil
}

func (sy *syncer) refreshGroup(guildID, group string) error {
	existing, err := sy.api.ApplicationCommands(sy.appID, guildID)
	if err != nil {
		return fmt.Errorf("list commands: %w", err)
	}
	byName := make(map[string]*discordgo.ApplicationCommand, len(existing))
	for _, c := range existing {
		byName[c.Name] = c
	}
	hashes := sy.hashes.load(guildID)
	off := sy.disabled(guildID, group)

	for _, c := range command.AllCommands() {
		m, ok := command.Meta(c)
		if !ok || m.Group() != group {
			continue
		}
		def := commandDefinition(c)
		if def == nil {
			continue
		}
		rc, registered := byName[def.Name]
		switch {
		case off && registered:
			log.WithField("guild", guildID).Infof("[INFO] Removing disabled command: %s", def.Name)
			if err := sy.api.ApplicationCommandDelete(sy.appID, guildID, rc.ID); err != nil {
				log.WithField("guild", guildID).Errorf("[ERR] Failed to delete %s: %v", def.Name, err)
				continue
			}
			delete(hashes, def.Name)
		case !off && !registered:
			log.WithField("guild", guildID).Infof("[INFO] Registering enabled command: %s", def.Name)
			if _, err := sy.api.ApplicationCommandCreate(sy.appID, guildID, def); err != nil {
				log.WithField("guild", guildID).Errorf("[ERR] Failed to register %s: %v", def.Name, err)
				continue
			}
			hashes[def.Name] = hashCommand(def)
		}
	}
	sy.hashes.save(guildID, hashes)
	return nil
}

func (sy *syncer) refreshSingle(guildID, name string) error {
	c, ok := cmd.DefaultRegistry.Resolve(name)
	if !ok {
		return fmt.Errorf("no command found for refresh target %q", name)
	}
	def := commandDefinition(c)
	if def == nil {
		return fmt.Errorf("command %q has no slash definition", name)
	}
	if _, err := sy.api.ApplicationCommandCreate(sy.appID, guildID, def); err != nil {
		return fmt.Errorf("register %s: %w", def.Name, err)
	}
	hashes := sy.hashes.load(guildID)
	hashes[def.Name] = hashCommand(def)
	sy.hashes.save(guildID, hashes)
	return nil
}

// commandDefinition extracts the slash definition of a registered command,
// walking through middleware wrappers.
func commandDefinition(c cmd.Command) *discordgo.ApplicationCommand {
	slash, ok := cmd.Root(c).(command.SlashProvider)
	if !ok {
		return nil
	}
	def := slash.SlashDefinition()
	if def == nil {
		return nil
	}
	if def.Type == 0 {
		def.Type = discordgo.ChatApplicationCommand
	}
	if def.Name == "" {
		def.Name = c.Name()
	}
	if def.Description == "" {
		def.Description = c.Description()
	}
	return def
}

// appID returns the bot's application ID, fetching it when state has none.
func (b *Bot) appID() (string, error) {
	if id := command.BotID(b.dg); id != "" {
		return id, nil
	}
	u, err := b.dg.User("@me")
	if err != nil {
		return "", fmt.Errorf("failed to fetch bot user: %w", err)
	}
	return u.ID, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
