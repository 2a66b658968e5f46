// Package games holds the game commands and the channels they may run in.
package games

import (
	"errors"
	"strings"

	"izumi/internal/command"
	"izumi/internal/middleware"
	"izumi/internal/storage"

	"github.com/bwmarrin/discordgo"
)

// Feature is the channel gate shared by every game command.
const Feature = "osu"

type ChannelsCommand struct{}

func (c *ChannelsCommand) Name() string        { return "osuchannels" }
func (c *ChannelsCommand) Description() string { return "Choose the channels game commands run in" }
func (c *ChannelsCommand) Group() string       { return "games" }
func (c *ChannelsCommand) Category() string    { return "🎮 Games" }
func (c *ChannelsCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionManageChannels}
}

func (c *ChannelsCommand) SlashDefinition() *discordgo.ApplicationCommand {
	channel := func(required bool) []*discordgo.ApplicationCommandOption {
		return []*discordgo.ApplicationCommandOption{{
			Type:         discordgo.ApplicationCommandOptionChannel,
			Name:         "channel",
			Description:  "Channel, defaults to this one",
			Required:     required,
			ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
		}}
	}
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "list", Description: "Show game channels"},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "add", Description: "Allow a channel", Options: channel(false)},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "remove", Description: "Stop allowing a channel", Options: channel(false)},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "clear", Description: "Allow every channel again"},
		},
	}
}

func (c *ChannelsCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	store := r.Services.Storage
	ch := command.ParseID(r.Value("channel", 0))
	if ch == "" {
		ch = r.ChannelID
	}

	switch r.Sub {
	case "add":
		added, err := store.AllowChannel(r.GuildID, Feature, ch)
		if err != nil {
			return err
		}
		if !added {
			return r.Reply("<#%s> is already a game channel.", ch)
		}
		return r.Reply("🎮 Game commands now work in <#%s>.", ch)
	case "remove":
		err := store.DisallowChannel(r.GuildID, Feature, ch)
		if errors.Is(err, storage.ErrNotFound) {
			return r.Fail("<#%s> isn't a game channel.", ch)
		}
		if err != nil {
			return err
		}
		return r.Reply("<#%s> is no longer a game channel.", ch)
	case "clear":
		if err := store.ClearChannels(r.GuildID, Feature); err != nil {
			return err
		}
		return r.Reply("Game commands work everywhere again.")
	}

	ids, err := store.AllowedChannels(r.GuildID, Feature)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return r.Reply("Game commands work in every channel.")
	}
	mentions := make([]string, len(ids))
	for i, id := range ids {
		mentions[i] = "<#" + id + ">"
	}
	return r.Out.ReplyEmbed(command.Embed("🎮 Game channels", strings.Join(mentions, "\n")))
}

func init() {
	command.RegisterCommand(&ChannelsCommand{}, middleware.Standard()...)
}
