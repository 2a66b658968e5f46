// Package social holds the reaction GIF commands.
package social

import (
	"fmt"
	"math/rand/v2"

	"izumi/internal/command"
	"izumi/internal/middleware"

	"github.com/bwmarrin/discordgo"
)

// pick chooses a GIF index; tests pin it.
var pick = rand.IntN

type action struct {
	name, desc, verb, emoji string
	gifs                    []string
}

var actions = []action{
	{
		name: "kiss", desc: "Kiss someone", verb: "kisses", emoji: "💋",
		gifs: []string{
			"https://media.tenor.com/F02Ep3b2jJgAAAAC/cute-kawai.gif",
			"https://media.tenor.com/dn_KuOESmUYAAAAC/engage-kiss-anime-kiss.gif",
			"https://media.tenor.com/9u2vmryDP-cAAAAC/horimiya-animes.gif",
			"https://media.tenor.com/YHxJ9NvLYKsAAAAC/anime-kiss.gif",
		},
	},
	{
		name: "hug", desc: "Hug someone", verb: "hugs", emoji: "🤗",
		gifs: []string{
			"https://media.tenor.com/kCZjTqCKiggAAAAC/hug.gif",
			"https://media.tenor.com/G_IvONY8EFgAAAAC/aharen-san-anime-hug.gif",
			"https://media.tenor.com/J7eGDvGeP9IAAAAC/enage-kiss-anime-hug.gif",
			"https://media.tenor.com/IpGw3LOZi2wAAAAC/hugtrip.gif",
		},
	},
	{
		name: "slap", desc: "Slap someone", verb: "slaps", emoji: "👋",
		gifs: []string{
			"https://media.tenor.com/Ws6Dm1ZW_vMAAAAC/girl-slap.gif",
			"https://media.tenor.com/XiYuU9h44-AAAAAC/anime-slap-mad.gif",
			"https://media.tenor.com/eU5H6GbVjrcAAAAC/slap-jjk.gif",
			"https://media.tenor.com/rVXByOZKidMAAAAC/anime-slap.gif",
		},
	},
	{
		name: "handhold", desc: "Hold someone's hand", verb: "holds hands with", emoji: "🤝",
		gifs: []string{
			"https://media.tenor.com/WUZAwo5KFdMAAAAC/love-holding-hands.gif",
			"https://media.tenor.com/IjKm6pl3bvkAAAAC/anime-hand-holding.gif",
			"https://media.tenor.com/8CR8kVaKzGUAAAAC/holding-hands-anime.gif",
		},
	},
}

type SocialCommand struct {
	a action
}

func (c *SocialCommand) Name() string             { return c.a.name }
func (c *SocialCommand) Description() string      { return c.a.desc }
func (c *SocialCommand) Group() string            { return "social" }
func (c *SocialCommand) Category() string         { return "🎭 Social" }
func (c *SocialCommand) UserPermissions() []int64 { return nil }

func (c *SocialCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: "Who",
			Required:    true,
		}},
	}
}

func (c *SocialCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	id := command.ParseID(r.Value("user", 0))
	if id == "" {
		return r.Fail("Who? Mention someone, like `%s @friend`.", c.a.name)
	}
	line := fmt.Sprintf("%s <@%s> %s <@%s>", c.a.emoji, r.UserID, c.a.verb, id)
	if id == r.UserID {
		line = fmt.Sprintf("%s <@%s> %s... themselves?", c.a.emoji, r.UserID, c.a.verb)
	}
	embed := command.Embed("", line)
	embed.Image = &discordgo.MessageEmbedImage{URL: c.a.gifs[pick(len(c.a.gifs))]}
	return r.Out.ReplyEmbed(embed)
}

func init() {
	for _, a := range actions {
		command.RegisterCommand(&SocialCommand{a: a}, middleware.Standard()...)
	}
}
