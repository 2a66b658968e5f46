// Package birthday holds the birthday commands. Announcements themselves are
// made by the scheduler.
package birthday

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"izumi/internal/command"
	mem "izumi/internal/memory"
	"izumi/internal/middleware"
	"izumi/internal/scheduler"
	"izumi/internal/storage"

	"github.com/bwmarrin/discordgo"
)

var facts = []string{
	"The most common birthday in many countries falls in mid September.",
	"About one in 1,461 people is born on February 29.",
	"In a room of just 23 people there is a better than even chance two share a birthday.",
	"The Happy Birthday song was once under copyright until 2016.",
	"Ancient Romans celebrated the birthdays of friends and family, not only of gods and emperors.",
	"Birthday candles may come from the Greeks, who lit candles on cakes for Artemis.",
	"In Korea, a baby's first birthday, doljanchi, is one of the biggest celebrations of their life.",
	"In Vietnam, everyone traditionally celebrates turning a year older on Tết, the lunar new year.",
	"The world's largest birthday cake weighed over 58 tonnes.",
	"Pulling on earlobes, once per year of age, is a birthday custom in Hungary.",
}

// rnd picks facts; tests pin it.
var rnd = rand.Float64

type BirthdayCommand struct{}

func (c *BirthdayCommand) Name() string             { return "birthday" }
func (c *BirthdayCommand) Description() string      { return "Birthdays: set yours, see who's next" }
func (c *BirthdayCommand) Group() string            { return "birthday" }
func (c *BirthdayCommand) Category() string         { return "🎂 Birthdays" }
func (c *BirthdayCommand) UserPermissions() []int64 { return nil }

func (c *BirthdayCommand) Aliases() map[string]string {
	return map[string]string{
		"setbirthday":       "set",
		"birthdays":         "list",
		"birthdaycountdown": "countdown",
		"notifybirthday":    "channel",
		"randombdfact":      "fact",
	}
}

func (c *BirthdayCommand) SlashDefinition() *discordgo.ApplicationCommand {
	opt := func(t discordgo.ApplicationCommandOptionType, name, desc string, required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{Type: t, Name: name, Description: desc, Required: required}
	}
	sub := func(name, desc string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        name,
			Description: desc,
			Options:     opts,
		}
	}
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			sub("set", "Set your birthday",
				opt(discordgo.ApplicationCommandOptionString, "date", "MM-DD or YYYY-MM-DD", true)),
			sub("remove", "Forget your birthday"),
			sub("show", "Show a member's birthday",
				opt(discordgo.ApplicationCommandOptionUser, "user", "Member, defaults to you", false)),
			sub("list", "Upcoming birthdays"),
			sub("countdown", "Days until a member's birthday",
				opt(discordgo.ApplicationCommandOptionUser, "user", "Member, defaults to you", false)),
			sub("channel", "Announce birthdays in a channel",
				opt(discordgo.ApplicationCommandOptionChannel, "channel", "Channel, defaults to this one", false)),
			sub("fact", "A random birthday fact"),
		},
	}
}

func (c *BirthdayCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	store := r.Services.Storage
	now := time.Now()
	if r.Services.Memory != nil {
		now = r.Services.Memory.Now()
	}

	switch r.Sub {
	case "set":
		raw := r.Value("date", 0)
		b, err := mem.ParseBirthday(raw)
		if err != nil {
			return r.Fail("I couldn't read %q. Use MM-DD or YYYY-MM-DD, e.g. `setbirthday 06-02`.", raw)
		}
		if err := store.SetBirthday(r.GuildID, r.UserID, b); err != nil {
			return err
		}
		if r.Services.Memory != nil {
			r.Services.Memory.EnsureUser(r.UserID, r.UserName, "", func(p *mem.UserProfile) {
				p.BasicInfo.Birthday = &b
				if age := scheduler.Age(b, now); mem.ValidAge(age) {
					p.BasicInfo.Age = age
				}
			})
		}
		return r.Reply("🎂 Got it! Your birthday is %s.", Format(b))
	case "remove":
		err := store.RemoveBirthday(r.GuildID, r.UserID)
		if errors.Is(err, storage.ErrNotFound) {
			return r.Fail("You haven't set a birthday.")
		}
		if err != nil {
			return err
		}
		return r.Reply("🗑️ Your birthday is forgotten.")
	case "", "show":
		id := r.Target("user", 0)
		b, found, err := store.GetBirthday(r.GuildID, id)
		if err != nil {
			return err
		}
		if !found {
			return r.Reply("<@%s> hasn't set a birthday. Use `setbirthday MM-DD`.", id)
		}
		return r.Reply("🎂 <@%s>'s birthday is %s.", id, Format(b))
	case "list":
		all, err := store.Birthdays(r.GuildID)
		if err != nil {
			return err
		}
		if len(all) == 0 {
			return r.Reply("No birthdays are set yet.")
		}
		return r.Out.ReplyEmbed(command.Embed("🎂 Upcoming birthdays", Upcoming(all, now, 15)))
	case "countdown":
		id := r.Target("user", 0)
		b, found, err := store.GetBirthday(r.GuildID, id)
		if err != nil {
			return err
		}
		if !found {
			return r.Reply("<@%s> hasn't set a birthday.", id)
		}
		if scheduler.Celebrating(b, now) {
			return r.Reply("🎉 It's <@%s>'s birthday today!", id)
		}
		return r.Reply("⏳ %s until <@%s>'s birthday (%s).", Countdown(Next(b, now).Sub(now)), id, Format(b))
	case "channel":
		if !r.Can(discordgo.PermissionManageGuild) {
			return r.Fail("You need the Manage Server permission to choose the birthday channel.")
		}
		ch := command.ParseID(r.Value("channel", 0))
		if ch == "" {
			ch = r.ChannelID
		}
		if err := store.SetBirthdayChannel(r.GuildID, ch); err != nil {
			return err
		}
		return r.Reply("📣 Birthdays will be announced in <#%s>.", ch)
	case "fact":
		return r.Reply("🎈 %s", facts[int(rnd()*float64(len(facts)))%len(facts)])
	}
	return r.Fail("Subcommands: set, remove, show, list, countdown, channel, fact")
}

// Next is the start of the next celebration of b at or after now, in now's
// location.
func Next(b mem.Birthday, now time.Time) time.Time {
	at := func(year int) time.Time {
		return time.Date(year, time.Month(b.Month), b.Day, 0, 0, 0, 0, now.Location())
	}
	next := at(now.Year())
	if next.Before(now) {
		next = at(now.Year() + 1)
	}
	return next
}

// Countdown renders a wait as days and hours.
func Countdown(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(math.Ceil(d.Hours())) - days*24
	if hours == 24 {
		days, hours = days+1, 0
	}
	switch {
	case days == 0:
		return fmt.Sprintf("%dh", hours)
	case hours == 0:
		return fmt.Sprintf("%d days", days)
	}
	return fmt.Sprintf("%d days %dh", days, hours)
}

// Format shows a birthday the way people write it.
func Format(b mem.Birthday) string {
	s := time.Month(b.Month).String() + " " + fmt.Sprint(b.Day)
	if b.Year != 0 {
		s += fmt.Sprintf(", %d", b.Year)
	}
	return s
}

// Upcoming lists up to n birthdays in the order they come up.
func Upcoming(all map[string]mem.Birthday, now time.Time, n int) string {
	type entry struct {
		id   string
		b    mem.Birthday
		next time.Time
	}
	var list []entry
	for id, b := range all {
		next := Next(b, now)
		if scheduler.Celebrating(b, now) {
			next = now
		}
		list = append(list, entry{id, b, next})
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].next.Equal(list[j].next) {
			return list[i].next.Before(list[j].next)
		}
		return list[i].id < list[j].id
	})
	var lines []string
	for i, e := range list {
		if i == n {
			lines = append(lines, fmt.Sprintf("…and %d more", len(list)-n))
			break
		}
		line := fmt.Sprintf("**%s** · <@%s>", Format(mem.Birthday{Month: e.b.Month, Day: e.b.Day}), e.id)
		if e.next.Equal(now) {
			line += " 🎉 today"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func init() {
	command.RegisterCommand(&BirthdayCommand{}, middleware.Standard()...)
}
