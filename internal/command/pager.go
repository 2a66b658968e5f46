package command

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// ViewTimeout is how long a paginated view stays interactive. Pressing a
// button after that only disables the controls.
const ViewTimeout = 180 * time.Second

// PageID encodes a page button as "<command>:<page>:<created unix>". The
// command name routes the click back to its handler.
func PageID(command string, page int, created time.Time) string {
	return fmt.Sprintf("%s:%d:%d", command, page, created.Unix())
}

// ParsePageID decodes a PageID.
func ParsePageID(id string) (command string, page int, created time.Time, ok bool) {
	parts := strings.Split(id, ":")
	if len(parts) != 3 {
		return "", 0, time.Time{}, false
	}
	page, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, time.Time{}, false
	}
	ts, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", 0, time.Time{}, false
	}
	return parts[0], page, time.Unix(ts, 0), true
}

// PageButtons builds the previous/next row for page (0 based) of pages.
func PageButtons(command string, page, pages int, created time.Time, expired bool) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{
			Label:    "◀",
			Style:    discordgo.SecondaryButton,
			CustomID: PageID(command, page-1, created),
			Disabled: expired || page <= 0,
		},
		discordgo.Button{
			Label:    fmt.Sprintf("%d / %d", page+1, max(pages, 1)),
			Style:    discordgo.SecondaryButton,
			CustomID: command + ":noop",
			Disabled: true,
		},
		discordgo.Button{
			Label:    "▶",
			Style:    discordgo.SecondaryButton,
			CustomID: PageID(command, page+1, created),
			Disabled: expired || page >= pages-1,
		},
	}}}
}

// Expired reports whether a view created at created has timed out.
func Expired(created, now time.Time) bool {
	return now.Sub(created) > ViewTimeout
}

// UpdateView replaces the message a component belongs to.
func UpdateView(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: components,
		},
	})
}
