package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"izumi/internal/memory"
	"izumi/internal/persona"
	"izumi/internal/storage"

	log "github.com/sirupsen/logrus"
)

// Birthday ping window and cooldown.
const (
	PingWindowStart  = 8  // UTC hour, inclusive
	PingWindowEnd    = 16 // UTC hour, exclusive
	PingCooldownMin  = 4 * time.Hour
	PingCooldownSpan = 2 * time.Hour
)

// Celebrating reports whether now falls in the 24h that start at local
// midnight of b's month and day in now's year. Feb 29 rolls to Mar 1 in
// common years.
func Celebrating(b memory.Birthday, now time.Time) bool {
	if !b.Valid() {
		return false
	}
	start := time.Date(now.Year(), time.Month(b.Month), b.Day, 0, 0, 0, 0, now.Location())
	return !now.Before(start) && now.Before(start.Add(24*time.Hour))
}

// Age is the age turned this year, or 0 when the year is unknown.
func Age(b memory.Birthday, now time.Time) int {
	if b.Year <= 0 || b.Year >= now.Year() {
		return 0
	}
	return now.Year() - b.Year
}

type celebrant struct {
	guildID, channelID, userID string
	birthday                   memory.Birthday
}

// celebrants lists users celebrating now in guilds with a birthday channel.
func (s *Scheduler) celebrants(now time.Time) []celebrant {
	if s.deps.Storage == nil {
		return nil
	}
	var out []celebrant
	guilds := s.deps.Storage.Guilds(storage.DocBirthdays)
	sort.Strings(guilds)
	for _, g := range guilds {
		ch, err := s.deps.Storage.BirthdayChannel(g)
		if err != nil || ch == "" {
			continue
		}
		users, err := s.deps.Storage.Birthdays(g)
		if err != nil {
			log.WithField("guild", g).Warnf("[BDAY] load: %v", err)
			continue
		}
		ids := make([]string, 0, len(users))
		for id := range users {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if Celebrating(users[id], now) {
				out = append(out, celebrant{guildID: g, channelID: ch, userID: id, birthday: users[id]})
			}
		}
	}
	return out
}

// birthdays announces each celebrant once per calendar day, then takes the
// ping opportunity.
func (s *Scheduler) birthdays(ctx context.Context) error {
	now := s.deps.Clock()
	day := now.Format(time.DateOnly)
	for _, c := range s.celebrants(now) {
		first, err := s.deps.Storage.MarkAnnounced(c.guildID, c.userID, day)
		if err != nil {
			log.WithField("guild", c.guildID).Warnf("[BDAY] mark: %v", err)
			continue
		}
		if !first {
			continue
		}
		if _, err := s.deps.Poster.Send(ctx, c.channelID, announcement(c, now)); err != nil {
			log.WithField("channel", c.channelID).Warnf("[BDAY] announce: %v", err)
			continue
		}
		log.WithFields(log.Fields{"guild": c.guildID, "user": c.userID}).Info("[BDAY] announced")
	}
	return s.birthdayPing(ctx)
}

func announcement(c celebrant, now time.Time) string {
	if age := Age(c.birthday, now); age > 0 {
		return fmt.Sprintf("🎂 happy birthday <@%s>!! %d already, hope today's amazing 🎉", c.userID, age)
	}
	return fmt.Sprintf("🎂 happy birthday <@%s>!! hope today's amazing 🎉", c.userID)
}

var pingLines = map[string][]string{
	"excited": {"<@%s> BIRTHDAY PERSON!! are you celebrating yet??", "<@%s> it's still your birthday and i'm still hyped"},
	"sleepy":  {"<@%s> *yawns* happy birthday again... hope it's a cozy one", "<@%s> mmh still your day, go get cake"},
	"moody":   {"<@%s> okay fine i'm in a mood but happy birthday anyway", "<@%s> birthday person gets a pass from my grumpiness today"},
}

var defaultPingLines = []string{
	"<@%s> hope the birthday's going well! did you get cake?",
	"<@%s> birthday check-in: having fun?",
	"<@%s> still your birthday, so still allowed to be spoiled",
}

// birthdayPing sends at most one mood-flavoured ping per run, inside the UTC
// window, respecting a per-user cooldown of 4 to 6 hours.
func (s *Scheduler) birthdayPing(ctx context.Context) error {
	now := s.deps.Clock()
	if h := now.UTC().Hour(); h < PingWindowStart || h >= PingWindowEnd {
		return nil
	}
	var eligible []celebrant
	for _, c := range s.celebrants(now) {
		if _, ok := s.pinged.Get(c.guildID + ":" + c.userID); !ok {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return nil
	}
	c := eligible[pick(s.deps.Rand(), len(eligible))]

	var self *memory.SelfProfile
	if s.deps.Memory != nil {
		self = s.deps.Memory.Self()
	}
	lines, ok := pingLines[persona.DailyMood(now, self).Name]
	if !ok {
		lines = defaultPingLines
	}
	text := fmt.Sprintf(lines[pick(s.deps.Rand(), len(lines))], c.userID)
	if _, err := s.deps.Poster.Send(ctx, c.channelID, text); err != nil {
		return fmt.Errorf("birthday ping: %w", err)
	}
	cooldown := PingCooldownMin + time.Duration(s.deps.Rand()*float64(PingCooldownSpan))
	s.pinged.Set(c.guildID+":"+c.userID, now, cooldown)
	return nil
}

func pick(r float64, n int) int {
	i := int(r * float64(n))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
