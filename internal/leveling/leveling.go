// Package leveling awards experience for chat activity and exposes member
// standing to the context builder.
package leveling

import (
	"math/rand/v2"
	"sort"
	"time"

	"izumi/internal/contextbuild"
	"izumi/internal/storage"

	log "github.com/sirupsen/logrus"
)

// XPToNext is the xp needed to go from level to level+1.
func XPToNext(level int) int {
	return 5*level*level + 50*level + 100
}

// LevelFor converts total xp into a level.
func LevelFor(xp int) int {
	level := 0
	for xp >= XPToNext(level) {
		xp -= XPToNext(level)
		level++
	}
	return level
}

// TotalFor is the total xp at which level starts.
func TotalFor(level int) int {
	total := 0
	for l := 0; l < level; l++ {
		total += XPToNext(l)
	}
	return total
}

// Progress returns xp earned into the current level and the size of that level.
func Progress(xp int) (into, size int) {
	level := LevelFor(xp)
	return xp - TotalFor(level), XPToNext(level)
}

type Config struct {
	Min      int
	Max      int
	Cooldown time.Duration
}

// Leveler awards xp on messages and implements contextbuild.Community.
type Leveler struct {
	store *storage.Storage
	cfg   Config
	rnd   func(n int) int
}

func New(store *storage.Storage, cfg Config) *Leveler {
	if cfg.Max < cfg.Min {
		cfg.Max = cfg.Min
	}
	return &Leveler{store: store, cfg: cfg, rnd: rand.IntN}
}

// Award is the outcome of one message.
type Award struct {
	Gained   int
	Level    int
	LevelUp  bool
	Previous int
}

func (l *Leveler) roll() int {
	if l.cfg.Max == l.cfg.Min {
		return l.cfg.Min
	}
	return l.cfg.Min + l.rnd(l.cfg.Max-l.cfg.Min+1)
}

// OnMessage records activity and awards xp when the member is off cooldown.
func (l *Leveler) OnMessage(guildID, userID string, at time.Time) (Award, error) {
	var a Award
	err := l.store.EditXP(guildID, userID, func(r *storage.XPRecord) {
		r.LastActive = at.Unix()
		if r.LastMessage != 0 && at.Sub(time.Unix(r.LastMessage, 0)) < l.cfg.Cooldown {
			return
		}
		a.Previous = r.Level
		a.Gained = l.roll()
		r.XP += a.Gained
		r.Messages++
		r.LastMessage = at.Unix()
		r.Level = LevelFor(r.XP)
		a.Level = r.Level
		a.LevelUp = r.Level > a.Previous
	})
	if err != nil {
		return Award{}, err
	}
	if a.LevelUp {
		log.WithFields(log.Fields{"guild": guildID, "user": userID}).Infof("[XP] level up %d -> %d", a.Previous, a.Level)
	}
	return a, nil
}

// Standing implements contextbuild.Community.
func (l *Leveler) Standing(guildID, userID string) (contextbuild.Standing, bool) {
	r, ok, err := l.store.GetXP(guildID, userID)
	if err != nil {
		log.Warnf("[XP] read standing: %v", err)
		return contextbuild.Standing{}, false
	}
	warnings, _ := l.store.Warnings(guildID, userID)
	st := contextbuild.Standing{
		Level:    r.Level,
		XP:       r.XP,
		Coins:    r.Coins,
		Cards:    r.Cards,
		Warnings: len(warnings),
	}
	if r.LastActive > 0 {
		st.LastActive = time.Unix(r.LastActive, 0)
	}
	return st, ok || len(warnings) > 0
}

// HistoricMessage is one message seen during a replay.
type HistoricMessage struct {
	UserID string
	At     time.Time
}

// Replay recomputes xp from message history, applying the award cooldown per
// member in chronological order.
func (l *Leveler) Replay(msgs []HistoricMessage) map[string]storage.XPRecord {
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].At.Before(msgs[j].At) })
	out := map[string]storage.XPRecord{}
	for _, m := range msgs {
		r := out[m.UserID]
		if r.LastActive < m.At.Unix() {
			r.LastActive = m.At.Unix()
		}
		if r.LastMessage == 0 || m.At.Sub(time.Unix(r.LastMessage, 0)) >= l.cfg.Cooldown {
			r.XP += l.roll()
			r.Messages++
			r.LastMessage = m.At.Unix()
		}
		out[m.UserID] = r
	}
	for id, r := range out {
		r.Level = LevelFor(r.XP)
		out[id] = r
	}
	return out
}
