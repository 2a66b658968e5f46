package storage

import "time"

const commandHistoryLimit = 20

type CommandHistoryRecord struct {
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	GuildName   string    `json:"guild_name"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Command     string    `json:"command"`
	Param       string    `json:"param"`
	Datetime    time.Time `json:"datetime"`
}

type GuildUsage struct {
	Commands map[string]int         `json:"commands"`
	History  []CommandHistoryRecord `json:"cmd_history"`
}

func newGuildUsage() *GuildUsage { return &GuildUsage{Commands: map[string]int{}} }

// AppendCommandToHistory counts the command and keeps the last few invocations.
func (s *Storage) AppendCommandToHistory(guildID string, command CommandHistoryRecord) error {
	return update(s, DocAPIUsage, guildID, newGuildUsage, func(u *GuildUsage) error {
		if u.Commands == nil {
			u.Commands = map[string]int{}
		}
		u.Commands[command.Command]++
		u.History = append(u.History, command)
		if len(u.History) > commandHistoryLimit {
			u.History = u.History[len(u.History)-commandHistoryLimit:]
		}
		return nil
	})
}

func (s *Storage) FetchCommandHistory(guildID string) ([]CommandHistoryRecord, error) {
	var out []CommandHistoryRecord
	err := view(s, DocAPIUsage, guildID, newGuildUsage, func(u *GuildUsage) {
		out = append(out, u.History...)
	})
	return out, err
}

func (s *Storage) CommandUsage(guildID string) (map[string]int, error) {
	out := map[string]int{}
	err := view(s, DocAPIUsage, guildID, newGuildUsage, func(u *GuildUsage) {
		for k, v := range u.Commands {
			out[k] = v
		}
	})
	return out, err
}
