package discord

import (
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// hashCommand returns a deterministic SHA-1 of a command's stable fields,
// used to skip re-registration when nothing has changed.
func hashCommand(c *discordgo.ApplicationCommand) string {
	stable := map[string]any{
		"name":        c.Name,
		"description": c.Description,
		"type":        c.Type,
	}
	if len(c.Options) > 0 {
		stable["options"] = normalizeOptions(c.Options)
	}
	data, _ := json.Marshal(stable)
	return fmt.Sprintf("%x", sha1.Sum(data))
}

func normalizeOptions(opts []*discordgo.ApplicationCommandOption) []map[string]any {
	out := make([]map[string]any, len(opts))
	for i, o := range opts {
		entry := map[string]any{
			"name":        o.Name,
			"description": o.Description,
			"type":        o.Type,
			"required":    o.Required,
		}
		if len(o.Choices) > 0 {
			choices := make([]map[string]any, len(o.Choices))
			for j, ch := range o.Choices {
				choices[j] = map[string]any{"name": ch.Name, "value": ch.Value}
			}
			entry["choices"] = choices
		}
		if o.MinValue != nil {
			entry["min"] = *o.MinValue
		}
		if o.MaxValue != 0 {
			entry["max"] = o.MaxValue
		}
		if len(o.Options) > 0 {
			entry["options"] = normalizeOptions(o.Options)
		}
		out[i] = entry
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i]["name"].(string) < out[j]["name"].(string)
	})
	return out
}

// hashStore keeps the last registered hash of every command per guild, one
// JSON file per guild under dir.
type hashStore struct {
	dir string
}

func (h hashStore) path(guildID string) string {
	return filepath.Join(h.dir, guildID+".json")
}

func (h hashStore) load(guildID string) map[string]string {
	out := make(map[string]string)
	if data, err := os.ReadFile(h.path(guildID)); err == nil {
		_ = json.Unmarshal(data, &out)
	}
	return out
}

func (h hashStore) save(guildID string, hashes map[string]string) {
	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		log.Warnf("[WARN] command hash dir: %v", err)
		return
	}
	data, err := json.MarshalIndent(hashes, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(h.path(guildID), data, 0o644); err != nil {
		log.WithField("guild", guildID).Warnf("[WARN] save command hashes: %v", err)
	}
}
