// Package memory holds the commands that inspect and edit the unified memory
// document: member profiles, the self profile, knowledge and history training.
package memory

import (
	"strings"

	"izumi/internal/command"
	mem "izumi/internal/memory"
)

// resolveUser turns a mention, id or known name into a user id. It reports
// the problem to the caller and returns false when that is not possible.
func resolveUser(r *command.Request, store *mem.Store, name string, i int) (string, bool) {
	raw := r.Value(name, i)
	if id := command.ParseID(raw); id != "" {
		return id, true
	}
	if raw == "" {
		_ = r.Fail("Please mention a member.")
		return "", false
	}
	matches := store.FindByName(raw)
	switch len(matches) {
	case 0:
		_ = r.Fail("I don't know anyone called %q.", raw)
		return "", false
	case 1:
		return matches[0].UserID, true
	}
	var names []string
	for i, m := range matches {
		if i == 5 {
			names = append(names, "…")
			break
		}
		names = append(names, m.Profile.Name())
	}
	_ = r.Fail("%q matches several members: %s. Mention the one you mean.", raw, strings.Join(names, ", "))
	return "", false
}

// ensure edits a profile, creating it when the member is new.
func ensure(r *command.Request, store *mem.Store, id string, fn func(p *mem.UserProfile)) {
	display, username := "", ""
	if id == r.UserID {
		display = r.UserName
	}
	if r.Session != nil && r.Session.State != nil {
		if m, err := r.Session.State.Member(r.GuildID, id); err == nil && m.User != nil {
			username = m.User.Username
			if display == "" {
				display = m.Nick
			}
			if display == "" {
				display = m.User.GlobalName
			}
		}
	}
	store.EnsureUser(id, display, username, fn)
}

func nameFor(store *mem.Store, id string) string {
	if n := store.DisplayName(id); n != "" {
		return n
	}
	return "<@" + id + ">"
}

func clip(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}
