package leveling

import (
	"errors"
	"testing"

	"izumi/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roleLog struct {
	added, removed []string
	fail           string
}

func (r *roleLog) GuildMemberRoleAdd(_, _, roleID string, _ ...discordgo.RequestOption) error {
	if roleID == r.fail {
		return errors.New("missing access")
	}
	r.added = append(r.added, roleID)
	return nil
}

func (r *roleLog) GuildMemberRoleRemove(_, _, roleID string, _ ...discordgo.RequestOption) error {
	r.removed = append(r.removed, roleID)
	return nil
}

func TestPlanRoles(t *testing.T) {
	bindings := []storage.LevelRole{{Level: 5, RoleID: "r5"}, {Level: 10, RoleID: "r10"}, {Level: 20, RoleID: "r20"}}

	c := PlanRoles(bindings, 12, []string{"r20", "other"})
	assert.Equal(t, []string{"r5", "r10"}, c.Added)
	assert.Equal(t, []string{"r20"}, c.Removed)

	c = PlanRoles(bindings, 3, nil)
	assert.Empty(t, c.Added)
	assert.Empty(t, c.Removed)
}

func TestSyncRoles(t *testing.T) {
	l := newLeveler(t)
	require.NoError(t, l.store.SetLevelRole("g", 5, "r5"))
	require.NoError(t, l.store.SetLevelRole("g", 10, "r10"))

	ed := &roleLog{}
	done, err := SyncRoles(ed, l.store, "g", "u", 10, []string{"r5"})
	require.NoError(t, err)
	assert.Equal(t, []string{"r10"}, done.Added)
	assert.Equal(t, []string{"r10"}, ed.added)

	ed = &roleLog{fail: "r5"}
	_, err = SyncRoles(ed, l.store, "g", "u", 10, nil)
	assert.ErrorContains(t, err, "add role r5")
}
