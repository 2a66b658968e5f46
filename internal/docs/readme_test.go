package docs

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"izumi/internal/command"
	"izumi/pkg/cmd"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fake struct {
	name, cat string
	aliases   map[string]string
}

func (f fake) Name() string               { return f.name }
func (f fake) Description() string        { return f.name + " things" }
func (f fake) Group() string              { return "g" }
func (f fake) Category() string           { return f.cat }
func (f fake) UserPermissions() []int64   { return nil }
func (f fake) Run(any) error              { return nil }
func (f fake) Aliases() map[string]string { return f.aliases }

func commands() []cmd.Command {
	return []cmd.Command{
		&command.DiscordAdapter{Cmd: fake{name: "warn", cat: "Moderation"}},
		&command.DiscordAdapter{Cmd: fake{name: "birthday", cat: "Birthdays", aliases: map[string]string{"setbirthday": "set", "birthdays": "list"}}},
		&command.DiscordAdapter{Cmd: fake{name: "ban", cat: "Moderation"}},
	}
}

func TestSections(t *testing.T) {
	got := Sections(commands(), map[string]int{"Birthdays": 1, "Moderation": 2}, "!")
	want := "### Birthdays\n\n" +
		"- **/birthday**: birthday things (`!birthdays`, `!setbirthday`)\n" +
		"\n### Moderation\n\n" +
		"- **/ban**: ban things\n" +
		"- **/warn**: warn things\n"
	assert.Equal(t, want, got)
}

func TestRenderDefaultTemplate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, DefaultTemplate, "Izumi", "!", "### X\n"))
	out := buf.String()
	assert.Contains(t, out, "# Izumi")
	assert.Contains(t, out, `"!" prefix`)
	assert.Contains(t, out, "## Commands\n\n### X\n")
}

func TestUpdateReadmeUsesTemplateFile(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "README.md.tmpl")
	out := filepath.Join(dir, "README.md")
	require.NoError(t, os.WriteFile(tmpl, []byte("{{.App}} via {{.Prefix}}\n"), 0o644))

	require.NoError(t, UpdateReadme(tmpl, out, "Izumi", "?", nil))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "Izumi via ?\n", string(data))
}
