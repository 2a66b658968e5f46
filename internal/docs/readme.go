// Package docs renders the command reference of README.md from the
// command registry.
package docs

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/template"

	"izumi/internal/command"
	"izumi/pkg/cmd"

	log "github.com/sirupsen/logrus"
)

// DefaultTemplate is used when no README.md.tmpl exists.
const DefaultTemplate = `# {{.App}}

A Discord companion that remembers the people in your server, joins their
conversations and keeps a few community tools at hand.

Every command works as a slash command and with the {{printf "%q" .Prefix}} prefix.

## Commands

{{.CommandSections}}`

// Sections renders the commands grouped by category, categories ordered by
// weight and commands by name.
func Sections(commands []cmd.Command, weights map[string]int, prefix string) string {
	byCat := map[string][]cmd.Command{}
	for _, c := range commands {
		cat := ""
		if m, ok := command.Meta(c); ok {
			cat = m.Category()
		}
		byCat[cat] = append(byCat[cat], c)
	}
	cats := make([]string, 0, len(byCat))
	for cat := range byCat {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool {
		wi, wj := weights[cats[i]], weights[cats[j]]
		if wi == wj {
			return cats[i] < cats[j]
		}
		return wi < wj
	})

	var buf bytes.Buffer
	for i, cat := range cats {
		if i > 0 {
			buf.WriteString("\n")
		}
		fmt.Fprintf(&buf, "### %s\n\n", cat)
		list := byCat[cat]
		sort.Slice(list, func(a, b int) bool { return list[a].Name() < list[b].Name() })
		for _, c := range list {
			fmt.Fprintf(&buf, "- **/%s**: %s", c.Name(), c.Description())
			if aliases := shortcuts(c, prefix); aliases != "" {
				fmt.Fprintf(&buf, " (%s)", aliases)
			}
			buf.WriteString("\n")
		}
	}
	return buf.String()
}

func shortcuts(c cmd.Command, prefix string) string {
	ap, ok := cmd.Root(c).(command.AliasProvider)
	if !ok {
		return ""
	}
	names := make([]string, 0)
	for alias := range ap.Aliases() {
		names = append(names, "`"+prefix+alias+"`")
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// Render executes tmpl with the app name, prefix and command sections.
func Render(w io.Writer, tmpl, app, prefix string, sections string) error {
	t, err := template.New("readme").Parse(tmpl)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	return t.Execute(w, struct {
		App             string
		Prefix          string
		CommandSections string
	}{app, prefix, sections})
}

// UpdateReadme writes outPath from tmplPath, or DefaultTemplate when
// tmplPath does not exist.
func UpdateReadme(tmplPath, outPath, app, prefix string, weights map[string]int) error {
	tmpl := DefaultTemplate
	if data, err := os.ReadFile(tmplPath); err == nil {
		tmpl = string(data)
	}
	var buf bytes.Buffer
	if err := Render(&buf, tmpl, app, prefix, Sections(command.AllCommands(), weights, prefix)); err != nil {
		return err
	}
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return err
	}
	log.Infof("[INFO] %s updated with %d commands", outPath, len(command.AllCommands()))
	return nil
}
