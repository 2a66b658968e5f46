package command

import (
	"strings"
	"unicode"

	"izumi/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

// ParsePrefix splits a prefix command into the typed name and its arguments.
// Double quotes group words into one argument.
func ParsePrefix(content, prefix string) (name string, args []string, ok bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

// Fields splits s on white space, keeping "quoted text" together.
func Fields(s string) []string {
	var out []string
	var cur strings.Builder
	quoted, has := false, false
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
			has = true
		case unicode.IsSpace(r) && !quoted:
			if has {
				out = append(out, cur.String())
				cur.Reset()
				has = false
			}
		default:
			cur.WriteRune(r)
			has = true
		}
	}
	if has {
		out = append(out, cur.String())
	}
	return out
}

// ResolveSub picks the subcommand of a prefix run: the alias target when
// typed is an alias, else the first argument when it names a subcommand.
func ResolveSub(c cmd.Command, typed string, args []string) (string, []string) {
	if sub, ok := AliasTarget(c, typed); ok && sub != "" {
		return sub, args
	}
	if len(args) == 0 {
		return "", args
	}
	sp, ok := cmd.Root(c).(SlashProvider)
	if !ok {
		return "", args
	}
	def := sp.SlashDefinition()
	if def == nil {
		return "", args
	}
	for _, o := range def.Options {
		if o.Type == discordgo.ApplicationCommandOptionSubCommand && strings.EqualFold(o.Name, args[0]) {
			return o.Name, args[1:]
		}
	}
	return "", args
}
