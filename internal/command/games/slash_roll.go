package games

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"

	"izumi/internal/command"
	"izumi/internal/middleware"
	"izumi/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

var (
	tokenRegex = regexp.MustCompile(`(?i)(\d*d\d+|\d+|[+\-*/])`)
	diceRegex  = regexp.MustCompile(`(?i)^(\d*)d(\d+)$`)
	validOps   = map[string]bool{"+": true, "-": true, "*": true, "/": true}
)

// intn rolls one die; tests pin it.
var intn = rand.IntN

type term struct {
	value int
	desc  string
	op    string
}

type Roll struct {
	Total  int
	Detail string
}

// Evaluate rolls a formula like 2d6+1d4*2-3. Products and quotients bind
// tighter than sums.
func Evaluate(formula string) (Roll, error) {
	formula = strings.ToLower(strings.ReplaceAll(formula, " ", ""))
	tokens := tokenRegex.FindAllString(formula, -1)
	if len(tokens) == 0 || strings.Join(tokens, "") != formula {
		return Roll{}, fmt.Errorf("can't parse %q, try something like `2d6+1d4*2-3`", formula)
	}

	var terms []term
	currentOp := "+"
	for _, token := range tokens {
		if validOps[token] {
			currentOp = token
			continue
		}
		val, desc, err := evaluateToken(token)
		if err != nil {
			return Roll{}, fmt.Errorf("`%s`: %w", token, err)
		}
		terms = append(terms, term{value: val, desc: desc, op: currentOp})
		currentOp = "+"
	}

	var merged []term
	for _, t := range terms {
		if t.op != "*" && t.op != "/" {
			merged = append(merged, t)
			continue
		}
		if len(merged) == 0 {
			return Roll{}, fmt.Errorf("can't multiply or divide by nothing")
		}
		prev := merged[len(merged)-1]
		merged = merged[:len(merged)-1]
		var v int
		if t.op == "*" {
			v = prev.value * t.value
		} else {
			if t.value == 0 {
				return Roll{}, fmt.Errorf("can't divide by zero")
			}
			v = prev.value / t.value
		}
		merged = append(merged, term{value: v, desc: fmt.Sprintf("%s %s %s", prev.desc, t.op, t.desc), op: prev.op})
	}

	var out Roll
	var details []string
	for _, t := range merged {
		if len(details) > 0 {
			details = append(details, fmt.Sprintf(" %s ", t.op))
		}
		details = append(details, t.desc)
		if t.op == "-" {
			out.Total -= t.value
		} else {
			out.Total += t.value
		}
	}
	out.Detail = strings.Join(details, "")
	return out, nil
}

func evaluateToken(token string) (int, string, error) {
	if m := diceRegex.FindStringSubmatch(token); m != nil {
		count := 1
		if m[1] != "" {
			n, err := strconv.Atoi(m[1])
			if err != nil || n < 1 {
				return 0, "", fmt.Errorf("invalid dice count")
			}
			count = n
		}
		sides, err := strconv.Atoi(m[2])
		if err != nil || sides < 2 {
			return 0, "", fmt.Errorf("invalid dice sides")
		}
		if count > 100 || sides > 1000 {
			return 0, "", fmt.Errorf("too big, max 100 dice of 1000 sides")
		}
		var sum int
		rolls := make([]string, count)
		for i := range rolls {
			v := intn(sides) + 1
			sum += v
			rolls[i] = strconv.Itoa(v)
		}
		return sum, fmt.Sprintf("`%s` [%s]", token, strings.Join(rolls, ", ")), nil
	}
	num, err := strconv.Atoi(token)
	if err != nil {
		return 0, "", fmt.Errorf("not a number or dice")
	}
	return num, fmt.Sprintf("`%d`", num), nil
}

type RollCommand struct{}

func (c *RollCommand) Name() string             { return "roll" }
func (c *RollCommand) Description() string      { return "Roll dice like `2d20+1d6-2`" }
func (c *RollCommand) Group() string            { return "games" }
func (c *RollCommand) Category() string         { return "🎮 Games" }
func (c *RollCommand) UserPermissions() []int64 { return nil }

func (c *RollCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "formula",
			Description: "Supports `2d6+1d4*2-3` and similar math",
			Required:    true,
		}},
	}
}

func (c *RollCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	formula := r.Text("formula", 0)
	if formula == "" {
		formula = "1d20"
	}
	roll, err := Evaluate(formula)
	if err != nil {
		return r.Fail("%s", capitalize(err.Error()))
	}
	return r.Out.ReplyEmbed(command.Embed("🎲 Dice Roll",
		fmt.Sprintf("**Input**: `%s`\n**Calculation**: %s\n**Result**: **%d**", formula, roll.Detail, roll.Total)))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func init() {
	command.RegisterCommand(&RollCommand{}, append([]cmd.Middleware{middleware.WithChannelGate(Feature)}, middleware.Standard()...)...)
}
