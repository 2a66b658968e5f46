// Package emotion classifies how the bot should feel about a returning user
// by comparing when they last talked to the bot with when they were last
// active in the server.
package emotion

import "time"

// Tag is one emotional mode.
type Tag string

const (
	NewUser          Tag = "new_user"
	Normal           Tag = "normal"
	HappyReturn      Tag = "happy_return"
	Pouty            Tag = "pouty"
	Worried          Tag = "worried"
	BeingIgnored     Tag = "being_ignored"
	CompletelyAbsent Tag = "completely_absent"
)

var instructions = map[Tag]string{
	NewUser:          "You don't know this person yet. Be welcoming and a little curious about them.",
	HappyReturn:      "This person hasn't talked to you for a couple of days. Be genuinely happy they're back, mention you missed chatting.",
	Pouty:            "This person has been chatting in the server today but hasn't talked to you in days. Be a little pouty about it, playfully.",
	Worried:          "Nobody has seen this person for over a week. Show that you were a bit worried and ask if they're okay.",
	BeingIgnored:     "This person is active in the server but has ignored you for over two weeks. Act hurt but forgiving, call it out lightly.",
	CompletelyAbsent: "This person vanished for over a month. Be surprised and emotional to see them again, ask where they've been.",
}

// Result is the evaluated mode. Instruction is empty for Normal.
type Result struct {
	Tag         Tag
	Instruction string
}

// Evaluate classifies a user. lastBot is the last interaction with the bot and
// lastServer the last activity anywhere in the server; zero values mean never.
func Evaluate(now, lastBot, lastServer time.Time) Result {
	if lastBot.IsZero() {
		return result(NewUser)
	}
	dBot := days(now, lastBot)
	dServer := dBot
	if !lastServer.IsZero() {
		dServer = days(now, lastServer)
	}

	switch {
	case dBot > 30 && dServer > 30:
		return result(CompletelyAbsent)
	case dBot > 14 && dServer < 3:
		return result(BeingIgnored)
	case dBot > 7 && dServer > 7:
		return result(Worried)
	case dBot > 3 && dServer < 1:
		return result(Pouty)
	case dBot > 1 && dBot <= 3:
		return result(HappyReturn)
	}
	return result(Normal)
}

func result(t Tag) Result {
	return Result{Tag: t, Instruction: instructions[t]}
}

func days(now, then time.Time) float64 {
	return now.Sub(then).Hours() / 24
}
