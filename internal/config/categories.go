package config

// AppName is shown in help and status output.
const AppName = "Izumi"

// CategoryWeights orders command categories in help output.
var CategoryWeights = map[string]int{
	"🕯️ Information": 0,
	"💬 Chat":         5,
	"🛠️ Utility":     10,
	"🧠 Memory":       20,
	"📈 Leveling":     30,
	"🎂 Birthdays":    35,
	"🎭 Social":       40,
	"🎭 Roles":        45,
	"🎮 Games":        48,
	"🛡️ Moderation":  50,
	"⚙️ Settings":    55,
	"🛠️ Maintenance": 60,
}
