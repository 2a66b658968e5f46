package command

type SystemEventType string

const (
	SystemEventRefreshCommands SystemEventType = "refresh_commands"
)

// SystemEvent asks the platform adapter to do something on a command's
// behalf. Target is "all", "group:<name>" or a command name.
type SystemEvent struct {
	Type    SystemEventType
	GuildID string
	Target  string
}

var systemEventBus = make(chan SystemEvent, 16)

// PublishSystemEvent never blocks; events beyond the buffer are dropped.
func PublishSystemEvent(evt SystemEvent) {
	select {
	case systemEventBus <- evt:
	default:
	}
}

func SystemEvents() <-chan SystemEvent {
	return systemEventBus
}
