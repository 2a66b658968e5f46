package command

import (
	"time"

	"izumi/internal/config"
	"izumi/internal/contextbuild"
	"izumi/internal/leveling"
	"izumi/internal/lyrics"
	"izumi/internal/memory"
	"izumi/internal/orchestrator"
	"izumi/internal/reminder"
	"izumi/internal/scheduler"
	"izumi/internal/storage"
	"izumi/pkg/jobmgr"
)

// Services is everything a command may touch. Fields a command does not
// need may be nil in tests.
type Services struct {
	Config    *config.Config
	Memory    *memory.Store
	Storage   *storage.Storage
	Chat      *orchestrator.Orchestrator
	Context   *contextbuild.Builder
	Leveler   *leveling.Leveler
	Reminders *reminder.Service
	Lyrics    *lyrics.Library
	Scheduler *scheduler.Scheduler
	Jobs      *jobmgr.Manager

	// Stop ends the process; restart asks the supervisor to start it again.
	Stop    func(restart bool)
	Started time.Time
}

// IsOwner reports whether userID is the configured owner.
func (s *Services) IsOwner(userID string) bool {
	return s != nil && s.Config != nil && s.Config.OwnerID != "" && s.Config.OwnerID == userID
}
