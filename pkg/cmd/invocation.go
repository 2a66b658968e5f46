// Package cmd is the transport-neutral command core. A command has a name, a
// description and Run; adapters decide how it is registered and dispatched
// (slash interaction, prefix message, CLI).
package cmd

import "context"

// Invocation is what a runner hands to a command: positional arguments and an
// adapter specific payload in Data.
type Invocation struct {
	Args []string
	Data any
}

// Command is identity plus execution. Permissions, subcommands and platform
// registration live in adapters.
type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}
