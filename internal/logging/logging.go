// Package logging provides a thin helper for tagging the process-wide
// charmbracelet/log logger with a component name, so every subsystem's log
// lines carry a consistent component field without each one reimplementing
// the With() call.
package logging

import "github.com/charmbracelet/log"

// Component returns a logger derived from base, pre-tagged component=name.
// base is the single *log.Logger constructed at startup (cmd/server.go,
// cmd/cmd.go); Component does not hold package-level state of its own, so
// callers stay explicit about which logger backs a subsystem instead of
// reaching through a process-wide singleton.
func Component(base *log.Logger, name string) *log.Logger {
	return base.With("component", name)
}
