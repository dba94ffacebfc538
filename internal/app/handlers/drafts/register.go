package drafts

import (
	"context"

	"motorent/internal/app/commands"
	"motorent/internal/app/queries"
)

// Register binds every draft handler on the given buses.
func Register(cmdBus *commands.InMemoryBus, queryBus *queries.InMemoryBus, h *Handlers) {
	registerCommand(cmdBus, h.StartDraft)
	registerCommand(cmdBus, h.UpdateDetails)
	registerCommand(cmdBus, h.TapDate)
	registerCommand(cmdBus, h.AddWindow)
	registerCommand(cmdBus, h.RemoveWindow)
	registerCommand(cmdBus, h.UpdateWindow)
	registerCommand(cmdBus, h.SetAllDay)
	registerCommand(cmdBus, h.ResetDates)
	registerCommand(cmdBus, h.SubmitDraft)
	registerCommand(cmdBus, h.AbandonDraft)
	registerQuery(queryBus, h.GetDraft)
}

func registerCommand[C commands.Command, R any](bus *commands.InMemoryBus, fn func(context.Context, C) (R, error)) {
	commands.Register[C, R](bus, commands.HandlerFunc[C, R](fn))
}

func registerQuery[Q queries.Query, R any](bus *queries.InMemoryBus, fn func(context.Context, Q) (R, error)) {
	queries.Register[Q, R](bus, queries.HandlerFunc[Q, R](fn))
}
