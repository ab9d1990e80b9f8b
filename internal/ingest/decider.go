package ingest

import (
	"context"

	"github.com/therealutkarshpriyadarshi/logview/pkg/types"
)

// Decision answers the line limit prompt
type Decision int

const (
	// Continue ingests the rest of the file
	Continue Decision = iota
	// Abort stops the load and keeps the records ingested so far
	Abort
)

func (d Decision) String() string {
	if d == Abort {
		return "abort"
	}
	return "continue"
}

// Decider is consulted at most once per load, when a file grows past the
// configured line limit. lines is the number of the first line over it.
type Decider interface {
	Decide(ctx context.Context, src types.LogSource, lines int) Decision
}

// DeciderFunc adapts a function to Decider
type DeciderFunc func(ctx context.Context, src types.LogSource, lines int) Decision

// Decide calls f
func (f DeciderFunc) Decide(ctx context.Context, src types.LogSource, lines int) Decision {
	return f(ctx, src, lines)
}

var (
	// AlwaysContinue never truncates
	AlwaysContinue Decider = DeciderFunc(func(context.Context, types.LogSource, int) Decision { return Continue })

	// AlwaysAbort truncates every file at the limit
	AlwaysAbort Decider = DeciderFunc(func(context.Context, types.LogSource, int) Decision { return Abort })
)
