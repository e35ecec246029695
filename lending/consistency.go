package lending

import "context"

// ConsistencyLevel selects which database a read may be served from.
type ConsistencyLevel int

const (
	// StrongConsistency reads from the primary database. It is the default,
	// every unit of work that reads before it writes needs it.
	StrongConsistency ConsistencyLevel = iota

	// EventualConsistency allows reads from a replica. Statistics use it,
	// they tolerate slightly stale data.
	EventualConsistency
)

type contextKey string

// ConsistencyLevelKey is the context key holding the consistency preference.
const ConsistencyLevelKey contextKey = "lending.consistency_level"

// WithStrongConsistency returns a context whose reads go to the primary database.
func WithStrongConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, StrongConsistency)
}

// WithEventualConsistency returns a context whose reads may go to a replica.
//
// Example usage:
//
//	ctx = lending.WithEventualConsistency(ctx)
//	rows, err := store.AllLoans(ctx)
func WithEventualConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, EventualConsistency)
}

// GetConsistencyLevel returns the level stored in ctx, StrongConsistency if none is set.
func GetConsistencyLevel(ctx context.Context) ConsistencyLevel {
	if level, ok := ctx.Value(ConsistencyLevelKey).(ConsistencyLevel); ok {
		return level
	}

	return StrongConsistency
}

func (c ConsistencyLevel) String() string {
	switch c {
	case StrongConsistency:
		return "strong"
	case EventualConsistency:
		return "eventual"
	default:
		return "unknown"
	}
}
