package eventsourcing

// Command is an intention addressed to exactly one aggregate.
type Command interface {
	AggregateID() string
}
