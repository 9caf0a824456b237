package eventsourcing

import "strconv"

// StreamState is the expectation a writer has about a stream when appending.
type StreamState interface {
	isStreamState()
	String() string
}

// Any appends regardless of the current stream state.
type Any struct{}

// NoStream requires the stream to be empty.
type NoStream struct{}

// StreamExists requires the stream to hold at least one event.
type StreamExists struct{}

// Revision requires the last event of the stream to have exactly this version.
type Revision uint64

func (Any) isStreamState()          {}
func (NoStream) isStreamState()     {}
func (StreamExists) isStreamState() {}
func (Revision) isStreamState()     {}

func (Any) String() string          { return "any" }
func (NoStream) String() string     { return "no stream" }
func (StreamExists) String() string { return "stream exists" }
func (r Revision) String() string   { return strconv.FormatUint(uint64(r), 10) }
