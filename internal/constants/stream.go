package constants

// Stream identifies one of the two persisted activity streams.
type Stream string

const (
	// StreamAggregate holds one population spike total per step.
	StreamAggregate Stream = "aggregate"

	// StreamDetail holds per-step spike flags of the observed units.
	StreamDetail Stream = "detail"
)

// Valid returns true if the stream is a recognized value.
func (s Stream) Valid() bool {
	switch s {
	case StreamAggregate, StreamDetail:
		return true
	}
	return false
}

// FileName returns the file the stream is written to inside a run directory.
func (s Stream) FileName() string {
	switch s {
	case StreamAggregate:
		return "sum_spikes.txt"
	case StreamDetail:
		return "spikes.txt"
	}
	return ""
}

// String returns the string representation of the stream.
func (s Stream) String() string {
	return string(s)
}
