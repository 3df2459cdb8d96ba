// Package reporter implements the reporter sink contract and its concrete
// CSV, SQLite, and binary event-log implementations. Grounded on
// logger.go's DataLogger interface, generalized from a
// channel-of-packages-per-record-kind shape to a single synchronous
// Report(Event) call, since reporters are called synchronously from the
// core step loop.
package reporter

import necsim "github.com/kentwait/necsimgo"

// Reporter is the sink interface the core streams events to. Concrete
// progress/event reporter plugins are an external-collaborator concern;
// this interface is their contract with the core.
type Reporter interface {
	// Report is called once per emitted Event, synchronously, in the
	// order the core produces them for this partition.
	Report(e necsim.Event) error
	// Close flushes and releases any resource the reporter holds.
	Close() error
}

// Multi fans a single Event out to every wrapped Reporter in order,
// stopping and returning the first error encountered.
type Multi []Reporter

func (m Multi) Report(e necsim.Event) error {
	for _, r := range m {
		if err := r.Report(e); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) Close() error {
	var first error
	for _, r := range m {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Discard is a Reporter that drops every event; useful for replay-less
// dry runs and tests.
type Discard struct{}

func (Discard) Report(necsim.Event) error { return nil }
func (Discard) Close() error              { return nil }
