package dispatcher

// Recorder buffers the Started/Finished events a Dispatcher emits across
// many Tick calls. It is not part of the state machine itself — it
// observes the same event slice a host would — and exists purely so tests
// and the CLI can assert against or print a full run's trace without every
// caller re-implementing the same accumulation.
type Recorder struct {
	events []Event
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Record appends one Tick call's events to the buffer.
func (r *Recorder) Record(events []Event) {
	r.events = append(r.events, events...)
}

// Events returns every event recorded so far, in emission order.
func (r *Recorder) Events() []Event {
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Started returns the tids that have produced a Started event, in order.
func (r *Recorder) Started() []uint64 { return r.tidsWith(Started) }

// Finished returns the tids that have produced a Finished event, in order.
func (r *Recorder) Finished() []uint64 { return r.tidsWith(Finished) }

func (r *Recorder) tidsWith(status Status) []uint64 {
	var out []uint64
	for _, e := range r.events {
		if e.Status == status {
			out = append(out, e.TID)
		}
	}
	return out
}
