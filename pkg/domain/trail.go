package domain

// Failure records one rejected attempt at producing an event.
type Failure struct {
	// Detail is the validation error handed back to the producer as
	// corrective feedback.
	Detail string `json:"detail"`
	// Attempt is the 1-based attempt counter for the producing step.
	Attempt int `json:"attempt"`
}

// TrailEntry is one record in an instance's audit trail: either a transition
// successfully taken (To set, Failure nil) or a rejected attempt (no To,
// Failure set). No role, schema, or omit information is duplicated here; all
// of it is re-derived from the machine definition when rendering.
type TrailEntry struct {
	From    string   `json:"from"`
	To      string   `json:"to,omitempty"`
	Event   Event    `json:"event"`
	Failure *Failure `json:"failure,omitempty"`
}

// Failed reports whether the entry records a rejected attempt.
func (e TrailEntry) Failed() bool {
	return e.Failure != nil
}

// Trail is the append-only ordered record of one running instance.
// Ownership belongs exclusively to that instance's engine; everyone else
// observes snapshots.
type Trail []TrailEntry

// Clone returns an independent copy of the trail. Entries are values, so a
// slice copy is sufficient.
func (t Trail) Clone() Trail {
	if t == nil {
		return nil
	}
	out := make(Trail, len(t))
	copy(out, t)
	return out
}

// Last returns the final entry, if any.
func (t Trail) Last() (TrailEntry, bool) {
	if len(t) == 0 {
		return TrailEntry{}, false
	}
	return t[len(t)-1], true
}
