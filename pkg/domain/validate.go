package domain

import "fmt"

// Validate checks the structural invariants of a machine definition:
// unique state ids, unique (from, to) discriminators, transition endpoints
// referencing declared states (or the virtual "start"), no inbound edges into
// "start", exactly one terminal state, and no outgoing edges from it.
func (m *Machine) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("machine has no id")
	}
	if len(m.States) == 0 {
		return fmt.Errorf("machine %q declares no states", m.ID)
	}

	states := make(map[string]bool, len(m.States))
	for _, st := range m.States {
		if st.ID == "" {
			return fmt.Errorf("machine %q: state with empty id", m.ID)
		}
		if st.ID == StateStart {
			return fmt.Errorf("machine %q: %q is reserved and cannot be declared", m.ID, StateStart)
		}
		if states[st.ID] {
			return fmt.Errorf("machine %q: duplicate state %q", m.ID, st.ID)
		}
		states[st.ID] = true
	}

	terminal, ok := m.TerminalState()
	if !ok {
		return fmt.Errorf("machine %q: no state bound to the %q action", m.ID, ActionTerminal)
	}
	for _, st := range m.States {
		if st.Action == ActionTerminal && st.ID != terminal.ID {
			return fmt.Errorf("machine %q: multiple terminal states (%q, %q)", m.ID, terminal.ID, st.ID)
		}
	}

	seen := make(map[[2]string]bool, len(m.Transitions))
	for i := range m.Transitions {
		t := &m.Transitions[i]
		if seen[t.Key()] {
			return fmt.Errorf("machine %q: duplicate transition %s->%s", m.ID, t.From, t.To)
		}
		seen[t.Key()] = true

		if t.To == StateStart {
			return fmt.Errorf("machine %q: %q cannot have inbound transitions", m.ID, StateStart)
		}
		if t.From != StateStart && !states[t.From] {
			return fmt.Errorf("machine %q: transition %s->%s references undeclared state %q", m.ID, t.From, t.To, t.From)
		}
		if !states[t.To] {
			return fmt.Errorf("machine %q: transition %s->%s references undeclared state %q", m.ID, t.From, t.To, t.To)
		}
		if t.From == terminal.ID {
			return fmt.Errorf("machine %q: terminal state %q cannot have outgoing transitions", m.ID, terminal.ID)
		}
	}

	if len(m.TransitionsFrom(StateStart)) == 0 {
		return fmt.Errorf("machine %q: no transition out of %q", m.ID, StateStart)
	}

	return nil
}
