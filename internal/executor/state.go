package executor

import log "github.com/sirupsen/logrus"

// State of a single execution.
type State string

const (
	Idle       State = "idle"
	Submitting State = "submitting"
	Succeeded  State = "succeeded"
	Cancelled  State = "cancelled"
	Failed     State = "failed"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Succeeded || s == Cancelled || s == Failed
}

var transitions = map[State][]State{
	Idle:       {Submitting},
	Submitting: {Succeeded, Cancelled, Failed},
}

// machine tracks one execution. Each execution owns its machine.
type machine struct {
	state State
}

func newMachine() *machine {
	return &machine{state: Idle}
}

// transition moves to next. An invalid transition forces Failed.
func (m *machine) transition(next State) bool {
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			return true
		}
	}
	log.WithFields(log.Fields{"from": m.state, "to": next}).Error("invalid execution transition")
	m.state = Failed
	return false
}
