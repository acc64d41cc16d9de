package process

// State is the per-ProcessId state machine (spec section 4.2):
//
//	Starting --(pid alive)--> Running --(stop invoked)--> Stopping --(exit observed | kill)--> Stopped
//	                              |                                                            ^
//	                              '--(crash detected by monitor)--> Errored --(auto-restart)---'
//
// There is deliberately no Restarting variant: the source's wire protocol
// declares one but never enters it, and this port drops it rather than
// carrying dead surface (see SPEC_FULL.md, Open Question 2).
type State string

const (
	Starting State = "starting"
	Running  State = "running"
	Stopping State = "stopping"
	Stopped  State = "stopped"
	Errored  State = "errored"
)

func (s State) String() string { return string(s) }
