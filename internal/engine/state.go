package engine

// State is the position of a run in its lifecycle. Transitions are
// strictly forward. A failure after the lock is held and before
// verification diverts to CleaningUp and then Failed; a lock failure
// leaves the run at Initial, and a prune failure after verification
// leaves it at Verified.
type State int

const (
	StateInitial State = iota
	StateLocked
	StateMounted
	StateSnapshotCreated
	StateReady
	StateApproved
	StateTransferred
	StateVerified
	StateRetained
	StateCleaningUp
	StateFailed
)

var stateNames = map[State]string{
	StateInitial:         "initial",
	StateLocked:          "locked",
	StateMounted:         "mounted",
	StateSnapshotCreated: "snapshot-created",
	StateReady:           "ready",
	StateApproved:        "approved",
	StateTransferred:     "transferred",
	StateVerified:        "verified",
	StateRetained:        "retained",
	StateCleaningUp:      "cleaning-up",
	StateFailed:          "failed",
}

func (s State) String() string {
	return stateNames[s]
}

// RunState is the per-invocation record the cleanup path reads. The
// SnapshotCreated flag is set once the source snapshot exists and never
// cleared: it is what tells cleanup a source artifact may remain.
// BackupSuccessful is set only on verification, never earlier.
type RunState struct {
	SnapshotName     string
	Parent           string
	SnapshotCreated  bool
	BackupSuccessful bool

	state State
}

// State returns the current lifecycle state.
func (r *RunState) State() State {
	return r.state
}

// advance moves the state machine forward. State is only ever mutated
// between suspension points, never concurrently.
func (r *RunState) advance(to State) {
	r.state = to
}

// Incremental reports whether a parent was selected for this run.
func (r *RunState) Incremental() bool {
	return r.Parent != ""
}

// Kind returns the run kind label used in logs and the history ledger.
func (r *RunState) Kind() string {
	if r.Incremental() {
		return "incremental"
	}
	return "full"
}
