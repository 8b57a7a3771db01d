package constants

// RunStatus is the canonical lifecycle status for run records.
type RunStatus string

// Stable values (store these exact strings in the DB).
const (
	RunStatusPending    RunStatus = "PENDING"    // record created, pipeline not started
	RunStatusProcessing RunStatus = "PROCESSING" // pipeline in progress
	RunStatusCompleted  RunStatus = "COMPLETED"  // terminal success
	RunStatusFailed     RunStatus = "FAILED"     // terminal failure
	RunStatusDeleted    RunStatus = "DELETED"    // soft-deleted terminal state
)

// Terminal reports whether the status ends the run lifecycle. DELETED is
// reachable from the other two terminal states via an explicit delete.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusDeleted
}

// StageStatus tracks per-stage progress on the run record. These fields are
// observability only; control flow never branches on them.
type StageStatus string

const (
	StageStatusStarted   StageStatus = "STARTED"
	StageStatusSucceeded StageStatus = "SUCCEEDED"
	StageStatusFailed    StageStatus = "FAILED"
)
