package app

// Operation tracks the CLI command being run. Operations are created in
// memory with ID=0. Only commands that change snapshot storage persist them
// to the journal, which assigns the ID.
type Operation struct {
	ID         int64
	Command    string
	Parameters string
	SnapshotID string
	Err        error
}

// NewOperation creates a new in-memory operation.
func NewOperation(command, parameters string) *Operation {
	return &Operation{Command: command, Parameters: parameters}
}

// Persisted returns true if this operation has been saved to the journal.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Record notes the snapshot the operation touched and its outcome. The
// first failure sticks.
func (op *Operation) Record(snapshotID string, err error) {
	if snapshotID != "" {
		op.SnapshotID = snapshotID
	}
	if err != nil && op.Err == nil {
		op.Err = err
	}
}
