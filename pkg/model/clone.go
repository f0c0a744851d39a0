package model

// CloneStatus represents the lifecycle of a clone in the splitting process.
type CloneStatus string

const (
	CloneActive   CloneStatus = "active"
	CloneTerminal CloneStatus = "terminal"
)

// RootCloneID is the id of the clone holding every sample at depth 0.
// Daughters append "0" or "1" at each accepted split, so a clone id encodes
// its full root-to-leaf split history.
const RootCloneID = "r"

// Clone is a named subset of samples at some point in the splitting
// process. Members are row indices into the backing matrix; across all
// active and terminal clones they form a partition of the sample set.
type Clone struct {
	ID      string
	Members []int
	Depth   int
	Status  CloneStatus
}

// Size returns the member count.
func (c *Clone) Size() int { return len(c.Members) }
