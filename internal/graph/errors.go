package graph

import "fmt"

// DanglingEdgeError is returned when an edge references a node that is not
// present (or has been pruned). The offending mutation is rejected whole.
type DanglingEdgeError struct {
	EdgeID  string
	Missing string
}

func (e *DanglingEdgeError) Error() string {
	return fmt.Sprintf("edge %s references missing node %s", e.EdgeID, e.Missing)
}

// MergeConflictError is returned by MergeNodes when the merge target does not
// exist. No source node is touched on failure.
type MergeConflictError struct {
	TargetID string
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge target node %s does not exist", e.TargetID)
}

// DuplicateNodeError is returned by AddNodes when a node id is already taken.
type DuplicateNodeError struct {
	NodeID string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("node %s already exists", e.NodeID)
}
