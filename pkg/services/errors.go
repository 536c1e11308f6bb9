package services

import "fmt"

// maxParentDepth bounds hierarchy walks; a chain that does not reach a
// root within it is treated as cyclic.
const maxParentDepth = 32

// SyncPolicyError marks an operation attempted outside a valid sync
// session, or one that would violate the session's serialization rules.
type SyncPolicyError struct {
	Reason string
}

func (e *SyncPolicyError) Error() string {
	return "sync policy violation: " + e.Reason
}

// ParentChainCycleError marks a parent chain that never terminated.
type ParentChainCycleError struct {
	Entity string
	CID    int64
	Depth  int
}

func (e *ParentChainCycleError) Error() string {
	return fmt.Sprintf("parent chain of %s %d exceeds depth %d, assuming cycle",
		e.Entity, e.CID, e.Depth-1)
}
