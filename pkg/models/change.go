package models

// ChangeKind classifies a local persistence event.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// ChangeEvent is one message on the local change stream. The persistence
// layer publishes one per committed write or delete; the dispatcher
// consumes them. Deleted events carry the remote id because the row is
// already gone by the time the event is handled.
type ChangeEvent struct {
	Kind       ChangeKind `json:"kind"`
	Entity     string     `json:"entity"`
	SetupID    int64      `json:"setupId"`
	InstanceID int64      `json:"instanceId"`
	CID        *int64     `json:"cId,omitempty"`
}
