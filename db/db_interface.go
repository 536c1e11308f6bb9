package db

import (
	"github.com/openmuni/cashsync/pkg/models"
)

// Notifier receives one event per committed write or delete. The sqlite
// store publishes to it unless events are suspended; the dispatcher
// consumes the resulting stream.
type Notifier interface {
	PublishChange(ev models.ChangeEvent) error
}

// Store is the persistence surface the sync engine consumes. All lookups
// are scoped by setup so tenants never see each other's rows.
type Store interface {
	Initialize() error
	Close() error

	SaveInstance(inst *models.Instance) error
	GetInstance(id int64) (*models.Instance, error)
	FindByCID(setupID int64, entity string, cid int64) (*models.Instance, error)
	ListByEntity(setupID int64, entity string) ([]*models.Instance, error)
	ListDirty(setupID int64) ([]*models.Instance, error)
	DeleteInstance(id int64) error
	DeleteWhereCIDNotIn(setupID int64, entity string, keep []int64) (int64, error)

	// SuspendEvents turns change notifications off until the returned
	// resume function is called. The download and delete paths use it so
	// their own writes do not re-trigger uploads.
	SuspendEvents() (resume func())
}

// Ensure both implementations satisfy the interface.
var (
	_ Store = (*DB)(nil)
	_ Store = (*MockStore)(nil)
)
