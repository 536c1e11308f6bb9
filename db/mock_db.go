package db

import (
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/openmuni/cashsync/pkg/models"
)

// MockStore is an in-memory Store for tests.
type MockStore struct {
	mu        sync.Mutex
	Instances map[int64]*models.Instance
	nextID    int64

	Notifier  Notifier
	suspended int

	// Error values to return
	SaveInstanceErr   error
	GetInstanceErr    error
	FindByCIDErr      error
	ListErr           error
	DeleteInstanceErr error
}

// NewMockStore creates an empty mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		Instances: make(map[int64]*models.Instance),
		nextID:    1,
	}
}

func (m *MockStore) Initialize() error { return nil }
func (m *MockStore) Close() error      { return nil }

// SuspendEvents mirrors the sqlite store's nesting behavior.
func (m *MockStore) SuspendEvents() func() {
	m.mu.Lock()
	m.suspended++
	m.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.suspended--
			m.mu.Unlock()
		})
	}
}

func (m *MockStore) notify(ev models.ChangeEvent) {
	if m.Notifier == nil || m.suspended > 0 {
		return
	}
	_ = m.Notifier.PublishChange(ev)
}

// SaveInstance stores a copy of the instance, assigning an id on insert.
func (m *MockStore) SaveInstance(inst *models.Instance) error {
	if m.SaveInstanceErr != nil {
		return m.SaveInstanceErr
	}
	m.mu.Lock()
	created := inst.ID == 0
	if created {
		inst.ID = m.nextID
		m.nextID++
	} else if _, ok := m.Instances[inst.ID]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("no instance found with id %d", inst.ID)
	}
	m.Instances[inst.ID] = inst.Clone()
	m.mu.Unlock()

	kind := models.ChangeUpdated
	if created {
		kind = models.ChangeCreated
	}
	m.notify(models.ChangeEvent{
		Kind: kind, Entity: inst.Entity,
		SetupID: inst.SetupID, InstanceID: inst.ID, CID: inst.CID,
	})
	return nil
}

func (m *MockStore) GetInstance(id int64) (*models.Instance, error) {
	if m.GetInstanceErr != nil {
		return nil, m.GetInstanceErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.Instances[id]
	if !ok {
		return nil, nil
	}
	return inst.Clone(), nil
}

func (m *MockStore) FindByCID(setupID int64, entity string, cid int64) (*models.Instance, error) {
	if m.FindByCIDErr != nil {
		return nil, m.FindByCIDErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inst := range m.Instances {
		if inst.SetupID == setupID && inst.Entity == entity && inst.RemoteID() == cid && inst.CID != nil {
			return inst.Clone(), nil
		}
	}
	return nil, nil
}

func (m *MockStore) ListByEntity(setupID int64, entity string) ([]*models.Instance, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Instance
	for _, inst := range m.Instances {
		if inst.SetupID == setupID && inst.Entity == entity {
			out = append(out, inst.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockStore) ListDirty(setupID int64) ([]*models.Instance, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Instance
	for _, inst := range m.Instances {
		if inst.SetupID == setupID && inst.IsEnabledSync && inst.SyncToAccounting {
			out = append(out, inst.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockStore) DeleteInstance(id int64) error {
	if m.DeleteInstanceErr != nil {
		return m.DeleteInstanceErr
	}
	m.mu.Lock()
	inst, ok := m.Instances[id]
	if ok {
		delete(m.Instances, id)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	m.notify(models.ChangeEvent{
		Kind: models.ChangeDeleted, Entity: inst.Entity,
		SetupID: inst.SetupID, InstanceID: inst.ID, CID: inst.CID,
	})
	return nil
}

func (m *MockStore) DeleteWhereCIDNotIn(setupID int64, entity string, keep []int64) (int64, error) {
	m.mu.Lock()
	var doomed []int64
	for id, inst := range m.Instances {
		if inst.SetupID != setupID || inst.Entity != entity || inst.CID == nil {
			continue
		}
		if !lo.Contains(keep, *inst.CID) {
			doomed = append(doomed, id)
		}
	}
	m.mu.Unlock()

	for _, id := range doomed {
		if err := m.DeleteInstance(id); err != nil {
			return 0, err
		}
	}
	return int64(len(doomed)), nil
}
