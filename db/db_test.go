package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmuni/cashsync/pkg/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.Initialize())
	t.Cleanup(func() { database.Close() })
	return database
}

// eventRecorder captures published change events.
type eventRecorder struct {
	Events []models.ChangeEvent
}

func (r *eventRecorder) PublishChange(ev models.ChangeEvent) error {
	r.Events = append(r.Events, ev)
	return nil
}

func TestSaveAndGetInstance(t *testing.T) {
	database := setupTestDB(t)

	created := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)
	inst := &models.Instance{
		Entity: "currency", SetupID: 1,
		CCreated: &created, CCreatedBy: "system",
		IsEnabledSync: true, SyncToAccounting: true,
		Attrs: map[string]any{
			"code": "EUR",
			"name": map[string]any{"de": "Euro", "en": "Euro"},
		},
	}
	inst.SetRemoteID(42)

	require.NoError(t, database.SaveInstance(inst))
	assert.NotZero(t, inst.ID)

	got, err := database.GetInstance(inst.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(42), got.RemoteID())
	assert.Equal(t, "EUR", got.StringAttr("code"))
	assert.Equal(t, "Euro", got.LocalizedAttr("name")["de"])
	assert.True(t, got.SyncToAccounting)
	require.NotNil(t, got.CCreated)
	assert.True(t, created.Equal(*got.CCreated))
	assert.Equal(t, "system", got.CCreatedBy)
}

func TestGetInstanceMissing(t *testing.T) {
	database := setupTestDB(t)
	got, err := database.GetInstance(12345)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateInstance(t *testing.T) {
	database := setupTestDB(t)

	inst := &models.Instance{
		Entity: "currency", SetupID: 1, IsEnabledSync: true,
		Attrs: map[string]any{"code": "EUR", "rate": 1.1},
	}
	require.NoError(t, database.SaveInstance(inst))

	inst.SetRemoteID(7)
	inst.SetAttr("rate", 1.2)
	require.NoError(t, database.SaveInstance(inst))

	got, err := database.GetInstance(inst.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.RemoteID())
	assert.Equal(t, 1.2, got.Attr("rate"))
}

func TestUpdateMissingInstance(t *testing.T) {
	database := setupTestDB(t)
	inst := &models.Instance{ID: 999, Entity: "currency", SetupID: 1}
	assert.Error(t, database.SaveInstance(inst))
}

func TestFindByCID(t *testing.T) {
	database := setupTestDB(t)

	inst := &models.Instance{Entity: "person", SetupID: 1, IsEnabledSync: true,
		Attrs: map[string]any{"nr": "P-001"}}
	inst.SetRemoteID(55)
	require.NoError(t, database.SaveInstance(inst))

	got, err := database.FindByCID(1, "person", 55)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, inst.ID, got.ID)

	// Other setups never see the row.
	got, err = database.FindByCID(2, "person", 55)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = database.FindByCID(1, "account", 55)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListDirty(t *testing.T) {
	database := setupTestDB(t)

	dirty := &models.Instance{Entity: "currency", SetupID: 1,
		IsEnabledSync: true, SyncToAccounting: true, Attrs: map[string]any{}}
	clean := &models.Instance{Entity: "currency", SetupID: 1,
		IsEnabledSync: true, Attrs: map[string]any{}}
	disabled := &models.Instance{Entity: "currency", SetupID: 1,
		SyncToAccounting: true, Attrs: map[string]any{}}
	for _, inst := range []*models.Instance{dirty, clean, disabled} {
		require.NoError(t, database.SaveInstance(inst))
	}

	got, err := database.ListDirty(1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, dirty.ID, got[0].ID)
}

func TestDeleteInstancePublishesRemoteID(t *testing.T) {
	database := setupTestDB(t)
	recorder := &eventRecorder{}
	database.SetNotifier(recorder)

	inst := &models.Instance{Entity: "currency", SetupID: 1, IsEnabledSync: true,
		Attrs: map[string]any{}}
	inst.SetRemoteID(9)
	require.NoError(t, database.SaveInstance(inst))
	require.NoError(t, database.DeleteInstance(inst.ID))

	require.Len(t, recorder.Events, 2)
	assert.Equal(t, models.ChangeCreated, recorder.Events[0].Kind)

	deleted := recorder.Events[1]
	assert.Equal(t, models.ChangeDeleted, deleted.Kind)
	assert.Equal(t, inst.ID, deleted.InstanceID)
	require.NotNil(t, deleted.CID)
	assert.Equal(t, int64(9), *deleted.CID)
}

func TestDeleteWhereCIDNotIn(t *testing.T) {
	database := setupTestDB(t)

	for _, cid := range []int64{1, 2, 3} {
		inst := &models.Instance{Entity: "currency", SetupID: 1, IsEnabledSync: true,
			Attrs: map[string]any{}}
		inst.SetRemoteID(cid)
		require.NoError(t, database.SaveInstance(inst))
	}
	neverUploaded := &models.Instance{Entity: "currency", SetupID: 1, IsEnabledSync: true,
		Attrs: map[string]any{}}
	require.NoError(t, database.SaveInstance(neverUploaded))

	deleted, err := database.DeleteWhereCIDNotIn(1, "currency", []int64{1, 3})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	rows, err := database.ListByEntity(1, "currency")
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	gone, err := database.FindByCID(1, "currency", 2)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestDeleteWhereCIDNotInEmptyKeep(t *testing.T) {
	database := setupTestDB(t)

	inst := &models.Instance{Entity: "currency", SetupID: 1, IsEnabledSync: true,
		Attrs: map[string]any{}}
	inst.SetRemoteID(1)
	require.NoError(t, database.SaveInstance(inst))

	deleted, err := database.DeleteWhereCIDNotIn(1, "currency", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestSuspendEvents(t *testing.T) {
	database := setupTestDB(t)
	recorder := &eventRecorder{}
	database.SetNotifier(recorder)

	resumeOuter := database.SuspendEvents()
	resumeInner := database.SuspendEvents()

	inst := &models.Instance{Entity: "currency", SetupID: 1, Attrs: map[string]any{}}
	require.NoError(t, database.SaveInstance(inst))
	assert.Empty(t, recorder.Events)

	resumeInner()
	require.NoError(t, database.SaveInstance(inst))
	assert.Empty(t, recorder.Events)

	resumeOuter()
	resumeOuter() // resuming twice must not unbalance the counter
	require.NoError(t, database.SaveInstance(inst))
	require.Len(t, recorder.Events, 1)
	assert.Equal(t, models.ChangeUpdated, recorder.Events[0].Kind)
}
