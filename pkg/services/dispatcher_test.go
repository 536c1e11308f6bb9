package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmuni/cashsync/pkg/bus"
	"github.com/openmuni/cashsync/pkg/models"
)

func TestDispatcherHandleDelete(t *testing.T) {
	var calls []call
	session, _ := newTestSession(t, recordingHandler(&calls, `{"success":true}`))
	d := NewDispatcher(session, nil)

	cid := int64(9)
	err := d.Handle(context.Background(), models.ChangeEvent{
		Kind: models.ChangeDeleted, Entity: "currency", SetupID: 1, InstanceID: 4, CID: &cid,
	})
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "/currency/delete.json", calls[0].Path)
	assert.Equal(t, "9", calls[0].Form["ids"])
}

func TestDispatcherHandleDeleteWithoutRemoteID(t *testing.T) {
	session, _ := newTestSession(t, noRemoteCalls(t))
	d := NewDispatcher(session, nil)

	err := d.Handle(context.Background(), models.ChangeEvent{
		Kind: models.ChangeDeleted, Entity: "currency", SetupID: 1, InstanceID: 4,
	})
	assert.NoError(t, err)
}

func TestDispatcherIgnoresOtherSetups(t *testing.T) {
	session, _ := newTestSession(t, noRemoteCalls(t))
	d := NewDispatcher(session, nil)

	cid := int64(9)
	err := d.Handle(context.Background(), models.ChangeEvent{
		Kind: models.ChangeDeleted, Entity: "currency", SetupID: 2, InstanceID: 4, CID: &cid,
	})
	assert.NoError(t, err)
}

func TestDispatcherHandleUpload(t *testing.T) {
	var calls []call
	session, store := newTestSession(t, recordingHandler(&calls, `{"success":true,"insertId":42}`))
	d := NewDispatcher(session, nil)

	inst := &models.Instance{
		Entity: "currency", SetupID: 1,
		IsEnabledSync: true, SyncToAccounting: true,
		Attrs: map[string]any{"code": "EUR"},
	}
	require.NoError(t, store.SaveInstance(inst))

	err := d.Handle(context.Background(), models.ChangeEvent{
		Kind: models.ChangeCreated, Entity: "currency", SetupID: 1, InstanceID: inst.ID,
	})
	require.NoError(t, err)
	require.Len(t, calls, 1)

	stored, err := store.GetInstance(inst.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), stored.RemoteID())
	assert.False(t, stored.SyncToAccounting)
}

func TestDispatcherSkipsCleanAndDisabledRows(t *testing.T) {
	session, store := newTestSession(t, noRemoteCalls(t))
	d := NewDispatcher(session, nil)

	clean := &models.Instance{Entity: "currency", SetupID: 1, IsEnabledSync: true,
		Attrs: map[string]any{"code": "CHF"}}
	disabled := &models.Instance{Entity: "currency", SetupID: 1, SyncToAccounting: true,
		Attrs: map[string]any{"code": "EUR"}}
	require.NoError(t, store.SaveInstance(clean))
	require.NoError(t, store.SaveInstance(disabled))

	for _, inst := range []*models.Instance{clean, disabled} {
		err := d.Handle(context.Background(), models.ChangeEvent{
			Kind: models.ChangeUpdated, Entity: "currency", SetupID: 1, InstanceID: inst.ID,
		})
		assert.NoError(t, err)
	}
}

func TestDispatcherRecordsUploadFailure(t *testing.T) {
	session, store := newTestSession(t, recordingHandler(&[]call{},
		`{"success":false,"message":"quota exceeded"}`))
	d := NewDispatcher(session, nil)

	inst := &models.Instance{
		Entity: "currency", SetupID: 1,
		IsEnabledSync: true, SyncToAccounting: true,
		Attrs: map[string]any{"code": "EUR"},
	}
	require.NoError(t, store.SaveInstance(inst))

	err := d.Handle(context.Background(), models.ChangeEvent{
		Kind: models.ChangeUpdated, Entity: "currency", SetupID: 1, InstanceID: inst.ID,
	})
	require.Error(t, err)

	stored, err := store.GetInstance(inst.ID)
	require.NoError(t, err)
	assert.True(t, stored.SyncToAccounting)
	assert.Contains(t, stored.Message, "quota exceeded")
}

func TestDispatcherRunConsumesBus(t *testing.T) {
	var calls []call
	session, store := newTestSession(t, recordingHandler(&calls, `{"success":true,"insertId":42}`))

	b := bus.New()
	t.Cleanup(func() { _ = b.Close() })
	store.Notifier = b

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDispatcher(session, b)
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	// Give the subscriber a moment to attach before writing.
	time.Sleep(50 * time.Millisecond)

	inst := &models.Instance{
		Entity: "currency", SetupID: 1,
		IsEnabledSync: true, SyncToAccounting: true,
		Attrs: map[string]any{"code": "EUR"},
	}
	require.NoError(t, store.SaveInstance(inst))

	require.Eventually(t, func() bool {
		stored, err := store.GetInstance(inst.ID)
		return err == nil && stored != nil && stored.RemoteID() == 42
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop on context cancellation")
	}
}
