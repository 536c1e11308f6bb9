package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmuni/cashsync/db"
	"github.com/openmuni/cashsync/pkg/cashctrl"
	"github.com/openmuni/cashsync/pkg/models"
	"github.com/openmuni/cashsync/pkg/registry"
)

func testSetup() *models.APISetup {
	return &models.APISetup{ID: 1, Org: "testorg", APIKey: "secret"}
}

// newTestSession builds a session whose client talks to the handler.
func newTestSession(t *testing.T, handler http.Handler) (*Session, *db.MockStore) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := db.NewMockStore()
	client := cashctrl.NewClient(testSetup(), cashctrl.WithBaseURL(server.URL))
	session, err := NewSession(testSetup(), store, WithClient(client))
	require.NoError(t, err)
	return session, store
}

// call records one request the test server received.
type call struct {
	Path string
	Form map[string]string
}

func recordingHandler(calls *[]call, response string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		*calls = append(*calls, call{Path: r.URL.Path, Form: form})
		w.Write([]byte(response))
	})
}

func TestUploadCreatesCurrency(t *testing.T) {
	var calls []call
	session, store := newTestSession(t, recordingHandler(&calls, `{"success":true,"insertId":42}`))

	inst := &models.Instance{
		Entity: "currency", SetupID: 1,
		IsEnabledSync: true, SyncToAccounting: true,
		Attrs: map[string]any{"code": "EUR", "is_default": false},
	}
	require.NoError(t, store.SaveInstance(inst))

	err := session.Upload(context.Background(), inst)
	require.NoError(t, err)

	require.Len(t, calls, 1)
	assert.Equal(t, "/currency/create.json", calls[0].Path)
	assert.Equal(t, "EUR", calls[0].Form["code"])
	assert.Equal(t, "false", calls[0].Form["isDefault"])

	assert.Equal(t, int64(42), inst.RemoteID())
	assert.False(t, inst.SyncToAccounting)

	stored, err := store.GetInstance(inst.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), stored.RemoteID())
	assert.False(t, stored.SyncToAccounting)
	assert.Equal(t, models.SyncStateClean, stored.State())
}

func TestUploadLocalizedName(t *testing.T) {
	var calls []call
	session, store := newTestSession(t, recordingHandler(&calls, `{"success":true,"insertId":7}`))

	inst := &models.Instance{
		Entity: "unit", SetupID: 1,
		IsEnabledSync: true, SyncToAccounting: true,
		Attrs: map[string]any{"name": models.LocalizedText{"de": "Stück", "en": "Piece"}},
	}
	require.NoError(t, store.SaveInstance(inst))
	require.NoError(t, session.Upload(context.Background(), inst))

	require.Len(t, calls, 1)
	assert.Equal(t, "/inventory/unit/create.json", calls[0].Path)
	assert.Equal(t, "<values><de>Stück</de><en>Piece</en></values>", calls[0].Form["name"])
}

// Attrs loaded back from SQLite hold plain map[string]any, not
// LocalizedText. The upload must still render the <values> fragment.
func TestUploadLocalizedNameAfterReload(t *testing.T) {
	var calls []call
	server := httptest.NewServer(recordingHandler(&calls, `{"success":true,"insertId":7}`))
	t.Cleanup(server.Close)

	database, err := db.New(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	require.NoError(t, database.Initialize())
	t.Cleanup(func() { database.Close() })

	client := cashctrl.NewClient(testSetup(), cashctrl.WithBaseURL(server.URL))
	session, err := NewSession(testSetup(), database, WithClient(client))
	require.NoError(t, err)

	inst := &models.Instance{
		Entity: "unit", SetupID: 1,
		IsEnabledSync: true, SyncToAccounting: true,
		Attrs: map[string]any{"name": models.LocalizedText{"de": "Stück", "en": "Piece"}},
	}
	require.NoError(t, database.SaveInstance(inst))

	reloaded, err := database.GetInstance(inst.ID)
	require.NoError(t, err)
	require.NoError(t, session.Upload(context.Background(), reloaded))

	require.Len(t, calls, 1)
	assert.Equal(t, "<values><de>Stück</de><en>Piece</en></values>", calls[0].Form["name"])
}

func TestUploadUpdatesExistingRow(t *testing.T) {
	var calls []call
	session, store := newTestSession(t, recordingHandler(&calls, `{"success":true,"insertId":17}`))

	inst := &models.Instance{
		Entity: "currency", SetupID: 1,
		IsEnabledSync: true, SyncToAccounting: true,
		Attrs: map[string]any{"code": "USD"},
	}
	inst.SetRemoteID(17)
	require.NoError(t, store.SaveInstance(inst))
	require.NoError(t, session.Upload(context.Background(), inst))

	require.Len(t, calls, 1)
	assert.Equal(t, "/currency/update.json", calls[0].Path)
	assert.Equal(t, "17", calls[0].Form["id"])
}

func TestUploadReadOnlyResource(t *testing.T) {
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("read-only entity must not reach the server")
	}))

	inst := &models.Instance{Entity: "order_document", SetupID: 1}
	err := session.Upload(context.Background(), inst)
	var policyErr *SyncPolicyError
	assert.ErrorAs(t, err, &policyErr)
}

func TestUploadMissingRequiredReference(t *testing.T) {
	session, store := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("upload with missing reference must not reach the server")
	}))

	// Accounts cannot be uploaded without a synced category.
	inst := &models.Instance{
		Entity: "account", SetupID: 1,
		IsEnabledSync: true, SyncToAccounting: true,
		Attrs: map[string]any{"number": "1020", "name": "Bank"},
	}
	require.NoError(t, store.SaveInstance(inst))

	err := session.Upload(context.Background(), inst)
	var missingErr *registry.MissingRequiredFieldError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, "category", missingErr.Field)
}

func TestUploadDereferencesCategory(t *testing.T) {
	var calls []call
	session, store := newTestSession(t, recordingHandler(&calls, `{"success":true,"insertId":55}`))

	category := &models.Instance{Entity: "account_category", SetupID: 1, IsEnabledSync: true}
	category.SetRemoteID(91)
	require.NoError(t, store.SaveInstance(category))

	inst := &models.Instance{
		Entity: "account", SetupID: 1,
		IsEnabledSync: true, SyncToAccounting: true,
		Attrs: map[string]any{"number": "1020", "category": category.ID},
	}
	require.NoError(t, store.SaveInstance(inst))
	require.NoError(t, session.Upload(context.Background(), inst))

	require.Len(t, calls, 1)
	assert.Equal(t, "/account/create.json", calls[0].Path)
	assert.Equal(t, "91", calls[0].Form["categoryId"])
	assert.NotContains(t, calls[0].Form, "category")
}

// A failing follow-up read must not lose the remote id the upload
// already obtained, or the next push would create a remote twin.
func TestUploadKeepsRemoteIDWhenFollowUpFails(t *testing.T) {
	session, store := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/order/category/create.json" {
			w.Write([]byte(`{"success":true,"insertId":33}`))
			return
		}
		w.Write([]byte(`{"success":false,"message":"read failed"}`))
	}))

	inst := &models.Instance{
		Entity: "order_category", SetupID: 1,
		IsEnabledSync: true, SyncToAccounting: true,
		Attrs: map[string]any{"name": models.LocalizedText{"de": "Rechnungen"}},
	}
	require.NoError(t, store.SaveInstance(inst))

	err := session.Upload(context.Background(), inst)
	require.Error(t, err)

	stored, err := store.GetInstance(inst.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(33), stored.RemoteID())
	assert.False(t, stored.SyncToAccounting)
}

func TestUploadOrderCategoryCapturesStatus(t *testing.T) {
	session, store := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/order/category/create.json" {
			w.Write([]byte(`{"success":true,"insertId":33}`))
			return
		}
		w.Write([]byte(`{"success":true,"data":{"id":33,"status":"[{\"id\":101,\"name\":\"Open\"}]"}}`))
	}))

	inst := &models.Instance{
		Entity: "order_category", SetupID: 1,
		IsEnabledSync: true, SyncToAccounting: true,
		Attrs: map[string]any{"name": models.LocalizedText{"de": "Rechnungen"}},
	}
	require.NoError(t, store.SaveInstance(inst))
	require.NoError(t, session.Upload(context.Background(), inst))

	stored, err := store.GetInstance(inst.ID)
	require.NoError(t, err)
	status, ok := stored.Attr("status").([]any)
	require.True(t, ok)
	require.Len(t, status, 1)
}

func TestDeleteRemoteWithoutRemoteID(t *testing.T) {
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("row without remote id must not trigger a remote delete")
	}))

	assert.NoError(t, session.DeleteRemote(context.Background(), "currency", nil))
}

func TestDeleteRemote(t *testing.T) {
	var calls []call
	session, _ := newTestSession(t, recordingHandler(&calls, `{"success":true}`))

	cid := int64(9)
	require.NoError(t, session.DeleteRemote(context.Background(), "currency", &cid))
	require.Len(t, calls, 1)
	assert.Equal(t, "/currency/delete.json", calls[0].Path)
	assert.Equal(t, "9", calls[0].Form["ids"])
}

func TestPushDirtyRecordsFailure(t *testing.T) {
	session, store := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"errors":[{"field":"code","message":"is invalid"}]}`))
	}))

	inst := &models.Instance{
		Entity: "currency", SetupID: 1,
		IsEnabledSync: true, SyncToAccounting: true,
		Attrs: map[string]any{"code": "XXXX"},
	}
	require.NoError(t, store.SaveInstance(inst))

	pushed, errs := session.PushDirty(context.Background())
	assert.Equal(t, 0, pushed)
	require.Len(t, errs, 1)

	stored, err := store.GetInstance(inst.ID)
	require.NoError(t, err)
	assert.True(t, stored.SyncToAccounting)
	assert.Contains(t, stored.Message, "code: is invalid")
	assert.Equal(t, models.SyncStateError, stored.State())
}

func TestPushDirtySkipsCleanRows(t *testing.T) {
	var calls []call
	session, store := newTestSession(t, recordingHandler(&calls, `{"success":true,"insertId":1}`))

	clean := &models.Instance{
		Entity: "currency", SetupID: 1, IsEnabledSync: true,
		Attrs: map[string]any{"code": "CHF"},
	}
	dirty := &models.Instance{
		Entity: "currency", SetupID: 1,
		IsEnabledSync: true, SyncToAccounting: true,
		Attrs: map[string]any{"code": "EUR"},
	}
	require.NoError(t, store.SaveInstance(clean))
	require.NoError(t, store.SaveInstance(dirty))

	pushed, errs := session.PushDirty(context.Background())
	assert.Empty(t, errs)
	assert.Equal(t, 1, pushed)
	require.Len(t, calls, 1)
	assert.Equal(t, "EUR", calls[0].Form["code"])
}
