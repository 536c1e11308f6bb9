package models

import "time"

// Sync states derived from the row's flags, as shown in the admin layer
// and the status command.
const (
	SyncStateClean = "clean"
	SyncStateDirty = "dirty"
	SyncStateError = "error"
)

// Instance is one synchronizable local row. The typed columns are the
// sync bookkeeping shared by every entity; the entity's own fields live
// in Attrs as a flat snake_case map.
type Instance struct {
	ID      int64
	Entity  string
	SetupID int64

	// CID is the remote resource id. It stays nil until the first
	// successful upload.
	CID *int64

	// Remote audit quartet, populated on download. Times are UTC.
	CCreated       *time.Time
	CCreatedBy     string
	CLastUpdated   *time.Time
	CLastUpdatedBy string

	// LastReceived is the wall-clock time of the last successful download.
	LastReceived *time.Time

	// IsEnabledSync is the per-row sync policy switch.
	IsEnabledSync bool
	// SyncToAccounting marks the row dirty. It is cleared only after a
	// successful create/update on the remote.
	SyncToAccounting bool
	// Message holds the outcome of the last sync attempt for the admin.
	Message string

	Attrs map[string]any
}

// State reports the row's sync state from its flags.
func (i *Instance) State() string {
	switch {
	case i.SyncToAccounting && i.Message != "":
		return SyncStateError
	case i.SyncToAccounting:
		return SyncStateDirty
	default:
		return SyncStateClean
	}
}

// RemoteID returns the remote id or 0 when the row was never uploaded.
func (i *Instance) RemoteID() int64 {
	if i.CID == nil {
		return 0
	}
	return *i.CID
}

// SetRemoteID assigns the remote id.
func (i *Instance) SetRemoteID(id int64) {
	i.CID = &id
}

// Attr returns a named attribute, nil when absent.
func (i *Instance) Attr(key string) any {
	if i.Attrs == nil {
		return nil
	}
	return i.Attrs[key]
}

// StringAttr returns a string attribute, "" when absent or not a string.
func (i *Instance) StringAttr(key string) string {
	s, _ := i.Attr(key).(string)
	return s
}

// Int64Attr returns a numeric attribute as int64. JSON round-trips store
// numbers as float64, so both widths are accepted.
func (i *Instance) Int64Attr(key string) (int64, bool) {
	switch v := i.Attr(key).(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// LocalizedAttr returns a localized attribute. Attrs loaded from storage
// hold plain map[string]any, which is converted on access.
func (i *Instance) LocalizedAttr(key string) LocalizedText {
	return ToLocalizedText(i.Attr(key))
}

// SetAttr sets a named attribute, allocating the map when needed.
func (i *Instance) SetAttr(key string, value any) {
	if i.Attrs == nil {
		i.Attrs = make(map[string]any)
	}
	i.Attrs[key] = value
}

// Clone returns a deep-enough copy for pipeline use: the attribute map is
// copied, attribute values are shared.
func (i *Instance) Clone() *Instance {
	out := *i
	if i.Attrs != nil {
		out.Attrs = make(map[string]any, len(i.Attrs))
		for k, v := range i.Attrs {
			out.Attrs[k] = v
		}
	}
	return &out
}
