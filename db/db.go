package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/openmuni/cashsync/pkg/models"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the sqlite-backed instance store.
type DB struct {
	*sql.DB

	notifier  Notifier
	suspended atomic.Int32
}

// New creates a new database connection.
func New(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: sqlDB}, nil
}

// SetNotifier wires the change stream. Pass nil to detach.
func (db *DB) SetNotifier(n Notifier) {
	db.notifier = n
}

// Initialize creates the necessary tables if they don't exist.
func (db *DB) Initialize() error {
	query := `
	CREATE TABLE IF NOT EXISTS instances (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		setup_id INTEGER NOT NULL,
		entity TEXT NOT NULL,
		c_id INTEGER,
		c_created TEXT,
		c_created_by TEXT NOT NULL DEFAULT '',
		c_last_updated TEXT,
		c_last_updated_by TEXT NOT NULL DEFAULT '',
		last_received TEXT,
		is_enabled_sync BOOLEAN NOT NULL DEFAULT 1,
		sync_to_accounting BOOLEAN NOT NULL DEFAULT 0,
		message TEXT NOT NULL DEFAULT '',
		attrs TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(setup_id, entity, c_id)
	)
	`

	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create instances table: %w", err)
	}

	index := `
	CREATE INDEX IF NOT EXISTS idx_instances_entity
	ON instances (setup_id, entity)
	`
	if _, err := db.Exec(index); err != nil {
		return fmt.Errorf("failed to create entity index: %w", err)
	}

	return nil
}

// SuspendEvents turns change notifications off until resume is called.
// Calls nest; events flow again once every caller has resumed.
func (db *DB) SuspendEvents() func() {
	db.suspended.Add(1)
	var done atomic.Bool
	return func() {
		if done.CompareAndSwap(false, true) {
			db.suspended.Add(-1)
		}
	}
}

func (db *DB) notify(ev models.ChangeEvent) {
	if db.notifier == nil || db.suspended.Load() > 0 {
		return
	}
	if err := db.notifier.PublishChange(ev); err != nil {
		log.Error().Err(err).Str("entity", ev.Entity).Int64("instance", ev.InstanceID).
			Msg("Failed to publish change event")
	}
}

// SaveInstance inserts or updates a row and publishes the matching
// change event.
func (db *DB) SaveInstance(inst *models.Instance) error {
	attrs, err := json.Marshal(inst.Attrs)
	if err != nil {
		return fmt.Errorf("failed to encode attributes: %w", err)
	}

	if inst.ID == 0 {
		query := `
		INSERT INTO instances (
			setup_id, entity, c_id, c_created, c_created_by,
			c_last_updated, c_last_updated_by, last_received,
			is_enabled_sync, sync_to_accounting, message, attrs
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		result, err := db.Exec(query,
			inst.SetupID, inst.Entity, nullInt(inst.CID),
			nullTime(inst.CCreated), inst.CCreatedBy,
			nullTime(inst.CLastUpdated), inst.CLastUpdatedBy,
			nullTime(inst.LastReceived),
			inst.IsEnabledSync, inst.SyncToAccounting, inst.Message, string(attrs),
		)
		if err != nil {
			return fmt.Errorf("failed to insert instance: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get insert id: %w", err)
		}
		inst.ID = id
		db.notify(models.ChangeEvent{
			Kind: models.ChangeCreated, Entity: inst.Entity,
			SetupID: inst.SetupID, InstanceID: inst.ID, CID: inst.CID,
		})
		return nil
	}

	query := `
	UPDATE instances SET
		setup_id = ?, entity = ?, c_id = ?, c_created = ?, c_created_by = ?,
		c_last_updated = ?, c_last_updated_by = ?, last_received = ?,
		is_enabled_sync = ?, sync_to_accounting = ?, message = ?, attrs = ?
	WHERE id = ?
	`
	result, err := db.Exec(query,
		inst.SetupID, inst.Entity, nullInt(inst.CID),
		nullTime(inst.CCreated), inst.CCreatedBy,
		nullTime(inst.CLastUpdated), inst.CLastUpdatedBy,
		nullTime(inst.LastReceived),
		inst.IsEnabledSync, inst.SyncToAccounting, inst.Message, string(attrs),
		inst.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update instance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no instance found with id %d", inst.ID)
	}
	db.notify(models.ChangeEvent{
		Kind: models.ChangeUpdated, Entity: inst.Entity,
		SetupID: inst.SetupID, InstanceID: inst.ID, CID: inst.CID,
	})
	return nil
}

const instanceColumns = `
	id, setup_id, entity, c_id, c_created, c_created_by,
	c_last_updated, c_last_updated_by, last_received,
	is_enabled_sync, sync_to_accounting, message, attrs
`

// GetInstance fetches one row by local id, nil when absent.
func (db *DB) GetInstance(id int64) (*models.Instance, error) {
	row := db.QueryRow(`SELECT `+instanceColumns+` FROM instances WHERE id = ?`, id)
	return scanInstance(row)
}

// FindByCID fetches the row mirroring a remote id within one setup.
func (db *DB) FindByCID(setupID int64, entity string, cid int64) (*models.Instance, error) {
	row := db.QueryRow(
		`SELECT `+instanceColumns+` FROM instances WHERE setup_id = ? AND entity = ? AND c_id = ?`,
		setupID, entity, cid)
	return scanInstance(row)
}

// ListByEntity fetches all rows of one entity within one setup.
func (db *DB) ListByEntity(setupID int64, entity string) ([]*models.Instance, error) {
	return db.queryInstances(
		`SELECT `+instanceColumns+` FROM instances WHERE setup_id = ? AND entity = ? ORDER BY id`,
		setupID, entity)
}

// ListDirty fetches the rows flagged for upload within one setup.
func (db *DB) ListDirty(setupID int64) ([]*models.Instance, error) {
	return db.queryInstances(
		`SELECT `+instanceColumns+` FROM instances
		 WHERE setup_id = ? AND is_enabled_sync = 1 AND sync_to_accounting = 1 ORDER BY id`,
		setupID)
}

// DeleteInstance removes one row and publishes a deleted event carrying
// the remote id.
func (db *DB) DeleteInstance(id int64) error {
	inst, err := db.GetInstance(id)
	if err != nil {
		return err
	}
	if inst == nil {
		return nil
	}

	if _, err := db.Exec(`DELETE FROM instances WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete instance: %w", err)
	}
	db.notify(models.ChangeEvent{
		Kind: models.ChangeDeleted, Entity: inst.Entity,
		SetupID: inst.SetupID, InstanceID: inst.ID, CID: inst.CID,
	})
	return nil
}

// DeleteWhereCIDNotIn removes the rows of one entity whose remote id is
// absent from keep. Rows never uploaded (c_id null) are left alone.
func (db *DB) DeleteWhereCIDNotIn(setupID int64, entity string, keep []int64) (int64, error) {
	query := `SELECT ` + instanceColumns + ` FROM instances
		WHERE setup_id = ? AND entity = ? AND c_id IS NOT NULL`
	args := []any{setupID, entity}
	if len(keep) > 0 {
		query += ` AND c_id NOT IN (?` + strings.Repeat(",?", len(keep)-1) + `)`
		for _, id := range keep {
			args = append(args, id)
		}
	}

	doomed, err := db.queryInstances(query, args...)
	if err != nil {
		return 0, err
	}

	for _, inst := range doomed {
		if err := db.DeleteInstance(inst.ID); err != nil {
			return 0, err
		}
	}
	return int64(len(doomed)), nil
}

func (db *DB) queryInstances(query string, args ...any) ([]*models.Instance, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}
	defer rows.Close()

	var out []*models.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate instances: %w", err)
	}
	return out, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanInstance(row scannable) (*models.Instance, error) {
	var (
		inst          models.Instance
		cid           sql.NullInt64
		cCreated      sql.NullString
		cLastUpdated  sql.NullString
		lastReceived  sql.NullString
		attrs         string
	)

	err := row.Scan(
		&inst.ID, &inst.SetupID, &inst.Entity, &cid,
		&cCreated, &inst.CCreatedBy,
		&cLastUpdated, &inst.CLastUpdatedBy,
		&lastReceived,
		&inst.IsEnabledSync, &inst.SyncToAccounting, &inst.Message, &attrs,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to scan instance: %w", err)
	}

	if cid.Valid {
		inst.CID = &cid.Int64
	}
	if inst.CCreated, err = parseNullTime(cCreated); err != nil {
		return nil, err
	}
	if inst.CLastUpdated, err = parseNullTime(cLastUpdated); err != nil {
		return nil, err
	}
	if inst.LastReceived, err = parseNullTime(lastReceived); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(attrs), &inst.Attrs); err != nil {
		return nil, fmt.Errorf("failed to decode attributes: %w", err)
	}
	return &inst, nil
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored timestamp %q: %w", s.String, err)
	}
	t = t.UTC()
	return &t, nil
}
