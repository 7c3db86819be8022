package localstore

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteKV is the on-device durable backend. One file per device, one row per
// key; writes go through a synchronous journal so a crash mid-set loses at
// most the in-flight write.
type SQLiteKV struct {
	db *sql.DB
}

func NewSQLiteKV(path string) (*SQLiteKV, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	kv := &SQLiteKV{db: db}
	if err := kv.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return kv, nil
}

func (kv *SQLiteKV) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS engine_kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	_, err := kv.db.Exec(schema)
	return err
}

func (kv *SQLiteKV) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := kv.db.QueryRow(`SELECT value FROM engine_kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (kv *SQLiteKV) Put(key string, value []byte) error {
	query := `
		INSERT INTO engine_kv (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	_, err := kv.db.Exec(query, key, value, time.Now().UTC())
	return err
}

func (kv *SQLiteKV) Delete(key string) error {
	_, err := kv.db.Exec(`DELETE FROM engine_kv WHERE key = ?`, key)
	return err
}

func (kv *SQLiteKV) Close() error {
	return kv.db.Close()
}
