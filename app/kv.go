package app

import (
	"database/sql"
)

// The kv table tracks the latest run id per tool under "last_run/<tool>".

func setKV(tx Tx, key string, val string) error {
	var count int
	if err := tx.QueryRow("SELECT COUNT(*) FROM kv WHERE k = ?", key).Scan(&count); err != nil {
		return err
	}
	var err error
	if count == 0 {
		_, err = tx.Exec("INSERT INTO kv (k, v) VALUES (?, ?)", key, val)
	} else {
		_, err = tx.Exec("UPDATE kv SET v = ? WHERE k = ?", val, key)
	}
	return err
}

// GetKV returns "" if key is unset.
func (l *Ledger) GetKV(key string) (string, error) {
	var val string
	err := l.db.QueryRow("SELECT v FROM kv WHERE k = ?", key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return val, err
}

// LastRun returns the most recent run of tool.
func (l *Ledger) LastRun(tool string) (Run, error) {
	id, err := l.GetKV("last_run/" + tool)
	if err != nil {
		return Run{}, err
	} else if id == "" {
		return Run{}, ErrRunNotFound
	}
	return l.GetRun(id)
}
