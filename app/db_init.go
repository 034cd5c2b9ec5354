package app

// InitDB creates the ledger schema if it does not exist yet.
func InitDB(db *Database) error {
	for _, q := range []string{
		`CREATE TABLE IF NOT EXISTS kv (
			k TEXT PRIMARY KEY,
			v TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			seq INTEGER NOT NULL,
			-- convert, check, detect, evaluate or drawpreds
			tool TEXT NOT NULL,
			started TEXT NOT NULL,
			-- clean, warnings or failed
			status TEXT NOT NULL,
			args TEXT NOT NULL DEFAULT '{}',
			stats TEXT NOT NULL DEFAULT '{}',
			error TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS run_warnings (
			run_id TEXT REFERENCES runs(id),
			idx INTEGER,
			kind TEXT,
			clip TEXT,
			frame TEXT,
			message TEXT,
			PRIMARY KEY (run_id, idx)
		)`,
	} {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}
