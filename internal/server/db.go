package server

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return nil, err
	}
	// Required for the ON DELETE CASCADE rules on the child tables.
	if _, err := db.Exec(`PRAGMA foreign_keys=ON;`); err != nil {
		return nil, err
	}

	if err := migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS agent_data (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			client_ip TEXT NOT NULL,
			hostname TEXT,
			os_name TEXT NOT NULL,
			os_version TEXT NOT NULL,
			physical_cores INTEGER NOT NULL,
			total_cores INTEGER NOT NULL,
			max_frequency_mhz REAL,
			current_frequency_mhz REAL,
			cpu_usage_percent REAL NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_agent_data_client_ip ON agent_data(client_ip);`,
		`CREATE TABLE IF NOT EXISTS process_info (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_data_id INTEGER NOT NULL,
			pid INTEGER NOT NULL CHECK (pid >= 0),
			name TEXT NOT NULL,
			username TEXT,
			FOREIGN KEY(agent_data_id) REFERENCES agent_data(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_process_info_agent ON process_info(agent_data_id);`,
		`CREATE TABLE IF NOT EXISTS user_session (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_data_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			terminal TEXT,
			host TEXT,
			started REAL NOT NULL,
			FOREIGN KEY(agent_data_id) REFERENCES agent_data(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_user_session_agent ON user_session(agent_data_id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
