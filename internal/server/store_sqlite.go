package server

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fleetscan/internal/shared"
)

type SQLiteStore struct {
	DB *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{DB: db}
}

func (s *SQLiteStore) CreateSnapshot(ctx context.Context, data *shared.AgentData, clientIP string) (*SnapshotRecord, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }() // no-op once committed

	now := time.Now().Unix()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO agent_data
		   (client_ip, hostname, os_name, os_version,
		    physical_cores, total_cores, max_frequency_mhz, current_frequency_mhz, cpu_usage_percent,
		    created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		clientIP, data.OSInfo.Hostname, data.OSInfo.System, data.OSInfo.Version,
		*data.CPUInfo.PhysicalCores, *data.CPUInfo.TotalCores,
		data.CPUInfo.MaxFrequency, data.CPUInfo.CurrentFrequency, *data.CPUInfo.CPUUsagePercent,
		now,
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	rec := &SnapshotRecord{
		ID:        id,
		ClientIP:  clientIP,
		Hostname:  data.OSInfo.Hostname,
		OSName:    data.OSInfo.System,
		OSVersion: data.OSInfo.Version,
		CPU: CPUStats{
			PhysicalCores:    *data.CPUInfo.PhysicalCores,
			TotalCores:       *data.CPUInfo.TotalCores,
			MaxFrequency:     data.CPUInfo.MaxFrequency,
			CurrentFrequency: data.CPUInfo.CurrentFrequency,
			UsagePercent:     *data.CPUInfo.CPUUsagePercent,
		},
		Processes: make([]ProcessRow, 0, len(data.Processes)),
		Users:     make([]UserSessionRow, 0, len(data.Users)),
		CreatedAt: now,
	}

	for i := range data.Processes {
		p := data.Processes[i]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO process_info (agent_data_id, pid, name, username) VALUES (?, ?, ?, ?)`,
			id, *p.PID, p.Name, p.Username,
		); err != nil {
			return nil, err
		}
		rec.Processes = append(rec.Processes, ProcessRow{PID: *p.PID, Name: p.Name, Username: p.Username})
	}

	for i := range data.Users {
		u := data.Users[i]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_session (agent_data_id, name, terminal, host, started) VALUES (?, ?, ?, ?, ?)`,
			id, u.Name, u.Terminal, u.Host, *u.Started,
		); err != nil {
			return nil, err
		}
		rec.Users = append(rec.Users, UserSessionRow{Name: u.Name, Terminal: u.Terminal, Host: u.Host, Started: *u.Started})
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context, clientIP string, offset, limit int) ([]*SnapshotRecord, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	q := `SELECT id, client_ip, hostname, os_name, os_version,
	             physical_cores, total_cores, max_frequency_mhz, current_frequency_mhz, cpu_usage_percent,
	             created_at
	      FROM agent_data`
	args := []any{}
	if clientIP != "" {
		q += ` WHERE client_ip = ?`
		args = append(args, clientIP)
	}
	q += ` ORDER BY id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*SnapshotRecord
	for rows.Next() {
		rec, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, rec := range recs {
		if err := s.loadChildren(ctx, rec); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, id int64) (*SnapshotRecord, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, client_ip, hostname, os_name, os_version,
		        physical_cores, total_cores, max_frequency_mhz, current_frequency_mhz, cpu_usage_percent,
		        created_at
		 FROM agent_data WHERE id = ?`, id,
	)
	rec, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := s.loadChildren(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *SQLiteStore) CountSnapshots(ctx context.Context) (int64, error) {
	var n int64
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM agent_data`).Scan(&n)
	return n, err
}

func (s *SQLiteStore) DeleteSnapshot(ctx context.Context, id int64) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM agent_data WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*SnapshotRecord, error) {
	var rec SnapshotRecord
	var hostname sql.NullString
	if err := row.Scan(
		&rec.ID, &rec.ClientIP, &hostname, &rec.OSName, &rec.OSVersion,
		&rec.CPU.PhysicalCores, &rec.CPU.TotalCores, &rec.CPU.MaxFrequency, &rec.CPU.CurrentFrequency, &rec.CPU.UsagePercent,
		&rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	rec.Hostname = hostname.String
	return &rec, nil
}

func (s *SQLiteStore) loadChildren(ctx context.Context, rec *SnapshotRecord) error {
	rec.Processes = make([]ProcessRow, 0)
	rec.Users = make([]UserSessionRow, 0)

	rows, err := s.DB.QueryContext(ctx,
		`SELECT pid, name, username FROM process_info WHERE agent_data_id = ? ORDER BY id`, rec.ID,
	)
	if err != nil {
		return err
	}
	for rows.Next() {
		var p ProcessRow
		if err := rows.Scan(&p.PID, &p.Name, &p.Username); err != nil {
			rows.Close()
			return err
		}
		rec.Processes = append(rec.Processes, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	rows, err = s.DB.QueryContext(ctx,
		`SELECT name, terminal, host, started FROM user_session WHERE agent_data_id = ? ORDER BY id`, rec.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var u UserSessionRow
		if err := rows.Scan(&u.Name, &u.Terminal, &u.Host, &u.Started); err != nil {
			return err
		}
		rec.Users = append(rec.Users, u)
	}
	return rows.Err()
}
