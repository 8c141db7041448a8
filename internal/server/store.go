package server

import (
	"context"
	"errors"

	"fleetscan/internal/shared"
)

// ErrNotFound is returned by GetSnapshot/DeleteSnapshot for an unknown id.
var ErrNotFound = errors.New("snapshot not found")

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

type CPUStats struct {
	PhysicalCores    int
	TotalCores       int
	MaxFrequency     *float64 // MHz, nil when the agent could not read it
	CurrentFrequency *float64 // MHz
	UsagePercent     float64
}

type ProcessRow struct {
	PID      int
	Name     string
	Username *string
}

type UserSessionRow struct {
	Name     string
	Terminal *string
	Host     *string
	Started  float64
}

// SnapshotRecord is one ingested snapshot with its child rows attached.
// The id is store-assigned; ClientIP is whatever the server observed on
// the connection, never a payload value.
type SnapshotRecord struct {
	ID        int64
	ClientIP  string
	Hostname  string
	OSName    string
	OSVersion string
	CPU       CPUStats
	Processes []ProcessRow
	Users     []UserSessionRow
	CreatedAt int64
}

type Store interface {
	// CreateSnapshot writes the parent row plus one child row per process
	// and user session in a single transaction. A failure partway leaves
	// no rows from this call visible.
	CreateSnapshot(ctx context.Context, data *shared.AgentData, clientIP string) (*SnapshotRecord, error)

	// ListSnapshots returns records in insertion order, optionally
	// restricted to an exact client_ip match. offset<0 is treated as 0;
	// limit<=0 falls back to DefaultListLimit and is capped at
	// MaxListLimit.
	ListSnapshots(ctx context.Context, clientIP string, offset, limit int) ([]*SnapshotRecord, error)

	// GetSnapshot returns the record with the given id or ErrNotFound.
	GetSnapshot(ctx context.Context, id int64) (*SnapshotRecord, error)

	CountSnapshots(ctx context.Context) (int64, error)

	// DeleteSnapshot removes a record and, via the cascade rule, all its
	// children. Not routed over HTTP; used by admin tooling.
	DeleteSnapshot(ctx context.Context, id int64) error
}

// Payload projects a stored record onto the outbound wire schema.
func (r *SnapshotRecord) Payload() shared.AgentRecordOut {
	cores := r.CPU.PhysicalCores
	total := r.CPU.TotalCores
	usage := r.CPU.UsagePercent

	out := shared.AgentRecordOut{
		ID:       r.ID,
		ClientIP: r.ClientIP,
		CPUInfo: shared.CPUInfo{
			PhysicalCores:    &cores,
			TotalCores:       &total,
			MaxFrequency:     r.CPU.MaxFrequency,
			CurrentFrequency: r.CPU.CurrentFrequency,
			CPUUsagePercent:  &usage,
		},
		Processes: make([]shared.ProcessInfo, 0, len(r.Processes)),
		Users:     make([]shared.UserSession, 0, len(r.Users)),
		OSInfo: shared.OSInfo{
			System:   r.OSName,
			Version:  r.OSVersion,
			Hostname: r.Hostname,
		},
	}
	for i := range r.Processes {
		p := r.Processes[i]
		pid := p.PID
		out.Processes = append(out.Processes, shared.ProcessInfo{
			PID:      &pid,
			Name:     p.Name,
			Username: p.Username,
		})
	}
	for i := range r.Users {
		u := r.Users[i]
		started := u.Started
		out.Users = append(out.Users, shared.UserSession{
			Name:     u.Name,
			Terminal: u.Terminal,
			Host:     u.Host,
			Started:  &started,
		})
	}
	return out
}
