package server

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetscan/internal/shared"
)

func intPtr(v int) *int { return &v }

func f64Ptr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteStore(db)
}

func snapshotPayload(hostname string) *shared.AgentData {
	return &shared.AgentData{
		CPUInfo: &shared.CPUInfo{
			PhysicalCores:    intPtr(4),
			TotalCores:       intPtr(8),
			CurrentFrequency: f64Ptr(2400.0),
			CPUUsagePercent:  f64Ptr(12.5),
		},
		Processes: []shared.ProcessInfo{
			{PID: intPtr(100), Name: "init"},
			{PID: intPtr(2001), Name: "sshd", Username: strPtr("root")},
		},
		Users: []shared.UserSession{
			{Name: "root", Terminal: strPtr("tty1"), Started: f64Ptr(1700000000.0)},
		},
		OSInfo: &shared.OSInfo{System: "Linux", Version: "5.15", Hostname: hostname},
	}
}

func TestCreateAndGetSnapshot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	data := snapshotPayload("box1")
	rec, err := store.CreateSnapshot(ctx, data, "10.0.0.5")
	require.NoError(t, err)
	assert.Positive(t, rec.ID)
	assert.Equal(t, "10.0.0.5", rec.ClientIP)
	assert.Len(t, rec.Processes, len(data.Processes))
	assert.Len(t, rec.Users, len(data.Users))

	got, err := store.GetSnapshot(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "10.0.0.5", got.ClientIP)
	assert.Equal(t, "box1", got.Hostname)
	assert.Equal(t, "Linux", got.OSName)
	assert.Equal(t, "5.15", got.OSVersion)
	assert.Equal(t, 4, got.CPU.PhysicalCores)
	assert.Equal(t, 8, got.CPU.TotalCores)
	assert.Nil(t, got.CPU.MaxFrequency)
	require.NotNil(t, got.CPU.CurrentFrequency)
	assert.InDelta(t, 2400.0, *got.CPU.CurrentFrequency, 0.001)
	assert.InDelta(t, 12.5, got.CPU.UsagePercent, 0.001)

	require.Len(t, got.Processes, 2)
	assert.Equal(t, ProcessRow{PID: 100, Name: "init"}, got.Processes[0])
	require.NotNil(t, got.Processes[1].Username)
	assert.Equal(t, "root", *got.Processes[1].Username)

	require.Len(t, got.Users, 1)
	assert.Equal(t, "root", got.Users[0].Name)
	assert.Nil(t, got.Users[0].Host)
	assert.InDelta(t, 1700000000.0, got.Users[0].Started, 0.001)
}

func TestSnapshotIDsIncrease(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.CreateSnapshot(ctx, snapshotPayload("a"), "10.0.0.1")
	require.NoError(t, err)
	second, err := store.CreateSnapshot(ctx, snapshotPayload("b"), "10.0.0.2")
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)
}

func TestCreateSnapshotAtomicRollback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// The second process row trips the pid >= 0 check constraint after
	// the parent and first child have been written inside the tx.
	data := snapshotPayload("box1")
	data.Processes = append(data.Processes, shared.ProcessInfo{PID: intPtr(-1), Name: "bogus"})

	_, err := store.CreateSnapshot(ctx, data, "10.0.0.5")
	require.Error(t, err)

	n, err := store.CountSnapshots(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	var procs, users int
	require.NoError(t, store.DB.QueryRow(`SELECT COUNT(*) FROM process_info`).Scan(&procs))
	require.NoError(t, store.DB.QueryRow(`SELECT COUNT(*) FROM user_session`).Scan(&users))
	assert.Zero(t, procs)
	assert.Zero(t, users)

	// The store stays usable for the next independent transaction.
	rec, err := store.CreateSnapshot(ctx, snapshotPayload("box2"), "10.0.0.6")
	require.NoError(t, err)
	assert.Positive(t, rec.ID)
}

func TestListSnapshots(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ips := []string{"10.0.0.1", "10.0.0.2", "10.0.0.1", "10.0.0.1"}
	ids := make([]int64, 0, len(ips))
	for i, ip := range ips {
		rec, err := store.CreateSnapshot(ctx, snapshotPayload("box"+string(rune('a'+i))), ip)
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}

	all, err := store.ListSnapshots(ctx, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := range all {
		assert.Equal(t, ids[i], all[i].ID, "insertion order")
		assert.NotNil(t, all[i].Processes, "children reachable from list")
	}

	filtered, err := store.ListSnapshots(ctx, "10.0.0.1", 0, 0)
	require.NoError(t, err)
	require.Len(t, filtered, 3)
	for _, rec := range filtered {
		assert.Equal(t, "10.0.0.1", rec.ClientIP)
	}

	page, err := store.ListSnapshots(ctx, "10.0.0.1", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[2], page[0].ID)

	none, err := store.ListSnapshots(ctx, "192.0.2.9", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetSnapshotNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetSnapshot(context.Background(), 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSnapshotCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.CreateSnapshot(ctx, snapshotPayload("box1"), "10.0.0.5")
	require.NoError(t, err)
	keep, err := store.CreateSnapshot(ctx, snapshotPayload("box2"), "10.0.0.6")
	require.NoError(t, err)

	require.NoError(t, store.DeleteSnapshot(ctx, rec.ID))

	_, err = store.GetSnapshot(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var procs, users int
	require.NoError(t, store.DB.QueryRow(`SELECT COUNT(*) FROM process_info WHERE agent_data_id = ?`, rec.ID).Scan(&procs))
	require.NoError(t, store.DB.QueryRow(`SELECT COUNT(*) FROM user_session WHERE agent_data_id = ?`, rec.ID).Scan(&users))
	assert.Zero(t, procs)
	assert.Zero(t, users)

	// Unrelated record untouched.
	got, err := store.GetSnapshot(ctx, keep.ID)
	require.NoError(t, err)
	assert.Len(t, got.Processes, 2)

	assert.ErrorIs(t, store.DeleteSnapshot(ctx, rec.ID), ErrNotFound)
}

func TestPayloadProjection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.CreateSnapshot(ctx, snapshotPayload("box1"), "10.0.0.5")
	require.NoError(t, err)

	out := rec.Payload()
	assert.Equal(t, rec.ID, out.ID)
	assert.Equal(t, "10.0.0.5", out.ClientIP)
	assert.Equal(t, 4, *out.CPUInfo.PhysicalCores)
	assert.Nil(t, out.CPUInfo.MaxFrequency)
	require.Len(t, out.Processes, 2)
	assert.Equal(t, "init", out.Processes[0].Name)
	assert.Equal(t, 100, *out.Processes[0].PID)
	require.Len(t, out.Users, 1)
	assert.InDelta(t, 1700000000.0, *out.Users[0].Started, 0.001)
	assert.Equal(t, "box1", out.OSInfo.Hostname)
}
