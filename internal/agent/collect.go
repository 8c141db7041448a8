package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/process"

	"fleetscan/internal/shared"
)

// CollectSnapshot gathers the host's CPU, process, user-session and OS
// state into one ingest payload. sampleWindow is how long cpu.Percent
// samples for; zero means the instantaneous reading since boot.
func CollectSnapshot(ctx context.Context, sampleWindow time.Duration) (*shared.AgentData, error) {
	cpuInfo, err := collectCPU(ctx, sampleWindow)
	if err != nil {
		return nil, fmt.Errorf("cpu: %w", err)
	}

	procs, err := collectProcesses(ctx)
	if err != nil {
		return nil, fmt.Errorf("processes: %w", err)
	}

	osInfo, users, err := collectHost(ctx)
	if err != nil {
		return nil, fmt.Errorf("host: %w", err)
	}

	return &shared.AgentData{
		CPUInfo:   cpuInfo,
		Processes: procs,
		Users:     users,
		OSInfo:    osInfo,
	}, nil
}

func collectCPU(ctx context.Context, sampleWindow time.Duration) (*shared.CPUInfo, error) {
	physical, err := cpu.CountsWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to determine physical cpu count: %w", err)
	}
	logical, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to determine logical cpu count: %w", err)
	}

	percents, err := cpu.PercentWithContext(ctx, sampleWindow, false)
	if err != nil {
		return nil, fmt.Errorf("failed to sample cpu usage: %w", err)
	}
	usage := 0.0
	if len(percents) > 0 {
		usage = percents[0]
	}

	info := &shared.CPUInfo{
		PhysicalCores:   &physical,
		TotalCores:      &logical,
		CPUUsagePercent: &usage,
	}

	// /proc/cpuinfo exposes only the current clock; max stays null.
	if stats, err := cpu.InfoWithContext(ctx); err == nil && len(stats) > 0 && stats[0].Mhz > 0 {
		mhz := stats[0].Mhz
		info.CurrentFrequency = &mhz
	}
	return info, nil
}

func collectProcesses(ctx context.Context) ([]shared.ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]shared.ProcessInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			// Raced with process exit or access denied; skip it.
			continue
		}
		pid := int(p.Pid)
		entry := shared.ProcessInfo{PID: &pid, Name: name}
		if username, err := p.UsernameWithContext(ctx); err == nil && username != "" {
			entry.Username = &username
		}
		out = append(out, entry)
	}
	return out, nil
}

func collectHost(ctx context.Context) (*shared.OSInfo, []shared.UserSession, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, nil, err
	}
	version := info.KernelVersion
	if version == "" {
		version = info.PlatformVersion
	}
	osInfo := &shared.OSInfo{
		System:   info.OS,
		Version:  version,
		Hostname: info.Hostname,
	}

	// Some platforms have no utmp; treat that as zero sessions.
	sessions := make([]shared.UserSession, 0)
	if users, err := host.UsersWithContext(ctx); err == nil {
		for _, u := range users {
			started := float64(u.Started)
			entry := shared.UserSession{Name: u.User, Started: &started}
			if u.Terminal != "" {
				terminal := u.Terminal
				entry.Terminal = &terminal
			}
			if u.Host != "" {
				h := u.Host
				entry.Host = &h
			}
			sessions = append(sessions, entry)
		}
	}
	return osInfo, sessions, nil
}
