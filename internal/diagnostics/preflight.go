package diagnostics

import (
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceSnapshot is the subset of host state preflight looks at.
type ResourceSnapshot struct {
	FreeMemoryMB uint64
	FreeDiskMB   uint64
}

// Probe reads a ResourceSnapshot for the filesystem holding path.
type Probe func(path string) (ResourceSnapshot, error)

// PreflightResult contains the result of pre-execution checks.
type PreflightResult struct {
	OK       bool
	Warnings []string
	Errors   []string
	Snapshot ResourceSnapshot
}

// Summary joins the errors into a single line.
func (r PreflightResult) Summary() string {
	return strings.Join(r.Errors, "; ")
}

// PreflightConfig configures a Preflight.
type PreflightConfig struct {
	Enabled         bool
	MinFreeMemoryMB int
	MinFreeDiskMB   int
	// Path selects the filesystem whose free space is checked.
	Path string
}

// Preflight checks host resources before an agent run.
type Preflight struct {
	cfg   PreflightConfig
	probe Probe
}

// NewPreflight creates a preflight checker backed by gopsutil.
func NewPreflight(cfg PreflightConfig) *Preflight {
	if cfg.Path == "" {
		cfg.Path = "."
	}
	return &Preflight{cfg: cfg, probe: hostProbe}
}

// WithProbe replaces the resource probe. Used by tests.
func (p *Preflight) WithProbe(probe Probe) *Preflight {
	p.probe = probe
	return p
}

// Run performs the checks. Thresholds of zero disable the matching check and
// a probe failure degrades to a warning.
func (p *Preflight) Run() PreflightResult {
	result := PreflightResult{OK: true}

	if p == nil || !p.cfg.Enabled {
		return result
	}

	snap, err := p.probe(p.cfg.Path)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("resource probe failed: %v", err))
		return result
	}
	result.Snapshot = snap

	check := func(what string, free uint64, minimum int) {
		if minimum <= 0 {
			return
		}
		switch {
		case free < uint64(minimum):
			result.OK = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("insufficient free %s: %d MB (minimum: %d MB)", what, free, minimum))
		case float64(free) < float64(minimum)*1.5:
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("free %s approaching limit: %d MB", what, free))
		}
	}
	check("memory", snap.FreeMemoryMB, p.cfg.MinFreeMemoryMB)
	check("disk", snap.FreeDiskMB, p.cfg.MinFreeDiskMB)

	return result
}

func hostProbe(path string) (ResourceSnapshot, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return ResourceSnapshot{}, fmt.Errorf("reading memory: %w", err)
	}
	usage, err := disk.Usage(path)
	if err != nil {
		return ResourceSnapshot{}, fmt.Errorf("reading disk usage of %s: %w", path, err)
	}
	return ResourceSnapshot{
		FreeMemoryMB: vm.Available / 1024 / 1024,
		FreeDiskMB:   usage.Free / 1024 / 1024,
	}, nil
}
