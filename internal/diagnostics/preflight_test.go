package diagnostics

import (
	"errors"
	"strings"
	"testing"
)

func fixedProbe(memMB, diskMB uint64) Probe {
	return func(string) (ResourceSnapshot, error) {
		return ResourceSnapshot{FreeMemoryMB: memMB, FreeDiskMB: diskMB}, nil
	}
}

func TestPreflight_Disabled(t *testing.T) {
	t.Parallel()
	p := NewPreflight(PreflightConfig{Enabled: false, MinFreeMemoryMB: 1 << 30}).
		WithProbe(fixedProbe(0, 0))

	result := p.Run()
	if !result.OK || len(result.Errors) != 0 {
		t.Fatalf("disabled preflight should pass, got %+v", result)
	}
}

func TestPreflight_NilIsOK(t *testing.T) {
	t.Parallel()
	var p *Preflight
	if !p.Run().OK {
		t.Fatal("nil preflight should pass")
	}
}

func TestPreflight_Healthy(t *testing.T) {
	t.Parallel()
	p := NewPreflight(PreflightConfig{Enabled: true, MinFreeMemoryMB: 256, MinFreeDiskMB: 512}).
		WithProbe(fixedProbe(8192, 100000))

	result := p.Run()
	if !result.OK {
		t.Fatalf("expected OK, got errors %v", result.Errors)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", result.Warnings)
	}
	if result.Snapshot.FreeMemoryMB != 8192 {
		t.Errorf("snapshot not recorded: %+v", result.Snapshot)
	}
}

func TestPreflight_InsufficientMemory(t *testing.T) {
	t.Parallel()
	p := NewPreflight(PreflightConfig{Enabled: true, MinFreeMemoryMB: 256, MinFreeDiskMB: 512}).
		WithProbe(fixedProbe(100, 100000))

	result := p.Run()
	if result.OK {
		t.Fatal("expected preflight failure")
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "memory") {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if result.Summary() != result.Errors[0] {
		t.Errorf("Summary() = %q", result.Summary())
	}
}

func TestPreflight_BothInsufficient(t *testing.T) {
	t.Parallel()
	p := NewPreflight(PreflightConfig{Enabled: true, MinFreeMemoryMB: 256, MinFreeDiskMB: 512}).
		WithProbe(fixedProbe(1, 1))

	result := p.Run()
	if len(result.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %v", result.Errors)
	}
	if !strings.Contains(result.Summary(), "; ") {
		t.Errorf("Summary() should join errors, got %q", result.Summary())
	}
}

func TestPreflight_WarnsNearThreshold(t *testing.T) {
	t.Parallel()
	p := NewPreflight(PreflightConfig{Enabled: true, MinFreeMemoryMB: 0, MinFreeDiskMB: 512}).
		WithProbe(fixedProbe(0, 600))

	result := p.Run()
	if !result.OK {
		t.Fatalf("expected OK, got %v", result.Errors)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "disk") {
		t.Fatalf("expected disk warning, got %v", result.Warnings)
	}
}

func TestPreflight_ProbeFailureWarns(t *testing.T) {
	t.Parallel()
	p := NewPreflight(PreflightConfig{Enabled: true, MinFreeMemoryMB: 256}).
		WithProbe(func(string) (ResourceSnapshot, error) {
			return ResourceSnapshot{}, errors.New("no /proc")
		})

	result := p.Run()
	if !result.OK {
		t.Fatal("probe failure must not block the agent")
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", result.Warnings)
	}
}

func TestPreflight_HostProbe(t *testing.T) {
	t.Parallel()
	p := NewPreflight(PreflightConfig{Enabled: true, Path: t.TempDir()})

	result := p.Run()
	// Thresholds are zero so the result only reflects probe success.
	if !result.OK {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
}
