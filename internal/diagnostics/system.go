package diagnostics

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/jaypipes/ghw"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemInfo is a best-effort description of the host. Fields that cannot be
// read are left at their zero value.
type SystemInfo struct {
	OS   string `json:"os"`
	Arch string `json:"arch"`

	CPUModel   string `json:"cpu_model"`
	CPUCores   int    `json:"cpu_cores"`
	CPUThreads int    `json:"cpu_threads"`

	// Memory (in MB)
	MemTotalMB     float64 `json:"mem_total_mb"`
	MemAvailableMB float64 `json:"mem_available_mb"`
	MemPercent     float64 `json:"mem_percent"`

	// Disk holding the repository (in GB)
	DiskPath    string  `json:"disk_path"`
	DiskTotalGB float64 `json:"disk_total_gb"`
	DiskFreeGB  float64 `json:"disk_free_gb"`
	DiskPercent float64 `json:"disk_percent"`

	LoadAvg1  float64 `json:"load_avg_1"`
	LoadAvg5  float64 `json:"load_avg_5"`
	LoadAvg15 float64 `json:"load_avg_15"`

	GPUs []string `json:"gpus,omitempty"`
}

// CollectSystemInfo gathers host information for the filesystem at path.
func CollectSystemInfo(path string) SystemInfo {
	info := SystemInfo{
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		DiskPath: path,
	}

	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		info.CPUModel = strings.TrimSpace(infos[0].ModelName)
	}
	if cores, err := cpu.Counts(false); err == nil {
		info.CPUCores = cores
	}
	if threads, err := cpu.Counts(true); err == nil {
		info.CPUThreads = threads
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemTotalMB = float64(vm.Total) / 1024 / 1024
		info.MemAvailableMB = float64(vm.Available) / 1024 / 1024
		info.MemPercent = vm.UsedPercent
	}

	if usage, err := disk.Usage(path); err == nil {
		info.DiskTotalGB = float64(usage.Total) / 1024 / 1024 / 1024
		info.DiskFreeGB = float64(usage.Free) / 1024 / 1024 / 1024
		info.DiskPercent = usage.UsedPercent
	}

	if avg, err := load.Avg(); err == nil {
		info.LoadAvg1 = avg.Load1
		info.LoadAvg5 = avg.Load5
		info.LoadAvg15 = avg.Load15
	}

	info.GPUs = queryGPUs()
	return info
}

// Lines renders the info as "key: value" lines for terminal output.
func (s SystemInfo) Lines() []string {
	lines := []string{
		fmt.Sprintf("os: %s/%s", s.OS, s.Arch),
	}
	if s.CPUModel != "" {
		lines = append(lines, fmt.Sprintf("cpu: %s (%d cores, %d threads)", s.CPUModel, s.CPUCores, s.CPUThreads))
	}
	if s.MemTotalMB > 0 {
		lines = append(lines, fmt.Sprintf("memory: %.0f MB total, %.0f MB available (%.1f%% used)",
			s.MemTotalMB, s.MemAvailableMB, s.MemPercent))
	}
	if s.DiskTotalGB > 0 {
		lines = append(lines, fmt.Sprintf("disk (%s): %.1f GB total, %.1f GB free (%.1f%% used)",
			s.DiskPath, s.DiskTotalGB, s.DiskFreeGB, s.DiskPercent))
	}
	if runtime.GOOS != "windows" {
		lines = append(lines, fmt.Sprintf("load: %.2f %.2f %.2f", s.LoadAvg1, s.LoadAvg5, s.LoadAvg15))
	}
	for _, gpu := range s.GPUs {
		lines = append(lines, "gpu: "+gpu)
	}
	return lines
}

func queryGPUs() []string {
	info, err := ghw.GPU()
	if err != nil || info == nil || len(info.GraphicsCards) == 0 {
		return nil
	}

	names := make([]string, 0, len(info.GraphicsCards))
	for _, card := range info.GraphicsCards {
		name := ""
		if card.DeviceInfo != nil {
			var parts []string
			if card.DeviceInfo.Vendor != nil {
				parts = append(parts, card.DeviceInfo.Vendor.Name)
			}
			if card.DeviceInfo.Product != nil {
				parts = append(parts, card.DeviceInfo.Product.Name)
			}
			name = strings.TrimSpace(strings.Join(parts, " "))
		}
		if name == "" {
			name = fmt.Sprintf("GPU %d", card.Index)
		}
		names = append(names, name)
	}
	return names
}
