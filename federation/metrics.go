package federation

import (
	"fmt"
	"net"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/YuminosukeSato/neurogo/pkg/errors"
)

// SystemMetrics is a point-in-time snapshot of host resource usage.
type SystemMetrics struct {
	CPUUsage        float64   `json:"cpu_usage"`
	MemoryUsage     float64   `json:"memory_usage"`
	MemoryTotal     uint64    `json:"memory_total"`
	MemoryAvailable uint64    `json:"memory_available"`
	DiskUsage       float64   `json:"disk_usage"`
	DiskTotal       uint64    `json:"disk_total"`
	DiskFree        uint64    `json:"disk_free"`
	LoadAverage     []float64 `json:"load_average,omitempty"`
	ProcessCount    int       `json:"process_count"`
	Uptime          uint64    `json:"uptime"`
}

// ProcessMetrics is a snapshot of the neuron's own process.
type ProcessMetrics struct {
	PID        int32   `json:"pid"`
	CPUPercent float64 `json:"cpu_percent"`
	MemoryRSS  uint64  `json:"memory_rss"`
	MemoryVMS  uint64  `json:"memory_vms"`
	NumThreads int32   `json:"num_threads"`
	CreateTime int64   `json:"create_time"`
	Status     string  `json:"status"`
}

// Collector samples host and process metrics for heartbeats and health
// checks. Probes are best-effort: a failing probe leaves its fields zero so
// a degraded host never blocks the heartbeat itself.
type Collector struct {
	proc     *process.Process
	diskPath string
}

// NewCollector returns a collector bound to the current process.
func NewCollector() (*Collector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, errors.Wrap(err, "attach process collector")
	}
	return &Collector{proc: proc, diskPath: "/"}, nil
}

// System samples host-wide metrics.
func (c *Collector) System() *SystemMetrics {
	m := &SystemMetrics{}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		m.CPUUsage = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		m.MemoryUsage = vm.UsedPercent
		m.MemoryTotal = vm.Total
		m.MemoryAvailable = vm.Available
	}
	if du, err := disk.Usage(c.diskPath); err == nil {
		m.DiskUsage = du.UsedPercent
		m.DiskTotal = du.Total
		m.DiskFree = du.Free
	}
	if avg, err := load.Avg(); err == nil {
		m.LoadAverage = []float64{avg.Load1, avg.Load5, avg.Load15}
	}
	if pids, err := process.Pids(); err == nil {
		m.ProcessCount = len(pids)
	}
	if up, err := host.Uptime(); err == nil {
		m.Uptime = up
	}
	return m
}

// Application samples the neuron's own process.
func (c *Collector) Application() *ProcessMetrics {
	m := &ProcessMetrics{PID: c.proc.Pid}
	if pct, err := c.proc.CPUPercent(); err == nil {
		m.CPUPercent = pct
	}
	if mi, err := c.proc.MemoryInfo(); err == nil && mi != nil {
		m.MemoryRSS = mi.RSS
		m.MemoryVMS = mi.VMS
	}
	if nt, err := c.proc.NumThreads(); err == nil {
		m.NumThreads = nt
	}
	if ct, err := c.proc.CreateTime(); err == nil {
		m.CreateTime = ct
	}
	if st, err := c.proc.Status(); err == nil && len(st) > 0 {
		m.Status = st[0]
	}
	return m
}

// HealthScore grades a metrics snapshot on a 0 to 100 scale. Loaded CPU,
// memory, and disk and a rising request error rate each subtract a fixed
// penalty.
func HealthScore(m *SystemMetrics, errorRate float64) int {
	score := 100
	switch {
	case m.CPUUsage > 80:
		score -= 20
	case m.CPUUsage > 60:
		score -= 10
	}
	switch {
	case m.MemoryUsage > 85:
		score -= 20
	case m.MemoryUsage > 70:
		score -= 10
	}
	switch {
	case m.DiskUsage > 90:
		score -= 15
	case m.DiskUsage > 80:
		score -= 5
	}
	switch {
	case errorRate > 5:
		score -= 25
	case errorRate > 2:
		score -= 10
	}
	return max(0, score)
}

// hostInfo describes the local machine for registration and heartbeats.
func hostInfo() HostInfo {
	info := HostInfo{
		IPAddress:   localIP(),
		ContainerID: os.Getenv("CONTAINER_ID"),
	}
	if name, err := os.Hostname(); err == nil {
		info.Hostname = name
	}
	if hi, err := host.Info(); err == nil {
		info.Platform = fmt.Sprintf("%s %s (%s)", hi.Platform, hi.PlatformVersion, hi.KernelArch)
	} else {
		info.Platform = runtime.GOOS + "/" + runtime.GOARCH
	}
	return info
}

// localIP discovers the outbound interface address. Dialing UDP sends no
// packets.
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "127.0.0.1"
}
