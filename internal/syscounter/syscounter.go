// Package syscounter provides counter sources that sample the operating
// system and the current process through gopsutil.
package syscounter

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/crimson-sun/vigil/internal/counter"
)

const mb = 1024 * 1024

// Func adapts a sampling function to counter.Source.
type Func func() (float64, error)

func (f Func) NextValue() (float64, error) { return f() }

// Descriptor names a system measurement and the counter type it is shown as.
type Descriptor struct {
	Name     string
	Category string
	Type     counter.Type
	Help     string
	new      func() (counter.Source, error)
}

// Source builds a fresh source for the measurement.
func (d Descriptor) Source() (counter.Source, error) { return d.new() }

var (
	mu      sync.RWMutex
	catalog = map[string]Descriptor{}
)

func register(d Descriptor) {
	mu.Lock()
	defer mu.Unlock()
	catalog[d.Name] = d
}

// Lookup returns the descriptor registered under name.
func Lookup(name string) (Descriptor, error) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := catalog[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("syscounter: unknown counter %q", name)
	}
	return d, nil
}

// New builds a source for the named measurement.
func New(name string) (counter.Source, error) {
	d, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return d.Source()
}

// Descriptors lists every available measurement, sorted by category then name.
func Descriptors() []Descriptor {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Descriptor, 0, len(catalog))
	for _, d := range catalog {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Categories lists the distinct categories of the catalog.
func Categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, d := range Descriptors() {
		if !seen[d.Category] {
			seen[d.Category] = true
			out = append(out, d.Category)
		}
	}
	return out
}

func static(f Func) func() (counter.Source, error) {
	return func() (counter.Source, error) { return f, nil }
}

// CPUPercent samples total CPU utilisation since the previous call.
func CPUPercent() (float64, error) {
	p, err := cpu.Percent(0, false)
	if err != nil {
		return 0, fmt.Errorf("cpu percent: %w", err)
	}
	if len(p) == 0 {
		return 0, fmt.Errorf("cpu percent: no samples")
	}
	return p[0], nil
}

// MemoryUsedPercent samples virtual memory utilisation.
func MemoryUsedPercent() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, fmt.Errorf("virtual memory: %w", err)
	}
	return vm.UsedPercent, nil
}

// MemoryAvailableMB samples available memory in megabytes.
func MemoryAvailableMB() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, fmt.Errorf("virtual memory: %w", err)
	}
	return float64(vm.Available / mb), nil
}

func swapPercent() (float64, error) {
	s, err := mem.SwapMemory()
	if err != nil {
		return 0, fmt.Errorf("swap memory: %w", err)
	}
	return s.UsedPercent, nil
}

func loadAvg(pick func(*load.AvgStat) float64) Func {
	return func() (float64, error) {
		l, err := load.Avg()
		if err != nil {
			return 0, fmt.Errorf("load average: %w", err)
		}
		return pick(l), nil
	}
}

// DiskUsedPercent returns a source sampling the filesystem holding path.
func DiskUsedPercent(path string) Func {
	return func() (float64, error) {
		u, err := disk.Usage(path)
		if err != nil {
			return 0, fmt.Errorf("disk usage %s: %w", path, err)
		}
		return u.UsedPercent, nil
	}
}

func netBytes(pick func(net.IOCountersStat) uint64) Func {
	return func() (float64, error) {
		s, err := net.IOCounters(false)
		if err != nil {
			return 0, fmt.Errorf("net io counters: %w", err)
		}
		if len(s) == 0 {
			return 0, fmt.Errorf("net io counters: no interfaces")
		}
		return float64(pick(s[0])), nil
	}
}

func self() (*process.Process, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("current process: %w", err)
	}
	return p, nil
}

// processSource binds a sampler to a handle of the current process, taken
// once when the source is built.
func processSource(sample func(*process.Process) (float64, error)) func() (counter.Source, error) {
	return func() (counter.Source, error) {
		p, err := self()
		if err != nil {
			return nil, err
		}
		return Func(func() (float64, error) { return sample(p) }), nil
	}
}

func init() {
	register(Descriptor{Name: "cpu.percent", Category: "cpu", Type: counter.PercentValue,
		Help: "Total CPU utilisation", new: static(CPUPercent)})
	register(Descriptor{Name: "memory.used_percent", Category: "memory", Type: counter.PercentValue,
		Help: "Virtual memory in use", new: static(MemoryUsedPercent)})
	register(Descriptor{Name: "memory.available_mb", Category: "memory", Type: counter.CountOfItems,
		Help: "Available memory in MB", new: static(MemoryAvailableMB)})
	register(Descriptor{Name: "memory.swap_percent", Category: "memory", Type: counter.PercentValue,
		Help: "Swap in use", new: static(swapPercent)})
	register(Descriptor{Name: "load.1", Category: "load", Type: counter.AverageValue,
		Help: "One minute load average", new: static(loadAvg(func(l *load.AvgStat) float64 { return l.Load1 }))})
	register(Descriptor{Name: "load.5", Category: "load", Type: counter.AverageValue,
		Help: "Five minute load average", new: static(loadAvg(func(l *load.AvgStat) float64 { return l.Load5 }))})
	register(Descriptor{Name: "load.15", Category: "load", Type: counter.AverageValue,
		Help: "Fifteen minute load average", new: static(loadAvg(func(l *load.AvgStat) float64 { return l.Load15 }))})
	register(Descriptor{Name: "disk.used_percent", Category: "disk", Type: counter.PercentValue,
		Help: "Used space on the root filesystem", new: static(DiskUsedPercent("/"))})
	register(Descriptor{Name: "net.bytes_sent", Category: "net", Type: counter.CountOfItems,
		Help: "Bytes sent on all interfaces", new: static(netBytes(func(s net.IOCountersStat) uint64 { return s.BytesSent }))})
	register(Descriptor{Name: "net.bytes_recv", Category: "net", Type: counter.CountOfItems,
		Help: "Bytes received on all interfaces", new: static(netBytes(func(s net.IOCountersStat) uint64 { return s.BytesRecv }))})
	register(Descriptor{Name: "process.rss_mb", Category: "process", Type: counter.CountOfItems,
		Help: "Resident memory of this process in MB", new: processSource(func(p *process.Process) (float64, error) {
			m, err := p.MemoryInfo()
			if err != nil {
				return 0, fmt.Errorf("process memory: %w", err)
			}
			return float64(m.RSS / mb), nil
		})})
	register(Descriptor{Name: "process.cpu_percent", Category: "process", Type: counter.PercentValue,
		Help: "CPU utilisation of this process", new: processSource(func(p *process.Process) (float64, error) {
			v, err := p.Percent(0)
			if err != nil {
				return 0, fmt.Errorf("process cpu: %w", err)
			}
			return v, nil
		})})
	register(Descriptor{Name: "process.threads", Category: "process", Type: counter.CountOfItems,
		Help: "OS threads of this process", new: processSource(func(p *process.Process) (float64, error) {
			n, err := p.NumThreads()
			if err != nil {
				return 0, fmt.Errorf("process threads: %w", err)
			}
			return float64(n), nil
		})})
	register(Descriptor{Name: "runtime.goroutines", Category: "runtime", Type: counter.CountOfItems,
		Help: "Live goroutines", new: static(func() (float64, error) { return float64(runtime.NumGoroutine()), nil })})
}
