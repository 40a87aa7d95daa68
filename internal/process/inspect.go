package process

import (
	"errors"
	"time"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// Info is a point-in-time view of a process.
type Info struct {
	PID       int       `json:"pid"`
	Running   bool      `json:"running"`
	Name      string    `json:"name,omitempty"`
	Cmdline   string    `json:"cmdline,omitempty"`
	Status    []string  `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// Inspect reports whether pid is alive and what it is running. A pid that
// does not exist is not an error; it reports Running=false.
func Inspect(pid int) (Info, error) {
	info := Info{PID: pid}
	if pid <= 0 {
		return info, nil
	}
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		if errors.Is(err, gopsproc.ErrorProcessNotRunning) {
			return info, nil
		}
		return info, err
	}
	running, err := p.IsRunning()
	if err != nil {
		return info, err
	}
	if st, err := p.Status(); err == nil {
		info.Status = st
		for _, s := range st {
			if s == gopsproc.Zombie {
				running = false
			}
		}
	}
	info.Running = running
	if !running {
		return info, nil
	}
	info.Name, _ = p.Name()
	info.Cmdline, _ = p.Cmdline()
	if ms, err := p.CreateTime(); err == nil && ms > 0 {
		info.CreatedAt = time.UnixMilli(ms)
	}
	return info, nil
}
