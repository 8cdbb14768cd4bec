package procname

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/process"
)

// Resolver maps pids to process names, best effort. Lookups never fail:
// any error degrades to a deterministic placeholder embedding the pid.
type Resolver struct {
	lookup func(pid int32) (string, error)
}

// New creates a resolver backed by the OS process table.
func New() *Resolver {
	return &Resolver{lookup: osLookup}
}

// NewWithLookup creates a resolver with a custom lookup, for tests.
func NewWithLookup(lookup func(pid int32) (string, error)) *Resolver {
	return &Resolver{lookup: lookup}
}

func osLookup(pid int32) (string, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return "", err
	}
	return p.Name()
}

// Name returns the process name for pid, or "PID_<pid>" when the process
// is gone, access is denied, or pid is not a real pid.
func (r *Resolver) Name(pid int32) string {
	if pid <= 0 {
		return Placeholder(pid)
	}
	name, err := r.lookup(pid)
	if err != nil || name == "" {
		return Placeholder(pid)
	}
	return name
}

// Placeholder is the synthetic name used when resolution fails.
func Placeholder(pid int32) string {
	return fmt.Sprintf("PID_%d", pid)
}

// State is best-effort process metadata used for debug logging.
type State struct {
	Name   string
	Exe    string
	Status string
}

// State returns richer process metadata, or nil when lookup fails.
func (r *Resolver) State(pid int32) *State {
	if pid <= 0 {
		return nil
	}
	p, err := process.NewProcess(pid)
	if err != nil {
		return nil
	}
	name, err := p.Name()
	if err != nil {
		return nil
	}
	st := &State{Name: name}
	if exe, err := p.Exe(); err == nil {
		st.Exe = exe
	}
	if statuses, err := p.Status(); err == nil && len(statuses) > 0 {
		st.Status = statuses[0]
	}
	return st
}
