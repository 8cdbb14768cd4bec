package baseline

import (
	"sync"

	"github.com/your-org/ubnad/internal/logger"
)

// intentDecay is the EMA weight given to the newest intent observation.
const intentDecay = 0.3

// Profile is the learned behavior summary for one process name.
type Profile struct {
	TrafficTotal    float64
	ConnectionCount int
	AvgIntent       float64
}

// defaultProfile is returned for never-observed processes and used as the
// starting point when a profile is created.
func defaultProfile() Profile {
	return Profile{AvgIntent: 0.5}
}

// Store holds per-process behavior profiles, keyed by process name.
// Profiles are created lazily, mutated on every event for that name, and
// never deleted, so restarts of a process under the same name continue
// the same profile. An optional cap keeps long sessions bounded: once
// reached, unseen names are scored against the default profile instead
// of growing the map.
type Store struct {
	mu          sync.Mutex
	profiles    map[string]*Profile
	maxProfiles int
	capWarned   bool
}

// NewStore creates a store. maxProfiles <= 0 means unbounded.
func NewStore(maxProfiles int) *Store {
	return &Store{
		profiles:    make(map[string]*Profile),
		maxProfiles: maxProfiles,
	}
}

// Update folds one observation into the profile for processName.
func (s *Store) Update(processName string, trafficBytes, intentScore float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[processName]
	if !ok {
		if s.maxProfiles > 0 && len(s.profiles) >= s.maxProfiles {
			if !s.capWarned {
				logger.Warnf("behavior profile cap reached (%d); new processes will use the default baseline", s.maxProfiles)
				s.capWarned = true
			}
			return
		}
		def := defaultProfile()
		p = &def
		s.profiles[processName] = p
	}

	p.TrafficTotal += trafficBytes
	p.ConnectionCount++
	p.AvgIntent = p.AvgIntent*(1-intentDecay) + intentScore*intentDecay
}

// Baseline returns a copy of the profile for processName, or the default
// profile if the process has never been observed.
func (s *Store) Baseline(processName string) Profile {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.profiles[processName]; ok {
		return *p
	}
	return defaultProfile()
}

// Len returns the number of tracked profiles.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.profiles)
}
