package scanner

import (
	"context"
	"time"

	psnet "github.com/shirou/gopsutil/v3/net"

	"github.com/your-org/ubnad/internal/logger"
	"github.com/your-org/ubnad/internal/metrics"
	"github.com/your-org/ubnad/internal/model"
	"github.com/your-org/ubnad/internal/procname"
	"github.com/your-org/ubnad/internal/queue"
)

const (
	statusInterval = 10 * time.Second
	scanBackoff    = 500 * time.Millisecond
)

// PollConfig configures the poll scanner.
type PollConfig struct {
	PollInterval   time.Duration
	EnqueueTimeout time.Duration
	// MaxKnown bounds the dedup set; when reached the set is cleared,
	// which re-reports long-lived connections once. 0 means unbounded.
	MaxKnown int
}

// PollScanner enumerates the OS connection table on a fixed interval and
// emits each genuinely new outbound connection exactly once per run.
type PollScanner struct {
	cfg      PollConfig
	q        *queue.Queue
	resolver *procname.Resolver
	excluder *Excluder

	// listConns is swapped out in tests.
	listConns func() ([]psnet.ConnectionStat, error)
	now       func() time.Time

	known      map[model.ConnectionKey]struct{}
	scanCount  int
	eventCount int
	lastStatus time.Time
}

// NewPollScanner creates a poll scanner producing into q.
func NewPollScanner(cfg PollConfig, q *queue.Queue, resolver *procname.Resolver) *PollScanner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = time.Second
	}
	return &PollScanner{
		cfg:       cfg,
		q:         q,
		resolver:  resolver,
		excluder:  NewExcluder(),
		listConns: func() ([]psnet.ConnectionStat, error) { return psnet.Connections("inet") },
		now:       time.Now,
		known:     make(map[model.ConnectionKey]struct{}),
	}
}

// Run polls until ctx is cancelled. Per-scan errors are logged and the
// loop continues after a short backoff; only cancellation stops it.
func (s *PollScanner) Run(ctx context.Context) error {
	logger.Infof("poll scanner started, interval %s", s.cfg.PollInterval)
	s.lastStatus = s.now()

	for {
		if ctx.Err() != nil {
			logger.Infof("poll scanner stopped: %d scans, %d events", s.scanCount, s.eventCount)
			return nil
		}

		if err := s.scan(); err != nil {
			logger.Errorf("connection scan failed: %v", err)
			if !sleepCtx(ctx, scanBackoff) {
				continue
			}
		}

		if !sleepCtx(ctx, s.cfg.PollInterval) {
			continue
		}
	}
}

func (s *PollScanner) scan() error {
	s.scanCount++
	metrics.IncScan()

	conns, err := s.listConns()
	if err != nil {
		return err
	}

	now := s.now()
	if now.Sub(s.lastStatus) >= statusInterval {
		logger.Infof("scanner status: %d scans, %d events created, tracking %d known connections",
			s.scanCount, s.eventCount, len(s.known))
		metrics.SetKnownConnections(len(s.known))
		metrics.SetQueueDepth(s.q.Len())
		s.lastStatus = now
	}

	for _, conn := range conns {
		// No remote endpoint means it is not an outbound connection.
		if conn.Raddr.IP == "" {
			continue
		}
		if _, skip := skippedStates[conn.Status]; skip {
			continue
		}
		if s.excluder.IsLocal(conn.Raddr.IP) {
			continue
		}

		key := model.ConnectionKey{
			Pid:        conn.Pid,
			LocalIP:    conn.Laddr.IP,
			LocalPort:  conn.Laddr.Port,
			RemoteIP:   conn.Raddr.IP,
			RemotePort: conn.Raddr.Port,
		}
		if _, seen := s.known[key]; seen {
			continue
		}

		if s.cfg.MaxKnown > 0 && len(s.known) >= s.cfg.MaxKnown {
			logger.Warnf("known-connection set hit cap (%d), resetting; open connections will be re-reported once", s.cfg.MaxKnown)
			s.known = make(map[model.ConnectionKey]struct{})
		}
		s.known[key] = struct{}{}

		name := s.resolver.Name(conn.Pid)
		ev := model.ConnEvent{
			Timestamp:   s.now(),
			Pid:         conn.Pid,
			ProcessName: name,
			DestIP:      conn.Raddr.IP,
			DestPort:    conn.Raddr.Port,
		}

		if !s.q.Push(ev, s.cfg.EnqueueTimeout) {
			metrics.IncDropped()
			logger.Warnf("event queue full, dropping %s (%d) -> %s:%d", name, conn.Pid, ev.DestIP, ev.DestPort)
			continue
		}

		s.eventCount++
		metrics.IncEvent()
		logger.Infof("new connection: %s (%d) -> %s:%d", name, conn.Pid, ev.DestIP, ev.DestPort)
	}

	return nil
}

// KnownCount returns the dedup set size.
func (s *PollScanner) KnownCount() int {
	return len(s.known)
}

// sleepCtx sleeps for d, returning false early if ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
