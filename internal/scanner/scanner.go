package scanner

import (
	"context"
	"net"
	"strings"

	"github.com/yl2chen/cidranger"
)

// Scanner produces new outbound connection events into the shared queue
// until ctx is cancelled. Implementations: the poll scanner (OS
// connection table) and the eBPF tracer (connect tracepoint). Both emit
// the same event shape; deployment config selects one.
type Scanner interface {
	Run(ctx context.Context) error
}

// Connection states that are not "active outbound".
var skippedStates = map[string]struct{}{
	"LISTEN":     {},
	"NONE":       {},
	"CLOSING":    {},
	"CLOSE_WAIT": {},
}

// localRanges are destinations that never count as unauthorized outbound
// activity. 172.0.0.0/8 is deliberately broader than RFC1918 172.16/12;
// narrowing it would change which events are reported.
var localRanges = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.0.0.0/8",
	"192.168.0.0/16",
	"169.254.0.0/16",
	"::1/128",
	"fe80::/10",
}

// Excluder answers whether a destination address is local or private.
type Excluder struct {
	ranger cidranger.Ranger
}

// NewExcluder builds the CIDR trie for the local-destination policy.
func NewExcluder() *Excluder {
	ranger := cidranger.NewPCTrieRanger()
	for _, cidr := range localRanges {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		_ = ranger.Insert(cidranger.NewBasicRangerEntry(*ipNet))
	}
	return &Excluder{ranger: ranger}
}

// IsLocal reports whether addr must be skipped. Unparseable addresses
// are treated as local rather than reported.
func (e *Excluder) IsLocal(addr string) bool {
	switch strings.ToLower(addr) {
	case "", "localhost", "::", "::1":
		return true
	}

	ip := net.ParseIP(addr)
	if ip == nil {
		return true
	}

	contains, err := e.ranger.Contains(ip)
	if err != nil {
		return true
	}
	return contains
}
