package model

import "time"

// RiskLevel is the discretized risk category assigned to a scored event.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// AtLeast reports whether l is at or above other in the fixed risk ordering.
func (l RiskLevel) AtLeast(other RiskLevel) bool {
	return l.rank() >= other.rank()
}

func (l RiskLevel) rank() int {
	switch l {
	case RiskCritical:
		return 3
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

// ConnectionKey identifies a socket 4-tuple plus owning pid. It is the
// deduplication identity for the scanner's known-connection set.
type ConnectionKey struct {
	Pid        int32
	LocalIP    string
	LocalPort  uint32
	RemoteIP   string
	RemotePort uint32
}

// ConnEvent is a newly detected outbound connection, produced by a scanner
// and consumed exactly once by the analyzer.
type ConnEvent struct {
	Timestamp   time.Time
	Pid         int32
	ProcessName string
	DestIP      string
	DestPort    uint32
}

// ScoredEvent is a ConnEvent after the full analysis pipeline.
type ScoredEvent struct {
	ConnEvent

	IntentScore    float64
	SuspicionScore float64
	Risk           RiskLevel
}

// TimestampFormat is the layout used for the persisted timestamp column.
const TimestampFormat = "2006-01-02 15:04:05"
