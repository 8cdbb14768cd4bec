package detect

import (
	"github.com/your-org/ubnad/internal/baseline"
	"github.com/your-org/ubnad/internal/model"
)

// nominalBaselineTraffic stands in for the traffic baseline of a process
// with no history, so the volume comparison never works against zero.
const nominalBaselineTraffic = 500

// Scoring contributions.
const (
	idleIntentWeight = 5.0
	lowIntentWeight  = 2.0
	trafficWeight    = 3.0
	frequencyWeight  = 1.0
)

// Classification thresholds. One canonical table, applied everywhere:
// scoring, alerting, persistence, and display.
const (
	criticalThreshold = 15.0
	highThreshold     = 10.0
	mediumThreshold   = 5.0
)

// Score combines current intent, the current traffic estimate, and the
// process's learned baseline into an additive suspicion score >= 0. The
// score is unbounded above.
func Score(trafficBytes, intentScore float64, b baseline.Profile) float64 {
	score := 0.0

	// User activity: background traffic while the user is away is the
	// strongest signal this heuristic has.
	if intentScore < 0.2 {
		score += idleIntentWeight
	} else if intentScore < 0.5 {
		score += lowIntentWeight
	}

	baselineTraffic := b.TrafficTotal
	if b.ConnectionCount == 0 && baselineTraffic == 0 {
		baselineTraffic = nominalBaselineTraffic
	}
	if trafficBytes > baselineTraffic*2 {
		score += trafficWeight
	}

	if b.ConnectionCount > 5 {
		score += frequencyWeight
	}

	return score
}

// Classify maps a suspicion score to its risk level.
func Classify(score float64) model.RiskLevel {
	switch {
	case score >= criticalThreshold:
		return model.RiskCritical
	case score >= highThreshold:
		return model.RiskHigh
	case score >= mediumThreshold:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// AlertThreshold is the minimum risk level that triggers an alert.
const AlertThreshold = model.RiskHigh
