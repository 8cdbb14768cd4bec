package analyzer

import (
	"context"
	"time"

	"github.com/your-org/ubnad/internal/alerts"
	"github.com/your-org/ubnad/internal/baseline"
	"github.com/your-org/ubnad/internal/detect"
	"github.com/your-org/ubnad/internal/intent"
	"github.com/your-org/ubnad/internal/logger"
	"github.com/your-org/ubnad/internal/metrics"
	"github.com/your-org/ubnad/internal/model"
	"github.com/your-org/ubnad/internal/procname"
	"github.com/your-org/ubnad/internal/queue"
	"github.com/your-org/ubnad/internal/store"
)

const (
	popTimeout         = time.Second
	idleStatusInterval = 15 * time.Second
	progressEvery      = 50
)

// TrafficFunc estimates the traffic volume in bytes for an event. The
// socket table exposes no per-connection counters, so the default is a
// fixed nominal estimate; deployments with a real accounting source can
// plug one in.
type TrafficFunc func(ev model.ConnEvent) float64

// DefaultTraffic is the fixed placeholder estimate.
func DefaultTraffic(model.ConnEvent) float64 { return 500 }

// Analyzer is the single consumer of the event queue. Per event it runs
// the pipeline: enrich, read intent, fold into the baseline, score,
// classify, persist, then alert if the risk is high enough.
type Analyzer struct {
	q         *queue.Queue
	resolver  *procname.Resolver
	monitor   *intent.Monitor
	baselines *baseline.Store
	log       *store.Store
	emitter   *alerts.Emitter
	traffic   TrafficFunc

	eventCount int
}

// New creates an analyzer. traffic may be nil to use DefaultTraffic.
func New(q *queue.Queue, resolver *procname.Resolver, monitor *intent.Monitor,
	baselines *baseline.Store, log *store.Store, emitter *alerts.Emitter, traffic TrafficFunc) *Analyzer {
	if traffic == nil {
		traffic = DefaultTraffic
	}
	return &Analyzer{
		q:         q,
		resolver:  resolver,
		monitor:   monitor,
		baselines: baselines,
		log:       log,
		emitter:   emitter,
		traffic:   traffic,
	}
}

// Run drains the queue until ctx is cancelled. Per-event failures are
// logged and the loop moves on; nothing short of cancellation stops it.
func (a *Analyzer) Run(ctx context.Context) error {
	logger.Infof("analyzer started, waiting for network events")
	lastStatus := time.Now()

	for {
		if ctx.Err() != nil {
			logger.Infof("analyzer stopped, total events processed: %d", a.eventCount)
			return nil
		}

		ev, ok := a.q.Pop(ctx, popTimeout)
		if !ok {
			if time.Since(lastStatus) >= idleStatusInterval {
				logger.Debugf("analyzer status: %d events processed, queue size: %d", a.eventCount, a.q.Len())
				lastStatus = time.Now()
			}
			continue
		}

		a.Process(ev)
		a.eventCount++
		if a.eventCount%progressEvery == 0 {
			logger.Infof("processed %d events", a.eventCount)
		}
	}
}

// Process runs one event through the full pipeline.
func (a *Analyzer) Process(ev model.ConnEvent) {
	if st := a.resolver.State(ev.Pid); st == nil {
		logger.Debugf("could not resolve process state for pid %d", ev.Pid)
	}

	intentScore := a.monitor.Score()
	idle := a.monitor.IdleTime()
	traffic := a.traffic(ev)

	a.baselines.Update(ev.ProcessName, traffic, intentScore)
	b := a.baselines.Baseline(ev.ProcessName)

	score := detect.Score(traffic, intentScore, b)
	risk := detect.Classify(score)

	scored := model.ScoredEvent{
		ConnEvent:      ev,
		IntentScore:    intentScore,
		SuspicionScore: score,
		Risk:           risk,
	}

	// Persist before alerting: a crash in between may drop an alert
	// but never a log record.
	if err := a.log.Append(scored); err != nil {
		logger.Errorf("persist event: %v", err)
	}
	metrics.IncProcessed(risk)

	if a.emitter != nil && risk.AtLeast(detect.AlertThreshold) {
		a.emitter.Emit(scored, idle)
	}

	logger.Debugf("event: %s -> %s:%d (score: %.1f, risk: %s)",
		ev.ProcessName, ev.DestIP, ev.DestPort, score, risk)
}

// Processed returns how many events have been fully handled.
func (a *Analyzer) Processed() int {
	return a.eventCount
}
