package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/your-org/ubnad/internal/alerts"
	"github.com/your-org/ubnad/internal/analyzer"
	"github.com/your-org/ubnad/internal/baseline"
	"github.com/your-org/ubnad/internal/config"
	"github.com/your-org/ubnad/internal/intent"
	"github.com/your-org/ubnad/internal/logger"
	"github.com/your-org/ubnad/internal/metrics"
	"github.com/your-org/ubnad/internal/model"
	"github.com/your-org/ubnad/internal/procname"
	"github.com/your-org/ubnad/internal/queue"
	"github.com/your-org/ubnad/internal/scanner"
	"github.com/your-org/ubnad/internal/store"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "query" {
		os.Exit(runQuery(os.Args[2:]))
	}
	runDetector(os.Args[1:])
}

func runDetector(args []string) {
	fs := flag.NewFlagSet("ubnad", flag.ExitOnError)
	var (
		configPath = fs.String("config", "", "Path to YAML configuration (optional)")
		dbPath     = fs.String("db", "", "Override activity store path")
		promAddr   = fs.String("prom-addr", "", "Override Prometheus metrics address (e.g. :9109)")
		source     = fs.String("source", "", "Override scanner source: poll or tracer")
	)
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}
	if *promAddr != "" {
		cfg.Metrics.Addr = *promAddr
		cfg.Metrics.Enabled = true
	}
	if *source != "" {
		cfg.Scanner.Source = *source
	}

	if err := logger.Init(cfg.Logging.Enabled, cfg.Logging.Level, cfg.Logging.File, cfg.Logging.Console); err != nil {
		log.Fatalf("init logger: %v", err)
	}

	logger.Infof("UBNAD - unauthorized background network activity detector")

	// The pipeline must not start without a working durable log.
	activityStore, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("init activity store: %v", err)
	}
	defer activityStore.Close()
	logger.Infof("activity store initialized: %s", cfg.Store.Path)

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		metrics.Register(reg)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			logger.Infof("Prometheus metrics listening on %s", cfg.Metrics.Addr)
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				log.Fatalf("metrics HTTP server: %v", err)
			}
		}()
	}

	emitter, err := buildEmitter(cfg)
	if err != nil {
		log.Fatalf("init alert emitter: %v", err)
	}
	if emitter != nil {
		defer emitter.Close()
	}

	ctx, cancel := withSignalCancel(context.Background())
	defer cancel()

	resolver := procname.New()
	monitor := intent.NewMonitor()
	if cfg.Intent.Listeners {
		intent.StartListeners(ctx, monitor, []intent.Listener{intent.EvdevListener{}})
	}

	q := queue.New(cfg.Scanner.QueueSize)
	baselines := baseline.NewStore(cfg.Baseline.MaxProfiles)

	var scan scanner.Scanner
	switch cfg.Scanner.Source {
	case "poll":
		scan = scanner.NewPollScanner(scanner.PollConfig{
			PollInterval:   cfg.Scanner.PollInterval.D(),
			EnqueueTimeout: cfg.Scanner.EnqueueTimeout.D(),
			MaxKnown:       cfg.Scanner.MaxKnown,
		}, q, resolver)
	case "tracer":
		scan = scanner.NewTracerScanner(scanner.TracerConfig{
			BPFObjectPath:  cfg.Scanner.BPFObject,
			EnqueueTimeout: cfg.Scanner.EnqueueTimeout.D(),
		}, q, resolver)
	default:
		log.Fatalf("unknown scanner source: %s", cfg.Scanner.Source)
	}

	analyze := analyzer.New(q, resolver, monitor, baselines, activityStore, emitter, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scan.Run(gctx) })
	g.Go(func() error { return analyze.Run(gctx) })

	if err := g.Wait(); err != nil {
		logger.Errorf("pipeline error: %v", err)
	}
	logger.Infof("UBNAD stopped")
}

func loadConfig(path string) *config.Config {
	if path == "" {
		if _, err := os.Stat("ubnad.yml"); err == nil {
			path = "ubnad.yml"
		}
	}
	if path == "" {
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	return cfg
}

func buildEmitter(cfg *config.Config) (*alerts.Emitter, error) {
	if !cfg.Alerts.Enabled {
		return nil, nil
	}

	var sinks []alerts.Notifier
	for _, mode := range cfg.Alerts.Modes {
		switch mode {
		case "console":
			sinks = append(sinks, alerts.ConsoleNotifier{})
		case "file":
			w, err := alerts.NewFileNotifier(cfg.Alerts.File.Path)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, w)
			logger.Infof("alert output: file (%s)", cfg.Alerts.File.Path)
		case "redis":
			w, err := alerts.NewRedisNotifier(alerts.RedisConfig{
				Addr:     cfg.Alerts.Redis.Addr,
				Password: cfg.Alerts.Redis.Password,
				DB:       cfg.Alerts.Redis.DB,
				Key:      cfg.Alerts.Redis.Key,
			})
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, w)
			logger.Infof("alert output: redis (%s/%s)", cfg.Alerts.Redis.Addr, cfg.Alerts.Redis.Key)
		default:
			return nil, fmt.Errorf("unknown alert mode: %s", mode)
		}
	}
	return alerts.NewEmitter(sinks...), nil
}

func withSignalCancel(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(ch)
		select {
		case <-ch:
			logger.Infof("shutdown signal received, stopping")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func runQuery(args []string) int {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	dbPath := fs.String("db", "ubnad.db", "Activity store path")
	recent := fs.Int("recent", 0, "Show the N most recent events")
	alertRows := fs.Int("alerts", 0, "Show the N most recent HIGH/CRITICAL events")
	count := fs.Bool("count", false, "Show the total event count")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	s, err := store.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		return 1
	}
	defer s.Close()

	if *count {
		n, err := s.Count()
		if err != nil {
			fmt.Fprintf(os.Stderr, "count events: %v\n", err)
			return 1
		}
		fmt.Printf("total events: %d\n", n)
	}

	if *recent > 0 {
		recs, err := s.Recent(*recent)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fetch recent events: %v\n", err)
			return 1
		}
		printRecords("recent events", recs)
	}

	if *alertRows > 0 {
		recs, err := s.ByRisk([]model.RiskLevel{model.RiskHigh, model.RiskCritical}, *alertRows)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fetch alerts: %v\n", err)
			return 1
		}
		printRecords("high-risk events", recs)
	}

	return 0
}

func printRecords(title string, recs []store.Record) {
	fmt.Printf("%s (%d):\n", title, len(recs))
	for _, r := range recs {
		fmt.Printf("  #%d %s [%s] %s (%d) -> %s:%d score=%.1f intent=%.1f\n",
			r.ID, r.Timestamp, r.Risk, r.ProcessName, r.Pid, r.DestIP, r.DestPort,
			r.SuspicionScore, r.IntentScore)
	}
}
