package scanner

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"
	"golang.org/x/sys/unix"

	"github.com/your-org/ubnad/internal/logger"
	"github.com/your-org/ubnad/internal/metrics"
	"github.com/your-org/ubnad/internal/model"
	"github.com/your-org/ubnad/internal/procname"
	"github.com/your-org/ubnad/internal/queue"
)

// TracerConfig configures the eBPF tracer scanner.
type TracerConfig struct {
	BPFObjectPath  string
	EnqueueTimeout time.Duration
}

// TracerScanner is the kernel-level alternative to the poll scanner. It
// attaches to the connect syscall tracepoint and emits the same event
// shape, so the rest of the pipeline cannot tell the two apart. Unlike
// the poll scanner it sees every connect attempt, so no dedup set is
// needed.
type TracerScanner struct {
	cfg      TracerConfig
	q        *queue.Queue
	resolver *procname.Resolver
	excluder *Excluder
}

// NewTracerScanner creates a tracer scanner producing into q.
func NewTracerScanner(cfg TracerConfig, q *queue.Queue, resolver *procname.Resolver) *TracerScanner {
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = time.Second
	}
	return &TracerScanner{
		cfg:      cfg,
		q:        q,
		resolver: resolver,
		excluder: NewExcluder(),
	}
}

// rawConnect mirrors the event struct emitted by the BPF program.
type rawConnect struct {
	TsNs     uint64
	Pid      uint32
	DestPort uint16
	Pad      uint16
	DestIP4  uint32
	Comm     [16]byte
}

// Run loads the BPF object, attaches the connect tracepoint, and reads
// events until ctx is cancelled.
func (t *TracerScanner) Run(ctx context.Context) error {
	if err := raiseRlimit(); err != nil {
		return err
	}

	bpfPath := t.cfg.BPFObjectPath
	if !filepath.IsAbs(bpfPath) {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve executable: %w", err)
		}
		bpfPath = filepath.Join(filepath.Dir(exe), bpfPath)
	}

	spec, err := ebpf.LoadCollectionSpec(bpfPath)
	if err != nil {
		return fmt.Errorf("load BPF spec from %s: %w", bpfPath, err)
	}

	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return fmt.Errorf("create BPF collection: %w", err)
	}
	defer coll.Close()

	eventsMap, ok := coll.Maps["events"]
	if !ok {
		return fmt.Errorf("BPF map 'events' not found")
	}
	progConnect, ok := coll.Programs["handle_connect"]
	if !ok {
		return fmt.Errorf("BPF program 'handle_connect' not found")
	}

	tpConnect, err := link.Tracepoint("syscalls", "sys_enter_connect", progConnect, nil)
	if err != nil {
		return fmt.Errorf("attach connect tracepoint: %w", err)
	}
	defer tpConnect.Close()

	reader, err := ringbuf.NewReader(eventsMap)
	if err != nil {
		return fmt.Errorf("create ringbuf reader: %w", err)
	}
	defer reader.Close()

	go func() {
		<-ctx.Done()
		reader.Close()
	}()

	logger.Infof("tracer scanner started with BPF object %s", bpfPath)

	for {
		record, err := reader.Read()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, os.ErrClosed) {
				return nil
			}
			logger.Errorf("ringbuf read error: %v", err)
			continue
		}

		var re rawConnect
		if err := binary.Read(bytes.NewReader(record.RawSample), binary.LittleEndian, &re); err != nil {
			logger.Errorf("decode raw connect event: %v", err)
			continue
		}

		ev, ok := t.convert(re)
		if !ok {
			continue
		}

		if !t.q.Push(ev, t.cfg.EnqueueTimeout) {
			metrics.IncDropped()
			logger.Warnf("event queue full, dropping %s (%d) -> %s:%d", ev.ProcessName, ev.Pid, ev.DestIP, ev.DestPort)
			continue
		}
		metrics.IncEvent()
		logger.Infof("new connection: %s (%d) -> %s:%d", ev.ProcessName, ev.Pid, ev.DestIP, ev.DestPort)
	}
}

func (t *TracerScanner) convert(re rawConnect) (model.ConnEvent, bool) {
	if re.DestIP4 == 0 {
		return model.ConnEvent{}, false
	}

	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], re.DestIP4)
	destIP := net.IP(b[:]).String()

	if t.excluder.IsLocal(destIP) {
		return model.ConnEvent{}, false
	}

	// The tracepoint hands the port over in network byte order.
	destPort := uint32(re.DestPort>>8) | uint32(re.DestPort&0xff)<<8

	pid := int32(re.Pid)
	name := t.resolver.Name(pid)
	if strings.HasPrefix(name, "PID_") {
		if comm := cString(re.Comm[:]); comm != "" {
			name = comm
		}
	}

	// TsNs is monotonic boot time; the durable log wants wall-clock
	// detection time, so stamp it here.
	return model.ConnEvent{
		Timestamp:   time.Now(),
		Pid:         pid,
		ProcessName: name,
		DestIP:      destIP,
		DestPort:    destPort,
	}, true
}

func raiseRlimit() error {
	var r unix.Rlimit
	r.Cur = 1 << 30
	r.Max = 1 << 30
	if err := unix.Setrlimit(unix.RLIMIT_MEMLOCK, &r); err != nil {
		return fmt.Errorf("setrlimit RLIMIT_MEMLOCK: %w", err)
	}
	return nil
}

func cString(b []byte) string {
	n := bytes.IndexByte(b, 0)
	if n == -1 {
		n = len(b)
	}
	return string(b[:n])
}
