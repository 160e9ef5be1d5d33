// xdpcollector/xdp_collector.go
package xdpcollector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"xdpstats/config"
	"xdpstats/stats"
	"xdpstats/xdpcollector/utility"

	"github.com/benbjohnson/clock"
	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/ringbuf"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrNoInterfaceAttached is returned by New when every attach failed.
	ErrNoInterfaceAttached = errors.New("program could not be attached to any interface")
	// ErrProgramNotFound is returned when the object lacks the entry point.
	ErrProgramNotFound = errors.New("program not found in object")
	// ErrMapNotFound is returned when the object lacks a required map.
	ErrMapNotFound = errors.New("map not found in object")
	// ErrNoInterface is returned by New when Config.Ifaces is empty.
	ErrNoInterface = errors.New("at least one interface is required")
	// ErrAFXDPInterfaces is returned by New when AF_XDP sockets are
	// requested on more than one interface.
	ErrAFXDPInterfaces = errors.New("AF_XDP mode supports a single interface")
)

// Config describes what New loads and where it attaches.
type Config struct {
	Ifaces []string
	// Object overrides the default object path.
	Object string
	Attach AttachFlags
	// Sockets is the number of AF_XDP sockets; zero disables AF_XDP mode.
	Sockets int
	// Duration stops Run after this many seconds; zero runs until cancelled.
	Duration uint64
	// Verbose prints the full verifier log when loading fails.
	Verbose bool
}

// Sink receives the aggregated counters once per tick.
type Sink interface {
	Render(total stats.Record) error
}

// Collector defines Run/Stats/Close behavior.
type Collector interface {
	Run(ctx context.Context) error
	Stats() (stats.Record, error)
	Close() error
}

// statsReader reads the per-CPU counter records at a key.
type statsReader interface {
	Read(key uint32) ([]stats.Record, error)
}

type collector struct {
	cfg      Config
	coll     *ebpf.Collection // eBPF collection
	stats    statsReader      // MAP_STATS view
	logs     logReader        // MAP_LOGS reader, nil when absent
	logsOnce sync.Once
	bindings []binding      // in attach order
	workers  []*afxdpWorker // AF_XDP consumers
	sink     Sink
	clock    clock.Clock

	closeOnce sync.Once
	closeErr  error
}

func newCollector(cfg Config, sink Sink, clk clock.Clock) *collector {
	return &collector{cfg: cfg, sink: sink, clock: clk}
}

// New loads the classifier object, attaches it to cfg.Ifaces and returns a
// collector reporting to sink.
func New(cfg Config, sink Sink) (Collector, error) {
	if len(cfg.Ifaces) == 0 {
		return nil, ErrNoInterface
	}
	// MAP_XSKS is keyed by queue only, so a redirect on a second device
	// would hit the first device's socket and be dropped as forwarded.
	if cfg.Sockets > 0 && len(cfg.Ifaces) > 1 {
		return nil, fmt.Errorf("%w, got %d", ErrAFXDPInterfaces, len(cfg.Ifaces))
	}
	c := newCollector(cfg, sink, clock.New())
	if err := c.load(attach); err != nil {
		if cerr := c.Close(); cerr != nil {
			log.Warnf("release after failed startup: %v", cerr)
		}
		return nil, err
	}
	return c, nil
}

func (c *collector) programName() string {
	if c.cfg.Sockets > 0 {
		return config.RedirectProgramName
	}
	return config.ProgramName
}

// load runs the startup sequence. Resources are recorded on c as they are
// acquired so that Close can release a partial startup.
func (c *collector) load(attachFn attachFunc) error {
	obj, err := utility.ObjectPath(c.cfg.Object)
	if err != nil {
		return err
	}

	spec, err := ebpf.LoadCollectionSpec(obj)
	if err != nil {
		return fmt.Errorf("load spec %s: %w", obj, err)
	}

	progName := c.programName()
	if _, ok := spec.Programs[progName]; !ok {
		return fmt.Errorf("%w: %s", ErrProgramNotFound, progName)
	}
	for name := range spec.Programs {
		if name != progName {
			delete(spec.Programs, name)
		}
	}

	c.coll, err = ebpf.NewCollection(spec)
	if err != nil {
		var ve *ebpf.VerifierError
		if c.cfg.Verbose && errors.As(err, &ve) {
			log.Errorf("verifier log:\n%+v", ve)
		}
		return fmt.Errorf("create collection: %w", err)
	}

	if m := c.coll.Maps[config.LogsMapName]; m != nil {
		rd, err := ringbuf.NewReader(m)
		if err != nil {
			log.Warnf("kernel log drain disabled: %v", err)
		} else {
			c.logs = rd
		}
	} else {
		log.Debugf("object has no %s map, kernel log drain disabled", config.LogsMapName)
	}

	prog := c.coll.Programs[progName]
	for _, iface := range c.cfg.Ifaces {
		b, err := attachFn(prog, iface, c.cfg.Attach)
		if err != nil {
			log.Warnf("skipping %s: %v", iface, err)
			continue
		}
		log.Infof("attached %s to %s (%s mode)", progName, iface, c.cfg.Attach.Mode)
		c.bindings = append(c.bindings, b)
	}
	if len(c.bindings) == 0 {
		return ErrNoInterfaceAttached
	}

	m := c.coll.Maps[config.StatsMapName]
	if m == nil {
		return fmt.Errorf("%w: %s", ErrMapNotFound, config.StatsMapName)
	}
	arr, err := NewPerCPUArray[stats.Record](m)
	if err != nil {
		return err
	}
	if err := arr.Init(0, stats.Record{}); err != nil {
		log.Warnf("zero %s: %v", config.StatsMapName, err)
	}
	c.stats = arr

	if c.cfg.Sockets > 0 {
		xsks := c.coll.Maps[config.XsksMapName]
		if xsks == nil {
			return fmt.Errorf("%w: %s", ErrMapNotFound, config.XsksMapName)
		}
		c.workers, err = openSockets(c.bindings[0].Iface(), c.cfg.Sockets, xsks)
		if err != nil {
			return err
		}
	}
	return nil
}

// Close detaches from every interface in reverse attach order, then
// releases the log reader, the AF_XDP sockets and the collection. It is
// safe to call more than once.
func (c *collector) Close() error {
	c.closeOnce.Do(func() {
		var errs []error
		for i := len(c.bindings) - 1; i >= 0; i-- {
			b := c.bindings[i]
			if err := b.Close(); err != nil {
				errs = append(errs, fmt.Errorf("detach from %s: %w", b.Iface(), err))
				continue
			}
			log.Debugf("detached from %s", b.Iface())
		}
		if err := c.closeLogs(); err != nil {
			errs = append(errs, fmt.Errorf("close log reader: %w", err))
		}
		if err := closeWorkers(c.workers); err != nil {
			errs = append(errs, err)
		}
		if c.coll != nil {
			c.coll.Close()
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}
