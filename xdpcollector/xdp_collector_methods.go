// xdpcollector/xdp_collector_methods.go
package xdpcollector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"xdpstats/config"
	"xdpstats/stats"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Run polls the counters once per second and renders them until ctx is
// cancelled or the configured duration elapses. The kernel log drain and
// AF_XDP workers run alongside and stop with it.
func (c *collector) Run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	ifaces := make([]string, 0, len(c.bindings))
	for _, b := range c.bindings {
		ifaces = append(ifaces, b.Iface())
	}
	log.Infof("XDP collector attached to %s, matching UDP port %d", strings.Join(ifaces, ","), config.TargetPort)

	g, gctx := errgroup.WithContext(ctx)

	// Pump kernel logs; closing the reader is what unblocks Read.
	if c.logs != nil {
		g.Go(func() error { return c.drain(gctx) })
		g.Go(func() error {
			<-gctx.Done()
			if err := c.closeLogs(); err != nil {
				log.Debugf("close log reader: %v", err)
			}
			return nil
		})
	}

	for _, w := range c.workers {
		g.Go(func() error { return w.run(gctx) })
	}

	// Pump stats every second
	g.Go(func() error { return c.poll(gctx, stop) })

	err := g.Wait()
	for _, w := range c.workers {
		t := w.Total()
		log.Infof("AF_XDP queue %d received %d packets / %d bytes (matched %d)", w.queue, t.Packets(), t.Bytes(), t.MatchPkt)
	}
	log.Info("shutting down")
	return err
}

// poll renders the aggregate on every tick and calls stop once the
// configured number of ticks has elapsed.
func (c *collector) poll(ctx context.Context, stop context.CancelFunc) error {
	ticker := c.clock.Ticker(time.Second)
	defer ticker.Stop()

	var ticks uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.report()
			ticks++
			if c.cfg.Duration != 0 && ticks >= c.cfg.Duration {
				log.Infof("run duration of %ds reached", c.cfg.Duration)
				stop()
				return nil
			}
		}
	}
}

// report reads and renders one aggregate; failures are transient.
func (c *collector) report() {
	total, err := c.Stats()
	if err != nil {
		log.Warnf("[stats] %v", err)
		return
	}
	if err := c.sink.Render(total); err != nil {
		log.Warnf("[stats] render: %v", err)
	}
}

// Stats reads the per-CPU records and sums them field by field.
func (c *collector) Stats() (stats.Record, error) {
	percpu, err := c.stats.Read(0)
	if err != nil {
		return stats.Record{}, fmt.Errorf("read %s: %w", config.StatsMapName, err)
	}
	return stats.Sum(percpu), nil
}
