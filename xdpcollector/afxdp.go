// xdpcollector/afxdp.go
package xdpcollector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"xdpstats/config"
	"xdpstats/stats"

	"github.com/asavie/xdp"
	"github.com/cilium/ebpf"
	log "github.com/sirupsen/logrus"
)

// pollTimeoutMs bounds how long a worker waits before rechecking its context.
const pollTimeoutMs = 100

// xskSocket is the subset of *xdp.Socket used by a worker.
type xskSocket interface {
	NumFreeFillSlots() int
	GetDescs(n int) []xdp.Desc
	Fill(descs []xdp.Desc) int
	Poll(timeout int) (numReceived int, numCompleted int, err error)
	Receive(num int) []xdp.Desc
	GetFrame(d xdp.Desc) []byte
	FD() int
	Close() error
}

// afxdpWorker consumes frames redirected to one AF_XDP socket and
// accounts them with the user-space classifier.
type afxdpWorker struct {
	queue int
	sock  xskSocket

	mu    sync.Mutex
	total stats.Record
}

// openSockets binds one socket per queue of iface and registers each in
// the XSK map under its queue id.
func openSockets(iface string, n int, xsks *ebpf.Map) ([]*afxdpWorker, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("lookup interface %q: %w", iface, err)
	}

	var workers []*afxdpWorker
	for q := 0; q < n; q++ {
		sock, err := xdp.NewSocket(ifi.Index, q, nil)
		if err != nil {
			closeWorkers(workers)
			return nil, fmt.Errorf("open AF_XDP socket on %s queue %d: %w", iface, q, err)
		}
		if err := xsks.Update(uint32(q), uint32(sock.FD()), ebpf.UpdateAny); err != nil {
			sock.Close()
			closeWorkers(workers)
			return nil, fmt.Errorf("register socket for queue %d in %s: %w", q, config.XsksMapName, err)
		}
		workers = append(workers, &afxdpWorker{queue: q, sock: sock})
		log.Debugf("AF_XDP socket bound to %s queue %d", iface, q)
	}
	return workers, nil
}

func closeWorkers(workers []*afxdpWorker) error {
	var errs []error
	for _, w := range workers {
		if err := w.sock.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close AF_XDP socket on queue %d: %w", w.queue, err))
		}
	}
	return errors.Join(errs...)
}

// run keeps the fill ring stocked and classifies received frames until ctx
// is done. A socket failure stops only this worker.
func (w *afxdpWorker) run(ctx context.Context) error {
	for ctx.Err() == nil {
		if n := w.sock.NumFreeFillSlots(); n > 0 {
			w.sock.Fill(w.sock.GetDescs(n))
		}

		numRx, _, err := w.sock.Poll(pollTimeoutMs)
		if err != nil {
			log.Errorf("[afxdp] queue %d poll: %v", w.queue, err)
			return nil
		}
		if numRx == 0 {
			continue
		}

		descs := w.sock.Receive(numRx)
		w.mu.Lock()
		for _, d := range descs {
			frame := w.sock.GetFrame(d)
			cat, _ := stats.Classify(frame, config.TargetPort)
			w.total.Inc(cat, uint64(len(frame)))
		}
		w.mu.Unlock()
	}
	return nil
}

// Total returns the frames accounted so far.
func (w *afxdpWorker) Total() stats.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.total
}
