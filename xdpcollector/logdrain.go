// xdpcollector/logdrain.go
package xdpcollector

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"

	"xdpstats/xdpcollector/utility"

	"github.com/cilium/ebpf/ringbuf"
	log "github.com/sirupsen/logrus"
)

const logMsgLen = 64

// maxLogReadFailures consecutive read errors stop the drain.
const maxLogReadFailures = 10

// logRecord mirrors struct log_record from bpf/xdp_stats.h.
type logRecord struct {
	TsNs  uint64
	Level uint32
	Len   uint32
	Msg   [logMsgLen]byte
}

// Kernel log levels as emitted by xdp_log.
const (
	kernLogError uint32 = iota + 1
	kernLogWarn
	kernLogInfo
	kernLogDebug
	kernLogTrace
)

func (r *logRecord) message() string {
	n := min(int(r.Len), logMsgLen)
	return string(bytes.TrimRight(r.Msg[:n], "\x00"))
}

func (r *logRecord) level() log.Level {
	switch r.Level {
	case kernLogError:
		return log.ErrorLevel
	case kernLogWarn:
		return log.WarnLevel
	case kernLogDebug:
		return log.DebugLevel
	case kernLogTrace:
		return log.TraceLevel
	default:
		return log.InfoLevel
	}
}

func decodeLogRecord(raw []byte) (logRecord, error) {
	var rec logRecord
	err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &rec)
	return rec, err
}

// logReader is the part of *ringbuf.Reader the drain needs.
type logReader interface {
	Read() (ringbuf.Record, error)
	Close() error
}

// drain forwards kernel log records to logrus until the reader is closed.
// A reader that keeps failing stops the drain, not the collector.
func (c *collector) drain(ctx context.Context) error {
	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		rec, err := c.logs.Read()
		if err != nil {
			if errors.Is(err, ringbuf.ErrClosed) {
				return nil
			}
			failures++
			if failures >= maxLogReadFailures {
				log.Errorf("[xdp] kernel log drain stopped after %d failed reads: %v", failures, err)
				return nil
			}
			log.Warnf("[xdp] log ringbuf read: %v", err)
			continue
		}
		failures = 0

		lr, err := decodeLogRecord(rec.RawSample)
		if err != nil {
			log.Warnf("[xdp] log decode error: %v", err)
			continue
		}
		log.WithFields(log.Fields{
			"src": "kernel",
			"ts":  utility.ConvertBpfNanotime(lr.TsNs),
		}).Log(lr.level(), lr.message())
	}
}

// closeLogs closes the log reader once; it unblocks a pending drain Read.
func (c *collector) closeLogs() error {
	var err error
	c.logsOnce.Do(func() {
		if c.logs != nil {
			err = c.logs.Close()
		}
	})
	return err
}
