// Package stats defines the counter record shared with the XDP program and
// the user-space view of the classifier.
package stats

import "unsafe"

// RecordSize is the size in bytes of one Record on both sides of the
// kernel boundary.
const RecordSize = 80

// Record mirrors struct stats in xdp_stats.h: ten host-order uint64 fields,
// tightly packed. Fields only ever grow; overflow wraps.
type Record struct {
	PassPkt uint64
	PassByt uint64

	DropPkt uint64
	DropByt uint64

	BadPkt uint64
	BadByt uint64

	MatchPkt uint64
	MatchByt uint64

	FwdPkt uint64
	FwdByt uint64
}

// Fails to compile if the layout drifts from RecordSize.
var _ [RecordSize]byte = [unsafe.Sizeof(Record{})]byte{}

// Inc accounts one frame of length bytes against category c.
func (r *Record) Inc(c Category, length uint64) {
	switch c {
	case Pass:
		r.PassPkt++
		r.PassByt += length
	case Drop:
		r.DropPkt++
		r.DropByt += length
	case Bad:
		r.BadPkt++
		r.BadByt += length
	case Match:
		r.MatchPkt++
		r.MatchByt += length
	case Fwd:
		r.FwdPkt++
		r.FwdByt += length
	default:
		panic("stats: unknown category " + c.String())
	}
}

// Add folds o into r field by field. uint64 addition wraps modulo 2^64.
func (r *Record) Add(o Record) {
	r.PassPkt += o.PassPkt
	r.PassByt += o.PassByt
	r.DropPkt += o.DropPkt
	r.DropByt += o.DropByt
	r.BadPkt += o.BadPkt
	r.BadByt += o.BadByt
	r.MatchPkt += o.MatchPkt
	r.MatchByt += o.MatchByt
	r.FwdPkt += o.FwdPkt
	r.FwdByt += o.FwdByt
}

// Get returns the packet and byte counters of category c.
func (r Record) Get(c Category) (pkts, bytes uint64) {
	switch c {
	case Pass:
		return r.PassPkt, r.PassByt
	case Drop:
		return r.DropPkt, r.DropByt
	case Bad:
		return r.BadPkt, r.BadByt
	case Match:
		return r.MatchPkt, r.MatchByt
	case Fwd:
		return r.FwdPkt, r.FwdByt
	}
	return 0, 0
}

// Packets is the packet total across all categories.
func (r Record) Packets() uint64 {
	return r.PassPkt + r.DropPkt + r.BadPkt + r.MatchPkt + r.FwdPkt
}

// Bytes is the byte total across all categories.
func (r Record) Bytes() uint64 {
	return r.PassByt + r.DropByt + r.BadByt + r.MatchByt + r.FwdByt
}

// Sum aggregates per-CPU records into a single total.
func Sum(percpu []Record) Record {
	var total Record
	for _, r := range percpu {
		total.Add(r)
	}
	return total
}
