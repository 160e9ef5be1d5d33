// xdpcollector/percpu.go
package xdpcollector

import (
	"encoding/binary"
	"fmt"

	"github.com/cilium/ebpf"
)

// PerCPUArray is a typed view of a BPF_MAP_TYPE_PERCPU_ARRAY whose values
// are fixed-size structs of type V.
type PerCPUArray[V any] struct {
	m    *ebpf.Map
	ncpu int
}

// NewPerCPUArray wraps m after checking its type and value size against V.
func NewPerCPUArray[V any](m *ebpf.Map) (*PerCPUArray[V], error) {
	if m.Type() != ebpf.PerCPUArray {
		return nil, fmt.Errorf("map %s: want %s, got %s", m, ebpf.PerCPUArray, m.Type())
	}
	var zero V
	if size := binary.Size(zero); size < 0 || uint32(size) != m.ValueSize() {
		return nil, fmt.Errorf("map %s: value size %d does not match %T (%d bytes)", m, m.ValueSize(), zero, size)
	}
	ncpu, err := ebpf.PossibleCPU()
	if err != nil {
		return nil, fmt.Errorf("possible CPUs: %w", err)
	}
	return &PerCPUArray[V]{m: m, ncpu: ncpu}, nil
}

// Init writes v into every CPU's slot at key.
func (a *PerCPUArray[V]) Init(key uint32, v V) error {
	vals := make([]V, a.ncpu)
	for i := range vals {
		vals[i] = v
	}
	return a.m.Update(key, vals, ebpf.UpdateAny)
}

// Read returns the values at key indexed by CPU id. The slots are read
// independently, so the snapshot is not atomic across CPUs.
func (a *PerCPUArray[V]) Read(key uint32) ([]V, error) {
	var vals []V
	if err := a.m.Lookup(key, &vals); err != nil {
		return nil, err
	}
	return vals, nil
}

// NumCPU is the number of slots per key.
func (a *PerCPUArray[V]) NumCPU() int { return a.ncpu }
