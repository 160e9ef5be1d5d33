package xdpcollector

import (
	"os"
	"runtime"
	"testing"

	"xdpstats/config"
	"xdpstats/stats"
	"xdpstats/stats/frametest"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/rlimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// requireObject returns the object built by `make bpf`, skipping the test
// when it is missing or the process cannot load programs.
func requireObject(t *testing.T) string {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("loading BPF programs requires root")
	}
	obj := config.ObjectStem + ".o"
	if _, err := os.Stat(obj); err != nil {
		t.Skipf("%s not built: %v", obj, err)
	}
	require.NoError(t, rlimit.RemoveMemlock())
	return obj
}

type testProgram struct {
	prog  *ebpf.Program
	stats *PerCPUArray[stats.Record]
}

func loadProgram(t *testing.T, name string) *testProgram {
	t.Helper()
	obj := requireObject(t)

	spec, err := ebpf.LoadCollectionSpec(obj)
	require.NoError(t, err)
	coll, err := ebpf.NewCollection(spec)
	require.NoError(t, err)
	t.Cleanup(coll.Close)

	prog := coll.Programs[name]
	require.NotNil(t, prog, "program %s", name)
	arr, err := NewPerCPUArray[stats.Record](coll.Maps[config.StatsMapName])
	require.NoError(t, err)
	require.NoError(t, arr.Init(0, stats.Record{}))
	return &testProgram{prog: prog, stats: arr}
}

func (p *testProgram) run(t *testing.T, frame []byte) stats.Verdict {
	t.Helper()
	ret, err := p.prog.Run(&ebpf.RunOptions{Data: frame})
	require.NoError(t, err)
	return stats.Verdict(ret)
}

func (p *testProgram) total(t *testing.T) stats.Record {
	t.Helper()
	percpu, err := p.stats.Read(0)
	require.NoError(t, err)
	return stats.Sum(percpu)
}

func TestKernelClassifierScenarios(t *testing.T) {
	p := loadProgram(t, config.ProgramName)

	tests := []struct {
		name    string
		frame   []byte
		cat     stats.Category
		verdict stats.Verdict
	}{
		{"udp to target port", frametest.UDP(config.TargetPort, 1500), stats.Match, stats.VerdictDrop},
		{"udp to other port", frametest.UDP(9999, 74), stats.Pass, stats.VerdictPass},
		{"ipv6", frametest.IPv6(config.TargetPort, 64), stats.Pass, stats.VerdictPass},
		{"tcp to target port", frametest.TCP(config.TargetPort, 60), stats.Pass, stats.VerdictPass},
		{"truncated ipv4 header", frametest.Truncated(config.TargetPort, 20), stats.Bad, stats.VerdictAborted},
		{"truncated udp header", frametest.Truncated(config.TargetPort, 41), stats.Bad, stats.VerdictAborted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := p.total(t)
			verdict := p.run(t, tt.frame)
			after := p.total(t)

			assert.Equal(t, tt.verdict, verdict)

			var want stats.Record
			want.Add(before)
			want.Inc(tt.cat, uint64(len(tt.frame)))
			assert.Equal(t, want, after)

			// The reference classifier agrees with the kernel.
			cat, v := stats.Classify(tt.frame, config.TargetPort)
			assert.Equal(t, tt.cat, cat)
			assert.Equal(t, tt.verdict, v)
		})
	}
}

// allowedCPUs returns the CPUs this process may be scheduled on.
func allowedCPUs(t *testing.T) []int {
	t.Helper()
	var set unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &set))
	var cpus []int
	for i := 0; i < len(set)*64; i++ {
		if set.IsSet(i) {
			cpus = append(cpus, i)
		}
	}
	require.NotEmpty(t, cpus)
	return cpus
}

func TestKernelAggregatesAcrossCPUs(t *testing.T) {
	p := loadProgram(t, config.ProgramName)
	cpus := allowedCPUs(t)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	var orig unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &orig))
	defer unix.SchedSetaffinity(0, &orig)

	const frames, size = 1000, 100
	frame := frametest.UDP(config.TargetPort, size)
	for i := 0; i < frames; i++ {
		var set unix.CPUSet
		set.Set(cpus[i%len(cpus)])
		require.NoError(t, unix.SchedSetaffinity(0, &set))
		require.Equal(t, stats.VerdictDrop, p.run(t, frame))
	}

	percpu, err := p.stats.Read(0)
	require.NoError(t, err)
	total := stats.Sum(percpu)
	assert.Equal(t, uint64(frames), total.MatchPkt)
	assert.Equal(t, uint64(frames*size), total.MatchByt)
	assert.Equal(t, uint64(frames), total.Packets())

	var used int
	for _, r := range percpu {
		if r.MatchPkt > 0 {
			used++
		}
	}
	assert.Equal(t, min(len(cpus), frames), used)
}

func TestKernelRecordRoundTrip(t *testing.T) {
	p := loadProgram(t, config.ProgramName)

	want := stats.Record{
		PassPkt: 1, PassByt: 2, DropPkt: 3, DropByt: 4, BadPkt: 5,
		BadByt: 6, MatchPkt: 7, MatchByt: 8, FwdPkt: 9, FwdByt: 10,
	}
	require.NoError(t, p.stats.Init(0, want))

	percpu, err := p.stats.Read(0)
	require.NoError(t, err)
	require.Len(t, percpu, p.stats.NumCPU())
	for _, r := range percpu {
		assert.Equal(t, want, r)
	}
}

func TestKernelRedirectWithoutSocketPasses(t *testing.T) {
	if !config.Redirect {
		t.Skip("object built without the redirect program")
	}
	p := loadProgram(t, config.RedirectProgramName)

	frame := frametest.UDP(config.TargetPort, 128)
	assert.Equal(t, stats.VerdictPass, p.run(t, frame))
	assert.Equal(t, stats.Record{PassPkt: 1, PassByt: 128}, p.total(t))
}
