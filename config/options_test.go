package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadArgs(t *testing.T, args ...string) (*Options, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	v, err := NewViper(fs)
	require.NoError(t, err)
	return Load(v)
}

func TestLoadDefaults(t *testing.T) {
	opts, err := loadArgs(t)
	require.NoError(t, err)

	assert.Equal(t, "eth0", opts.Iface)
	assert.Zero(t, opts.Duration)
	assert.False(t, opts.AFXDP)
	assert.Zero(t, opts.NumSocks)
	assert.False(t, opts.SKB)
	assert.False(t, opts.Offload)
	assert.False(t, opts.Replace)
	assert.Equal(t, "info", opts.LogLevel)
	assert.Zero(t, opts.Sockets())
}

func TestLoadShortFlags(t *testing.T) {
	opts, err := loadArgs(t, "-i", "eth1, eth2", "-d", "30", "-a", "-n", "4", "-s", "-o", "-z")
	require.NoError(t, err)

	assert.Equal(t, "eth1, eth2", opts.Iface)
	assert.Equal(t, uint64(30), opts.Duration)
	assert.True(t, opts.AFXDP)
	assert.Equal(t, uint32(4), opts.NumSocks)
	assert.True(t, opts.SKB)
	assert.True(t, opts.Offload)
	assert.True(t, opts.Replace)
	assert.Equal(t, 4, opts.Sockets())
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("XDP_STATS_IFACE", "veth0")
	t.Setenv("XDP_STATS_DURATION", "5")
	t.Setenv("LOG_LEVEL", "debug")

	opts, err := loadArgs(t)
	require.NoError(t, err)
	assert.Equal(t, "veth0", opts.Iface)
	assert.Equal(t, uint64(5), opts.Duration)
	assert.Equal(t, "debug", opts.LogLevel)

	// Flags override the environment.
	opts, err = loadArgs(t, "--iface", "lo")
	require.NoError(t, err)
	assert.Equal(t, "lo", opts.Iface)
}

func TestLoadRejectsTooManySockets(t *testing.T) {
	_, err := loadArgs(t, "--afxdp", "--num-socks", strconv.Itoa(MaxSockets+1))
	require.ErrorIs(t, err, errTooManySockets)
}

func TestLoadRejectsAFXDPOnSeveralInterfaces(t *testing.T) {
	_, err := loadArgs(t, "-a", "-i", "eth0,eth1")
	require.ErrorIs(t, err, errAFXDPIfaces)

	opts, err := loadArgs(t, "-a", "-i", " eth1 , ")
	require.NoError(t, err)
	assert.Equal(t, 1, opts.Sockets())

	// Several interfaces are fine without AF_XDP.
	_, err = loadArgs(t, "-i", "eth0,eth1")
	require.NoError(t, err)
}

func TestSplitInterfaces(t *testing.T) {
	assert.Equal(t, []string{"eth0", "eth1"}, SplitInterfaces(" eth0 ,\teth1 , "))
	assert.Nil(t, SplitInterfaces(" , "))
}

func TestSocketsDefaultsToOne(t *testing.T) {
	opts := Options{AFXDP: true}
	assert.Equal(t, 1, opts.Sockets())

	// Ignored outside AF_XDP mode.
	opts = Options{NumSocks: 8}
	assert.Zero(t, opts.Sockets())
}

// The header consumed by the XDP object must agree with the Go constants.
func TestHeaderMatchesConstants(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "xdpcollector", "bpf", "xdp_stats.h"))
	require.NoError(t, err)
	header := string(raw)

	define := func(name string) string {
		m := regexp.MustCompile(`(?m)^#define\s+` + name + `\s+(\S+)`).FindStringSubmatch(header)
		require.Len(t, m, 2, "missing #define %s", name)
		return m[1]
	}
	boolDefine := func(name string) bool {
		return define(name) == "1"
	}

	assert.Equal(t, strconv.Itoa(int(TargetPort)), define("TARGET_PORT"))
	assert.Equal(t, Redirect, boolDefine("REDIRECT"))
	assert.Equal(t, RedirectFibLookup, boolDefine("REDIRECT_FIB_LOOKUP"))
	assert.Equal(t, strconv.Itoa(MaxSockets), define("MAX_SOCKETS"))
}
