package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every option when read from the environment,
// e.g. XDP_STATS_IFACE=eth1,eth2.
const EnvPrefix = "XDP_STATS"

// Options is the runtime configuration of the controller. Flags win over the
// environment, the environment wins over defaults.
type Options struct {
	Iface    string `mapstructure:"iface"`
	Duration uint64 `mapstructure:"duration"`
	AFXDP    bool   `mapstructure:"afxdp"`
	NumSocks uint32 `mapstructure:"num-socks"`
	SKB      bool   `mapstructure:"skb"`
	Offload  bool   `mapstructure:"offload"`
	Replace  bool   `mapstructure:"replace"`

	Verbose  bool   `mapstructure:"verbose"`
	TUI      bool   `mapstructure:"tui"`
	Object   string `mapstructure:"object"`
	LogLevel string `mapstructure:"log-level"`
}

var (
	errTooManySockets = errors.New("too many AF_XDP sockets")
	errNoRedirect     = errors.New("AF_XDP mode requires an object built with REDIRECT enabled")
	errAFXDPIfaces    = errors.New("AF_XDP mode supports a single interface")
)

// RegisterFlags declares every option on fs with its short and long form.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("iface", "i", "eth0", "The interface(s) to attach the XDP program to, comma separated")
	fs.Uint64P("duration", "d", 0, "The amount of time in seconds to run the program for (0 = infinite)")
	fs.BoolP("afxdp", "a", false, "Forwards and processes matched packets in AF_XDP sockets instead of the raw XDP program")
	fs.Uint32P("num-socks", "n", 0, "The amount of AF_XDP sockets to create when running in AF_XDP mode")
	fs.BoolP("skb", "s", false, "Attach the XDP program using SKB (generic) mode instead of DRV")
	fs.BoolP("offload", "o", false, "Attach the XDP program using offload mode instead of DRV")
	fs.BoolP("replace", "z", false, "Replace an XDP program already attached to the interface(s)")

	fs.BoolP("verbose", "v", false, "Print the full verifier log when the program is rejected")
	fs.Bool("tui", false, "Show a terminal dashboard instead of the status line")
	fs.String("object", "", "Path to the compiled XDP object (default <executable dir>/xdpcollector/"+ObjectStem+".o)")
}

// NewViper binds fs and the environment into a fresh viper instance.
func NewViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// LOG_LEVEL is the conventional knob; the prefixed form is honoured too.
	if err := v.BindEnv("log-level", EnvPrefix+"_LOG_LEVEL", "LOG_LEVEL"); err != nil {
		return nil, fmt.Errorf("bind log level: %w", err)
	}
	v.SetDefault("log-level", "info")

	return v, nil
}

// Load unmarshals and validates the options held by v.
func Load(v *viper.Viper) (*Options, error) {
	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &opts, nil
}

// Validate rejects option combinations the controller cannot honour.
func (o *Options) Validate() error {
	if !o.AFXDP {
		return nil
	}
	if !Redirect {
		return errNoRedirect
	}
	if o.NumSocks > MaxSockets {
		return fmt.Errorf("%w: %d (max %d)", errTooManySockets, o.NumSocks, MaxSockets)
	}
	// Sockets bind to queues of one device; MAP_XSKS is keyed by queue only.
	if n := len(SplitInterfaces(o.Iface)); n > 1 {
		return fmt.Errorf("%w, got %d", errAFXDPIfaces, n)
	}
	return nil
}

// SplitInterfaces splits a comma separated interface list, trimming
// whitespace and dropping empty entries.
func SplitInterfaces(s string) []string {
	var ifaces []string
	for _, part := range strings.Split(s, ",") {
		if name := strings.TrimSpace(part); name != "" {
			ifaces = append(ifaces, name)
		}
	}
	return ifaces
}

// Sockets returns the number of AF_XDP sockets to open; zero means one.
func (o *Options) Sockets() int {
	if !o.AFXDP {
		return 0
	}
	if o.NumSocks == 0 {
		return 1
	}
	return int(o.NumSocks)
}
