// main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"xdpstats/config"
	"xdpstats/ui"
	"xdpstats/xdpcollector"
	"xdpstats/xdpcollector/utility"

	"github.com/cilium/ebpf/rlimit"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "xdpstats",
		Short:        "Count and classify packets with an XDP program",
		Long:         fmt.Sprintf("Attaches an XDP classifier that drops UDP traffic to port %d and prints per-category packet and byte counters every second.", config.TargetPort),
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.NewViper(cmd.Flags())
			if err != nil {
				return err
			}
			opts, err := config.Load(v)
			if err != nil {
				return err
			}
			setupLogging(opts.LogLevel)
			return run(cmd.Context(), opts, v.IsSet("iface"))
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// setupLogging sends text logs to stderr so the status line owns stdout.
func setupLogging(level string) {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("unknown log level %q, using info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

func run(parent context.Context, opts *config.Options, ifaceSet bool) error {
	ifaces := utility.ResolveInterfaces(opts.Iface, ifaceSet)

	// Newer kernels account BPF memory to the cgroup and do not need this.
	if err := rlimit.RemoveMemlock(); err != nil {
		log.Warnf("Failed to remove memlock limit: %v", err)
	}

	// Handle graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		sink   xdpcollector.Sink
		dash   *ui.Dashboard
		status *ui.StatusLine
	)
	if opts.TUI {
		dash = ui.NewDashboard(ifaces)
		sink = dash
	} else {
		status = ui.NewStatusLine(os.Stdout, true)
		sink = status
	}

	coll, err := xdpcollector.New(xdpcollector.Config{
		Ifaces: ifaces,
		Object: opts.Object,
		Attach: xdpcollector.AttachFlags{
			Mode:    xdpcollector.ModeFromFlags(opts.SKB, opts.Offload),
			Replace: opts.Replace,
		},
		Sockets:  opts.Sockets(),
		Duration: opts.Duration,
		Verbose:  opts.Verbose,
	}, sink)
	if err != nil {
		return err
	}
	defer func() {
		if err := coll.Close(); err != nil {
			log.Warnf("release: %v", err)
		}
	}()

	if dash == nil {
		log.Info("XDP stats loaded, press CTRL+C to exit")
		err := coll.Run(ctx)
		if ferr := status.Finish(); ferr != nil {
			log.Debugf("finish status line: %v", ferr)
		}
		return err
	}

	// Dashboard mode: logs go to the System Log pane while it is up.
	log.SetOutput(dash.LogWriter())
	defer log.SetOutput(os.Stderr)

	errCh := make(chan error, 1)
	go func() {
		log.Info("Collector run loop starting...")
		errCh <- coll.Run(ctx)
		stop()
	}()

	if err := dash.Run(ctx, stop); err != nil {
		stop()
		<-errCh
		return fmt.Errorf("run dashboard: %w", err)
	}
	return <-errCh
}
