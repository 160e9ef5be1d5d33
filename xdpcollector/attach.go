// xdpcollector/attach.go
package xdpcollector

import (
	"fmt"
	"io"
	"net"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// AttachMode selects the XDP hook the program is attached to.
type AttachMode int

const (
	// ModeDriver lets the kernel attach natively, falling back to generic
	// mode when the driver has no XDP support.
	ModeDriver AttachMode = iota
	// ModeSKB forces the generic software path.
	ModeSKB
	// ModeOffload runs the program on the NIC.
	ModeOffload
)

func (m AttachMode) String() string {
	switch m {
	case ModeDriver:
		return "driver"
	case ModeSKB:
		return "skb"
	case ModeOffload:
		return "offload"
	default:
		return fmt.Sprintf("AttachMode(%d)", int(m))
	}
}

// ModeFromFlags maps the --skb and --offload switches to a mode. Setting
// both is treated as setting neither.
func ModeFromFlags(skb, offload bool) AttachMode {
	switch {
	case skb && !offload:
		return ModeSKB
	case offload && !skb:
		return ModeOffload
	default:
		return ModeDriver
	}
}

func (m AttachMode) linkFlags() link.XDPAttachFlags {
	switch m {
	case ModeSKB:
		return link.XDPGenericMode
	case ModeOffload:
		return link.XDPOffloadMode
	default:
		return 0
	}
}

func (m AttachMode) netlinkFlags() int {
	switch m {
	case ModeSKB:
		return unix.XDP_FLAGS_SKB_MODE
	case ModeOffload:
		return unix.XDP_FLAGS_HW_MODE
	default:
		return 0
	}
}

// AttachFlags is the per-interface attach configuration.
type AttachFlags struct {
	Mode AttachMode
	// Replace allows overwriting a program already attached to the
	// interface. bpf_link refuses that, so it goes through netlink.
	Replace bool
}

// binding keeps a program attached to one interface until closed.
type binding interface {
	io.Closer
	Iface() string
}

type attachFunc func(prog *ebpf.Program, iface string, flags AttachFlags) (binding, error)

// attach picks the bpf_link path unless Replace was requested.
func attach(prog *ebpf.Program, iface string, flags AttachFlags) (binding, error) {
	if flags.Replace {
		return attachNetlink(prog, iface, flags.Mode)
	}
	return attachLink(prog, iface, flags.Mode)
}

type linkBinding struct {
	iface string
	link  link.Link
}

func attachLink(prog *ebpf.Program, iface string, mode AttachMode) (binding, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("lookup interface %q: %w", iface, err)
	}
	lnk, err := link.AttachXDP(link.XDPOptions{
		Program:   prog,
		Interface: ifi.Index,
		Flags:     mode.linkFlags(),
	})
	if err != nil {
		return nil, fmt.Errorf("attach XDP to %s (%s mode): %w", iface, mode, err)
	}
	return &linkBinding{iface: iface, link: lnk}, nil
}

func (b *linkBinding) Iface() string { return b.iface }
func (b *linkBinding) Close() error  { return b.link.Close() }

type netlinkBinding struct {
	iface string
	link  netlink.Link
	flags int
}

func attachNetlink(prog *ebpf.Program, iface string, mode AttachMode) (binding, error) {
	l, err := netlink.LinkByName(iface)
	if err != nil {
		return nil, fmt.Errorf("lookup interface %q: %w", iface, err)
	}
	flags := mode.netlinkFlags()
	if err := netlink.LinkSetXdpFdWithFlags(l, prog.FD(), flags); err != nil {
		return nil, fmt.Errorf("attach XDP to %s (%s mode, replace): %w", iface, mode, err)
	}
	return &netlinkBinding{iface: iface, link: l, flags: flags}, nil
}

func (b *netlinkBinding) Iface() string { return b.iface }

// Close detaches by installing fd -1 with the flags used to attach.
func (b *netlinkBinding) Close() error {
	return netlink.LinkSetXdpFdWithFlags(b.link, -1, b.flags)
}
