// Package config holds the build-time constants shared with the XDP object
// and the runtime options of the controller.
package config

// Build-time configuration. These values are mirrored in
// xdpcollector/bpf/xdp_stats.h; changing one of them means rebuilding the
// object with `make`.
const (
	// TargetPort is the UDP destination port a frame must carry to be matched.
	TargetPort uint16 = 8080

	// Redirect compiles the AF_XDP redirect program into the object.
	Redirect = true

	// RedirectFibLookup makes the redirect program forward matched frames
	// to the FIB next hop with XDP_TX instead of handing them to AF_XDP sockets.
	RedirectFibLookup = false

	// ObjectStem is the file name, without extension, of the compiled object.
	ObjectStem = "rust-xdp-stats"
)

// Names exported by the compiled object.
const (
	ProgramName         = "rust_xdp_stats"
	RedirectProgramName = "rust_xdp_stats_redirect"

	StatsMapName = "MAP_STATS"
	LogsMapName  = "MAP_LOGS"
	XsksMapName  = "MAP_XSKS"

	License = "Dual MIT/GPL"
)

// MaxSockets is the capacity of MAP_XSKS, i.e. the highest queue count
// AF_XDP mode can serve.
const MaxSockets = 64
