package stats

import (
	"encoding/binary"

	"github.com/google/gopacket/layers"
)

// Fixed header offsets used by the XDP program. The IPv4 header is assumed
// to be 20 bytes; frames carrying IP options are classified as if the UDP
// header started right after the fixed part.
const (
	EthHdrLen  = 14
	IPv4HdrLen = 20
	UDPHdrLen  = 8

	ipv4Off = EthHdrLen
	udpOff  = EthHdrLen + IPv4HdrLen
)

// Classify applies the XDP program's decision table to frame and returns
// the category to account it to and the verdict the kernel would return.
func Classify(frame []byte, targetPort uint16) (Category, Verdict) {
	if len(frame) < EthHdrLen {
		return Bad, VerdictAborted
	}
	if layers.EthernetType(binary.BigEndian.Uint16(frame[12:14])) != layers.EthernetTypeIPv4 {
		return Pass, VerdictPass
	}

	if len(frame) < ipv4Off+IPv4HdrLen {
		return Bad, VerdictAborted
	}
	if layers.IPProtocol(frame[ipv4Off+9]) != layers.IPProtocolUDP {
		return Pass, VerdictPass
	}

	if len(frame) < udpOff+UDPHdrLen {
		return Bad, VerdictAborted
	}
	if binary.BigEndian.Uint16(frame[udpOff+2:udpOff+4]) != targetPort {
		return Pass, VerdictPass
	}

	return Match, VerdictDrop
}
