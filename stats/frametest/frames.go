// Package frametest builds synthetic Ethernet frames for classifier tests.
package frametest

import (
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var (
	srcMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	dstMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}

	srcIPv4 = net.IPv4(10, 0, 0, 1)
	dstIPv4 = net.IPv4(10, 0, 0, 2)
)

const srcPort = 40000

const (
	ethLen  = 14
	ipv4Len = 20
	ipv6Len = 40
	udpLen  = 8
	tcpLen  = 20
)

// serialize lays ls out and pads the payload so the frame is exactly size
// bytes long. hdrLen is the summed header length of ls.
func serialize(size, hdrLen int, ls ...gopacket.SerializableLayer) []byte {
	if size < hdrLen {
		panic(fmt.Sprintf("frametest: %d bytes cannot hold %d bytes of headers", size, hdrLen))
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	ls = append(ls, gopacket.Payload(make([]byte, size-hdrLen)))
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		panic(fmt.Sprintf("frametest: serialize frame: %v", err))
	}
	return buf.Bytes()
}

func ethernet(t layers.EthernetType) *layers.Ethernet {
	return &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: t}
}

func ipv4(proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: proto,
		SrcIP:    srcIPv4,
		DstIP:    dstIPv4,
	}
}

// UDP returns a size-byte Ethernet/IPv4/UDP frame addressed to dstPort.
func UDP(dstPort uint16, size int) []byte {
	ip := ipv4(layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: srcPort, DstPort: layers.UDPPort(dstPort)}
	_ = udp.SetNetworkLayerForChecksum(ip)
	return serialize(size, ethLen+ipv4Len+udpLen, ethernet(layers.EthernetTypeIPv4), ip, udp)
}

// TCP returns a size-byte Ethernet/IPv4/TCP frame addressed to dstPort.
func TCP(dstPort uint16, size int) []byte {
	ip := ipv4(layers.IPProtocolTCP)
	tcp := &layers.TCP{SrcPort: srcPort, DstPort: layers.TCPPort(dstPort), SYN: true, Window: 1024}
	_ = tcp.SetNetworkLayerForChecksum(ip)
	return serialize(size, ethLen+ipv4Len+tcpLen, ethernet(layers.EthernetTypeIPv4), ip, tcp)
}

// IPv6 returns a size-byte Ethernet/IPv6/UDP frame.
func IPv6(dstPort uint16, size int) []byte {
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolUDP,
		SrcIP:      net.ParseIP("fd00::1"),
		DstIP:      net.ParseIP("fd00::2"),
	}
	udp := &layers.UDP{SrcPort: srcPort, DstPort: layers.UDPPort(dstPort)}
	_ = udp.SetNetworkLayerForChecksum(ip)
	return serialize(size, ethLen+ipv6Len+udpLen, ethernet(layers.EthernetTypeIPv6), ip, udp)
}

// Truncated returns the first size bytes of a UDP frame to dstPort.
func Truncated(dstPort uint16, size int) []byte {
	return UDP(dstPort, 64)[:size]
}
