package common

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"
)

var (
	// FixLengths is required, otherwise the IPv4 total length and UDP length are left at zero.
	Options     gopacket.SerializeOptions = gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	rawBytes                              = []byte{0, 1, 2, 3, 4}
	SrcMACTest                            = net.HardwareAddr{0x00, 0x0F, 0xAA, 0xFA, 0xAA, 0x00}
	DstMACTest                            = net.HardwareAddr{0x00, 0x0D, 0xBD, 0xBD, 0x00, 0xBD}
	ip1test                               = net.IPv4(5, 6, 7, 8)
	ip2test                               = net.IPv4(8, 1, 1, 1)
	porttest1                             = uint16(12345)
	porttest2                             = uint16(9876)
)

func CreateFrame(t require.TestingT) []byte {
	return CreateFrameIPTCP(t, ip1test, ip2test, porttest1, porttest2)
}

func CreateFrameIP(t require.TestingT, src, dst net.IP) []byte {
	return CreateFrameIPTCP(t, src, dst, porttest1, porttest2)
}

func CreateFrameIPTCP(t require.TestingT, src, dst net.IP, srcport, dstport uint16) []byte {
	ipLayer := ipv4Layer(src, dst, layers.IPProtocolTCP)
	tcpLayer := &layers.TCP{
		SrcPort: layers.TCPPort(srcport),
		DstPort: layers.TCPPort(dstport),
		SYN:     true,
		Window:  1024,
	}
	require.Nil(t, tcpLayer.SetNetworkLayerForChecksum(ipLayer))
	return serialize(t, ethLayer(layers.EthernetTypeIPv4), ipLayer, tcpLayer, gopacket.Payload(rawBytes))
}

func CreateFrameIPUDP(t require.TestingT, src, dst net.IP, srcport, dstport uint16) []byte {
	ipLayer := ipv4Layer(src, dst, layers.IPProtocolUDP)
	udpLayer := &layers.UDP{
		SrcPort: layers.UDPPort(srcport),
		DstPort: layers.UDPPort(dstport),
	}
	require.Nil(t, udpLayer.SetNetworkLayerForChecksum(ipLayer))
	return serialize(t, ethLayer(layers.EthernetTypeIPv4), ipLayer, udpLayer, gopacket.Payload(rawBytes))
}

// CreateFrameIPOptions builds a TCP frame whose IPv4 header carries a router alert option, so IHL is 6.
func CreateFrameIPOptions(t require.TestingT, src, dst net.IP) []byte {
	ipLayer := ipv4Layer(src, dst, layers.IPProtocolTCP)
	ipLayer.Options = []layers.IPv4Option{{OptionType: 0x94, OptionLength: 4, OptionData: []byte{0, 0}}}
	tcpLayer := &layers.TCP{SrcPort: layers.TCPPort(porttest1), DstPort: layers.TCPPort(porttest2), ACK: true}
	require.Nil(t, tcpLayer.SetNetworkLayerForChecksum(ipLayer))
	return serialize(t, ethLayer(layers.EthernetTypeIPv4), ipLayer, tcpLayer, gopacket.Payload(rawBytes))
}

func CreateICMPFrame(srcmac, dstmac net.HardwareAddr, src, dst net.IP, icmpType, icmpCode uint8) ([]byte, error) {
	ethernetLayer := &layers.Ethernet{
		SrcMAC:       srcmac,
		DstMAC:       dstmac,
		EthernetType: layers.EthernetTypeIPv4,
	}
	icmpLayer := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(icmpType, icmpCode)}
	buffer := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buffer, Options,
		ethernetLayer,
		ipv4Layer(src, dst, layers.IPProtocolICMPv4),
		icmpLayer,
		gopacket.Payload(rawBytes),
	)
	if err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func CreateICMPFrameTest(t require.TestingT, src, dst net.IP, icmpType, icmpCode uint8) []byte {
	buf, err := CreateICMPFrame(SrcMACTest, DstMACTest, src, dst, icmpType, icmpCode)
	require.Nil(t, err)
	return buf
}

func CreateARPFrame(t require.TestingT, srcmac net.HardwareAddr, src, dst net.IP) []byte {
	eth := &layers.Ethernet{
		SrcMAC:       srcmac,
		DstMAC:       net.HardwareAddr{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   srcmac,
		SourceProtAddress: src.To4(),
		DstHwAddress:      net.HardwareAddr{0, 0, 0, 0, 0, 0},
		DstProtAddress:    dst.To4(),
	}
	return serialize(t, eth, arp)
}

// DecodeFrame parses a frame back with gopacket, copying the data so the caller can keep mutating its buffer.
func DecodeFrame(data []byte) gopacket.Packet {
	return gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
}

func GetIPs(pkt gopacket.Packet) (net.IP, net.IP) {
	f := pkt.NetworkLayer().NetworkFlow()
	return net.IP(f.Src().Raw()), net.IP(f.Dst().Raw())
}

func ethLayer(et layers.EthernetType) *layers.Ethernet {
	return &layers.Ethernet{
		SrcMAC:       SrcMACTest,
		DstMAC:       DstMACTest,
		EthernetType: et,
	}
}

func ipv4Layer(src, dst net.IP, proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{
		SrcIP:    src,
		DstIP:    dst,
		Version:  4,
		TTL:      64,
		Id:       0x1234,
		Protocol: proto,
	}
}

func serialize(t require.TestingT, l ...gopacket.SerializableLayer) []byte {
	buffer := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buffer, Options, l...)
	require.Nil(t, err)
	return buffer.Bytes()
}
