// Package netflow implements a NetFlow v5 UDP collector that aggregates
// per-flow byte counts into per-device bandwidth samples.
package netflow

import (
	"encoding/binary"
	"fmt"
	"net"
)

const (
	headerLen = 24
	recordLen = 48
)

// Header is the 24-byte NetFlow v5 packet header.
type Header struct {
	Version          uint16
	Count            uint16
	SysUptime        uint32
	UnixSecs         uint32
	UnixNsecs        uint32
	FlowSequence     uint32
	EngineType       uint8
	EngineID         uint8
	SamplingInterval uint16
}

// Record is one 48-byte NetFlow v5 flow record.
type Record struct {
	SrcAddr  [4]byte
	DstAddr  [4]byte
	NextHop  [4]byte
	Input    uint16
	Output   uint16
	Packets  uint32
	Octets   uint32
	First    uint32
	Last     uint32
	SrcPort  uint16
	DstPort  uint16
	Pad1     uint8
	TCPFlags uint8
	Protocol uint8
	Tos      uint8
	SrcAS    uint16
	DstAS    uint16
	SrcMask  uint8
	DstMask  uint8
	Pad2     [2]byte
}

// SrcIP returns the source address in dotted-quad form.
func (r *Record) SrcIP() string {
	return net.IP(r.SrcAddr[:]).String()
}

// DstIP returns the destination address in dotted-quad form.
func (r *Record) DstIP() string {
	return net.IP(r.DstAddr[:]).String()
}

// Parse decodes a NetFlow v5 packet. It rejects packets with the wrong
// version or whose length is less than 24 + count*48.
func Parse(data []byte) (Header, []Record, error) {
	if len(data) < headerLen {
		return Header{}, nil, fmt.Errorf("packet too short: %d bytes", len(data))
	}

	h := Header{
		Version:          binary.BigEndian.Uint16(data[0:2]),
		Count:            binary.BigEndian.Uint16(data[2:4]),
		SysUptime:        binary.BigEndian.Uint32(data[4:8]),
		UnixSecs:         binary.BigEndian.Uint32(data[8:12]),
		UnixNsecs:        binary.BigEndian.Uint32(data[12:16]),
		FlowSequence:     binary.BigEndian.Uint32(data[16:20]),
		EngineType:       data[20],
		EngineID:         data[21],
		SamplingInterval: binary.BigEndian.Uint16(data[22:24]),
	}
	if h.Version != 5 {
		return Header{}, nil, fmt.Errorf("unsupported netflow version %d", h.Version)
	}
	if want := headerLen + int(h.Count)*recordLen; len(data) < want {
		return Header{}, nil, fmt.Errorf("truncated packet: %d bytes, want %d for %d records",
			len(data), want, h.Count)
	}

	records := make([]Record, h.Count)
	for i := 0; i < int(h.Count); i++ {
		off := headerLen + i*recordLen
		rec := &records[i]
		copy(rec.SrcAddr[:], data[off:off+4])
		copy(rec.DstAddr[:], data[off+4:off+8])
		copy(rec.NextHop[:], data[off+8:off+12])
		rec.Input = binary.BigEndian.Uint16(data[off+12 : off+14])
		rec.Output = binary.BigEndian.Uint16(data[off+14 : off+16])
		rec.Packets = binary.BigEndian.Uint32(data[off+16 : off+20])
		rec.Octets = binary.BigEndian.Uint32(data[off+20 : off+24])
		rec.First = binary.BigEndian.Uint32(data[off+24 : off+28])
		rec.Last = binary.BigEndian.Uint32(data[off+28 : off+32])
		rec.SrcPort = binary.BigEndian.Uint16(data[off+32 : off+34])
		rec.DstPort = binary.BigEndian.Uint16(data[off+34 : off+36])
		rec.Pad1 = data[off+36]
		rec.TCPFlags = data[off+37]
		rec.Protocol = data[off+38]
		rec.Tos = data[off+39]
		rec.SrcAS = binary.BigEndian.Uint16(data[off+40 : off+42])
		rec.DstAS = binary.BigEndian.Uint16(data[off+42 : off+44])
		rec.SrcMask = data[off+44]
		rec.DstMask = data[off+45]
		copy(rec.Pad2[:], data[off+46:off+48])
	}
	return h, records, nil
}

// Marshal encodes a header and records back to wire form. The record count
// in the output comes from len(records), not h.Count.
func Marshal(h Header, records []Record) []byte {
	buf := make([]byte, headerLen+len(records)*recordLen)

	binary.BigEndian.PutUint16(buf[0:2], h.Version)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(records)))
	binary.BigEndian.PutUint32(buf[4:8], h.SysUptime)
	binary.BigEndian.PutUint32(buf[8:12], h.UnixSecs)
	binary.BigEndian.PutUint32(buf[12:16], h.UnixNsecs)
	binary.BigEndian.PutUint32(buf[16:20], h.FlowSequence)
	buf[20] = h.EngineType
	buf[21] = h.EngineID
	binary.BigEndian.PutUint16(buf[22:24], h.SamplingInterval)

	for i := range records {
		off := headerLen + i*recordLen
		rec := &records[i]
		copy(buf[off:off+4], rec.SrcAddr[:])
		copy(buf[off+4:off+8], rec.DstAddr[:])
		copy(buf[off+8:off+12], rec.NextHop[:])
		binary.BigEndian.PutUint16(buf[off+12:off+14], rec.Input)
		binary.BigEndian.PutUint16(buf[off+14:off+16], rec.Output)
		binary.BigEndian.PutUint32(buf[off+16:off+20], rec.Packets)
		binary.BigEndian.PutUint32(buf[off+20:off+24], rec.Octets)
		binary.BigEndian.PutUint32(buf[off+24:off+28], rec.First)
		binary.BigEndian.PutUint32(buf[off+28:off+32], rec.Last)
		binary.BigEndian.PutUint16(buf[off+32:off+34], rec.SrcPort)
		binary.BigEndian.PutUint16(buf[off+34:off+36], rec.DstPort)
		buf[off+36] = rec.Pad1
		buf[off+37] = rec.TCPFlags
		buf[off+38] = rec.Protocol
		buf[off+39] = rec.Tos
		binary.BigEndian.PutUint16(buf[off+40:off+42], rec.SrcAS)
		binary.BigEndian.PutUint16(buf[off+42:off+44], rec.DstAS)
		buf[off+44] = rec.SrcMask
		buf[off+45] = rec.DstMask
		copy(buf[off+46:off+48], rec.Pad2[:])
	}
	return buf
}
