// Package daemon implements the single-device process that owns the USB
// adapter continuously and relays CAN frames to client processes over a
// local datagram socket (§4.4, §6.3).
package daemon

import (
	"encoding/binary"
	"fmt"
)

// Message type tags, §6.3.
const (
	MsgHeartbeat  uint8 = 0x00
	MsgConnect    uint8 = 0x01
	MsgDisconnect uint8 = 0x02
	MsgSendFrame  uint8 = 0x03
	MsgGetStatus  uint8 = 0x04
	MsgSetFilter  uint8 = 0x05

	MsgConnectAck    uint8 = 0x81
	MsgDisconnectAck uint8 = 0x82
	MsgReceiveFrame  uint8 = 0x83
	MsgStatusResp    uint8 = 0x84
	MsgSendAck       uint8 = 0x85
	MsgError         uint8 = 0xFF
)

// Error codes carried in an Error message body.
const (
	ErrUnknown        uint8 = 0
	ErrDeviceNotFound uint8 = 1
	ErrDeviceBusy     uint8 = 2
	ErrInvalidMessage uint8 = 3
	ErrNotConnected   uint8 = 4
	ErrDeviceError    uint8 = 5
	ErrTimeout        uint8 = 6
)

// headerSize is 9 bytes: type(1) + flags(1) + length(2) + reserved(1) +
// seq(4). The wire format names these five fields explicitly; that sum
// governs over the adjective used to describe it.
const headerSize = 9

// Header is the fixed header every message starts with, little-endian.
type Header struct {
	Type     uint8
	Flags    uint8
	Length   uint16
	Reserved uint8
	Seq      uint32
}

func (h Header) Marshal() []byte {
	buf := make([]byte, headerSize)
	buf[0] = h.Type
	buf[1] = h.Flags
	binary.LittleEndian.PutUint16(buf[2:4], h.Length)
	buf[4] = h.Reserved
	binary.LittleEndian.PutUint32(buf[5:9], h.Seq)
	return buf
}

func unmarshalHeader(buf []byte) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, fmt.Errorf("daemon: short header (%d bytes)", len(buf))
	}
	return Header{
		Type:     buf[0],
		Flags:    buf[1],
		Length:   binary.LittleEndian.Uint16(buf[2:4]),
		Reserved: buf[4],
		Seq:      binary.LittleEndian.Uint32(buf[5:9]),
	}, nil
}

// FilterRange is an inclusive CAN ID range a client subscribes to; an empty
// filter list means "all frames".
type FilterRange struct {
	Min, Max uint32
}

func marshalFilters(filters []FilterRange) []byte {
	buf := make([]byte, 1+8*len(filters))
	buf[0] = uint8(len(filters))
	for i, f := range filters {
		off := 1 + i*8
		binary.LittleEndian.PutUint32(buf[off:off+4], f.Min)
		binary.LittleEndian.PutUint32(buf[off+4:off+8], f.Max)
	}
	return buf
}

func unmarshalFilters(buf []byte) ([]FilterRange, error) {
	if len(buf) < 1 {
		return nil, fmt.Errorf("daemon: missing filter count")
	}
	count := int(buf[0])
	if len(buf) < 1+8*count {
		return nil, fmt.Errorf("daemon: short filter list")
	}
	filters := make([]FilterRange, count)
	for i := 0; i < count; i++ {
		off := 1 + i*8
		filters[i] = FilterRange{
			Min: binary.LittleEndian.Uint32(buf[off : off+4]),
			Max: binary.LittleEndian.Uint32(buf[off+4 : off+8]),
		}
	}
	return filters, nil
}

// ConnectMsg is the C->D body of MsgConnect.
type ConnectMsg struct {
	ClientID uint32
	Filters  []FilterRange
}

func unmarshalConnect(buf []byte) (ConnectMsg, error) {
	if len(buf) < 4 {
		return ConnectMsg{}, fmt.Errorf("daemon: short connect body")
	}
	filters, err := unmarshalFilters(buf[4:])
	if err != nil {
		return ConnectMsg{}, err
	}
	return ConnectMsg{ClientID: binary.LittleEndian.Uint32(buf[0:4]), Filters: filters}, nil
}

// SendFrameMsg is the C->D body of MsgSendFrame.
type SendFrameMsg struct {
	CANID    uint32
	Extended bool
	DLC      uint8
	Data     [8]byte
}

func unmarshalSendFrame(buf []byte) (SendFrameMsg, error) {
	if len(buf) < 6 {
		return SendFrameMsg{}, fmt.Errorf("daemon: short send-frame body")
	}
	dlc := buf[5]
	if len(buf) < int(6+dlc) {
		return SendFrameMsg{}, fmt.Errorf("daemon: send-frame dlc overruns body")
	}
	var data [8]byte
	copy(data[:], buf[6:6+dlc])
	return SendFrameMsg{
		CANID:    binary.LittleEndian.Uint32(buf[0:4]),
		Extended: buf[4]&0x01 != 0,
		DLC:      dlc,
		Data:     data,
	}, nil
}

// ReceiveFrameMsg is the D->C body of MsgReceiveFrame.
type ReceiveFrameMsg struct {
	CANID    uint32
	Extended bool
	DLC      uint8
	HwTsUs   uint64
	Data     [8]byte
}

func marshalReceiveFrame(seq uint32, m ReceiveFrameMsg) []byte {
	body := make([]byte, 4+1+1+8+int(m.DLC))
	binary.LittleEndian.PutUint32(body[0:4], m.CANID)
	if m.Extended {
		body[4] = 0x01
	}
	body[5] = m.DLC
	binary.LittleEndian.PutUint64(body[6:14], m.HwTsUs)
	copy(body[14:], m.Data[:m.DLC])
	hdr := Header{Type: MsgReceiveFrame, Length: uint16(headerSize + len(body)), Seq: seq}
	return append(hdr.Marshal(), body...)
}

func marshalConnectAck(seq uint32, assignedID uint32, status uint8) []byte {
	body := make([]byte, 5)
	binary.LittleEndian.PutUint32(body[0:4], assignedID)
	body[4] = status
	hdr := Header{Type: MsgConnectAck, Length: uint16(headerSize + len(body)), Seq: seq}
	return append(hdr.Marshal(), body...)
}

func marshalSendAck(seq uint32, status uint8) []byte {
	hdr := Header{Type: MsgSendAck, Length: headerSize + 1, Seq: seq}
	return append(hdr.Marshal(), status)
}

func marshalError(seq uint32, code uint8, message string) []byte {
	body := append([]byte{code}, []byte(message)...)
	hdr := Header{Type: MsgError, Length: uint16(headerSize + len(body)), Seq: seq}
	return append(hdr.Marshal(), body...)
}
