package relay

import (
	"testing"

	"github.com/ctrlcan/arm6/daemon"
)

func TestSplitChannelParsesNetworkAndAddress(t *testing.T) {
	network, address, err := splitChannel("unixgram|/run/arm6/daemon.sock")
	if err != nil {
		t.Fatalf("splitChannel: %v", err)
	}
	if network != "unixgram" || address != "/run/arm6/daemon.sock" {
		t.Fatalf("got network=%q address=%q", network, address)
	}
}

func TestSplitChannelMissingSeparatorErrors(t *testing.T) {
	if _, _, err := splitChannel("udp:127.0.0.1:9000"); err == nil {
		t.Fatal("expected an error when the channel lacks a '|' separator")
	}
}

func TestParseReceiveFrameRoundTripsDaemonMessage(t *testing.T) {
	msg := daemon.ReceiveFrameMsg{CANID: 0x251, Extended: false, DLC: 4, HwTsUs: 99, Data: [8]byte{1, 2, 3, 4}}
	raw := marshalReceiveFrameForTest(7, msg)

	fr, ok := parseReceiveFrame(raw)
	if !ok {
		t.Fatal("expected parseReceiveFrame to succeed on a well-formed message")
	}
	if fr.ID != msg.CANID || fr.DLC != msg.DLC || fr.HwTsUs != msg.HwTsUs {
		t.Fatalf("got %+v, want fields from %+v", fr, msg)
	}
	if fr.Data[0] != 1 || fr.Data[3] != 4 {
		t.Fatalf("unexpected data payload: %+v", fr.Data)
	}
}

func TestParseReceiveFrameRejectsShortBuffer(t *testing.T) {
	if _, ok := parseReceiveFrame(make([]byte, 5)); ok {
		t.Fatal("expected parseReceiveFrame to reject a too-short buffer")
	}
}

func TestParseReceiveFrameRejectsWrongMessageType(t *testing.T) {
	msg := daemon.ReceiveFrameMsg{CANID: 1, DLC: 0}
	raw := marshalReceiveFrameForTest(1, msg)
	raw[0] = daemon.MsgHeartbeat
	if _, ok := parseReceiveFrame(raw); ok {
		t.Fatal("expected parseReceiveFrame to reject a non-ReceiveFrame message type")
	}
}

func TestMarshalFiltersForHandshakeEmptyList(t *testing.T) {
	buf := marshalFiltersForHandshake(nil)
	if len(buf) != 1 || buf[0] != 0 {
		t.Fatalf("expected a single zero-count byte for no filters, got %v", buf)
	}
}

func TestMarshalFiltersForHandshakeEncodesRanges(t *testing.T) {
	buf := marshalFiltersForHandshake([]daemon.FilterRange{{Min: 0x10, Max: 0x20}})
	if len(buf) != 1+8 {
		t.Fatalf("expected 9 bytes for one filter range, got %d", len(buf))
	}
	if buf[0] != 1 {
		t.Fatalf("expected count byte 1, got %d", buf[0])
	}
	if leUint32(buf[1:5]) != 0x10 || leUint32(buf[5:9]) != 0x20 {
		t.Fatalf("unexpected encoded range: %v", buf[1:])
	}
}

// marshalReceiveFrameForTest builds the same wire layout the daemon's
// marshalReceiveFrame produces, without exporting that function across
// package boundaries just for this test.
func marshalReceiveFrameForTest(seq uint32, m daemon.ReceiveFrameMsg) []byte {
	hdr := daemon.Header{Type: daemon.MsgReceiveFrame, Seq: seq}
	body := make([]byte, 4+1+1+8+int(m.DLC))
	lePutUint32(body[0:4], m.CANID)
	if m.Extended {
		body[4] = 0x01
	}
	body[5] = m.DLC
	putUint64(body[6:14], m.HwTsUs)
	copy(body[14:], m.Data[:m.DLC])
	hdr.Length = uint16(9 + len(body))
	return append(hdr.Marshal(), body...)
}

func putUint64(buf []byte, v uint64) {
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
}
