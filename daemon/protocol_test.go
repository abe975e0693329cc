package daemon

import "testing"

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Type: MsgSendFrame, Flags: 0x02, Length: 21, Reserved: 0, Seq: 0xDEADBEEF}
	got, err := unmarshalHeader(h.Marshal())
	if err != nil {
		t.Fatalf("unmarshalHeader: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestUnmarshalHeaderShortBuffer(t *testing.T) {
	if _, err := unmarshalHeader(make([]byte, headerSize-1)); err == nil {
		t.Fatal("expected error on short header buffer")
	}
}

func TestFilterRoundTrip(t *testing.T) {
	filters := []FilterRange{{Min: 0x100, Max: 0x1FF}, {Min: 0x251, Max: 0x256}}
	buf := marshalFilters(filters)
	got, err := unmarshalFilters(buf)
	if err != nil {
		t.Fatalf("unmarshalFilters: %v", err)
	}
	if len(got) != len(filters) {
		t.Fatalf("got %d filters, want %d", len(got), len(filters))
	}
	for i := range filters {
		if got[i] != filters[i] {
			t.Fatalf("filter %d: got %+v, want %+v", i, got[i], filters[i])
		}
	}
}

func TestUnmarshalFiltersShortBody(t *testing.T) {
	buf := []byte{2, 0, 0, 0, 0} // claims 2 filters, only has room for 0
	if _, err := unmarshalFilters(buf); err == nil {
		t.Fatal("expected error on truncated filter list")
	}
}

func TestConnectRoundTrip(t *testing.T) {
	msg := ConnectMsg{ClientID: 0, Filters: []FilterRange{{Min: 1, Max: 2}}}
	body := append([]byte{0, 0, 0, 0}, marshalFilters(msg.Filters)...)
	got, err := unmarshalConnect(body)
	if err != nil {
		t.Fatalf("unmarshalConnect: %v", err)
	}
	if len(got.Filters) != 1 || got.Filters[0] != msg.Filters[0] {
		t.Fatalf("unexpected filters: %+v", got.Filters)
	}
}

func TestSendFrameRoundTrip(t *testing.T) {
	buf := make([]byte, 6+4)
	lePutUint32(buf[0:4], 0x123)
	buf[4] = 0x01
	buf[5] = 4
	copy(buf[6:], []byte{1, 2, 3, 4})

	got, err := unmarshalSendFrame(buf)
	if err != nil {
		t.Fatalf("unmarshalSendFrame: %v", err)
	}
	if got.CANID != 0x123 || !got.Extended || got.DLC != 4 || got.Data != ([8]byte{1, 2, 3, 4}) {
		t.Fatalf("unexpected decode: %+v", got)
	}
}

func TestSendFrameDLCOverrun(t *testing.T) {
	buf := []byte{0, 0, 0, 0, 0, 8} // DLC=8 but no payload bytes follow
	if _, err := unmarshalSendFrame(buf); err == nil {
		t.Fatal("expected error when DLC overruns body")
	}
}

func TestMarshalReceiveFrameEmbedsHeaderAndBody(t *testing.T) {
	m := ReceiveFrameMsg{CANID: 0x251, DLC: 4, HwTsUs: 123456, Data: [8]byte{9, 8, 7, 6}}
	buf := marshalReceiveFrame(7, m)

	hdr, err := unmarshalHeader(buf)
	if err != nil {
		t.Fatalf("unmarshalHeader: %v", err)
	}
	if hdr.Type != MsgReceiveFrame || hdr.Seq != 7 {
		t.Fatalf("unexpected header: %+v", hdr)
	}
	if int(hdr.Length) != len(buf) {
		t.Fatalf("length field %d does not match actual buffer length %d", hdr.Length, len(buf))
	}
}
