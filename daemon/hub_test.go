package daemon

import (
	"net"
	"testing"
	"time"

	"github.com/ctrlcan/arm6/frame"
)

func fakeAddr(s string) net.Addr { return &net.UnixAddr{Name: s, Net: "unixgram"} }

func TestClientMatchesEmptyFilterMatchesEverything(t *testing.T) {
	c := &Client{}
	if !c.Matches(0x251) {
		t.Fatal("empty filter list should match every ID")
	}
}

func TestClientMatchesRespectsRanges(t *testing.T) {
	c := &Client{Filters: []FilterRange{{Min: 0x250, Max: 0x256}}}
	if !c.Matches(0x251) {
		t.Fatal("0x251 should be inside [0x250,0x256]")
	}
	if c.Matches(0x300) {
		t.Fatal("0x300 should be outside [0x250,0x256]")
	}
}

func TestHubConnectDisconnect(t *testing.T) {
	h := NewHub()
	c := h.Connect(fakeAddr("a"), nil)
	if h.Count() != 1 {
		t.Fatalf("expected 1 client, got %d", h.Count())
	}
	if _, ok := h.Get(c.ID); !ok {
		t.Fatal("expected to find connected client")
	}
	h.Disconnect(c.ID)
	if h.Count() != 0 {
		t.Fatalf("expected 0 clients after disconnect, got %d", h.Count())
	}
}

func TestHubBroadcastRespectsFilterAndCountsDrops(t *testing.T) {
	h := NewHub()
	in := h.Connect(fakeAddr("in-range"), []FilterRange{{Min: 0x250, Max: 0x256}})
	out := h.Connect(fakeAddr("out-of-range"), []FilterRange{{Min: 0x300, Max: 0x3FF}})

	var sentTo []net.Addr
	h.Send = func(addr net.Addr, payload []byte) error {
		sentTo = append(sentTo, addr)
		return nil
	}

	delivered, dropped := h.Broadcast(frame.Frame{ID: 0x251, DLC: 4})
	if delivered != 1 || dropped != 0 {
		t.Fatalf("expected 1 delivered, 0 dropped, got %d/%d", delivered, dropped)
	}
	if len(sentTo) != 1 || sentTo[0].String() != in.Addr.String() {
		t.Fatalf("expected frame delivered only to in-range client, got %v (out client=%v)", sentTo, out.Addr)
	}
}

func TestHubBroadcastCountsSendFailureAsDropped(t *testing.T) {
	h := NewHub()
	h.Connect(fakeAddr("c1"), nil)
	h.Send = func(addr net.Addr, payload []byte) error { return errSendFailed }

	delivered, dropped := h.Broadcast(frame.Frame{ID: 0x100, DLC: 1})
	if delivered != 0 || dropped != 1 {
		t.Fatalf("expected 0 delivered, 1 dropped, got %d/%d", delivered, dropped)
	}
}

func TestHubSetFilterUnknownClientReturnsFalse(t *testing.T) {
	h := NewHub()
	if h.SetFilter(999, nil) {
		t.Fatal("expected SetFilter on unknown client to return false")
	}
}

func TestHubRunGCEvictsStaleClients(t *testing.T) {
	h := NewHub()
	c := h.Connect(fakeAddr("stale"), nil)
	c.lastHeartbeat.store(nowUnixNano() - int64(time.Hour))

	stop := make(chan struct{})
	defer close(stop)
	go h.RunGC(5*time.Millisecond, 10*time.Millisecond, stop)

	deadline := time.Now().Add(time.Second)
	for h.Count() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if h.Count() != 0 {
		t.Fatal("expected stale client to be evicted by RunGC")
	}
}

type sendErr struct{}

func (sendErr) Error() string { return "send failed" }

var errSendFailed = sendErr{}
