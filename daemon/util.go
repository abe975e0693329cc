package daemon

import (
	"encoding/binary"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ctrlcan/arm6/frame"
)

// atomic64 is a small wrapper so Client's heartbeat timestamp can be read
// and written from different goroutines (GC thread vs IPC->USB thread)
// without a mutex.
type atomic64 struct {
	v atomic.Int64
}

func (a *atomic64) store(v int64) { a.v.Store(v) }
func (a *atomic64) load() int64   { return a.v.Load() }

func nowUnixNano() int64 { return time.Now().UnixNano() }

func timeNow() time.Time { return time.Now() }

func leUint32(buf []byte) uint32      { return binary.LittleEndian.Uint32(buf) }
func lePutUint32(buf []byte, v uint32) { binary.LittleEndian.PutUint32(buf, v) }

func isDeadlineErr(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

func toCANFrame(m SendFrameMsg) frame.Frame {
	return frame.Frame{ID: m.CANID, DLC: m.DLC, Data: m.Data, IsExtended: m.Extended}
}

// socketPath trims a leading "unix:" scheme some configs use for clarity.
func socketPath(addr string) string {
	return strings.TrimPrefix(addr, "unix:")
}

