package pipeline

import "time"

// frameCommitGroup tracks a 3-frame group (JointPosition or EndPose):
// pending values accumulate until all three sub-frames have contributed,
// then commit atomically. Modeled on the double-buffer + timeout-timer
// shape of a PDO receive object, generalized from a fixed mapping table to
// a 3-bit group mask.
type frameCommitGroup struct {
	pending      [6]float64
	mask         uint8 // low 3 bits
	firstSysTsUs uint64
	lastHwTsUs   uint64
	open         bool
}

const frameCommitFullMask = 0b111

func (g *frameCommitGroup) update(groupIdx int, slotLo, slotHi int, lo, hi float64, hwTsUs, sysTsUs uint64) {
	if g.mask == 0 {
		g.firstSysTsUs = sysTsUs
		g.open = true
	}
	g.pending[slotLo] = lo
	g.pending[slotHi] = hi
	g.lastHwTsUs = hwTsUs
	g.mask |= 1 << uint(groupIdx)
}

func (g *frameCommitGroup) ready() bool { return g.mask == frameCommitFullMask }

func (g *frameCommitGroup) reset() {
	g.mask = 0
	g.open = false
}

// stale reports whether the group has been open longer than timeout
// without completing, per the window-maintenance step of §4.5.
func (g *frameCommitGroup) stale(timeout time.Duration, nowUs uint64) bool {
	if !g.open {
		return false
	}
	return nowUs > g.firstSysTsUs && (nowUs-g.firstSysTsUs) > uint64(timeout.Microseconds())
}

// bufferedCommitGroup tracks the six independent JointDynamic frames:
// commit when all six have arrived, or when the elapsed time since the
// first of this window exceeds the configured timeout (default ~1.2ms),
// publishing with a partial mask intact.
type bufferedCommitGroup struct {
	velocity     [6]float64
	current      [6]float64
	torque       [6]float64
	hasTorque    [6]bool
	mask         uint8 // low 6 bits
	firstHwTsUs  uint64
	firstSysTsUs uint64
	open         bool
}

const bufferedCommitFullMask = 0x3F

func (g *bufferedCommitGroup) update(joint int, vel, cur float64, hasTorque bool, torque float64, hwTsUs, sysTsUs uint64) {
	if g.mask == 0 {
		g.firstHwTsUs = hwTsUs
		g.firstSysTsUs = sysTsUs
		g.open = true
	}
	g.velocity[joint] = vel
	g.current[joint] = cur
	g.hasTorque[joint] = hasTorque
	g.torque[joint] = torque
	g.mask |= 1 << uint(joint)
}

func (g *bufferedCommitGroup) ready() bool { return g.mask == bufferedCommitFullMask }

func (g *bufferedCommitGroup) reset() {
	g.mask = 0
	g.open = false
}

// elapsedSinceFirst computes the elapsed microseconds since the window
// opened, tolerating u32 hardware-timestamp wrap: a negative delta is
// treated as zero and the caller should commit immediately, which is safe
// because the next frame in the next cycle re-evaluates (§4.5). Both
// nowHwTsUs and firstHwTsUs are device-relative clock readings, so this
// comparison stays within one clock domain even across a wrap.
func (g *bufferedCommitGroup) elapsedSinceFirst(nowHwTsUs uint32) uint32 {
	delta := int64(nowHwTsUs) - int64(uint32(g.firstHwTsUs))
	if delta < 0 {
		return 0
	}
	return uint32(delta)
}

// sysElapsedUs computes elapsed microseconds since the window opened using
// the host monotonic clock recorded at the first contributing frame. This
// is the clock the pipeline loop can always evaluate, even when no new
// contributing frame has arrived to supply a fresh hardware timestamp to
// compare via elapsedSinceFirst — it is what lets the ~1.2ms buffered-
// commit deadline fire promptly while unrelated frame kinds keep the RX
// loop busy, rather than only on a full receive timeout.
func (g *bufferedCommitGroup) sysElapsedUs(nowSysUs uint64) uint64 {
	if nowSysUs <= g.firstSysTsUs {
		return 0
	}
	return nowSysUs - g.firstSysTsUs
}
