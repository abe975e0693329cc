package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFpsCountersPublishIncrementsOnlyThatEntity(t *testing.T) {
	f := newFpsCounters()
	f.publish(entJointPosition)
	f.publish(entJointPosition)
	f.publish(entGripper)
	assert.Equal(t, uint64(2), f.counts[entJointPosition].Load())
	assert.Equal(t, uint64(1), f.counts[entGripper].Load())
	assert.Equal(t, uint64(0), f.counts[entEndPose].Load())
}

func TestFpsCountersResetClearsCountsAndWindow(t *testing.T) {
	f := newFpsCounters()
	f.publish(entRobotControl)
	f.Reset()
	assert.Equal(t, uint64(0), f.counts[entRobotControl].Load())
	assert.WithinDuration(t, time.Now(), f.windowStart, 50*time.Millisecond)
}

func TestFpsCountersCalculateApproximatesRate(t *testing.T) {
	f := newFpsCounters()
	f.windowStart = time.Now().Add(-1 * time.Second)
	for i := 0; i < 100; i++ {
		f.publish(entJointDynamic)
	}
	report := f.Calculate()
	assert.InDelta(t, 100.0, report.JointDynamic, 15.0)
	assert.Equal(t, 0.0, report.Gripper)
}
