package pipeline

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctrlcan/arm6/can"
	"github.com/ctrlcan/arm6/frame"
	"github.com/ctrlcan/arm6/state"
)

// fakeRx feeds a fixed queue of frames, then returns can.ErrTimeout forever.
type fakeRx struct {
	queue []frame.Frame
	pos   int
}

func (f *fakeRx) Receive(timeout time.Duration) (frame.Frame, error) {
	if f.pos >= len(f.queue) {
		return frame.Frame{}, can.ErrTimeout
	}
	fr := f.queue[f.pos]
	f.pos++
	return fr, nil
}
func (f *fakeRx) Close() error { return nil }

type fakeTx struct {
	sent []frame.Frame
}

func (f *fakeTx) Send(fr frame.Frame) error { f.sent = append(f.sent, fr); return nil }
func (f *fakeTx) Close() error              { return nil }

func jointPosFrame(id uint32, lo, hi int16) frame.Frame {
	return jointPosFrameWithHwTs(id, lo, hi, 0)
}

func jointPosFrameWithHwTs(id uint32, lo, hi int16, hwTs uint64) frame.Frame {
	var data [8]byte
	binary.LittleEndian.PutUint16(data[0:2], uint16(lo))
	binary.LittleEndian.PutUint16(data[2:4], uint16(hi))
	return frame.Frame{ID: id, DLC: 4, Data: data, HwTsUs: hwTs}
}

func TestPipelineCommitsJointPositionOnFullGroup(t *testing.T) {
	rx := &fakeRx{queue: []frame.Frame{
		jointPosFrame(frame.IDJointPos12, 10, 20),
		jointPosFrame(frame.IDJointPos34, 30, 40),
		jointPosFrame(frame.IDJointPos56, 50, 60),
	}}
	tx := &fakeTx{}
	ctx := state.NewContext()
	cmd := make(chan frame.Frame)

	p := New(ctx, rx, tx, cmd, DefaultConfig())
	stop := make(chan struct{})
	go p.Run(stop)

	require.Eventually(t, func() bool {
		return ctx.JointPosition().ValidMask == 0b111
	}, time.Second, time.Millisecond)

	close(stop)
	jp := ctx.JointPosition()
	assert.NotZero(t, jp.Angles[0])
	assert.NotZero(t, jp.Angles[5])
}

// TestPipelineJointPositionCommitUsesLastFrameHwTs is S1: three frames with
// hw_ts_us 1000, 1001, 1002 must commit with hw_ts_us == 1002 (the last
// contributing frame's), not a host clock reading and not the first
// frame's timestamp (§3.2).
func TestPipelineJointPositionCommitUsesLastFrameHwTs(t *testing.T) {
	rx := &fakeRx{queue: []frame.Frame{
		jointPosFrameWithHwTs(frame.IDJointPos12, 10, 20, 1000),
		jointPosFrameWithHwTs(frame.IDJointPos34, 30, 40, 1001),
		jointPosFrameWithHwTs(frame.IDJointPos56, 50, 60, 1002),
	}}
	tx := &fakeTx{}
	ctx := state.NewContext()
	cmd := make(chan frame.Frame)

	p := New(ctx, rx, tx, cmd, DefaultConfig())
	stop := make(chan struct{})
	go p.Run(stop)

	require.Eventually(t, func() bool {
		return ctx.JointPosition().ValidMask == 0b111
	}, time.Second, time.Millisecond)

	close(stop)
	assert.Equal(t, uint64(1002), ctx.JointPosition().HwTsUs)
}

func TestPipelineCommitsRobotControlImmediately(t *testing.T) {
	var data [8]byte
	data[0] = 0x01 // fault mask
	rx := &fakeRx{queue: []frame.Frame{{ID: frame.IDRobotControl, DLC: 4, Data: data}}}
	tx := &fakeTx{}
	ctx := state.NewContext()
	cmd := make(chan frame.Frame)

	p := New(ctx, rx, tx, cmd, DefaultConfig())
	stop := make(chan struct{})
	go p.Run(stop)

	require.Eventually(t, func() bool {
		return ctx.RobotControl().FaultMask == 0x01
	}, time.Second, time.Millisecond)
	close(stop)
}

func TestPipelineDrainsCommandsToTx(t *testing.T) {
	rx := &fakeRx{queue: []frame.Frame{
		jointPosFrame(frame.IDJointPos12, 1, 2),
	}}
	tx := &fakeTx{}
	ctx := state.NewContext()
	cmd := make(chan frame.Frame, 1)
	cmd <- frame.Frame{ID: frame.IDGripper, DLC: 1}

	p := New(ctx, rx, tx, cmd, DefaultConfig())
	stop := make(chan struct{})
	go p.Run(stop)

	require.Eventually(t, func() bool {
		return len(tx.sent) > 0
	}, time.Second, time.Millisecond)
	close(stop)
	assert.Equal(t, frame.IDGripper, tx.sent[0].ID)
}

func TestPipelineDropsStaleFrameGroupWithoutPublishing(t *testing.T) {
	rx := &fakeRx{queue: []frame.Frame{
		jointPosFrame(frame.IDJointPos12, 10, 20),
		jointPosFrame(frame.IDJointPos34, 30, 40),
		// third sub-frame (IDJointPos56) never arrives: the group must be
		// dropped by windowMaintenance, not committed with a partial mask.
	}}
	tx := &fakeTx{}
	ctx := state.NewContext()
	cmd := make(chan frame.Frame)

	cfg := DefaultConfig()
	cfg.ReceiveTimeout = 5 * time.Millisecond
	cfg.FrameGroupTimeout = 10 * time.Millisecond

	p := New(ctx, rx, tx, cmd, cfg)
	stop := make(chan struct{})
	go p.Run(stop)

	time.Sleep(100 * time.Millisecond)
	close(stop)

	assert.Equal(t, uint8(0), ctx.JointPosition().ValidMask, "a stale partial group must never publish")
	assert.False(t, p.posGroup.open, "a dropped group must be reset, not left open")
}

func jointDynFrame(joint int, vel, cur int16) frame.Frame {
	var data [8]byte
	binary.LittleEndian.PutUint16(data[0:2], uint16(vel))
	binary.LittleEndian.PutUint16(data[2:4], uint16(cur))
	return frame.Frame{ID: frame.IDJointDynamic(joint + 1), DLC: 4, Data: data}
}

func TestPipelineCommitsJointDynamicWhenAllSixPresent(t *testing.T) {
	queue := make([]frame.Frame, 0, 6)
	for j := 0; j < 6; j++ {
		queue = append(queue, jointDynFrame(j, int16(j), int16(j*10)))
	}
	rx := &fakeRx{queue: queue}
	tx := &fakeTx{}
	ctx := state.NewContext()
	cmd := make(chan frame.Frame)

	p := New(ctx, rx, tx, cmd, DefaultConfig())
	stop := make(chan struct{})
	go p.Run(stop)

	require.Eventually(t, func() bool {
		return ctx.JointDynamic().ValidMask == 0x3F
	}, time.Second, time.Millisecond)
	close(stop)
}

func TestPipelineCommitsJointDynamicOnTimeoutWithPartialMask(t *testing.T) {
	// Only joints 0,1,2 arrive; the remaining fakeRx queue is exhausted, so
	// Receive returns ErrTimeout immediately thereafter, driving
	// windowMaintenance's host-clock based deadline check (§4.5 S4).
	rx := &fakeRx{queue: []frame.Frame{
		jointDynFrame(0, 1, 10),
		jointDynFrame(1, 2, 20),
		jointDynFrame(2, 3, 30),
	}}
	tx := &fakeTx{}
	ctx := state.NewContext()
	cmd := make(chan frame.Frame)

	cfg := DefaultConfig()
	cfg.DynamicGroupTimeout = 1200 * time.Microsecond
	p := New(ctx, rx, tx, cmd, cfg)
	stop := make(chan struct{})
	go p.Run(stop)

	require.Eventually(t, func() bool {
		return ctx.JointDynamic().ValidMask == 0b000111
	}, time.Second, time.Millisecond)

	jd := ctx.JointDynamic()
	assert.Equal(t, 0b000111, int(jd.ValidMask))
	assert.NotZero(t, jd.Velocity[2])
	assert.Zero(t, jd.Velocity[3], "joint 4 must be unchanged (zero) from before this partial commit")
	close(stop)
}

func TestPipelineUnknownIDLoggedOnceAndDropped(t *testing.T) {
	rx := &fakeRx{queue: []frame.Frame{
		{ID: 0xDEAD, DLC: 8},
		{ID: 0xDEAD, DLC: 8},
	}}
	tx := &fakeTx{}
	ctx := state.NewContext()
	cmd := make(chan frame.Frame)

	p := New(ctx, rx, tx, cmd, DefaultConfig())
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		p.Run(stop)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	close(stop)
	<-done
	assert.True(t, p.loggedUnknownIDs[0xDEAD])
}
