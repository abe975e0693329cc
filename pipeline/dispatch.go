package pipeline

import (
	"github.com/ctrlcan/arm6/frame"
	"github.com/ctrlcan/arm6/state"
)

// dispatch routes one decoded record to its aggregation rule, per the
// per-Kind switch of §4.5 step 3. Frame-commit and buffered-commit groups
// accumulate until ready(); everything else publishes immediately.
func (p *Pipeline) dispatch(d frame.Decoded, fr frame.Frame) {
	now := sysTimeUs()

	switch d.Kind {
	case frame.KindJointPosition:
		part := d.JointPosition
		p.posGroup.update(part.GroupIdx, part.SlotLo, part.SlotHi, part.AngleLo, part.AngleHi, part.HwTsUs, now)
		if p.posGroup.ready() {
			p.commitJointPosition(now)
		}

	case frame.KindEndPose:
		part := d.EndPose
		p.poseGroup.update(part.GroupIdx, int(part.AxisLo), int(part.AxisHi), part.ValueLo, part.ValueHi, part.HwTsUs, now)
		if p.poseGroup.ready() {
			p.commitEndPose(now)
		}

	case frame.KindJointDynamic:
		part := d.JointDynamic
		p.dynGroup.update(part.Joint, part.Velocity, part.Current, part.HasTorque, part.Torque, part.HwTsUs, now)
		dynTimeoutUs := uint32(p.cfg.DynamicGroupTimeout.Microseconds())
		nowHw := uint32(part.HwTsUs)
		// A hardware timestamp below the window's first one means the u32
		// device counter wrapped: commit now instead of waiting on the deadline.
		wrapped := nowHw < uint32(p.dynGroup.firstHwTsUs)
		if p.dynGroup.ready() || wrapped || p.dynGroup.elapsedSinceFirst(nowHw) > dynTimeoutUs {
			p.commitJointDynamic(now)
		}

	case frame.KindRobotControl:
		r := d.RobotControl
		p.ctx.PublishRobotControl(state.RobotControl{
			FaultMask:       r.FaultMask,
			EStopMask:       r.EStopMask,
			Enabled:         r.Enabled,
			FeedbackCounter: r.FeedbackCounter,
			HwTsUs:          r.HwTsUs,
			SysTsUs:         now,
		})
		p.fps.publish(entRobotControl)

	case frame.KindGripper:
		g := d.Gripper
		p.ctx.PublishGripper(state.Gripper{
			StatusRaw: g.StatusRaw,
			Position:  g.Position,
			HwTsUs:    g.HwTsUs,
			SysTsUs:   now,
		})
		p.fps.publish(entGripper)

	case frame.KindJointDriverLowSpeed:
		l := d.JointDriverLow
		p.ctx.PublishJointDriverLowSpeedJoint(l.Joint, l.TempC, l.ConditionBy, l.HwTsUs, now)
		p.fps.publish(entJointDriverLowSpeed)

	case frame.KindCollisionProtection:
		c := d.Collision
		p.ctx.TryPublishCollisionProtection(state.CollisionProtection{
			Level: c.Level, TriggeredBy: c.TriggeredBy, HwTsUs: c.HwTsUs, SysTsUs: now,
		})

	case frame.KindJointLimitConfig:
		l := d.JointLimitConfig
		p.ctx.TryPublishJointLimitConfigJoint(l.Joint, l.Min, l.Max, now)

	case frame.KindJointAccelConfig:
		a := d.JointAccelConfig
		p.ctx.TryPublishJointAccelConfigJoint(a.Joint, a.MaxAcc, now)

	case frame.KindEndLimitConfig:
		e := d.EndLimitConfig
		p.ctx.TryPublishEndLimitConfig(state.EndLimitConfig{MinXYZ: e.MinXYZ, MaxXYZ: e.MaxXYZ, SysTsUs: now})
	}
}

func (p *Pipeline) commitJointPosition(sysTs uint64) {
	g := &p.posGroup
	p.ctx.PublishJointPosition(state.JointPosition{
		Angles:    g.pending,
		ValidMask: g.mask,
		HwTsUs:    g.lastHwTsUs,
		SysTsUs:   sysTs,
	})
	p.fps.publish(entJointPosition)
	g.reset()
}

func (p *Pipeline) commitEndPose(sysTs uint64) {
	g := &p.poseGroup
	p.ctx.PublishEndPose(state.EndPose{
		X: g.pending[0], Y: g.pending[1], Z: g.pending[2],
		Rx: g.pending[3], Ry: g.pending[4], Rz: g.pending[5],
		ValidMask: g.mask,
		HwTsUs:    g.lastHwTsUs,
		SysTsUs:   sysTs,
	})
	p.fps.publish(entEndPose)
	g.reset()
}

func (p *Pipeline) commitJointDynamic(sysTs uint64) {
	g := &p.dynGroup
	p.ctx.PublishJointDynamic(state.JointDynamic{
		Velocity:  g.velocity,
		Current:   g.current,
		Torque:    g.torque,
		HasTorque: g.hasTorque,
		ValidMask: g.mask,
		HwTsUs:    g.firstHwTsUs,
		SysTsUs:   sysTs,
	})
	p.fps.publish(entJointDynamic)
	g.reset()
}

// windowMaintenance runs on every receive timeout (§4.5 step 1 fallthrough).
// A stale frame-commit group (one whose first sub-frame is older than the
// group timeout but that never completed) is dropped, not committed: mask
// and pending are cleared without publishing, so a fragment missing its
// remaining sub-frames never contaminates the next cycle's snapshot with a
// partial valid_mask (§4.5). The buffered-commit group still commits its
// partial mask on its own elapsed-window timeout, per the same section.
func (p *Pipeline) windowMaintenance() {
	now := sysTimeUs()

	if p.posGroup.open && p.posGroup.stale(p.cfg.FrameGroupTimeout, now) {
		p.posGroup.reset()
	}
	if p.poseGroup.open && p.poseGroup.stale(p.cfg.FrameGroupTimeout, now) {
		p.poseGroup.reset()
	}
	p.checkDynamicTimeout(now)
}

// checkDynamicTimeout commits the buffered-commit JointDynamic group with
// whatever partial valid_mask it holds once its host-clock age exceeds the
// configured deadline (default ~1.2ms), per §4.5. Called both from
// windowMaintenance (the bus has gone fully idle) and after every dispatched
// frame (the bus is busy with unrelated traffic but this group's deadline
// has still passed), so the deadline is enforced on wall-clock time rather
// than only when another JointDynamic sub-frame happens to arrive.
func (p *Pipeline) checkDynamicTimeout(now uint64) {
	if !p.dynGroup.open {
		return
	}
	if p.dynGroup.sysElapsedUs(now) > uint64(p.cfg.DynamicGroupTimeout.Microseconds()) {
		p.commitJointDynamic(now)
	}
}
