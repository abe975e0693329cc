package state

import (
	"sync/atomic"
)

// Context is the state store shared between the RX goroutine (sole
// writer) and any number of reader goroutines. Hot/warm entities publish
// via atomic pointer swap, so reads are wait-free and never observe a
// torn value (property 1). Cold entities are guarded by a coldEntity,
// whose writer side only ever calls tryPublish: a failed acquisition
// silently drops the update, and the next frame retries (§4.5 publication
// semantics, the Go-idiomatic match for the spec's try_write()). Their
// reader side returns (value, error) per §4.6/§7: a poisoned lock
// surfaces as ErrPoisoned instead of a torn or stale value.
type Context struct {
	jointPosition atomic.Pointer[JointPosition]
	endPose       atomic.Pointer[EndPose]
	jointDynamic  atomic.Pointer[JointDynamic]
	robotControl  atomic.Pointer[RobotControl]
	gripper       atomic.Pointer[Gripper]
	jointDriverLS atomic.Pointer[JointDriverLowSpeed]

	collision  coldEntity[CollisionProtection]
	jointLimit coldEntity[JointLimitConfig]
	jointAccel coldEntity[JointAccelConfig]
	endLimit   coldEntity[EndLimitConfig]
}

// NewContext creates a Context with every entity zeroed, per §3.3.
func NewContext() *Context {
	c := &Context{}
	c.jointPosition.Store(&JointPosition{})
	c.endPose.Store(&EndPose{})
	c.jointDynamic.Store(&JointDynamic{})
	c.robotControl.Store(&RobotControl{})
	c.gripper.Store(&Gripper{})
	c.jointDriverLS.Store(&JointDriverLowSpeed{})
	return c
}

func (c *Context) JointPosition() JointPosition          { return *c.jointPosition.Load() }
func (c *Context) PublishJointPosition(v JointPosition)  { c.jointPosition.Store(&v) }

func (c *Context) EndPose() EndPose                 { return *c.endPose.Load() }
func (c *Context) PublishEndPose(v EndPose)         { c.endPose.Store(&v) }

func (c *Context) JointDynamic() JointDynamic             { return *c.jointDynamic.Load() }
func (c *Context) PublishJointDynamic(v JointDynamic)     { c.jointDynamic.Store(&v) }

func (c *Context) RobotControl() RobotControl             { return *c.robotControl.Load() }
func (c *Context) PublishRobotControl(v RobotControl)     { c.robotControl.Store(&v) }

func (c *Context) Gripper() Gripper                 { return *c.gripper.Load() }
func (c *Context) PublishGripper(v Gripper)         { c.gripper.Store(&v) }

func (c *Context) JointDriverLowSpeed() JointDriverLowSpeed { return *c.jointDriverLS.Load() }

// PublishJointDriverLowSpeedJoint performs the read-copy-update of §4.5's
// per-joint cold aggregator rule: clone the current snapshot, mutate the
// one affected joint, publish the clone. This entity has no contended
// writer (only the RX thread writes it) so it uses the same atomic-pointer
// swap as the hot entities rather than a coldEntity, per §4.5's "publish
// on every frame using read-copy-update semantics on the snapshot
// container" — the RCU is in the copy-then-swap, not in a lock.
func (c *Context) PublishJointDriverLowSpeedJoint(joint int, tempC float64, cond uint8, hwTs, sysTs uint64) {
	cur := c.JointDriverLowSpeed()
	cur.TempC[joint] = tempC
	cur.ConditionBy[joint] = cond
	cur.HwTsUs[joint] = hwTs
	cur.ValidMask |= 1 << uint(joint)
	cur.SysTsUs = sysTs
	c.jointDriverLS.Store(&cur)
}

// MotionSnapshot performs the two back-to-back non-blocking reads of §3.4.
func (c *Context) MotionSnapshot() MotionSnapshot {
	return MotionSnapshot{JointPosition: c.JointPosition(), EndPose: c.EndPose()}
}

// TryPublishCollisionProtection applies the RX thread's try_write()
// discipline: on lock contention the update is dropped, not retried
// inline, matching §4.5's "never write() from the RX thread".
func (c *Context) TryPublishCollisionProtection(v CollisionProtection) bool {
	return c.collision.tryPublish(func(cur *CollisionProtection) { *cur = v })
}

// CollisionProtection returns the current reply, or ErrPoisoned if a past
// writer panicked while holding the lock (§7).
func (c *Context) CollisionProtection() (CollisionProtection, error) {
	return c.collision.get()
}

func (c *Context) TryPublishJointLimitConfigJoint(joint int, min, max float64, sysTs uint64) bool {
	return c.jointLimit.tryPublish(func(cur *JointLimitConfig) {
		cur.Min[joint] = min
		cur.Max[joint] = max
		cur.ValidMask |= 1 << uint(joint)
		cur.SysTsUs = sysTs
	})
}

func (c *Context) JointLimitConfig() (JointLimitConfig, error) {
	return c.jointLimit.get()
}

func (c *Context) TryPublishJointAccelConfigJoint(joint int, maxAcc float64, sysTs uint64) bool {
	return c.jointAccel.tryPublish(func(cur *JointAccelConfig) {
		cur.MaxAcc[joint] = maxAcc
		cur.ValidMask |= 1 << uint(joint)
		cur.SysTsUs = sysTs
	})
}

func (c *Context) JointAccelConfig() (JointAccelConfig, error) {
	return c.jointAccel.get()
}

func (c *Context) TryPublishEndLimitConfig(v EndLimitConfig) bool {
	return c.endLimit.tryPublish(func(cur *EndLimitConfig) { *cur = v })
}

func (c *Context) EndLimitConfig() (EndLimitConfig, error) {
	return c.endLimit.get()
}
