// Package state holds the Context: the hot/warm snapshot containers and
// cold reader-writer containers the pipeline publishes into and the public
// robot API reads from without blocking (§3.2, §3.3, §9).
package state

// JointPosition is the committed six-joint angle snapshot, radians.
type JointPosition struct {
	Angles      [6]float64
	ValidMask   uint8 // low 3 bits, one per contributing frame
	HwTsUs      uint64
	SysTsUs     uint64
}

// EndPose is the committed end-effector pose snapshot.
type EndPose struct {
	X, Y, Z    float64 // metres
	Rx, Ry, Rz float64 // radians
	ValidMask  uint8
	HwTsUs     uint64
	SysTsUs    uint64
}

// JointDynamic is the committed per-joint high-speed dynamic snapshot.
// ValidMask documents which joints in THIS snapshot are fresh this window
// versus carried over from the previous one (§5 ordering guarantees).
type JointDynamic struct {
	Velocity  [6]float64
	Current   [6]float64
	Torque    [6]float64
	HasTorque [6]bool
	ValidMask uint8 // low 6 bits
	HwTsUs    uint64
	SysTsUs   uint64
}

// RobotControl is the single-frame robot status snapshot. FeedbackCounter
// is best-effort per the Open Question in §9.
type RobotControl struct {
	FaultMask       uint8
	EStopMask       uint8
	Enabled         bool
	FeedbackCounter uint8
	HwTsUs          uint64
	SysTsUs         uint64
}

// Gripper is the single-frame gripper snapshot.
type Gripper struct {
	StatusRaw byte
	Position  float64
	HwTsUs    uint64
	SysTsUs   uint64
}

// JointDriverLowSpeed is the cold per-joint diagnostic snapshot, updated by
// read-copy-update (§4.5 per-joint cold aggregators).
type JointDriverLowSpeed struct {
	TempC      [6]float64
	ConditionBy [6]uint8
	ValidMask  uint8
	HwTsUs     [6]uint64
	SysTsUs    uint64
}

// CollisionProtection is the cold reader-writer entity for the
// collision-protection query reply.
type CollisionProtection struct {
	Level       uint8
	TriggeredBy uint8
	HwTsUs      uint64
	SysTsUs     uint64
}

// JointLimitConfig is the cold per-joint soft-limit reply table.
type JointLimitConfig struct {
	Min, Max  [6]float64
	ValidMask uint8
	SysTsUs   uint64
}

// JointAccelConfig is the cold per-joint acceleration-limit reply table.
type JointAccelConfig struct {
	MaxAcc    [6]float64
	ValidMask uint8
	SysTsUs   uint64
}

// EndLimitConfig is the cold Cartesian workspace-limit reply, a single
// frame with no per-joint valid_mask.
type EndLimitConfig struct {
	MinXYZ, MaxXYZ [3]float64
	SysTsUs        uint64
}

// MotionSnapshot is the ad-hoc logical composition of JointPosition and
// EndPose (§3.4): logically, not physically, atomic.
type MotionSnapshot struct {
	JointPosition JointPosition
	EndPose       EndPose
}
