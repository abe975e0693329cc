package frame

import "encoding/binary"

// CollisionProtectionFrame decodes the single collision-protection query
// reply frame (0x2A9).
type CollisionProtectionFrame struct {
	Level        uint8 // sensitivity level, device-defined scale
	TriggeredBy  uint8 // one bit per joint
	HwTsUs       uint64
}

func decodeCollisionProtection(fr Frame) (CollisionProtectionFrame, error) {
	if fr.DLC < 2 {
		return CollisionProtectionFrame{}, ErrShortPayload
	}
	return CollisionProtectionFrame{Level: fr.Data[0], TriggeredBy: fr.Data[1], HwTsUs: fr.HwTsUs}, nil
}

// JointLimitConfigPart is the reply for a single joint's soft position
// limits, in radians.
type JointLimitConfigPart struct {
	Joint  int
	Min    float64
	Max    float64
	HwTsUs uint64
}

func decodeJointLimitConfig(fr Frame) (JointLimitConfigPart, error) {
	if fr.DLC < 5 {
		return JointLimitConfigPart{}, ErrShortPayload
	}
	joint := int(fr.Data[0])
	if joint < 0 || joint > 5 {
		return JointLimitConfigPart{}, ErrInvalidValue
	}
	min := int16(binary.LittleEndian.Uint16(fr.Data[1:3]))
	max := int16(binary.LittleEndian.Uint16(fr.Data[3:5]))
	return JointLimitConfigPart{
		Joint:  joint,
		Min:    float64(min) * degPerCentideg,
		Max:    float64(max) * degPerCentideg,
		HwTsUs: fr.HwTsUs,
	}, nil
}

// JointAccelConfigPart is the reply for a single joint's acceleration limit,
// in rad/s^2.
type JointAccelConfigPart struct {
	Joint   int
	MaxAcc  float64
	HwTsUs  uint64
}

func decodeJointAccelConfig(fr Frame) (JointAccelConfigPart, error) {
	if fr.DLC < 3 {
		return JointAccelConfigPart{}, ErrShortPayload
	}
	joint := int(fr.Data[0])
	if joint < 0 || joint > 5 {
		return JointAccelConfigPart{}, ErrInvalidValue
	}
	raw := int16(binary.LittleEndian.Uint16(fr.Data[1:3]))
	return JointAccelConfigPart{Joint: joint, MaxAcc: float64(raw) * degPerCentideg, HwTsUs: fr.HwTsUs}, nil
}

// EndLimitConfigFrame is the single-frame reply carrying Cartesian workspace
// limits. valid_mask semantics do not apply: this is a single frame, not a
// per-joint group.
type EndLimitConfigFrame struct {
	MinXYZ [3]float64 // metres
	MaxXYZ [3]float64
	HwTsUs uint64
}

func decodeEndLimitConfig(fr Frame) (EndLimitConfigFrame, error) {
	if fr.DLC < 8 {
		return EndLimitConfigFrame{}, ErrShortPayload
	}
	var out EndLimitConfigFrame
	out.MinXYZ[0] = float64(int8(fr.Data[0])) * 0.01
	out.MaxXYZ[0] = float64(int8(fr.Data[1])) * 0.01
	out.MinXYZ[1] = float64(int8(fr.Data[2])) * 0.01
	out.MaxXYZ[1] = float64(int8(fr.Data[3])) * 0.01
	out.MinXYZ[2] = float64(int8(fr.Data[4])) * 0.01
	out.MaxXYZ[2] = float64(int8(fr.Data[5])) * 0.01
	out.HwTsUs = fr.HwTsUs
	return out, nil
}
