package frame

import "encoding/binary"

// velPerRaw converts the raw int16 velocity unit (hundredths of rad/s) to
// rad/s; currentPerRaw converts raw milliamps to amps.
const (
	velPerRaw     = 1.0 / 100.0
	currentPerRaw = 1.0 / 1000.0
	torquePerRaw  = 1.0 / 1000.0
)

// JointDynamicPart is the decoded high-speed dynamic feedback for a single
// joint (0x251..0x256). HasTorque is false on devices whose firmware does
// not report a torque signal distinct from motor current; Torque is then
// zero and must not be treated as a real reading.
type JointDynamicPart struct {
	Joint     int // 0-indexed
	Velocity  float64
	Current   float64
	HasTorque bool
	Torque    float64
	HwTsUs    uint64
}

func decodeJointDynamic(fr Frame) (JointDynamicPart, error) {
	if fr.DLC < 4 {
		return JointDynamicPart{}, ErrShortPayload
	}
	joint := int(fr.ID) - int(IDJointDynamic(1))
	if joint < 0 || joint > 5 {
		return JointDynamicPart{}, ErrUnknownID
	}
	vel := int16(binary.LittleEndian.Uint16(fr.Data[0:2]))
	cur := int16(binary.LittleEndian.Uint16(fr.Data[2:4]))
	p := JointDynamicPart{
		Joint:    joint,
		Velocity: float64(vel) * velPerRaw,
		Current:  float64(cur) * currentPerRaw,
		HwTsUs:   fr.HwTsUs,
	}
	if fr.DLC >= 6 {
		torque := int16(binary.LittleEndian.Uint16(fr.Data[4:6]))
		p.HasTorque = true
		p.Torque = float64(torque) * torquePerRaw
	}
	return p, nil
}

func encodeJointDynamicPart(p JointDynamicPart) Frame {
	var data [8]byte
	dlc := uint8(4)
	binary.LittleEndian.PutUint16(data[0:2], uint16(int16(p.Velocity/velPerRaw)))
	binary.LittleEndian.PutUint16(data[2:4], uint16(int16(p.Current/currentPerRaw)))
	if p.HasTorque {
		binary.LittleEndian.PutUint16(data[4:6], uint16(int16(p.Torque/torquePerRaw)))
		dlc = 6
	}
	return Frame{ID: IDJointDynamic(p.Joint + 1), DLC: dlc, Data: data, HwTsUs: p.HwTsUs}
}
