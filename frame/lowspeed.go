package frame

// JointDriverLowSpeedPart is the decoded low-speed diagnostic feedback for a
// single joint (0x261..0x266): driver temperature and a small set of boolean
// conditions packed as a bitmask.
type JointDriverLowSpeedPart struct {
	Joint       int // 0-indexed
	TempC       float64
	ConditionBy uint8
	HwTsUs      uint64
}

const (
	DriverCondOverTemp = 1 << 0
	DriverCondOverVolt = 1 << 1
	DriverCondUnderVolt = 1 << 2
	DriverCondEncoderErr = 1 << 3
)

func decodeJointDriverLowSpeed(fr Frame) (JointDriverLowSpeedPart, error) {
	if fr.DLC < 2 {
		return JointDriverLowSpeedPart{}, ErrShortPayload
	}
	joint := int(fr.ID) - int(IDJointDriverLowSpeed(1))
	if joint < 0 || joint > 5 {
		return JointDriverLowSpeedPart{}, ErrUnknownID
	}
	return JointDriverLowSpeedPart{
		Joint:       joint,
		TempC:       float64(int16(fr.Data[0])) * 0.5,
		ConditionBy: fr.Data[1],
		HwTsUs:      fr.HwTsUs,
	}, nil
}

func encodeJointDriverLowSpeed(p JointDriverLowSpeedPart) Frame {
	var data [8]byte
	data[0] = byte(int8(p.TempC / 0.5))
	data[1] = p.ConditionBy
	return Frame{ID: IDJointDriverLowSpeed(p.Joint + 1), DLC: 2, Data: data, HwTsUs: p.HwTsUs}
}
