package frame

// RobotControlFrame is the decode of the single 0x2A1 status frame.
// FeedbackCounter is best-effort: some firmware revisions do not increment
// it, so callers must not treat a stalled value as proof of a stuck link
// without corroborating evidence.
type RobotControlFrame struct {
	FaultMask       uint8 // one bit per joint, 1 = faulted
	EStopMask       uint8 // one bit per joint, 1 = emergency-stopped
	Enabled         bool
	FeedbackCounter uint8
	HwTsUs          uint64
}

func decodeRobotControl(fr Frame) (RobotControlFrame, error) {
	if fr.DLC < 4 {
		return RobotControlFrame{}, ErrShortPayload
	}
	return RobotControlFrame{
		FaultMask:       fr.Data[0],
		EStopMask:       fr.Data[1],
		Enabled:         fr.Data[2]&0x01 != 0,
		FeedbackCounter: fr.Data[3],
		HwTsUs:          fr.HwTsUs,
	}, nil
}

func encodeRobotControl(r RobotControlFrame) Frame {
	var data [8]byte
	data[0] = r.FaultMask
	data[1] = r.EStopMask
	if r.Enabled {
		data[2] = 0x01
	}
	data[3] = r.FeedbackCounter
	return Frame{ID: IDRobotControl, DLC: 4, Data: data, HwTsUs: r.HwTsUs}
}

// JointFaulted reports whether joint (0-indexed) is faulted.
func JointFaulted(mask uint8, joint int) bool { return mask&(1<<uint(joint)) != 0 }
