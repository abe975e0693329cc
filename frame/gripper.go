package frame

// GripperFrame decodes the single 0x2A8 gripper feedback frame. The raw
// status byte is preserved verbatim; accessor methods derive the individual
// flags so the codec does not bake an interpretation that later firmware
// revisions might shift.
type GripperFrame struct {
	StatusRaw byte
	Position  float64 // 0.0 (closed) .. 1.0 (open)
	HwTsUs    uint64
}

const (
	gripperBitMoving   = 1 << 0
	gripperBitHolding  = 1 << 1
	gripperBitFaulted  = 1 << 2
	gripperBitCalibrat = 1 << 3
)

func decodeGripper(fr Frame) (GripperFrame, error) {
	if fr.DLC < 3 {
		return GripperFrame{}, ErrShortPayload
	}
	return GripperFrame{
		StatusRaw: fr.Data[0],
		Position:  float64(fr.Data[1]) / 255.0,
		HwTsUs:    fr.HwTsUs,
	}, nil
}

func encodeGripper(g GripperFrame) Frame {
	var data [8]byte
	data[0] = g.StatusRaw
	data[1] = byte(g.Position * 255.0)
	return Frame{ID: IDGripper, DLC: 3, Data: data, HwTsUs: g.HwTsUs}
}

func (g GripperFrame) Moving() bool     { return g.StatusRaw&gripperBitMoving != 0 }
func (g GripperFrame) Holding() bool    { return g.StatusRaw&gripperBitHolding != 0 }
func (g GripperFrame) Faulted() bool    { return g.StatusRaw&gripperBitFaulted != 0 }
func (g GripperFrame) Calibrated() bool { return g.StatusRaw&gripperBitCalibrat != 0 }
