package frame

import (
	"encoding/binary"
	"math"
)

// mmPerTenth converts a raw tenth-of-a-millimetre integer (the wire unit for
// every linear end-pose field) to metres.
const mmPerTenth = 0.1 / 1000.0

// EndPoseAxis names a single axis within the six-component end-effector pose.
type EndPoseAxis int

const (
	AxisX EndPoseAxis = iota
	AxisY
	AxisZ
	AxisRx
	AxisRy
	AxisRz
)

// EndPosePart is the decoded contribution of one of the three EndPose group
// frames (0x2A2/0x2A3/0x2A4).
type EndPosePart struct {
	ID       uint32
	AxisLo   EndPoseAxis
	AxisHi   EndPoseAxis
	ValueLo  float64 // metres for X/Y/Z, radians for Rx/Ry/Rz
	ValueHi  float64
	HwTsUs   uint64
	GroupIdx int
}

// isLinear reports whether axis a is a Cartesian coordinate (mm-scaled) as
// opposed to an orientation angle (degree-scaled).
func (a EndPoseAxis) isLinear() bool { return a == AxisX || a == AxisY || a == AxisZ }

var endPoseAxisLayout = [3][2]EndPoseAxis{
	{AxisX, AxisY},
	{AxisZ, AxisRx},
	{AxisRy, AxisRz},
}

func decodeEndPose(fr Frame) (EndPosePart, error) {
	if fr.DLC < 4 {
		return EndPosePart{}, ErrShortPayload
	}
	idx, ok := jointPairIndex(fr.ID, IDEndPose1)
	if !ok {
		return EndPosePart{}, ErrUnknownID
	}
	lo := int16(binary.LittleEndian.Uint16(fr.Data[0:2]))
	hi := int16(binary.LittleEndian.Uint16(fr.Data[2:4]))
	axes := endPoseAxisLayout[idx]
	p := EndPosePart{ID: fr.ID, AxisLo: axes[0], AxisHi: axes[1], HwTsUs: fr.HwTsUs, GroupIdx: idx}
	if axes[0].isLinear() {
		p.ValueLo = float64(lo) * mmPerTenth
	} else {
		p.ValueLo = float64(lo) * degPerCentideg
	}
	if axes[1].isLinear() {
		p.ValueHi = float64(hi) * mmPerTenth
	} else {
		p.ValueHi = float64(hi) * degPerCentideg
	}
	return p, nil
}

func encodeEndPosePart(p EndPosePart) Frame {
	var data [8]byte
	var lo, hi int16
	if p.AxisLo.isLinear() {
		lo = int16(math.Round(p.ValueLo / mmPerTenth))
	} else {
		lo = int16(math.Round(p.ValueLo / degPerCentideg))
	}
	if p.AxisHi.isLinear() {
		hi = int16(math.Round(p.ValueHi / mmPerTenth))
	} else {
		hi = int16(math.Round(p.ValueHi / degPerCentideg))
	}
	binary.LittleEndian.PutUint16(data[0:2], uint16(lo))
	binary.LittleEndian.PutUint16(data[2:4], uint16(hi))
	return Frame{ID: p.ID, DLC: 4, Data: data, HwTsUs: p.HwTsUs}
}
