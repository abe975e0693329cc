package frame

import (
	"encoding/binary"
	"math"
)

// degPerCentideg converts a raw centidegree integer (hundredths of a
// degree, the wire unit for every angular field) to radians.
const degPerCentideg = math.Pi / 180.0 / 100.0

// JointPositionPart is the decoded contribution of one of the three
// JointPosition group frames (0x2A5/0x2A6/0x2A7): two joint angles, in
// radians, plus which slots they fill.
type JointPositionPart struct {
	ID       uint32
	SlotLo   int // 0-indexed joint number for the first value
	SlotHi   int // 0-indexed joint number for the second value
	AngleLo  float64
	AngleHi  float64
	HwTsUs   uint64
	GroupIdx int // 0, 1 or 2: position of this frame within the 3-frame group
}

func decodeJointPosition(fr Frame) (JointPositionPart, error) {
	if fr.DLC < 4 {
		return JointPositionPart{}, ErrShortPayload
	}
	idx, ok := jointPairIndex(fr.ID, IDJointPos12)
	if !ok {
		return JointPositionPart{}, ErrUnknownID
	}
	lo := int16(binary.LittleEndian.Uint16(fr.Data[0:2]))
	hi := int16(binary.LittleEndian.Uint16(fr.Data[2:4]))
	return JointPositionPart{
		ID:       fr.ID,
		SlotLo:   idx * 2,
		SlotHi:   idx*2 + 1,
		AngleLo:  float64(lo) * degPerCentideg,
		AngleHi:  float64(hi) * degPerCentideg,
		HwTsUs:   fr.HwTsUs,
		GroupIdx: idx,
	}, nil
}

// encodeJointPositionPart is the inverse of decodeJointPosition, used by
// round-trip tests; it is deterministic for the fields the codec owns.
func encodeJointPositionPart(p JointPositionPart) Frame {
	var data [8]byte
	lo := int16(math.Round(p.AngleLo / degPerCentideg))
	hi := int16(math.Round(p.AngleHi / degPerCentideg))
	binary.LittleEndian.PutUint16(data[0:2], uint16(lo))
	binary.LittleEndian.PutUint16(data[2:4], uint16(hi))
	return Frame{ID: p.ID, DLC: 4, Data: data, HwTsUs: p.HwTsUs}
}
