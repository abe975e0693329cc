package relay

import "encoding/binary"

func leUint32(buf []byte) uint32       { return binary.LittleEndian.Uint32(buf) }
func lePutUint32(buf []byte, v uint32) { binary.LittleEndian.PutUint32(buf, v) }
func leUint64(buf []byte) uint64       { return binary.LittleEndian.Uint64(buf) }
