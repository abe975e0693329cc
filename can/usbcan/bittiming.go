package usbcan

import (
	"fmt"

	"github.com/ctrlcan/arm6/can"
	"gopkg.in/ini.v1"
)

// BitTiming is the register-level timing the device's BITTIMING control
// request expects: pre-scaler and segment lengths relative to the device's
// nominal clock.
type BitTiming struct {
	Prop   uint32
	Seg1   uint32
	Seg2   uint32
	SJW    uint32
	BRP    uint32
}

type clockBitrate struct {
	clockHz int
	bitrate int
}

// builtinTimingTable covers the two common GS-USB clocks (48 MHz and
// 80 MHz) at 125k/250k/500k/1M, the minimum set step 3 of the adapter
// configuration sequence requires.
var builtinTimingTable = map[clockBitrate]BitTiming{
	{48_000_000, 125_000}: {Prop: 1, Seg1: 13, Seg2: 2, SJW: 1, BRP: 24},
	{48_000_000, 250_000}: {Prop: 1, Seg1: 13, Seg2: 2, SJW: 1, BRP: 12},
	{48_000_000, 500_000}: {Prop: 1, Seg1: 13, Seg2: 2, SJW: 1, BRP: 6},
	{48_000_000, 1_000_000}: {Prop: 1, Seg1: 13, Seg2: 2, SJW: 1, BRP: 3},
	{80_000_000, 125_000}: {Prop: 1, Seg1: 13, Seg2: 2, SJW: 1, BRP: 40},
	{80_000_000, 250_000}: {Prop: 1, Seg1: 13, Seg2: 2, SJW: 1, BRP: 20},
	{80_000_000, 500_000}: {Prop: 1, Seg1: 13, Seg2: 2, SJW: 1, BRP: 10},
	{80_000_000, 1_000_000}: {Prop: 1, Seg1: 13, Seg2: 2, SJW: 1, BRP: 5},
}

// LoadBitTimingProfile merges additional (clock, bitrate) -> timing entries
// from an INI file into a copy of the built-in table, so a new adapter
// clock can be supported without a recompile. Section names are
// "clock_<Hz>_bitrate_<bps>", e.g. "[clock_60000000_bitrate_500000]" with
// keys prop, seg1, seg2, sjw, brp.
func LoadBitTimingProfile(path string) (map[clockBitrate]BitTiming, error) {
	table := make(map[clockBitrate]BitTiming, len(builtinTimingTable))
	for k, v := range builtinTimingTable {
		table[k] = v
	}
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, can.NewDeviceError(can.KindUnsupportedConfig, "load bit timing profile", err)
	}
	for _, section := range cfg.Sections() {
		var clockHz, bitrate int
		if _, err := fmt.Sscanf(section.Name(), "clock_%d_bitrate_%d", &clockHz, &bitrate); err != nil {
			continue
		}
		t := BitTiming{
			Prop: uint32(section.Key("prop").MustInt(1)),
			Seg1: uint32(section.Key("seg1").MustUint(13)),
			Seg2: uint32(section.Key("seg2").MustUint(2)),
			SJW:  uint32(section.Key("sjw").MustUint(1)),
			BRP:  uint32(section.Key("brp").MustUint(1)),
		}
		table[clockBitrate{clockHz, bitrate}] = t
	}
	return table, nil
}

func lookupTiming(table map[clockBitrate]BitTiming, clockHz, bitrate int) (BitTiming, error) {
	t, ok := table[clockBitrate{clockHz, bitrate}]
	if !ok {
		return BitTiming{}, can.NewDeviceError(can.KindUnsupportedConfig,
			fmt.Sprintf("no bit timing for clock=%d bitrate=%d", clockHz, bitrate), nil)
	}
	return t, nil
}
